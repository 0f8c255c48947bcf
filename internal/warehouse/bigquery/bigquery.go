package bigquery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/googleutil"
	"github.com/rudderlabs/rudder-go-kit/jsonrs"
	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/rudder-spotify-etl/internal/model"
	"github.com/rudderlabs/rudder-spotify-etl/internal/schema"
	"github.com/rudderlabs/rudder-spotify-etl/internal/warehouse/bigquery/middleware"
	"github.com/rudderlabs/rudder-spotify-etl/internal/warehouse/logfield"
)

type BigQuery struct {
	db         *bigquery.Client
	middleware *middleware.Client
	projectID  string
	logger     logger.Logger

	config struct {
		location           string
		slowQueryThreshold time.Duration
	}
}

// maps schema types to bigquery field types
var dataTypesMap = map[schema.FieldType]bigquery.FieldType{
	schema.Boolean:   bigquery.BooleanFieldType,
	schema.Integer:   bigquery.IntegerFieldType,
	schema.Float:     bigquery.FloatFieldType,
	schema.String:    bigquery.StringFieldType,
	schema.Timestamp: bigquery.TimestampFieldType,
}

// timestampFormat is accepted by load jobs and keeps microsecond precision.
const timestampFormat = "2006-01-02T15:04:05.999999Z07:00"

func New(conf *config.Config, log logger.Logger) *BigQuery {
	bq := &BigQuery{}

	bq.logger = log.Child("warehouse").Child("bigquery")

	bq.config.location = conf.GetString("Warehouse.bigquery.location", "")
	bq.config.slowQueryThreshold = conf.GetDuration("Warehouse.bigquery.slowQueryThreshold", 5, time.Minute)

	return bq
}

type Credentials struct {
	ProjectID string
	// Credentials is either the service account JSON or a path to it.
	Credentials string
}

func Connect(ctx context.Context, cred *Credentials) (*bigquery.Client, error) {
	var opts []option.ClientOption
	if !googleutil.ShouldSkipCredentialsInit(cred.Credentials) {
		credBytes, err := credentialsJSON(cred.Credentials)
		if err != nil {
			return nil, err
		}
		if err := googleutil.CompatibleGoogleCredentialsJSON(credBytes); err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(credBytes))
	}
	client, err := bigquery.NewClient(ctx, cred.ProjectID, opts...)
	return client, err
}

func credentialsJSON(credentials string) ([]byte, error) {
	trimmed := strings.TrimSpace(credentials)
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}
	credBytes, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	return credBytes, nil
}

// Setup connects to the project. It has to be called before any other method.
func (bq *BigQuery) Setup(ctx context.Context, cred Credentials) (err error) {
	bq.projectID = cred.ProjectID
	bq.logger.Infon("Connecting to BigQuery", logger.NewStringField(logfield.ProjectID, cred.ProjectID))

	bq.db, err = Connect(ctx, &cred)
	if err != nil {
		return fmt.Errorf("connecting to bigquery: %w", err)
	}
	if bq.config.location != "" {
		bq.db.Location = bq.config.location
	}
	bq.middleware = middleware.New(
		bq.db,
		middleware.WithLogger(bq.logger),
		middleware.WithFields(logger.NewStringField(logfield.ProjectID, cred.ProjectID)),
		middleware.WithSlowQueryThreshold(bq.config.slowQueryThreshold),
	)
	return nil
}

func (bq *BigQuery) Close() error {
	if bq.db == nil {
		return nil
	}
	return bq.db.Close()
}

func (bq *BigQuery) table(ref TableRef) *bigquery.Table {
	return bq.db.DatasetInProject(ref.ProjectID, ref.DatasetID).Table(ref.TableID)
}

func getTableSchema(tableSchema schema.TableSchema) bigquery.Schema {
	return lo.Map(tableSchema, func(column schema.Column, _ int) *bigquery.FieldSchema {
		return &bigquery.FieldSchema{
			Name:     column.Name,
			Type:     dataTypesMap[column.Type],
			Repeated: column.Repeated,
		}
	})
}

func (bq *BigQuery) tableExists(ctx context.Context, ref TableRef) (exists bool, err error) {
	_, err = bq.table(ref).Metadata(ctx)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// CreateTable creates the table with the given schema. An existing table is not an error.
func (bq *BigQuery) CreateTable(ctx context.Context, ref TableRef, tableSchema schema.TableSchema) error {
	bq.logger.Infon("Creating table",
		logger.NewStringField(logfield.ProjectID, ref.ProjectID),
		logger.NewStringField(logfield.Dataset, ref.DatasetID),
		logger.NewStringField(logfield.TableName, ref.TableID),
	)
	err := bq.table(ref).Create(ctx, &bigquery.TableMetadata{
		Schema: getTableSchema(tableSchema),
	})
	if !checkAndIgnoreAlreadyExistError(err) {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Watermark returns the greatest value of column in the table. A missing table is
// created from tableSchema; a missing or empty table yields the epoch.
func (bq *BigQuery) Watermark(ctx context.Context, tableID string, tableSchema schema.TableSchema, column string) (model.Watermark, error) {
	ref, err := ParseTableRef(tableID)
	if err != nil {
		return model.Watermark{}, err
	}

	exists, err := bq.tableExists(ctx, ref)
	if err != nil {
		return model.Watermark{}, fmt.Errorf("checking if table %s exists: %w", ref, err)
	}
	if !exists {
		if err := bq.CreateTable(ctx, ref, tableSchema); err != nil {
			return model.Watermark{}, err
		}
		return model.Watermark{Exists: false, At: model.Epoch}, nil
	}

	sqlStatement := fmt.Sprintf("SELECT MAX(`%s`) FROM %s", column, ref.Quoted())
	it, err := bq.middleware.Read(ctx, bq.db.Query(sqlStatement))
	if err != nil {
		return model.Watermark{}, fmt.Errorf("querying max %s: %w", column, err)
	}

	var values []bigquery.Value
	if err := it.Next(&values); err != nil {
		if errors.Is(err, iterator.Done) {
			return model.Watermark{Exists: true, At: model.Epoch}, nil
		}
		return model.Watermark{}, fmt.Errorf("reading max %s: %w", column, err)
	}
	if len(values) == 0 {
		return model.Watermark{Exists: true, At: model.Epoch}, nil
	}
	maxTime, ok := values[0].(time.Time)
	if !ok {
		return model.Watermark{Exists: true, At: model.Epoch}, nil
	}
	return model.Watermark{Exists: true, At: maxTime.UTC()}, nil
}

// Append loads rows into the table. Existing rows are never touched and the table
// is created from tableSchema when missing. No rows is a no-op.
func (bq *BigQuery) Append(ctx context.Context, tableID string, tableSchema schema.TableSchema, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}
	ref, err := ParseTableRef(tableID)
	if err != nil {
		return err
	}

	data, err := encodeRows(rows, tableSchema)
	if err != nil {
		return fmt.Errorf("encoding rows: %w", err)
	}

	source := bigquery.NewReaderSource(bytes.NewReader(data))
	source.SourceFormat = bigquery.JSON
	source.Schema = getTableSchema(tableSchema)

	loader := bq.table(ref).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.JobID = "spotify_etl_" + strings.ReplaceAll(uuid.NewString(), "-", "_")

	log := bq.logger.Withn(
		logger.NewStringField(logfield.TableName, ref.String()),
		logger.NewStringField(logfield.LoadJobID, loader.JobID),
		logger.NewIntField(logfield.LoadedRows, int64(len(rows))),
	)
	log.Infon("Loading rows")

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("starting load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	log.Infon("Loaded rows")
	return nil
}

// MissingArtistIDs returns up to limit distinct artist ids referenced by the source
// table that have no entry in the artists table yet.
func (bq *BigQuery) MissingArtistIDs(ctx context.Context, sourceTableID, artistsTableID string, limit int) ([]string, error) {
	sourceRef, err := ParseTableRef(sourceTableID)
	if err != nil {
		return nil, err
	}
	artistsRef, err := ParseTableRef(artistsTableID)
	if err != nil {
		return nil, err
	}

	exists, err := bq.tableExists(ctx, artistsRef)
	if err != nil {
		return nil, fmt.Errorf("checking if table %s exists: %w", artistsRef, err)
	}

	sqlStatement := missingArtistsQuery(sourceRef, artistsRef, exists)
	query := bq.db.Query(sqlStatement)
	query.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: limit}}

	it, err := bq.middleware.Read(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying missing artists: %w", err)
	}

	var ids []string
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("processing missing artists: %w", err)
		}
		if id, ok := values[0].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func missingArtistsQuery(sourceRef, artistsRef TableRef, artistsTableExists bool) string {
	if !artistsTableExists {
		return fmt.Sprintf(`
		SELECT
		  DISTINCT %[1]s
		FROM
		  %[2]s
		WHERE
		  %[1]s IS NOT NULL
		LIMIT @limit;
	`,
			schema.ArtistIDColumn,
			sourceRef.Quoted(),
		)
	}
	return fmt.Sprintf(`
		SELECT
		  DISTINCT %[1]s
		FROM
		  %[2]s
		WHERE
		  %[1]s IS NOT NULL
		  AND %[1]s NOT IN (
		    SELECT id FROM %[3]s WHERE id IS NOT NULL
		  )
		LIMIT @limit;
	`,
		schema.ArtistIDColumn,
		sourceRef.Quoted(),
		artistsRef.Quoted(),
	)
}

// encodeRows renders rows as newline delimited JSON restricted to the schema's columns.
func encodeRows(rows []model.Row, tableSchema schema.TableSchema) ([]byte, error) {
	var buf bytes.Buffer
	for _, row := range rows {
		record := make(map[string]any, len(tableSchema))
		for _, column := range tableSchema {
			v, ok := row[column.Name]
			if !ok || v == nil {
				continue
			}
			if t, ok := v.(time.Time); ok {
				v = t.UTC().Format(timestampFormat)
			}
			record[column.Name] = v
		}
		line, err := jsonrs.Marshal(record)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func isNotFound(err error) bool {
	var e *googleapi.Error
	return errors.As(err, &e) && e.Code == 404
}

func checkAndIgnoreAlreadyExistError(err error) bool {
	if err != nil {
		var e *googleapi.Error
		if errors.As(err, &e) {
			// 409 is returned when we try to create a table that already exists
			// 400 is returned for all kinds of invalid input - so we need to check the error message too
			if e.Code == 409 || (e.Code == 400 && strings.Contains(e.Message, "already exists in schema")) {
				return true
			}
		}
		return false
	}
	return true
}

//go:generate mockgen -destination=../../mocks/pipeline/mock_warehouse.go -package=mock_pipeline github.com/rudderlabs/rudder-spotify-etl/internal/pipeline Warehouse,ArtistWarehouse

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"

	"github.com/rudderlabs/rudder-spotify-etl/internal/model"
	"github.com/rudderlabs/rudder-spotify-etl/internal/schema"
	"github.com/rudderlabs/rudder-spotify-etl/internal/transform"
	"github.com/rudderlabs/rudder-spotify-etl/internal/warehouse/logfield"
	"github.com/rudderlabs/rudder-spotify-etl/services/alert"
)

const (
	stageAuth      = "auth"
	stageWatermark = "watermark"
	stageFetch     = "fetch"
	stageTransform = "transform"
	stageValidate  = "validate"
	stageLoad      = "load"
)

// Warehouse is the destination of the tracks job.
type Warehouse interface {
	Watermark(ctx context.Context, tableID string, tableSchema schema.TableSchema, column string) (model.Watermark, error)
	Append(ctx context.Context, tableID string, tableSchema schema.TableSchema, rows []model.Row) error
}

// ArtistWarehouse is the destination of the artists job.
type ArtistWarehouse interface {
	MissingArtistIDs(ctx context.Context, sourceTableID, artistsTableID string, limit int) ([]string, error)
	Append(ctx context.Context, tableID string, tableSchema schema.TableSchema, rows []model.Row) error
}

// Trigger is the invocation of a job. The payload is opaque.
type Trigger struct {
	JobName string
	Payload json.RawMessage
}

func (t Trigger) log(log logger.Logger) {
	if body := gjson.GetBytes(t.Payload, "body"); body.Exists() {
		log.Infon("Received event", logger.NewStringField("body", body.Raw))
		return
	}
	log.Infon("Received event", logger.NewBoolField("hasPayload", len(t.Payload) > 0))
}

type Opt func(*base)

// WithNow overrides the clock used to stamp queried_at.
func WithNow(now func() time.Time) Opt {
	return func(b *base) {
		b.now = now
	}
}

// base carries what both jobs share: reporting, metrics and the clock.
type base struct {
	job    string
	alerts alert.AlertManager
	logger logger.Logger
	stats  stats.Stats
	now    func() time.Time
}

func newBase(job string, am alert.AlertManager, log logger.Logger, statsFactory stats.Stats, opts ...Opt) base {
	b := base{
		job:    job,
		alerts: am,
		logger: log.Child("pipeline").Child(job),
		stats:  statsFactory,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// measure runs a stage and records its duration.
func (b *base) measure(stage string, fn func() error) error {
	defer b.stats.NewTaggedStat("spotify_etl_stage_time", stats.TimerType, stats.Tags{
		"job":   b.job,
		"stage": stage,
	}).RecordDuration()()
	return fn()
}

func (b *base) succeed(ctx context.Context, log logger.Logger, statusCode int, message string) model.Status {
	return b.finish(alert.Respond(ctx, b.alerts, log, statusCode, message, nil))
}

func (b *base) fail(ctx context.Context, log logger.Logger, stage string, err *model.StageError) model.Status {
	log.Errorn("Stage failed", logger.NewStringField(logfield.Stage, stage), logger.NewStringField("error", err.Error()))
	return b.finish(alert.Respond(ctx, b.alerts, log, http.StatusInternalServerError, err.Message, err.Err))
}

func (b *base) finish(status model.Status) model.Status {
	b.stats.NewTaggedStat("spotify_etl_runs", stats.CountType, stats.Tags{
		"job":        b.job,
		"statusCode": strconv.Itoa(status.StatusCode),
	}).Increment()
	return status
}

func (b *base) loaded(n int) {
	b.stats.NewTaggedStat("spotify_etl_rows_loaded", stats.CountType, stats.Tags{"job": b.job}).Count(n)
}

// coerce applies the table schema and turns an unexpected panic into an error.
func coerce(rows []model.Row, tableSchema schema.TableSchema) (coerced []model.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("coercing rows: %v", r)
		}
	}()
	if err := tableSchema.Validate(); err != nil {
		return nil, err
	}
	return transform.Coerce(rows, tableSchema), nil
}

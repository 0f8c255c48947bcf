package bigquery

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/jsonrs"
	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/rudder-spotify-etl/internal/model"
	"github.com/rudderlabs/rudder-spotify-etl/internal/schema"
)

const testKey = "BIGQUERY_INTEGRATION_TEST_CREDENTIALS"

func TestParseTableRef(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    TableRef
		wantErr bool
	}{
		{name: "valid", input: "project.dataset.table", want: TableRef{ProjectID: "project", DatasetID: "dataset", TableID: "table"}},
		{name: "quoted", input: "`my-project.spotify.tracks`", want: TableRef{ProjectID: "my-project", DatasetID: "spotify", TableID: "tracks"}},
		{name: "two parts", input: "dataset.table", wantErr: true},
		{name: "four parts", input: "a.b.c.d", wantErr: true},
		{name: "empty part", input: "project..table", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "backtick inside", input: "pro`ject.dataset.table", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := ParseTableRef(tc.input)
			if tc.wantErr {
				require.EqualError(t, err, fmt.Sprintf("invalid table id %q: want project.dataset.table", tc.input))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, ref)
			require.Equal(t, "`"+tc.want.String()+"`", ref.Quoted())
		})
	}
}

func TestGetTableSchema(t *testing.T) {
	bqSchema := getTableSchema(schema.Artists)
	require.Len(t, bqSchema, len(schema.Artists))

	byName := make(map[string]*bigquery.FieldSchema)
	for _, f := range bqSchema {
		byName[f.Name] = f
	}
	require.Equal(t, bigquery.StringFieldType, byName["id"].Type)
	require.Equal(t, bigquery.StringFieldType, byName["genres"].Type)
	require.True(t, byName["genres"].Repeated)
	require.False(t, byName["id"].Repeated)
	require.Equal(t, bigquery.IntegerFieldType, byName["popularity"].Type)
	require.Equal(t, bigquery.TimestampFieldType, byName["queried_at"].Type)

	for _, f := range getTableSchema(schema.Tracks) {
		require.NotEmpty(t, f.Type, f.Name)
	}
}

func TestEncodeRows(t *testing.T) {
	playedAt := time.Date(2024, 3, 1, 10, 15, 30, 123000000, time.UTC)
	rows := []model.Row{
		{
			"played_at":        playedAt,
			"track_name":       "Song",
			"track_popularity": int64(42),
			"track_artists_id": nil,
			"not_in_schema":    "dropped",
		},
		{
			"played_at": playedAt.In(time.FixedZone("CET", 3600)),
		},
	}

	data, err := encodeRows(rows, schema.Tracks)
	require.NoError(t, err)

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	require.JSONEq(t, `{"played_at": "2024-03-01T10:15:30.123Z", "track_name": "Song", "track_popularity": 42}`, lines[0])
	require.JSONEq(t, `{"played_at": "2024-03-01T10:15:30.123Z"}`, lines[1])
}

func TestMissingArtistsQuery(t *testing.T) {
	source := TableRef{ProjectID: "p", DatasetID: "d", TableID: "tracks"}
	artists := TableRef{ProjectID: "p", DatasetID: "d", TableID: "artists"}

	withArtists := missingArtistsQuery(source, artists, true)
	require.Contains(t, withArtists, "DISTINCT track_artists_id")
	require.Contains(t, withArtists, "`p.d.tracks`")
	require.Contains(t, withArtists, "SELECT id FROM `p.d.artists`")
	require.Contains(t, withArtists, "LIMIT @limit")

	withoutArtists := missingArtistsQuery(source, artists, false)
	require.NotContains(t, withoutArtists, "`p.d.artists`")
	require.Contains(t, withoutArtists, "LIMIT @limit")
}

func TestErrors(t *testing.T) {
	require.True(t, isNotFound(&googleapi.Error{Code: http.StatusNotFound}))
	require.True(t, isNotFound(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})))
	require.False(t, isNotFound(&googleapi.Error{Code: http.StatusForbidden}))
	require.False(t, isNotFound(errors.New("not found")))

	require.True(t, checkAndIgnoreAlreadyExistError(nil))
	require.True(t, checkAndIgnoreAlreadyExistError(&googleapi.Error{Code: http.StatusConflict}))
	require.True(t, checkAndIgnoreAlreadyExistError(&googleapi.Error{Code: http.StatusBadRequest, Message: "Column queried_at already exists in schema"}))
	require.False(t, checkAndIgnoreAlreadyExistError(&googleapi.Error{Code: http.StatusBadRequest, Message: "invalid"}))
	require.False(t, checkAndIgnoreAlreadyExistError(errors.New("boom")))
}

func TestCredentialsJSON(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		b, err := credentialsJSON(`  {"type": "service_account"}`)
		require.NoError(t, err)
		require.Equal(t, `{"type": "service_account"}`, string(b))
	})
	t.Run("file", func(t *testing.T) {
		path := t.TempDir() + "/sa.json"
		require.NoError(t, os.WriteFile(path, []byte(`{"type": "service_account"}`), 0o600))
		b, err := credentialsJSON(path)
		require.NoError(t, err)
		require.Equal(t, `{"type": "service_account"}`, string(b))
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := credentialsJSON(t.TempDir() + "/missing.json")
		require.ErrorContains(t, err, "reading credentials file")
	})
}

func TestNew(t *testing.T) {
	conf := config.New()
	conf.Set("Warehouse.bigquery.location", "EU")
	conf.Set("Warehouse.bigquery.slowQueryThreshold", 10*time.Second)

	bq := New(conf, logger.NOP)
	require.Equal(t, "EU", bq.config.location)
	require.Equal(t, 10*time.Second, bq.config.slowQueryThreshold)
	require.NoError(t, bq.Close())
}

type testCredentials struct {
	ProjectID   string `json:"projectID"`
	Location    string `json:"location"`
	Credentials string `json:"credentials"`
}

func TestIntegration(t *testing.T) {
	raw, exists := os.LookupEnv(testKey)
	if !exists {
		t.Skipf("Skipping %s as %s is not set", t.Name(), testKey)
	}
	var cred testCredentials
	require.NoError(t, jsonrs.Unmarshal([]byte(raw), &cred))

	ctx := context.Background()

	conf := config.New()
	conf.Set("Warehouse.bigquery.location", cred.Location)
	bq := New(conf, logger.NOP)
	require.NoError(t, bq.Setup(ctx, Credentials{ProjectID: cred.ProjectID, Credentials: cred.Credentials}))
	t.Cleanup(func() { _ = bq.Close() })

	dataset := "spotify_etl_" + strings.ReplaceAll(uuid.NewString(), "-", "_")
	require.NoError(t, bq.db.Dataset(dataset).Create(ctx, &bigquery.DatasetMetadata{Location: cred.Location}))
	t.Cleanup(func() { _ = bq.db.Dataset(dataset).DeleteWithContents(context.Background()) })

	tracksTable := fmt.Sprintf("%s.%s.tracks", cred.ProjectID, dataset)
	artistsTable := fmt.Sprintf("%s.%s.artists", cred.ProjectID, dataset)

	t.Run("absent table", func(t *testing.T) {
		wm, err := bq.Watermark(ctx, tracksTable, schema.Tracks, schema.PlayedAtColumn)
		require.NoError(t, err)
		require.False(t, wm.Exists)
		require.Equal(t, model.Epoch, wm.At)
		require.EqualValues(t, 1, wm.Cursor())
	})

	t.Run("empty table", func(t *testing.T) {
		wm, err := bq.Watermark(ctx, tracksTable, schema.Tracks, schema.PlayedAtColumn)
		require.NoError(t, err)
		require.True(t, wm.Exists)
		require.Equal(t, model.Epoch, wm.At)
	})

	playedAt := time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)
	t.Run("append and read back", func(t *testing.T) {
		require.NoError(t, bq.Append(ctx, tracksTable, schema.Tracks, nil))
		require.NoError(t, bq.Append(ctx, tracksTable, schema.Tracks, []model.Row{
			{"played_at": playedAt.Add(-time.Hour), "track_artists_id": "a1", "queried_at": playedAt},
			{"played_at": playedAt, "track_artists_id": "a2", "queried_at": playedAt},
		}))

		wm, err := bq.Watermark(ctx, tracksTable, schema.Tracks, schema.PlayedAtColumn)
		require.NoError(t, err)
		require.True(t, wm.Exists)
		require.Equal(t, playedAt, wm.At)
	})

	t.Run("missing artists", func(t *testing.T) {
		ids, err := bq.MissingArtistIDs(ctx, tracksTable, artistsTable, 50)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"a1", "a2"}, ids)

		require.NoError(t, bq.Append(ctx, artistsTable, schema.Artists, []model.Row{
			{"id": "a1", "name": "Artist", "genres": []string{"pop", "dance pop"}, "queried_at": playedAt},
		}))

		ids, err = bq.MissingArtistIDs(ctx, tracksTable, artistsTable, 50)
		require.NoError(t, err)
		require.Equal(t, []string{"a2"}, ids)
	})
}

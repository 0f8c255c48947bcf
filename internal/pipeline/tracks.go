package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"

	"github.com/rudderlabs/rudder-spotify-etl/config"
	"github.com/rudderlabs/rudder-spotify-etl/internal/model"
	"github.com/rudderlabs/rudder-spotify-etl/internal/schema"
	"github.com/rudderlabs/rudder-spotify-etl/internal/transform"
	"github.com/rudderlabs/rudder-spotify-etl/internal/warehouse/logfield"
	"github.com/rudderlabs/rudder-spotify-etl/services/alert"
)

type TracksAPI interface {
	RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (string, error)
	RecentlyPlayed(ctx context.Context, accessToken string, after int64) ([]model.RawEvent, error)
}

// Tracks appends the recently played tracks newer than the stored watermark.
type Tracks struct {
	base

	spotify   config.Spotify
	tableID   string
	api       TracksAPI
	warehouse Warehouse
}

func NewTracks(conf config.Config, api TracksAPI, wh Warehouse, am alert.AlertManager, log logger.Logger, statsFactory stats.Stats, opts ...Opt) *Tracks {
	return &Tracks{
		base:      newBase("tracks", am, log, statsFactory, opts...),
		spotify:   conf.Spotify,
		tableID:   conf.Warehouse.TableID,
		api:       api,
		warehouse: wh,
	}
}

// Run executes one run. Stages are strictly sequential and the first failure ends the run.
func (t *Tracks) Run(ctx context.Context, trigger Trigger) model.Status {
	log := t.logger.Withn(
		logger.NewStringField(logfield.RunID, uuid.NewString()),
		logger.NewStringField(logfield.JobName, trigger.JobName),
		logger.NewStringField(logfield.TableName, t.tableID),
	)
	trigger.log(log)

	queriedAt := t.now().UTC()

	var accessToken string
	err := t.measure(stageAuth, func() (err error) {
		accessToken, err = t.api.RefreshToken(ctx, t.spotify.ClientID, t.spotify.ClientSecret, t.spotify.RefreshToken)
		return err
	})
	if err != nil {
		return t.fail(ctx, log, stageAuth, model.NewStageError(model.ErrAuth, "Failed to refresh access token.", err))
	}

	var watermark model.Watermark
	err = t.measure(stageWatermark, func() (err error) {
		watermark, err = t.warehouse.Watermark(ctx, t.tableID, schema.Tracks, schema.PlayedAtColumn)
		return err
	})
	if err != nil {
		return t.fail(ctx, log, stageWatermark, model.NewStageError(model.ErrWarehouseSetup, "Failed to read the latest timestamp from BigQuery.", err))
	}
	log = log.Withn(
		logger.NewStringField(logfield.Watermark, watermark.At.Format(time.RFC3339)),
		logger.NewIntField(logfield.Cursor, watermark.Cursor()),
	)
	if !watermark.Exists {
		log.Infon("Destination table created")
	}

	var events []model.RawEvent
	err = t.measure(stageFetch, func() (err error) {
		events, err = t.api.RecentlyPlayed(ctx, accessToken, watermark.Cursor())
		return err
	})
	if err != nil {
		return t.fail(ctx, log, stageFetch, model.NewStageError(model.ErrFetch, "Failed to retrieve the data from the API.", err))
	}
	log.Infon("Fetched recently played tracks", logger.NewIntField(logfield.FetchedRows, int64(len(events))))

	var rows []model.Row
	err = t.measure(stageTransform, func() (err error) {
		rows, err = transform.Flatten(events, queriedAt)
		return err
	})
	if err != nil {
		return t.fail(ctx, log, stageTransform, model.NewStageError(model.ErrTransform, "Failed to transform the data.", err))
	}

	err = t.measure(stageValidate, func() (err error) {
		rows, err = coerce(rows, schema.Tracks)
		return err
	})
	if err != nil {
		return t.fail(ctx, log, stageValidate, model.NewStageError(model.ErrValidation, "Failed to apply data validation.", err))
	}

	rows = transform.After(rows, watermark.At)
	if len(rows) == 0 {
		return t.succeed(ctx, log, http.StatusAccepted, "No new data.")
	}

	err = t.measure(stageLoad, func() error {
		return t.warehouse.Append(ctx, t.tableID, schema.Tracks, rows)
	})
	if err != nil {
		return t.fail(ctx, log, stageLoad, model.NewStageError(model.ErrLoad, "Failed to upload the data to BigQuery.", err))
	}
	t.loaded(len(rows))

	return t.succeed(ctx, log, http.StatusOK, fmt.Sprintf("you have listened to %d songs since %s", len(rows), watermark.At.Format(time.RFC3339)))
}

package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"

	"github.com/rudderlabs/rudder-spotify-etl/config"
	"github.com/rudderlabs/rudder-spotify-etl/internal/model"
	"github.com/rudderlabs/rudder-spotify-etl/internal/schema"
	"github.com/rudderlabs/rudder-spotify-etl/internal/spotify"
	"github.com/rudderlabs/rudder-spotify-etl/internal/transform"
	"github.com/rudderlabs/rudder-spotify-etl/internal/warehouse/logfield"
	"github.com/rudderlabs/rudder-spotify-etl/services/alert"
)

type ArtistsAPI interface {
	ClientCredentials(ctx context.Context, clientID, clientSecret string) (string, error)
	Artists(ctx context.Context, accessToken string, ids []string) ([]model.RawEvent, error)
}

// Artists appends metadata for the artists referenced by loaded tracks but not stored yet.
type Artists struct {
	base

	spotify        config.Spotify
	sourceTableID  string
	artistsTableID string
	api            ArtistsAPI
	warehouse      ArtistWarehouse
}

func NewArtists(conf config.Config, api ArtistsAPI, wh ArtistWarehouse, am alert.AlertManager, log logger.Logger, statsFactory stats.Stats, opts ...Opt) *Artists {
	return &Artists{
		base:           newBase("artists", am, log, statsFactory, opts...),
		spotify:        conf.Spotify,
		sourceTableID:  conf.Warehouse.ArtistsSourceTableID,
		artistsTableID: conf.Warehouse.ArtistsTableID,
		api:            api,
		warehouse:      wh,
	}
}

// Run handles at most one page of missing artists per invocation.
func (a *Artists) Run(ctx context.Context, trigger Trigger) model.Status {
	log := a.logger.Withn(
		logger.NewStringField(logfield.RunID, uuid.NewString()),
		logger.NewStringField(logfield.JobName, trigger.JobName),
		logger.NewStringField(logfield.TableName, a.artistsTableID),
	)
	trigger.log(log)

	queriedAt := a.now().UTC()

	var ids []string
	err := a.measure(stageWatermark, func() (err error) {
		ids, err = a.warehouse.MissingArtistIDs(ctx, a.sourceTableID, a.artistsTableID, spotify.PageSize)
		return err
	})
	if err != nil {
		return a.fail(ctx, log, stageWatermark, model.NewStageError(model.ErrWarehouseSetup, "Failed to query the missing artists from BigQuery.", err))
	}
	if len(ids) == 0 {
		return a.succeed(ctx, log, http.StatusAccepted, "No new data to upload")
	}
	log.Infon("Found missing artists", logger.NewIntField("missingArtists", int64(len(ids))))

	var accessToken string
	err = a.measure(stageAuth, func() (err error) {
		accessToken, err = a.api.ClientCredentials(ctx, a.spotify.ClientID, a.spotify.ClientSecret)
		return err
	})
	if err != nil {
		return a.fail(ctx, log, stageAuth, model.NewStageError(model.ErrAuth, "Failed to retrieve access token.", err))
	}

	var events []model.RawEvent
	err = a.measure(stageFetch, func() (err error) {
		events, err = a.api.Artists(ctx, accessToken, ids)
		return err
	})
	if err != nil {
		return a.fail(ctx, log, stageFetch, model.NewStageError(model.ErrFetch, "Failed to retrieve the data from the API.", err))
	}
	log.Infon("Fetched artists", logger.NewIntField(logfield.FetchedRows, int64(len(events))))

	var rows []model.Row
	err = a.measure(stageTransform, func() (err error) {
		rows, err = transform.FlattenArtists(events, queriedAt)
		return err
	})
	if err != nil {
		return a.fail(ctx, log, stageTransform, model.NewStageError(model.ErrTransform, "Failed to transform the data.", err))
	}

	err = a.measure(stageValidate, func() (err error) {
		rows, err = coerce(rows, schema.Artists)
		return err
	})
	if err != nil {
		return a.fail(ctx, log, stageValidate, model.NewStageError(model.ErrValidation, "Failed to apply data validation.", err))
	}
	if len(rows) == 0 {
		return a.succeed(ctx, log, http.StatusAccepted, "No new data to upload")
	}

	err = a.measure(stageLoad, func() error {
		return a.warehouse.Append(ctx, a.artistsTableID, schema.Artists, rows)
	})
	if err != nil {
		return a.fail(ctx, log, stageLoad, model.NewStageError(model.ErrLoad, "Failed to upload the data to BigQuery.", err))
	}
	a.loaded(len(rows))

	return a.succeed(ctx, log, http.StatusOK, fmt.Sprintf("Uploaded data about %d artists", len(rows)))
}

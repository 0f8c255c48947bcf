package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	kitconfig "github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/jsonrs"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	svcMetric "github.com/rudderlabs/rudder-go-kit/stats/metric"
	obskit "github.com/rudderlabs/rudder-observability-kit/go/labels"

	"github.com/rudderlabs/rudder-spotify-etl/config"
	"github.com/rudderlabs/rudder-spotify-etl/internal/model"
	"github.com/rudderlabs/rudder-spotify-etl/internal/pipeline"
	"github.com/rudderlabs/rudder-spotify-etl/internal/spotify"
	"github.com/rudderlabs/rudder-spotify-etl/internal/warehouse/bigquery"
	"github.com/rudderlabs/rudder-spotify-etl/services/alert"
)

const appName = "spotify-etl"

// ReleaseInfo holds the release information
type ReleaseInfo struct {
	Version   string
	Commit    string
	BuildDate string
	BuiltBy   string
}

// Warehouse is what both jobs need from the destination.
type Warehouse interface {
	pipeline.Warehouse
	pipeline.ArtistWarehouse
	Close() error
}

type WarehouseFactory func(ctx context.Context, conf *kitconfig.Config, cfg config.Config, log logger.Logger) (Warehouse, error)

// Runner is responsible for running a single job invocation
type Runner struct {
	releaseInfo  ReleaseInfo
	conf         *kitconfig.Config
	logger       logger.Logger
	stats        stats.Stats
	stdout       io.Writer
	newWarehouse WarehouseFactory
}

type Opt func(*Runner)

func WithConfig(conf *kitconfig.Config) Opt {
	return func(r *Runner) {
		r.conf = conf
	}
}

func WithLogger(log logger.Logger) Opt {
	return func(r *Runner) {
		r.logger = log
	}
}

func WithStats(s stats.Stats) Opt {
	return func(r *Runner) {
		r.stats = s
	}
}

func WithStdout(w io.Writer) Opt {
	return func(r *Runner) {
		r.stdout = w
	}
}

func WithWarehouse(f WarehouseFactory) Opt {
	return func(r *Runner) {
		r.newWarehouse = f
	}
}

// New creates and initializes a new Runner
func New(releaseInfo ReleaseInfo, opts ...Opt) *Runner {
	r := &Runner{
		releaseInfo:  releaseInfo,
		stdout:       os.Stdout,
		newWarehouse: newBigQuery,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run runs the command line application and returns the exit code
func (r *Runner) Run(ctx context.Context, args []string) int {
	var status *model.Status

	app := &cli.App{
		Name:    appName,
		Usage:   "load the listening history into BigQuery",
		Version: r.releaseInfo.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "load environment variables from a dotenv file",
			},
			&cli.StringFlag{
				Name:  "event",
				Usage: "trigger payload as inline JSON or @path to a file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "tracks",
				Usage: "append the recently played tracks newer than the stored watermark",
				Action: func(c *cli.Context) error {
					s, err := r.runJob(ctx, c, r.tracks)
					status = s
					return err
				},
			},
			{
				Name:  "artists",
				Usage: "append the metadata of artists not stored yet",
				Action: func(c *cli.Context) error {
					s, err := r.runJob(ctx, c, r.artists)
					status = s
					return err
				},
			},
		},
	}

	if err := app.RunContext(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if status == nil {
		// help or version
		return 0
	}
	if !status.IsSuccess() {
		return 1
	}
	return 0
}

type job func(ctx context.Context, env *environment, trigger pipeline.Trigger) model.Status

// environment is what a job invocation is wired with.
type environment struct {
	cfg    config.Config
	conf   *kitconfig.Config
	logger logger.Logger
	stats  stats.Stats
	alerts alert.AlertManager
}

func (r *Runner) runJob(ctx context.Context, c *cli.Context, run job) (*model.Status, error) {
	if err := config.LoadEnvFile(c.String("env-file")); err != nil {
		return nil, err
	}
	payload, err := readEvent(c.String("event"))
	if err != nil {
		return nil, err
	}

	conf := r.conf
	if conf == nil {
		conf = kitconfig.New()
	}
	log := r.logger
	if log == nil {
		log = logger.NewLogger()
	}
	log = log.Child("runner")

	statsFactory := r.stats
	if statsFactory == nil {
		statsFactory = stats.NewStats(conf, logger.Default, svcMetric.Instance,
			stats.WithServiceName(appName),
			stats.WithServiceVersion(r.releaseInfo.Version),
		)
		if err := statsFactory.Start(ctx, stats.DefaultGoRoutineFactory); err != nil {
			return nil, fmt.Errorf("starting stats: %w", err)
		}
		defer statsFactory.Stop()
	}

	cfg := config.Load(conf)
	env := &environment{
		cfg:    cfg,
		conf:   conf,
		logger: log,
		stats:  statsFactory,
		alerts: alert.New(alert.Opts{
			BotToken:       cfg.Telegram.BotToken,
			LoggingChatID:  cfg.Telegram.LoggingChatID,
			AlertingChatID: cfg.Telegram.AlertingChatID,
			BaseURL:        cfg.Telegram.BaseURL,
			Timeout:        cfg.Telegram.Timeout,
			RetryMax:       cfg.Telegram.RetryMax,
			RetryWaitMin:   cfg.Telegram.RetryWaitMin,
			RetryWaitMax:   cfg.Telegram.RetryWaitMax,
		}, log),
	}

	status := run(ctx, env, pipeline.Trigger{JobName: c.Command.Name, Payload: payload})

	out, err := jsonrs.Marshal(status)
	if err != nil {
		return &status, fmt.Errorf("marshalling status: %w", err)
	}
	if _, err := fmt.Fprintln(r.stdout, string(out)); err != nil {
		return &status, fmt.Errorf("writing status: %w", err)
	}
	return &status, nil
}

func (r *Runner) tracks(ctx context.Context, env *environment, trigger pipeline.Trigger) model.Status {
	if err := env.cfg.ValidateTracks(); err != nil {
		return alert.Respond(ctx, env.alerts, env.logger, http.StatusInternalServerError, "Invalid configuration.", err)
	}
	wh, status, ok := r.setupWarehouse(ctx, env)
	if !ok {
		return status
	}
	defer func() { _ = wh.Close() }()

	api := newSpotifyAPI(env.cfg.Spotify)
	return pipeline.NewTracks(env.cfg, api, wh, env.alerts, env.logger, env.stats).Run(ctx, trigger)
}

func (r *Runner) artists(ctx context.Context, env *environment, trigger pipeline.Trigger) model.Status {
	if err := env.cfg.ValidateArtists(); err != nil {
		return alert.Respond(ctx, env.alerts, env.logger, http.StatusInternalServerError, "Invalid configuration.", err)
	}
	wh, status, ok := r.setupWarehouse(ctx, env)
	if !ok {
		return status
	}
	defer func() { _ = wh.Close() }()

	api := newSpotifyAPI(env.cfg.Spotify)
	return pipeline.NewArtists(env.cfg, api, wh, env.alerts, env.logger, env.stats).Run(ctx, trigger)
}

func (r *Runner) setupWarehouse(ctx context.Context, env *environment) (Warehouse, model.Status, bool) {
	wh, err := r.newWarehouse(ctx, env.conf, env.cfg, env.logger)
	if err != nil {
		env.logger.Errorn("Setting up warehouse", obskit.Error(model.NewStageError(model.ErrWarehouseSetup, "connecting", err)))
		return nil, alert.Respond(ctx, env.alerts, env.logger, http.StatusInternalServerError, "Failed to set up BigQuery client", err), false
	}
	return wh, model.Status{}, true
}

func newBigQuery(ctx context.Context, conf *kitconfig.Config, cfg config.Config, log logger.Logger) (Warehouse, error) {
	bq := bigquery.New(conf, log)
	if err := bq.Setup(ctx, bigquery.Credentials{
		ProjectID:   cfg.Warehouse.ProjectID,
		Credentials: cfg.Warehouse.Credentials,
	}); err != nil {
		return nil, err
	}
	return bq, nil
}

// spotifyAPI uses a shorter timeout for token calls than for data calls.
type spotifyAPI struct {
	*spotify.API
	tokens *spotify.API
}

func (a spotifyAPI) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (string, error) {
	return a.tokens.RefreshToken(ctx, clientID, clientSecret, refreshToken)
}

func (a spotifyAPI) ClientCredentials(ctx context.Context, clientID, clientSecret string) (string, error) {
	return a.tokens.ClientCredentials(ctx, clientID, clientSecret)
}

func newSpotifyAPI(conf config.Spotify) spotifyAPI {
	return spotifyAPI{
		API:    spotify.New(conf.AccountsURL, conf.APIURL, &http.Client{Timeout: conf.DataTimeout}),
		tokens: spotify.New(conf.AccountsURL, conf.APIURL, &http.Client{Timeout: conf.TokenTimeout}),
	}
}

// readEvent returns the trigger payload given inline or as @path.
func readEvent(event string) ([]byte, error) {
	if event == "" {
		return nil, nil
	}
	if path, ok := strings.CutPrefix(event, "@"); ok {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading event file: %w", err)
		}
		return payload, nil
	}
	if !json.Valid([]byte(event)) {
		return nil, errors.New("event is not valid json")
	}
	return []byte(event), nil
}

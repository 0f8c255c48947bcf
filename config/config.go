package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"

	kitconfig "github.com/rudderlabs/rudder-go-kit/config"
)

const (
	defaultAccountsURL = "https://accounts.spotify.com"
	defaultAPIURL      = "https://api.spotify.com"
	defaultTelegramURL = "https://api.telegram.org"
)

// Config is everything a job run needs, resolved once at startup.
type Config struct {
	Spotify   Spotify
	Warehouse Warehouse
	Telegram  Telegram
}

type Spotify struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	AccountsURL  string
	APIURL       string
	TokenTimeout time.Duration
	DataTimeout  time.Duration
}

type Warehouse struct {
	// Credentials is the service account JSON or a path to it.
	Credentials string
	ProjectID   string

	TableID              string
	ArtistsSourceTableID string
	ArtistsTableID       string
}

type Telegram struct {
	BotToken       string
	LoggingChatID  string
	AlertingChatID string
	BaseURL        string

	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// LoadEnvFile loads variables from a dotenv file without overriding the ones already set.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %q: %w", path, err)
	}
	return nil
}

func Load(conf *kitconfig.Config) Config {
	c := Config{
		Spotify: Spotify{
			ClientID:     conf.GetString("SPOTIFY_CLIENT_ID", ""),
			ClientSecret: conf.GetString("SPOTIFY_CLIENT_SECRET", ""),
			RefreshToken: conf.GetString("REFRESH_TOKEN", ""),
			AccountsURL:  conf.GetString("Spotify.accountsURL", defaultAccountsURL),
			APIURL:       conf.GetString("Spotify.apiURL", defaultAPIURL),
			TokenTimeout: conf.GetDuration("Spotify.tokenTimeout", 10, time.Second),
			DataTimeout:  conf.GetDuration("Spotify.dataTimeout", 30, time.Second),
		},
		Warehouse: Warehouse{
			Credentials:          conf.GetString("SERVICE_ACCOUNT_PATH", ""),
			ProjectID:            conf.GetString("Warehouse.bigquery.projectID", ""),
			TableID:              conf.GetString("TABLE_ID", ""),
			ArtistsSourceTableID: conf.GetString("ARTISTS_SOURCE_TABLE_ID", ""),
			ArtistsTableID:       conf.GetString("ARTISTS_TABLE_ID", ""),
		},
		Telegram: Telegram{
			BotToken:       conf.GetString("TELEGRAM_BOT_TOKEN", ""),
			LoggingChatID:  conf.GetString("TELEGRAM_LOGGING_CHANNEL_ID", ""),
			AlertingChatID: conf.GetString("TELEGRAM_ALERTING_CHANNEL_ID", ""),
			BaseURL:        conf.GetString("Telegram.baseURL", defaultTelegramURL),
			Timeout:        conf.GetDuration("Telegram.timeout", 10, time.Second),
			RetryMax:       conf.GetInt("Telegram.maxRetry", 3),
			RetryWaitMin:   conf.GetDuration("Telegram.minRetryTime", 100, time.Millisecond),
			RetryWaitMax:   conf.GetDuration("Telegram.maxRetryTime", 2, time.Second),
		},
	}
	if c.Warehouse.ArtistsSourceTableID == "" {
		c.Warehouse.ArtistsSourceTableID = c.Warehouse.TableID
	}
	if c.Warehouse.ProjectID == "" {
		c.Warehouse.ProjectID = projectOf(lo.CoalesceOrEmpty(c.Warehouse.TableID, c.Warehouse.ArtistsTableID))
	}
	return c
}

// projectOf returns the project part of a project.dataset.table id.
func projectOf(tableID string) string {
	project, _, found := strings.Cut(strings.Trim(tableID, "`"), ".")
	if !found {
		return ""
	}
	return project
}

// ValidateTracks reports every missing setting of the tracks job.
func (c Config) ValidateTracks() error {
	return required(map[string]string{
		"SPOTIFY_CLIENT_ID":     c.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": c.Spotify.ClientSecret,
		"REFRESH_TOKEN":         c.Spotify.RefreshToken,
		"TABLE_ID":              c.Warehouse.TableID,
		"project id":            c.Warehouse.ProjectID,
	})
}

// ValidateArtists reports every missing setting of the artists job.
func (c Config) ValidateArtists() error {
	return required(map[string]string{
		"SPOTIFY_CLIENT_ID":       c.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET":   c.Spotify.ClientSecret,
		"ARTISTS_SOURCE_TABLE_ID": c.Warehouse.ArtistsSourceTableID,
		"ARTISTS_TABLE_ID":        c.Warehouse.ArtistsTableID,
		"project id":              c.Warehouse.ProjectID,
	})
}

func required(settings map[string]string) error {
	missing := lo.Filter(lo.Keys(settings), func(key string, _ int) bool {
		return strings.TrimSpace(settings[key]) == ""
	})
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	errs := lo.Map(missing, func(key string, _ int) error {
		return fmt.Errorf("%s is not set", key)
	})
	return errors.Join(errs...)
}

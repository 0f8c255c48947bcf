package alert

import (
	"context"
	"net/http"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/rudder-spotify-etl/internal/model"
)

// AlertManager delivers run outcomes to a human audience.
type AlertManager interface {
	// Alert posts message to the alerting channel when critical is set, to the logging channel otherwise.
	Alert(ctx context.Context, message string, critical bool)
}

type Opts struct {
	BotToken       string
	LoggingChatID  string
	AlertingChatID string
	BaseURL        string

	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// New returns the Telegram provider when a bot token is configured and the log provider otherwise.
func New(opts Opts, log logger.Logger) AlertManager {
	log = log.Child("alert")
	if opts.BotToken == "" {
		return &Log{logger: log}
	}
	return newTelegram(opts, log)
}

// Respond mirrors the outcome to the alert manager and returns it as a status.
// 200 and 202 are delivered as plain log messages, anything else as an alert.
func Respond(ctx context.Context, am AlertManager, log logger.Logger, statusCode int, message string, err error) model.Status {
	if err != nil {
		message = message + "\n" + err.Error()
	}
	status := model.NewStatus(statusCode, message)

	fields := []logger.Field{
		logger.NewIntField("statusCode", int64(statusCode)),
		logger.NewStringField("message", message),
	}
	switch statusCode {
	case http.StatusOK, http.StatusAccepted:
		log.Infon("Run finished", fields...)
		am.Alert(ctx, message, false)
	default:
		log.Errorn("Run failed", fields...)
		am.Alert(ctx, message, true)
	}
	return status
}

// Log only writes messages to the logger.
type Log struct {
	logger logger.Logger
}

func (l *Log) Alert(_ context.Context, message string, critical bool) {
	if critical {
		l.logger.Warnn("Alert", logger.NewStringField("message", message))
		return
	}
	l.logger.Infon("Notification", logger.NewStringField("message", message))
}

package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	kithttputil "github.com/rudderlabs/rudder-go-kit/httputil"
	"github.com/rudderlabs/rudder-go-kit/logger"
	obskit "github.com/rudderlabs/rudder-observability-kit/go/labels"
)

const DefaultTelegramURL = "https://api.telegram.org"

// Telegram posts messages through a bot to one of two chats.
type Telegram struct {
	botToken       string
	loggingChatID  string
	alertingChatID string
	baseURL        string

	client *retryablehttp.Client
	logger logger.Logger
}

func newTelegram(opts Opts, log logger.Logger) *Telegram {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = nil
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = opts.RetryWaitMin
	client.RetryWaitMax = opts.RetryWaitMax

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	return &Telegram{
		botToken:       opts.BotToken,
		loggingChatID:  opts.LoggingChatID,
		alertingChatID: opts.AlertingChatID,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		client:         client,
		logger:         log.Child("telegram"),
	}
}

// Alert never fails the caller; delivery errors are only logged.
func (t *Telegram) Alert(ctx context.Context, message string, critical bool) {
	chatID := t.loggingChatID
	if critical {
		chatID = t.alertingChatID
	}
	log := t.logger.Withn(
		logger.NewStringField("chatID", chatID),
		logger.NewBoolField("critical", critical),
	)
	if chatID == "" {
		log.Warnn("No chat configured, dropping message", logger.NewStringField("message", message))
		return
	}

	if err := t.send(ctx, chatID, message); err != nil {
		log.Errorn("Failed to send telegram message", obskit.Error(err))
		return
	}
	log.Debugn("Sent telegram message")
}

func (t *Telegram) send(ctx context.Context, chatID, message string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/bot"+t.botToken+"/sendMessage", nil)
	if err != nil {
		return t.redact(fmt.Errorf("creating request: %w", err))
	}
	req.URL.RawQuery = url.Values{
		"chat_id": []string{chatID},
		"text":    []string{message},
	}.Encode()

	resp, err := t.client.Do(req)
	if err != nil {
		return t.redact(fmt.Errorf("sending request: %w", err))
	}
	defer func() { kithttputil.CloseResponse(resp) }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !gjson.GetBytes(body, "ok").Bool() {
		return fmt.Errorf("invalid status code: %d, description: %s", resp.StatusCode, gjson.GetBytes(body, "description").String())
	}
	return nil
}

// redact removes the bot token from errors carrying the request url.
func (t *Telegram) redact(err error) error {
	return errors.New(strings.ReplaceAll(err.Error(), t.botToken, "<redacted>"))
}

package spotify

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rudderlabs/rudder-go-kit/httputil"

	"github.com/rudderlabs/rudder-spotify-etl/internal/model"
)

const (
	DefaultAccountsURL = "https://accounts.spotify.com"
	DefaultAPIURL      = "https://api.spotify.com"

	// PageSize is the provider's maximum page size, used for both endpoints.
	PageSize = 50
)

type requestDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// API talks to the provider's accounts and web API hosts.
type API struct {
	accountsURL string
	apiURL      string
	requestDoer requestDoer
}

func New(accountsURL, apiURL string, requestDoer requestDoer) *API {
	return &API{
		accountsURL: strings.TrimSuffix(accountsURL, "/"),
		apiURL:      strings.TrimSuffix(apiURL, "/"),
		requestDoer: requestDoer,
	}
}

// do sends the request and returns the body of a 2xx response.
func (a *API) do(req *http.Request, what string) ([]byte, error) {
	resp, err := a.requestDoer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending %s request: %w", what, err)
	}
	defer func() { httputil.CloseResponse(resp) }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", what, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("invalid status code for %s: %d, body: %s", what, resp.StatusCode, errorMessage(body))
	}
	return body, nil
}

// errorMessage extracts the provider's error description when there is one.
func errorMessage(body []byte) string {
	for _, path := range []string{"error.message", "error_description"} {
		if r := gjson.GetBytes(body, path); r.Exists() {
			return r.String()
		}
	}
	return string(body)
}

// items returns the elements of the array at path, skipping null entries.
func items(body []byte, path string) ([]model.RawEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json response")
	}
	r := gjson.GetBytes(body, path)
	if !r.IsArray() {
		return nil, fmt.Errorf("response has no %q array", path)
	}
	events := make([]model.RawEvent, 0, len(r.Array()))
	for _, item := range r.Array() {
		if item.Type == gjson.Null {
			continue
		}
		events = append(events, model.RawEvent(item.Raw))
	}
	return events, nil
}

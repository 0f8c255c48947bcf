package model

import (
	"encoding/json"
	"net/http"
	"time"
)

// Epoch is the watermark used when nothing has been loaded yet.
var Epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// RawEvent is a single item as returned by the provider, untouched.
type RawEvent = json.RawMessage

// Row is one flattened warehouse row keyed by column name. A nil value is a null.
type Row map[string]any

// Watermark is the greatest event timestamp already stored in the destination table.
type Watermark struct {
	Exists bool
	At     time.Time
}

// Cursor returns the unix seconds used as the paging cursor for the watermark.
// The provider rejects a zero cursor, so the floor is one second past the epoch.
func (w Watermark) Cursor() int64 {
	if c := w.At.Unix(); c > 0 {
		return c
	}
	return 1
}

type StatusBody struct {
	Message string `json:"message"`
}

// Status is the terminal outcome of a run.
type Status struct {
	StatusCode int        `json:"status_code"`
	Body       StatusBody `json:"body"`
}

func NewStatus(statusCode int, message string) Status {
	return Status{StatusCode: statusCode, Body: StatusBody{Message: message}}
}

func (s Status) IsSuccess() bool {
	return s.StatusCode == http.StatusOK || s.StatusCode == http.StatusAccepted
}

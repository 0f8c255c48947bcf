package middleware

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/rudder-spotify-etl/internal/warehouse/logfield"
)

// Client wraps query execution and logs the queries slower than the threshold.
type Client struct {
	client             *bigquery.Client
	logger             logger.Logger
	fields             []logger.Field
	since              func(time.Time) time.Duration
	slowQueryThreshold time.Duration
}

type Opt func(*Client)

func WithLogger(logger logger.Logger) Opt {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithFields(fields ...logger.Field) Opt {
	return func(c *Client) {
		c.fields = append(c.fields, fields...)
	}
}

func WithSlowQueryThreshold(slowQueryThreshold time.Duration) Opt {
	return func(c *Client) {
		c.slowQueryThreshold = slowQueryThreshold
	}
}

func WithSince(since func(time.Time) time.Duration) Opt {
	return func(c *Client) {
		c.since = since
	}
}

func New(client *bigquery.Client, opts ...Opt) *Client {
	c := &Client{
		client:             client,
		logger:             logger.NOP,
		since:              time.Since,
		slowQueryThreshold: 300 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Read(ctx context.Context, query *bigquery.Query) (*bigquery.RowIterator, error) {
	defer c.observe(query.Q, time.Now())

	return query.Read(ctx)
}

func (c *Client) observe(query string, startedAt time.Time) {
	executionTime := c.since(startedAt)
	if !c.isSlow(executionTime) {
		return
	}
	fields := append([]logger.Field{
		logger.NewStringField(logfield.Query, query),
		logger.NewDurationField(logfield.QueryExecutionTime, executionTime),
	}, c.fields...)
	c.logger.Infon("executing query", fields...)
}

func (c *Client) isSlow(executionTime time.Duration) bool {
	return executionTime > c.slowQueryThreshold
}

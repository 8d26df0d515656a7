// Package client provides a client for the Flink REST API job endpoints.
package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/flinkwatch/internal/flink"
	"github.com/raphaelgruber/flinkwatch/internal/metrics"
)

var (
	// ErrJobNotFound indicates the job id is not part of the overview.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidRecords indicates that strict mode rejected an overview because at least
	// one job record failed to decode.
	ErrInvalidRecords = errors.New("invalid job records")
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 16 << 20

// Config holds the connection settings for one Flink cluster.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// Strict fails ListJobs when any job record is rejected. Otherwise rejected records
	// are logged and returned next to the decoded jobs.
	Strict bool
}

// Client talks to the Flink REST API.
type Client struct {
	baseURL    string
	authHeader string
	strict     bool
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for rejected records and request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records fetch and decode timings.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a new Flink REST client.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		strict:     cfg.Strict,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	if cfg.Username != "" {
		c.authHeader = BasicAuth(cfg.Username, cfg.Password)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BasicAuth returns the Authorization header value for HTTP basic auth.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// Overview is the result of ListJobs.
type Overview struct {
	Jobs     []flink.Job
	Rejected []flink.Rejected
}

// ListJobs fetches /jobs/overview and decodes every job record.
func (c *Client) ListJobs(ctx context.Context) (*Overview, error) {
	body, err := c.get(ctx, "/jobs/overview")
	if err != nil {
		return nil, err
	}

	done := c.metrics.Time(metrics.OpDecode)
	v, err := flink.ParseJSON(body)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("decode overview: %w", err)
	}
	ov, err := flink.DecodeOverview(v)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("decode overview: %w", err)
	}

	c.metrics.Add(metrics.CountDecoded, int64(len(ov.Jobs)))
	c.metrics.Add(metrics.CountRejected, int64(len(ov.Rejected)))

	if len(ov.Rejected) > 0 {
		if c.strict {
			errs := make([]error, 0, len(ov.Rejected)+1)
			errs = append(errs, ErrInvalidRecords)
			for _, r := range ov.Rejected {
				errs = append(errs, r)
			}
			return nil, errors.Join(errs...)
		}
		for _, r := range ov.Rejected {
			c.logger.Warn("skipping job record", "index", r.Index, "jid", r.ID, "error", r.Err)
		}
	}

	return &Overview{Jobs: ov.Jobs, Rejected: ov.Rejected}, nil
}

// GetJob returns the overview entry of one job.
func (c *Client) GetJob(ctx context.Context, jid string) (*flink.Job, error) {
	ov, err := c.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range ov.Jobs {
		if ov.Jobs[i].ID == jid {
			return &ov.Jobs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jid)
}

func (c *Client) get(ctx context.Context, path string) (_ []byte, err error) {
	done := c.metrics.Time(metrics.OpFetch)
	defer func() { done(err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("flink request", "path", path, "status", resp.StatusCode,
		"request_id", requestID, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flink error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

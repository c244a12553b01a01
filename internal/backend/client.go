package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"healsync-portal/internal/logging"
	"healsync-portal/internal/metrics"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 15 * time.Second
)

// Options configures a Client.
type Options struct {
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	HTTPClient   *http.Client
	Logger       *logging.Logger
	Metrics      *metrics.PortalMetrics
}

// Client wraps the HealSync REST API. Every call runs under its own deadline.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *logging.Logger
	metrics      *metrics.PortalMetrics
	tracer       trace.Tracer
}

// NewClient constructs a HealSync API client.
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Client{
		httpClient:   opts.HTTPClient,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		tracer:       otel.Tracer("healsync.internal.backend"),
	}
}

// call describes one request against the API.
type call struct {
	op     string
	method string
	path   string
	token  string
	body   any
}

func (c *Client) do(ctx context.Context, req call) ([]byte, error) {
	timeout := c.readTimeout
	if req.method != http.MethodGet {
		timeout = c.writeTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	callCtx, span := c.tracer.Start(callCtx, "backend."+req.op, trace.WithAttributes(
		attribute.String("http.method", req.method),
		attribute.String("http.route", req.path),
	))
	defer span.End()

	start := time.Now()
	body, err := c.roundTrip(callCtx, req)
	outcome := "ok"
	switch {
	case err == nil:
	case IsTimeout(err):
		outcome = "timeout"
	case errors.Is(err, ErrUnavailable):
		outcome = "network"
	case StatusCode(err) != 0:
		outcome = fmt.Sprintf("%dxx", StatusCode(err)/100)
	default:
		outcome = "error"
	}
	c.metrics.ObserveUpstream(req.op, outcome, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, req call) ([]byte, error) {
	var bodyReader io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("backend: %s: marshal request: %w", req.op, err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("backend: %s: build request: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, req, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, req, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(respBody)
		c.logger.Warn("backend non-2xx response", "operation", req.op, "status", resp.StatusCode, "path", req.path, "body", msg)
		return nil, &StatusError{Operation: req.op, Code: resp.StatusCode, Message: msg}
	}
	return respBody, nil
}

func (c *Client) transportError(ctx context.Context, req call, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		c.logger.Warn("backend call timed out", "operation", req.op, "path", req.path)
		return fmt.Errorf("%w: %s", ErrTimeout, req.op)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("backend: %s: %w", req.op, ctx.Err())
	}
	c.logger.Warn("backend unreachable", "operation", req.op, "path", req.path, "error", err)
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, req.op, err)
}

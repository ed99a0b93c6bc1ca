// Package apiclient wraps every call the front-end makes to the REST
// backend and normalizes failures into *errors.AppError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/middleware"
	"digital-clone/frontend/pkg/observability"
	"digital-clone/frontend/pkg/resilience"
	"digital-clone/frontend/pkg/validator"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const maxResponseBytes = 32 << 20

// TokenSource supplies the bearer token for authenticated calls.
// It returns an unauthorized AppError when no usable token exists.
type TokenSource interface {
	Token() (string, error)
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBreaker guards all calls with a circuit breaker
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// WithValidator checks 2xx responses against the backend description
func WithValidator(v *validator.ResponseValidator) Option {
	return func(c *Client) { c.validator = v }
}

// WithMetrics records call latency
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the client logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client calls the digital clone REST backend
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	breaker   *resilience.CircuitBreaker
	validator *validator.ResponseValidator
	metrics   *observability.Metrics
	tracer    trace.Tracer
	log       *logger.Logger
}

// New creates a client for the backend at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		tracer:  otel.Tracer("digital-clone/frontend/apiclient"),
		log:     logger.GetGlobal(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewBreaker returns a circuit breaker that only counts backend faults:
// transport errors and 5xx answers. Client errors never open it.
func NewBreaker(cfg resilience.Config, log *logger.Logger) *resilience.CircuitBreaker {
	cfg.IsFailure = IsBackendFault
	return resilience.NewCircuitBreaker(cfg, log)
}

// WithTokens returns a copy of the client bound to a session's tokens
func (c *Client) WithTokens(ts TokenSource) *Client {
	clone := *c
	clone.tokens = ts
	return &clone
}

// BaseURL returns the backend root
func (c *Client) BaseURL() string {
	return c.baseURL
}

type call struct {
	op     string
	method string
	path   string
	body   any
	auth   bool
}

// do performs one JSON call. out may be nil for calls without a body.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	resp, err := c.send(ctx, cl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.NewNetworkError(resp.StatusCode, "failed to read backend response").WithCause(err)
	}

	if c.validator != nil {
		if err := c.validator.ValidateResponse(ctx, resp.Request, resp.StatusCode, resp.Header, data); err != nil {
			c.log.Warn("Backend response failed schema validation", "operation", cl.op, "error", err.Error())
			return errors.NewShapeError(fmt.Sprintf("%s: response does not match schema", cl.op)).WithCause(err)
		}
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.NewShapeError(fmt.Sprintf("%s: empty response", cl.op))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.NewShapeError(fmt.Sprintf("%s: malformed response", cl.op)).WithCause(err)
	}
	return nil
}

// send issues the request and returns a 2xx response whose body the
// caller must close. Every failure is already normalized.
func (c *Client) send(ctx context.Context, cl call) (resp *http.Response, err error) {
	ctx, span := c.tracer.Start(ctx, "apiclient."+cl.op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", cl.method),
			attribute.String("http.route", cl.path),
		))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.log.Warn("Backend call failed",
				"operation", cl.op,
				"kind", string(errors.KindOf(err)),
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		span.End()
		c.metrics.RecordAPICall(ctx, cl.op, time.Since(start).Seconds(), err)
	}()

	var token string
	if cl.auth {
		if c.tokens == nil {
			return nil, errors.NewUnauthorizedError("TOKEN_MISSING", "sign in to continue")
		}
		token, err = c.tokens.Token()
		if err != nil {
			if errors.IsKind(err, errors.KindUnauthorized) {
				return nil, err
			}
			return nil, errors.NewUnauthorizedError("TOKEN_UNAVAILABLE", "sign in to continue").WithCause(err)
		}
	}

	var payload []byte
	if cl.body != nil {
		if payload, err = json.Marshal(cl.body); err != nil {
			return nil, errors.NewValidationError("INVALID_REQUEST", "request body could not be encoded").WithCause(err)
		}
	}

	exec := func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
		if err != nil {
			return errors.NewNetworkError(0, "failed to build request").WithCause(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if id := middleware.GetRequestID(ctx); id != "" {
			req.Header.Set(middleware.RequestIDHeader, id)
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		r, err := c.http.Do(req)
		if err != nil {
			return errors.NewNetworkError(0, "backend unreachable").WithCause(err)
		}
		span.SetAttributes(attribute.Int("http.status_code", r.StatusCode))

		if r.StatusCode < 200 || r.StatusCode >= 300 {
			defer r.Body.Close()
			return statusError(cl.op, r)
		}
		resp = r
		return nil
	}

	if c.breaker == nil {
		err = exec(ctx)
	} else {
		err = c.breaker.Execute(ctx, exec)
		if stderrors.Is(err, resilience.ErrOpen) {
			err = errors.NewNetworkError(0, "backend temporarily unavailable").WithCause(err)
		}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func statusError(op string, r *http.Response) error {
	msg := backendMessage(r.Body)

	switch r.StatusCode {
	case http.StatusUnauthorized:
		if msg == "" {
			msg = "session expired, sign in again"
		}
		return errors.NewUnauthorizedError("BACKEND_UNAUTHORIZED", msg)
	case http.StatusNotFound:
		if msg == "" {
			msg = "not found"
		}
		return errors.NewNotFoundError("NOT_FOUND", msg)
	}

	if msg == "" {
		msg = fmt.Sprintf("%s failed with status %d", op, r.StatusCode)
	}
	return errors.NewNetworkError(r.StatusCode, msg)
}

// backendMessage extracts a human-readable message from the common
// error envelopes: {"error":"..."}, {"detail":"..."}, {"message":"..."}
// and {"error":{"message":"..."}}
func backendMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}

	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(data, &envelope) != nil {
		return ""
	}

	for _, raw := range []json.RawMessage{envelope.Error, envelope.Detail} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return envelope.Message
}

// IsBackendFault reports whether err means the backend itself is
// unhealthy, as opposed to rejecting this particular request
func IsBackendFault(err error) bool {
	appErr, ok := errors.As(err)
	if !ok {
		return true
	}
	if appErr.Kind != errors.KindNetwork {
		return false
	}
	details, _ := appErr.Details.(map[string]int)
	status := details["status"]
	return status == 0 || status >= 500
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

const maxErrorBody = 4 << 10

// Backend talks to the insurance REST backend. Its http.Client is expected
// to use a BearerTransport so every call carries the caller's credential.
type Backend struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewBackend creates a backend client. At most cfg.MaxConcurrency calls are
// in flight at once; further callers wait for a slot or their context.
func NewBackend(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Backend {
	return &Backend{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:        cfg,
		logger:     logger,
	}
}

// call describes one backend request.
type call struct {
	method   string
	path     string
	query    url.Values
	body     any
	out      any
	resource string
	id       string
	headers  map[string]string
}

// do executes c with circuit breaker, retry and tracing, decoding the JSON
// answer into c.out when set.
func (b *Backend) do(ctx context.Context, c call) error {
	ctx, span := tracer.Start(ctx, "Backend "+c.method+" "+c.resource)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", c.method),
		attribute.String("backend.path", c.path),
	)

	var payload []byte
	if c.body != nil {
		var err error
		payload, err = json.Marshal(c.body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", c.resource, err)
		}
	}

	target := b.baseURL + c.path
	if len(c.query) > 0 {
		target += "?" + c.query.Encode()
	}

	if err := b.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer b.bulkhead.Release()

	_, err := b.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, b.cfg, func() error {
			var body io.Reader
			if payload != nil {
				body = bytes.NewReader(payload)
			}
			req, err := http.NewRequestWithContext(ctx, c.method, target, body)
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Accept", "application/json")
			if payload != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			for k, v := range c.headers {
				req.Header.Set(k, v)
			}

			resp, err := b.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
				return statusError(c.resource, c.id, resp.StatusCode, raw)
			}

			if c.out == nil || resp.StatusCode == http.StatusNoContent {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(c.out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode %s: %w", c.resource, err))
			}
			return nil
		})
	})

	if err == nil {
		return nil
	}
	span.RecordError(err)
	return b.classify(c, err)
}

// classify turns transport, breaker and status errors into domain errors.
func (b *Backend) classify(c call, err error) error {
	switch {
	case resilience.IsBreakerOpen(err):
		return &domain.ErrCircuitOpen{Service: "backend"}
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.ErrTimeout{Operation: c.method + " " + c.path}
	case errors.Is(err, context.Canceled):
		return err
	case resilience.IsPermanent(err):
		inner := resilience.Unwrap(err)
		if isDomainError(inner) {
			return inner
		}
		return &domain.ErrExternalService{Service: "backend", Err: inner}
	}
	b.logger.Warn("backend call failed",
		zap.String("method", c.method),
		zap.String("path", c.path),
		zap.Error(err),
	)
	return &domain.ErrExternalService{Service: "backend", Err: err}
}

func isDomainError(err error) bool {
	var (
		notFound     *domain.ErrNotFound
		validation   *domain.ErrValidation
		forbidden    *domain.ErrForbidden
		unauthorized *domain.ErrUnauthorized
		conflict     *domain.ErrConflict
	)
	return errors.As(err, &notFound) || errors.As(err, &validation) ||
		errors.As(err, &forbidden) || errors.As(err, &unauthorized) ||
		errors.As(err, &conflict)
}

// statusError maps a non-2xx backend answer. 4xx answers are permanent.
func statusError(resource, id string, status int, raw []byte) error {
	msg := backendMessage(raw)
	switch {
	case status == http.StatusNotFound:
		return resilience.Permanent(&domain.ErrNotFound{Resource: resource, ID: id})
	case status == http.StatusUnauthorized:
		return resilience.Permanent(&domain.ErrUnauthorized{Message: msg})
	case status == http.StatusForbidden:
		return resilience.Permanent(&domain.ErrForbidden{Action: resource})
	case status == http.StatusConflict:
		return resilience.Permanent(&domain.ErrConflict{Message: orDefault(msg, resource+" already exists")})
	case status >= 400 && status < 500:
		return resilience.Permanent(&domain.ErrValidation{Field: resource, Message: orDefault(msg, http.StatusText(status))})
	}
	return fmt.Errorf("backend returned status %d for %s", status, resource)
}

// backendMessage extracts {"message": "..."} or {"error": "..."} from an error body.
func backendMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Ping checks the backend is reachable (used by /healthz).
func (b *Backend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend health returned status %d", resp.StatusCode)
	}
	return nil
}

// Package telemetry wraps Sentry tracing for the ingest, index, retrieval and
// generation paths. Every helper is a no-op when Sentry was never initialized.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/getsentry/sentry-go"
)

const serverName = "coverdraftd"

type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	Debug            bool
}

// Init initializes Sentry and returns a flush function. An empty DSN yields a
// no-op flush. Health checks are never sampled.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	rate := cfg.TracesSampleRate
	err := sentry.Init(sentry.ClientOptions{
		Dsn:           cfg.DSN,
		Environment:   cfg.Environment,
		Release:       cfg.Release,
		EnableTracing: true,
		Debug:         cfg.Debug,
		ServerName:    serverName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			if ctx.Span.Name == "GET /health" {
				return 0
			}
			return rate
		}),
	})
	if err != nil {
		return func() {}, err
	}

	slog.Info("sentry tracing initialized", "environment", cfg.Environment, "sample_rate", rate)
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// SpanAttributes are tagged onto a span when set.
type SpanAttributes struct {
	DocumentID   string
	DocumentType string
	JobID        string
	Provider     string
	Operation    string
}

// Span is a nil-safe handle on a Sentry span.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

func (s *Span) SetStatus(status sentry.SpanStatus) {
	if s.inner != nil {
		s.inner.Status = status
	}
}

// SetData records a measurement such as a chunk or result count.
func (s *Span) SetData(key string, value interface{}) {
	if s.inner != nil {
		s.inner.SetData(key, value)
	}
}

// SetError marks the span as failed. Client errors (validation, not found)
// only set the status; everything else is also captured as an exception.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		switch de.Code {
		case domain.ErrCodeValidation:
			s.inner.Status = sentry.SpanStatusInvalidArgument
			return
		case domain.ErrCodeNotFound:
			s.inner.Status = sentry.SpanStatusNotFound
			return
		}
	}
	if errors.Is(err, context.Canceled) {
		s.inner.Status = sentry.SpanStatusCanceled
		return
	}

	s.inner.Status = sentry.SpanStatusInternalError
	CaptureError(s.inner.Context(), err)
}

func (s *Span) Context() context.Context {
	if s.inner != nil {
		return s.inner.Context()
	}
	return context.Background()
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// there is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	tags := map[string]string{
		"document_id":   attrs.DocumentID,
		"document_type": attrs.DocumentType,
		"job_id":        attrs.JobID,
		"provider":      attrs.Provider,
	}
	for k, v := range tags {
		if v != "" {
			span.SetTag(k, v)
		}
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}

	return span.Context(), &Span{inner: span}
}

// CaptureError reports err on the hub bound to ctx, falling back to the
// global hub.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

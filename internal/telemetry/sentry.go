// Package telemetry wraps Sentry tracing for the ingestion and
// synthesis pipelines.
package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

const serviceName = "medassist"

// flushTimeout bounds how long shutdown waits for pending events.
const flushTimeout = 5 * time.Second

// Config holds Sentry initialization settings.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init configures Sentry and returns a shutdown function that flushes
// pending events. An empty DSN disables telemetry entirely; an init
// failure is logged and the service runs without tracing.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}

	env := cfg.Environment
	if env == "" {
		env = "development"
	}
	rate := cfg.TracesSampleRate
	if rate == 0 {
		rate = 1.0
	}

	opts := sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      env,
		EnableTracing:    true,
		TracesSampleRate: rate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler: sentry.TracesSampler(func(sc sentry.SamplingContext) float64 {
			// Health probes would dominate the trace volume.
			if sc.Span.Name == "GET /health" || sc.Span.Op == "http.server GET /health" {
				return 0.0
			}
			// Child spans inherit the parent's decision.
			var root sentry.SpanID
			if sc.Span.ParentSpanID != root {
				if sc.Span.Sampled.Bool() {
					return 1.0
				}
				return 0.0
			}
			return rate
		}),
	}
	if err := sentry.Init(opts); err != nil {
		log.Printf("sentry: init failed, tracing disabled: %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: tracing enabled (environment=%s sample_rate=%.2f)", env, rate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// SpanAttributes tags a span with pipeline identifiers.
type SpanAttributes struct {
	ThreadID   string
	ResourceID string
	Section    string
	Operation  string
}

// Span is a nil-safe handle around a sentry span. Methods are no-ops
// when tracing is disabled.
type Span struct {
	inner *sentry.Span
}

// StartSpan opens a span named after the operation. Inside an existing
// transaction it becomes a child span; otherwise it starts a new
// transaction so background work (jobs, CLI paths) is traced too.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	if attrs.ThreadID != "" {
		span.SetTag("thread_id", attrs.ThreadID)
	}
	if attrs.ResourceID != "" {
		span.SetTag("resource_id", attrs.ResourceID)
	}
	if attrs.Section != "" {
		span.SetTag("section", attrs.Section)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}

	return span.Context(), &Span{inner: span}
}

// End finishes the span.
func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span failed and reports the error.
func (s *Span) SetError(err error) {
	if s.inner == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

// CaptureError reports an error outside of a span, preferring the
// request-scoped hub when one is present.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

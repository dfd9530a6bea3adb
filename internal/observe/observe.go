// Package observe exports run traces to Langfuse over OTLP.
package observe

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/config"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

const instrumentationName = "github.com/vinodsharma/lg-deepresearch-agent"

// Langfuse trace attributes.
const (
	attrTraceName = "langfuse.trace.name"
	attrUserID    = "langfuse.user.id"
	attrSessionID = "langfuse.session.id"
	attrTags      = "langfuse.trace.tags"
	attrRequestID = "langfuse.trace.metadata.request_id"
)

// RunInfo identifies a traced agent run.
type RunInfo struct {
	Name      string
	UserID    string
	SessionID string
	RequestID string
	Tags      []string
}

// Start installs a global tracer provider exporting to Langfuse. When no
// Langfuse credentials are configured it leaves the no-op provider in place.
func Start(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.LangfuseEnabled() {
		log.Infof("Langfuse credentials not set; tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(strings.TrimRight(cfg.LangfuseHost, "/")+"/api/public/otel/v1/traces"),
		otlptracehttp.WithHeaders(map[string]string{
			"Authorization": "Basic " + encodeAuth(cfg.LangfusePublicKey, cfg.LangfuseSecretKey),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	log.Infof("Tracing to %s", cfg.LangfuseHost)
	return tp.Shutdown, nil
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartRun opens the root span of an agent run carrying the Langfuse trace
// attributes.
func StartRun(ctx context.Context, info RunInfo) (context.Context, trace.Span) {
	name := info.Name
	if name == "" {
		name = "agent_run"
	}
	attrs := []attribute.KeyValue{attribute.String(attrTraceName, name)}
	if info.UserID != "" {
		attrs = append(attrs, attribute.String(attrUserID, info.UserID))
	}
	if info.SessionID != "" {
		attrs = append(attrs, attribute.String(attrSessionID, info.SessionID))
	}
	if info.RequestID != "" {
		attrs = append(attrs, attribute.String(attrRequestID, info.RequestID))
	}
	if len(info.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice(attrTags, info.Tags))
	}
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartSpan opens a child span, e.g. for a model call or a tool execution.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func encodeAuth(pk, sk string) string {
	return base64.StdEncoding.EncodeToString([]byte(pk + ":" + sk))
}

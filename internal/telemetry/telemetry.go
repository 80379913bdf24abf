// Package telemetry traces install runs, one span per step.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const TracerName = "github.com/kayleschmoyer/Fv2/install"

type Config struct {
	// Exporter is "none" or "log".
	Exporter string
	Logger   *slog.Logger
}

type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup builds the tracer provider for cfg. A nil *Provider (exporter none)
// hands out no-op tracers.
func Setup(cfg Config) (*Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Exporter)) {
	case "", "none":
		return nil, nil
	case "log":
		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&logProcessor{log: logger}))
		return &Provider{tp: tp}, nil
	default:
		return nil, fmt.Errorf("telemetry: unknown exporter %q", cfg.Exporter)
	}
}

func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tp == nil {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	return p.tp.Tracer(TracerName)
}

// Register makes p the global provider.
func (p *Provider) Register() {
	if p != nil && p.tp != nil {
		otel.SetTracerProvider(p.tp)
	}
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// logProcessor writes one slog record per finished span.
type logProcessor struct {
	log *slog.Logger
}

func (l *logProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (l *logProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	attrs := []any{
		"span", s.Name(),
		"duration", s.EndTime().Sub(s.StartTime()).String(),
		"status", s.Status().Code.String(),
	}
	for _, kv := range s.Attributes() {
		attrs = append(attrs, string(kv.Key), kv.Value.Emit())
	}
	if desc := s.Status().Description; desc != "" {
		attrs = append(attrs, "error", desc)
	}
	l.log.Debug("trace", attrs...)
}

func (l *logProcessor) Shutdown(context.Context) error   { return nil }
func (l *logProcessor) ForceFlush(context.Context) error { return nil }

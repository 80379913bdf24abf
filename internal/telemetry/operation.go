package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	RunSpanName  = "install.run"
	StepSpanName = "install.step"

	AttrRunID     = "run.id"
	AttrStepID    = "step.id"
	AttrStepTitle = "step.title"
	AttrStepCount = "run.steps"
)

// Run is the parent span of one pass over the step list.
type Run struct {
	ctx    context.Context
	tracer trace.Tracer
	span   trace.Span
}

func StartRun(ctx context.Context, tracer trace.Tracer, runID string, steps int) *Run {
	if tracer == nil {
		return &Run{ctx: ctx}
	}
	spanCtx, span := tracer.Start(ctx, RunSpanName, trace.WithAttributes(
		attribute.String(AttrRunID, runID),
		attribute.Int(AttrStepCount, steps),
	))
	return &Run{ctx: spanCtx, tracer: tracer, span: span}
}

func (r *Run) Context() context.Context { return r.ctx }

// RunStep wraps fn in a step span and records its error.
func (r *Run) RunStep(ctx context.Context, id, title string, fn func(context.Context) error) error {
	if r == nil || r.tracer == nil {
		return fn(ctx)
	}
	stepCtx, span := r.tracer.Start(ctx, StepSpanName, trace.WithAttributes(
		attribute.String(AttrStepID, id),
		attribute.String(AttrStepTitle, title),
	))
	defer span.End()

	if err := fn(stepCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Skip records a disabled step as a span event on the run.
func (r *Run) Skip(id, reason string) {
	if r == nil || r.span == nil {
		return
	}
	r.span.AddEvent("step.skipped", trace.WithAttributes(
		attribute.String(AttrStepID, id),
		attribute.String("reason", reason),
	))
}

func (r *Run) End(err error) {
	if r == nil || r.span == nil {
		return
	}
	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	r.span.End()
}

package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dusk-indust/foresight/internal/forecast"
)

const tracerName = "github.com/dusk-indust/foresight/internal/pipeline"

// startStageSpan opens a span around one stage execution. With no tracer
// provider registered this is a no-op span.
func startStageSpan(ctx context.Context, forecastID string, stage forecast.Stage) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(
			attribute.String("forecast.id", forecastID),
			attribute.String("forecast.stage", string(stage)),
		))
}

// recordStageSpan annotates the span with the stage outcome.
func recordStageSpan(span trace.Span, result *StageResult, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if result == nil {
		return
	}
	span.SetAttributes(
		attribute.String("forecast.stage_status", string(result.Status)),
		attribute.Int("forecast.contributions", len(result.Contributions)),
		attribute.Int64("forecast.elapsed_ms", result.ElapsedMS),
	)
	if result.Err != nil {
		span.RecordError(result.Err)
	}
	span.SetStatus(codes.Ok, "")
}

package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns events into OpenTelemetry spans.
//
// Each event becomes a span named after event.Msg with the execution,
// workflow, node, and level recorded as attributes, plus every Meta field.
// Spans are ended immediately: events represent points in time, and the
// batch span processor handles export efficiency.
//
// The emitter depends only on the OpenTelemetry API; wiring a concrete
// TracerProvider (Jaeger, OTLP, ...) is the application's concern:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	emitter := emit.NewOTelEmitter(otel.Tracer("dagflow"))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter from a tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates and ends one span for the event. If Meta carries an "error"
// string the span status is set to error and the error is recorded.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("dagflow.execution_id", event.ExecutionID),
		attribute.String("dagflow.workflow_id", event.WorkflowID),
		attribute.Int("dagflow.level", event.Level),
	)
	if event.NodeID != "" {
		span.SetAttributes(attribute.String("dagflow.node_id", event.NodeID))
	}

	for key, value := range event.Meta {
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String("dagflow.meta."+key, v))
		case bool:
			span.SetAttributes(attribute.Bool("dagflow.meta."+key, v))
		case int:
			span.SetAttributes(attribute.Int("dagflow.meta."+key, v))
		case int64:
			span.SetAttributes(attribute.Int64("dagflow.meta."+key, v))
		case float64:
			span.SetAttributes(attribute.Float64("dagflow.meta."+key, v))
		default:
			span.SetAttributes(attribute.String("dagflow.meta."+key, fmt.Sprintf("%v", v)))
		}
	}

	if errMsg, ok := event.Meta["error"].(string); ok && errMsg != "" {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter converts events into OpenTelemetry spans so workflow runs
// show up in distributed traces. Each event becomes a span named after
// Event.Msg with run_id, step, and step_name attributes plus the Meta
// fields; an "error" meta entry marks the span as failed.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an emitter on the given tracer:
//
//	tracer := otel.Tracer("forgeflow")
//	emitter := emit.NewOTelEmitter(tracer)
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit implements Emitter.
func (o *OTelEmitter) Emit(event Event) {
	if o.tracer == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("run_id", event.RunID),
		attribute.Int("step", event.Step),
		attribute.String("step_name", event.StepName),
	}
	for k, v := range event.Meta {
		attrs = append(attrs, metaAttribute(k, v))
	}

	_, span := o.tracer.Start(context.Background(), event.Msg, trace.WithAttributes(attrs...))
	if errVal, ok := event.Meta["error"]; ok {
		span.SetStatus(codes.Error, fmt.Sprint(errVal))
	}
	span.End()
}

// metaAttribute maps a meta value onto the closest OTel attribute type.
func metaAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}

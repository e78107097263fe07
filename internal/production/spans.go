package production

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/comalice/safetyx"
)

const tracerName = "github.com/comalice/safetyx/internal/production"

// SpanRecorder turns each record into a zero-length span named after its
// kind. Faults and visibility violations carry an error status.
type SpanRecorder struct {
	tracer  trace.Tracer
	machine string
}

// NewSpanRecorder creates a recorder on tp, or on the global provider when tp
// is nil.
func NewSpanRecorder(tp trace.TracerProvider, machine string) *SpanRecorder {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &SpanRecorder{tracer: tp.Tracer(tracerName), machine: machine}
}

// Consume implements Sink.
func (s *SpanRecorder) Consume(ctx context.Context, r safetyx.Record) error {
	at := r.Time
	if at.IsZero() {
		at = time.Now()
	}
	attrs := []attribute.KeyValue{
		attribute.String("safetyx.machine", s.machine),
		attribute.Int64("safetyx.cycle", int64(r.Cycle)),
		attribute.String("safetyx.level", r.Level),
	}
	if r.Target != "" {
		attrs = append(attrs, attribute.String("safetyx.target", r.Target))
	}
	if r.Event != "" {
		attrs = append(attrs,
			attribute.String("safetyx.event", r.Event),
			attribute.String("safetyx.origin", r.Origin.String()),
		)
	}

	_, span := s.tracer.Start(ctx, "safetyx."+r.Kind.String(),
		trace.WithTimestamp(at),
		trace.WithAttributes(attrs...),
	)
	if isFault(r.Kind) {
		span.SetStatus(codes.Error, r.Detail)
	}
	span.End(trace.WithTimestamp(at))
	return nil
}

func isFault(k safetyx.RecordKind) bool {
	switch k {
	case safetyx.RecordVisibilityViolation, safetyx.RecordInputFault,
		safetyx.RecordOutputFault, safetyx.RecordActionPanic:
		return true
	}
	return false
}

var _ Sink = (*SpanRecorder)(nil)

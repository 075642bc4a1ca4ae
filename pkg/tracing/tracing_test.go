package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceparentRoundTripsThroughKafkaHeaders(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	tpHeader := Traceparent(ctx)
	require.NotEmpty(t, tpHeader)
	assert.Contains(t, tpHeader, span.SpanContext().TraceID().String())

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte("payment.completed")}})
	out := ExtractKafkaHeaders(context.Background(), headers)
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(out).TraceID())
}

func TestTraceparentEmptyWithoutSpan(t *testing.T) {
	assert.Empty(t, Traceparent(context.Background()))
}

func TestInjectReplacesStaleTraceparent(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, span := tp.Tracer("test").Start(context.Background(), "relay")
	defer span.End()

	stale := []kafka.Header{{Key: TraceparentHeader, Value: []byte("00-00000000000000000000000000000001-0000000000000001-01")}}
	headers := InjectKafkaHeaders(ctx, stale)

	n := 0
	for _, h := range headers {
		if h.Key == TraceparentHeader {
			n++
			assert.Contains(t, string(h.Value), span.SpanContext().TraceID().String())
		}
	}
	assert.Equal(t, 1, n)
}

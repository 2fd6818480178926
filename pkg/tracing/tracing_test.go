package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const testTimeout = 2 * time.Second

func TestInit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	tp, shutdown, err := Init(Config{
		ServiceName:    "ingestd",
		ServiceVersion: "test",
		Environment:    "test",
	})
	require.NoError(t, err)
	require.NotNil(t, tp)
	require.NotNil(t, shutdown)

	require.NoError(t, shutdown(ctx))
}

func TestShutdown(t *testing.T) {
	t.Run("nil provider", func(t *testing.T) {
		assert.NoError(t, Shutdown(context.Background(), nil))
	})
}

func newTestTracerProvider() *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
}

func TestTracerProviderConfiguration(t *testing.T) {
	tp := newTestTracerProvider()
	require.NotNil(t, tp)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		assert.NoError(t, tp.Shutdown(ctx))
	}()

	tr := tp.Tracer("test")
	_, span := tr.Start(context.Background(), "test-span")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().IsSampled())
}

func TestSpanAttributes(t *testing.T) {
	tp := newTestTracerProvider()
	require.NotNil(t, tp)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		assert.NoError(t, tp.Shutdown(ctx))
	}()

	tr := tp.Tracer("test")

	tests := []struct {
		name       string
		attributes []attribute.KeyValue
	}{
		{
			name: "string attributes",
			attributes: []attribute.KeyValue{
				attribute.String("key1", "value1"),
				attribute.String("key2", "value2"),
			},
		},
		{
			name: "mixed attributes",
			attributes: []attribute.KeyValue{
				attribute.String("string", "value"),
				attribute.Int("int", 42),
				attribute.Float64("float", 3.14),
				attribute.Bool("bool", true),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, span := tr.Start(context.Background(), "test-span")
			span.SetAttributes(tt.attributes...)

			span.End()
			spanCtx := trace.SpanContextFromContext(ctx)
			assert.True(t, spanCtx.IsValid())
		})
	}
}

package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func bufferedLogger(buf *bytes.Buffer) *Logger {
	logger := zerolog.New(buf).With().Str("service", "test").Logger().Hook(OTELHook{})
	return &Logger{Logger: logger}
}

func TestOTELHook_NoSpanInContext(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferedLogger(&buf)

	logger.WithContext(context.Background()).Info().Msg("hello")

	assert.NotContains(t, buf.String(), "trace_id")
	assert.NotContains(t, buf.String(), "span_id")
}

func TestOTELHook_AddsTraceContext(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	defer func() {
		require.NoError(t, provider.Shutdown(context.Background()))
	}()

	ctx, span := provider.Tracer("test").Start(context.Background(), "validate")
	defer span.End()

	var buf bytes.Buffer
	logger := bufferedLogger(&buf)
	logger.WithContext(ctx).Info().Msg("hello")

	assert.Contains(t, buf.String(), "trace_id")
	assert.Contains(t, buf.String(), span.SpanContext().TraceID().String())
	assert.Contains(t, buf.String(), span.SpanContext().SpanID().String())
}

func TestLogger_ServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferedLogger(&buf)

	logger.Info().Msg("starting")

	assert.Contains(t, buf.String(), `"service":"test"`)
}

func TestLogger_RunComplete(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferedLogger(&buf)

	logger.LogRunComplete(context.Background(), 40, 2, 1, false)

	out := buf.String()
	assert.Contains(t, out, `"passed":40`)
	assert.Contains(t, out, `"failed":2`)
	assert.Contains(t, out, `"warned":1`)
	assert.Contains(t, out, `"ok":false`)
}

func TestLogger_PhaseComplete(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferedLogger(&buf)

	logger.LogPhaseComplete(context.Background(), "syntax", 16, 0)

	out := buf.String()
	assert.Contains(t, out, `"phase":"syntax"`)
	assert.Contains(t, out, `"passed":16`)
	assert.Contains(t, out, `"violations":0`)
}

func TestLogger_UnitMissing(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferedLogger(&buf)

	logger.LogUnitMissing(context.Background(), "modules/application", []string{"variables.yaml"})

	out := buf.String()
	assert.Contains(t, out, "modules/application")
	assert.Contains(t, out, "variables.yaml")
}

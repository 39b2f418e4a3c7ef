package tracer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"grantmatch/internal/infra/config"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: false, Exporter: "stdout"})
	require.NoError(t, err)
	defer shutdown(context.Background())

	_, ok := otel.GetTracerProvider().(noop.TracerProvider)
	assert.True(t, ok, "expected noop provider, got %T", otel.GetTracerProvider())
}

func TestSetupStdoutWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := setup(config.TracerConfig{Enabled: true, Exporter: "stdout"}, &buf)
	require.NoError(t, err)
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	_, span := StartSpan(context.Background(), "orchestrator.open")
	span.SetAttributes(StringAttr("search.mode", "single"), IntAttr("search.faculty", 2), BoolAttr("search.has_cv", true))
	Finish(span, errors.New("boom"))
	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"Name": "orchestrator.open"`)
	assert.Contains(t, out, "search.has_cv")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, serviceName)
}

func TestSetupUnsupported(t *testing.T) {
	_, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)
}

func TestFinishWithoutError(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())
	_, span := StartSpan(context.Background(), "test.span")
	Finish(span, nil)
	assert.False(t, span.IsRecording())
}

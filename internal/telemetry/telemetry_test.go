package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestConfigureSlogJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestInitTracingAddsTraceIDsToLogs(t *testing.T) {
	prevLogger := slog.Default()
	prevTP := otel.GetTracerProvider()
	t.Cleanup(func() {
		slog.SetDefault(prevLogger)
		otel.SetTracerProvider(prevTP)
	})

	var spans bytes.Buffer
	shutdown, err := InitTracing(&spans, "memvault-test", "dev")
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := ConfigureSlog(&logs, "info", "text")

	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "inside")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, logs.String(), "trace_id="+span.SpanContext().TraceID().String())
	assert.Contains(t, spans.String(), `"Name":"op"`)
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.Observe("add", time.Now(), nil)
	m.Observe("add", time.Now(), errors.New("boom"))
	m.StaleEntry()
	m.SetRecords(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `memvault_operations_total{op="add",status="ok"} 1`)
	assert.Contains(t, out, `memvault_operations_total{op="add",status="error"} 1`)
	assert.Contains(t, out, "memvault_stale_index_entries_total 1")
	assert.Contains(t, out, "memvault_records 3")
	assert.Contains(t, out, "memvault_operation_duration_seconds_bucket")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Observe("x", time.Now(), nil)
	m.StaleEntry()
	m.SetRecords(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

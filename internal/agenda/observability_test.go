package agenda

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	ctx := context.Background()
	rec := NewExpvarMetricsRecorder("")
	if rec.Name() == "" {
		t.Fatal("auto-generated name must not be empty")
	}

	rec.Observe(ctx, "assign", true, 40*time.Millisecond)
	rec.Observe(ctx, "assign", true, 10*time.Millisecond)
	rec.Observe(ctx, "assign", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // ignored

	snap := rec.Snapshot()
	if snap.Results["assign"]["success"] != 2 || snap.Results["assign"]["error"] != 1 {
		t.Fatalf("unexpected result counters: %+v", snap.Results)
	}
	if got := snap.DurationsMS["assign"]; got != 55 {
		t.Fatalf("expected 55ms total, got %v", got)
	}
	if len(snap.Results) != 1 {
		t.Fatalf("blank operation must be dropped: %+v", snap.Results)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	rec.Observe(ctx, "register_completion", true, 25*time.Millisecond)
	rec.Observe(ctx, "register_completion", false, 5*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := map[string]bool{}
	for _, fam := range families {
		seen[fam.GetName()] = true
	}
	if !seen["agendacore_operation_duration_seconds"] || !seen["agendacore_operation_results_total"] {
		t.Fatalf("expected both collectors registered, got %v", seen)
	}

	// The same registry refuses a second registration.
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatal("duplicate registration must fail")
	}
}

func TestJSONTracerEncodesSpans(t *testing.T) {
	buf := &bytes.Buffer{}
	tracer := NewJSONTracer(buf)
	_, span := tracer.Start(context.Background(), "export")
	span.End(nil)

	var entry JSONTraceEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode span: %v", err)
	}
	if entry.Operation != "export" || entry.Status != "success" {
		t.Fatalf("unexpected span: %+v", entry)
	}
	if len(tracer.Entries()) != 1 {
		t.Fatalf("expected 1 retained span, got %d", len(tracer.Entries()))
	}
}

func TestSlogLoggerAdapter(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	logger.Info("completion registered", "unit", "comisaria-1", "remaining", 2)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["msg"] != "completion registered" || line["unit"] != "comisaria-1" {
		t.Fatalf("unexpected log line: %v", line)
	}

	// A nil logger falls back to the default without panicking.
	NewSlogLogger(nil).Debug("noop")
}

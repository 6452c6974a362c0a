package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"TRACE", LevelTrace, false},
		{"debug", LevelDebug, false},
		{"", LevelInfo, false},
		{" info ", LevelInfo, false},
		{"WARNING", LevelWarning, false},
		{"warn", LevelWarning, false},
		{"ERROR", LevelError, false},
		{"FATAL", LevelFatal, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// capture routes the package logger to a buffer for the duration of the test
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev, prevLevel := Logger, GetLevel()
	Logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: programLevel}))
	t.Cleanup(func() {
		Logger = prev
		SetLevel(prevLevel)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel(LevelWarning)

	Debug("hidden")
	Info("hidden")
	Warn("shown", "case", "c1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["case"] != "c1" {
		t.Errorf("record = %v", rec)
	}
}

func TestTraceLevel(t *testing.T) {
	buf := capture(t)

	SetLevel(LevelDebug)
	Trace("hidden")
	if buf.Len() != 0 {
		t.Errorf("trace should be filtered at debug level: %q", buf.String())
	}

	SetLevel(LevelTrace)
	Trace("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("trace should be logged at trace level: %q", buf.String())
	}
}

func TestCountersIgnoreSampling(t *testing.T) {
	buf := capture(t)
	prevRate := atomic.LoadInt32(&errorSampleRate)
	atomic.StoreInt32(&errorSampleRate, 1000000)
	t.Cleanup(func() { atomic.StoreInt32(&errorSampleRate, prevRate) })

	before := Snapshot()
	for i := 0; i < 10; i++ {
		Error("sampled")
		Warn("sampled")
	}
	after := Snapshot()

	if after["errors"]-before["errors"] != 10 {
		t.Errorf("errors counter moved by %d, want 10", after["errors"]-before["errors"])
	}
	if after["warnings"]-before["warnings"] != 10 {
		t.Errorf("warnings counter moved by %d, want 10", after["warnings"]-before["warnings"])
	}
	if strings.Count(buf.String(), "sampled") >= 20 {
		t.Error("sampling should drop most records")
	}
}

func TestHTTPCounters(t *testing.T) {
	before := Snapshot()
	ErrorHttp5xx()
	WarnHttp4xx()
	WarnHttp4xx()
	after := Snapshot()

	checks := map[string]int64{"http5xx": 1, "http4xx": 2, "errors": 1, "warnings": 2}
	for key, want := range checks {
		if got := after[key] - before[key]; got != want {
			t.Errorf("%s moved by %d, want %d", key, got, want)
		}
	}
}

func TestSnapshotKeys(t *testing.T) {
	snap := Snapshot()
	for _, key := range []string{"errors", "warnings", "http5xx", "http4xx", "actionsFired", "reportSteps", "evaluationErrors"} {
		if _, ok := snap[key]; !ok {
			t.Errorf("Snapshot() missing %s", key)
		}
	}
}

func TestSetupJSONWithoutOTEL(t *testing.T) {
	prev, prevDefault := Logger, slog.Default()
	t.Cleanup(func() {
		Logger = prev
		slog.SetDefault(prevDefault)
		SetLevel(LevelInfo)
	})

	Setup(context.Background(), Options{Level: "debug", SampleRate: 1})
	if GetLevel() != LevelDebug {
		t.Errorf("GetLevel() = %v, want debug", GetLevel())
	}
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() without OTEL failed: %v", err)
	}
}

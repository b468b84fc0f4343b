package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func captureDefault(t *testing.T, format string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(NewLogger(format, slog.LevelDebug, &buf))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestContextValues(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithProject(ctx, "web")
	ctx = WithStage(ctx, "traverse")

	lc := GetContext(ctx)
	if lc.RunID != "run-1" || lc.Project != "web" || lc.Stage != "traverse" {
		t.Fatalf("unexpected context %+v", lc)
	}
	if RunIDFrom(context.Background()) != "" {
		t.Fatalf("expected empty run id on bare context")
	}
}

func TestInfoContextAddsAttributes(t *testing.T) {
	buf := captureDefault(t, "json")
	ctx := WithRunID(context.Background(), "run-42")

	InfoContext(ctx, "hello", slog.String("extra", "x"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if rec["run_id"] != "run-42" || rec["extra"] != "x" || rec["msg"] != "hello" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"text", "json", "pretty"} {
		var buf bytes.Buffer
		NewLogger(format, slog.LevelInfo, &buf).Info("synced", slog.String("project", "web"))
		if !strings.Contains(buf.String(), "synced") || !strings.Contains(buf.String(), "web") {
			t.Fatalf("%s: unexpected output %q", format, buf.String())
		}
	}
}

func TestNewLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("text", ParseLevel("warn"), &buf).Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "WARNING": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPhaseEnd(t *testing.T) {
	buf := captureDefault(t, "text")
	_, p := StartPhase(context.Background(), "install")
	p.End(errors.New("boom"))
	if !strings.Contains(buf.String(), "Phase failed") || !strings.Contains(buf.String(), "stage=install") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

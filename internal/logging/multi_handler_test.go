package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type failingHandler struct {
	slog.Handler
	err error
}

func (f failingHandler) Handle(context.Context, slog.Record) error { return f.err }

func TestMultiHandlerKeepsWritingWhenASinkFails(t *testing.T) {
	sinkErr := errors.New("system_logs unavailable")
	var out bytes.Buffer
	stdout := slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo})
	failing := failingHandler{Handler: slog.NewJSONHandler(&bytes.Buffer{}, nil), err: sinkErr}

	h := NewMultiHandler(failing, nil, stdout)
	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "report upload failed", 0))
	if !errors.Is(err, sinkErr) {
		t.Errorf("err = %v, want the sink error", err)
	}
	if !strings.Contains(out.String(), "report upload failed") {
		t.Errorf("stdout missed the record after a sink failure: %q", out.String())
	}
}

func TestMultiHandlerRespectsEachSinkLevel(t *testing.T) {
	var debug, errOnly bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errOnly, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	logger := slog.New(h).With("request_id", "req-7").WithGroup("report")

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be enabled through the verbose sink")
	}
	logger.Debug("queued", "id", "r-1")
	logger.Error("rejected", "id", "r-2")

	if !strings.Contains(debug.String(), `"queued"`) || !strings.Contains(debug.String(), `"rejected"`) {
		t.Errorf("verbose sink = %q", debug.String())
	}
	if strings.Contains(errOnly.String(), `"queued"`) {
		t.Errorf("error sink received a debug record: %q", errOnly.String())
	}
	if !strings.Contains(errOnly.String(), `"request_id":"req-7"`) || !strings.Contains(errOnly.String(), `"report":{"id":"r-2"}`) {
		t.Errorf("attrs or group lost: %q", errOnly.String())
	}
}

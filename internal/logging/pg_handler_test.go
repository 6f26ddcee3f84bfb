package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/testutil"
)

func TestPGHandlerPersistsErrors(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg)

	h := NewPGHandler(db)
	defer h.Stop()

	logger := slog.New(h).With("request_id", "req-1")
	logger.Info("ignored")
	logger.Error("upload failed", "user_id", "u-1", "error", "disk full", "latency_ms", 12, "report_id", "r-9")
	h.flush()

	var logs []models.SystemLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 persisted log, got %d", len(logs))
	}
	got := logs[0]
	if got.Message != "upload failed" || got.Level != "ERROR" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.TraceID != "req-1" {
		t.Errorf("expected trace id from With attrs, got %q", got.TraceID)
	}
	if got.UserID == nil || *got.UserID != "u-1" {
		t.Errorf("expected user id u-1, got %v", got.UserID)
	}
	if got.Error != "disk full" || got.LatencyMs != 12 {
		t.Errorf("unexpected error/latency: %q %d", got.Error, got.LatencyMs)
	}
	var extra map[string]interface{}
	if err := json.Unmarshal(got.Extra, &extra); err != nil {
		t.Fatalf("extra: %v", err)
	}
	if extra["report_id"] != "r-9" {
		t.Errorf("expected report_id in extra, got %v", extra)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg)

	now := time.Now().UTC()
	rows := []models.SystemLog{
		{Timestamp: now.AddDate(0, 0, -40), Level: "ERROR", Message: "old"},
		{Timestamp: now.Add(-time.Hour), Level: "ERROR", Message: "recent"},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	deleted, err := PurgeOlderThan(db, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
}

func TestMultiHandlerFansOut(t *testing.T) {
	a := &countingHandler{level: slog.LevelInfo}
	b := &countingHandler{level: slog.LevelError}
	logger := slog.New(NewMultiHandler(a, b))

	logger.Info("one")
	logger.Error("two")

	if a.n != 2 || b.n != 1 {
		t.Fatalf("expected 2 and 1 records, got %d and %d", a.n, b.n)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

type countingHandler struct {
	level slog.Level
	n     int
}

func (c *countingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= c.level }
func (c *countingHandler) Handle(context.Context, slog.Record) error { c.n++; return nil }
func (c *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *countingHandler) WithGroup(string) slog.Handler { return c }

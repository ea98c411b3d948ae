package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

// recordingHandler captures records so fan-out behavior can be asserted.
type recordingHandler struct {
	minLevel slog.Level
	err      error
	records  []slog.Record
}

func (h *recordingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *recordingHandler) Handle(ctx context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return h.err
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(name string) slog.Handler       { return h }

func record(level slog.Level, msg string) slog.Record {
	return slog.NewRecord(time.Now(), level, msg, 0)
}

func TestMultiHandlerFansOut(t *testing.T) {
	a := &recordingHandler{minLevel: slog.LevelDebug}
	b := &recordingHandler{minLevel: slog.LevelDebug}
	h := NewMultiHandler(a, b)

	if err := h.Handle(context.Background(), record(slog.LevelInfo, "hello")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(a.records) != 1 || len(b.records) != 1 {
		t.Errorf("got %d/%d records, wanted 1/1", len(a.records), len(b.records))
	}
}

func TestMultiHandlerRespectsDestinationLevels(t *testing.T) {
	console := &recordingHandler{minLevel: slog.LevelDebug}
	db := &recordingHandler{minLevel: slog.LevelWarn}
	h := NewMultiHandler(console, db)

	h.Handle(context.Background(), record(slog.LevelInfo, "info"))
	h.Handle(context.Background(), record(slog.LevelError, "error"))

	if len(console.records) != 2 {
		t.Errorf("console got %d records, wanted 2", len(console.records))
	}
	if len(db.records) != 1 {
		t.Errorf("db got %d records, wanted only the error", len(db.records))
	}
}

func TestMultiHandlerFailingDestinationDoesNotBlockOthers(t *testing.T) {
	failing := &recordingHandler{minLevel: slog.LevelDebug, err: errors.New("disk full")}
	healthy := &recordingHandler{minLevel: slog.LevelDebug}
	h := NewMultiHandler(failing, healthy)

	err := h.Handle(context.Background(), record(slog.LevelInfo, "hello"))
	if err == nil {
		t.Error("expected the destination error to surface")
	}
	if len(healthy.records) != 1 {
		t.Errorf("healthy destination got %d records, wanted 1", len(healthy.records))
	}
}

func TestMultiHandlerEnabled(t *testing.T) {
	h := NewMultiHandler(
		&recordingHandler{minLevel: slog.LevelWarn},
		&recordingHandler{minLevel: slog.LevelError},
	)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("no destination accepts INFO")
	}
	if !h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("one destination accepts WARN")
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   *string
		want slog.Level
	}{
		{nil, slog.LevelInfo},
		{ptr("DEBUG"), slog.LevelDebug},
		{ptr("warn"), slog.LevelWarn},
		{ptr("Error"), slog.LevelError},
		{ptr("bogus"), slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := LevelFromString(tt.in); got != tt.want {
			t.Errorf("LevelFromString(%v) = %v, wanted %v", tt.in, got, tt.want)
		}
	}
}

func ptr(s string) *string {
	return &s
}

func TestSQLiteHandlerFormatAttrs(t *testing.T) {
	textHandler := &SQLiteHandler{format: LogAttrFormatText}
	got := textHandler.formatAttrs([]slog.Attr{
		slog.String("module", "www"),
		slog.String("tricky", "a=b;c"),
	})
	want := `module=www; tricky=a\=b\;c`
	if got != want {
		t.Errorf("got %q, wanted %q", got, want)
	}

	jsonHandler := &SQLiteHandler{format: LogAttrFormatJSON}
	got = jsonHandler.formatAttrs([]slog.Attr{slog.String("module", "www")})
	if got != `{"module":"www"}` {
		t.Errorf("got %q", got)
	}

	if got := jsonHandler.formatAttrs(nil); got != "" {
		t.Errorf("no attrs must give an empty string, got %q", got)
	}
}

func TestSQLiteHandlerKeepsWithAttrs(t *testing.T) {
	base := &SQLiteHandler{format: LogAttrFormatText, minLevel: slog.LevelInfo}
	derived, ok := base.WithAttrs([]slog.Attr{slog.String("module", "database")}).(*SQLiteHandler)
	if !ok {
		t.Fatal("WithAttrs must return a *SQLiteHandler")
	}
	if len(derived.attrs) != 1 || derived.attrs[0].Key != "module" {
		t.Errorf("derived handler attrs: %+v", derived.attrs)
	}
	if len(base.attrs) != 0 {
		t.Error("WithAttrs must not mutate the receiver")
	}
}

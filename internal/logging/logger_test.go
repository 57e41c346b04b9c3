package logging

import (
	"bytes"
	"strings"
	"testing"
)

func newTestLogger(level Level) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: level, Colored: false})
	l.output = buf
	return l, buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newTestLogger(LevelWarn)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below level leaked: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("expected warn and error messages, got: %q", out)
	}
}

func TestComponentPrefix(t *testing.T) {
	l, buf := newTestLogger(LevelInfo)

	l.WithComponent("ScreenCache").Info("entry stored")

	if !strings.Contains(buf.String(), "[ScreenCache]") {
		t.Errorf("expected component prefix, got: %q", buf.String())
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	l, buf := newTestLogger(LevelInfo)

	child := l.WithField("query_id", "q-1")
	child.Info("child message")
	l.Info("parent message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "query_id=q-1") {
		t.Errorf("child line missing field: %q", lines[0])
	}
	if strings.Contains(lines[1], "query_id") {
		t.Errorf("parent line should not carry child field: %q", lines[1])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}

	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStripANSI(t *testing.T) {
	in := "\033[32mINFO\033[0m hello"
	if got := stripANSI(in); got != "INFO hello" {
		t.Errorf("stripANSI = %q", got)
	}
}

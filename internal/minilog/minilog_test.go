package minilog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	AddSink("test", &buf, WARN, false)
	defer RemoveSink("test")

	log := Named("widget")
	log.Debug("should not appear")
	log.Warn("should appear: %d", 42)

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("debug message leaked through a WARN sink: %q", out)
	}
	if !strings.Contains(out, "should appear: 42") {
		t.Fatalf("expected warn message in output, got %q", out)
	}
	if !strings.Contains(out, "widget") {
		t.Fatalf("expected logger name in output, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": DEBUG,
		"info":  INFO,
		"warn":  WARN,
		"error": ERROR,
		"fatal": FATAL,
	}

	for s, want := range cases {
		got, err := ParseLevel(s)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", s, got, want)
		}
	}

	if _, err := ParseLevel("bogus"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

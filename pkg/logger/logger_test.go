package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestInitAndLevelString(t *testing.T) {
	Init("debug")
	if got := LevelString(); got != "debug" {
		t.Fatalf("LevelString() = %q, want %q", got, "debug")
	}
	Init("WARN")
	if got := LevelString(); got != "warn" {
		t.Fatalf("LevelString() = %q, want %q", got, "warn")
	}
	Init("Error")
	if got := LevelString(); got != "error" {
		t.Fatalf("LevelString() = %q, want %q", got, "error")
	}
	Init("nonsense")
	if got := LevelString(); got != "info" {
		t.Fatalf("LevelString() = %q, want %q for unknown input", got, "info")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Init("warn")
	l := With("session")
	l.Debug().Msg("debug-msg")
	l.Info().Msg("info-msg")
	l.Warn().Msg("warn-msg")
	l.Error().Msg("error-msg")

	out := buf.String()
	if strings.Contains(out, "debug-msg") {
		t.Fatalf("debug messages should be suppressed at warn level")
	}
	if strings.Contains(out, "info-msg") {
		t.Fatalf("info messages should be suppressed at warn level")
	}
	if !strings.Contains(out, "warn-msg") {
		t.Fatalf("warn message missing: %q", out)
	}
	if !strings.Contains(out, "error-msg") {
		t.Fatalf("error message missing: %q", out)
	}
}

func TestSetOutputKeepsLevel(t *testing.T) {
	Init("error")
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	if got := LevelString(); got != "error" {
		t.Fatalf("LevelString() = %q after SetOutput, want %q", got, "error")
	}
	l := With("main")
	l.Warn().Msg("quiet")
	if buf.Len() != 0 {
		t.Fatalf("warn should be suppressed at error level, got: %q", buf.String())
	}
	Init("info")
}

func TestWithTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	Init("info")

	l := With("feed")
	l.Info().Str("category", "chat").Msg("opened")

	out := buf.String()
	if !strings.Contains(out, `"component":"feed"`) || !strings.Contains(out, `"category":"chat"`) {
		t.Fatalf("expected structured fields, got: %q", out)
	}
}

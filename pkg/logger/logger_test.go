package logger

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestInitIdempotent(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if err := Init(); err != nil {
		t.Fatalf("second init: %v", err)
	}
	if Get() == nil {
		t.Fatal("global logger not set after Init")
	}
	if Get() != Get() {
		t.Fatal("Get returned different loggers")
	}
}

func TestNamed(t *testing.T) {
	base := Get()
	named := base.Named("store")
	if named == nil {
		t.Fatal("Named returned nil")
	}
	if named == base {
		t.Fatal("Named returned the receiver")
	}
	// Nested names must not panic and the result must be usable.
	named.Named("pg").Info(context.Background(), "ping")
}

func TestFieldConstructors(t *testing.T) {
	cases := []struct {
		field Field
		key   string
	}{
		{String("k", "v"), "k"},
		{Int("n", 1), "n"},
		{Int64("n64", 1), "n64"},
		{Any("any", struct{}{}), "any"},
		{Error(errors.New("boom")), "error"},
	}
	for _, c := range cases {
		if c.field.Key != c.key {
			t.Errorf("field key = %q, want %q", c.field.Key, c.key)
		}
	}
}

func TestSetLevelString(t *testing.T) {
	defer SetLevel(slog.LevelInfo)

	for _, level := range []string{"debug", "info", "warn", "warning", "error", "DEBUG", " info ", ""} {
		if err := SetLevelString(level); err != nil {
			t.Errorf("SetLevelString(%q): %v", level, err)
		}
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("SetLevelString accepted an unknown level")
	}
}

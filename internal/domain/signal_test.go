package domain

import (
	"errors"
	"testing"
	"time"
)

func TestSignalValidate(t *testing.T) {
	now := time.Now().UTC()
	window := 2 * time.Minute

	fresh := Signal{SchemaVersion: SchemaVersion, CreatedAt: now.Add(-time.Minute)}
	if err := fresh.Validate(now, window); err != nil {
		t.Errorf("expected fresh signal valid, got %v", err)
	}

	stale := Signal{SchemaVersion: SchemaVersion, CreatedAt: now.Add(-3 * time.Minute)}
	if err := stale.Validate(now, window); !errors.Is(err, ErrSignalStale) {
		t.Errorf("expected ErrSignalStale, got %v", err)
	}

	foreign := Signal{SchemaVersion: SchemaVersion + 1, CreatedAt: now}
	if err := foreign.Validate(now, window); !errors.Is(err, ErrSignalVersion) {
		t.Errorf("expected ErrSignalVersion, got %v", err)
	}

	// Staleness wins when both apply; the payload shape never matters for an
	// expired signal.
	both := Signal{SchemaVersion: SchemaVersion + 1, CreatedAt: now.Add(-time.Hour)}
	if err := both.Validate(now, window); !errors.Is(err, ErrSignalStale) {
		t.Errorf("expected ErrSignalStale, got %v", err)
	}
}

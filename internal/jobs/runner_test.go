package jobs

import (
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunner_IntervalJobFires(t *testing.T) {
	r, err := NewRunner(slog.Default())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer r.Shutdown()

	var runs atomic.Int32
	if err := r.Every("tick", 10*time.Millisecond, func() {
		runs.Add(1)
	}); err != nil {
		t.Fatalf("Every: %v", err)
	}

	r.Start()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatal("job never ran")
	}
}

func TestRunner_PanicDoesNotKillScheduler(t *testing.T) {
	r, err := NewRunner(slog.Default())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer r.Shutdown()

	var runs atomic.Int32
	if err := r.Every("panicky", 10*time.Millisecond, func() {
		if runs.Add(1) == 1 {
			panic("first run blows up")
		}
	}); err != nil {
		t.Fatalf("Every: %v", err)
	}

	r.Start()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatalf("scheduler stopped after panic, runs = %d", runs.Load())
	}
}

package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestLocationSource(t *testing.T) {
	src := NewLocationSource(ContainmentConfig{Radius: 10})
	if src.Location() != nil {
		t.Fatal("expected unconfigured location")
	}

	src.Update(ContainmentConfig{Location: "prison;1;64;1;0;0", Radius: 7})
	loc := src.Location()
	if loc == nil || loc.World != "prison" || loc.Y != 64 {
		t.Fatalf("unexpected location %+v", loc)
	}
	if src.Radius() != 7 {
		t.Errorf("expected radius 7, got %v", src.Radius())
	}

	// Callers get a copy.
	loc.X = 999
	if src.Location().X != 1 {
		t.Error("expected location source to be immutable through returned pointer")
	}

	src.Update(ContainmentConfig{Location: "garbage", Radius: 7})
	if src.Location() != nil {
		t.Error("expected invalid location to leave source unconfigured")
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "containment:\n  radius: 10\n")

	w, err := NewWatcher(path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	reloaded := make(chan *Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Watch(ctx, func(cfg *Config) { reloaded <- cfg }) }()

	// Give the watcher time to register.
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path, []byte("containment:\n  radius: 42\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Containment.Radius != 42 {
			t.Errorf("expected reloaded radius 42, got %v", cfg.Containment.Radius)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	// An invalid file is ignored.
	if err := os.WriteFile(path, []byte("containment:\n  radius: -1\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	select {
	case cfg := <-reloaded:
		t.Errorf("expected invalid config to be ignored, got radius %v", cfg.Containment.Radius)
	case <-time.After(200 * time.Millisecond):
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
}

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	calls := make(chan int, 10)
	for i := 0; i < 5; i++ {
		i := i
		d.Trigger(func() { calls <- i })
	}

	select {
	case got := <-calls:
		if got != 4 {
			t.Errorf("expected only the last callback, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("debounced callback never ran")
	}

	select {
	case extra := <-calls:
		t.Errorf("expected a single callback, got extra %d", extra)
	case <-time.After(60 * time.Millisecond):
	}
}

package routing

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("filesystem watcher test")
	}

	path := writeRouteFile(t, sampleRoutes)
	p, err := NewProvider(path)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(p, nil)
	w.debounce = 50 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)

	updated := `
routes:
  - domain: "reloaded.example.com"
    target: "https://reloaded.internal"
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("failed to rewrite route file: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if p.Lookup("reloaded.example.com", "/") != nil {
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch() error = %v", err)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("route table not reloaded within deadline")
}

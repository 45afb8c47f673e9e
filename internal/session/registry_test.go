package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegistrySupersedeCancelsOtherSessions(t *testing.T) {
	registry := NewRegistry()
	cancelled := make(chan struct{})

	registry.Spawn(context.Background(), "old", func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	})
	if registry.Active("old") != 1 {
		t.Fatalf("expected 1 active handle, got %d", registry.Active("old"))
	}

	registry.Supersede("new")
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("superseded task was not cancelled")
	}
	registry.Wait()
	if registry.Active("old") != 0 {
		t.Fatal("superseded handles must be dropped")
	}
}

func TestRegistrySupersedeKeepsCurrentSession(t *testing.T) {
	registry := NewRegistry()
	var cancelledEarly atomic.Bool
	release := make(chan struct{})

	registry.Spawn(context.Background(), "current", func(ctx context.Context) {
		select {
		case <-ctx.Done():
			cancelledEarly.Store(true)
		case <-release:
		}
	})

	registry.Supersede("current")
	close(release)
	registry.Wait()
	if cancelledEarly.Load() {
		t.Fatal("current session's work must survive supersession")
	}
}

func TestRegistrySpawnDetachesFromParent(t *testing.T) {
	registry := NewRegistry()
	parent, cancel := context.WithCancel(context.Background())
	survived := make(chan bool, 1)

	registry.Spawn(parent, "s", func(ctx context.Context) {
		cancel()
		select {
		case <-ctx.Done():
			survived <- false
		case <-time.After(50 * time.Millisecond):
			survived <- true
		}
	})

	if !<-survived {
		t.Fatal("parent cancellation must not cancel detached work")
	}
	registry.Wait()
}

func TestRegistryHandleRemovedOnCompletion(t *testing.T) {
	registry := NewRegistry()
	registry.Spawn(context.Background(), "s", func(ctx context.Context) {})
	registry.Wait()
	if registry.Active("s") != 0 {
		t.Fatalf("completed handle still registered: %d", registry.Active("s"))
	}
}

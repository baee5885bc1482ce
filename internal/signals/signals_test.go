package signals

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestWatch_Kill(t *testing.T) {
	root := t.TempDir()
	ctx, stop, err := Watch(context.Background(), root)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer stop()

	if err := Kill(root); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not canceled after kill signal")
	}
	if cause := context.Cause(ctx); !errors.Is(cause, ErrKilled) {
		t.Errorf("Cause = %v, want ErrKilled", cause)
	}
}

func TestWatch_ClearsStaleSignal(t *testing.T) {
	root := t.TempDir()
	if err := Kill(root); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}

	ctx, stop, err := Watch(context.Background(), root)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer stop()

	if _, err := os.Stat(KillPath(root)); !os.IsNotExist(err) {
		t.Errorf("stale kill file still present: %v", err)
	}
	select {
	case <-ctx.Done():
		t.Errorf("context canceled by a stale signal: %v", context.Cause(ctx))
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatch_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop, err := Watch(parent, t.TempDir())
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled with its parent")
	}
	if errors.Is(context.Cause(ctx), ErrKilled) {
		t.Error("parent cancellation reported as kill")
	}
}

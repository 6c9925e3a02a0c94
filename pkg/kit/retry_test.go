package kit

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestWaitReady_EventuallyUp(t *testing.T) {
	calls := 0
	ping := func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection refused")
		}
		return nil
	}

	if err := WaitReady(context.Background(), "redis", 5, ping, zap.NewNop()); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls=%d want 2", calls)
	}
}

func TestWaitReady_GivesUp(t *testing.T) {
	down := errors.New("down")
	calls := 0
	ping := func(context.Context) error {
		calls++
		return down
	}

	err := WaitReady(context.Background(), "postgres", 2, ping, zap.NewNop())
	if !errors.Is(err, down) {
		t.Fatalf("err=%v want %v", err, down)
	}
	if calls != 2 {
		t.Fatalf("calls=%d want 2", calls)
	}
}

package usage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/leduyhoang1994/quivr/internal/storage/memory"
)

func TestCheckAndIncrementEnforcesCredit(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), 3)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		if err := svc.CheckAndIncrement(ctx, userID); err != nil {
			t.Fatalf("request %d should be allowed: %v", i+1, err)
		}
	}
	if err := svc.CheckAndIncrement(ctx, userID); !errors.Is(err, ErrDailyLimitReached) {
		t.Fatalf("expected ErrDailyLimitReached, got %v", err)
	}
}

func TestCheckAndIncrementPerUser(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), 1)

	if err := svc.CheckAndIncrement(ctx, uuid.New()); err != nil {
		t.Fatalf("first user should be allowed: %v", err)
	}
	if err := svc.CheckAndIncrement(ctx, uuid.New()); err != nil {
		t.Fatalf("second user should have an independent quota: %v", err)
	}
}

func TestCheckAndIncrementUnlimited(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), 0)
	userID := uuid.New()

	for i := 0; i < 10; i++ {
		if err := svc.CheckAndIncrement(ctx, userID); err != nil {
			t.Fatalf("non-positive credit should not enforce a limit: %v", err)
		}
	}
}

// Package usage enforces per-user daily request quotas.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leduyhoang1994/quivr/internal/storage"
)

// ErrDailyLimitReached signals the user exhausted today's chat credit.
var ErrDailyLimitReached = errors.New("you have reached the maximum number of requests for today")

// Service counts requests per user per UTC day.
type Service struct {
	store       storage.UsageStore
	dailyCredit int
}

// NewService builds the usage service. A non-positive dailyCredit disables
// quota enforcement while still recording counts.
func NewService(store storage.UsageStore, dailyCredit int) *Service {
	return &Service{store: store, dailyCredit: dailyCredit}
}

// CheckAndIncrement records one request and fails once the daily credit is
// exceeded.
func (s *Service) CheckAndIncrement(ctx context.Context, userID uuid.UUID) error {
	day := time.Now().UTC().Format("20060102")
	count, err := s.store.IncrementDailyRequestCount(ctx, userID, day)
	if err != nil {
		return fmt.Errorf("failed to increment request count: %w", err)
	}
	if s.dailyCredit > 0 && count > int64(s.dailyCredit) {
		return ErrDailyLimitReached
	}
	return nil
}

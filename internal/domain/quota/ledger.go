package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docgen/backend/internal/domain/shared"
)

// Reservation is a provisional charge of one generation. It is settled by
// exactly one effective Commit or Rollback; repeating either is a no-op.
type Reservation struct {
	Token     uuid.UUID
	UserID    string
	PeriodKey PeriodKey
	// Used and Limit are the record values right after the reservation
	Used      int64
	Limit     int64
	CreatedAt time.Time
}

// NewReservation creates a reservation with a fresh token
func NewReservation(userID string, period PeriodKey, used, limit int64, now time.Time) *Reservation {
	return &Reservation{
		Token:     uuid.New(),
		UserID:    userID,
		PeriodKey: period,
		Used:      used,
		Limit:     limit,
		CreatedAt: now,
	}
}

// ReserveRequest asks for one generation slot. Limit is the plan limit
// reported by billing; it initializes the period's record and can only raise
// an existing one.
type ReserveRequest struct {
	UserID    string
	PeriodKey PeriodKey
	Limit     int64
}

// Validate checks the request
func (r ReserveRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}
	if r.PeriodKey == "" {
		return fmt.Errorf("%w: period key is required", shared.ErrInvalidInput)
	}
	if r.Limit < Unlimited {
		return fmt.Errorf("%w: limit must be -1 or non-negative", shared.ErrInvalidInput)
	}
	return nil
}

// Ledger is the single source of truth for whether a user may generate.
// Reserve checks and increments in one indivisible step per (user, period).
type Ledger interface {
	// Reserve fails with *ExceededError when no slot is left
	Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error)
	Commit(ctx context.Context, r *Reservation) error
	// Rollback returns the slot of a pending reservation
	Rollback(ctx context.Context, r *Reservation) error
	// Get returns shared.ErrNotFound when the period has no record yet
	Get(ctx context.Context, userID string, period PeriodKey) (*Record, error)
}

// ExceededError reports a reservation refused by the plan limit
type ExceededError struct {
	UserID    string
	PeriodKey PeriodKey
	Used      int64
	Limit     int64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for period %s: used %d of %d", e.PeriodKey, e.Used, e.Limit)
}

// Is matches shared.ErrQuotaExceeded
func (e *ExceededError) Is(target error) bool {
	return target == shared.ErrQuotaExceeded
}

// LimitProvider supplies the plan limit of a user
type LimitProvider interface {
	LimitFor(ctx context.Context, userID string, tier Tier) (int64, error)
}

// PlanLimits is a static LimitProvider keyed by tier
type PlanLimits map[Tier]int64

// DefaultPlanLimits are 5 documents a month on free and unlimited on premium
func DefaultPlanLimits() PlanLimits {
	return PlanLimits{TierFree: 5, TierPremium: Unlimited}
}

// LimitFor returns the limit of the tier; unknown tiers get the free limit
func (p PlanLimits) LimitFor(_ context.Context, _ string, tier Tier) (int64, error) {
	if l, ok := p[tier]; ok {
		return l, nil
	}
	if l, ok := p[TierFree]; ok {
		return l, nil
	}
	return 0, fmt.Errorf("no plan limit configured for tier %q", tier)
}

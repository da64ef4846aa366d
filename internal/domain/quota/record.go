package quota

import (
	"fmt"
	"time"
)

// Unlimited is the limit value of plans without a cap
const Unlimited int64 = -1

// Tier is the entitlement tier of a requester
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// IsValid checks if the Tier is a valid value
func (t Tier) IsValid() bool {
	return t == TierFree || t == TierPremium
}

// IsPremium returns true for the premium tier
func (t Tier) IsPremium() bool {
	return t == TierPremium
}

// String returns the string representation of Tier
func (t Tier) String() string {
	return string(t)
}

// PeriodKey identifies one quota period, e.g. "2024-05"
type PeriodKey string

// Period maps instants to period keys
type Period interface {
	Key(t time.Time) PeriodKey
	// End returns the first instant after the period containing t
	End(t time.Time) time.Time
}

// MonthlyPeriod is the calendar month in UTC
type MonthlyPeriod struct{}

// Key returns the YYYY-MM key of t
func (MonthlyPeriod) Key(t time.Time) PeriodKey {
	return PeriodKey(t.UTC().Format("2006-01"))
}

// End returns the start of the following month
func (MonthlyPeriod) End(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}

// DailyPeriod is the calendar day in UTC
type DailyPeriod struct{}

// Key returns the YYYY-MM-DD key of t
func (DailyPeriod) Key(t time.Time) PeriodKey {
	return PeriodKey(t.UTC().Format(time.DateOnly))
}

// End returns the start of the following day
func (DailyPeriod) End(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// ParsePeriod returns the period policy named by s
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "", "monthly":
		return MonthlyPeriod{}, nil
	case "daily":
		return DailyPeriod{}, nil
	}
	return nil, fmt.Errorf("unknown quota period %q", s)
}

// Record is the usage of one user within one period. Used never exceeds
// Limit unless Limit is Unlimited.
type Record struct {
	UserID    string
	PeriodKey PeriodKey
	Used      int64
	Limit     int64
	UpdatedAt time.Time
}

// IsUnlimited returns true if the record has no cap
func (r Record) IsUnlimited() bool {
	return r.Limit == Unlimited
}

// CanReserve returns true if one more generation fits
func (r Record) CanReserve() bool {
	return r.IsUnlimited() || r.Used < r.Limit
}

// Remaining returns the generations left, or Unlimited
func (r Record) Remaining() int64 {
	if r.IsUnlimited() {
		return Unlimited
	}
	if r.Used >= r.Limit {
		return 0
	}
	return r.Limit - r.Used
}

// RaiseLimit returns the limit a record should carry once a newly reported
// plan limit is taken into account. Limits only ever grow within a period.
func RaiseLimit(current, reported int64) int64 {
	if current == Unlimited || reported == Unlimited {
		return Unlimited
	}
	if reported > current {
		return reported
	}
	return current
}

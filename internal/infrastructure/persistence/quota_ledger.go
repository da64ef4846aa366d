package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/shared"
	"github.com/docgen/backend/internal/infrastructure/persistence/models"
)

const (
	// raiseLimitSQL applies quota.RaiseLimit inside the database
	raiseLimitSQL = `UPDATE quota_records SET quota_limit = CASE
		WHEN quota_limit = -1 OR ? = -1 THEN -1
		WHEN ? > quota_limit THEN ?
		ELSE quota_limit END
		WHERE user_id = ? AND period_key = ?`

	// reserveSQL increments only while a slot is left; zero rows affected
	// means the quota is exhausted
	reserveSQL = `UPDATE quota_records SET used = used + 1, updated_at = ?
		WHERE user_id = ? AND period_key = ? AND (quota_limit = -1 OR used < quota_limit)`

	releaseSQL = `UPDATE quota_records SET used = used - 1, updated_at = ?
		WHERE user_id = ? AND period_key = ? AND used > 0`

	settleSQL = `UPDATE quota_reservations SET status = ?, settled_at = ?
		WHERE token = ? AND status = ?`
)

// GormQuotaLedger implements quota.Ledger on the relational store.
// Every check-and-increment is a single conditional UPDATE, so concurrent
// reservations for one (user, period) serialize on that row.
type GormQuotaLedger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormQuotaLedger creates a new GormQuotaLedger
func NewGormQuotaLedger(db *gorm.DB) *GormQuotaLedger {
	return &GormQuotaLedger{db: db, now: time.Now}
}

// Reserve takes one slot if the record allows it
func (l *GormQuotaLedger) Reserve(ctx context.Context, req quota.ReserveRequest) (*quota.Reservation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := l.now().UTC()
	userID, period := req.UserID, string(req.PeriodKey)

	var (
		reservation *quota.Reservation
		exceeded    *quota.ExceededError
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		initial := models.QuotaRecordModel{UserID: userID, PeriodKey: period, Limit: req.Limit, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&initial).Error; err != nil {
			return err
		}
		if err := tx.Exec(raiseLimitSQL, req.Limit, req.Limit, req.Limit, userID, period).Error; err != nil {
			return err
		}
		result := tx.Exec(reserveSQL, now, userID, period)
		if result.Error != nil {
			return result.Error
		}

		var rec models.QuotaRecordModel
		if err := tx.Where("user_id = ? AND period_key = ?", userID, period).Take(&rec).Error; err != nil {
			return err
		}
		if result.RowsAffected == 0 {
			exceeded = &quota.ExceededError{UserID: userID, PeriodKey: req.PeriodKey, Used: rec.Used, Limit: rec.Limit}
			return nil
		}

		reservation = quota.NewReservation(userID, req.PeriodKey, rec.Used, rec.Limit, now)
		return tx.Create(&models.QuotaReservationModel{
			Token:     reservation.Token.String(),
			UserID:    userID,
			PeriodKey: period,
			Status:    models.ReservationPending,
			CreatedAt: now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	if exceeded != nil {
		return nil, exceeded
	}
	return reservation, nil
}

// Commit settles a pending reservation; settled or unknown tokens are ignored
func (l *GormQuotaLedger) Commit(ctx context.Context, r *quota.Reservation) error {
	if r == nil {
		return nil
	}
	return l.db.WithContext(ctx).
		Exec(settleSQL, models.ReservationCommitted, l.now().UTC(), r.Token.String(), models.ReservationPending).
		Error
}

// Rollback returns the slot of a pending reservation. The token transition
// and the decrement share one transaction, so a slot is returned at most once.
func (l *GormQuotaLedger) Rollback(ctx context.Context, r *quota.Reservation) error {
	if r == nil {
		return nil
	}
	now := l.now().UTC()
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(settleSQL, models.ReservationRolledBack, now, r.Token.String(), models.ReservationPending)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		return tx.Exec(releaseSQL, now, r.UserID, string(r.PeriodKey)).Error
	})
}

// Get reads the record
func (l *GormQuotaLedger) Get(ctx context.Context, userID string, period quota.PeriodKey) (*quota.Record, error) {
	var rec models.QuotaRecordModel
	err := l.db.WithContext(ctx).Where("user_id = ? AND period_key = ?", userID, string(period)).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return rec.ToDomain(), nil
}

// Ensure GormQuotaLedger implements quota.Ledger
var _ quota.Ledger = (*GormQuotaLedger)(nil)

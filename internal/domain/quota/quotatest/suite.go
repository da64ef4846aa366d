// Package quotatest holds the behavioural contract every quota.Ledger
// implementation must satisfy.
package quotatest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/shared"
)

// RunLedgerSuite runs the contract against ledgers built by factory. Each
// subtest gets a fresh ledger.
func RunLedgerSuite(t *testing.T, factory func(t *testing.T) quota.Ledger) {
	const period = quota.PeriodKey("2024-05")
	ctx := context.Background()

	t.Run("lazily initializes a period", func(t *testing.T) {
		l := factory(t)
		_, err := l.Get(ctx, "u1", period)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		r, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: 5})
		require.NoError(t, err)
		assert.Equal(t, int64(1), r.Used)
		assert.Equal(t, int64(5), r.Limit)

		rec, err := l.Get(ctx, "u1", period)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Used)
		assert.Equal(t, int64(5), rec.Limit)
	})

	t.Run("refuses reservations beyond the limit", func(t *testing.T) {
		l := factory(t)
		for i := 0; i < 2; i++ {
			r, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: 2})
			require.NoError(t, err)
			require.NoError(t, l.Commit(ctx, r))
		}
		_, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: 2})
		var exceeded *quota.ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.ErrorIs(t, err, shared.ErrQuotaExceeded)
		assert.Equal(t, int64(2), exceeded.Used)
		assert.Equal(t, int64(2), exceeded.Limit)

		rec, err := l.Get(ctx, "u1", period)
		require.NoError(t, err)
		assert.Equal(t, int64(2), rec.Used)
	})

	t.Run("unlimited never refuses", func(t *testing.T) {
		l := factory(t)
		for i := 0; i < 25; i++ {
			_, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "vip", PeriodKey: period, Limit: quota.Unlimited})
			require.NoError(t, err)
		}
		rec, err := l.Get(ctx, "vip", period)
		require.NoError(t, err)
		assert.Equal(t, int64(25), rec.Used)
		assert.True(t, rec.IsUnlimited())
	})

	t.Run("rollback restores usage exactly once", func(t *testing.T) {
		l := factory(t)
		kept, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: 3})
		require.NoError(t, err)
		require.NoError(t, l.Commit(ctx, kept))

		r, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: 3})
		require.NoError(t, err)
		require.NoError(t, l.Rollback(ctx, r))
		require.NoError(t, l.Rollback(ctx, r))

		rec, err := l.Get(ctx, "u1", period)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Used)

		// rolling back a committed reservation does nothing
		require.NoError(t, l.Rollback(ctx, kept))
		rec, err = l.Get(ctx, "u1", period)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Used)
	})

	t.Run("at most one of N concurrent reservations takes the last slot", func(t *testing.T) {
		l := factory(t)
		const limit = 5
		for i := 0; i < limit-1; i++ {
			r, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: limit})
			require.NoError(t, err)
			require.NoError(t, l.Commit(ctx, r))
		}

		const n = 16
		var (
			wg        sync.WaitGroup
			succeeded atomic.Int32
			start     = make(chan struct{})
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: limit})
				if err == nil {
					succeeded.Add(1)
					return
				}
				if !errors.Is(err, shared.ErrQuotaExceeded) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), succeeded.Load())
		rec, err := l.Get(ctx, "u1", period)
		require.NoError(t, err)
		assert.Equal(t, int64(limit), rec.Used)
	})

	t.Run("concurrent reserve and rollback leaves usage unchanged", func(t *testing.T) {
		l := factory(t)
		var wg sync.WaitGroup
		for i := 0; i < 12; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: 3})
				if err != nil {
					return
				}
				if err := l.Rollback(ctx, r); err != nil {
					t.Errorf("rollback: %v", err)
				}
			}()
		}
		wg.Wait()
		rec, err := l.Get(ctx, "u1", period)
		require.NoError(t, err)
		assert.Equal(t, int64(0), rec.Used)
	})

	t.Run("periods and users are independent", func(t *testing.T) {
		l := factory(t)
		r, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: 1})
		require.NoError(t, err)
		require.NoError(t, l.Commit(ctx, r))

		_, err = l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: "2024-06", Limit: 1})
		assert.NoError(t, err)
		_, err = l.Reserve(ctx, quota.ReserveRequest{UserID: "u2", PeriodKey: period, Limit: 1})
		assert.NoError(t, err)
		_, err = l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: 1})
		assert.ErrorIs(t, err, shared.ErrQuotaExceeded)
	})

	t.Run("limit is raised but never lowered within a period", func(t *testing.T) {
		l := factory(t)
		r, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: 1})
		require.NoError(t, err)
		require.NoError(t, l.Commit(ctx, r))

		r, err = l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(3), r.Limit)

		r, err = l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(3), r.Used)
		assert.Equal(t, int64(3), r.Limit)

		r, err = l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: period, Limit: quota.Unlimited})
		require.NoError(t, err)
		assert.Equal(t, quota.Unlimited, r.Limit)
	})

	t.Run("rejects malformed requests", func(t *testing.T) {
		l := factory(t)
		_, err := l.Reserve(ctx, quota.ReserveRequest{PeriodKey: period, Limit: 1})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", Limit: 1})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

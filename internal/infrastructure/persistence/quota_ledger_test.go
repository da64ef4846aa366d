package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/quota/quotatest"
	"github.com/docgen/backend/internal/domain/shared"
	"github.com/docgen/backend/internal/infrastructure/persistence/models"
)

func TestGormQuotaLedger(t *testing.T) {
	quotatest.RunLedgerSuite(t, func(t *testing.T) quota.Ledger {
		return NewGormQuotaLedger(newSQLiteDB(t))
	})
}

func TestGormQuotaLedger_ReservationRows(t *testing.T) {
	db := newSQLiteDB(t)
	l := NewGormQuotaLedger(db)
	ctx := context.Background()

	committed, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: "2024-05", Limit: 5})
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, committed))

	rolledBack, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: "2024-05", Limit: 5})
	require.NoError(t, err)
	require.NoError(t, l.Rollback(ctx, rolledBack))

	pending, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: "2024-05", Limit: 5})
	require.NoError(t, err)

	status := func(r *quota.Reservation) string {
		var m models.QuotaReservationModel
		require.NoError(t, db.Where("token = ?", r.Token.String()).Take(&m).Error)
		return m.Status
	}
	assert.Equal(t, models.ReservationCommitted, status(committed))
	assert.Equal(t, models.ReservationRolledBack, status(rolledBack))
	assert.Equal(t, models.ReservationPending, status(pending))

	// commit after rollback does not resurrect the slot
	require.NoError(t, l.Commit(ctx, rolledBack))
	assert.Equal(t, models.ReservationRolledBack, status(rolledBack))

	rec, err := l.Get(ctx, "u1", "2024-05")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Used)
	assert.Equal(t, int64(3), rec.Remaining())
}

func TestGormQuotaLedger_PostgresStatements(t *testing.T) {
	t.Run("commit is a guarded status transition", func(t *testing.T) {
		db, mock, mockDB := newMockPostgres(t)
		defer mockDB.Close()
		l := NewGormQuotaLedger(db)
		token := uuid.New()

		mock.ExpectExec(`UPDATE quota_reservations SET status = \$1, settled_at = \$2\s+WHERE token = \$3 AND status = \$4`).
			WithArgs(models.ReservationCommitted, sqlmock.AnyArg(), token.String(), models.ReservationPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := l.Commit(context.Background(), &quota.Reservation{Token: token, UserID: "u1", PeriodKey: "2024-05"})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get maps a missing row to not found", func(t *testing.T) {
		db, mock, mockDB := newMockPostgres(t)
		defer mockDB.Close()
		l := NewGormQuotaLedger(db)

		mock.ExpectQuery(`SELECT \* FROM "quota_records" WHERE user_id = \$1 AND period_key = \$2`).
			WithArgs("u1", "2024-05", 1).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "period_key", "used", "quota_limit", "updated_at"}))

		_, err := l.Get(context.Background(), "u1", "2024-05")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback of a settled token does not touch the record", func(t *testing.T) {
		db, mock, mockDB := newMockPostgres(t)
		defer mockDB.Close()
		l := NewGormQuotaLedger(db)
		token := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE quota_reservations SET status = \$1`).
			WithArgs(models.ReservationRolledBack, sqlmock.AnyArg(), token.String(), models.ReservationPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := l.Rollback(context.Background(), &quota.Reservation{Token: token, UserID: "u1", PeriodKey: "2024-05"})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

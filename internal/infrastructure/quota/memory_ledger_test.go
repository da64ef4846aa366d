package quota

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/quota/quotatest"
)

func TestInMemoryLedger(t *testing.T) {
	quotatest.RunLedgerSuite(t, func(t *testing.T) quota.Ledger {
		return NewInMemoryLedger()
	})
}

func TestInMemoryLedger_CanceledContext(t *testing.T) {
	l := NewInMemoryLedger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Reserve(ctx, quota.ReserveRequest{UserID: "u1", PeriodKey: "2024-05", Limit: 5})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = l.Get(context.Background(), "u1", "2024-05")
	require.Error(t, err)
}

func TestInMemoryLedger_NilReservation(t *testing.T) {
	l := NewInMemoryLedger()
	assert.NoError(t, l.Commit(context.Background(), nil))
	assert.NoError(t, l.Rollback(context.Background(), nil))
}

//go:build integration

package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/document/documenttest"
	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/quota/quotatest"
	"github.com/docgen/backend/internal/domain/shared"
	"github.com/docgen/backend/internal/infrastructure/migration"
)

// newPostgresDB starts a PostgreSQL container and applies the embedded
// migrations. Set TEST_DB_DEBUG to log every statement.
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("docgen_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, "", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	return db
}

func truncate(t *testing.T, db *gorm.DB, tables ...string) {
	t.Helper()
	for _, table := range tables {
		require.NoError(t, db.Exec("TRUNCATE TABLE "+table).Error)
	}
}

func TestPostgres_QuotaLedger(t *testing.T) {
	db := newPostgresDB(t)
	quotatest.RunLedgerSuite(t, func(t *testing.T) quota.Ledger {
		truncate(t, db, "quota_reservations", "quota_records")
		return NewGormQuotaLedger(db)
	})
}

func TestPostgres_ArtifactRepository(t *testing.T) {
	db := newPostgresDB(t)
	repo := NewGormArtifactRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	a := &document.Artifact{
		Handle:      "pg-handle-1",
		OwnerID:     "u1",
		TemplateID:  "invoice-basic",
		Format:      document.FormatPDF,
		BytesRef:    "2024/05/pg-handle-1.pdf",
		ContentType: "application/pdf",
		SizeBytes:   1024,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
	require.NoError(t, repo.Create(ctx, a))
	assert.ErrorIs(t, repo.Create(ctx, a), shared.ErrAlreadyExists)

	got, err := repo.FindByHandle(ctx, a.Handle)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Equal(a.ExpiresAt))

	expired, err := repo.FindExpired(ctx, now.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	require.NoError(t, repo.Delete(ctx, a.Handle))
	_, err = repo.FindByHandle(ctx, a.Handle)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, repo.Create(ctx, a), shared.ErrAlreadyExists, "deleted handles are never reissued")
}

func TestPostgres_TemplateRepository(t *testing.T) {
	db := newPostgresDB(t)
	repo := NewGormTemplateRepository(db)
	ctx := context.Background()

	def := documenttest.InvoiceTemplate()
	require.NoError(t, repo.Save(ctx, def))
	require.NoError(t, repo.SetStatus(ctx, def.ID, document.TemplateStatusInactive))

	got, err := repo.FindByID(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, document.TemplateStatusInactive, got.Status)
	assert.Len(t, got.Fields, len(def.Fields))
}

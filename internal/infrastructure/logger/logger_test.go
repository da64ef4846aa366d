package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestNew(t *testing.T) {
	l, err := New(&Config{Level: "debug", Format: "json", Output: "stdout", Service: "docgen"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	_, err = New(&Config{Level: "loud"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "app.log")
	l, err = New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("hello")
	assert.NoError(t, l.Sync())
	assert.FileExists(t, path)

	_, err = New(&Config{Level: "info", Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithRequestID(context.Background(), zap.New(core), "req-1")
	ctx = WithUserID(ctx, "user-7")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "user-7", GetUserID(ctx))

	L(ctx).Info("generated")
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "user-7", fields["user_id"])
}

func TestFromContext_Default(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}

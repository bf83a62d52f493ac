package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/AndrewYakovlev/aso-store/internal/config"
	"github.com/AndrewYakovlev/aso-store/internal/models"
)

func TestEnsureDatabase_SkipsNonURLDSN(t *testing.T) {
	assert.NoError(t, ensureDatabase("host=localhost dbname=aso"))
	assert.NoError(t, ensureDatabase("postgres://u:p@localhost:5432"))
}

func TestMigrate(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(gdb, zap.NewNop()))
	for _, m := range models.All() {
		assert.True(t, gdb.Migrator().HasTable(m))
	}
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := ConnectRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()

	require.NoError(t, rdb.Set(context.Background(), "k", "v", time.Minute).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestConnectRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := ConnectRedis(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

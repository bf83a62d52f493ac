package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewYakovlev/aso-store/internal/models"
)

func TestAnonymousService_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	meta := RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test-agent"}

	t.Run("creates identity without token", func(t *testing.T) {
		f := newAuthFixture(t)

		anon, err := f.anon.GetOrCreate(ctx, "", meta)
		require.NoError(t, err)

		assert.Regexp(t, `^[0-9a-f]{64}$`, anon.Token)
		assert.Regexp(t, `^[0-9a-f]{32}$`, anon.SessionID)
		assert.Equal(t, "10.0.0.1", anon.IPAddress)
		assert.Equal(t, "test-agent", anon.UserAgent)
		assert.Nil(t, anon.LinkedUserID)
	})

	t.Run("reuses identity and strictly advances activity", func(t *testing.T) {
		f := newAuthFixture(t)

		first, err := f.anon.GetOrCreate(ctx, "", meta)
		require.NoError(t, err)

		// часы стоят на месте, активность все равно растет
		second, err := f.anon.GetOrCreate(ctx, first.Token, meta)
		require.NoError(t, err)
		third, err := f.anon.GetOrCreate(ctx, first.Token, meta)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.ID, third.ID)
		assert.True(t, second.LastActivity.After(first.LastActivity))
		assert.True(t, third.LastActivity.After(second.LastActivity))

		var stored models.AnonymousUser
		require.NoError(t, f.db.First(&stored, "id = ?", first.ID).Error)
		assert.True(t, stored.LastActivity.Equal(third.LastActivity))
	})

	t.Run("unknown token creates new identity", func(t *testing.T) {
		f := newAuthFixture(t)

		anon, err := f.anon.GetOrCreate(ctx, "deadbeef", meta)
		require.NoError(t, err)
		assert.NotEqual(t, "deadbeef", anon.Token)
	})

	t.Run("linked identity is not reused", func(t *testing.T) {
		f := newAuthFixture(t)
		user := createUser(t, f.db, "+79991234567", models.RoleCustomer)

		anon, err := f.anon.GetOrCreate(ctx, "", meta)
		require.NoError(t, err)
		require.NoError(t, f.db.Model(anon).Update("linked_user_id", user.ID).Error)

		fresh, err := f.anon.GetOrCreate(ctx, anon.Token, meta)
		require.NoError(t, err)
		assert.NotEqual(t, anon.ID, fresh.ID)
		assert.NotEqual(t, anon.Token, fresh.Token)
	})
}

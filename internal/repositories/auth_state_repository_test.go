package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motors-client/internal/db"
	"motors-client/internal/models"
)

func newTestRepo(t *testing.T) *AuthStateRepo {
	t.Helper()
	conn, err := db.Connect("sqlite3", filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewAuthStateRepo(conn)
}

func TestAuthStateRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Load(ctx)
	require.ErrorIs(t, err, ErrNoAuthState)

	require.NoError(t, repo.Save(ctx, models.AuthState{Token: "t1", RefreshToken: "r1", UserJSON: `{"_id":"u1","name":"Asha"}`}))
	require.NoError(t, repo.Save(ctx, models.AuthState{Token: "t2", RefreshToken: "r2", UserJSON: `{"_id":"u1","name":"Asha"}`}))

	state, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t2", state.Token)
	assert.Equal(t, "r2", state.RefreshToken)

	user, err := state.User()
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestAuthStateClear(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, models.AuthState{Token: "t1", RefreshToken: "r1"}))
	require.NoError(t, repo.Clear(ctx))

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, ErrNoAuthState)
}

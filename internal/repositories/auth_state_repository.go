package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"motors-client/internal/models"
)

var ErrNoAuthState = errors.New("no auth state")

// AuthStateRepository persists the signed-in user's credentials.
type AuthStateRepository interface {
	Load(ctx context.Context) (models.AuthState, error)
	Save(ctx context.Context, state models.AuthState) error
	Clear(ctx context.Context) error
}

// AuthStateRepo is a sqlx implementation of AuthStateRepository. The table
// holds a single row.
type AuthStateRepo struct {
	db *sqlx.DB
}

// NewAuthStateRepo constructs an AuthStateRepo.
func NewAuthStateRepo(db *sqlx.DB) *AuthStateRepo {
	return &AuthStateRepo{db: db}
}

// Load returns the stored state, or ErrNoAuthState when nobody is signed in.
func (r *AuthStateRepo) Load(ctx context.Context) (models.AuthState, error) {
	var state models.AuthState
	err := r.db.GetContext(ctx, &state, `SELECT token, refresh_token, user_json, updated_at FROM auth_state WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AuthState{}, ErrNoAuthState
	}
	if err != nil {
		return models.AuthState{}, err
	}
	if state.Token == "" {
		return models.AuthState{}, ErrNoAuthState
	}
	return state, nil
}

// Save replaces the stored state.
func (r *AuthStateRepo) Save(ctx context.Context, state models.AuthState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`INSERT INTO auth_state (id, token, refresh_token, user_json, updated_at) VALUES (1, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET token = EXCLUDED.token, refresh_token = EXCLUDED.refresh_token,
        user_json = EXCLUDED.user_json, updated_at = EXCLUDED.updated_at`)
	_, err := r.db.ExecContext(ctx, query, state.Token, state.RefreshToken, state.UserJSON, state.UpdatedAt)
	return err
}

// Clear wipes token, refresh token and cached user together.
func (r *AuthStateRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_state`)
	return err
}

package models

import (
	"encoding/json"
	"time"
)

// User is the cached profile of the signed-in user.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// AuthState is the persisted client-side session.
type AuthState struct {
	Token        string    `db:"token" json:"token"`
	RefreshToken string    `db:"refresh_token" json:"refreshToken"`
	UserJSON     string    `db:"user_json" json:"-"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// User decodes the cached user object.
func (s AuthState) User() (User, error) {
	var u User
	if s.UserJSON == "" {
		return u, nil
	}
	err := json.Unmarshal([]byte(s.UserJSON), &u)
	return u, err
}

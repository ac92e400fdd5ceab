package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"motors-client/internal/models"
	"motors-client/internal/session"
	"motors-client/internal/ws"
)

// SessionService is the session lifecycle the gateway drives.
type SessionService interface {
	Begin(ctx context.Context, state models.AuthState) error
	End(ctx context.Context, clear bool)
	Status() session.Status
}

// SessionHandler signs users in and out of the gateway.
type SessionHandler struct {
	sessions SessionService
}

func NewSessionHandler(sessions SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Create stores the credentials issued by the auth service and connects.
func (h *SessionHandler) Create(c *gin.Context) {
	var req struct {
		Token        string      `json:"token" binding:"required"`
		RefreshToken string      `json:"refreshToken"`
		User         models.User `json:"user"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userJSON, err := session.EncodeUser(req.User)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user"})
		return
	}
	err = h.sessions.Begin(c.Request.Context(), models.AuthState{
		Token:        req.Token,
		RefreshToken: req.RefreshToken,
		UserJSON:     userJSON,
	})
	switch {
	case err == nil:
	case errors.Is(err, session.ErrMissingUser), errors.Is(err, ws.ErrNoToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, session.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
		return
	}

	c.JSON(http.StatusAccepted, h.sessions.Status())
}

// Get reports the session and connection state.
func (h *SessionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Status())
}

// Delete signs out and wipes stored credentials.
func (h *SessionHandler) Delete(c *gin.Context) {
	h.sessions.End(c.Request.Context(), true)
	c.Status(http.StatusNoContent)
}

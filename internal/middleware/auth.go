package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"motors-client/internal/inbox"
	"motors-client/internal/models"
	"motors-client/internal/session"
	"motors-client/internal/ws"
)

const (
	UserIDKey = "userID"
	InboxKey  = "inbox"
)

// SessionSource is what the guards read.
type SessionSource interface {
	User() (models.User, bool)
	Inbox() (*inbox.Store, error)
}

// RequireSession rejects requests while nobody is signed in.
func RequireSession(src SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := src.User()
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		c.Set(UserIDKey, user.ID)
		c.Next()
	}
}

// RequireInbox additionally waits for the realtime connection: 503 while it is
// coming up, 502 when it failed.
func RequireInbox(src SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, err := src.Inbox()
		switch {
		case err == nil:
		case errors.Is(err, session.ErrNoSession):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		case errors.Is(err, ws.ErrNotReady):
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "connection not ready"})
			return
		default:
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "connection failed: " + err.Error()})
			return
		}

		if user, ok := src.User(); ok {
			c.Set(UserIDKey, user.ID)
		}
		c.Set(InboxKey, store)
		c.Next()
	}
}

// InboxFromContext returns the store set by RequireInbox.
func InboxFromContext(c *gin.Context) (*inbox.Store, bool) {
	val, ok := c.Get(InboxKey)
	if !ok {
		return nil, false
	}
	store, ok := val.(*inbox.Store)
	return store, ok
}

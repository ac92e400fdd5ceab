package ui

import (
	"net/url"
	"sync"

	"motors-client/internal/models"
)

// Navigator mirrors the browser location: the current path plus the thread
// reference of the open conversation, so a copied link reopens it.
type Navigator struct {
	mu    sync.RWMutex
	path  string
	query url.Values
}

// NewNavigator starts at path.
func NewNavigator(path string) *Navigator {
	return &Navigator{path: path, query: url.Values{}}
}

// SetThread records ref in the location query.
func (n *Navigator) SetThread(ref models.ThreadRef) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clearThreadLocked()
	if ref.ChatID != "" {
		n.query.Set("chat", ref.ChatID)
		return
	}
	if ref.ProductID != "" {
		n.query.Set("product", ref.ProductID)
	}
	if ref.UserID != "" {
		n.query.Set("user", ref.UserID)
	}
}

// ClearThread removes the thread reference from the location.
func (n *Navigator) ClearThread() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clearThreadLocked()
}

func (n *Navigator) clearThreadLocked() {
	n.query.Del("chat")
	n.query.Del("product")
	n.query.Del("user")
}

// Redirect replaces the location entirely.
func (n *Navigator) Redirect(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
	n.query = url.Values{}
}

// Location renders the current location.
func (n *Navigator) Location() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.query) == 0 {
		return n.path
	}
	return n.path + "?" + n.query.Encode()
}

// ParseThreadRef reads a thread reference from a location query.
func ParseThreadRef(q url.Values) models.ThreadRef {
	return models.ThreadRef{
		ChatID:    q.Get("chat"),
		ProductID: q.Get("product"),
		UserID:    q.Get("user"),
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"motors-client/internal/inbox"
	"motors-client/internal/middleware"
	"motors-client/internal/models"
	"motors-client/internal/ui"
)

// InboxHandler exposes the conversation store. Every route runs behind
// middleware.RequireInbox.
type InboxHandler struct{}

func NewInboxHandler() *InboxHandler {
	return &InboxHandler{}
}

func storeFrom(c *gin.Context) (*inbox.Store, bool) {
	store, ok := middleware.InboxFromContext(c)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "inbox not mounted"})
	}
	return store, ok
}

// Get renders the conversation page.
func (h *InboxHandler) Get(c *gin.Context) {
	store, ok := storeFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, store.View())
}

// Refresh refetches the conversation snapshot.
func (h *InboxHandler) Refresh(c *gin.Context) {
	store, ok := storeFrom(c)
	if !ok {
		return
	}
	if err := store.FetchConversations(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, store.View())
}

// Select opens the thread with a counterpart on a listing.
func (h *InboxHandler) Select(c *gin.Context) {
	var req struct {
		ProductID string `json:"productId" binding:"required"`
		UserID    string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store, ok := storeFrom(c)
	if !ok {
		return
	}
	if err := store.SelectConversation(c.Request.Context(), req.ProductID, req.UserID); err != nil {
		writeInboxError(c, err)
		return
	}
	c.JSON(http.StatusOK, store.View())
}

// Resume reopens a thread from a copied location query.
func (h *InboxHandler) Resume(c *gin.Context) {
	ref := ui.ParseThreadRef(c.Request.URL.Query())
	if ref.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat or product and user required"})
		return
	}
	store, ok := storeFrom(c)
	if !ok {
		return
	}
	if err := store.Resume(c.Request.Context(), ref); err != nil {
		writeInboxError(c, err)
		return
	}
	c.JSON(http.StatusOK, store.View())
}

// Unselect closes the open thread.
func (h *InboxHandler) Unselect(c *gin.Context) {
	store, ok := storeFrom(c)
	if !ok {
		return
	}
	store.UnselectConversation(c.Request.Context())
	c.Status(http.StatusNoContent)
}

// Key forwards a key press to the conversation page.
func (h *InboxHandler) Key(c *gin.Context) {
	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store, ok := storeFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"handled": store.HandleKey(c.Request.Context(), req.Key)})
}

// Draft opens a new thread with the seller of a listing.
func (h *InboxHandler) Draft(c *gin.Context) {
	var req struct {
		ListingID  string                `json:"listingId" binding:"required"`
		SellerID   string                `json:"sellerId" binding:"required"`
		SellerName string                `json:"sellerName"`
		Product    models.ProductDetails `json:"product"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store, ok := storeFrom(c)
	if !ok {
		return
	}
	if err := store.OpenDraft(c.Request.Context(), req.ListingID, req.SellerID, req.SellerName, req.Product); err != nil {
		writeInboxError(c, err)
		return
	}
	c.JSON(http.StatusCreated, store.View())
}

// Send posts a message to the open thread. The message shows up in the view
// once the server pushes it back.
func (h *InboxHandler) Send(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store, ok := storeFrom(c)
	if !ok {
		return
	}
	if err := store.SendMessage(c.Request.Context(), req.Text); err != nil {
		writeInboxError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

func writeInboxError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, inbox.ErrThreadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, inbox.ErrEmptyMessage), errors.Is(err, inbox.ErrSelfConversation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, inbox.ErrNoActiveThread):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

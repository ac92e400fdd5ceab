package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"motors-client/internal/ui"
)

// UIHandler exposes the notice board and the navigator location.
type UIHandler struct {
	notices *ui.NoticeBoard
	nav     *ui.Navigator
}

func NewUIHandler(notices *ui.NoticeBoard, nav *ui.Navigator) *UIHandler {
	return &UIHandler{notices: notices, nav: nav}
}

// Notices drains pending toasts.
func (h *UIHandler) Notices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notices": h.notices.Drain()})
}

// Location returns where the UI should be.
func (h *UIHandler) Location(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"location": h.nav.Location()})
}

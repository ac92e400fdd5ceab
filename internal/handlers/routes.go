package handlers

import (
	"github.com/gin-gonic/gin"

	"motors-client/internal/middleware"
)

// Gateway groups the handlers served by the local gateway.
type Gateway struct {
	Session *SessionHandler
	Inbox   *InboxHandler
	Market  *MarketHandler
	UI      *UIHandler
}

// RegisterRoutes mounts the gateway API on router.
func RegisterRoutes(router *gin.Engine, sessions middleware.SessionSource, g Gateway) {
	router.POST("/session", g.Session.Create)
	router.GET("/session", g.Session.Get)
	router.DELETE("/session", g.Session.Delete)

	router.GET("/notices", g.UI.Notices)
	router.GET("/location", g.UI.Location)

	inboxGuard := middleware.RequireInbox(sessions)
	router.GET("/inbox", inboxGuard, g.Inbox.Get)
	router.POST("/inbox/refresh", inboxGuard, g.Inbox.Refresh)
	router.PUT("/inbox/active", inboxGuard, g.Inbox.Select)
	router.PUT("/inbox/resume", inboxGuard, g.Inbox.Resume)
	router.DELETE("/inbox/active", inboxGuard, g.Inbox.Unselect)
	router.POST("/inbox/keys", inboxGuard, g.Inbox.Key)
	router.POST("/inbox/drafts", inboxGuard, g.Inbox.Draft)
	router.POST("/inbox/messages", inboxGuard, g.Inbox.Send)

	authed := middleware.RequireSession(sessions)
	router.GET("/listings", g.Market.ListListings)
	router.POST("/listings/:id/bids", authed, g.Market.PlaceBid)
	router.GET("/cart", authed, g.Market.GetCart)
	router.POST("/cart", authed, g.Market.AddToCart)
	router.DELETE("/cart/:id", authed, g.Market.RemoveFromCart)
	router.GET("/wishlist", authed, g.Market.GetWishlist)
	router.POST("/wishlist", authed, g.Market.AddToWishlist)
	router.DELETE("/wishlist/:id", authed, g.Market.RemoveFromWishlist)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"motors-client/internal/api"
	"motors-client/internal/models"
	"motors-client/internal/slices"
)

const defaultPageSize = 12

// MarketHandler serves the listing, cart and wishlist slices.
type MarketHandler struct {
	listings *slices.ListingSlice
	cart     *slices.CartSlice
	wishlist *slices.WishlistSlice
}

func NewMarketHandler(listings *slices.ListingSlice, cart *slices.CartSlice, wishlist *slices.WishlistSlice) *MarketHandler {
	return &MarketHandler{listings: listings, cart: cart, wishlist: wishlist}
}

func queryFloat(c *gin.Context, key string) (float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// ListListings fetches listings, filters them locally and returns one page.
func (h *MarketHandler) ListListings(c *gin.Context) {
	minPrice, ok1 := queryFloat(c, "minPrice")
	maxPrice, ok2 := queryFloat(c, "maxPrice")
	page, ok3 := queryInt(c, "page", 1)
	size, ok4 := queryInt(c, "size", defaultPageSize)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}
	saleType := models.SaleType(c.Query("type"))
	if saleType != "" && saleType != models.SaleAuction && saleType != models.SaleFixed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be auction or fixed"})
		return
	}

	query := api.ListingQuery{Category: c.Query("category"), Status: c.Query("status")}
	if err := h.listings.Fetch(c.Request.Context(), query); err != nil {
		status, msg := upstreamStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	filtered := h.listings.Filtered(slices.ListingFilter{
		Category: query.Category,
		Status:   query.Status,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		SaleType: saleType,
		Search:   c.Query("search"),
	})
	c.JSON(http.StatusOK, gin.H{
		"items": slices.Page(filtered, page, size),
		"page":  page,
		"pages": slices.PageCount(len(filtered), size),
		"total": len(filtered),
		"state": h.listings.State(),
	})
}

// PlaceBid submits a bid on an auction listing.
func (h *MarketHandler) PlaceBid(c *gin.Context) {
	var req struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.listings.PlaceBid(c.Request.Context(), c.Param("id"), req.Amount); err != nil {
		status, msg := upstreamStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "submitted"})
}

type itemRequest struct {
	ListingID string `json:"listingId" binding:"required"`
}

func (h *MarketHandler) GetCart(c *gin.Context) {
	cart, err := h.cart.Fetch(c.Request.Context())
	respondCollection(c, cart, err, h.cart.State())
}

func (h *MarketHandler) AddToCart(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cart, err := h.cart.Add(c.Request.Context(), req.ListingID)
	respondCollection(c, cart, err, h.cart.State())
}

func (h *MarketHandler) RemoveFromCart(c *gin.Context) {
	cart, err := h.cart.Remove(c.Request.Context(), c.Param("id"))
	respondCollection(c, cart, err, h.cart.State())
}

func (h *MarketHandler) GetWishlist(c *gin.Context) {
	w, err := h.wishlist.Fetch(c.Request.Context())
	respondCollection(c, w, err, h.wishlist.State())
}

func (h *MarketHandler) AddToWishlist(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.wishlist.Add(c.Request.Context(), req.ListingID)
	respondCollection(c, w, err, h.wishlist.State())
}

func (h *MarketHandler) RemoveFromWishlist(c *gin.Context) {
	w, err := h.wishlist.Remove(c.Request.Context(), c.Param("id"))
	respondCollection(c, w, err, h.wishlist.State())
}

func respondCollection(c *gin.Context, value any, err error, state slices.State) {
	if err != nil {
		status, msg := upstreamStatus(err)
		c.JSON(status, gin.H{"error": msg, "data": value, "state": state})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": value, "state": state})
}

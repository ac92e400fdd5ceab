package api

import (
	"context"
	"net/http"
	"net/url"

	"motors-client/internal/models"
)

// ListingQuery narrows a listing fetch on the server side.
type ListingQuery struct {
	Category string
	Status   string
	Search   string
}

func (q ListingQuery) values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// ListingClient reads listings and places bids.
type ListingClient struct {
	c *Client
}

func NewListingClient(c *Client) *ListingClient {
	return &ListingClient{c: c}
}

// List returns the listings matching q.
func (l *ListingClient) List(ctx context.Context, q ListingQuery) ([]models.Listing, error) {
	path := "/listings"
	if enc := q.values().Encode(); enc != "" {
		path += "?" + enc
	}
	var out []models.Listing
	if err := l.c.do(ctx, "listings.list", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PlaceBid submits a bid. The response body is ignored.
func (l *ListingClient) PlaceBid(ctx context.Context, listingID string, amount float64) error {
	return l.c.do(ctx, "listings.bid", http.MethodPost, "/listings/"+url.PathEscape(listingID)+"/bid", models.Bid{Amount: amount}, nil)
}

type itemRequest struct {
	ListingID string `json:"listingId"`
}

// CartClient manages the server-side cart. Every mutation returns the full
// updated cart.
type CartClient struct {
	c *Client
}

func NewCartClient(c *Client) *CartClient {
	return &CartClient{c: c}
}

func (cc *CartClient) Get(ctx context.Context) (models.Cart, error) {
	var out models.Cart
	err := cc.c.do(ctx, "cart.get", http.MethodGet, "/cart", nil, &out)
	return out, err
}

func (cc *CartClient) Add(ctx context.Context, listingID string) (models.Cart, error) {
	var out models.Cart
	err := cc.c.do(ctx, "cart.add", http.MethodPost, "/cart", itemRequest{ListingID: listingID}, &out)
	return out, err
}

func (cc *CartClient) Remove(ctx context.Context, listingID string) (models.Cart, error) {
	var out models.Cart
	err := cc.c.do(ctx, "cart.remove", http.MethodDelete, "/cart/"+url.PathEscape(listingID), nil, &out)
	return out, err
}

// WishlistClient manages the server-side wishlist.
type WishlistClient struct {
	c *Client
}

func NewWishlistClient(c *Client) *WishlistClient {
	return &WishlistClient{c: c}
}

func (w *WishlistClient) Get(ctx context.Context) (models.Wishlist, error) {
	var out models.Wishlist
	err := w.c.do(ctx, "wishlist.get", http.MethodGet, "/wishlist", nil, &out)
	return out, err
}

func (w *WishlistClient) Add(ctx context.Context, listingID string) (models.Wishlist, error) {
	var out models.Wishlist
	err := w.c.do(ctx, "wishlist.add", http.MethodPost, "/wishlist", itemRequest{ListingID: listingID}, &out)
	return out, err
}

func (w *WishlistClient) Remove(ctx context.Context, listingID string) (models.Wishlist, error) {
	var out models.Wishlist
	err := w.c.do(ctx, "wishlist.remove", http.MethodDelete, "/wishlist/"+url.PathEscape(listingID), nil, &out)
	return out, err
}

package models

import "time"

// SaleType distinguishes auctions from fixed-price listings.
type SaleType string

const (
	SaleAuction SaleType = "auction"
	SaleFixed   SaleType = "fixed"
)

// Listing is a vehicle offered on the marketplace.
type Listing struct {
	ID         string    `json:"_id"`
	Title      string    `json:"title"`
	Make       string    `json:"make,omitempty"`
	Model      string    `json:"model,omitempty"`
	Year       int       `json:"year,omitempty"`
	CategoryID string    `json:"category,omitempty"`
	SellerID   string    `json:"seller,omitempty"`
	SaleType   SaleType  `json:"type"`
	Price      float64   `json:"price"`
	CurrentBid float64   `json:"current_bid,omitempty"`
	Status     string    `json:"status,omitempty"`
	Images     []string  `json:"images,omitempty"`
	EndsAt     time.Time `json:"auction_end,omitempty"`
}

// EffectivePrice is the highest bid for auctions and the asking price otherwise.
func (l Listing) EffectivePrice() float64 {
	if l.SaleType == SaleAuction && l.CurrentBid > l.Price {
		return l.CurrentBid
	}
	return l.Price
}

// Bid is a bid placement request.
type Bid struct {
	Amount float64 `json:"amount"`
}

// CartItem is a listing held in the cart.
type CartItem struct {
	ListingID string  `json:"listingId"`
	Title     string  `json:"title,omitempty"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
}

// Cart is the server's cart collection.
type Cart struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

// WishlistItem is a saved listing.
type WishlistItem struct {
	ListingID string  `json:"listingId"`
	Title     string  `json:"title,omitempty"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
}

// Wishlist is the server's wishlist collection.
type Wishlist struct {
	Items []WishlistItem `json:"items"`
}

package slices

import (
	"context"
	"fmt"
	"sync"

	"motors-client/internal/models"
)

// CartSource is the REST surface of the cart.
type CartSource interface {
	Get(ctx context.Context) (models.Cart, error)
	Add(ctx context.Context, listingID string) (models.Cart, error)
	Remove(ctx context.Context, listingID string) (models.Cart, error)
}

// WishlistSource is the REST surface of the wishlist.
type WishlistSource interface {
	Get(ctx context.Context) (models.Wishlist, error)
	Add(ctx context.Context, listingID string) (models.Wishlist, error)
	Remove(ctx context.Context, listingID string) (models.Wishlist, error)
}

// collection holds a server-owned value. Every successful call replaces it
// with what the server returned; failures keep the previous value.
type collection[T any] struct {
	mu       sync.RWMutex
	value    T
	inflight int
	err      string
}

func (c *collection[T]) run(op string, call func() (T, error)) (T, error) {
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()

	next, err := call()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if err != nil {
		c.err = err.Error()
		return c.value, fmt.Errorf("%s: %w", op, err)
	}
	c.value = next
	c.err = ""
	return c.value, nil
}

func (c *collection[T]) get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

func (c *collection[T]) state() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{Loading: c.inflight > 0, Err: c.err}
}

// CartSlice mirrors the server cart.
type CartSlice struct {
	src  CartSource
	coll collection[models.Cart]
}

func NewCartSlice(src CartSource) *CartSlice {
	return &CartSlice{src: src}
}

func (s *CartSlice) Fetch(ctx context.Context) (models.Cart, error) {
	return s.coll.run("fetch cart", func() (models.Cart, error) { return s.src.Get(ctx) })
}

func (s *CartSlice) Add(ctx context.Context, listingID string) (models.Cart, error) {
	return s.coll.run("add to cart", func() (models.Cart, error) { return s.src.Add(ctx, listingID) })
}

func (s *CartSlice) Remove(ctx context.Context, listingID string) (models.Cart, error) {
	return s.coll.run("remove from cart", func() (models.Cart, error) { return s.src.Remove(ctx, listingID) })
}

func (s *CartSlice) Cart() models.Cart { return s.coll.get() }
func (s *CartSlice) State() State      { return s.coll.state() }

// WishlistSlice mirrors the server wishlist.
type WishlistSlice struct {
	src  WishlistSource
	coll collection[models.Wishlist]
}

func NewWishlistSlice(src WishlistSource) *WishlistSlice {
	return &WishlistSlice{src: src}
}

func (s *WishlistSlice) Fetch(ctx context.Context) (models.Wishlist, error) {
	return s.coll.run("fetch wishlist", func() (models.Wishlist, error) { return s.src.Get(ctx) })
}

func (s *WishlistSlice) Add(ctx context.Context, listingID string) (models.Wishlist, error) {
	return s.coll.run("add to wishlist", func() (models.Wishlist, error) { return s.src.Add(ctx, listingID) })
}

func (s *WishlistSlice) Remove(ctx context.Context, listingID string) (models.Wishlist, error) {
	return s.coll.run("remove from wishlist", func() (models.Wishlist, error) { return s.src.Remove(ctx, listingID) })
}

func (s *WishlistSlice) Wishlist() models.Wishlist { return s.coll.get() }
func (s *WishlistSlice) State() State              { return s.coll.state() }

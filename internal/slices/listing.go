package slices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"motors-client/internal/api"
	"motors-client/internal/models"
)

// Notifier shows transient notices.
type Notifier interface {
	Notify(level, text string)
}

// State is the async status shared by every slice.
type State struct {
	Loading bool   `json:"loading"`
	Err     string `json:"error,omitempty"`
}

// ListingSource is the REST surface the listing slice needs.
type ListingSource interface {
	List(ctx context.Context, q api.ListingQuery) ([]models.Listing, error)
	PlaceBid(ctx context.Context, listingID string, amount float64) error
}

// ListingFilter narrows the cached listings locally.
type ListingFilter struct {
	Category string
	MinPrice float64
	MaxPrice float64
	SaleType models.SaleType
	Status   string
	Search   string
}

// ListingSlice caches the last listing fetch.
type ListingSlice struct {
	src      ListingSource
	notifier Notifier
	logger   *slog.Logger

	mu       sync.RWMutex
	items    []models.Listing
	inflight int
	err      string
}

func NewListingSlice(src ListingSource, notifier Notifier, logger *slog.Logger) *ListingSlice {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingSlice{src: src, notifier: notifier, logger: logger.With("component", "slices.listing")}
}

// Fetch replaces the cache with the server's answer.
func (s *ListingSlice) Fetch(ctx context.Context, q api.ListingQuery) error {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()

	items, err := s.src.List(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if err != nil {
		s.err = err.Error()
		return fmt.Errorf("fetch listings: %w", err)
	}
	s.items = items
	s.err = ""
	return nil
}

// Items returns a copy of the cache.
func (s *ListingSlice) Items() []models.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Listing(nil), s.items...)
}

// Filtered applies f to the cache, keeping server order.
func (s *ListingSlice) Filtered(f ListingFilter) []models.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Listing, 0, len(s.items))
	for _, l := range s.items {
		if f.Category != "" && l.CategoryID != f.Category {
			continue
		}
		if f.SaleType != "" && l.SaleType != f.SaleType {
			continue
		}
		if f.Status != "" && !strings.EqualFold(l.Status, f.Status) {
			continue
		}
		price := l.EffectivePrice()
		if f.MinPrice > 0 && price < f.MinPrice {
			continue
		}
		if f.MaxPrice > 0 && price > f.MaxPrice {
			continue
		}
		if search != "" && !matchesSearch(l, search) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func matchesSearch(l models.Listing, term string) bool {
	for _, field := range []string{l.Title, l.Make, l.Model} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Page returns page (1-based) of items. Out of range pages are empty.
func Page[T any](items []T, page, size int) []T {
	if size <= 0 || page <= 0 {
		return []T{}
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// PageCount is the number of pages needed for n items.
func PageCount(n, size int) int {
	if size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// PlaceBid submits a bid without touching the cache. Failures become notices.
func (s *ListingSlice) PlaceBid(ctx context.Context, listingID string, amount float64) error {
	if amount <= 0 {
		return errors.New("bid amount must be positive")
	}
	if err := s.src.PlaceBid(ctx, listingID, amount); err != nil {
		s.logger.Warn("bid failed", "listing_id", listingID, "error", err)
		s.notify(models.NoticeError, "Failed to place bid: "+errMessage(err))
		return err
	}
	s.notify(models.NoticeInfo, "Bid placed.")
	return nil
}

func (s *ListingSlice) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Loading: s.inflight > 0, Err: s.err}
}

func (s *ListingSlice) notify(level, text string) {
	if s.notifier != nil {
		s.notifier.Notify(level, text)
	}
}

func errMessage(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

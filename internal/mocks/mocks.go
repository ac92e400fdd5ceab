package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"motors-client/internal/api"
	"motors-client/internal/models"
	"motors-client/internal/repositories"
)

var _ repositories.AuthStateRepository = (*AuthStateRepositoryMock)(nil)

type AuthStateRepositoryMock struct {
	mock.Mock
}

func (m *AuthStateRepositoryMock) Load(ctx context.Context) (models.AuthState, error) {
	args := m.Called(ctx)
	var state models.AuthState
	if val := args.Get(0); val != nil {
		state = val.(models.AuthState)
	}
	return state, args.Error(1)
}

func (m *AuthStateRepositoryMock) Save(ctx context.Context, state models.AuthState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *AuthStateRepositoryMock) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type ListingSourceMock struct {
	mock.Mock
}

func (m *ListingSourceMock) List(ctx context.Context, q api.ListingQuery) ([]models.Listing, error) {
	args := m.Called(ctx, q)
	var list []models.Listing
	if val := args.Get(0); val != nil {
		list = val.([]models.Listing)
	}
	return list, args.Error(1)
}

func (m *ListingSourceMock) PlaceBid(ctx context.Context, listingID string, amount float64) error {
	args := m.Called(ctx, listingID, amount)
	return args.Error(0)
}

type CartSourceMock struct {
	mock.Mock
}

func (m *CartSourceMock) cart(args mock.Arguments) (models.Cart, error) {
	var cart models.Cart
	if val := args.Get(0); val != nil {
		cart = val.(models.Cart)
	}
	return cart, args.Error(1)
}

func (m *CartSourceMock) Get(ctx context.Context) (models.Cart, error) {
	return m.cart(m.Called(ctx))
}

func (m *CartSourceMock) Add(ctx context.Context, listingID string) (models.Cart, error) {
	return m.cart(m.Called(ctx, listingID))
}

func (m *CartSourceMock) Remove(ctx context.Context, listingID string) (models.Cart, error) {
	return m.cart(m.Called(ctx, listingID))
}

type WishlistSourceMock struct {
	mock.Mock
}

func (m *WishlistSourceMock) wishlist(args mock.Arguments) (models.Wishlist, error) {
	var w models.Wishlist
	if val := args.Get(0); val != nil {
		w = val.(models.Wishlist)
	}
	return w, args.Error(1)
}

func (m *WishlistSourceMock) Get(ctx context.Context) (models.Wishlist, error) {
	return m.wishlist(m.Called(ctx))
}

func (m *WishlistSourceMock) Add(ctx context.Context, listingID string) (models.Wishlist, error) {
	return m.wishlist(m.Called(ctx, listingID))
}

func (m *WishlistSourceMock) Remove(ctx context.Context, listingID string) (models.Wishlist, error) {
	return m.wishlist(m.Called(ctx, listingID))
}

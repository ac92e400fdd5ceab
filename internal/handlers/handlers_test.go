package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"motors-client/internal/api"
	"motors-client/internal/inbox"
	"motors-client/internal/mocks"
	"motors-client/internal/models"
	"motors-client/internal/session"
	"motors-client/internal/slices"
	"motors-client/internal/ui"
	"motors-client/internal/ws"
)

type sessionServiceMock struct {
	mock.Mock
}

func (m *sessionServiceMock) Begin(ctx context.Context, state models.AuthState) error {
	return m.Called(ctx, state).Error(0)
}

func (m *sessionServiceMock) End(ctx context.Context, clear bool) {
	m.Called(ctx, clear)
}

func (m *sessionServiceMock) Status() session.Status {
	return m.Called().Get(0).(session.Status)
}

type fakeSessions struct {
	user  *models.User
	store *inbox.Store
	err   error
}

func (f *fakeSessions) User() (models.User, bool) {
	if f.user == nil {
		return models.User{}, false
	}
	return *f.user, true
}

func (f *fakeSessions) Inbox() (*inbox.Store, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.store, nil
}

type fakeSocket struct {
	hub      *ws.Hub
	snapshot models.ConversationIndex

	mu    sync.Mutex
	emits []string
}

func (f *fakeSocket) On(event string, fn ws.Handler) func() { return f.hub.Add(event, fn) }
func (f *fakeSocket) Connected() bool                       { return true }

func (f *fakeSocket) Emit(_ context.Context, event string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, event)
	return nil
}

func (f *fakeSocket) Request(_ context.Context, _ string, _ any, out any) error {
	raw, err := json.Marshal(f.snapshot)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeSocket) emitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.emits...)
}

type testDeps struct {
	router   *gin.Engine
	sessions *sessionServiceMock
	guard    *fakeSessions
	socket   *fakeSocket
	listings *mocks.ListingSourceMock
	cart     *mocks.CartSourceMock
	wishlist *mocks.WishlistSourceMock
	notices  *ui.NoticeBoard
	nav      *ui.Navigator
}

func setupRouter(t *testing.T) *testDeps {
	t.Helper()
	gin.SetMode(gin.TestMode)

	socket := &fakeSocket{hub: ws.NewHub(), snapshot: models.ConversationIndex{
		Received: models.ProductMap{"car-1": {
			ProductDetails: models.ProductDetails{Name: "Civic"},
			Users:          models.UserMap{"buyer-1": {Name: "Ann", ChatID: "room-1"}},
		}},
	}}
	notices := ui.NewNoticeBoard(0)
	nav := ui.NewNavigator("/inbox")
	store := inbox.NewStore(socket, inbox.Options{ViewerID: "u1", Navigator: nav, Notifier: notices, Location: time.UTC})
	require.NoError(t, store.Mount(context.Background()))

	d := &testDeps{
		sessions: new(sessionServiceMock),
		guard:    &fakeSessions{user: &models.User{ID: "u1"}, store: store},
		socket:   socket,
		listings: new(mocks.ListingSourceMock),
		cart:     new(mocks.CartSourceMock),
		wishlist: new(mocks.WishlistSourceMock),
		notices:  notices,
		nav:      nav,
	}
	r := gin.New()
	RegisterRoutes(r, d.guard, Gateway{
		Session: NewSessionHandler(d.sessions),
		Inbox:   NewInboxHandler(),
		Market: NewMarketHandler(
			slices.NewListingSlice(d.listings, notices, nil),
			slices.NewCartSlice(d.cart),
			slices.NewWishlistSlice(d.wishlist),
		),
		UI: NewUIHandler(notices, nav),
	})
	d.router = r
	return d
}

func (d *testDeps) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	d.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateSessionSuccess(t *testing.T) {
	d := setupRouter(t)
	d.sessions.On("Begin", mock.Anything, mock.MatchedBy(func(s models.AuthState) bool {
		u, err := s.User()
		return err == nil && s.Token == "tok" && u.ID == "u1"
	})).Return(nil).Once()
	d.sessions.On("Status").Return(session.Status{SignedIn: true, State: "connecting"}).Once()

	rec := d.do(http.MethodPost, "/session", `{"token":"tok","refreshToken":"r","user":{"_id":"u1","name":"Ann"}}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp session.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "connecting", resp.State)
	d.sessions.AssertExpectations(t)
}

func TestCreateSessionValidation(t *testing.T) {
	d := setupRouter(t)

	rec := d.do(http.MethodPost, "/session", `{"user":{"_id":"u1"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	d.sessions.On("Begin", mock.Anything, mock.Anything).Return(session.ErrMissingUser).Once()
	rec = d.do(http.MethodPost, "/session", `{"token":"tok","user":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	d.sessions.On("Begin", mock.Anything, mock.Anything).Return(session.ErrTokenExpired).Once()
	rec = d.do(http.MethodPost, "/session", `{"token":"old","user":{"_id":"u1"}}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	d.sessions.AssertExpectations(t)
}

func TestDeleteSession(t *testing.T) {
	d := setupRouter(t)
	d.sessions.On("End", mock.Anything, true).Once()

	rec := d.do(http.MethodDelete, "/session", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	d.sessions.AssertExpectations(t)
}

func TestInboxGuard(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"signed out", session.ErrNoSession, http.StatusUnauthorized},
		{"connecting", ws.ErrNotReady, http.StatusServiceUnavailable},
		{"failed", &ws.AckError{Event: "handshake", Message: "bad token"}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := setupRouter(t)
			d.guard.err = tc.err
			rec := d.do(http.MethodGet, "/inbox", "")
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestGetInbox(t *testing.T) {
	d := setupRouter(t)

	rec := d.do(http.MethodGet, "/inbox", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view inbox.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, "room-1", view.Conversations.Received["car-1"].Users["buyer-1"].ChatID)
	assert.Nil(t, view.Active)
}

func TestSelectAndSend(t *testing.T) {
	d := setupRouter(t)

	rec := d.do(http.MethodPut, "/inbox/active", `{"productId":"car-1","userId":"buyer-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/inbox?chat=room-1", d.nav.Location())

	rec = d.do(http.MethodPost, "/inbox/messages", `{"text":"hello"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{models.EventJoinRoom, models.EventSendMessage}, d.socket.emitted())

	rec = d.do(http.MethodPost, "/inbox/keys", `{"key":"Escape"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/inbox", d.nav.Location())
}

func TestSelectMissingThread(t *testing.T) {
	d := setupRouter(t)
	rec := d.do(http.MethodPut, "/inbox/active", `{"productId":"car-1","userId":"ghost"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendErrors(t *testing.T) {
	d := setupRouter(t)

	rec := d.do(http.MethodPost, "/inbox/messages", `{"text":"hello"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	d.do(http.MethodPut, "/inbox/active", `{"productId":"car-1","userId":"buyer-1"}`)
	rec = d.do(http.MethodPost, "/inbox/messages", `{"text":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, d.socket.emitted(), models.EventSendMessage)
}

func TestResumeRequiresReference(t *testing.T) {
	d := setupRouter(t)

	rec := d.do(http.MethodPut, "/inbox/resume", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = d.do(http.MethodPut, "/inbox/resume?chat=room-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDraftToSelf(t *testing.T) {
	d := setupRouter(t)
	rec := d.do(http.MethodPost, "/inbox/drafts", `{"listingId":"car-3","sellerId":"u1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListListingsFiltersAndPages(t *testing.T) {
	d := setupRouter(t)
	d.listings.On("List", mock.Anything, api.ListingQuery{Category: "truck"}).Return([]models.Listing{
		{ID: "a", CategoryID: "truck", SaleType: models.SaleFixed, Price: 100},
		{ID: "b", CategoryID: "truck", SaleType: models.SaleAuction, Price: 200},
		{ID: "c", CategoryID: "truck", SaleType: models.SaleAuction, Price: 300},
	}, nil).Once()

	rec := d.do(http.MethodGet, "/listings?category=truck&type=auction&size=1&page=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Items []models.Listing `json:"items"`
		Pages int              `json:"pages"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "c", resp.Items[0].ID)
	assert.Equal(t, 2, resp.Pages)
	assert.Equal(t, 2, resp.Total)
	d.listings.AssertExpectations(t)
}

func TestListListingsBadQuery(t *testing.T) {
	d := setupRouter(t)
	rec := d.do(http.MethodGet, "/listings?type=barter", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = d.do(http.MethodGet, "/listings?page=0", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceBidPassesThroughClientError(t *testing.T) {
	d := setupRouter(t)
	d.listings.On("PlaceBid", mock.Anything, "l1", 500.0).Return(&api.APIError{Status: http.StatusConflict, Message: "auction ended"}).Once()

	rec := d.do(http.MethodPost, "/listings/l1/bids", `{"amount":500}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	notices := d.notices.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, "Failed to place bid: auction ended", notices[0].Text)
}

func TestCartRoutes(t *testing.T) {
	d := setupRouter(t)
	d.cart.On("Add", mock.Anything, "l1").Return(models.Cart{Items: []models.CartItem{{ListingID: "l1", Price: 10}}, Total: 10}, nil).Once()
	d.cart.On("Remove", mock.Anything, "l1").Return(nil, &api.APIError{Status: http.StatusInternalServerError, Message: "db down"}).Once()

	rec := d.do(http.MethodPost, "/cart", `{"listingId":"l1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = d.do(http.MethodDelete, "/cart/l1", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	var resp struct {
		Data models.Cart `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Data.Items, 1)
	d.cart.AssertExpectations(t)
}

func TestCartRequiresSession(t *testing.T) {
	d := setupRouter(t)
	d.guard.user = nil
	rec := d.do(http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	d.cart.AssertNotCalled(t, "Get", mock.Anything)
}

func TestWishlistRoutes(t *testing.T) {
	d := setupRouter(t)
	d.wishlist.On("Get", mock.Anything).Return(models.Wishlist{Items: []models.WishlistItem{{ListingID: "w1"}}}, nil).Once()

	rec := d.do(http.MethodGet, "/wishlist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d.wishlist.AssertExpectations(t)
}

func TestNoticesDrain(t *testing.T) {
	d := setupRouter(t)
	d.notices.Notify(models.NoticeWarning, "heads up")

	rec := d.do(http.MethodGet, "/notices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Notices []models.Notice `json:"notices"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Notices, 1)
	assert.Equal(t, "heads up", resp.Notices[0].Text)

	rec = d.do(http.MethodGet, "/notices", "")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Notices)
}

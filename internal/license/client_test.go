package license

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/mpetrovs/scribebot/internal/common"
	"github.com/mpetrovs/scribebot/internal/logging"
)

type fakeTokenStore struct {
	tokens map[int64]string
	users  map[int64]string
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[int64]string{}, users: map[int64]string{}}
}

func (f *fakeTokenStore) GetToken(ctx context.Context, userID int64) (string, error) {
	token, ok := f.tokens[userID]
	if !ok {
		return "", common.ErrNotFound
	}
	return token, nil
}

func (f *fakeTokenStore) SetToken(ctx context.Context, userID int64, token string) error {
	f.tokens[userID] = token
	return nil
}

func (f *fakeTokenStore) EnsureUser(ctx context.Context, userID int64, email string) error {
	f.users[userID] = email
	return nil
}

type licenseServer struct {
	authCalls  int
	goodsCalls int
	lastToken  string
}

func (s *licenseServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login.json", func(w http.ResponseWriter, r *http.Request) {
		s.authCalls++

		var req authRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.UserName != "a@b.com" || req.UserPassword != "secret" {
			json.NewEncoder(w).Encode(authResponse{})
			return
		}
		json.NewEncoder(w).Encode(authResponse{Token: "fresh-token"})
	})

	mux.HandleFunc("/api/v2/licenseSale/getOwnGoods", func(w http.ResponseWriter, r *http.Request) {
		s.goodsCalls++
		s.lastToken = r.Header.Get("auth-token")

		resp := GoodsResponse{}
		resp.Data.Goods = []Good{{Name: "Подписка 30 минут"}}
		json.NewEncoder(w).Encode(resp)
	})

	return mux
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestClient(t *testing.T, srv *licenseServer, store TokenStore) *Client {
	t.Helper()
	ts := httptest.NewServer(srv.handler(t))
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, store, testLogger())
}

func TestOwnedGoods_AuthenticatesWhenNoCachedToken(t *testing.T) {
	srv := &licenseServer{}
	store := newFakeTokenStore()
	c := newTestClient(t, srv, store)

	resp, err := c.OwnedGoods(context.Background(), 42, "a@b.com", "secret")
	require.NoError(t, err)
	require.Len(t, resp.Data.Goods, 1)
	require.Equal(t, "Подписка 30 минут", resp.Data.Goods[0].Name)

	require.Equal(t, 1, srv.authCalls)
	require.Equal(t, "fresh-token", srv.lastToken)
	require.Equal(t, "fresh-token", store.tokens[42])
	require.Equal(t, "a@b.com", store.users[42])
}

func TestOwnedGoods_UsesCachedToken(t *testing.T) {
	srv := &licenseServer{}
	store := newFakeTokenStore()
	store.tokens[42] = "opaque-cached"
	c := newTestClient(t, srv, store)

	_, err := c.OwnedGoods(context.Background(), 42, "a@b.com", "secret")
	require.NoError(t, err)

	require.Equal(t, 0, srv.authCalls)
	require.Equal(t, "opaque-cached", srv.lastToken)
}

func TestOwnedGoods_ReauthenticatesExpiredJWT(t *testing.T) {
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("whatever"))
	require.NoError(t, err)

	srv := &licenseServer{}
	store := newFakeTokenStore()
	store.tokens[42] = expired
	c := newTestClient(t, srv, store)

	_, err = c.OwnedGoods(context.Background(), 42, "a@b.com", "secret")
	require.NoError(t, err)

	require.Equal(t, 1, srv.authCalls)
	require.Equal(t, "fresh-token", store.tokens[42])
}

func TestOwnedGoods_AuthRejected(t *testing.T) {
	srv := &licenseServer{}
	c := newTestClient(t, srv, newFakeTokenStore())

	_, err := c.OwnedGoods(context.Background(), 42, "a@b.com", "wrong")
	require.ErrorIs(t, err, common.ErrService)
	require.Equal(t, 0, srv.goodsCalls)
}

func TestOwnedGoods_GoodsServiceError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer ts.Close()

	store := newFakeTokenStore()
	store.tokens[42] = "cached"
	c := NewClient(ts.URL, store, testLogger())

	_, err := c.OwnedGoods(context.Background(), 42, "a@b.com", "secret")
	require.ErrorIs(t, err, common.ErrService)

	var se *common.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadGateway, se.Status)
}

func TestTokenExpired(t *testing.T) {
	require.False(t, tokenExpired("opaque-token"))

	valid, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.False(t, tokenExpired(valid))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user",
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.False(t, tokenExpired(noExp))
}

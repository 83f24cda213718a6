package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archive/internal/live"
	"archive/internal/metrics"
	"archive/internal/ratelimit"
	"archive/internal/testutil"
	"archive/pkg/models"
	"archive/pkg/utils"
)

type apiFixture struct {
	srv *httptest.Server
	hub *live.Hub
}

func newAPI(t *testing.T, limiter *ratelimit.KeyedRateLimiter) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := utils.Default()
	cfg.Auth.Secret = "test-secret"
	cfg.Auth.BcryptCost = 4
	cfg.Auth.CookieSecure = false

	reg := prometheus.NewRegistry()
	hub := live.NewHub(nil)
	collector := metrics.NewCollector(reg)
	collector.WatchLiveClients(hub.Count)

	srv := httptest.NewServer(New(Deps{
		Config:   cfg,
		DB:       testutil.NewDB(t),
		Hub:      hub,
		Metrics:  collector,
		Gatherer: reg,
		Limiter:  limiter,
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &apiFixture{srv: srv, hub: hub}
}

func (f *apiFixture) call(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

type session struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

func (f *apiFixture) register(t *testing.T, username string) session {
	t.Helper()
	code, raw := f.call(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, code, string(raw))
	var s session
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func (f *apiFixture) createBook(t *testing.T, token, title string) models.Book {
	t.Helper()
	code, raw := f.call(t, http.MethodPost, "/api/books", token, gin.H{
		"title":           title,
		"author":          "Frank Herbert",
		"description":     "Desert planet",
		"genre":           []string{"Sci-Fi"},
		"publicationYear": 1965,
	})
	require.Equal(t, http.StatusCreated, code, string(raw))
	var b models.Book
	require.NoError(t, json.Unmarshal(raw, &b))
	return b
}

func TestAPI_ReviewFlow(t *testing.T) {
	f := newAPI(t, nil)

	alice := f.register(t, "alice")
	book := f.createBook(t, alice.Token, "Dune")

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/reviews/live"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, hello, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(hello), "welcome")

	code, raw := f.call(t, http.MethodPost, "/api/reviews/"+book.ID, alice.Token, gin.H{
		"rating": 4, "headline": "Great", "text": "Loved it",
	})
	require.Equal(t, http.StatusCreated, code, string(raw))

	var ev live.ReviewEvent
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, live.TypeReviewCreated, ev.Type)
	assert.Equal(t, book.ID, ev.BookID)
	assert.Equal(t, 4.0, ev.AverageRating)

	code, raw = f.call(t, http.MethodGet, "/api/books/"+book.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	var detail models.BookDetail
	require.NoError(t, json.Unmarshal(raw, &detail))
	assert.Equal(t, 4.0, detail.AverageRating)
	assert.Equal(t, 1, detail.ReviewCount)
	require.Len(t, detail.Reviews, 1)
	assert.Equal(t, "alice", detail.Reviews[0].User.Username)

	code, raw = f.call(t, http.MethodPost, "/api/reviews/"+book.ID, alice.Token, gin.H{
		"rating": 1, "headline": "Again", "text": "Second try",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(raw), "You have already reviewed this book.")

	bob := f.register(t, "bob")
	code, _ = f.call(t, http.MethodPost, "/api/reviews/"+book.ID, bob.Token, gin.H{
		"rating": 1, "headline": "Meh", "text": "Too long",
	})
	require.Equal(t, http.StatusCreated, code)

	code, raw = f.call(t, http.MethodGet, "/api/books/"+book.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(raw, &detail))
	assert.Equal(t, 2.5, detail.AverageRating)
	assert.Equal(t, 2, detail.ReviewCount)

	code, raw = f.call(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(raw), "archive_reviews_submitted_total 2")
	assert.Contains(t, string(raw), `archive_reviews_rejected_total{code="CONFLICT"} 1`)
	assert.Contains(t, string(raw), "archive_live_clients 1")
}

func TestAPI_DeleteAccountRefreshesRatings(t *testing.T) {
	f := newAPI(t, nil)

	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	book := f.createBook(t, alice.Token, "Dune")

	for _, s := range []struct {
		token  string
		rating int
	}{{alice.Token, 5}, {bob.Token, 2}} {
		code, raw := f.call(t, http.MethodPost, "/api/reviews/"+book.ID, s.token, gin.H{
			"rating": s.rating, "headline": "h", "text": "t",
		})
		require.Equal(t, http.StatusCreated, code, string(raw))
	}

	code, _ := f.call(t, http.MethodDelete, "/api/auth/"+alice.ID, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, raw := f.call(t, http.MethodDelete, "/api/auth/"+bob.ID, bob.Token, nil)
	require.Equal(t, http.StatusOK, code, string(raw))

	code, raw = f.call(t, http.MethodGet, "/api/books/"+book.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	var detail models.BookDetail
	require.NoError(t, json.Unmarshal(raw, &detail))
	assert.Equal(t, 5.0, detail.AverageRating)
	assert.Equal(t, 1, detail.ReviewCount)

	code, _ = f.call(t, http.MethodGet, "/api/auth/profile", bob.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAPI_CORS(t *testing.T) {
	f := newAPI(t, nil)

	preflight := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/api/books", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	resp := preflight("http://localhost:5173")
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	resp = preflight("http://evil.example")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPI_HealthAndReady(t *testing.T) {
	f := newAPI(t, nil)

	code, raw := f.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))

	code, raw = f.call(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ready","db":"ok","live_clients":0}`, string(raw))
}

func TestAPI_LoginIsRateLimited(t *testing.T) {
	limiter := ratelimit.New(0.001, 2)
	defer limiter.Stop()
	f := newAPI(t, limiter)

	var codes []int
	for i := 0; i < 3; i++ {
		code, _ := f.call(t, http.MethodPost, "/api/auth/login", "", gin.H{
			"email": "nobody@example.com", "password": "secret1",
		})
		codes = append(codes, code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

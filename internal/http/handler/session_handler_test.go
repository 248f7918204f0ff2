package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helioslab/credgate/internal/config"
	"github.com/helioslab/credgate/internal/domain"
	httptransport "github.com/helioslab/credgate/internal/http"
	"github.com/helioslab/credgate/internal/http/handler"
	httpmiddleware "github.com/helioslab/credgate/internal/http/middleware"
	"github.com/helioslab/credgate/internal/idp"
	"github.com/helioslab/credgate/internal/service"
	"github.com/helioslab/credgate/internal/token"
)

func testConfig() config.Config {
	return config.Config{
		AccessTokenSecret:  "access-secret-access-secret-1234",
		RefreshTokenSecret: "refresh-secret-refresh-secret-12",
		SigningAlgorithm:   "HS256",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Authorization", "Content-Type"},
		ServiceName:        "credgate-test",
	}
}

type testEnv struct {
	router   *gin.Engine
	accounts *memoryAccountRepo
	identity *fakeIdPClient
	tokens   *token.Service
	cfg      config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	accounts := newMemoryAccountRepo()
	identity := &fakeIdPClient{status: "active", externalID: "ext-1"}
	tokens := token.NewService(cfg)
	sessions := service.NewSessionService(accounts, identity, tokens, zap.NewNop())
	sessionHandler := handler.NewSessionHandler(sessions, cfg)
	authMiddleware := &httpmiddleware.Auth{Sessions: sessions}
	router := httptransport.NewRouter(cfg, sessionHandler, authMiddleware, nil)

	return &testEnv{router: router, accounts: accounts, identity: identity, tokens: tokens, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range mutate {
		fn(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	return decoded
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "refresh_token" {
			return cookie
		}
	}
	return nil
}

func TestSessionScenario(t *testing.T) {
	env := newTestEnv(t)

	// Register.
	w := env.do(t, http.MethodPost, "/register", `{"email":"a@x.com","password":"pw1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	registered := decodeBody(t, w)
	require.Equal(t, "success", registered["status"])
	require.NotEmpty(t, registered["token"])
	require.Nil(t, refreshCookie(t, w), "register must not set a refresh cookie")

	// Duplicate register.
	w = env.do(t, http.MethodPost, "/register", `{"email":"a@x.com","password":"pw1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "duplicate_account", decodeBody(t, w)["error"])

	// Wrong password.
	w = env.do(t, http.MethodPost, "/login", `{"email":"a@x.com","password":"wrongpw"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_credentials", decodeBody(t, w)["error"])

	// Login.
	w = env.do(t, http.MethodPost, "/login", `{"email":"a@x.com","password":"pw1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	login := decodeBody(t, w)
	require.NotEmpty(t, login["access_token"])

	cookie := refreshCookie(t, w)
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	require.Equal(t, int(env.cfg.RefreshTokenTTL.Seconds()), cookie.MaxAge)
	require.NotContains(t, w.Body.String(), cookie.Value, "refresh token must never appear in a response body")

	// Refresh with the cookie.
	w = env.do(t, http.MethodPost, "/refresh", "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refresh_token", Value: cookie.Value})
	})
	require.Equal(t, http.StatusOK, w.Code)
	refreshed := decodeBody(t, w)
	require.NotEmpty(t, refreshed["access_token"])
	require.NotEqual(t, login["access_token"], refreshed["access_token"])

	// Me with the refreshed access token.
	w = env.do(t, http.MethodGet, "/me", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+refreshed["access_token"])
	})
	require.Equal(t, http.StatusOK, w.Code)
	me := decodeBody(t, w)
	require.Equal(t, "a@x.com", me["email"])
	require.Equal(t, "ext-1", me["external_id"])
	require.NotEmpty(t, me["id"])
}

func TestLoginUnverified(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/register", `{"email":"a@x.com","password":"pw1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	env.identity.status = idp.StatusUnverified
	w = env.do(t, http.MethodPost, "/login", `{"email":"a@x.com","password":"pw1"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "account_unverified", decodeBody(t, w)["error"])
}

func TestLoginUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/login", `{"email":"nobody@x.com","password":"pw1"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "account_not_found", decodeBody(t, w)["error"])
}

func TestRefreshWithoutCookie(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/refresh", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "missing_refresh_token", decodeBody(t, w)["error"])
}

func TestRefreshWithTamperedCookie(t *testing.T) {
	env := newTestEnv(t)

	refresh, err := env.tokens.IssueRefresh("a@x.com")
	require.NoError(t, err)
	tampered := refresh[:len(refresh)-4] + "AAAA"

	w := env.do(t, http.MethodPost, "/refresh", "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refresh_token", Value: tampered})
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_refresh_token", decodeBody(t, w)["error"])
}

func TestRefreshRejectsAccessTokenCookie(t *testing.T) {
	env := newTestEnv(t)

	access, err := env.tokens.IssueAccess("a@x.com")
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/refresh", "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refresh_token", Value: access})
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_refresh_token", decodeBody(t, w)["error"])
}

func TestMeWithoutHeader(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/me", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "missing_authorization", decodeBody(t, w)["error"])

	w = env.do(t, http.MethodGet, "/me", "", func(r *http.Request) {
		r.Header.Set("Authorization", "NotBearer abc")
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "missing_authorization", decodeBody(t, w)["error"])
}

func TestMeWithExpiredToken(t *testing.T) {
	env := newTestEnv(t)

	expiredCfg := env.cfg
	expiredCfg.AccessTokenTTL = -time.Minute
	expired, err := token.NewService(expiredCfg).IssueAccess("a@x.com")
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/me", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+expired)
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_access_token", decodeBody(t, w)["error"])
}

func TestMeForDeletedAccount(t *testing.T) {
	env := newTestEnv(t)

	access, err := env.tokens.IssueAccess("gone@x.com")
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/me", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access)
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "account_not_found", decodeBody(t, w)["error"])
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", decodeBody(t, w)["status"])

	cookie := refreshCookie(t, w)
	require.NotNil(t, cookie)
	require.Empty(t, cookie.Value)
	require.Negative(t, cookie.MaxAge)
}

func TestRegisterInvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/register", `{"email":"a@x.com"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_request", decodeBody(t, w)["error"])

	w = env.do(t, http.MethodPost, "/register", `not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_request", decodeBody(t, w)["error"])
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", decodeBody(t, w)["status"])
}

// memoryAccountRepo mirrors the unique-index guarantees of the Postgres
// repository for in-process handler tests.
type memoryAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{accounts: make(map[string]domain.Account)}
}

func (m *memoryAccountRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[email]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return account, nil
}

func (m *memoryAccountRepo) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[account.Email]; exists {
		return domain.Account{}, domain.ErrDuplicateEmail
	}
	for _, existing := range m.accounts {
		if existing.ExternalID == account.ExternalID {
			return domain.Account{}, domain.ErrDuplicateExternalID
		}
	}
	m.accounts[account.Email] = account
	return account, nil
}

func (m *memoryAccountRepo) TouchLastLogin(ctx context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, account := range m.accounts {
		if account.ID == accountID {
			now := time.Now().UTC()
			account.LastLogin = &now
			m.accounts[email] = account
			return nil
		}
	}
	return domain.ErrAccountNotFound
}

type fakeIdPClient struct {
	mu         sync.Mutex
	status     string
	externalID string
}

func (f *fakeIdPClient) Register(ctx context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.externalID, nil
}

func (f *fakeIdPClient) LookupByEmail(ctx context.Context, email string) (idp.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return idp.Identity{ExternalID: f.externalID, Status: f.status}, nil
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/admindash/internal/repository"
	"github.com/aryan0dhankhar/admindash/internal/security"
	"github.com/aryan0dhankhar/admindash/internal/security/audit"
	"github.com/aryan0dhankhar/admindash/internal/security/auth"
	"github.com/aryan0dhankhar/admindash/internal/security/middleware"
	"github.com/aryan0dhankhar/admindash/internal/security/ratelimit"
	"github.com/aryan0dhankhar/admindash/internal/service"
)

type serverOptions struct {
	enforceRoles bool
	loginLimit   int
	apiLimit     int
}

// testServer runs the full API over a seeded file store
type testServer struct {
	*httptest.Server
	Tokens    *auth.TokenManager
	Directory *service.Directory
	StorePath string
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	path := filepath.Join(t.TempDir(), "users.json")
	store := repository.NewFileUserStore(path, repository.CorruptFail, log)
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	dir := service.NewDirectory(store, hasher, service.DirectoryOptions{
		DefaultPassword:      "defaultPassword123",
		AllowDefaultPassword: true,
	}, log)
	_, err := dir.Seed(context.Background(), service.DefaultSeed())
	require.NoError(t, err)

	tokens := auth.NewTokenManager("test-secret", "admindash")
	sessions := service.NewAuthService(dir, hasher, tokens, false, log)
	auditLog := audit.NewLogger(log)

	loginLimiter := ratelimit.NewLimiter(0, time.Minute)
	t.Cleanup(loginLimiter.Stop)
	var apiLimiter *ratelimit.Limiter
	if opts.apiLimit > 0 {
		apiLimiter = ratelimit.NewLimiter(opts.apiLimit, time.Minute)
		t.Cleanup(apiLimiter.Stop)
	}
	var authz *security.AuthorizationService
	if opts.enforceRoles {
		authz = security.NewAuthorizationService(log)
	}

	mux := NewRouter(RouterConfig{
		Auth:       NewAuthHandler(sessions, LoginThrottle{Limiter: loginLimiter, Max: opts.loginLimit, Window: time.Minute}, auditLog, log),
		Users:      NewUsersHandler(dir, log),
		Dashboard:  NewDashboardHandler(dir),
		Health:     NewHealthHandler(map[string]Pinger{"store": store}, log),
		Validator:  auth.NewValidator(tokens),
		APILimiter: apiLimiter,
		Audit:      auditLog,
		Authz:      authz,
		Logger:     log,
	})

	srv := httptest.NewServer(middleware.RequestID(log)(middleware.ValidateJSONContentType(log)(mux)))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, Tokens: tokens, Directory: dir, StorePath: path}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res service.LoginResult
	decodeBody(t, resp, &res)
	require.NotEmpty(t, res.Token)
	return res.Token
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func messageOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	var m middleware.MessageResponse
	decodeBody(t, resp, &m)
	return m.Message
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bikebill/authcore"
	"github.com/bikebill/authcore/fieldcrypt"
	"github.com/bikebill/authcore/internal/credstore"
	"github.com/bikebill/authcore/internal/rate"
	"github.com/bikebill/authcore/middleware"
)

const password = "correct-horse-battery"

type apiEnv struct {
	engine *authcore.Engine
	router http.Handler

	mu      sync.Mutex
	tickets map[string]string
}

func newAPIEnv(t *testing.T, mutate func(*authcore.Config)) *apiEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = bytes.Repeat([]byte("j"), 32)
	cfg.Encryption.Key = bytes.Repeat([]byte("k"), 32)
	cfg.Verification.Salt = bytes.Repeat([]byte("s"), 16)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	cfg.RateLimit.Policies[rate.ScopeRegister] = rate.Policy{Points: 100, Duration: time.Hour}
	if mutate != nil {
		mutate(&cfg)
	}

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	cipher, err := fieldcrypt.New(cfg.Encryption.Key)
	require.NoError(t, err)
	codec := authcore.NewRecordCodec(cipher, nil)
	store, err := credstore.New(db, codec)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithRecordCodec(codec).
		WithLogger(logger).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	env := &apiEnv{engine: engine, tickets: make(map[string]string)}
	env.router = NewRouter(engine, Options{
		Logger: logger,
		Deliver: func(_ context.Context, subjectID string, ticket *authcore.VerificationTicket) error {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.tickets[subjectID] = ticket.Token
			return nil
		},
	})
	return env
}

func (env *apiEnv) do(t *testing.T, method, path string, body any, mods ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mods {
		m(req)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == authcore.DefaultConfig().Cookie.Name {
			return c
		}
	}
	t.Fatalf("no refresh cookie in response")
	return nil
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (env *apiEnv) register(t *testing.T, identity string) (sessionResponse, *http.Cookie) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/auth/register", registerRequest{
		Identity: identity,
		Email:    identity + "@example.com",
		Password: password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[sessionResponse](t, rec), refreshCookie(t, rec)
}

func TestRegisterMeAndConfirm(t *testing.T) {
	env := newAPIEnv(t, nil)

	sess, cookie := env.register(t, "alice")
	assert.NotEmpty(t, sess.AccessToken)
	assert.Equal(t, "Bearer", sess.TokenType)
	assert.Equal(t, string(authcore.VerificationIssued), sess.Verification)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	rec := env.do(t, http.MethodGet, "/auth/me", nil, bearer(sess.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[identityResponse](t, rec)
	assert.Equal(t, sess.SubjectID, me.SubjectID)

	env.mu.Lock()
	token := env.tickets[sess.SubjectID]
	env.mu.Unlock()
	require.NotEmpty(t, token)

	rec = env.do(t, http.MethodPost, "/auth/verify-email", confirmRequest{Identity: "alice", Token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(authcore.VerificationConfirmed), decodeBody[statusResponse](t, rec).Status)

	rec = env.do(t, http.MethodPost, "/auth/verify-email", confirmRequest{Identity: "alice", Token: token})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/verify-email/resend", nil, bearer(sess.AccessToken))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, string(authcore.VerificationAlreadyDone), decodeBody[statusResponse](t, rec).Status)
}

func TestRegisterDuplicate(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.register(t, "alice")

	dup := env.do(t, http.MethodPost, "/auth/register", registerRequest{Identity: "alice", Password: password})
	bad := env.do(t, http.MethodPost, "/auth/register", registerRequest{Identity: "carol", Email: "not an email", Password: password})

	assert.Equal(t, http.StatusBadRequest, dup.Code)
	assert.Equal(t, bad.Code, dup.Code)
	assert.Equal(t, bad.Body.String(), dup.Body.String())
	assert.Equal(t, "invalid request", decodeBody[middleware.ErrorBody](t, dup).Error)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.register(t, "alice")

	wrong := env.do(t, http.MethodPost, "/auth/login", loginRequest{Identity: "alice", Password: "not-the-password"})
	unknown := env.do(t, http.MethodPost, "/auth/login", loginRequest{Identity: "bob", Password: password})

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())

	ok := env.do(t, http.MethodPost, "/auth/login", loginRequest{Identity: "alice", Password: password})
	require.Equal(t, http.StatusOK, ok.Code)
	assert.NotEmpty(t, decodeBody[sessionResponse](t, ok).AccessToken)
}

func TestRefreshRotatesCookie(t *testing.T) {
	env := newAPIEnv(t, nil)
	_, first := env.register(t, "alice")

	rec := env.do(t, http.MethodPost, "/auth/refresh", nil, withCookie(first))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := refreshCookie(t, rec)
	assert.NotEqual(t, first.Value, second.Value)

	replay := env.do(t, http.MethodPost, "/auth/refresh", nil, withCookie(first))
	assert.Equal(t, http.StatusUnauthorized, replay.Code)
	assert.Equal(t, -1, refreshCookie(t, replay).MaxAge)

	rec = env.do(t, http.MethodPost, "/auth/refresh", nil, withCookie(second))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	env := newAPIEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesRefresh(t *testing.T) {
	env := newAPIEnv(t, nil)
	_, cookie := env.register(t, "alice")

	rec := env.do(t, http.MethodPost, "/auth/logout", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -1, refreshCookie(t, rec).MaxAge)

	rec = env.do(t, http.MethodPost, "/auth/logout", nil, withCookie(cookie))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/refresh", nil, withCookie(cookie))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuardRejects(t *testing.T) {
	env := newAPIEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid or expired token", decodeBody[middleware.ErrorBody](t, rec).Error)

	rec = env.do(t, http.MethodGet, "/auth/me", nil, bearer("not.a.jwt"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePasswordAndDelete(t *testing.T) {
	env := newAPIEnv(t, nil)
	sess, cookie := env.register(t, "alice")

	rec := env.do(t, http.MethodPost, "/auth/password", passwordRequest{
		OldPassword: password,
		NewPassword: "another-long-passphrase",
	}, bearer(sess.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/auth/refresh", nil, withCookie(cookie))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", loginRequest{Identity: "alice", Password: "another-long-passphrase"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/auth/account", nil, bearer(sess.AccessToken))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", loginRequest{Identity: "alice", Password: "another-long-passphrase"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	env := newAPIEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/auth/login", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", `{"identity":"a","password":"b","admin":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIRateLimit(t *testing.T) {
	env := newAPIEnv(t, func(cfg *authcore.Config) {
		cfg.RateLimit.Policies[rate.ScopeAPI] = rate.Policy{Points: 2, Duration: time.Minute}
	})

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/auth/me", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDAndHealth(t *testing.T) {
	env := newAPIEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.False(t, decodeBody[healthResponse](t, rec).RateLimiterDegraded)

	rec = env.do(t, http.MethodGet, "/healthz", nil, func(r *http.Request) {
		r.Header.Set(requestIDHeader, "req-123")
	})
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestMetricsMounted(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.router = NewRouter(env.engine, Options{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "authcore_login_success_total 0\n")
		}),
	})

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "authcore_login_success_total")
}

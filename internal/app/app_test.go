package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/timetable-client/internal/config"
	"github.com/and161185/timetable-client/internal/errs"
	"github.com/and161185/timetable-client/internal/model"
	"github.com/and161185/timetable-client/internal/repository/memory"
	"github.com/and161185/timetable-client/internal/route"
)

type backend struct {
	srv     *httptest.Server
	me      atomic.Int32
	revoked atomic.Bool
}

var users = map[string]model.User{
	"Bearer good-admin":   {ID: 1, Email: "admin@gym.cz", Role: model.RoleAdmin, SchoolID: 4, TenantID: "gym"},
	"Bearer good-teacher": {ID: 2, Email: "t@gym.cz", Role: model.RoleTeacher, SchoolID: 4, TenantID: "gym"},
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var c model.Credentials
		_ = json.NewDecoder(r.Body).Decode(&c)
		if r.Header.Get("X-Tenant") != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "login is not tenant scoped"})
			return
		}
		if c.Email != "admin@gym.cz" || c.Password != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
			return
		}
		writeJSON(w, http.StatusOK, model.LoginResponse{
			AccessToken: "good-admin", RefreshToken: "r", TenantSlug: "gym", SchoolID: 4, SchoolName: "Gymnázium",
		})
	})
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if b.revoked.Load() || body.RefreshToken != "r" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid refresh token"})
			return
		}
		writeJSON(w, http.StatusOK, model.Tokens{AccessToken: "good-admin", RefreshToken: "r"})
	})
	mux.HandleFunc("GET /api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		b.me.Add(1)
		u, ok := users[r.Header.Get("Authorization")]
		if !ok || b.revoked.Load() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		writeJSON(w, http.StatusOK, u)
	})
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := users[r.Header.Get("Authorization")]; !ok || b.revoked.Load() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		if r.Header.Get("X-Tenant") != "gym" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Unknown tenant"})
			return
		}
		if r.URL.Path == "/api/v1/classes/7" {
			writeJSON(w, http.StatusOK, map[string]any{"id": 7, "name": "1.A"})
			return
		}
		if r.URL.Path == "/api/v1/boom" {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "msg"})
			return
		}
		_, _ = io.WriteString(w, "[]")
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

type captured struct {
	mu     sync.Mutex
	alerts []model.Alert
}

func (c *captured) hook(a model.Alert) {
	c.mu.Lock()
	c.alerts = append(c.alerts, a)
	c.mu.Unlock()
}

func open(t *testing.T, b *backend, opts ...Option) (*App, *captured) {
	t.Helper()
	return openCfg(t, config.Config{
		APIURL:  b.srv.URL + "/api/v1",
		Store:   config.StoreMemory,
		Timeout: 5 * time.Second,
	}, opts...)
}

func openCfg(t *testing.T, cfg config.Config, opts ...Option) (*App, *captured) {
	t.Helper()
	c := &captured{}
	a, err := Open(context.Background(), cfg, nil, append(opts, WithAlertHook(c.hook))...)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, c
}

func TestLoginThenGuardedNavigation(t *testing.T) {
	b := newBackend(t)
	a, alerts := open(t, b)
	ctx := context.Background()

	require.NoError(t, a.Session.Login(ctx, "admin@gym.cz", "pw"))
	require.True(t, a.Session.IsAuthenticated())
	st := a.Session.Snapshot()
	require.Equal(t, "gym", st.TenantSlug)
	require.Equal(t, int64(4), st.SchoolID)

	got, err := a.Router.Navigate(ctx, "/classes")
	require.NoError(t, err)
	require.Equal(t, "/classes", got)

	got, err = a.Router.Navigate(ctx, "/absence")
	require.NoError(t, err)
	require.Equal(t, route.Dashboard, got)

	require.NoError(t, a.API.Get(ctx, "/classes", nil))
	require.Empty(t, alerts.alerts)
}

func TestWrongPasswordIsTheCallersProblem(t *testing.T) {
	b := newBackend(t)
	a, alerts := open(t, b)

	err := a.Session.Login(context.Background(), "admin@gym.cz", "nope")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.False(t, a.Session.IsAuthenticated())
	require.Equal(t, route.Login, a.Router.Current())
	require.Empty(t, alerts.alerts)
	require.Empty(t, a.Alerts.List())
}

func TestPersistedTokenResolvedOnceOnFirstNavigation(t *testing.T) {
	b := newBackend(t)
	kv := memory.NewKV()
	ctx := context.Background()
	require.NoError(t, kv.SetMany(ctx, map[string]string{
		model.KeyAccessToken: "good-teacher",
		model.KeyTenantSlug:  "gym",
	}))
	a, _ := open(t, b, WithKV(kv))
	require.True(t, a.Session.Pending())

	got, err := a.Router.Navigate(ctx, "/absence")
	require.NoError(t, err)
	require.Equal(t, "/absence", got)
	require.Equal(t, int32(1), b.me.Load())

	_, err = a.Router.Navigate(ctx, "/timetable")
	require.NoError(t, err)
	require.Equal(t, int32(1), b.me.Load())
}

func TestExpiredPersistedTokenLandsOnLogin(t *testing.T) {
	b := newBackend(t)
	kv := memory.NewKV()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, model.KeyAccessToken, "expired"))
	require.NoError(t, kv.Set(ctx, model.KeyLanguage, "cs"))
	a, alerts := open(t, b, WithKV(kv))

	got, err := a.Router.Navigate(ctx, "/timetable")
	require.NoError(t, err)
	require.Equal(t, route.Login, got)
	require.Equal(t, route.Login, a.Router.Current())
	require.False(t, a.Session.IsAuthenticated())
	require.Equal(t, int32(1), b.me.Load())
	require.Empty(t, alerts.alerts)

	_, err = kv.Get(ctx, model.KeyAccessToken)
	require.ErrorIs(t, err, errs.ErrNotFound)
	lang, err := a.Lang.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "cs", lang)
}

func TestAny401TearsDownSession(t *testing.T) {
	b := newBackend(t)
	a, alerts := open(t, b)
	ctx := context.Background()

	require.NoError(t, a.Session.Login(ctx, "admin@gym.cz", "pw"))
	_, err := a.Router.Navigate(ctx, "/substitutions")
	require.NoError(t, err)

	b.revoked.Store(true)
	err = a.API.Get(ctx, "/substitutions", nil)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.False(t, a.Session.IsAuthenticated())
	require.Empty(t, a.Session.AccessToken())
	require.Equal(t, route.Login, a.Router.Current())
	require.Empty(t, alerts.alerts)
}

func TestRequestErrorAlertedAndReturned(t *testing.T) {
	b := newBackend(t)
	a, alerts := open(t, b)
	ctx := context.Background()
	require.NoError(t, a.Session.Login(ctx, "admin@gym.cz", "pw"))

	err := a.API.Get(ctx, "/boom", nil)
	require.ErrorIs(t, err, errs.ErrForbidden)
	require.Len(t, alerts.alerts, 1)
	require.Equal(t, model.AlertError, alerts.alerts[0].Type)
	require.Equal(t, "msg", alerts.alerts[0].Message)
	require.True(t, a.Session.IsAuthenticated())
}

func TestOpen_RejectsBadConfig(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Store: "etcd", Timeout: time.Second}, nil)
	require.Error(t, err)
}

func TestWatch_NeedsFileStore(t *testing.T) {
	b := newBackend(t)
	a, _ := open(t, b)
	require.Error(t, a.Watch(context.Background(), nil))
}

func TestRefresh(t *testing.T) {
	b := newBackend(t)
	a, alerts := open(t, b)
	ctx := context.Background()
	require.NoError(t, a.Session.Login(ctx, "admin@gym.cz", "pw"))

	require.NoError(t, a.Session.Refresh(ctx))
	require.True(t, a.Session.IsAuthenticated())
	require.Equal(t, "good-admin", a.Session.AccessToken())
	require.Empty(t, alerts.alerts)
}

func TestRefreshRejectedTearsDownSession(t *testing.T) {
	b := newBackend(t)
	a, alerts := open(t, b)
	ctx := context.Background()
	require.NoError(t, a.Session.Login(ctx, "admin@gym.cz", "pw"))
	_, err := a.Router.Navigate(ctx, "/classes")
	require.NoError(t, err)

	b.revoked.Store(true)
	err = a.Session.Refresh(ctx)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.False(t, a.Session.IsAuthenticated())
	require.Empty(t, a.Session.AccessToken())
	require.Equal(t, route.Login, a.Router.Current())
	require.Empty(t, alerts.alerts)
	require.ErrorIs(t, a.Session.Refresh(ctx), errs.ErrNoSession)
}

func TestLoginLimiterSharedAcrossFileStoreProcesses(t *testing.T) {
	b := newBackend(t)
	cfg := config.Config{
		APIURL:           b.srv.URL + "/api/v1",
		Store:            config.StoreFile,
		StoreDir:         t.TempDir(),
		Timeout:          5 * time.Second,
		LoginMaxFailures: 2,
		LoginWindow:      time.Minute,
		LoginBlock:       time.Hour,
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		a, _ := openCfg(t, cfg)
		require.ErrorIs(t, a.Session.Login(ctx, "admin@gym.cz", "nope"), errs.ErrUnauthorized)
		a.Close()
	}

	a, _ := openCfg(t, cfg)
	require.ErrorIs(t, a.Session.Login(ctx, "admin@gym.cz", "pw"), errs.ErrRateLimited)
	require.False(t, a.Session.IsAuthenticated())
}

func TestResources(t *testing.T) {
	b := newBackend(t)
	a, alerts := open(t, b)
	ctx := context.Background()
	require.NoError(t, a.Session.Login(ctx, "admin@gym.cz", "pw"))

	list, err := a.Resources("classes").List(ctx, nil)
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(list))

	item, err := a.Resources("/classes/").Get(ctx, "7")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":7,"name":"1.A"}`, string(item))
	require.Empty(t, alerts.alerts)
}

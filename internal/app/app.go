// Package app wires the session, gateway, router and alert bus of one client
// process together.
package app

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/timetable-client/internal/alert"
	"github.com/and161185/timetable-client/internal/config"
	"github.com/and161185/timetable-client/internal/gateway"
	"github.com/and161185/timetable-client/internal/limiter"
	"github.com/and161185/timetable-client/internal/locale"
	"github.com/and161185/timetable-client/internal/migrate"
	"github.com/and161185/timetable-client/internal/model"
	"github.com/and161185/timetable-client/internal/repository"
	"github.com/and161185/timetable-client/internal/repository/file"
	"github.com/and161185/timetable-client/internal/repository/memory"
	"github.com/and161185/timetable-client/internal/repository/postgres"
	redisrepo "github.com/and161185/timetable-client/internal/repository/redis"
	"github.com/and161185/timetable-client/internal/repository/sealed"
	"github.com/and161185/timetable-client/internal/route"
	"github.com/and161185/timetable-client/internal/service"
	"github.com/and161185/timetable-client/internal/session"
)

// App is the explicit session context of the process. Build one with Open
// and pass it around; nothing here is global.
type App struct {
	Config  config.Config
	KV      repository.KV
	Session *session.Store
	Alerts  *alert.Bus
	Router  *route.Router
	API     *gateway.Client
	Auth    *service.AuthService
	Lang    *locale.Preference
	Text    *locale.Translator

	watcher *file.KV
	closers []func()
	log     *zap.Logger
}

type options struct {
	kv    repository.KV
	base  http.RoundTripper
	hooks []func(model.Alert)
}

// Option customizes Open.
type Option func(*options)

// WithKV bypasses backend selection.
func WithKV(kv repository.KV) Option {
	return func(o *options) { o.kv = kv }
}

// WithBaseTransport sets the RoundTripper under the gateway.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// WithAlertHook observes every published alert.
func WithAlertHook(fn func(model.Alert)) Option {
	return func(o *options) { o.hooks = append(o.hooks, fn) }
}

// Open builds every component, restoring the persisted session.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, log: log}
	var lim limiter.Limiter
	if o.kv != nil {
		a.KV = o.kv
	} else if err := a.openStore(ctx, &lim); err != nil {
		a.Close()
		return nil, err
	}
	if cfg.Passphrase != "" {
		a.KV = sealed.New(a.KV, cfg.Passphrase)
	}
	// limiter state lives next to the session so separate CLI runs share it
	if lim == nil && cfg.LoginMaxFailures > 0 {
		lim = limiter.NewStore(a.KV, cfg.LoginWindow, cfg.LoginMaxFailures, cfg.LoginBlock)
	}

	sopts := []session.Option{session.WithLogger(log.Named("session"))}
	if lim != nil {
		sopts = append(sopts, session.WithLimiter(lim))
	}
	store, err := session.Open(ctx, a.KV, sopts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}
	a.Session = store

	bopts := []alert.Option{alert.WithDefaultDuration(cfg.AlertDuration), alert.WithLogger(log.Named("alert"))}
	for _, h := range o.hooks {
		bopts = append(bopts, alert.OnPublish(h))
	}
	a.Alerts = alert.New(bopts...)
	a.Router = route.NewRouter(route.NewGuard(store, route.DefaultTable(), log.Named("route")), log.Named("route"))

	base := o.base
	if base == nil {
		if base, err = baseTransport(cfg.CACert, cfg.Insecure); err != nil {
			a.Close()
			return nil, err
		}
	}
	tr := gateway.NewTransport(store,
		gateway.WithBase(base),
		gateway.WithTenantFallback(a.KV),
		gateway.WithNavigator(a.Router),
		gateway.WithAlerter(a.Alerts),
		gateway.WithLogger(log.Named("gateway")),
	)
	a.API = gateway.NewClient(cfg.APIURL, tr, gateway.WithTimeout(cfg.Timeout))
	a.Auth = service.NewAuthService(a.API)
	store.SetAuthenticator(a.Auth)

	a.Lang = locale.NewPreference(a.KV, cfg.Language)
	if a.Text, err = locale.NewTranslator(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context, lim *limiter.Limiter) error {
	cfg := a.Config
	switch strings.ToLower(cfg.Store) {
	case config.StoreMemory:
		a.KV = memory.NewKV()
		if cfg.LoginMaxFailures > 0 {
			*lim = limiter.NewMemory(cfg.LoginWindow, cfg.LoginMaxFailures, cfg.LoginBlock)
		}
	case config.StoreRedis:
		kv, c, err := redisrepo.Open(ctx, cfg.RedisURL, cfg.Profile)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		a.KV = kv
	case config.StorePostgres:
		if err := migrate.Up(ctx, cfg.PostgresDSN, a.log.Named("migrate")); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.KV = postgres.NewKVRepo(db, cfg.Profile)
		if cfg.LoginMaxFailures > 0 {
			*lim = limiter.NewPG(db.Pool, cfg.LoginWindow, cfg.LoginMaxFailures, cfg.LoginBlock)
		}
	default:
		dir := cfg.StoreDir
		if dir == "" {
			dir = file.ConfigDir()
		}
		f := file.New(dir, a.log.Named("store"))
		a.watcher = f
		a.KV = f
	}
	return nil
}

func baseTransport(caPath string, insecure bool) (http.RoundTripper, error) {
	if caPath == "" && !insecure {
		return http.DefaultTransport, nil
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // dev only, behind -insecure
		return t, nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	t.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	return t, nil
}

// Resources returns a JSON client for one backend collection, routed through
// the session-aware gateway.
func (a *App) Resources(collection string) *service.Resources {
	return service.NewResources(a.API, collection)
}

// Watch reloads the session whenever another process rewrites the file
// store, then calls fn. Only the file backend can be watched.
func (a *App) Watch(ctx context.Context, fn func(session.State)) error {
	if a.watcher == nil {
		return fmt.Errorf("watch: store %q cannot be watched", a.Config.Store)
	}
	return a.watcher.Watch(ctx, func() {
		if err := a.Session.Reload(ctx); err != nil {
			a.log.Warn("reload session", zap.Error(err))
			return
		}
		fn(a.Session.Snapshot())
	})
}

// Close releases backend connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

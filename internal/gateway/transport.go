// Package gateway wraps every outbound backend call: it attaches the bearer
// credential and tenant scope on the way out and reacts to failure statuses
// on the way back.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/and161185/timetable-client/internal/errs"
	"github.com/and161185/timetable-client/internal/model"
	"github.com/and161185/timetable-client/internal/repository"
)

const (
	// HeaderTenant carries the tenant slug on every call except login.
	HeaderTenant = "X-Tenant"
	// LoginPath is the credential exchange endpoint, relative to the API root.
	LoginPath = "/auth/login"
	// LoginRoute is where the client is sent after a 401.
	LoginRoute = "/login"
)

// CredentialProvider is the narrow view of the session the gateway needs.
type CredentialProvider interface {
	AccessToken() string
	TenantSlug() string
	Logout(ctx context.Context)
}

// Navigator forces client navigation.
type Navigator interface {
	Redirect(ctx context.Context, path string)
}

// Alerter surfaces request errors to the user.
type Alerter interface {
	Error(message string) string
}

// Transport is an http.RoundTripper applying the gateway contract.
type Transport struct {
	base     http.RoundTripper
	creds    CredentialProvider
	fallback repository.KV
	nav      Navigator
	alerts   Alerter
	log      *zap.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithBase sets the underlying transport (default http.DefaultTransport).
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) { t.base = rt }
}

// WithTenantFallback reads the persisted tenant slug when the in-memory one
// is empty.
func WithTenantFallback(kv repository.KV) Option {
	return func(t *Transport) { t.fallback = kv }
}

// WithNavigator sets where 401 redirects go.
func WithNavigator(n Navigator) Option {
	return func(t *Transport) { t.nav = n }
}

// WithAlerter sets where request errors are published.
func WithAlerter(a Alerter) Option {
	return func(t *Transport) { t.alerts = a }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTransport builds the gateway transport around creds.
func NewTransport(creds CredentialProvider, opts ...Option) *Transport {
	t := &Transport{
		base:  http.DefaultTransport,
		creds: creds,
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func isLogin(r *http.Request) bool {
	return strings.HasSuffix(strings.TrimRight(r.URL.Path, "/"), LoginPath)
}

func (t *Transport) tenant(ctx context.Context) string {
	if slug := t.creds.TenantSlug(); slug != "" {
		return slug
	}
	if t.fallback == nil {
		return ""
	}
	slug, err := t.fallback.Get(ctx, model.KeyTenantSlug)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		t.log.Warn("tenant fallback", zap.Error(err))
	}
	return slug
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()
	login := isLogin(req)

	out := req.Clone(ctx)
	if tok := t.creds.AccessToken(); tok != "" {
		(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}).SetAuthHeader(out)
	}
	if login {
		out.Header.Del(HeaderTenant)
	} else if slug := t.tenant(ctx); slug != "" {
		out.Header.Set(HeaderTenant, slug)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		t.log.Info("http",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	t.log.Info("http",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
	)

	// credential failures on login belong to the caller
	if login || resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.creds.Logout(ctx)
		if t.nav != nil {
			t.nav.Redirect(ctx, LoginRoute)
		}
		return resp, nil
	}

	body, rerr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if t.alerts != nil {
		t.alerts.Error(ErrorMessage(body, rerr))
	}
	return resp, nil
}

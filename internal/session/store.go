// Package session owns the authenticated identity, the token pair and the
// tenant/school scope of the running client.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/timetable-client/internal/errs"
	"github.com/and161185/timetable-client/internal/limiter"
	"github.com/and161185/timetable-client/internal/model"
	"github.com/and161185/timetable-client/internal/repository"
)

// Authenticator talks to the backend auth endpoints.
type Authenticator interface {
	// Login exchanges credentials for tokens and tenant scope.
	Login(ctx context.Context, email, password string) (model.LoginResponse, error)
	// Me returns the user owning the current access token.
	Me(ctx context.Context) (model.User, error)
	// Refresh exchanges a refresh token for a new pair.
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
}

// State is an immutable snapshot of the session.
type State struct {
	AccessToken  string
	RefreshToken string
	TenantSlug   string
	SchoolID     int64
	SchoolName   string
	User         *model.User
}

// IsAuthenticated reports token and resolved user both present.
func (s State) IsAuthenticated() bool { return s.AccessToken != "" && s.User != nil }

// Pending reports a token whose user has not been resolved yet.
func (s State) Pending() bool { return s.AccessToken != "" && s.User == nil }

// Store is the single writer of session state. Safe for concurrent use;
// no lock is held across network calls.
type Store struct {
	mu   sync.RWMutex
	st   State
	gen  uint64 // bumped on every login commit and logout
	auth Authenticator

	kv  repository.KV
	lim limiter.Limiter
	sf  singleflight.Group
	log *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLimiter throttles repeated failed logins for the same email.
func WithLimiter(l limiter.Limiter) Option {
	return func(s *Store) { s.lim = l }
}

// WithAuthenticator sets the backend client at construction time.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Store) { s.auth = a }
}

// Open builds a Store and restores persisted entries from kv.
func Open(ctx context.Context, kv repository.KV, opts ...Option) (*Store, error) {
	s := &Store{kv: kv, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// SetAuthenticator binds the backend client. It exists because the client
// itself is built on a gateway that reads credentials from this Store.
func (s *Store) SetAuthenticator(a Authenticator) {
	s.mu.Lock()
	s.auth = a
	s.mu.Unlock()
}

func (s *Store) authenticator() (Authenticator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth == nil {
		return nil, errors.New("session: no authenticator bound")
	}
	return s.auth, nil
}

func (s *Store) read(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, errs.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// Reload re-reads persisted entries. The resolved user is kept only when the
// access token did not change.
func (s *Store) Reload(ctx context.Context) error {
	var next State
	for key, dst := range map[string]*string{
		model.KeyAccessToken:  &next.AccessToken,
		model.KeyRefreshToken: &next.RefreshToken,
		model.KeyTenantSlug:   &next.TenantSlug,
		model.KeySchoolName:   &next.SchoolName,
	} {
		v, err := s.read(ctx, key)
		if err != nil {
			return fmt.Errorf("restore %s: %w", key, err)
		}
		*dst = v
	}
	raw, err := s.read(ctx, model.KeySchoolID)
	if err != nil {
		return fmt.Errorf("restore %s: %w", model.KeySchoolID, err)
	}
	if raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.log.Warn("ignoring malformed school id", zap.String("value", raw))
		}
		next.SchoolID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if next.AccessToken == s.st.AccessToken {
		next.User = s.st.User
	} else {
		s.gen++
	}
	s.st = next
	return nil
}

// Login authenticates without tenant scoping, commits tokens and scope in one
// step, persists them and resolves the user. Rejected credentials leave the
// current state untouched.
func (s *Store) Login(ctx context.Context, email, password string) error {
	var limKey []byte
	if s.lim != nil {
		limKey = limiter.HashKey(email)
		ok, wait, err := s.lim.Allow(ctx, limKey)
		if err != nil {
			return fmt.Errorf("login limiter: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: retry in %s", errs.ErrRateLimited, wait.Round(time.Second))
		}
	}

	auth, err := s.authenticator()
	if err != nil {
		return err
	}
	gen := s.generation()

	resp, err := auth.Login(ctx, email, password)
	if err != nil {
		if s.lim != nil && isCredentialError(err) {
			if blocked, d, lerr := s.lim.Failure(ctx, limKey); lerr != nil {
				s.log.Warn("login limiter failure", zap.Error(lerr))
			} else if blocked {
				s.log.Warn("login blocked", zap.Duration("for", d))
			}
		}
		return err
	}
	if resp.AccessToken == "" {
		return errors.New("login: empty access token")
	}

	next := State{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TenantSlug:   resp.TenantSlug,
		SchoolID:     resp.SchoolID,
		SchoolName:   resp.SchoolName,
	}
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return errs.ErrStaleResponse
	}
	s.gen++
	s.st = next
	s.mu.Unlock()

	s.persist(ctx, next)
	if s.lim != nil {
		if err := s.lim.Success(ctx, limKey); err != nil {
			s.log.Warn("login limiter reset", zap.Error(err))
		}
	}
	s.log.Info("login", zap.String("tenant", next.TenantSlug), zap.Int64("school", next.SchoolID))

	return s.FetchUser(ctx)
}

func isCredentialError(err error) bool {
	var ae *errs.APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func (s *Store) persist(ctx context.Context, st State) {
	entries := map[string]string{
		model.KeyAccessToken:  st.AccessToken,
		model.KeyRefreshToken: st.RefreshToken,
		model.KeyTenantSlug:   st.TenantSlug,
		model.KeySchoolID:     strconv.FormatInt(st.SchoolID, 10),
	}
	if st.SchoolName != "" {
		entries[model.KeySchoolName] = st.SchoolName
	} else if err := s.kv.Remove(ctx, model.KeySchoolName); err != nil {
		s.log.Warn("persist session", zap.String("key", model.KeySchoolName), zap.Error(err))
	}
	if err := repository.SetAll(ctx, s.kv, entries); err != nil {
		s.log.Warn("persist session", zap.Error(err))
	}
}

// FetchUser resolves the user for the current token. Any failure tears the
// session down. Concurrent callers share one request.
func (s *Store) FetchUser(ctx context.Context) error {
	s.mu.RLock()
	tok, gen := s.st.AccessToken, s.gen
	s.mu.RUnlock()
	if tok == "" {
		return errs.ErrNoSession
	}
	auth, err := s.authenticator()
	if err != nil {
		return err
	}

	v, err, _ := s.sf.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return auth.Me(ctx)
	})
	if err != nil {
		// a 401 may already have torn this generation down through the gateway
		if s.generation() == gen {
			s.Logout(ctx)
		}
		return fmt.Errorf("fetch user: %w", err)
	}
	u := v.(model.User)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.st.AccessToken != tok {
		return errs.ErrStaleResponse
	}
	s.st.User = &u
	return nil
}

// Refresh trades the refresh token for a new pair. It is never called
// implicitly. A 401 from the refresh endpoint tears the session down through
// the gateway like any other 401; other failures leave the state as it was.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	rt, gen := s.st.RefreshToken, s.gen
	s.mu.RUnlock()
	if rt == "" {
		return errs.ErrNoSession
	}
	auth, err := s.authenticator()
	if err != nil {
		return err
	}
	tokens, err := auth.Refresh(ctx, rt)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	if tokens.AccessToken == "" {
		return errors.New("refresh: empty access token")
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return errs.ErrStaleResponse
	}
	s.st.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		s.st.RefreshToken = tokens.RefreshToken
	}
	st := s.st
	s.mu.Unlock()

	if err := repository.SetAll(ctx, s.kv, map[string]string{
		model.KeyAccessToken:  st.AccessToken,
		model.KeyRefreshToken: st.RefreshToken,
	}); err != nil {
		s.log.Warn("persist refreshed tokens", zap.Error(err))
	}
	return nil
}

// Logout clears every field and every persisted session entry. The language
// preference is kept. Calling it twice is harmless.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	had := s.st.AccessToken != "" || s.st.User != nil
	s.st = State{}
	s.gen++
	s.mu.Unlock()

	if err := repository.RemoveAll(ctx, s.kv, model.SessionKeys...); err != nil {
		s.log.Warn("clear persisted session", zap.Error(err))
	}
	if had {
		s.log.Info("logout")
	}
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.st
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// IsAuthenticated reports whether both a token and a resolved user are held.
func (s *Store) IsAuthenticated() bool { return s.Snapshot().IsAuthenticated() }

// Pending reports a token whose user has not been fetched yet.
func (s *Store) Pending() bool { return s.Snapshot().Pending() }

// User returns the resolved user or nil.
func (s *Store) User() *model.User { return s.Snapshot().User }

// AccessToken returns the current bearer token, empty when logged out.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.AccessToken
}

// TenantSlug returns the tenant captured at login.
func (s *Store) TenantSlug() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.TenantSlug
}

// ExpiresAt reads the exp claim of the access token without verifying it.
// It is informational only.
func (s *Store) ExpiresAt() (time.Time, bool) {
	tok := s.AccessToken()
	if tok == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

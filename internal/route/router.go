package route

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// MaxHops bounds the redirect chain of one navigation.
const MaxHops = 8

// ErrRedirectLoop is returned when a navigation keeps redirecting.
var ErrRedirectLoop = errors.New("route: too many redirects")

// Router applies the table redirects and the guard, and remembers where the
// client currently is.
type Router struct {
	guard *Guard
	table Table
	log   *zap.Logger

	mu      sync.RWMutex
	current string
}

// NewRouter builds a Router starting at the login route.
func NewRouter(g *Guard, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{guard: g, table: g.table, log: log, current: Login}
}

// Navigate resolves p to the path the client ends up on. The lock is not held
// while the guard runs since a 401 during user resolution re-enters Redirect.
func (r *Router) Navigate(ctx context.Context, p string) (string, error) {
	target := Clean(p)
	for hop := 0; ; hop++ {
		if hop > MaxHops {
			return "", fmt.Errorf("navigate %s: %w", p, ErrRedirectLoop)
		}
		if to, ok := r.table.Redirects[target]; ok {
			target = to
			continue
		}
		d := r.guard.Check(ctx, target)
		if d.Allow {
			break
		}
		r.log.Debug("navigation redirected", zap.String("from", target), zap.String("to", d.Redirect))
		target = d.Redirect
	}

	r.mu.Lock()
	r.current = target
	r.mu.Unlock()
	return target, nil
}

// Redirect forces navigation to p. It satisfies gateway.Navigator.
func (r *Router) Redirect(ctx context.Context, p string) {
	if _, err := r.Navigate(ctx, p); err != nil {
		r.log.Warn("redirect", zap.String("path", p), zap.Error(err))
	}
}

// Current returns the path of the last completed navigation.
func (r *Router) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

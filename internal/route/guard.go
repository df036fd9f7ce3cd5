package route

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/timetable-client/internal/model"
)

// Session is the read side of session.Store the guard needs, plus the one
// transition it may request.
type Session interface {
	Pending() bool
	IsAuthenticated() bool
	User() *model.User
	FetchUser(ctx context.Context) error
}

// Decision is the outcome of a guard check. Redirect is set when Allow is false.
type Decision struct {
	Allow    bool
	Redirect string
}

// Guard decides whether a navigation may proceed.
type Guard struct {
	sess  Session
	table Table
	log   *zap.Logger
}

// NewGuard builds a Guard over sess and table.
func NewGuard(sess Session, table Table, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{sess: sess, table: table, log: log}
}

// Check evaluates navigation to p. A pending session is resolved first; a
// failure there already logged the session out, so it is not returned.
func (g *Guard) Check(ctx context.Context, p string) Decision {
	if g.sess.Pending() {
		if err := g.sess.FetchUser(ctx); err != nil {
			g.log.Debug("guard: pending user not resolved", zap.Error(err))
		}
	}

	meta, _ := g.table.Lookup(p)
	if meta.RequiresAuth && !g.sess.IsAuthenticated() {
		return Decision{Redirect: Login}
	}
	if meta.RequiresRole != "" {
		if u := g.sess.User(); u == nil || u.Role != meta.RequiresRole {
			return Decision{Redirect: Dashboard}
		}
	}
	return Decision{Allow: true}
}

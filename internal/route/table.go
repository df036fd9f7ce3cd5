// Package route holds the static route policy, the per-navigation guard and a
// small router that applies both.
package route

import (
	"path"
	"strings"

	"github.com/and161185/timetable-client/internal/model"
)

// Well-known paths.
const (
	Login     = "/login"
	Root      = "/"
	Dashboard = "/dashboard"
)

// Table maps paths to their access policy. Redirects are followed before the
// policy is evaluated.
type Table struct {
	Meta      map[string]model.RouteMeta
	Redirects map[string]string
}

var (
	authed  = model.RouteMeta{RequiresAuth: true}
	admin   = model.RouteMeta{RequiresAuth: true, RequiresRole: model.RoleAdmin}
	teacher = model.RouteMeta{RequiresAuth: true, RequiresRole: model.RoleTeacher}
	scholar = model.RouteMeta{RequiresAuth: true, RequiresRole: model.RoleScholar}
)

// DefaultTable returns the route table of the timetable front end.
func DefaultTable() Table {
	return Table{
		Meta: map[string]model.RouteMeta{
			Login:            {},
			Dashboard:        authed,
			"/timetable":     authed,
			"/teacher":       teacher,
			"/absence":       teacher,
			"/scholar":       scholar,
			"/admin":         admin,
			"/settings":      admin,
			"/classes":       admin,
			"/teachers":      admin,
			"/subjects":      admin,
			"/classrooms":    admin,
			"/allocations":   admin,
			"/substitutions": admin,
		},
		Redirects: map[string]string{Root: Dashboard},
	}
}

// Lookup returns the policy for p. Unknown paths carry no policy.
func (t Table) Lookup(p string) (model.RouteMeta, bool) {
	m, ok := t.Meta[Clean(p)]
	return m, ok
}

// Clean strips the query and fragment and normalizes slashes.
func Clean(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return Root
	}
	return path.Clean("/" + p)
}

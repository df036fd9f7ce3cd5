// Package alert holds transient user-facing notifications with timed
// auto-dismissal.
package alert

import (
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/timetable-client/internal/model"
)

// DefaultDuration is used by the convenience publishers.
const DefaultDuration = 5 * time.Second

type stopper interface{ Stop() bool }

// Bus is an ordered, concurrency-safe collection of alerts. Alerts are kept
// in publish order; each gets its own id.
type Bus struct {
	mu     sync.Mutex
	alerts []model.Alert
	timers map[string]stopper

	defaultDur time.Duration
	afterFunc  func(time.Duration, func()) stopper
	now        func() time.Time
	hooks      []func(model.Alert)
	log        *zap.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithDefaultDuration overrides DefaultDuration for Success/Error/Warning/Info.
func WithDefaultDuration(d time.Duration) Option {
	return func(b *Bus) { b.defaultDur = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.log = l
		}
	}
}

// OnPublish registers fn to be called, outside the lock, after every publish.
func OnPublish(fn func(model.Alert)) Option {
	return func(b *Bus) { b.hooks = append(b.hooks, fn) }
}

func withTimers(after func(time.Duration, func()) stopper, now func() time.Time) Option {
	return func(b *Bus) {
		b.afterFunc = after
		b.now = now
	}
}

// New returns an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		timers:     map[string]stopper{},
		defaultDur: DefaultDuration,
		afterFunc:  func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
		now:        time.Now,
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Publish appends an alert and returns its id. A positive d schedules removal
// after d; zero or negative keeps it until dismissed.
func (b *Bus) Publish(message string, typ model.AlertType, d time.Duration) string {
	if typ == "" {
		typ = model.AlertInfo
	}
	if d < 0 {
		d = 0
	}
	a := model.Alert{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Type:      typ,
		Message:   message,
		Duration:  d,
		CreatedAt: b.now(),
	}

	b.mu.Lock()
	b.alerts = append(b.alerts, a)
	if d > 0 {
		id := a.ID
		b.timers[id] = b.afterFunc(d, func() { b.expire(id) })
	}
	hooks := b.hooks
	b.mu.Unlock()

	b.log.Debug("alert", zap.String("id", a.ID), zap.String("type", string(typ)), zap.Duration("ttl", d))
	for _, h := range hooks {
		h(a)
	}
	return a.ID
}

func (b *Bus) expire(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.timers, id)
	b.removeLocked(id)
}

func (b *Bus) removeLocked(id string) bool {
	for i := range b.alerts {
		if b.alerts[i].ID == id {
			b.alerts = append(b.alerts[:i], b.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// Dismiss removes the alert with id and cancels its timer. Unknown ids are ignored.
func (b *Bus) Dismiss(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.timers[id]; ok {
		t.Stop()
		delete(b.timers, id)
	}
	b.removeLocked(id)
}

// ClearAll drops every alert and cancels pending timers.
func (b *Bus) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	b.alerts = nil
}

// List returns a copy of the current alerts in publish order.
func (b *Bus) List() []model.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Alert, len(b.alerts))
	copy(out, b.alerts)
	return out
}

// Success, Error, Warning and Info publish with the bus default duration and
// return the alert id.
func (b *Bus) Success(message string) string {
	return b.Publish(message, model.AlertSuccess, b.defaultDur)
}

func (b *Bus) Error(message string) string {
	return b.Publish(message, model.AlertError, b.defaultDur)
}

func (b *Bus) Warning(message string) string {
	return b.Publish(message, model.AlertWarning, b.defaultDur)
}

func (b *Bus) Info(message string) string {
	return b.Publish(message, model.AlertInfo, b.defaultDur)
}

// SuccessFor, ErrorFor, WarningFor and InfoFor take an explicit duration.
func (b *Bus) SuccessFor(message string, d time.Duration) string {
	return b.Publish(message, model.AlertSuccess, d)
}

func (b *Bus) ErrorFor(message string, d time.Duration) string {
	return b.Publish(message, model.AlertError, d)
}

func (b *Bus) WarningFor(message string, d time.Duration) string {
	return b.Publish(message, model.AlertWarning, d)
}

func (b *Bus) InfoFor(message string, d time.Duration) string {
	return b.Publish(message, model.AlertInfo, d)
}

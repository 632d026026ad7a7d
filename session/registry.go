// Package session tracks the process-local association between
// client-chosen session identifiers and their activity timestamps, and
// drives idle/absolute expiry through a background sweeper.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Defaults for the expiry windows and the sweep cadence.
const (
	DefaultIdleTTL       = 30 * time.Minute
	DefaultAbsoluteTTL   = 24 * time.Hour
	DefaultSweepInterval = 1 * time.Hour
)

// CleanupFunc receives the identifier of a session reaped by the sweeper.
type CleanupFunc func(sessionID string)

type record struct {
	createdAt    time.Time
	lastActivity time.Time
}

// Registry is the authoritative map from session identifier to session
// record. All timestamp arithmetic goes through time.Since, which uses the
// monotonic clock reading carried by time.Now values, so wall-clock jumps
// cannot expire or revive sessions mid-request.
type Registry struct {
	idleTTL       time.Duration
	absoluteTTL   time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	records   map[string]*record
	callbacks []CleanupFunc

	sweeperMu sync.Mutex
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithIdleTTL sets the idle expiry window.
func WithIdleTTL(d time.Duration) Option {
	return func(r *Registry) { r.idleTTL = d }
}

// WithAbsoluteTTL sets the absolute expiry window.
func WithAbsoluteTTL(d time.Duration) Option {
	return func(r *Registry) { r.absoluteTTL = d }
}

// WithSweepInterval sets the cadence of the background sweeper.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) { r.sweepInterval = d }
}

// WithLogger sets the structured logger for sweep diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates a Registry with the given options applied over the
// defaults.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		idleTTL:       DefaultIdleTTL,
		absoluteTTL:   DefaultAbsoluteTTL,
		sweepInterval: DefaultSweepInterval,
		records:       make(map[string]*record),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Exists reports whether the identifier maps to a record, expired or not.
func (r *Registry) Exists(id string) bool {
	r.mu.Lock()
	_, ok := r.records[id]
	r.mu.Unlock()
	return ok
}

// Create installs a new record with both timestamps set to now. If the
// identifier already maps to a live record this is a no-op; an expired
// record is replaced.
func (r *Registry) Create(id string) {
	now := time.Now()
	r.mu.Lock()
	if rec, ok := r.records[id]; !ok || r.expired(rec, now) {
		r.records[id] = &record{createdAt: now, lastActivity: now}
	}
	r.mu.Unlock()
}

// Touch updates last-activity to now if the record is live. It is a no-op
// for absent identifiers and never revives an expired record.
func (r *Registry) Touch(id string) {
	now := time.Now()
	r.mu.Lock()
	if rec, ok := r.records[id]; ok && !r.expired(rec, now) {
		rec.lastActivity = now
	}
	r.mu.Unlock()
}

// IsExpired reports whether the record exists and has exceeded either the
// idle or the absolute window.
func (r *Registry) IsExpired(id string) bool {
	now := time.Now()
	r.mu.Lock()
	rec, ok := r.records[id]
	exp := ok && r.expired(rec, now)
	r.mu.Unlock()
	return exp
}

// expired must be called with r.mu held. Comparisons use the monotonic
// deltas carried by now and the record timestamps.
func (r *Registry) expired(rec *record, now time.Time) bool {
	return now.Sub(rec.lastActivity) > r.idleTTL || now.Sub(rec.createdAt) > r.absoluteTTL
}

// RegisterCleanupCallback adds a function invoked for every identifier the
// sweeper reaps, in registration order. Register all callbacks before
// starting the sweeper.
func (r *Registry) RegisterCleanupCallback(fn CleanupFunc) {
	r.mu.Lock()
	r.callbacks = append(r.callbacks, fn)
	r.mu.Unlock()
}

// Len returns the number of tracked records, expired or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	n := len(r.records)
	r.mu.Unlock()
	return n
}

// Sweep reaps expired sessions and returns how many were removed. The
// expired set is snapshotted under the lock, callbacks run outside it, and
// the final delete skips any record touched while the callbacks ran. A
// panicking callback is logged and never prevents later callbacks or the
// deletion itself.
func (r *Registry) Sweep() int {
	now := time.Now()

	type snapshot struct {
		id           string
		lastActivity time.Time
	}

	r.mu.Lock()
	var expired []snapshot
	for id, rec := range r.records {
		if r.expired(rec, now) {
			expired = append(expired, snapshot{id: id, lastActivity: rec.lastActivity})
		}
	}
	callbacks := make([]CleanupFunc, len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}

	for _, snap := range expired {
		for _, fn := range callbacks {
			r.invokeCallback(fn, snap.id)
		}
	}

	reaped := 0
	r.mu.Lock()
	for _, snap := range expired {
		rec, ok := r.records[snap.id]
		if !ok {
			continue
		}
		// A record touched during callback execution survives.
		if !rec.lastActivity.Equal(snap.lastActivity) {
			continue
		}
		delete(r.records, snap.id)
		reaped++
	}
	r.mu.Unlock()

	if reaped > 0 {
		r.logger.Info("session sweep completed", "reaped", reaped)
	}
	return reaped
}

// sweepSafely keeps the sweeper loop alive across sweep failures.
func (r *Registry) sweepSafely() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("session sweep panicked", "panic", fmt.Sprint(rec))
		}
	}()
	r.Sweep()
}

func (r *Registry) invokeCallback(fn CleanupFunc, id string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("session cleanup callback panicked",
				"session_prefix", Prefix(id),
				"panic", fmt.Sprint(rec))
		}
	}()
	fn(id)
}

// StartSweeper launches the background sweep loop. Calling it while a
// sweeper is already running is a no-op.
func (r *Registry) StartSweeper() {
	r.sweeperMu.Lock()
	defer r.sweeperMu.Unlock()
	if r.stopCh != nil {
		return
	}
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.sweepSafely()
			}
		}
	}(r.stopCh, r.doneCh)
}

// StopSweeper signals the sweep loop to exit and returns only after the
// loop has observed the signal and finished any in-flight sweep. Safe to
// call when no sweeper is running.
func (r *Registry) StopSweeper() {
	r.sweeperMu.Lock()
	defer r.sweeperMu.Unlock()
	if r.stopCh == nil {
		return
	}
	close(r.stopCh)
	<-r.doneCh
	r.stopCh = nil
	r.doneCh = nil
}

// Prefix returns the first eight characters of a session identifier, the
// only portion that may appear in logs and audit events.
func Prefix(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

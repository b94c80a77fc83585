package memberauth

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
)

// GuardState is the decision state of a single protected-view mount.
type GuardState int

const (
	GuardChecking GuardState = iota
	GuardAuthed
	GuardGuest
)

func (s GuardState) String() string {
	switch s {
	case GuardChecking:
		return "checking"
	case GuardAuthed:
		return "authed"
	case GuardGuest:
		return "guest"
	default:
		return "unknown"
	}
}

// Verdict is a probe's answer.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictYes
	VerdictNo
)

// Probe is one step of the guard's authentication check. Probes run in
// order, cheapest first, and the first definitive verdict wins.
//
// Probes marked Network run after Mount returns; the rest run synchronously
// so a known-good session never passes through the checking state.
type Probe struct {
	Name    string
	Network bool
	Check   func(ctx context.Context) Verdict
}

// Reloader adopts the durably stored credential into memory.
type Reloader interface {
	Reload(ctx context.Context) (string, error)
}

// Watcher notifies about authenticated-flag changes.
type Watcher interface {
	Subscribe(fn func(authenticated bool)) (cancel func())
}

// MemoryProbe answers yes when the session already holds a credential.
func MemoryProbe(s interface{ IsAuthenticated() bool }) Probe {
	return Probe{
		Name: "memory",
		Check: func(context.Context) Verdict {
			if s.IsAuthenticated() {
				return VerdictYes
			}
			return VerdictUnknown
		},
	}
}

// DurableProbe answers yes when durable storage holds a credential the
// in-memory state has not picked up yet, e.g. one written by a login that
// completed elsewhere.
func DurableProbe(r Reloader) Probe {
	return Probe{
		Name: "durable",
		Check: func(ctx context.Context) Verdict {
			cred, err := r.Reload(ctx)
			if err != nil || cred == "" {
				return VerdictUnknown
			}
			return VerdictYes
		},
	}
}

// NetworkProbe tries a silent refresh.
func NetworkProbe(r Refresher) Probe {
	return Probe{
		Name:    "refresh",
		Network: true,
		Check: func(ctx context.Context) Verdict {
			if r.Refresh(ctx) {
				return VerdictYes
			}
			return VerdictNo
		},
	}
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithEntryPoint sets where guests are redirected.
func WithEntryPoint(path string) GuardOption {
	return func(g *Guard) {
		g.entryPoint = path
	}
}

// WithWatcher lets a checking mount settle as soon as the session becomes
// authenticated by other means.
func WithWatcher(w Watcher) GuardOption {
	return func(g *Guard) {
		g.watcher = w
	}
}

// WithGuardLogger sets the Guard logger.
func WithGuardLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = l
	}
}

// WithGuardMetrics sets the Guard metrics sink.
func WithGuardMetrics(m Metrics) GuardOption {
	return func(g *Guard) {
		g.metrics = m
	}
}

// Guard decides whether a protected view may be shown.
type Guard struct {
	probes     []Probe
	entryPoint string
	watcher    Watcher
	logger     *slog.Logger
	metrics    Metrics
}

// NewGuard creates a Guard running probes in the given order.
func NewGuard(probes []Probe, opts ...GuardOption) *Guard {
	g := &Guard{
		probes:     probes,
		entryPoint: DefaultEntryPoint,
		logger:     slog.Default(),
		metrics:    noopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Decision tells the view what to do right now.
type Decision struct {
	State GuardState
	// Render is true only once the member is known to be authenticated.
	Render bool
	// Redirect is set only for guests. It points at the entry point and
	// carries the originally requested location in return_to.
	Redirect string
}

// Mount is one evaluation of the guard for a single protected view.
type Mount struct {
	guard    *Guard
	location string

	mu        sync.Mutex
	state     GuardState
	unmounted bool

	settled     chan struct{}
	gone        chan struct{}
	cancel      context.CancelFunc
	unsubscribe func()
}

// Mount evaluates the guard for location. Synchronous probes run before
// Mount returns; if none is definitive the mount stays in GuardChecking
// while the network probes run in the background.
func (g *Guard) Mount(ctx context.Context, location string) *Mount {
	m := &Mount{
		guard:    g,
		location: location,
		state:    GuardChecking,
		settled:  make(chan struct{}),
		gone:     make(chan struct{}),
		cancel:   func() {},
	}

	// Watch before the first check so a login landing between checks is
	// not missed.
	if g.watcher != nil {
		m.unsubscribe = g.watcher.Subscribe(func(authenticated bool) {
			if authenticated {
				m.settle(GuardAuthed, "watch")
			}
		})
	}

	rest := g.probes
	for len(rest) > 0 && !rest[0].Network && m.State() == GuardChecking {
		if m.apply(rest[0], rest[0].Check(ctx)) {
			break
		}
		rest = rest[1:]
	}
	if m.State() == GuardChecking && len(rest) == 0 {
		m.settle(GuardGuest, "none")
	}
	if m.State() != GuardChecking {
		m.stopWatching()
		return m
	}

	pctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	go m.run(pctx, rest)
	return m
}

func (m *Mount) run(ctx context.Context, probes []Probe) {
	for _, p := range probes {
		if m.State() != GuardChecking {
			return
		}
		v := p.Check(ctx)
		if ctx.Err() != nil {
			return
		}
		if m.apply(p, v) {
			return
		}
	}
	m.settle(GuardGuest, "none")
}

func (m *Mount) apply(p Probe, v Verdict) bool {
	switch v {
	case VerdictYes:
		m.settle(GuardAuthed, p.Name)
		return true
	case VerdictNo:
		m.settle(GuardGuest, p.Name)
		return true
	default:
		return false
	}
}

func (m *Mount) settle(state GuardState, by string) {
	m.mu.Lock()
	if m.unmounted || m.state != GuardChecking {
		m.mu.Unlock()
		return
	}
	m.state = state
	close(m.settled)
	m.mu.Unlock()

	m.guard.metrics.GuardDecided(state)
	m.guard.logger.Debug("guard settled",
		slog.String("state", state.String()),
		slog.String("probe", by),
		slog.String("location", m.location),
	)
}

// State returns the current state.
func (m *Mount) State() GuardState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Decision returns what the view should do for the current state.
func (m *Mount) Decision() Decision {
	switch state := m.State(); state {
	case GuardAuthed:
		return Decision{State: state, Render: true}
	case GuardGuest:
		return Decision{State: state, Redirect: m.guard.redirectFor(m.location)}
	default:
		return Decision{State: state}
	}
}

// Wait blocks until the mount settles, is unmounted, or ctx is done, and
// returns the state at that point.
func (m *Mount) Wait(ctx context.Context) GuardState {
	select {
	case <-m.settled:
	case <-m.gone:
	case <-ctx.Done():
	}
	return m.State()
}

// Unmount discards any outstanding probe. No state change happens after it
// returns. Calling Unmount more than once is safe.
func (m *Mount) Unmount() {
	m.mu.Lock()
	if m.unmounted {
		m.mu.Unlock()
		return
	}
	m.unmounted = true
	close(m.gone)
	m.mu.Unlock()

	m.cancel()
	m.stopWatching()
}

func (m *Mount) stopWatching() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (g *Guard) redirectFor(location string) string {
	if location == "" {
		return g.entryPoint
	}
	return g.entryPoint + "?" + ReturnToParam + "=" + url.QueryEscape(location)
}

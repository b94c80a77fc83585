package memberauth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexlup06-authgate/memberauth-go/storage/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, cred string) (*Store, *memory.Persister) {
	t.Helper()

	p := memory.New(cred)
	s, err := NewStore(context.Background(), p)
	require.NoError(t, err)
	return s, p
}

// fakeTokenService implements TokenService with overridable functions.
type fakeTokenService struct {
	LoginFunc    func(ctx context.Context, identifier, secret string) (string, error)
	RefreshFunc  func(ctx context.Context) (string, error)
	LogoutFunc   func(ctx context.Context)
	RegisterFunc func(ctx context.Context, p Profile) (*UserCreated, error)

	refreshCalls atomic.Int64
	logoutCalls  atomic.Int64
}

func (f *fakeTokenService) Login(ctx context.Context, identifier, secret string) (string, error) {
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, identifier, secret)
	}
	return "", &AuthError{Kind: ErrInvalidCredentials, Message: defaultLoginMessage}
}

func (f *fakeTokenService) Refresh(ctx context.Context) (string, error) {
	f.refreshCalls.Add(1)
	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx)
	}
	return "", ErrRefreshFailed
}

func (f *fakeTokenService) Logout(ctx context.Context) {
	f.logoutCalls.Add(1)
	if f.LogoutFunc != nil {
		f.LogoutFunc(ctx)
	}
}

func (f *fakeTokenService) Register(ctx context.Context, p Profile) (*UserCreated, error) {
	if f.RegisterFunc != nil {
		return f.RegisterFunc(ctx, p)
	}
	return &UserCreated{Email: p.Identifier}, nil
}

// countingRefresher implements Refresher and records how often it ran.
type countingRefresher struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context) bool
}

func (r *countingRefresher) Refresh(ctx context.Context) bool {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.fn == nil {
		return false
	}
	return r.fn(ctx)
}

func (r *countingRefresher) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// recordingMetrics implements Metrics for assertions.
type recordingMetrics struct {
	mu       sync.Mutex
	refresh  []string
	statuses []int
	retried  int
	guard    []GuardState
}

func (m *recordingMetrics) RefreshCompleted(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = append(m.refresh, outcome)
}

func (m *recordingMetrics) GatewayResponse(status int, retried bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	if retried {
		m.retried++
	}
}

func (m *recordingMetrics) GuardDecided(state GuardState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guard = append(m.guard, state)
}

func newMemPersister() *memory.Persister {
	return memory.New("")
}

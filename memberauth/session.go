package memberauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Refresher mints a new access credential. It reports success as a boolean;
// refresh failure is expected and never surfaces as an error.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the Session logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithSessionMetrics sets the Session metrics sink.
func WithSessionMetrics(m Metrics) SessionOption {
	return func(s *Session) {
		s.metrics = m
	}
}

// Session is the single source of truth for whether the process is signed
// in. The authenticated flag is derived from the credential store and
// nothing else.
type Session struct {
	store   CredentialStore
	client  TokenService
	logger  *slog.Logger
	metrics Metrics

	flight   singleflight.Group
	flightMu sync.Mutex
	waiters  int
	current  *refreshFlight
}

var _ Refresher = (*Session)(nil)

// NewSession wires a Session to its store and token service.
func NewSession(store CredentialStore, client TokenService, opts ...SessionOption) *Session {
	s := &Session{
		store:   store,
		client:  client,
		logger:  slog.Default(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAuthenticated reports whether the store currently holds a credential.
func (s *Session) IsAuthenticated() bool {
	return s.store.Get() != ""
}

// Login signs in and stores the credential. On failure the *AuthError from
// the token service is returned as-is and the store is left unchanged.
func (s *Session) Login(ctx context.Context, identifier, secret string) error {
	cred, err := s.client.Login(ctx, identifier, secret)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, cred); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "login succeeded", claimAttrs(cred)...)
	return nil
}

// Register creates an account without signing in.
func (s *Session) Register(ctx context.Context, p Profile) (*UserCreated, error) {
	return s.client.Register(ctx, p)
}

// RegisterAndLogin creates an account and immediately signs in with the same
// identifier and secret. If the account was created but the sign-in leg
// fails, the returned error wraps ErrAutoLoginFailed so the caller can ask
// the member to sign in manually.
func (s *Session) RegisterAndLogin(ctx context.Context, p Profile) error {
	if _, err := s.client.Register(ctx, p); err != nil {
		return err
	}

	if err := s.Login(ctx, p.Identifier, p.Secret); err != nil {
		return fmt.Errorf("%w: %w", ErrAutoLoginFailed, err)
	}
	return nil
}

// Refresh mints a new credential through the refresh anchor and stores it.
//
// Concurrent callers share a single in-flight call. The call outlives the
// caller that started it: each caller stops waiting when its own context is
// done, and the call itself is canceled only once no caller is waiting. An
// abandoned call never touches the store. A failed refresh clears nothing.
func (s *Session) Refresh(ctx context.Context) bool {
	s.join()
	defer s.leave()

	ch := s.flight.DoChan(refreshFlightKey, func() (any, error) {
		fctx, f := s.startFlight(ctx)
		defer s.endFlight(f)
		return nil, s.refresh(fctx)
	})

	select {
	case res := <-ch:
		return res.Err == nil
	case <-ctx.Done():
		return false
	}
}

type refreshFlight struct {
	cancel context.CancelFunc
}

func (s *Session) join() {
	s.flightMu.Lock()
	s.waiters++
	s.flightMu.Unlock()
}

// leave cancels the running call when the last waiter goes away and lets the
// next caller start a fresh one.
func (s *Session) leave() {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()

	s.waiters--
	if s.waiters > 0 {
		return
	}
	if s.current != nil {
		s.current.cancel()
		s.current = nil
	}
	s.flight.Forget(refreshFlightKey)
}

func (s *Session) startFlight(ctx context.Context) (context.Context, *refreshFlight) {
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &refreshFlight{cancel: cancel}

	s.flightMu.Lock()
	if s.waiters == 0 {
		cancel()
	} else {
		s.current = f
	}
	s.flightMu.Unlock()

	return fctx, f
}

func (s *Session) endFlight(f *refreshFlight) {
	s.flightMu.Lock()
	if s.current == f {
		s.current = nil
	}
	s.flightMu.Unlock()
	f.cancel()
}

func (s *Session) refresh(ctx context.Context) error {
	cred, err := s.client.Refresh(ctx)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ErrRefreshFailed, ctx.Err())
	}
	if err != nil {
		if isCanceled(err) {
			s.metrics.RefreshCompleted(RefreshOutcomeCanceled)
			s.logger.DebugContext(ctx, "refresh canceled")
		} else {
			s.metrics.RefreshCompleted(RefreshOutcomeFailure)
			s.logger.DebugContext(ctx, "refresh failed", slog.String("error", err.Error()))
		}
		return err
	}

	if err := s.store.Set(ctx, cred); err != nil {
		s.metrics.RefreshCompleted(RefreshOutcomeFailure)
		s.logger.WarnContext(ctx, "refreshed credential not stored", slog.String("error", err.Error()))
		return err
	}

	s.metrics.RefreshCompleted(RefreshOutcomeSuccess)
	return nil
}

// Logout clears the local credential first and then tells the service. The
// local state is cleared even when the service is unreachable.
func (s *Session) Logout(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "credential not removed from durable storage", slog.String("error", err.Error()))
	}
	s.client.Logout(ctx)
}

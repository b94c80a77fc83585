package memberauth

import (
	"context"
	"fmt"
	"sync"
)

// Persister is the durable side of the credential store. It plays the role a
// browser's local storage plays for a web client: the credential written here
// survives a process restart.
//
// Load returns "" with a nil error when nothing is stored.
type Persister interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, cred string) error
	Delete(ctx context.Context) error
}

// CredentialStore holds the current access credential.
type CredentialStore interface {
	Get() string
	Set(ctx context.Context, cred string) error
	Clear(ctx context.Context) error
}

// Store is the process-wide holder of the access credential. It keeps the
// value in memory and mirrors every write into a Persister.
//
// Writes are serialized by a mutex so a reader never observes memory and
// durable storage disagreeing mid-update.
type Store struct {
	mu        sync.Mutex
	cred      string
	persister Persister

	// notifyMu orders flag flips: it is taken before mu is released, so
	// subscribers see flips in the order the writes happened.
	notifyMu sync.Mutex

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(bool)
}

var _ CredentialStore = (*Store)(nil)

// NewStore creates a Store and seeds its in-memory value from p.
func NewStore(ctx context.Context, p Persister) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("memberauth: persister is required")
	}

	cred, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("memberauth: loading credential: %w", err)
	}

	return &Store{
		cred:      cred,
		persister: p,
		subs:      make(map[int]func(bool)),
	}, nil
}

// Get returns the in-memory credential, or "" when there is none.
func (s *Store) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

// Set stores cred durably and then in memory. If the durable write fails the
// in-memory value is left untouched and the error is returned.
func (s *Store) Set(ctx context.Context, cred string) error {
	if cred == "" {
		return s.Clear(ctx)
	}

	s.mu.Lock()
	if err := s.persister.Save(ctx, cred); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("memberauth: saving credential: %w", err)
	}
	was := s.cred != ""
	s.cred = cred
	if was {
		s.mu.Unlock()
		return nil
	}

	s.flip(true)
	return nil
}

// Clear removes the credential from memory and durable storage. Memory is
// always cleared; a durable failure is reported but does not keep the
// session alive.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	was := s.cred != ""
	s.cred = ""
	err := s.persister.Delete(ctx)
	if was {
		s.flip(false)
	} else {
		s.mu.Unlock()
	}

	if err != nil {
		return fmt.Errorf("memberauth: deleting credential: %w", err)
	}
	return nil
}

// Reload adopts whatever durable storage currently holds into memory and
// returns it. It covers a login completed by another process sharing the same
// storage.
func (s *Store) Reload(ctx context.Context) (string, error) {
	s.mu.Lock()
	cred, err := s.persister.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("memberauth: loading credential: %w", err)
	}
	was := s.cred != ""
	s.cred = cred
	if now := cred != ""; now != was {
		s.flip(now)
	} else {
		s.mu.Unlock()
	}

	return cred, nil
}

// Subscribe registers fn to be called whenever the authenticated flag flips.
// Flips are delivered one at a time, in order. fn may read the Store but must
// not write a value that flips the flag again. The returned function removes
// the subscription.
func (s *Store) Subscribe(fn func(authenticated bool)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// flip is entered with mu held and releases it.
func (s *Store) flip(authenticated bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Unlock()

	s.notify(authenticated)
}

func (s *Store) notify(authenticated bool) {
	s.subMu.Lock()
	fns := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(authenticated)
	}
}

// Package memory provides an in-process credential persister satisfying
// memberauth.Persister. Nothing survives a restart; it is meant for tests
// and ephemeral sessions.
package memory

import (
	"context"
	"sync"
)

// Persister keeps the credential in memory. The optional Fail* fields make a
// call return the given error, which lets tests simulate broken storage.
type Persister struct {
	mu   sync.Mutex
	cred string

	FailLoad   error
	FailSave   error
	FailDelete error
}

// New returns a Persister pre-loaded with cred ("" for empty).
func New(cred string) *Persister {
	return &Persister{cred: cred}
}

func (p *Persister) Load(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailLoad != nil {
		return "", p.FailLoad
	}
	return p.cred, nil
}

func (p *Persister) Save(_ context.Context, cred string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailSave != nil {
		return p.FailSave
	}
	p.cred = cred
	return nil
}

func (p *Persister) Delete(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailDelete != nil {
		return p.FailDelete
	}
	p.cred = ""
	return nil
}

// Peek returns the stored value without going through Load.
func (p *Persister) Peek() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cred
}

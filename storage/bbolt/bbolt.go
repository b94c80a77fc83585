// Package bbolt provides a BBolt-backed credential persister.
package bbolt

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/alexlup06-authgate/memberauth-go/memberauth"
)

var bucketName = []byte("session")

// Persister implements memberauth.Persister backed by a BBolt database.
type Persister struct {
	db  *bbolt.DB
	key []byte
}

var _ memberauth.Persister = (*Persister)(nil)

// New returns a Persister on an open database. The credential is stored
// under memberauth.StorageKey.
func New(db *bbolt.DB) *Persister {
	return &Persister{db: db, key: []byte(memberauth.StorageKey)}
}

// Open opens (or creates) a BBolt database at path and returns a Persister.
func Open(path string, options *bbolt.Options) (*Persister, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return New(db), nil
}

// Close closes the underlying BBolt database.
func (p *Persister) Close() error {
	return p.db.Close()
}

func (p *Persister) Load(context.Context) (string, error) {
	var cred string
	err := p.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		if v := b.Get(p.key); v != nil {
			cred = string(v)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading credential: %w", err)
	}
	return cred, nil
}

func (p *Persister) Save(_ context.Context, cred string) error {
	err := p.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put(p.key, []byte(cred))
	})
	if err != nil {
		return fmt.Errorf("writing credential: %w", err)
	}
	return nil
}

func (p *Persister) Delete(context.Context) error {
	err := p.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.Delete(p.key)
	})
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

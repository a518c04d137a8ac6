package state

import (
	"bytes"
	"context"

	"github.com/chazu/scriptbridge/bridge"
)

// BlobStore persists saved containers by name. *statestore.Store
// implements it.
type BlobStore interface {
	Put(ctx context.Context, name string, blob []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
}

// SaveTo saves s into store under name.
func (s *State) SaveTo(ctx context.Context, store BlobStore, name string) error {
	var buf bytes.Buffer
	if err := s.Save(ctx, &buf); err != nil {
		return err
	}
	return store.Put(ctx, name, buf.Bytes())
}

// LoadFrom restores the state saved under name.
func LoadFrom(ctx context.Context, sess *bridge.Session, store BlobStore, name string, opts ...Option) (*State, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return Load(ctx, sess, bytes.NewReader(data), opts...)
}

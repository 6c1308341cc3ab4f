package circuit

import (
	"context"
	"fmt"

	"github.com/objectfs/jailstore/internal/storage"
)

// Guarded routes slot store calls through a Breaker.
type Guarded struct {
	inner   storage.SlotStore
	breaker *Breaker
}

var _ storage.SlotStore = (*Guarded)(nil)

// Guard wraps inner. Close is never guarded.
func Guard(inner storage.SlotStore, breaker *Breaker) *Guarded {
	return &Guarded{inner: inner, breaker: breaker}
}

// Breaker returns the breaker guarding the store.
func (g *Guarded) Breaker() *Breaker {
	return g.breaker
}

func (g *Guarded) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := g.call("get", key, func() error {
		var err error
		data, err = g.inner.Get(ctx, key)
		return err
	})
	return data, err
}

func (g *Guarded) Put(ctx context.Context, key string, data []byte) error {
	return g.call("put", key, func() error {
		return g.inner.Put(ctx, key, data)
	})
}

func (g *Guarded) Delete(ctx context.Context, key string) error {
	return g.call("delete", key, func() error {
		return g.inner.Delete(ctx, key)
	})
}

func (g *Guarded) Close() error {
	return g.inner.Close()
}

func (g *Guarded) call(op, key string, fn func() error) error {
	err := g.breaker.Execute(fn)
	if err == ErrOpenState || err == ErrTooManyRequests {
		return fmt.Errorf("%s %s rejected by breaker %q: %w", op, key, g.breaker.Name(), err)
	}
	return err
}

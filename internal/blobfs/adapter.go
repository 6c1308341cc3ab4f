// Package blobfs persists an in-memory tree into a single key-value slot.
//
// The adapter delegates every operation to a memfs engine and, after each
// successful mutation or read, writes the whole serialized envelope back to
// the slot. Independent adapters opened on the same slot overwrite each
// other; the last save wins.
package blobfs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/objectfs/jailstore/internal/memfs"
	"github.com/objectfs/jailstore/internal/storage"
	"github.com/objectfs/jailstore/pkg/errors"
	"github.com/objectfs/jailstore/pkg/types"
)

const component = "blobfs"

// Adapter is a types.Backend whose state lives in a SlotStore.
type Adapter struct {
	mu     sync.Mutex
	engine *memfs.Engine
	slots  storage.SlotStore
	slot   string
	logger *slog.Logger

	engineOpts []memfs.Option
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger. The wrapped engine shares it.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithEngineOptions passes options to the wrapped memfs engine.
func WithEngineOptions(opts ...memfs.Option) Option {
	return func(a *Adapter) {
		a.engineOpts = append(a.engineOpts, opts...)
	}
}

var (
	_ types.Backend = (*Adapter)(nil)
	_ types.Flusher = (*Adapter)(nil)
)

// Open loads the tree stored under slot. An absent slot starts an empty
// tree. Content that cannot be decoded or parsed is discarded with a warning.
func Open(ctx context.Context, slots storage.SlotStore, slot string, opts ...Option) (*Adapter, error) {
	a := &Adapter{
		slots:  slots,
		slot:   slot,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	engineOpts := append([]memfs.Option{memfs.WithLogger(a.logger)}, a.engineOpts...)
	a.logger = a.logger.With("component", component, "slot", slot)

	data, err := slots.Get(ctx, slot)
	switch {
	case storage.IsNotFound(err):
		a.logger.Debug("slot is empty, starting a new tree")
		a.engine = memfs.New(engineOpts...)
		return a, nil
	case storage.IsCorrupt(err):
		a.logger.Warn("discarding undecodable slot content", "error", err)
		a.engine = memfs.New(engineOpts...)
		return a, nil
	case err != nil:
		return nil, errors.NewError(errors.ErrCodeUnknown, fmt.Sprintf("failed to load slot %q", slot)).
			WithComponent(component).
			WithOperation("open").
			WithContext("slot", slot).
			WithCause(err)
	}

	engine, err := memfs.Parse(data, engineOpts...)
	if err != nil {
		a.logger.Warn("discarding unreadable slot content", "error", err, "size", len(data))
		engine = memfs.New(engineOpts...)
	}
	a.engine = engine
	return a, nil
}

// Engine returns the wrapped in-memory engine.
func (a *Adapter) Engine() *memfs.Engine {
	return a.engine
}

// Slot returns the slot key the tree is stored under.
func (a *Adapter) Slot() string {
	return a.slot
}

// Flush writes the current tree to the slot.
func (a *Adapter) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.save(ctx, "flush", types.StorageContext{Jail: "/", Pwd: "/"}, "/")
}

// Read returns file content and persists the updated access times.
func (a *Adapter) Read(ctx context.Context, sc types.StorageContext, p string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	content, err := a.engine.Read(ctx, sc, p)
	if err != nil {
		return "", err
	}
	if err := a.save(ctx, "read", sc, p); err != nil {
		return "", err
	}
	return content, nil
}

func (a *Adapter) Write(ctx context.Context, sc types.StorageContext, p, content string, opts types.WriteOptions) error {
	return a.mutate(ctx, "write", sc, p, func() error {
		return a.engine.Write(ctx, sc, p, content, opts)
	})
}

// Readdir does not persist anything.
func (a *Adapter) Readdir(ctx context.Context, sc types.StorageContext, p string, opts types.ReaddirOptions) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine.Readdir(ctx, sc, p, opts)
}

func (a *Adapter) Mkdir(ctx context.Context, sc types.StorageContext, p string, opts types.MkdirOptions) error {
	return a.mutate(ctx, "mkdir", sc, p, func() error {
		return a.engine.Mkdir(ctx, sc, p, opts)
	})
}

func (a *Adapter) Rm(ctx context.Context, sc types.StorageContext, p string, opts types.RemoveOptions) error {
	return a.mutate(ctx, "rm", sc, p, func() error {
		return a.engine.Rm(ctx, sc, p, opts)
	})
}

func (a *Adapter) Rmdir(ctx context.Context, sc types.StorageContext, p string, opts types.RemoveOptions) error {
	return a.mutate(ctx, "rmdir", sc, p, func() error {
		return a.engine.Rmdir(ctx, sc, p, opts)
	})
}

func (a *Adapter) Stats(ctx context.Context, sc types.StorageContext, p string) (*types.FileStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine.Stats(ctx, sc, p)
}

func (a *Adapter) Utimes(ctx context.Context, sc types.StorageContext, p string, stats types.Stats) error {
	return a.mutate(ctx, "utimes", sc, p, func() error {
		return a.engine.Utimes(ctx, sc, p, stats)
	})
}

func (a *Adapter) mutate(ctx context.Context, op string, sc types.StorageContext, p string, apply func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := apply(); err != nil {
		return err
	}
	return a.save(ctx, op, sc, p)
}

// save serializes the tree into the slot. The caller holds a.mu. A failed
// save leaves the in-memory mutation in place.
func (a *Adapter) save(ctx context.Context, op string, sc types.StorageContext, p string) error {
	data, err := a.engine.Marshal()
	if err != nil {
		return types.NewOpError(errors.ErrCodeUnknown, component, op, sc, sc.Resolve(p), "failed to serialize tree").
			WithCause(err)
	}

	if err := a.slots.Put(ctx, a.slot, data); err != nil {
		code := errors.ErrCodeUnknown
		message := fmt.Sprintf("failed to save slot %q", a.slot)
		if storage.IsQuotaExceeded(err) {
			code = errors.ErrCodeQuotaExceeded
			message = fmt.Sprintf("slot %q is full", a.slot)
		}
		a.logger.Warn("slot save failed", "op", op, "path", sc.Resolve(p), "size", len(data), "error", err)
		return types.NewOpError(code, component, op, sc, sc.Resolve(p), message).
			WithContext("slot", a.slot).
			WithCause(err)
	}

	a.logger.Debug("slot saved", "op", op, "size", len(data))
	return nil
}

package metrics

import (
	"context"
	"time"

	"github.com/objectfs/jailstore/pkg/types"
)

// Instrumented wraps a Backend and records every call into a Collector.
type Instrumented struct {
	backend   types.Backend
	collector *Collector
}

// Instrument returns backend unchanged when collector is nil or disabled.
func Instrument(backend types.Backend, collector *Collector) types.Backend {
	if collector == nil || !collector.Enabled() {
		return backend
	}
	return &Instrumented{backend: backend, collector: collector}
}

// Unwrap returns the wrapped backend.
func (i *Instrumented) Unwrap() types.Backend {
	return i.backend
}

func (i *Instrumented) Read(ctx context.Context, sc types.StorageContext, p string) (string, error) {
	start := time.Now()
	content, err := i.backend.Read(ctx, sc, p)
	i.collector.RecordOperation("read", time.Since(start), int64(len(content)), err)
	return content, err
}

func (i *Instrumented) Write(ctx context.Context, sc types.StorageContext, p, content string, opts types.WriteOptions) error {
	start := time.Now()
	err := i.backend.Write(ctx, sc, p, content, opts)
	var size int64
	if err == nil {
		size = int64(len(content))
	}
	i.collector.RecordOperation("write", time.Since(start), size, err)
	return err
}

func (i *Instrumented) Readdir(ctx context.Context, sc types.StorageContext, p string, opts types.ReaddirOptions) ([]string, error) {
	start := time.Now()
	names, err := i.backend.Readdir(ctx, sc, p, opts)
	i.collector.RecordOperation("readdir", time.Since(start), 0, err)
	return names, err
}

func (i *Instrumented) Mkdir(ctx context.Context, sc types.StorageContext, p string, opts types.MkdirOptions) error {
	start := time.Now()
	err := i.backend.Mkdir(ctx, sc, p, opts)
	i.collector.RecordOperation("mkdir", time.Since(start), 0, err)
	return err
}

func (i *Instrumented) Rm(ctx context.Context, sc types.StorageContext, p string, opts types.RemoveOptions) error {
	start := time.Now()
	err := i.backend.Rm(ctx, sc, p, opts)
	i.collector.RecordOperation("rm", time.Since(start), 0, err)
	return err
}

func (i *Instrumented) Rmdir(ctx context.Context, sc types.StorageContext, p string, opts types.RemoveOptions) error {
	start := time.Now()
	err := i.backend.Rmdir(ctx, sc, p, opts)
	i.collector.RecordOperation("rmdir", time.Since(start), 0, err)
	return err
}

func (i *Instrumented) Stats(ctx context.Context, sc types.StorageContext, p string) (*types.FileStats, error) {
	start := time.Now()
	stats, err := i.backend.Stats(ctx, sc, p)
	i.collector.RecordOperation("stats", time.Since(start), 0, err)
	return stats, err
}

func (i *Instrumented) Utimes(ctx context.Context, sc types.StorageContext, p string, stats types.Stats) error {
	start := time.Now()
	err := i.backend.Utimes(ctx, sc, p, stats)
	i.collector.RecordOperation("utimes", time.Since(start), 0, err)
	return err
}

// Flush forwards to the wrapped backend when it buffers state.
func (i *Instrumented) Flush(ctx context.Context) error {
	flusher, ok := i.backend.(types.Flusher)
	if !ok {
		return nil
	}
	start := time.Now()
	err := flusher.Flush(ctx)
	i.collector.RecordOperation("flush", time.Since(start), 0, err)
	return err
}

package types

import "context"

// Backend is the operation set every storage implementation provides.
// All paths are resolved with StorageContext.Resolve before use.
type Backend interface {
	// Read returns the content of the file at p.
	Read(ctx context.Context, sc StorageContext, p string) (string, error)
	// Write creates or overwrites the file at p.
	Write(ctx context.Context, sc StorageContext, p, content string, opts WriteOptions) error
	// Readdir lists the directory at p.
	Readdir(ctx context.Context, sc StorageContext, p string, opts ReaddirOptions) ([]string, error)
	// Mkdir creates the directory at p.
	Mkdir(ctx context.Context, sc StorageContext, p string, opts MkdirOptions) error
	// Rm removes the node at p.
	Rm(ctx context.Context, sc StorageContext, p string, opts RemoveOptions) error
	// Rmdir removes the directory at p.
	Rmdir(ctx context.Context, sc StorageContext, p string, opts RemoveOptions) error
	// Stats returns the timestamps and kind of the node at p.
	Stats(ctx context.Context, sc StorageContext, p string) (*FileStats, error)
	// Utimes merges the non-nil fields of stats into the node at p.
	Utimes(ctx context.Context, sc StorageContext, p string, stats Stats) error
}

// Flusher is implemented by backends that buffer state outside the host.
type Flusher interface {
	Flush(ctx context.Context) error
}

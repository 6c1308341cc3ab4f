package types

import (
	"time"

	"github.com/objectfs/jailstore/pkg/errors"
	"github.com/objectfs/jailstore/pkg/paths"
)

// NodeKind tags a node as a file or a directory.
type NodeKind string

const (
	KindFile      NodeKind = "f"
	KindDirectory NodeKind = "d"
)

// StorageContext binds a backend call to a jail and a working directory.
type StorageContext struct {
	URI  string `json:"uri" yaml:"uri"`
	Jail string `json:"jail" yaml:"jail"`
	Pwd  string `json:"pwd" yaml:"pwd"`
}

// NewStorageContext normalizes jail and resolves pwd inside it. A relative
// pwd is taken relative to the jail.
func NewStorageContext(uri, jail, pwd string) (StorageContext, error) {
	if !paths.IsAbs(jail) {
		return StorageContext{}, errors.NewError(errors.ErrCodeInvalidConfig, "jail must be an absolute path").
			WithComponent("types").
			WithContext("jail", jail).
			WithContext("uri", uri)
	}

	jail = paths.Resolve(paths.Root, jail)
	return StorageContext{
		URI:  uri,
		Jail: jail,
		Pwd:  paths.ResolveWithinJail(jail, jail, pwd),
	}, nil
}

// Child returns a context whose working directory is p resolved within the
// jail. The receiver is not modified.
func (c StorageContext) Child(p string) StorageContext {
	return StorageContext{
		URI:  c.URI,
		Jail: c.Jail,
		Pwd:  c.Resolve(p),
	}
}

// Resolve maps p to an absolute path guaranteed to lie within the jail.
func (c StorageContext) Resolve(p string) string {
	jail := c.Jail
	if jail == "" {
		jail = paths.Root
	}
	pwd := c.Pwd
	if pwd == "" {
		pwd = jail
	}
	return paths.ResolveWithinJail(jail, pwd, p)
}

// Stats holds the optional timestamps of a node.
type Stats struct {
	Mtime *time.Time `json:"mtime,omitempty"`
	Atime *time.Time `json:"atime,omitempty"`
	Ctime *time.Time `json:"ctime,omitempty"`
	Btime *time.Time `json:"btime,omitempty"`
}

// NewStats returns stats with every timestamp set to t.
func NewStats(t time.Time) Stats {
	return Stats{Mtime: TimePtr(t), Atime: TimePtr(t), Ctime: TimePtr(t), Btime: TimePtr(t)}
}

// Merge returns s with every non-nil field of o applied over it.
func (s Stats) Merge(o Stats) Stats {
	if o.Mtime != nil {
		s.Mtime = TimePtr(*o.Mtime)
	}
	if o.Atime != nil {
		s.Atime = TimePtr(*o.Atime)
	}
	if o.Ctime != nil {
		s.Ctime = TimePtr(*o.Ctime)
	}
	if o.Btime != nil {
		s.Btime = TimePtr(*o.Btime)
	}
	return s
}

// Clone returns a deep copy of s.
func (s Stats) Clone() Stats {
	return Stats{}.Merge(s)
}

// FileStats is the result of Backend.Stats.
type FileStats struct {
	Stats
	Kind NodeKind `json:"kind"`
}

// IsFile reports whether the node is a file.
func (f *FileStats) IsFile() bool {
	return f != nil && f.Kind == KindFile
}

// IsDirectory reports whether the node is a directory.
func (f *FileStats) IsDirectory() bool {
	return f != nil && f.Kind == KindDirectory
}

// WriteOptions controls Backend.Write.
type WriteOptions struct {
	// Recursive creates missing ancestor directories.
	Recursive bool
}

// MkdirOptions controls Backend.Mkdir.
type MkdirOptions struct {
	Recursive bool
}

// RemoveOptions controls Backend.Rm and Backend.Rmdir.
type RemoveOptions struct {
	Recursive bool
}

// ReaddirOptions controls Backend.Readdir. The zero value lists the names of
// direct children.
type ReaddirOptions struct {
	// Absolute returns resolved absolute paths instead of names.
	Absolute bool
	// Recursive lists every descendant in depth-first pre-order.
	Recursive bool
}

// TimePtr returns a pointer to a copy of t.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// NewOpError builds a contract error carrying the op, path and jail context
// every backend attaches.
func NewOpError(code errors.ErrorCode, component, op string, sc StorageContext, p, message string) *errors.StoreError {
	return errors.NewError(code, message).
		WithComponent(component).
		WithOperation(op).
		WithContext("op", op).
		WithContext("path", p).
		WithContext("jail", sc.Jail)
}

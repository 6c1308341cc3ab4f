// Package hostfs implements the storage contract on the host filesystem.
//
// Contract paths are resolved inside the jail and then used verbatim as host
// paths, so the jail of a StorageContext is a real host directory. Directory
// semantics are left to the operating system.
package hostfs

import (
	"context"
	stderr "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/objectfs/jailstore/pkg/errors"
	"github.com/objectfs/jailstore/pkg/paths"
	"github.com/objectfs/jailstore/pkg/types"
)

const component = "hostfs"

// tempPrefix marks in-flight atomic writes. Such files are never listed.
const tempPrefix = ".jailstore-"

const (
	DefaultFileMode os.FileMode = 0o644
	DefaultDirMode  os.FileMode = 0o755
)

// Adapter maps types.Backend onto host file operations.
type Adapter struct {
	readOnly bool
	fileMode os.FileMode
	dirMode  os.FileMode
	logger   *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithReadOnly rejects every mutating operation with READ_ONLY.
func WithReadOnly() Option {
	return func(a *Adapter) {
		a.readOnly = true
	}
}

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithFileMode sets the permission bits of created files.
func WithFileMode(mode os.FileMode) Option {
	return func(a *Adapter) {
		a.fileMode = mode
	}
}

// WithDirMode sets the permission bits of created directories.
func WithDirMode(mode os.FileMode) Option {
	return func(a *Adapter) {
		a.dirMode = mode
	}
}

var _ types.Backend = (*Adapter)(nil)

// New creates a host adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		fileMode: DefaultFileMode,
		dirMode:  DefaultDirMode,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", component, "read_only", a.readOnly)
	return a
}

// ReadOnly reports whether mutations are rejected.
func (a *Adapter) ReadOnly() bool {
	return a.readOnly
}

// Read returns the content of a file.
func (a *Adapter) Read(_ context.Context, sc types.StorageContext, p string) (string, error) {
	target := sc.Resolve(p)

	info, err := os.Stat(hostPath(target))
	if err != nil || info.IsDir() {
		if err == nil || isAbsent(err) {
			return "", a.opError(errors.ErrCodeFileNotFound, "read", sc, target, "no such file")
		}
		return "", a.mapError("read", sc, target, err)
	}

	data, err := os.ReadFile(hostPath(target))
	if err != nil {
		return "", a.mapError("read", sc, target, err)
	}
	return string(data), nil
}

// Write replaces the file atomically through a temporary file in the same
// directory.
func (a *Adapter) Write(_ context.Context, sc types.StorageContext, p, content string, opts types.WriteOptions) error {
	target := sc.Resolve(p)
	if err := a.checkWritable("write", sc, target); err != nil {
		return err
	}

	if info, err := os.Stat(hostPath(target)); err == nil && info.IsDir() {
		return a.opError(errors.ErrCodePathNotFound, "write", sc, target, "target is a directory")
	}

	dir := paths.Dir(target)
	if opts.Recursive {
		if err := os.MkdirAll(hostPath(dir), a.dirMode); err != nil {
			return a.unavailable("write", sc, target, err)
		}
	} else if info, err := os.Stat(hostPath(dir)); err != nil || !info.IsDir() {
		return a.opError(errors.ErrCodePathUnavailable, "write", sc, target, "parent directory does not exist").
			WithContext("parent", dir)
	}

	if err := writeAtomic(hostPath(target), []byte(content), a.fileMode); err != nil {
		return a.mapError("write", sc, target, err)
	}
	return nil
}

// Readdir lists a directory. Recursive listings walk the tree concurrently
// and are sorted afterwards.
func (a *Adapter) Readdir(ctx context.Context, sc types.StorageContext, p string, opts types.ReaddirOptions) ([]string, error) {
	target := sc.Resolve(p)

	info, err := os.Stat(hostPath(target))
	if err != nil {
		if isAbsent(err) {
			return nil, a.opError(errors.ErrCodePathNotFound, "readdir", sc, target, "no such directory")
		}
		return nil, a.mapError("readdir", sc, target, err)
	}
	if !info.IsDir() {
		return nil, a.opError(errors.ErrCodeNotADir, "readdir", sc, target, "not a directory")
	}

	var entries []string
	if opts.Recursive {
		entries, err = a.walk(ctx, target)
	} else {
		entries, err = readNames(target)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, a.opError(errors.ErrCodeUnknown, "readdir", sc, target, "listing cancelled").WithCause(ctxErr)
		}
		return nil, a.mapError("readdir", sc, target, err)
	}

	paths.SortNames(entries)
	if opts.Absolute {
		for i, entry := range entries {
			entries[i] = paths.Join(target, entry)
		}
	}
	return entries, nil
}

// Mkdir creates a directory. An existing directory is left untouched.
func (a *Adapter) Mkdir(_ context.Context, sc types.StorageContext, p string, opts types.MkdirOptions) error {
	target := sc.Resolve(p)
	if err := a.checkWritable("mkdir", sc, target); err != nil {
		return err
	}

	if info, err := os.Stat(hostPath(target)); err == nil {
		if !info.IsDir() {
			return a.opError(errors.ErrCodeFileExists, "mkdir", sc, target, "a file exists at this path")
		}
		return nil
	}

	var err error
	if opts.Recursive {
		err = os.MkdirAll(hostPath(target), a.dirMode)
	} else {
		err = os.Mkdir(hostPath(target), a.dirMode)
	}
	if err != nil {
		if stderr.Is(err, fs.ErrExist) {
			return nil
		}
		return a.unavailable("mkdir", sc, target, err)
	}
	return nil
}

// Rm removes a file, or a directory tree when Recursive is set.
func (a *Adapter) Rm(_ context.Context, sc types.StorageContext, p string, opts types.RemoveOptions) error {
	target := sc.Resolve(p)
	if err := a.checkWritable("rm", sc, target); err != nil {
		return err
	}
	if target == paths.Root {
		return a.opError(errors.ErrCodePathUnavailable, "rm", sc, target, "the root directory cannot be removed")
	}

	info, err := os.Lstat(hostPath(target))
	if err != nil {
		if isAbsent(err) {
			return nil
		}
		return a.mapError("rm", sc, target, err)
	}

	if info.IsDir() {
		if !opts.Recursive {
			return a.opError(errors.ErrCodeDirExists, "rm", sc, target, "target is a directory")
		}
		err = os.RemoveAll(hostPath(target))
	} else {
		err = os.Remove(hostPath(target))
	}
	if err != nil && !isNotFound(err) {
		return a.mapError("rm", sc, target, err)
	}
	return nil
}

// Rmdir removes a directory. Non-empty directories need Recursive.
func (a *Adapter) Rmdir(_ context.Context, sc types.StorageContext, p string, opts types.RemoveOptions) error {
	target := sc.Resolve(p)
	if err := a.checkWritable("rmdir", sc, target); err != nil {
		return err
	}

	info, err := os.Lstat(hostPath(target))
	if err != nil {
		if isAbsent(err) {
			return nil
		}
		return a.mapError("rmdir", sc, target, err)
	}
	if !info.IsDir() {
		return a.opError(errors.ErrCodePathNotFound, "rmdir", sc, target, "not a directory")
	}
	if target == paths.Root {
		return a.opError(errors.ErrCodePathUnavailable, "rmdir", sc, target, "the root directory cannot be removed")
	}

	if opts.Recursive {
		err = os.RemoveAll(hostPath(target))
	} else {
		names, readErr := readNames(target)
		if readErr != nil {
			return a.mapError("rmdir", sc, target, readErr)
		}
		if len(names) > 0 {
			return a.opError(errors.ErrCodeDirExists, "rmdir", sc, target, "directory is not empty").
				WithDetail("children", len(names))
		}
		// leftover temporary files do not count as children
		err = os.RemoveAll(hostPath(target))
	}
	if err != nil && !isNotFound(err) {
		return a.mapError("rmdir", sc, target, err)
	}
	return nil
}

// Stats returns the host timestamps of a node.
func (a *Adapter) Stats(_ context.Context, sc types.StorageContext, p string) (*types.FileStats, error) {
	target := sc.Resolve(p)

	info, err := os.Stat(hostPath(target))
	if err != nil {
		if isAbsent(err) {
			return nil, a.opError(errors.ErrCodePathNotFound, "stats", sc, target, "no such path")
		}
		return nil, a.mapError("stats", sc, target, err)
	}

	kind := types.KindFile
	if info.IsDir() {
		kind = types.KindDirectory
	}
	return &types.FileStats{Stats: statTimes(hostPath(target), info), Kind: kind}, nil
}

// Utimes sets atime and mtime. Ctime and btime cannot be set on a host and
// are ignored.
func (a *Adapter) Utimes(ctx context.Context, sc types.StorageContext, p string, stats types.Stats) error {
	target := sc.Resolve(p)
	if err := a.checkWritable("utimes", sc, target); err != nil {
		return err
	}

	current, err := a.Stats(ctx, sc, target)
	if err != nil {
		return err
	}
	if stats.Atime == nil && stats.Mtime == nil {
		return nil
	}

	merged := current.Merge(stats)
	atime, mtime := time.Time{}, time.Time{}
	if merged.Atime != nil {
		atime = *merged.Atime
	}
	if merged.Mtime != nil {
		mtime = *merged.Mtime
	}
	if err := os.Chtimes(hostPath(target), atime, mtime); err != nil {
		return a.mapError("utimes", sc, target, err)
	}
	return nil
}

func (a *Adapter) walk(ctx context.Context, root string) ([]string, error) {
	var (
		mu      sync.Mutex
		entries []string
	)

	conf := fastwalk.Config{Follow: false}
	base := hostPath(root)
	err := fastwalk.Walk(&conf, base, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if p == base {
			return nil
		}
		if isTemp(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		mu.Lock()
		entries = append(entries, filepath.ToSlash(rel))
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []string{}
	}
	return entries, nil
}

func (a *Adapter) checkWritable(op string, sc types.StorageContext, target string) error {
	if !a.readOnly {
		return nil
	}
	return a.opError(errors.ErrCodeReadOnly, op, sc, target, "store is read-only")
}

func (a *Adapter) unavailable(op string, sc types.StorageContext, target string, err error) error {
	if isNotFound(err) || stderr.Is(err, syscall.ENOTDIR) || stderr.Is(err, fs.ErrExist) {
		return a.opError(errors.ErrCodePathUnavailable, op, sc, target, "an ancestor is missing or not a directory").
			WithCause(err)
	}
	return a.mapError(op, sc, target, err)
}

func (a *Adapter) mapError(op string, sc types.StorageContext, target string, err error) error {
	code := errors.ErrCodeUnknown
	message := "host operation failed"
	switch {
	case isNotFound(err):
		code, message = errors.ErrCodePathNotFound, "no such path"
	case stderr.Is(err, syscall.ENOTDIR):
		code, message = errors.ErrCodeNotADir, "not a directory"
	case stderr.Is(err, fs.ErrExist):
		code, message = errors.ErrCodePathExists, "path exists"
	case stderr.Is(err, fs.ErrPermission):
		code, message = errors.ErrCodePathUnavailable, "permission denied"
	}

	if code == errors.ErrCodeUnknown {
		a.logger.Warn("host operation failed", "op", op, "path", target, "error", err)
	}
	return a.opError(code, op, sc, target, message).WithCause(err)
}

func (a *Adapter) opError(code errors.ErrorCode, op string, sc types.StorageContext, target, message string) *errors.StoreError {
	return types.NewOpError(code, component, op, sc, target, message)
}

func readNames(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(hostPath(dir))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if isTemp(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func writeAtomic(target string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func hostPath(p string) string {
	return filepath.FromSlash(p)
}

func isNotFound(err error) bool {
	return stderr.Is(err, fs.ErrNotExist)
}

// isAbsent also covers ENOTDIR, which the host returns when an ancestor of
// the path is a file.
func isAbsent(err error) bool {
	return isNotFound(err) || stderr.Is(err, syscall.ENOTDIR)
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}

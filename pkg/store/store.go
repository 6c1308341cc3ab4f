// Package store binds a storage backend to a jailed working context.
//
// A Store is a small value: copying it or deriving a child never touches the
// backend, and every method resolves its path argument against the bound
// context before delegating.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v2"

	"github.com/objectfs/jailstore/pkg/errors"
	"github.com/objectfs/jailstore/pkg/types"
)

const component = "store"

// Store pairs one backend with one storage context.
type Store struct {
	backend types.Backend
	sc      types.StorageContext
}

// New returns a store operating on backend within sc.
func New(backend types.Backend, sc types.StorageContext) *Store {
	return &Store{backend: backend, sc: sc}
}

// Context returns the bound storage context.
func (s *Store) Context() types.StorageContext {
	return s.sc
}

// Backend returns the shared backend.
func (s *Store) Backend() types.Backend {
	return s.backend
}

// Child returns a store whose working directory is p resolved within the
// jail. The receiver is not modified.
func (s *Store) Child(p string) *Store {
	return &Store{backend: s.backend, sc: s.sc.Child(p)}
}

// Resolve returns the absolute path p names in this store.
func (s *Store) Resolve(p string) string {
	return s.sc.Resolve(p)
}

func (s *Store) Read(ctx context.Context, p string) (string, error) {
	return s.backend.Read(ctx, s.sc, p)
}

func (s *Store) Write(ctx context.Context, p, content string, opts types.WriteOptions) error {
	return s.backend.Write(ctx, s.sc, p, content, opts)
}

func (s *Store) Readdir(ctx context.Context, p string, opts types.ReaddirOptions) ([]string, error) {
	return s.backend.Readdir(ctx, s.sc, p, opts)
}

func (s *Store) Mkdir(ctx context.Context, p string, opts types.MkdirOptions) error {
	return s.backend.Mkdir(ctx, s.sc, p, opts)
}

func (s *Store) Rm(ctx context.Context, p string, opts types.RemoveOptions) error {
	return s.backend.Rm(ctx, s.sc, p, opts)
}

func (s *Store) Rmdir(ctx context.Context, p string, opts types.RemoveOptions) error {
	return s.backend.Rmdir(ctx, s.sc, p, opts)
}

func (s *Store) Stats(ctx context.Context, p string) (*types.FileStats, error) {
	return s.backend.Stats(ctx, s.sc, p)
}

func (s *Store) Utimes(ctx context.Context, p string, stats types.Stats) error {
	return s.backend.Utimes(ctx, s.sc, p, stats)
}

// Flush persists buffered state when the backend supports it.
func (s *Store) Flush(ctx context.Context) error {
	if f, ok := s.backend.(types.Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Exists reports whether anything lives at p.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.Stats(ctx, p)
	return s.present(err)
}

// IsFile reports whether p is a file. An absent path is not an error.
func (s *Store) IsFile(ctx context.Context, p string) (bool, error) {
	stats, err := s.Stats(ctx, p)
	if ok, err := s.present(err); !ok {
		return false, err
	}
	return stats.IsFile(), nil
}

// IsDir reports whether p is a directory. An absent path is not an error.
func (s *Store) IsDir(ctx context.Context, p string) (bool, error) {
	stats, err := s.Stats(ctx, p)
	if ok, err := s.present(err); !ok {
		return false, err
	}
	return stats.IsDirectory(), nil
}

func (s *Store) present(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.HasCode(err, errors.ErrCodePathNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Touch sets the access and modification times of p to now, creating an
// empty file when nothing exists there.
func (s *Store) Touch(ctx context.Context, p string) error {
	exists, err := s.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !exists {
		return s.Write(ctx, p, "", types.WriteOptions{})
	}
	now := time.Now()
	return s.Utimes(ctx, p, types.Stats{Atime: types.TimePtr(now), Mtime: types.TimePtr(now)})
}

// ReadJSON decodes the file at p into v. Comments and trailing commas are
// accepted.
func (s *Store) ReadJSON(ctx context.Context, p string, v interface{}) error {
	content, err := s.Read(ctx, p)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(jsonc.ToJSON([]byte(content)), v); err != nil {
		return s.syntaxError("read_json", p, "file is not valid JSON", err)
	}
	return nil
}

// WriteJSON writes v as indented JSON, creating missing parents.
func (s *Store) WriteJSON(ctx context.Context, p string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return types.NewOpError(errors.ErrCodeUnknown, component, "write_json", s.sc, s.Resolve(p), "failed to encode JSON").
			WithCause(err)
	}
	return s.Write(ctx, p, string(data)+"\n", types.WriteOptions{Recursive: true})
}

// ReadYAML decodes the file at p into v.
func (s *Store) ReadYAML(ctx context.Context, p string, v interface{}) error {
	content, err := s.Read(ctx, p)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal([]byte(content), v); err != nil {
		return s.syntaxError("read_yaml", p, "file is not valid YAML", err)
	}
	return nil
}

// WriteYAML writes v as YAML, creating missing parents.
func (s *Store) WriteYAML(ctx context.Context, p string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return types.NewOpError(errors.ErrCodeUnknown, component, "write_yaml", s.sc, s.Resolve(p), "failed to encode YAML").
			WithCause(err)
	}
	return s.Write(ctx, p, string(data), types.WriteOptions{Recursive: true})
}

// Glob returns the entries below the working directory whose relative path
// matches pattern, in listing order. Patterns use doublestar syntax, so
// "**/*.json" matches at any depth.
func (s *Store) Glob(ctx context.Context, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, s.syntaxError("glob", ".", fmt.Sprintf("invalid glob pattern %q", pattern), nil)
	}

	names, err := s.Readdir(ctx, ".", types.ReaddirOptions{Recursive: true})
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, name := range names {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return nil, s.syntaxError("glob", ".", fmt.Sprintf("invalid glob pattern %q", pattern), err)
		}
		if ok {
			matches = append(matches, name)
		}
	}
	return matches, nil
}

func (s *Store) syntaxError(op, p, message string, cause error) *errors.StoreError {
	err := types.NewOpError(errors.ErrCodeSyntax, component, op, s.sc, s.Resolve(p), message)
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}

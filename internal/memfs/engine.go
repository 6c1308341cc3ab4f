// Package memfs implements the storage contract over an in-memory tree.
//
// Nodes live in a flat arena addressed through a path index; a node never
// references its parent. Directories list their children as sorted absolute
// paths. The engine is the reference implementation every other backend is
// checked against and the state behind the slot-persisted backend.
package memfs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/objectfs/jailstore/pkg/errors"
	"github.com/objectfs/jailstore/pkg/paths"
	"github.com/objectfs/jailstore/pkg/types"
)

const component = "memfs"

// Node is a file or directory of the tree.
type Node struct {
	Type     types.NodeKind `json:"type"`
	Path     string         `json:"path"`
	Content  string         `json:"content"`
	Children []string       `json:"children"`
	Stats    types.Stats    `json:"stats"`
}

// Engine is an in-memory tree implementing types.Backend.
type Engine struct {
	mu     sync.Mutex
	nodes  []*Node
	index  map[string]int
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

var _ types.Backend = (*Engine)(nil)

// New returns an engine holding only the root directory.
func New(opts ...Option) *Engine {
	e := newEngine(opts...)
	root := &Node{Type: types.KindDirectory, Path: paths.Root, Stats: types.NewStats(e.now())}
	e.nodes = []*Node{root}
	e.index = map[string]int{paths.Root: 0}
	return e
}

func newEngine(opts ...Option) *Engine {
	e := &Engine{
		index:  make(map[string]int),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", component)
	return e
}

// Len returns the number of live nodes, root included.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.index)
}

// Read returns the content of a file and bumps the atime of the file and of
// its parent directory.
func (e *Engine) Read(_ context.Context, sc types.StorageContext, p string) (string, error) {
	target := sc.Resolve(p)

	e.mu.Lock()
	defer e.mu.Unlock()

	node := e.lookup(target)
	if node == nil || node.Type != types.KindFile {
		return "", e.opError(errors.ErrCodeFileNotFound, "read", sc, target, "no such file")
	}
	parent, err := e.parentOf("read", sc, node)
	if err != nil {
		return "", err
	}

	now := e.now()
	node.Stats.Atime = types.TimePtr(now)
	parent.Stats.Atime = types.TimePtr(now)
	return node.Content, nil
}

// Write creates or overwrites a file.
func (e *Engine) Write(_ context.Context, sc types.StorageContext, p, content string, opts types.WriteOptions) error {
	target := sc.Resolve(p)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if node := e.lookup(target); node != nil {
		if node.Type == types.KindDirectory {
			return e.opError(errors.ErrCodePathNotFound, "write", sc, target, "target is a directory")
		}
		parent, err := e.parentOf("write", sc, node)
		if err != nil {
			return err
		}
		node.Content = content
		node.Stats.Mtime = types.TimePtr(now)
		node.Stats.Ctime = types.TimePtr(now)
		parent.Stats.Mtime = types.TimePtr(now)
		return nil
	}

	dir := paths.Dir(target)
	if opts.Recursive {
		if err := e.mkdirAll("write", sc, dir, now); err != nil {
			return err
		}
	}

	parent := e.lookup(dir)
	if parent == nil || parent.Type != types.KindDirectory {
		return e.opError(errors.ErrCodePathUnavailable, "write", sc, target, "parent directory does not exist").
			WithContext("parent", dir)
	}

	e.insert(parent, &Node{
		Type:    types.KindFile,
		Path:    target,
		Content: content,
		Stats:   types.NewStats(now),
	}, now)
	return nil
}

// Readdir lists a directory.
func (e *Engine) Readdir(_ context.Context, sc types.StorageContext, p string, opts types.ReaddirOptions) ([]string, error) {
	target := sc.Resolve(p)

	e.mu.Lock()
	defer e.mu.Unlock()

	node := e.lookup(target)
	if node == nil {
		return nil, e.opError(errors.ErrCodePathNotFound, "readdir", sc, target, "no such directory")
	}
	if node.Type != types.KindDirectory {
		return nil, e.opError(errors.ErrCodeNotADir, "readdir", sc, target, "not a directory")
	}

	entries := make([]string, 0, len(node.Children))
	name := func(child string) string {
		switch {
		case opts.Absolute:
			return child
		case opts.Recursive:
			return paths.Relative(target, child)
		default:
			return paths.Base(child)
		}
	}

	if !opts.Recursive {
		for _, child := range node.Children {
			entries = append(entries, name(child))
		}
		return entries, nil
	}

	err := e.walk("readdir", sc, node, func(child *Node) {
		entries = append(entries, name(child.Path))
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Mkdir creates a directory. An existing directory is left untouched.
func (e *Engine) Mkdir(_ context.Context, sc types.StorageContext, p string, opts types.MkdirOptions) error {
	target := sc.Resolve(p)

	e.mu.Lock()
	defer e.mu.Unlock()

	if node := e.lookup(target); node != nil {
		if node.Type == types.KindFile {
			return e.opError(errors.ErrCodeFileExists, "mkdir", sc, target, "a file exists at this path")
		}
		return nil
	}

	now := e.now()
	if opts.Recursive {
		return e.mkdirAll("mkdir", sc, target, now)
	}

	dir := paths.Dir(target)
	parent := e.lookup(dir)
	if parent == nil || parent.Type != types.KindDirectory {
		return e.opError(errors.ErrCodePathUnavailable, "mkdir", sc, target, "parent directory does not exist").
			WithContext("parent", dir)
	}

	e.insert(parent, &Node{Type: types.KindDirectory, Path: target, Stats: types.NewStats(now)}, now)
	return nil
}

// Rm removes a file, or a directory subtree when Recursive is set. Removing
// an absent path succeeds.
func (e *Engine) Rm(_ context.Context, sc types.StorageContext, p string, opts types.RemoveOptions) error {
	target := sc.Resolve(p)

	e.mu.Lock()
	defer e.mu.Unlock()

	if target == paths.Root {
		return e.opError(errors.ErrCodePathUnavailable, "rm", sc, target, "the root directory cannot be removed")
	}
	node := e.lookup(target)
	if node == nil {
		return nil
	}
	if node.Type == types.KindDirectory && !opts.Recursive {
		return e.opError(errors.ErrCodeDirExists, "rm", sc, target, "target is a directory")
	}
	return e.detach("rm", sc, node)
}

// Rmdir removes a directory. Non-empty directories need Recursive.
func (e *Engine) Rmdir(_ context.Context, sc types.StorageContext, p string, opts types.RemoveOptions) error {
	target := sc.Resolve(p)

	e.mu.Lock()
	defer e.mu.Unlock()

	node := e.lookup(target)
	if node == nil {
		return nil
	}
	if node.Type != types.KindDirectory {
		return e.opError(errors.ErrCodePathNotFound, "rmdir", sc, target, "not a directory")
	}
	if target == paths.Root {
		return e.opError(errors.ErrCodePathUnavailable, "rmdir", sc, target, "the root directory cannot be removed")
	}
	if len(node.Children) > 0 && !opts.Recursive {
		return e.opError(errors.ErrCodeDirExists, "rmdir", sc, target, "directory is not empty").
			WithDetail("children", len(node.Children))
	}
	return e.detach("rmdir", sc, node)
}

// Stats returns a copy of the node's timestamps.
func (e *Engine) Stats(_ context.Context, sc types.StorageContext, p string) (*types.FileStats, error) {
	target := sc.Resolve(p)

	e.mu.Lock()
	defer e.mu.Unlock()

	node := e.lookup(target)
	if node == nil {
		return nil, e.opError(errors.ErrCodePathNotFound, "stats", sc, target, "no such path")
	}
	return &types.FileStats{Stats: node.Stats.Clone(), Kind: node.Type}, nil
}

// Utimes merges the non-nil timestamps of stats into the node.
func (e *Engine) Utimes(_ context.Context, sc types.StorageContext, p string, stats types.Stats) error {
	target := sc.Resolve(p)

	e.mu.Lock()
	defer e.mu.Unlock()

	node := e.lookup(target)
	if node == nil {
		return e.opError(errors.ErrCodePathNotFound, "utimes", sc, target, "no such path")
	}
	node.Stats = node.Stats.Merge(stats)
	return nil
}

func (e *Engine) lookup(p string) *Node {
	i, ok := e.index[p]
	if !ok {
		return nil
	}
	return e.nodes[i]
}

func (e *Engine) parentOf(op string, sc types.StorageContext, node *Node) (*Node, error) {
	dir := paths.Dir(node.Path)
	parent := e.lookup(dir)
	if parent == nil || parent.Type != types.KindDirectory {
		return nil, e.invariant(op, sc, node.Path, "parent directory missing from index").
			WithContext("parent", dir)
	}
	return parent, nil
}

// insert appends a single node and indexes it without a rebuild.
func (e *Engine) insert(parent, node *Node, now time.Time) {
	e.nodes = append(e.nodes, node)
	e.index[node.Path] = len(e.nodes) - 1
	parent.Children = insertSorted(parent.Children, node.Path)
	parent.Stats.Mtime = types.TimePtr(now)
}

// mkdirAll creates every missing directory from the root down to target in
// one pass, then rebuilds the index once.
func (e *Engine) mkdirAll(op string, sc types.StorageContext, target string, now time.Time) error {
	chain := paths.Ancestors(target)
	for _, p := range chain {
		if node := e.lookup(p); node != nil && node.Type != types.KindDirectory {
			return e.opError(errors.ErrCodePathUnavailable, op, sc, target, "an ancestor is a file").
				WithContext("ancestor", p)
		}
	}

	var (
		parent  *Node
		created int
	)
	for _, p := range chain {
		node := e.lookup(p)
		if node == nil {
			if parent == nil {
				return e.invariant(op, sc, p, "root directory missing from index")
			}
			node = &Node{Type: types.KindDirectory, Path: p, Stats: types.NewStats(now)}
			e.nodes = append(e.nodes, node)
			parent.Children = insertSorted(parent.Children, p)
			parent.Stats.Mtime = types.TimePtr(now)
			created++
		}
		parent = node
	}

	if created > 0 {
		e.rebuildIndex()
		e.logger.Debug("created directories", "path", target, "count", created)
	}
	return nil
}

// detach removes node and its subtree, unlinks it from its parent and
// rebuilds the index once.
func (e *Engine) detach(op string, sc types.StorageContext, node *Node) error {
	parent, err := e.parentOf(op, sc, node)
	if err != nil {
		return err
	}
	if err := e.remove(op, sc, node, true); err != nil {
		return err
	}
	parent.Children = removeSorted(parent.Children, node.Path)
	parent.Stats.Mtime = types.TimePtr(e.now())
	return nil
}

// remove deletes children before the node itself. Nested calls leave
// tombstones and only the outermost call compacts the arena.
func (e *Engine) remove(op string, sc types.StorageContext, node *Node, rebuild bool) error {
	for _, child := range node.Children {
		childNode := e.lookup(child)
		if childNode == nil {
			return e.invariant(op, sc, child, "listed child missing from index").
				WithContext("parent", node.Path)
		}
		if err := e.remove(op, sc, childNode, false); err != nil {
			return err
		}
	}

	e.nodes[e.index[node.Path]] = nil
	delete(e.index, node.Path)

	if rebuild {
		e.rebuildIndex()
		e.logger.Debug("removed subtree", "path", node.Path)
	}
	return nil
}

// walk visits every descendant of node in depth-first pre-order.
func (e *Engine) walk(op string, sc types.StorageContext, node *Node, visit func(*Node)) error {
	for _, child := range node.Children {
		childNode := e.lookup(child)
		if childNode == nil {
			return e.invariant(op, sc, child, "listed child missing from index").
				WithContext("parent", node.Path)
		}
		visit(childNode)
		if childNode.Type == types.KindDirectory {
			if err := e.walk(op, sc, childNode, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// rebuildIndex drops tombstones, sorts live nodes by path and reassigns
// every index position.
func (e *Engine) rebuildIndex() {
	live := e.nodes[:0]
	for _, node := range e.nodes {
		if node != nil {
			live = append(live, node)
		}
	}
	for i := len(live); i < len(e.nodes); i++ {
		e.nodes[i] = nil
	}

	sort.SliceStable(live, func(i, j int) bool {
		return paths.CompareNames(live[i].Path, live[j].Path) < 0
	})

	e.nodes = live
	e.index = make(map[string]int, len(live))
	for i, node := range live {
		e.index[node.Path] = i
	}
}

func (e *Engine) opError(code errors.ErrorCode, op string, sc types.StorageContext, p, message string) *errors.StoreError {
	return types.NewOpError(code, component, op, sc, p, message)
}

func (e *Engine) invariant(op string, sc types.StorageContext, p, message string) *errors.StoreError {
	err := e.opError(errors.ErrCodeInvariant, op, sc, p, message)
	e.logger.Error("tree invariant violated", "op", op, "path", p, "error", message)
	return err
}

func insertSorted(children []string, p string) []string {
	i := paths.SearchNames(children, p)
	if i < len(children) && children[i] == p {
		return children
	}
	children = append(children, "")
	copy(children[i+1:], children[i:])
	children[i] = p
	return children
}

func removeSorted(children []string, p string) []string {
	i := paths.SearchNames(children, p)
	if i < len(children) && children[i] == p {
		return append(children[:i], children[i+1:]...)
	}
	return children
}

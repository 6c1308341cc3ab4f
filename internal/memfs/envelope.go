package memfs

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/objectfs/jailstore/pkg/errors"
	"github.com/objectfs/jailstore/pkg/paths"
	"github.com/objectfs/jailstore/pkg/types"
)

// EnvelopeVersion is the only serialized tree version Parse accepts.
const EnvelopeVersion = "0.1"

// Envelope is the serialized form of an engine. Index is derived from Nodes
// and is never trusted on input.
type Envelope struct {
	Version string         `json:"version"`
	Nodes   []*Node        `json:"nodes"`
	Index   map[string]int `json:"index"`
}

// MarshalJSON writes content only for files and children only for
// directories.
func (n Node) MarshalJSON() ([]byte, error) {
	type wireNode struct {
		Type     types.NodeKind `json:"type"`
		Path     string         `json:"path"`
		Content  *string        `json:"content,omitempty"`
		Children *[]string      `json:"children,omitempty"`
		Stats    types.Stats    `json:"stats"`
	}

	w := wireNode{Type: n.Type, Path: n.Path, Stats: n.Stats}
	if n.Type == types.KindFile {
		w.Content = &n.Content
	} else {
		children := n.Children
		if children == nil {
			children = []string{}
		}
		w.Children = &children
	}
	return json.Marshal(w)
}

// Marshal serializes the whole tree. The index is rebuilt first so the
// written positions match the written node order.
func (e *Engine) Marshal() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rebuildIndex()
	data, err := json.Marshal(Envelope{
		Version: EnvelopeVersion,
		Nodes:   e.nodes,
		Index:   e.index,
	})
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeUnknown, "failed to serialize tree").
			WithComponent(component).
			WithOperation("marshal").
			WithCause(err)
	}
	return data, nil
}

// Parse rebuilds an engine from its serialized form. Malformed JSON yields a
// SYNTAX error; an unknown version or a tree that breaks the structural
// invariants yields SCHEMA.
func Parse(data []byte, opts ...Option) (*Engine, error) {
	if !json.Valid(data) {
		return nil, parseError(errors.ErrCodeSyntax, "serialized tree is not valid JSON", nil)
	}

	var header struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, parseError(errors.ErrCodeSchema, "serialized tree is not an object", err)
	}
	if header.Version != EnvelopeVersion {
		return nil, parseError(errors.ErrCodeSchema, "unsupported serialized tree version", nil).
			WithContext("version", header.Version).
			WithContext("supported", EnvelopeVersion)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, parseError(errors.ErrCodeSchema, "serialized tree has an unexpected shape", err)
	}

	if err := normalize(env.Nodes); err != nil {
		return nil, parseError(errors.ErrCodeSchema, err.Error(), nil)
	}

	e := newEngine(opts...)
	e.nodes = env.Nodes
	e.rebuildIndex()
	if err := validate(e.nodes, e.index); err != nil {
		return nil, parseError(errors.ErrCodeSchema, err.Error(), nil)
	}
	e.logger.Debug("parsed tree", "nodes", len(e.nodes))
	return e, nil
}

// CheckInvariants validates the live tree: one root directory, every node
// linked from a directory parent, every listed child present, sorted
// children and a consistent index.
func (e *Engine) CheckInvariants() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := validate(e.nodes, e.index); err != nil {
		return errors.NewError(errors.ErrCodeInvariant, err.Error()).
			WithComponent(component).
			WithOperation("check")
	}
	return nil
}

// normalize checks per-node shape and clears fields that do not belong to
// the node type. Children are re-sorted and deduplicated.
func normalize(nodes []*Node) error {
	seen := make(map[string]bool, len(nodes))
	for i, node := range nodes {
		if node == nil {
			return fmt.Errorf("node %d is null", i)
		}
		if !paths.IsAbs(node.Path) || paths.Resolve(paths.Root, node.Path) != node.Path {
			return fmt.Errorf("node %d has a non-canonical path %q", i, node.Path)
		}
		if seen[node.Path] {
			return fmt.Errorf("duplicate node for path %q", node.Path)
		}
		seen[node.Path] = true

		switch node.Type {
		case types.KindFile:
			if len(node.Children) > 0 {
				return fmt.Errorf("file %q lists children", node.Path)
			}
			node.Children = nil
		case types.KindDirectory:
			node.Content = ""
			node.Children = dedupe(node.Children)
		default:
			return fmt.Errorf("node %q has unknown type %q", node.Path, node.Type)
		}
	}
	return nil
}

func validate(nodes []*Node, index map[string]int) error {
	live := 0
	for i, node := range nodes {
		if node == nil {
			continue
		}
		live++
		if pos, ok := index[node.Path]; !ok || pos != i {
			return fmt.Errorf("index does not point at node %q", node.Path)
		}
	}
	if live != len(index) {
		return fmt.Errorf("index holds %d entries for %d nodes", len(index), live)
	}

	lookup := func(p string) *Node {
		if i, ok := index[p]; ok {
			return nodes[i]
		}
		return nil
	}

	root := lookup(paths.Root)
	if root == nil || root.Type != types.KindDirectory {
		return fmt.Errorf("root directory is missing")
	}

	for _, node := range nodes {
		if node == nil {
			continue
		}
		if node.Path != paths.Root {
			parent := lookup(paths.Dir(node.Path))
			if parent == nil || parent.Type != types.KindDirectory {
				return fmt.Errorf("node %q has no parent directory", node.Path)
			}
			if i := paths.SearchNames(parent.Children, node.Path); i >= len(parent.Children) || parent.Children[i] != node.Path {
				return fmt.Errorf("directory %q does not list %q", parent.Path, node.Path)
			}
		}
		if !sort.SliceIsSorted(node.Children, func(i, j int) bool {
			return paths.CompareNames(node.Children[i], node.Children[j]) < 0
		}) {
			return fmt.Errorf("children of %q are not sorted", node.Path)
		}
		for _, child := range node.Children {
			if paths.Dir(child) != node.Path || child == node.Path {
				return fmt.Errorf("directory %q lists foreign path %q", node.Path, child)
			}
			if lookup(child) == nil {
				return fmt.Errorf("directory %q lists missing child %q", node.Path, child)
			}
		}
	}
	return nil
}

func dedupe(children []string) []string {
	if len(children) == 0 {
		return nil
	}
	out := append([]string(nil), children...)
	paths.SortNames(out)
	uniq := out[:1]
	for _, c := range out[1:] {
		if c != uniq[len(uniq)-1] {
			uniq = append(uniq, c)
		}
	}
	return uniq
}

func parseError(code errors.ErrorCode, message string, cause error) *errors.StoreError {
	err := errors.NewError(code, message).
		WithComponent(component).
		WithOperation("parse")
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}

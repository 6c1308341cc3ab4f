// Package parity replays one operation sequence against storage backends
// and reports where their observable results differ.
//
// Two backends are at parity when every step yields the same value, the same
// node kind, modification times within a tolerance, and the same error code
// on failure. Error messages are not compared.
package parity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/objectfs/jailstore/pkg/errors"
	"github.com/objectfs/jailstore/pkg/types"
)

// Op names a contract operation.
type Op string

const (
	OpRead    Op = "read"
	OpWrite   Op = "write"
	OpMkdir   Op = "mkdir"
	OpReaddir Op = "readdir"
	OpStats   Op = "stats"
	OpRm      Op = "rm"
	OpRmdir   Op = "rmdir"
)

// DefaultTolerance is the largest mtime difference Diff accepts.
const DefaultTolerance = 100 * time.Millisecond

// Step is one operation of a sequence.
type Step struct {
	Op        Op
	Path      string
	Content   string
	Recursive bool
	Absolute  bool
}

func (s Step) String() string {
	var flags []string
	if s.Recursive {
		flags = append(flags, "recursive")
	}
	if s.Absolute {
		flags = append(flags, "absolute")
	}
	if len(flags) == 0 {
		return fmt.Sprintf("%s %s", s.Op, s.Path)
	}
	return fmt.Sprintf("%s %s [%s]", s.Op, s.Path, strings.Join(flags, ","))
}

// Outcome is the observable result of a Step. Only the fields the operation
// produces are set.
type Outcome struct {
	Step  Step
	Value string
	Names []string
	Kind  types.NodeKind
	Mtime *time.Time
	Code  errors.ErrorCode
}

// Run executes steps in order and records one outcome each. A failing step
// does not stop the sequence.
func Run(ctx context.Context, backend types.Backend, sc types.StorageContext, steps []Step) []Outcome {
	outcomes := make([]Outcome, 0, len(steps))
	for _, step := range steps {
		outcomes = append(outcomes, runStep(ctx, backend, sc, step))
	}
	return outcomes
}

func runStep(ctx context.Context, backend types.Backend, sc types.StorageContext, step Step) Outcome {
	out := Outcome{Step: step}

	var err error
	switch step.Op {
	case OpRead:
		out.Value, err = backend.Read(ctx, sc, step.Path)
	case OpWrite:
		err = backend.Write(ctx, sc, step.Path, step.Content, types.WriteOptions{Recursive: step.Recursive})
	case OpMkdir:
		err = backend.Mkdir(ctx, sc, step.Path, types.MkdirOptions{Recursive: step.Recursive})
	case OpReaddir:
		out.Names, err = backend.Readdir(ctx, sc, step.Path, types.ReaddirOptions{
			Recursive: step.Recursive,
			Absolute:  step.Absolute,
		})
	case OpStats:
		var stats *types.FileStats
		stats, err = backend.Stats(ctx, sc, step.Path)
		if err == nil {
			out.Kind = stats.Kind
			if stats.IsFile() {
				out.Mtime = stats.Mtime
			}
		}
	case OpRm:
		err = backend.Rm(ctx, sc, step.Path, types.RemoveOptions{Recursive: step.Recursive})
	case OpRmdir:
		err = backend.Rmdir(ctx, sc, step.Path, types.RemoveOptions{Recursive: step.Recursive})
	default:
		err = errors.Newf(errors.ErrCodeUnknown, "unknown parity operation %q", step.Op)
	}

	if err != nil {
		out.Code = errors.CodeOf(err)
	}
	return out
}

// Diff compares two outcome lists step by step and returns one line per
// mismatch. An empty result means the backends are at parity.
func Diff(a, b []Outcome, tolerance time.Duration) []string {
	var diffs []string
	if len(a) != len(b) {
		diffs = append(diffs, fmt.Sprintf("sequence length: %d != %d", len(a), len(b)))
	}

	for i := 0; i < len(a) && i < len(b); i++ {
		x, y := a[i], b[i]
		prefix := fmt.Sprintf("step %d (%s)", i, x.Step)

		if x.Code != y.Code {
			diffs = append(diffs, fmt.Sprintf("%s: code %q != %q", prefix, x.Code, y.Code))
			continue
		}
		if x.Value != y.Value {
			diffs = append(diffs, fmt.Sprintf("%s: value %q != %q", prefix, x.Value, y.Value))
		}
		if !equalNames(x.Names, y.Names) {
			diffs = append(diffs, fmt.Sprintf("%s: names %v != %v", prefix, x.Names, y.Names))
		}
		if x.Kind != y.Kind {
			diffs = append(diffs, fmt.Sprintf("%s: kind %q != %q", prefix, x.Kind, y.Kind))
		}
		if !closeTimes(x.Mtime, y.Mtime, tolerance) {
			diffs = append(diffs, fmt.Sprintf("%s: mtime %v != %v", prefix, formatTime(x.Mtime), formatTime(y.Mtime)))
		}
	}
	return diffs
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func closeTimes(a, b *time.Time, tolerance time.Duration) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	d := a.Sub(*b)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "<nil>"
	}
	return t.Format(time.RFC3339Nano)
}

// DefaultSequence writes files across distinct subtrees, reads and stats them
// back, lists directories and induces the common failures, including paths
// below a file.
func DefaultSequence() []Step {
	return []Step{
		{Op: OpWrite, Path: "docs/readme.txt", Content: "hello", Recursive: true},
		{Op: OpWrite, Path: "docs/guide/10.md", Content: "ten", Recursive: true},
		{Op: OpWrite, Path: "docs/guide/2.md", Content: "two"},
		{Op: OpWrite, Path: "src/main.go", Content: "package main", Recursive: true},
		{Op: OpWrite, Path: "src/main.go", Content: "package main // v2"},
		{Op: OpMkdir, Path: "var/log/app", Recursive: true},
		{Op: OpMkdir, Path: "var/log/app", Recursive: true},
		{Op: OpMkdir, Path: "var/cache"},

		{Op: OpRead, Path: "docs/readme.txt"},
		{Op: OpRead, Path: "docs/guide/10.md"},
		{Op: OpRead, Path: "src/main.go"},
		{Op: OpStats, Path: "docs/readme.txt"},
		{Op: OpStats, Path: "src/main.go"},
		{Op: OpStats, Path: "var/log"},

		{Op: OpReaddir, Path: "."},
		{Op: OpReaddir, Path: "docs/guide"},
		{Op: OpReaddir, Path: "docs", Absolute: true},
		{Op: OpReaddir, Path: ".", Recursive: true},
		{Op: OpReaddir, Path: "var/cache"},

		{Op: OpRead, Path: "missing.txt"},
		{Op: OpRead, Path: "docs"},
		{Op: OpStats, Path: "missing.txt"},
		{Op: OpReaddir, Path: "missing"},
		{Op: OpReaddir, Path: "docs/readme.txt"},
		{Op: OpWrite, Path: "nowhere/file.txt", Content: "x"},
		{Op: OpMkdir, Path: "docs/readme.txt"},
		{Op: OpMkdir, Path: "a/b", Recursive: false},
		{Op: OpRm, Path: "docs"},
		{Op: OpRmdir, Path: "docs/guide"},
		{Op: OpRmdir, Path: "docs/readme.txt"},

		{Op: OpRead, Path: "docs/readme.txt/child"},
		{Op: OpStats, Path: "docs/readme.txt/child"},
		{Op: OpReaddir, Path: "docs/readme.txt/child", Recursive: true},
		{Op: OpWrite, Path: "docs/readme.txt/child", Content: "x"},
		{Op: OpMkdir, Path: "docs/readme.txt/child/deeper", Recursive: true},
		{Op: OpRm, Path: "docs/readme.txt/child"},
		{Op: OpRmdir, Path: "docs/readme.txt/child"},

		{Op: OpRm, Path: "missing.txt"},
		{Op: OpRm, Path: "docs/guide/2.md"},
		{Op: OpRmdir, Path: "var/cache"},
		{Op: OpRmdir, Path: "docs", Recursive: true},
		{Op: OpRm, Path: "var", Recursive: true},
		{Op: OpReaddir, Path: ".", Recursive: true},
		{Op: OpRead, Path: "docs/guide/10.md"},
	}
}

// Package paths implements the slash-separated path algebra used by every
// jailstore backend: joining, resolution, relative paths and jail containment.
//
// All functions are pure. Paths are always '/'-separated regardless of the
// host platform; host adapters convert at their boundary.
package paths

import "strings"

// Separator is the only path separator understood by this package.
const Separator = "/"

// Root is the absolute root path.
const Root = "/"

// IsAbs reports whether p is absolute.
func IsAbs(p string) bool {
	return strings.HasPrefix(p, Separator)
}

// Split returns the non-empty components of p, dropping "." components.
// ".." components are kept verbatim.
func Split(p string) []string {
	raw := strings.Split(p, Separator)
	parts := raw[:0:0]
	for _, part := range raw {
		if part == "" || part == "." {
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

// Join splits every segment on '/', drops empty and "." components and
// rejoins the rest. The result is absolute iff the first segment is.
//
// Join does not interpret "..": use Resolve for that.
func Join(segments ...string) string {
	if len(segments) == 0 {
		return ""
	}

	var parts []string
	for _, segment := range segments {
		parts = append(parts, Split(segment)...)
	}

	joined := strings.Join(parts, Separator)
	if IsAbs(segments[0]) {
		return Separator + joined
	}
	return joined
}

// Resolve applies rel to base and returns an absolute path.
//
// An absolute rel ignores base and is only cleaned. Otherwise base components
// are stacked and rel components applied left to right: ".." pops the last
// component and clamps at an empty stack, "." and empty components are
// skipped.
func Resolve(base, rel string) string {
	var stack []string
	if !IsAbs(rel) {
		stack = resolveInto(stack, Split(base))
	}
	stack = resolveInto(stack, Split(rel))
	return Separator + strings.Join(stack, Separator)
}

func resolveInto(stack, parts []string) []string {
	for _, part := range parts {
		if part == ".." {
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		stack = append(stack, part)
	}
	return stack
}

// Relative returns the path leading from one absolute path to another.
// The common component prefix is stripped, then "../" is emitted once per
// remaining component of from, followed by the remaining components of to.
func Relative(from, to string) string {
	fromParts := Split(from)
	toParts := Split(to)

	common := 0
	for common < len(fromParts) && common < len(toParts) && fromParts[common] == toParts[common] {
		common++
	}

	return strings.Repeat("../", len(fromParts)-common) + strings.Join(toParts[common:], Separator)
}

// WithinJail reports whether p lies inside jail. Relative paths are always
// considered within the jail since they can only be resolved against it.
// Absolute paths must equal jail or continue it with a separator, so a
// sibling that merely shares the jail as a string prefix, such as /jail2 for
// jail /jail, is outside.
func WithinJail(jail, p string) bool {
	if !IsAbs(p) {
		return true
	}
	jail = trimTrailing(jail)
	p = trimTrailing(p)
	if jail == Root {
		return true
	}
	return p == jail || strings.HasPrefix(p, jail+Separator)
}

// ResolveWithinJail resolves p against base and folds the result back under
// jail when it escapes. No returned path can lie outside jail: an escape
// attempt such as "../../etc" is prepended with jail rather than rejected.
func ResolveWithinJail(jail, base, p string) string {
	resolved := Resolve(base, p)
	if !WithinJail(jail, resolved) {
		resolved = Join(jail, resolved)
	}
	return trimTrailing(resolved)
}

// Dir returns the parent of an absolute path. The parent of "/" is "/".
func Dir(p string) string {
	parts := Split(p)
	if len(parts) <= 1 {
		return Root
	}
	return Separator + strings.Join(parts[:len(parts)-1], Separator)
}

// Base returns the last component of p, or "/" for the root.
func Base(p string) string {
	parts := Split(p)
	if len(parts) == 0 {
		if IsAbs(p) {
			return Root
		}
		return ""
	}
	return parts[len(parts)-1]
}

// Ancestors returns the chain of absolute paths from the root down to p,
// both included.
func Ancestors(p string) []string {
	parts := Split(p)
	chain := make([]string, 0, len(parts)+1)
	chain = append(chain, Root)
	for i := range parts {
		chain = append(chain, Separator+strings.Join(parts[:i+1], Separator))
	}
	return chain
}

func trimTrailing(p string) string {
	for len(p) > 1 && strings.HasSuffix(p, Separator) {
		p = p[:len(p)-1]
	}
	return p
}

package paths

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		segments []string
		want     string
	}{
		{"relative pieces", []string{"a", "b", "c"}, "a/b/c"},
		{"absolute first wins", []string{"/a", "b/c"}, "/a/b/c"},
		{"drops empty and dot", []string{"/a//", "./b", "", "c/."}, "/a/b/c"},
		{"later absolute is not special", []string{"a", "/b"}, "a/b"},
		{"keeps dotdot verbatim", []string{"a", "../b"}, "a/../b"},
		{"only root", []string{"/"}, "/"},
		{"root then relative", []string{"/", "x"}, "/x"},
		{"nothing", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Join(tt.segments...))
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		rel  string
		want string
	}{
		{"simple child", "/a/b", "c", "/a/b/c"},
		{"parent step", "/a/b", "../c", "/a/c"},
		{"dot is skipped", "/a", "./b/./c", "/a/b/c"},
		{"absolute ignores base", "/a/b", "/x/y", "/x/y"},
		{"absolute is cleaned", "/a", "/x/../y//z/.", "/y/z"},
		{"clamps at root", "/a", "../../../..", "/"},
		{"clamps then descends", "/a", "../../../b", "/b"},
		{"empty rel returns base", "/a/b", "", "/a/b"},
		{"relative base is anchored", "a/b", "c", "/a/b/c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.base, tt.rel))
		})
	}
}

func TestRelative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from string
		to   string
		want string
	}{
		{"/a/b", "/a/c/d", "../c/d"},
		{"/a", "/a/b/c", "b/c"},
		{"/a/b/c", "/a", "../../"},
		{"/a", "/a", ""},
		{"/x/y", "/z", "../../z"},
		{"/", "/a", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, Relative(tt.from, tt.to))
		})
	}
}

func TestWithinJail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		jail string
		path string
		want bool
	}{
		{"/jail", "relative/path", true},
		{"/jail", "../../escape", true},
		{"/jail", "/jail", true},
		{"/jail", "/jail/a/b", true},
		{"/jail/", "/jail/a", true},
		{"/jail", "/jail2/a", false},
		{"/jail", "/etc/passwd", false},
		{"/jail", "/", false},
		{"/", "/anything", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s in %s", tt.path, tt.jail), func(t *testing.T) {
			assert.Equal(t, tt.want, WithinJail(tt.jail, tt.path))
		})
	}
}

func TestResolveWithinJail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		jail string
		base string
		path string
		want string
	}{
		{"child of pwd", "/jail", "/jail/home", "notes.txt", "/jail/home/notes.txt"},
		{"dotdot inside jail", "/jail", "/jail/a/b", "../c", "/jail/a/c"},
		{"dotdot clamps at jail root", "/jail", "/jail", "../../..", "/jail"},
		{"escape is folded back", "/jail", "/jail", "../etc/passwd", "/jail/etc/passwd"},
		{"absolute outside is folded", "/jail", "/jail/a", "/etc/passwd", "/jail/etc/passwd"},
		{"absolute inside is kept", "/jail", "/jail/a", "/jail/b", "/jail/b"},
		{"sibling prefix is not inside", "/jail", "/jail", "/jail2/x", "/jail/jail2/x"},
		{"trailing slash stripped", "/jail", "/jail", "a/b/", "/jail/a/b"},
		{"root jail", "/", "/", "../x", "/x"},
		{"root stays root", "/", "/", ".", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveWithinJail(tt.jail, tt.base, tt.path))
		})
	}
}

func TestResolveWithinJail_NeverEscapes(t *testing.T) {
	t.Parallel()

	jails := []string{"/", "/j", "/srv/data/jail", "/a/b/c/d"}
	suffixes := []string{"", "x", "x/y", "../x", "/etc", "x/../../y"}

	for _, jail := range jails {
		for depth := 0; depth < 12; depth++ {
			for _, suffix := range suffixes {
				rel := strings.Repeat("../", depth) + suffix
				for _, base := range []string{jail, Join(jail, "sub"), Join(jail, "sub/deeper")} {
					got := ResolveWithinJail(jail, base, rel)
					if !IsAbs(got) || !WithinJail(jail, got) {
						t.Fatalf("ResolveWithinJail(%q, %q, %q) = %q escapes jail", jail, base, rel, got)
					}
				}
			}
		}

		// Pure ".." chains land exactly on the jail root.
		got := ResolveWithinJail(jail, jail, strings.Repeat("../", 20))
		assert.Equal(t, jail, got)
	}
}

func TestDirBaseAncestors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/a/b", Dir("/a/b/c"))
	assert.Equal(t, "/", Dir("/a"))
	assert.Equal(t, "/", Dir("/"))

	assert.Equal(t, "c", Base("/a/b/c"))
	assert.Equal(t, "/", Base("/"))
	assert.Equal(t, "", Base(""))

	assert.Equal(t, []string{"/"}, Ancestors("/"))
	assert.Equal(t, []string{"/", "/a", "/a/b", "/a/b/c"}, Ancestors("/a/b/c"))
}

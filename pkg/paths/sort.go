package paths

import (
	"sort"
	"strings"
)

// CompareNames orders names and paths segment by segment. Two purely numeric
// segments compare as integers ("2" < "10"); any other pair compares
// byte-wise. A path that is a component prefix of another sorts first, so
// sorting a set of relative paths yields depth-first pre-order.
func CompareNames(a, b string) int {
	as := strings.Split(a, Separator)
	bs := strings.Split(b, Separator)

	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}

	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

// SortNames sorts names in place with CompareNames.
func SortNames(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return CompareNames(names[i], names[j]) < 0
	})
}

// SearchNames returns the index at which name is, or would be inserted, in
// the sorted slice names.
func SearchNames(names []string, name string) int {
	return sort.Search(len(names), func(i int) bool {
		return CompareNames(names[i], name) >= 0
	})
}

func compareSegment(a, b string) int {
	if isNumeric(a) && isNumeric(b) {
		ta := strings.TrimLeft(a, "0")
		tb := strings.TrimLeft(b, "0")
		if len(ta) != len(tb) {
			if len(ta) < len(tb) {
				return -1
			}
			return 1
		}
		if c := strings.Compare(ta, tb); c != 0 {
			return c
		}
		// Equal values: "01" and "1" still need a stable order.
	}
	return strings.Compare(a, b)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

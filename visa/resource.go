package visa

import "strings"

// Resource is a VISA-style resource descriptor addressing one instrument.
// Descriptors are immutable; they are produced by driver enumeration and
// consumed by ResourceManager.Open.
type Resource string

func (r Resource) String() string {
	return string(r)
}

// InterfaceClass returns the upper-cased leading alphabetic interface class
// of the descriptor: "USB0::..." yields "USB", "ASRL/dev/ttyUSB0::INSTR"
// yields "ASRL". It returns "" for a descriptor with no leading letters.
func (r Resource) InterfaceClass() string {
	s := string(r)
	i := 0
	for i < len(s) && isALetter(s[i]) {
		i++
	}
	return strings.ToUpper(s[:i])
}

// Parts splits the descriptor on the "::" separator.
func (r Resource) Parts() []string {
	return strings.Split(string(r), "::")
}

// Valid reports whether the descriptor has a recognizable interface class and
// at least two parts (address and type suffix).
func (r Resource) Valid() bool {
	return r.InterfaceClass() != "" && len(r.Parts()) >= 2
}

func isALetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// MatchFilter reports whether a resource descriptor matches a VISA-style
// search expression. The expression is a glob where '?' matches exactly one
// character and '*' matches any run of characters, compared case
// insensitively: "?*INSTR" matches every INSTR-suffixed descriptor.
//
// This is the filter grammar accepted by ResourceManager.FindResources. The
// richer regular-expression forms of the VISA specification are not
// supported.
func MatchFilter(filter string, rsrc Resource) bool {
	return matchGlob(filter, string(rsrc))
}

// matchGlob is an iterative glob matcher with single-star backtracking,
// ASCII case-folded.
func matchGlob(pattern, s string) bool {
	var p, n int
	star, mark := -1, 0

	for n < len(s) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || foldEqual(pattern[p], s[n])):
			p++
			n++
		case p < len(pattern) && pattern[p] == '*':
			star = p
			mark = n
			p++
		case star >= 0:
			p = star + 1
			mark++
			n = mark
		default:
			return false
		}
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}

	return p == len(pattern)
}

func foldEqual(a, b byte) bool {
	if a >= 'A' && a <= 'Z' {
		a += 'a' - 'A'
	}
	if b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}
	return a == b
}

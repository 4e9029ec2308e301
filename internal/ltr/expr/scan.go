package expr

import (
	"sort"
	"strings"
)

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

// scan rewrites bare integer literals as doubles and collects the
// identifiers that are neither called nor selected. String literals are
// copied untouched.
func scan(src string) (string, map[string]struct{}) {
	var sb strings.Builder
	sb.Grow(len(src) + 8)
	idents := make(map[string]struct{})
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(src) && src[j] != c {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			j = min(j+1, len(src))
			sb.WriteString(src[i:j])
			i = j
		case isIdentStart(c):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			name := src[i:j]
			k := j
			for k < len(src) && src[k] == ' ' {
				k++
			}
			called := k < len(src) && src[k] == '('
			selected := i > 0 && src[i-1] == '.'
			if !called && !selected {
				idents[name] = struct{}{}
			}
			sb.WriteString(name)
			i = j
		case isDigit(c) && (i == 0 || src[i-1] != '.'):
			j := i
			for j < len(src) && isDigit(src[j]) {
				j++
			}
			sb.WriteString(src[i:j])
			if j < len(src) && strings.IndexByte(".eExXuU", src[j]) >= 0 {
				// Already a double, hex or unsigned literal.
				i = j
				continue
			}
			sb.WriteString(".0")
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), idents
}

var keywords = map[string]bool{"true": true, "false": true, "null": true, "in": true}

// Identifiers returns the names source uses as variables, sorted.
func Identifiers(source string) []string {
	_, idents := scan(source)
	out := make([]string, 0, len(idents))
	for name := range idents {
		if !keywords[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

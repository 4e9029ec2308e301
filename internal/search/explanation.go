package search

import (
	"math"
	"strconv"
	"strings"
)

// Explanation is a tree describing how a score was computed.
type Explanation struct {
	Match       bool           `json:"match"`
	Value       float32        `json:"value"`
	Description string         `json:"description"`
	Details     []*Explanation `json:"details,omitempty"`
}

func Match(value float32, description string, details ...*Explanation) *Explanation {
	return &Explanation{Match: true, Value: value, Description: description, Details: details}
}

func NoMatch(description string, details ...*Explanation) *Explanation {
	return &Explanation{Description: description, Details: details}
}

// String renders the tree one node per line, children indented by two
// spaces, as "<value> = <description>".
func (e *Explanation) String() string {
	var sb strings.Builder
	e.write(&sb, 0)
	return sb.String()
}

func (e *Explanation) write(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(FormatFloat(e.Value))
	sb.WriteString(" = ")
	sb.WriteString(e.Description)
	sb.WriteByte('\n')
	for _, d := range e.Details {
		d.write(sb, depth+1)
	}
}

// FormatFloat prints v with the shortest representation that round-trips
// through float32, always with a fractional part ("2.0", "1.8472979").
// Magnitudes outside [1e-3, 1e7) use exponent form ("1.0E7").
func FormatFloat(v float32) string {
	switch {
	case math.IsNaN(float64(v)):
		return "NaN"
	case math.IsInf(float64(v), 1):
		return "Infinity"
	case math.IsInf(float64(v), -1):
		return "-Infinity"
	}
	abs := math.Abs(float64(v))
	if v != 0 && (abs < 1e-3 || abs >= 1e7) {
		s := strconv.FormatFloat(float64(v), 'E', -1, 32)
		mantissa, exp, _ := strings.Cut(s, "E")
		if !strings.Contains(mantissa, ".") {
			mantissa += ".0"
		}
		n, _ := strconv.Atoi(exp)
		return mantissa + "E" + strconv.Itoa(n)
	}
	s := strconv.FormatFloat(float64(v), 'f', -1, 32)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

package termstat

import (
	"fmt"
	"math"
	"slices"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
)

// AggrType folds a list of values into one.
type AggrType int

const (
	AggrAvg AggrType = iota
	AggrMax
	AggrMin
	AggrSum
	AggrStddev
)

var aggrNames = [...]string{"avg", "max", "min", "sum", "stddev"}

func (a AggrType) String() string {
	if int(a) < len(aggrNames) {
		return aggrNames[a]
	}
	return fmt.Sprintf("AggrType(%d)", int(a))
}

// ParseAggr accepts the aggregation names case-insensitively. The empty
// string means avg.
func ParseAggr(name string) (AggrType, error) {
	if name == "" {
		return AggrAvg, nil
	}
	for i, n := range aggrNames {
		if strings.EqualFold(name, n) {
			return AggrType(i), nil
		}
	}
	return 0, apperrors.InvalidDefinition("unknown aggregation [%s], expected one of %s", name, strings.Join(aggrNames[:], ", "))
}

// Stats collects values for one fold. Sums run over a sorted scratch copy
// so the result does not depend on insertion order. Both buffers are reused,
// so a warm Stats folds without allocating.
type Stats struct {
	values  []float32
	scratch []float32
}

func (s *Stats) Reset() { s.values = s.values[:0] }

func (s *Stats) Add(v float32) { s.values = append(s.values, v) }

func (s *Stats) Len() int { return len(s.values) }

// Aggregate folds the collected values. An empty Stats folds to 0.
func (s *Stats) Aggregate(a AggrType) float32 {
	n := len(s.values)
	if n == 0 {
		return 0
	}
	switch a {
	case AggrMin:
		return slices.Min(s.values)
	case AggrMax:
		return slices.Max(s.values)
	}
	s.scratch = append(s.scratch[:0], s.values...)
	slices.Sort(s.scratch)
	var sum float64
	for _, v := range s.scratch {
		sum += float64(v)
	}
	switch a {
	case AggrSum:
		return float32(sum)
	case AggrStddev:
		mean := sum / float64(n)
		var sq float64
		for _, v := range s.scratch {
			d := float64(v) - mean
			sq += d * d
		}
		return float32(math.Sqrt(sq / float64(n)))
	default:
		return float32(sum / float64(n))
	}
}

var posInf = math.Inf(1)

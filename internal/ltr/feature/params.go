package feature

import (
	"encoding/json"
	"fmt"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/errors"
)

// checkRequired returns a MissingParameterError listing every name absent
// from params.
func checkRequired(feature string, required []string, params Params) error {
	var missing []string
	for _, name := range required {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return apperrors.MissingParameters(feature, missing)
	}
	return nil
}

func checkParamNames(feature string, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return apperrors.InvalidDefinition("feature [%s]: empty parameter name", feature)
		}
		if _, ok := seen[n]; ok {
			return apperrors.InvalidDefinition("feature [%s]: duplicate parameter [%s]", feature, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// toFloat converts numeric parameter values, including numeric strings.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// toStrings accepts a list of strings or a single string.
func toStrings(v any) ([]string, bool) {
	switch s := v.(type) {
	case string:
		return []string{s}, true
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}

// stringify renders a parameter for embedding into a larger string.
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case fmt.Stringer:
		return s.String()
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(b)
	}
}

// Package expr compiles numeric feature expressions with CEL. Every variable
// is a double; integer literals in the source are read as doubles so that
// "tf * 2" type-checks. Compiled expressions are immutable and safe for
// concurrent use; per-evaluation state lives in the Bindings passed to
// Evaluate.
package expr

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/interpreter"
)

var (
	baseEnv     *cel.Env
	baseEnvErr  error
	baseEnvOnce sync.Once
)

func unary(name string, fn func(float64) float64) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(func(v ref.Val) ref.Val {
				return types.Double(fn(float64(v.(types.Double))))
			}),
		),
	)
}

func binary(name string, fn func(float64, float64) float64) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
			cel.BinaryBinding(func(a, b ref.Val) ref.Val {
				return types.Double(fn(float64(a.(types.Double)), float64(b.(types.Double))))
			}),
		),
	)
}

func getBaseEnv() (*cel.Env, error) {
	baseEnvOnce.Do(func() {
		baseEnv, baseEnvErr = cel.NewEnv(
			unary("ln", math.Log),
			unary("log10", math.Log10),
			unary("sqrt", math.Sqrt),
			unary("exp", math.Exp),
			unary("abs", math.Abs),
			unary("floor", math.Floor),
			unary("ceil", math.Ceil),
			binary("pow", math.Pow),
			binary("min", math.Min),
			binary("max", math.Max),
		)
	})
	return baseEnv, baseEnvErr
}

// Functions lists the functions available to expressions.
func Functions() []string {
	return []string{"abs", "ceil", "exp", "floor", "ln", "log10", "max", "min", "pow", "sqrt"}
}

// Bindings supplies variable values during evaluation.
type Bindings interface {
	Resolve(name string) (float64, bool)
}

// Vars binds variables from a map.
type Vars map[string]float64

func (v Vars) Resolve(name string) (float64, bool) {
	f, ok := v[name]
	return f, ok
}

// Expression is a compiled expression.
type Expression struct {
	source string
	vars   []string
	refs   []string
	prg    cel.Program
}

// Compile type-checks source with vars declared as doubles. The expression
// must produce a number or a boolean.
func Compile(source string, vars ...string) (*Expression, error) {
	base, err := getBaseEnv()
	if err != nil {
		return nil, fmt.Errorf("creating expression environment: %w", err)
	}
	declared := dedupe(vars)
	opts := make([]cel.EnvOption, 0, len(declared))
	for _, v := range declared {
		opts = append(opts, cel.Variable(v, cel.DoubleType))
	}
	env, err := base.Extend(opts...)
	if err != nil {
		return nil, fmt.Errorf("declaring variables: %w", err)
	}
	normalized, idents := scan(source)
	ast, issues := env.Compile(normalized)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compiling [%s]: %w", source, issues.Err())
	}
	switch ast.OutputType().Kind() {
	case types.DoubleKind, types.BoolKind, types.DynKind:
	default:
		return nil, fmt.Errorf("expression [%s] must return a number, got %s", source, ast.OutputType())
	}
	prg, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize))
	if err != nil {
		return nil, fmt.Errorf("building program for [%s]: %w", source, err)
	}
	return &Expression{
		source: source,
		vars:   declared,
		refs:   intersect(idents, declared),
		prg:    prg,
	}, nil
}

func (e *Expression) String() string { return e.source }

// Variables are the declared variables.
func (e *Expression) Variables() []string { return e.vars }

// References are the declared variables the source actually uses, sorted.
func (e *Expression) References() []string { return e.refs }

// Uses reports whether the source references variable name.
func (e *Expression) Uses(name string) bool {
	i := sort.SearchStrings(e.refs, name)
	return i < len(e.refs) && e.refs[i] == name
}

// Evaluate runs the expression. Booleans evaluate to 1 or 0.
func (e *Expression) Evaluate(b Bindings) (float64, error) {
	return e.eval(&activation{b: b})
}

// Bind returns a Binder that evaluates e against b. A Binder reuses one
// activation across calls and is owned by a single goroutine.
func (e *Expression) Bind(b Bindings) *Binder {
	return &Binder{expr: e, act: activation{b: b}}
}

// Binder is an expression bound to a fixed Bindings value.
type Binder struct {
	expr *Expression
	act  activation
}

func (b *Binder) Evaluate() (float64, error) {
	return b.expr.eval(&b.act)
}

func (e *Expression) eval(act *activation) (float64, error) {
	out, _, err := e.prg.Eval(act)
	if err != nil {
		return 0, fmt.Errorf("evaluating [%s]: %w", e.source, err)
	}
	switch v := out.(type) {
	case types.Double:
		return float64(v), nil
	case types.Int:
		return float64(v), nil
	case types.Bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("expression [%s] returned %s, expected a number", e.source, out.Type().TypeName())
	}
}

// activation adapts Bindings to CEL's variable resolution. Values are
// returned as CEL doubles so the interpreter does not convert them again.
type activation struct {
	b Bindings
}

func (a *activation) ResolveName(name string) (any, bool) {
	v, ok := a.b.Resolve(name)
	if !ok {
		return nil, false
	}
	return types.Double(v), true
}

func (a *activation) Parent() interpreter.Activation { return nil }

func dedupe(vars []string) []string {
	seen := make(map[string]struct{}, len(vars))
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func intersect(idents map[string]struct{}, declared []string) []string {
	var out []string
	for _, v := range declared {
		if _, ok := idents[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Package expression evaluates the algebraic expressions used by nonlinear
// constraints, e.g. "x1**2 + x2**2 - 1" or "sqrt(a*b) - 0.5".
//
// Expressions are parsed and compiled once with expr-lang and evaluated
// against a map of numeric feature values. Besides the operators and builtins
// of the expr language (+ - * / ** % abs min max ...), the math functions
// sqrt, exp, log, sin, cos, tan and tanh are available.
package expression

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// Evaluator is the narrow contract the core uses to evaluate nonlinear
// constraint expressions.
type Evaluator interface {
	Evaluate(source string, assignment map[string]float64) (float64, error)
}

// Program is a compiled expression.
type Program struct {
	source      string
	program     *vm.Program
	identifiers []string
}

// Compile parses and compiles source. The identifiers it references are
// collected so callers can check them against a feature namespace.
func Compile(source string) (*Program, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse expression %q: %w", source, err)
	}

	collector := &identifierCollector{
		idents:  map[string]struct{}{},
		callees: map[string]struct{}{},
	}
	ast.Walk(&tree.Node, collector)

	program, err := expr.Compile(source, compileOptions()...)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", source, err)
	}

	return &Program{
		source:      source,
		program:     program,
		identifiers: collector.names(),
	}, nil
}

// Source returns the original expression text.
func (p *Program) Source() string { return p.source }

// Identifiers returns the variable names referenced by the expression, in
// lexical order.
func (p *Program) Identifiers() []string {
	return append([]string(nil), p.identifiers...)
}

// Eval evaluates the program. Every referenced identifier must be present in
// env.
func (p *Program) Eval(env map[string]float64) (float64, error) {
	vars := make(map[string]any, len(p.identifiers))
	for _, id := range p.identifiers {
		v, ok := env[id]
		if !ok {
			return math.NaN(), fmt.Errorf("evaluate %q: missing value for %q", p.source, id)
		}

		vars[id] = v
	}

	out, err := expr.Run(p.program, vars)
	if err != nil {
		return math.NaN(), fmt.Errorf("evaluate %q: %w", p.source, err)
	}

	f, err := toFloat(out)
	if err != nil {
		return math.NaN(), fmt.Errorf("evaluate %q: %w", p.source, err)
	}

	return f, nil
}

// Engine is an Evaluator with a compiled-program cache. It is safe for
// concurrent use.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*Program
}

// NewEngine returns an empty Engine.
func NewEngine() *Engine {
	return &Engine{cache: map[string]*Program{}}
}

// Evaluate implements Evaluator.
func (e *Engine) Evaluate(source string, assignment map[string]float64) (float64, error) {
	p, err := e.program(source)
	if err != nil {
		return math.NaN(), err
	}

	return p.Eval(assignment)
}

func (e *Engine) program(source string) (*Program, error) {
	e.mu.RLock()
	p, ok := e.cache[source]
	e.mu.RUnlock()

	if ok {
		return p, nil
	}

	p, err := Compile(source)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[source] = p
	e.mu.Unlock()

	return p, nil
}

//////
// Helpers.
//////

type identifierCollector struct {
	idents  map[string]struct{}
	callees map[string]struct{}
}

func (c *identifierCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		c.idents[n.Value] = struct{}{}
	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok {
			c.callees[id.Value] = struct{}{}
		}
	}
}

func (c *identifierCollector) names() []string {
	out := make([]string, 0, len(c.idents))
	for id := range c.idents {
		if _, isCall := c.callees[id]; isCall {
			continue
		}

		out = append(out, id)
	}

	sort.Strings(out)

	return out
}

func compileOptions() []expr.Option {
	unary := map[string]func(float64) float64{
		"sqrt": math.Sqrt,
		"exp":  math.Exp,
		"log":  math.Log,
		"sin":  math.Sin,
		"cos":  math.Cos,
		"tan":  math.Tan,
		"tanh": math.Tanh,
	}

	names := make([]string, 0, len(unary))
	for name := range unary {
		names = append(names, name)
	}

	sort.Strings(names)

	opts := make([]expr.Option, 0, len(names))
	for _, name := range names {
		fn := unary[name]
		fname := name
		opts = append(opts, expr.Function(fname, func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("%s expects 1 argument, got %d", fname, len(params))
			}

			x, err := toFloat(params[0])
			if err != nil {
				return nil, err
			}

			return fn(x), nil
		}))
	}

	return opts
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	default:
		return math.NaN(), fmt.Errorf("expression must evaluate to a number, got %T", v)
	}
}

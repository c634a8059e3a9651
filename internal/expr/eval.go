// Package expr implements the single AST evaluator shared by $CALCULATE(...)
// step parameters, step `condition` expressions, and `computed` parameter
// resolution (spec.md §4.1).
//
// No third-party expression-language dependency (CEL, govaluate, expr-lang)
// appears anywhere in the example corpus, so this engine is hand-rolled
// exactly the way the teacher hand-rolls its own small, self-contained
// analysis helpers (internal/validation/logic.go, internal/analysis/*) rather
// than reaching for a library — see DESIGN.md.
package expr

import (
	"fmt"
	"math"
	"sort"

	"github.com/dominikbraun/graph"
)

// Engine evaluates expressions against a mutable variable context. Booleans
// are stored as 1.0/0.0; strings are stored as strings and are only legal in
// equality/inequality comparisons (spec.md §4.1).
type Engine struct {
	vars map[string]value
}

// NewEngine creates an expression engine with an empty context.
func NewEngine() *Engine {
	return &Engine{vars: make(map[string]value)}
}

// SetContext replaces the engine's variable context wholesale.
func (e *Engine) SetContext(ctx map[string]any) {
	e.vars = make(map[string]value, len(ctx))
	for k, v := range ctx {
		e.vars[k] = toValue(v)
	}
}

// UpdateContext merges additional variables into the existing context.
func (e *Engine) UpdateContext(ctx map[string]any) {
	if e.vars == nil {
		e.vars = make(map[string]value)
	}
	for k, v := range ctx {
		e.vars[k] = toValue(v)
	}
}

// GetVariable returns the current value of a context variable as a Go value
// (float64 or string), or an error if it is unknown.
func (e *Engine) GetVariable(name string) (any, error) {
	v, ok := e.vars[name]
	if !ok {
		return nil, fmt.Errorf("expr: unknown variable %q", name)
	}
	if v.isStr {
		return v.str, nil
	}
	return v.num, nil
}

func toValue(v any) value {
	switch t := v.(type) {
	case bool:
		return boolVal(t)
	case string:
		return strVal(t)
	case float64:
		return numVal(t)
	case float32:
		return numVal(float64(t))
	case int:
		return numVal(float64(t))
	case int64:
		return numVal(float64(t))
	default:
		return numVal(0)
	}
}

type evalCtx struct {
	vars map[string]value
}

func (c *evalCtx) lookup(name string) (value, error) {
	v, ok := c.vars[name]
	if !ok {
		return value{}, fmt.Errorf("expr: unknown variable %q", name)
	}
	return v, nil
}

// Evaluate parses and evaluates expr against the current context. It returns
// a float64 for numeric/boolean results or a string for string-literal
// results. It returns an error on syntax error, disallowed construct, unknown
// variable, or type mismatch (arithmetic attempted on a string).
func (e *Engine) Evaluate(expr string) (any, error) {
	v, err := e.evalInternal(expr)
	if err != nil {
		return nil, err
	}
	if v.isStr {
		return v.str, nil
	}
	return v.num, nil
}

func (e *Engine) evalInternal(expr string) (value, error) {
	toks, err := newLexer(expr).tokenize()
	if err != nil {
		return value{}, err
	}
	n, err := newParser(toks).parse()
	if err != nil {
		return value{}, err
	}
	return n.eval(&evalCtx{vars: e.vars})
}

// EvaluateSafe evaluates expr and returns def on any failure.
func (e *Engine) EvaluateSafe(expr string, def any) any {
	v, err := e.Evaluate(expr)
	if err != nil {
		return def
	}
	return v
}

// EvaluateAsBool evaluates expr and coerces the result to a boolean,
// returning an error if the expression itself failed.
func (e *Engine) EvaluateAsBool(expr string) (bool, error) {
	v, err := e.evalInternal(expr)
	if err != nil {
		return false, err
	}
	return v.truthy(), nil
}

// EvaluateAsFloat evaluates expr and coerces the result to a float64,
// returning an error if the expression failed or yielded a string.
func (e *Engine) EvaluateAsFloat(expr string) (float64, error) {
	v, err := e.evalInternal(expr)
	if err != nil {
		return 0, err
	}
	if v.isStr {
		return 0, fmt.Errorf("expr: expected numeric result, got string %q", v.str)
	}
	return v.num, nil
}

// --- AST evaluation ---

func (n *numberNode) eval(*evalCtx) (value, error) { return numVal(n.v), nil }
func (n *stringNode) eval(*evalCtx) (value, error) { return strVal(n.v), nil }
func (n *boolNode) eval(*evalCtx) (value, error)   { return boolVal(n.v), nil }

func (n *identNode) eval(c *evalCtx) (value, error) {
	return c.lookup(n.name)
}

func (n *unaryNode) eval(c *evalCtx) (value, error) {
	v, err := n.x.eval(c)
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case "not":
		return boolVal(!v.truthy()), nil
	case "-":
		if v.isStr {
			return value{}, fmt.Errorf("expr: cannot negate a string")
		}
		return numVal(-v.num), nil
	case "+":
		if v.isStr {
			return value{}, fmt.Errorf("expr: unary + on a string")
		}
		return numVal(v.num), nil
	}
	return value{}, fmt.Errorf("expr: unknown unary operator %q", n.op)
}

func (n *logicalNode) eval(c *evalCtx) (value, error) {
	l, err := n.l.eval(c)
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case "and":
		if !l.truthy() {
			return l, nil
		}
		return n.r.eval(c)
	case "or":
		if l.truthy() {
			return l, nil
		}
		return n.r.eval(c)
	}
	return value{}, fmt.Errorf("expr: unknown logical operator %q", n.op)
}

func (n *ternaryNode) eval(c *evalCtx) (value, error) {
	cond, err := n.cond.eval(c)
	if err != nil {
		return value{}, err
	}
	if cond.truthy() {
		return n.then.eval(c)
	}
	return n.els.eval(c)
}

func (n *binaryNode) eval(c *evalCtx) (value, error) {
	l, err := n.l.eval(c)
	if err != nil {
		return value{}, err
	}
	r, err := n.r.eval(c)
	if err != nil {
		return value{}, err
	}
	if l.isStr || r.isStr {
		return value{}, fmt.Errorf("expr: arithmetic operator %q applied to a string", n.op)
	}
	switch n.op {
	case "+":
		return numVal(l.num + r.num), nil
	case "-":
		return numVal(l.num - r.num), nil
	case "*":
		return numVal(l.num * r.num), nil
	case "/":
		if r.num == 0 {
			return value{}, fmt.Errorf("expr: division by zero")
		}
		return numVal(l.num / r.num), nil
	case "//":
		if r.num == 0 {
			return value{}, fmt.Errorf("expr: division by zero")
		}
		return numVal(math.Floor(l.num / r.num)), nil
	case "%":
		if r.num == 0 {
			return value{}, fmt.Errorf("expr: modulo by zero")
		}
		return numVal(math.Mod(l.num, r.num)), nil
	case "**":
		return numVal(math.Pow(l.num, r.num)), nil
	}
	return value{}, fmt.Errorf("expr: unknown binary operator %q", n.op)
}

func (n *chainCompareNode) eval(c *evalCtx) (value, error) {
	vals := make([]value, len(n.operands))
	for i, o := range n.operands {
		v, err := o.eval(c)
		if err != nil {
			return value{}, err
		}
		vals[i] = v
	}
	for i, op := range n.ops {
		ok, err := compare(vals[i], op, vals[i+1])
		if err != nil {
			return value{}, err
		}
		if !ok {
			return boolVal(false), nil
		}
	}
	return boolVal(true), nil
}

func compare(l value, op string, r value) (bool, error) {
	if op == "==" || op == "!=" {
		var eq bool
		if l.isStr != r.isStr {
			eq = false
		} else if l.isStr {
			eq = l.str == r.str
		} else {
			eq = l.num == r.num
		}
		if op == "==" {
			return eq, nil
		}
		return !eq, nil
	}
	if l.isStr || r.isStr {
		return false, fmt.Errorf("expr: ordering comparison %q applied to a string", op)
	}
	switch op {
	case "<":
		return l.num < r.num, nil
	case "<=":
		return l.num <= r.num, nil
	case ">":
		return l.num > r.num, nil
	case ">=":
		return l.num >= r.num, nil
	}
	return false, fmt.Errorf("expr: unknown comparison operator %q", op)
}

func (n *callNode) eval(c *evalCtx) (value, error) {
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(c)
		if err != nil {
			return value{}, err
		}
		if v.isStr {
			return value{}, fmt.Errorf("expr: function %q received a string argument", n.fn)
		}
		args[i] = v.num
	}
	f, err := callFunc(n.fn, args)
	if err != nil {
		return value{}, err
	}
	return numVal(f), nil
}

// whitelistedFuncs is the fixed set of 22 math functions callable from
// expressions (spec.md §4.1). No attribute access, subscription, imports,
// assignment, comprehensions, or lambdas are ever reachable from the grammar.
var whitelistedFuncs = map[string]bool{
	"abs": true, "min": true, "max": true, "round": true, "floor": true,
	"ceil": true, "sqrt": true, "trunc": true, "sin": true, "cos": true,
	"tan": true, "asin": true, "acos": true, "atan": true, "atan2": true,
	"degrees": true, "radians": true, "log": true, "log10": true, "exp": true,
	"pow": true, "hypot": true,
}

func callFunc(name string, args []float64) (float64, error) {
	arity1 := func(f func(float64) float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("expr: %s expects 1 argument, got %d", name, len(args))
		}
		return f(args[0]), nil
	}
	switch name {
	case "abs":
		return arity1(math.Abs)
	case "round":
		return arity1(math.Round)
	case "floor":
		return arity1(math.Floor)
	case "ceil":
		return arity1(math.Ceil)
	case "sqrt":
		return arity1(math.Sqrt)
	case "trunc":
		return arity1(math.Trunc)
	case "sin":
		return arity1(math.Sin)
	case "cos":
		return arity1(math.Cos)
	case "tan":
		return arity1(math.Tan)
	case "asin":
		return arity1(math.Asin)
	case "acos":
		return arity1(math.Acos)
	case "atan":
		return arity1(math.Atan)
	case "degrees":
		return arity1(func(r float64) float64 { return r * 180 / math.Pi })
	case "radians":
		return arity1(func(d float64) float64 { return d * math.Pi / 180 })
	case "log":
		return arity1(math.Log)
	case "log10":
		return arity1(math.Log10)
	case "exp":
		return arity1(math.Exp)
	case "min":
		if len(args) == 0 {
			return 0, fmt.Errorf("expr: min expects at least 1 argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			if a < m {
				m = a
			}
		}
		return m, nil
	case "max":
		if len(args) == 0 {
			return 0, fmt.Errorf("expr: max expects at least 1 argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			if a > m {
				m = a
			}
		}
		return m, nil
	case "atan2":
		if len(args) != 2 {
			return 0, fmt.Errorf("expr: atan2 expects 2 arguments, got %d", len(args))
		}
		return math.Atan2(args[0], args[1]), nil
	case "pow":
		if len(args) != 2 {
			return 0, fmt.Errorf("expr: pow expects 2 arguments, got %d", len(args))
		}
		return math.Pow(args[0], args[1]), nil
	case "hypot":
		if len(args) != 2 {
			return 0, fmt.Errorf("expr: hypot expects 2 arguments, got %d", len(args))
		}
		return math.Hypot(args[0], args[1]), nil
	}
	return 0, fmt.Errorf("expr: function %q is not whitelisted", name)
}

// CycleError reports a circular `depends_on` dependency detected while
// resolving computed parameters.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("expr: circular computed-parameter dependency: %v", e.Members)
}

// ComputedSchema is the minimal shape resolve_computed_parameters needs from
// a parameter schema: its name, optional computed expression, and declared
// dependencies.
type ComputedSchema struct {
	Name      string
	Computed  string
	DependsOn []string
}

// ResolveComputedParameters builds a dependency graph from each schema's
// DependsOn, topologically sorts it with Kahn's algorithm (via
// github.com/dominikbraun/graph), and evaluates each `computed` expression in
// dependency order against the running context. Explicit values already
// present in initialContext are never overwritten by a computed result
// (spec.md §4.10: "base < computed < explicit").
//
// On any computed-expression failure the error is not fatal to the whole
// resolution: per spec.md §4.1/§7 the parameter is simply omitted from the
// result and the caller is expected to log it.
func ResolveComputedParameters(schemas []ComputedSchema, initialContext map[string]any) (map[string]any, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	byName := make(map[string]ComputedSchema, len(schemas))
	for _, s := range schemas {
		byName[s.Name] = s
		if err := g.AddVertex(s.Name); err != nil && err != graph.ErrVertexAlreadyExists {
			return nil, fmt.Errorf("expr: building dependency graph: %w", err)
		}
	}
	for _, s := range schemas {
		for _, dep := range s.DependsOn {
			if _, ok := byName[dep]; !ok {
				// Dependency on a non-computed (already-resolved) variable;
				// it isn't a graph node, so no edge is needed.
				continue
			}
			if err := g.AddEdge(dep, s.Name); err != nil {
				if err == graph.ErrEdgeCreatesCycle {
					return nil, &CycleError{Members: cycleMembers(schemas)}
				}
				if err != graph.ErrEdgeAlreadyExists {
					return nil, fmt.Errorf("expr: building dependency graph: %w", err)
				}
			}
		}
	}

	order, err := graph.TopologicalSort(g)
	if err != nil {
		return nil, &CycleError{Members: cycleMembers(schemas)}
	}

	result := make(map[string]any, len(initialContext)+len(schemas))
	for k, v := range initialContext {
		result[k] = v
	}

	engine := NewEngine()
	for _, name := range order {
		schema := byName[name]
		if schema.Computed == "" {
			continue
		}
		if _, explicit := initialContext[name]; explicit {
			continue // explicit always wins over computed
		}
		engine.SetContext(result)
		v, err := engine.Evaluate(schema.Computed)
		if err != nil {
			// Fail-soft: log is the caller's responsibility; proceed without
			// this computed value (spec.md §4.1 "computed" failure semantics).
			continue
		}
		result[name] = v
	}
	return result, nil
}

func cycleMembers(schemas []ComputedSchema) []string {
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		if len(s.DependsOn) > 0 {
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Package condition evaluates the boolean guards attached to pipeline steps.
//
// The accepted syntax is the one CI authors write in shell-style guards:
//
//	${VERSION} == "3.7" and ${DIST} != "conda"
//	not ({{NAME}} == 'UT' or NAME == "UT_LONG")
//
// Variables may be written ${Name}, {{Name}} or bare. Expressions are
// rewritten into HCL native syntax and evaluated against the variable
// context, so comparisons (==, !=, <, <=, >, >=), boolean operators and
// parentheses all follow HCL semantics. The one exception is equality:
// both operands of == and != are compared as text, with numeric text in
// canonical form, so ${VERSION} == 3.7 holds when VERSION is "3.7".
package condition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

// Lookup returns the value bound to name. bound is false when the name is
// unknown; ok is false when it is bound to null.
type Lookup func(name string) (value string, ok, bound bool)

// UnresolvedVariableError reports a variable referenced by a condition that
// the context does not define.
type UnresolvedVariableError struct {
	Stage string
	Name  string
}

func (e *UnresolvedVariableError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("unresolved variable %q", e.Name)
	}
	return fmt.Sprintf("%s: unresolved variable %q", e.Stage, e.Name)
}

// EvaluationError reports a malformed condition or one that does not
// produce a boolean.
type EvaluationError struct {
	Expr string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("condition %q: %v", e.Expr, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Evaluate parses expr and evaluates it against lookup. An empty expression
// is true.
func Evaluate(expr string, lookup Lookup) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	src, err := Translate(expr)
	if err != nil {
		return false, &EvaluationError{Expr: expr, Err: err}
	}
	parsed, diags := hclsyntax.ParseExpression([]byte(src), "condition", hcl.InitialPos)
	if diags.HasErrors() {
		return false, &EvaluationError{Expr: expr, Err: diags}
	}

	vars := map[string]cty.Value{}
	for _, name := range referencedNames(parsed) {
		value, ok, bound := lookup(name)
		switch {
		case !bound:
			return false, &UnresolvedVariableError{Name: name}
		case !ok:
			vars[name] = cty.NullVal(cty.String)
		default:
			vars[name] = cty.StringVal(value)
		}
	}

	looseEquality(parsed)
	result, diags := parsed.Value(&hcl.EvalContext{
		Variables: vars,
		Functions: map[string]function.Function{comparandFunc: comparand},
	})
	if diags.HasErrors() {
		return false, &EvaluationError{Expr: expr, Err: diags}
	}
	if result.IsNull() || !result.IsKnown() || !result.Type().Equals(cty.Bool) {
		return false, &EvaluationError{Expr: expr, Err: fmt.Errorf("result is %s, want bool", result.Type().FriendlyName())}
	}
	return result.True(), nil
}

// referencedNames returns the root names of every variable traversal in the
// expression, sorted and deduplicated.
func referencedNames(expr hcl.Expression) []string {
	seen := map[string]bool{}
	for _, traversal := range expr.Variables() {
		seen[traversal.RootName()] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// comparandFunc names the function wrapped around equality operands.
const comparandFunc = "comparand"

// comparand converts an equality operand to text. Numbers, and strings that
// parse as numbers, are written in canonical form, so "3.70", 3.7 and "3.7"
// compare equal. Null stays null.
var comparand = function.New(&function.Spec{
	Params: []function.Parameter{{
		Name:      "value",
		Type:      cty.DynamicPseudoType,
		AllowNull: true,
	}},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		v := args[0]
		if v.IsNull() {
			return cty.NullVal(cty.String), nil
		}
		if num, err := convert.Convert(v, cty.Number); err == nil {
			v = num
		}
		return convert.Convert(v, cty.String)
	},
})

// looseEquality rewrites every == and != in expr so that both operands go
// through comparand.
func looseEquality(expr hclsyntax.Expression) {
	switch e := expr.(type) {
	case *hclsyntax.BinaryOpExpr:
		looseEquality(e.LHS)
		looseEquality(e.RHS)
		if e.Op == hclsyntax.OpEqual || e.Op == hclsyntax.OpNotEqual {
			e.LHS = wrapComparand(e.LHS)
			e.RHS = wrapComparand(e.RHS)
		}
	case *hclsyntax.UnaryOpExpr:
		looseEquality(e.Val)
	case *hclsyntax.ParenthesesExpr:
		looseEquality(e.Expression)
	case *hclsyntax.ConditionalExpr:
		looseEquality(e.Condition)
		looseEquality(e.TrueResult)
		looseEquality(e.FalseResult)
	case *hclsyntax.FunctionCallExpr:
		for _, arg := range e.Args {
			looseEquality(arg)
		}
	}
}

func wrapComparand(expr hclsyntax.Expression) hclsyntax.Expression {
	rng := expr.Range()
	return &hclsyntax.FunctionCallExpr{
		Name:            comparandFunc,
		Args:            []hclsyntax.Expression{expr},
		NameRange:       rng,
		OpenParenRange:  rng,
		CloseParenRange: rng,
	}
}

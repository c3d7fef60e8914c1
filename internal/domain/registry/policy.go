package registry

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// policyEnv is the single CEL environment every tool's authorization
// predicate compiles against: `args` is the decoded argument object,
// `session` exposes the caller's identity and roles. Building one
// environment and reusing it for every Compile call avoids paying CEL's
// environment-construction cost per tool.
var policyEnv = mustPolicyEnv()

func mustPolicyEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("args", cel.DynType),
		cel.Variable("session", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		panic(fmt.Sprintf("registry: building CEL environment: %v", err))
	}
	return env
}

// policyPredicate is a compiled per-tool authorization expression.
type policyPredicate struct {
	program cel.Program
	source  string
}

// compilePolicy compiles expr, a CEL boolean expression over `args` and
// `session`. A compile error is surfaced at registration time so a bad
// policy never silently denies (or allows) every call.
func compilePolicy(expr string) (*policyPredicate, error) {
	if expr == "" {
		return nil, nil
	}
	ast, issues := policyEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile policy: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy must evaluate to bool, got %s", ast.OutputType())
	}
	prg, err := policyEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build policy program: %w", err)
	}
	return &policyPredicate{program: prg, source: expr}, nil
}

// Evaluate runs the predicate against a call's decoded arguments and
// session attributes, returning whether the call is authorized.
func (p *policyPredicate) Evaluate(args any, sess map[string]any) (bool, error) {
	if p == nil {
		return true, nil
	}
	out, _, err := p.program.Eval(map[string]any{
		"args":    args,
		"session": sess,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate policy %q: %w", p.source, err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy %q did not evaluate to bool", p.source)
	}
	return allowed, nil
}

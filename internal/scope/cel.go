package scope

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// CELMatcher treats every scope entry as a CEL expression over the string
// variable id, for example
//
//	id.startsWith("arn:aws:elasticloadbalancing:eu-") || id == "vpc-0abc"
//
// An identifier is selected when any entry evaluates to true. Entries that
// do not compile or do not evaluate to a bool select nothing; use Compile
// to reject them up front.
type CELMatcher struct {
	env *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewCELMatcher returns a matcher with an empty program cache.
func NewCELMatcher() (*CELMatcher, error) {
	env, err := cel.NewEnv(cel.Variable("id", cel.StringType))
	if err != nil {
		return nil, fmt.Errorf("build CEL environment: %w", err)
	}
	return &CELMatcher{env: env, programs: make(map[string]cel.Program)}, nil
}

// Compile checks that expr is a boolean expression over id and caches the
// program.
func (m *CELMatcher) Compile(expr string) error {
	_, err := m.program(strings.TrimSpace(expr))
	return err
}

// Match implements Filter. It is safe for concurrent use.
func (m *CELMatcher) Match(identifier string, resources []string) bool {
	for _, r := range resources {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		prg, err := m.program(r)
		if err != nil {
			continue
		}
		out, _, err := prg.Eval(map[string]any{"id": identifier})
		if err != nil {
			continue
		}
		if ok, isBool := out.Value().(bool); isBool && ok {
			return true
		}
	}
	return false
}

func (m *CELMatcher) program(expr string) (cel.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prg, ok := m.programs[expr]; ok {
		return prg, nil
	}

	ast, iss := m.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("compile %q: result is %s, want bool", expr, ast.OutputType())
	}
	prg, err := m.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("plan %q: %w", expr, err)
	}
	m.programs[expr] = prg
	return prg, nil
}

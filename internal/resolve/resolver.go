package resolve

import (
	"fmt"
	"sort"

	"fsscompiler/internal/failure"
	"fsscompiler/internal/graph"
)

// Argument is one resolved argument of a call.
type Argument struct {
	Key   string
	Token string
	Kind  TokenKind
}

// ResolvedCall is a call ready for rendering: arguments are in parameter-key order.
type ResolvedCall struct {
	Name     string
	Function string
	Args     []Argument
}

// ReferencePolicy decides what happens to identifiers that are not bound by
// an earlier call.
type ReferencePolicy int

const (
	// PolicyPassThrough renders unbound identifiers unchanged. They may name
	// symbols provided by the linked primitive library.
	PolicyPassThrough ReferencePolicy = iota
	// PolicyStrict rejects identifiers not declared by an earlier call.
	PolicyStrict
)

func (p ReferencePolicy) String() string {
	switch p {
	case PolicyPassThrough:
		return "pass-through"
	case PolicyStrict:
		return "strict"
	default:
		return fmt.Sprintf("ReferencePolicy(%d)", int(p))
	}
}

// Resolver walks a graph in declaration order.
type Resolver struct {
	Policy ReferencePolicy
}

// NewResolver creates a Resolver with the given reference policy.
func NewResolver(policy ReferencePolicy) *Resolver {
	return &Resolver{Policy: policy}
}

// Resolve produces one ResolvedCall per graph call, in input order, along
// with the Environment built while walking the graph.
//
// Nothing is reordered. Under PolicyStrict an identifier that is not bound by
// an earlier call yields a *failure.ResolveError.
func (r *Resolver) Resolve(g *graph.Graph) ([]ResolvedCall, *Environment, error) {
	env := NewEnvironment()
	out := make([]ResolvedCall, 0, g.Len())
	if g == nil {
		return out, env, nil
	}

	for i, call := range g.Calls {
		keys := make([]string, 0, len(call.Parameters))
		for k := range call.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		args := make([]Argument, 0, len(keys))
		for _, k := range keys {
			tok := call.Parameters[k]
			kind := Classify(tok)
			if kind == Identifier && r.Policy == PolicyStrict && !env.Declared(tok) {
				return nil, nil, &failure.ResolveError{
					Code:    failure.CodeUndefinedReference,
					Call:    call.Name,
					Message: fmt.Sprintf("parameter %q of call %d references %q before it is bound", k, i, tok),
				}
			}
			args = append(args, Argument{Key: k, Token: tok, Kind: kind})
		}

		env.Declare(call.Name, i)
		out = append(out, ResolvedCall{Name: call.Name, Function: call.Function, Args: args})
	}
	return out, env, nil
}

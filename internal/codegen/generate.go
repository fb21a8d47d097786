package codegen

import (
	"strings"

	"fsscompiler/internal/resolve"
)

const (
	indent        = "    "
	defaultResult = "0"
)

// Generate renders the program for calls.
//
// Output layout: the prologue, a blank line, then main() with one
// declaration per call in order and a return of the last bound name
// (or 0 when there are no calls). Generate is pure: identical input renders
// byte-identical text.
func Generate(calls []resolve.ResolvedCall) string {
	var b strings.Builder
	b.WriteString(prologueText)
	b.WriteString("\nint main() {\n")

	for _, c := range calls {
		b.WriteString(Statement(c))
		b.WriteByte('\n')
	}

	b.WriteString(indent)
	b.WriteString("return ")
	b.WriteString(ResultName(calls))
	b.WriteString(";\n}\n")
	return b.String()
}

// Statement renders the declaration for a single call, indented.
func Statement(c resolve.ResolvedCall) string {
	toks := make([]string, len(c.Args))
	for i, a := range c.Args {
		toks[i] = a.Token
	}
	return indent + "auto " + c.Name + " = " + c.Function + "(" + strings.Join(toks, ", ") + ");"
}

// ResultName returns the name referenced by the result statement.
func ResultName(calls []resolve.ResolvedCall) string {
	if len(calls) == 0 {
		return defaultResult
	}
	return calls[len(calls)-1].Name
}

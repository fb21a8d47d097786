// Package failure defines the per-job failure taxonomy of the compile pipeline.
//
// Every failure is local to one job and terminal for it. Nothing here is
// retried; callers classify errors with errors.As or Classify.
package failure

import (
	"fmt"
)

// ParseError reports a malformed input document. No workspace file is
// written when a job fails with a ParseError.
type ParseError struct {
	Code    string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("parse error (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ResolveError reports a binding resolution failure. It is only produced
// under the strict reference policy.
type ResolveError struct {
	Code    string
	Call    string
	Message string
}

func (e *ResolveError) Error() string {
	if e == nil {
		return ""
	}
	if e.Call != "" {
		return fmt.Sprintf("resolve error call=%s (%s): %s", e.Call, e.Code, e.Message)
	}
	return fmt.Sprintf("resolve error (%s): %s", e.Code, e.Message)
}

// IOError reports a workspace failure (creating the job directory or
// writing generated source).
type IOError struct {
	Code    string
	Message string
	Cause   error
}

func (e *IOError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("io error (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("io error: %s", e.Message)
}

func (e *IOError) Unwrap() error { return e.Cause }

// CompileError reports a toolchain failure. Diagnostic holds the toolchain
// output verbatim.
type CompileError struct {
	Code       string
	Message    string
	Diagnostic string
	ExitCode   int
	Cause      error
}

func (e *CompileError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("compile error (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("compile error: %s", e.Message)
}

func (e *CompileError) Unwrap() error { return e.Cause }

// RuntimeError reports a failed execution of the compiled artifact.
// Diagnostic holds the captured standard error.
type RuntimeError struct {
	Code       string
	Message    string
	Diagnostic string
	ExitCode   int
	Cause      error
}

func (e *RuntimeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("runtime error (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("runtime error: %s", e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Cause }

// Error codes shared across the taxonomy.
const (
	CodeMalformedDocument    = "MalformedDocument"
	CodeSchemaViolation      = "SchemaViolation"
	CodeUndefinedReference   = "UndefinedReference"
	CodeWorkspaceCreate      = "WorkspaceCreate"
	CodeWorkspaceWrite       = "WorkspaceWrite"
	CodeNonZeroExit          = "NonZeroExit"
	CodeToolchainUnavailable = "ToolchainUnavailable"
	CodeArtifactUnavailable  = "ArtifactUnavailable"
	CodeTimeout              = "Timeout"
	CodeCancelled            = "Cancelled"
	CodePanic                = "Panic"
)

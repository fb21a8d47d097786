package failure

import (
	"errors"
	"fmt"
	"strings"
)

type Class string

const (
	ClassParse    Class = "parse"
	ClassResolve  Class = "resolve"
	ClassIO       Class = "io"
	ClassCompile  Class = "compile"
	ClassRuntime  Class = "runtime"
	ClassInternal Class = "internal"
)

// Record is the structured, serializable form of a job failure.
type Record struct {
	Class      Class  `json:"class"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Diagnostic string `json:"diagnostic,omitempty"`
	ExitCode   *int   `json:"exit_code,omitempty"`
}

func (r Record) Validate() error {
	var errs []error
	switch r.Class {
	case ClassParse, ClassResolve, ClassIO, ClassCompile, ClassRuntime, ClassInternal:
		// ok
	default:
		errs = append(errs, fmt.Errorf("invalid class %q", r.Class))
	}
	if strings.TrimSpace(r.Code) == "" {
		errs = append(errs, errors.New("code is required"))
	}
	if strings.TrimSpace(r.Message) == "" {
		errs = append(errs, errors.New("message is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Text returns the text a caller should present for the failure: the
// diagnostic when there is one, the message otherwise.
func (r Record) Text() string {
	if strings.TrimSpace(r.Diagnostic) != "" {
		return r.Diagnostic
	}
	return r.Message
}

// Classify maps err onto a Record. Errors outside the taxonomy are
// classified as internal.
func Classify(err error) (Record, error) {
	if err == nil {
		return Record{}, errors.New("nil error")
	}

	var pe *ParseError
	if errors.As(err, &pe) && pe != nil {
		return Record{
			Class:   ClassParse,
			Code:    nonEmptyOr(pe.Code, CodeMalformedDocument),
			Message: nonEmptyOr(pe.Message, pe.Error()),
		}, nil
	}

	var re *ResolveError
	if errors.As(err, &re) && re != nil {
		return Record{
			Class:   ClassResolve,
			Code:    nonEmptyOr(re.Code, CodeUndefinedReference),
			Message: nonEmptyOr(re.Message, re.Error()),
		}, nil
	}

	var ioe *IOError
	if errors.As(err, &ioe) && ioe != nil {
		return Record{
			Class:   ClassIO,
			Code:    nonEmptyOr(ioe.Code, CodeWorkspaceWrite),
			Message: nonEmptyOr(ioe.Message, ioe.Error()),
		}, nil
	}

	var ce *CompileError
	if errors.As(err, &ce) && ce != nil {
		rec := Record{
			Class:      ClassCompile,
			Code:       nonEmptyOr(ce.Code, CodeNonZeroExit),
			Message:    nonEmptyOr(ce.Message, ce.Error()),
			Diagnostic: ce.Diagnostic,
		}
		if ce.Code == CodeNonZeroExit || ce.Code == "" {
			code := ce.ExitCode
			rec.ExitCode = &code
		}
		return rec, nil
	}

	var rte *RuntimeError
	if errors.As(err, &rte) && rte != nil {
		rec := Record{
			Class:      ClassRuntime,
			Code:       nonEmptyOr(rte.Code, CodeNonZeroExit),
			Message:    nonEmptyOr(rte.Message, rte.Error()),
			Diagnostic: rte.Diagnostic,
		}
		if rte.Code == CodeNonZeroExit || rte.Code == "" {
			code := rte.ExitCode
			rec.ExitCode = &code
		}
		return rec, nil
	}

	return Record{
		Class:   ClassInternal,
		Code:    "UnknownError",
		Message: err.Error(),
	}, nil
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

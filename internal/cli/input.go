package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fsscompiler/internal/failure"
	"fsscompiler/internal/job"
)

const (
	ExitSuccess           = 0
	ExitJobFailure        = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// stdinArg names standard input as the document source.
const stdinArg = "-"

// InvocationError carries the semantic exit code of a failure that happened
// before any job ran.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitConfigError, Message: fmt.Sprintf(format, args...)}
}

// ExitCode extracts a semantic exit code from an invocation error.
// If the error is not a known invocation error, it returns ExitInternalError.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}

// jobExitCode maps a finished job onto an exit code.
func jobExitCode(res *job.Result) int {
	if res.OK() {
		return ExitSuccess
	}
	if res.Failure != nil && res.Failure.Class == failure.ClassInternal {
		return ExitInternalError
	}
	return ExitJobFailure
}

// readDocument reads the input document named by args: a file path, "-"
// for stdin, or stdin when no argument is given.
func readDocument(args []string, stdin io.Reader) ([]byte, error) {
	if len(args) == 0 || args[0] == stdinArg {
		if stdin == nil {
			return nil, invalidInvocationf("no input document")
		}
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, invalidInvocationf("read stdin: %v", err)
		}
		return b, nil
	}

	path := filepath.Clean(args[0])
	if strings.TrimSpace(args[0]) == "" || path == "." {
		return nil, invalidInvocationf("document path must not be empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, invalidInvocationf("read document: %v", err)
	}
	return b, nil
}

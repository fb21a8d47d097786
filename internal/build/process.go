package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"syscall"
	"time"
)

// processSpec describes one external process invocation.
type processSpec struct {
	Path string
	Args []string
	Dir  string
	// Env is the complete environment of the process. nil inherits the
	// host environment; an empty slice gives the process no variables.
	Env []string
}

// processResult is the captured outcome of a process that ran to completion.
type processResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// errStart marks a process that could not be started at all.
type errStart struct{ err error }

func (e *errStart) Error() string { return fmt.Sprintf("failed to start command: %v", e.err) }
func (e *errStart) Unwrap() error { return e.err }

// runProcess runs spec to completion, capturing stdout and stderr.
//
// The process is placed in its own process group. When ctx is done the whole
// group is killed and ctx.Err() is returned wrapped. A non-zero exit status is
// not an error: it is reported in processResult.ExitCode.
func runProcess(ctx context.Context, spec processSpec) (*processResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("execution cancelled: %w", err)
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = spec.Env
	}

	// Set process group so we can kill the entire process tree on cancellation
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Bound the wait for output copying if a killed child leaves pipes open.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &errStart{err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			// Negative pid addresses the process group.
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return nil, fmt.Errorf("execution cancelled: %w", ctx.Err())
	case err = <-done:
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("failed to execute command: %w", err)
		}
	}

	return &processResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}, nil
}

// isolatedEnv builds an allow-list environment from env. The result is
// never nil, so the process sees only the declared variables.
func isolatedEnv(env map[string]string) []string {
	result := make([]string, 0, len(env))
	for key, value := range env {
		result = append(result, key+"="+value)
	}
	sort.Strings(result)
	return result
}

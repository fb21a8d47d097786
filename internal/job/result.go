package job

import (
	"fmt"

	"fsscompiler/internal/failure"
	"fsscompiler/internal/trace"
)

// Kind is the terminal outcome of a job.
type Kind string

const (
	Succeeded Kind = "Succeeded"
	Failed    Kind = "Failed"
)

// Result is what a caller observes for one compile request.
//
// Payload is the program's standard output on success and the failure
// diagnostic on failure.
type Result struct {
	JobID    string          `json:"job_id"`
	Kind     Kind            `json:"kind"`
	Payload  string          `json:"payload"`
	ExitCode int             `json:"exit_code"`
	Source   string          `json:"source,omitempty"`
	Err      error           `json:"-"`
	Failure  *failure.Record `json:"failure,omitempty"`
	Trace    *trace.JobTrace `json:"trace,omitempty"`
}

// OK reports whether the job succeeded.
func (r *Result) OK() bool { return r != nil && r.Kind == Succeeded }

// AdmissionError reports that no job slot became available before the
// caller's context ended. The job never started.
type AdmissionError struct {
	Cause error
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("job not admitted: %v", e.Cause)
}

func (e *AdmissionError) Unwrap() error { return e.Cause }

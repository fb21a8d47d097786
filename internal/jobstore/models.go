package jobstore

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidJobID is returned for ids that cannot name a directory inside
// the archive.
var ErrInvalidJobID = errors.New("invalid job id")

// ValidateJobID rejects ids that are empty, contain a path separator, or
// are "." or "..".
func ValidateJobID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: job_id is required", ErrInvalidJobID)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidJobID, id)
	case id == "." || id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidJobID, id)
	}
	return nil
}

// JobRecord is the persisted metadata of one finished job.
//
// SourceHash is empty when the document never produced a program.
type JobRecord struct {
	JobID      string    `json:"job_id"`
	SourceHash string    `json:"source_hash"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Status     string    `json:"status"`
	ExitCode   int       `json:"exit_code"`
}

func (r JobRecord) Validate() error {
	var errs []error
	if err := ValidateJobID(r.JobID); err != nil {
		errs = append(errs, err)
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	if r.EndTime.Before(r.StartTime) {
		errs = append(errs, errors.New("end_time must not precede start_time"))
	}
	if strings.TrimSpace(r.Status) == "" {
		errs = append(errs, errors.New("status is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

package jobstore

import (
	"time"

	"go.uber.org/multierr"

	"fsscompiler/internal/job"
	"fsscompiler/internal/trace"
)

// Archive persists a finished job: its record, its failure when it failed,
// and its trace when the build driver ran. Every part is attempted; the
// errors of all failed writes are combined.
func (s *Store) Archive(res *job.Result, started, finished time.Time) error {
	rec := JobRecord{
		JobID:     res.JobID,
		StartTime: started.UTC(),
		EndTime:   finished.UTC(),
		Status:    string(res.Kind),
		ExitCode:  res.ExitCode,
	}
	switch {
	case res.Trace != nil:
		rec.SourceHash = res.Trace.SourceHash
	case res.Source != "":
		rec.SourceHash = trace.SourceHash(res.Source)
	}

	err := s.SaveJob(rec)
	if res.Failure != nil {
		err = multierr.Append(err, s.SaveFailure(res.JobID, *res.Failure))
	}
	if res.Trace != nil {
		err = multierr.Append(err, s.SaveTrace(res.JobID, *res.Trace))
	}
	return err
}

var _ job.Archiver = (*Store)(nil)

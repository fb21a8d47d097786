// Package jobstore persists finished compile jobs under:
//
//	<baseDir>/jobs/<job-id>/job.json
//	<baseDir>/jobs/<job-id>/failure.json   (failed jobs only)
//	<baseDir>/jobs/<job-id>/trace.json     (jobs that reached the build driver)
//
// All writes are atomic and durable (file sync + atomic rename + dir sync).
package jobstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fsscompiler/internal/failure"
	"fsscompiler/internal/trace"
)

type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("baseDir is required")
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) jobsRootDir() string {
	return filepath.Join(s.baseDir, "jobs")
}

// ListJobIDs returns all job IDs currently present on disk.
//
// Determinism: the returned slice is sorted lexicographically.
func (s *Store) ListJobIDs() ([]string, error) {
	if s == nil {
		return nil, errors.New("nil Store")
	}
	entries, err := os.ReadDir(s.jobsRootDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := strings.TrimSpace(e.Name())
		if name == "" {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) jobDir(jobID string) string {
	return filepath.Join(s.jobsRootDir(), jobID)
}

func (s *Store) jobPath(jobID string) string {
	return filepath.Join(s.jobDir(jobID), "job.json")
}

func (s *Store) failurePath(jobID string) string {
	return filepath.Join(s.jobDir(jobID), "failure.json")
}

// TracePath returns where the trace of jobID is stored.
func (s *Store) TracePath(jobID string) string {
	return filepath.Join(s.jobDir(jobID), "trace.json")
}

func (s *Store) SaveJob(rec JobRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	if err := ensureDirDurable(s.jobDir(rec.JobID), 0o755); err != nil {
		return fmt.Errorf("ensure job dir: %w", err)
	}
	data, err := jsonMarshalStable(rec)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := writeFileAtomicDurable(s.jobPath(rec.JobID), data, 0o644); err != nil {
		return fmt.Errorf("write job: %w", err)
	}
	return nil
}

func (s *Store) LoadJob(jobID string) (JobRecord, error) {
	var rec JobRecord
	if err := ValidateJobID(jobID); err != nil {
		return JobRecord{}, err
	}
	if err := readJSONStrict(s.jobPath(jobID), &rec); err != nil {
		return JobRecord{}, err
	}
	if err := rec.Validate(); err != nil {
		return JobRecord{}, fmt.Errorf("invalid job on disk: %w", err)
	}
	return rec, nil
}

func (s *Store) SaveFailure(jobID string, rec failure.Record) error {
	if err := ValidateJobID(jobID); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid failure: %w", err)
	}
	if err := ensureDirDurable(s.jobDir(jobID), 0o755); err != nil {
		return fmt.Errorf("ensure job dir: %w", err)
	}
	data, err := jsonMarshalStable(rec)
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}
	if err := writeFileAtomicDurable(s.failurePath(jobID), data, 0o644); err != nil {
		return fmt.Errorf("write failure: %w", err)
	}
	return nil
}

// LoadFailure returns the failure record of jobID. ok is false when the job
// has no failure on disk.
func (s *Store) LoadFailure(jobID string) (rec failure.Record, ok bool, err error) {
	if err := ValidateJobID(jobID); err != nil {
		return failure.Record{}, false, err
	}
	if err := readJSONStrict(s.failurePath(jobID), &rec); err != nil {
		if os.IsNotExist(err) {
			return failure.Record{}, false, nil
		}
		return failure.Record{}, false, err
	}
	if err := rec.Validate(); err != nil {
		return failure.Record{}, false, fmt.Errorf("invalid failure on disk: %w", err)
	}
	return rec, true, nil
}

// SaveTrace stores the canonical encoding of tr.
func (s *Store) SaveTrace(jobID string, tr trace.JobTrace) error {
	if err := ValidateJobID(jobID); err != nil {
		return err
	}
	if err := tr.Validate(); err != nil {
		return fmt.Errorf("invalid trace: %w", err)
	}
	data, err := tr.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	if err := ensureDirDurable(s.jobDir(jobID), 0o755); err != nil {
		return fmt.Errorf("ensure job dir: %w", err)
	}
	if err := writeFileAtomicDurable(s.TracePath(jobID), data, 0o644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}

func jsonMarshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func readJSONStrict(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure no trailing junk.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

func ensureDirDurable(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	// Best-effort durability: sync the directory and its parent.
	if err := fsyncDir(dir); err != nil {
		return err
	}
	parent := filepath.Dir(dir)
	if parent != dir {
		if err := fsyncDir(parent); err != nil {
			return err
		}
	}
	return nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

package build

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	sourceName   = "program.cpp"
	artifactName = "program"
)

// Workspace is the job-scoped directory holding generated source and the
// compiled artifact. Each job gets a fresh, uniquely named directory so
// concurrent jobs never share files.
type Workspace struct {
	Dir string
}

// NewWorkspace creates a unique directory under root (os.TempDir() when root
// is empty).
func NewWorkspace(root, jobID string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace root: %w", err)
	}
	dir, err := os.MkdirTemp(root, "job-"+jobID+"-")
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// SourcePath returns the path of the generated source file.
func (w *Workspace) SourcePath() string { return filepath.Join(w.Dir, sourceName) }

// ArtifactPath returns the path of the compiled binary.
func (w *Workspace) ArtifactPath() string { return filepath.Join(w.Dir, artifactName) }

// WriteSource persists the generated source.
func (w *Workspace) WriteSource(source string) error {
	return writeFileAtomic(w.SourcePath(), []byte(source), 0o644)
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	return os.RemoveAll(w.Dir)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
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
	return os.Rename(tmpName, path)
}

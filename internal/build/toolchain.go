package build

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Toolchain describes the external compiler invocation.
//
// The command line is:
//
//	<Command> <OptFlag> [-I dir]... [CompileArgs]... <source> -o <artifact> [LinkArgs]...
//
// The compiler runs inside the job workspace. CompileArgs and LinkArgs are
// passed verbatim, so paths inside them must be absolute.
type Toolchain struct {
	Command     string
	OptFlag     string
	IncludeDirs []string
	CompileArgs []string
	LinkArgs    []string

	// LibraryVersion identifies the build of the linked primitive library.
	// It never reaches the command line; it only separates cache entries.
	LibraryVersion string
}

// DefaultToolchain is g++ at -O2.
func DefaultToolchain() Toolchain {
	return Toolchain{Command: "g++", OptFlag: "-O2"}
}

// Args returns the toolchain arguments for compiling source into artifact.
func (t Toolchain) Args(source, artifact string) []string {
	args := make([]string, 0, 4+2*len(t.IncludeDirs)+len(t.CompileArgs)+len(t.LinkArgs))
	if t.OptFlag != "" {
		args = append(args, t.OptFlag)
	}
	for _, dir := range t.IncludeDirs {
		args = append(args, "-I", dir)
	}
	args = append(args, t.CompileArgs...)
	args = append(args, source, "-o", artifact)
	args = append(args, t.LinkArgs...)
	return args
}

// Absolute returns t with IncludeDirs and a Command that names a path made
// absolute against the current directory. A bare Command is left for PATH
// lookup.
func (t Toolchain) Absolute() (Toolchain, error) {
	out := t
	if strings.ContainsRune(t.Command, filepath.Separator) && !filepath.IsAbs(t.Command) {
		cmd, err := filepath.Abs(t.Command)
		if err != nil {
			return t, fmt.Errorf("resolving toolchain %q: %w", t.Command, err)
		}
		out.Command = cmd
	}
	if len(t.IncludeDirs) > 0 {
		out.IncludeDirs = make([]string, len(t.IncludeDirs))
		for i, dir := range t.IncludeDirs {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return t, fmt.Errorf("resolving include dir %q: %w", dir, err)
			}
			out.IncludeDirs[i] = abs
		}
	}
	return out, nil
}

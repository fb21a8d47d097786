// Package buildtest provides fake toolchains for tests that drive the build
// pipeline without a real C++ compiler.
package buildtest

import (
	"os"
	"path/filepath"
	"testing"
)

// Script writes an executable /bin/sh script with the given body into a
// temporary directory and returns its path.
func Script(t testing.TB, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to write script %s: %v", name, err)
	}
	return path
}

// emitProgram is a compiler body fragment that locates the "-o" argument
// and writes $program there as an executable script.
const emitProgram = `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; shift; fi
  shift
done
if [ -z "$out" ]; then echo "no output file" >&2; exit 2; fi
printf '%s' "$program" > "$out"
chmod +x "$out"
`

// Compiler returns a fake compiler that ignores its input and produces an
// artifact running programBody under /bin/sh. The artifact runs with an
// isolated environment, so programBody should use shell builtins only.
func Compiler(t testing.TB, programBody string) string {
	t.Helper()
	program := "#!/bin/sh\n" + programBody + "\n"
	return Script(t, "fake-cxx", "program='"+program+"'\n"+emitProgram)
}

// EchoResultCompiler returns a fake compiler whose artifact prints the name
// returned by the generated main function, i.e. the token of its
// "return X;" statement.
func EchoResultCompiler(t testing.TB) string {
	t.Helper()
	body := `src=""
for a in "$@"; do
  case "$a" in *.cpp) src="$a" ;; esac
done
result=$(sed -n 's/^    return \(.*\);$/\1/p' "$src")
program="#!/bin/sh
echo $result
"
` + emitProgram
	return Script(t, "fake-cxx", body)
}

// FailingCompiler returns a fake compiler that prints diagnostic to stderr
// and exits with status 1.
func FailingCompiler(t testing.TB, diagnostic string) string {
	t.Helper()
	return Script(t, "fake-cxx", "echo '"+diagnostic+"' >&2\nexit 1\n")
}

// CountingCompiler returns a fake compiler that appends a line to the
// returned counter file on each invocation.
func CountingCompiler(t testing.TB, programBody string) (compiler, counter string) {
	t.Helper()
	counter = filepath.Join(t.TempDir(), "invocations")
	program := "#!/bin/sh\n" + programBody + "\n"
	compiler = Script(t, "fake-cxx", "echo x >> '"+counter+"'\nprogram='"+program+"'\n"+emitProgram)
	return compiler, counter
}

// Invocations returns how many times a CountingCompiler ran.
func Invocations(t testing.TB, counter string) int {
	t.Helper()
	data, err := os.ReadFile(counter)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}

// HeaderCompiler returns a fake compiler that behaves like a real one
// missing a header: it fails unless some -I directory, as seen from the
// compiler's working directory, contains header.
func HeaderCompiler(t testing.TB, header, programBody string) string {
	t.Helper()
	program := "#!/bin/sh\n" + programBody + "\n"
	body := `found=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-I" ] && [ -f "$a/` + header + `" ]; then found="$a"; fi
  prev="$a"
done
if [ -z "$found" ]; then
  echo "program.cpp:1:10: fatal error: ` + header + `: No such file or directory" >&2
  exit 1
fi
program='` + program + `'
` + emitProgram
	return Script(t, "fake-cxx", body)
}

package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fsscompiler/internal/build/buildtest"
	icl "fsscompiler/internal/cli"
)

const chainDoc = `{"functions":[{"name":"k","function":"KeyGen","parameters":{"seed":"7","bits":"16"}},{"name":"e","function":"Eval","parameters":{"key":"k","x":"3"}}]}`

func writeDoc(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "doc.json")
	if err := os.WriteFile(path, []byte(chainDoc), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	return path
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return b
}

func runCLI(t *testing.T, args []string) (icl.CLIResult, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	p := &icl.Program{Stdin: strings.NewReader(""), Stdout: &stdout, Stderr: &stderr}
	res, err := p.Run(context.Background(), args)
	if err != nil {
		t.Fatalf("run err: %v (stderr: %s)", err, stderr.String())
	}
	return res, stdout.String()
}

func TestDeterministicInvocation_IdenticalRunsIdenticalOutput(t *testing.T) {
	workDir := t.TempDir()
	docPath := writeDoc(t, workDir)
	compiler := buildtest.EchoResultCompiler(t)

	gen1 := filepath.Join(workDir, "gen1.cpp")
	gen2 := filepath.Join(workDir, "gen2.cpp")
	trace1 := filepath.Join(workDir, "trace1.json")
	trace2 := filepath.Join(workDir, "trace2.json")

	args := func(tracePath string) []string {
		return []string{"compile", docPath,
			"--toolchain", compiler,
			"--workspace-root", filepath.Join(workDir, "jobs"),
			"--log-level", "error",
			"--trace", tracePath,
		}
	}

	res1, out1 := runCLI(t, args(trace1))
	res2, out2 := runCLI(t, args(trace2))
	if res1.ExitCode != icl.ExitSuccess || res2.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit codes: %d %d", res1.ExitCode, res2.ExitCode)
	}
	if out1 != out2 || out1 != "e\n" {
		t.Fatalf("stdout differs or is wrong: %q vs %q", out1, out2)
	}
	if string(readFile(t, trace1)) != string(readFile(t, trace2)) {
		t.Fatalf("trace differs across identical runs")
	}

	_, src1 := runCLI(t, []string{"generate", docPath})
	_, src2 := runCLI(t, []string{"generate", docPath})
	if err := os.WriteFile(gen1, []byte(src1), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(gen2, []byte(src2), 0o644); err != nil {
		t.Fatal(err)
	}
	if string(readFile(t, gen1)) != string(readFile(t, gen2)) {
		t.Fatalf("generated source differs across identical runs")
	}
	if !strings.Contains(src1, "    auto k = KeyGen(16, 7);\n    auto e = Eval(k, 3);\n    return e;\n") {
		t.Fatalf("unexpected generated source:\n%s", src1)
	}
}

func TestExitCodeStability_FailingProgramIsStable(t *testing.T) {
	workDir := t.TempDir()
	docPath := writeDoc(t, workDir)
	compiler := buildtest.Compiler(t, "exit 9")

	args := []string{"compile", docPath, "--toolchain", compiler, "--workspace-root", workDir}

	res1, _ := runCLI(t, args)
	res2, _ := runCLI(t, args)
	if res1.ExitCode != icl.ExitJobFailure || res2.ExitCode != icl.ExitJobFailure {
		t.Fatalf("expected stable job failure exit code; got %d and %d", res1.ExitCode, res2.ExitCode)
	}
	if res1.Job.ExitCode != 9 {
		t.Fatalf("expected program exit status 9, got %d", res1.Job.ExitCode)
	}
}

func TestCachePersistence_SecondRunSkipsToolchain(t *testing.T) {
	workDir := t.TempDir()
	docPath := writeDoc(t, workDir)
	compiler, counter := buildtest.CountingCompiler(t, "echo cached")
	tracePath := filepath.Join(workDir, "trace.json")

	args := []string{"compile", docPath,
		"--toolchain", compiler,
		"--workspace-root", filepath.Join(workDir, "jobs"),
		"--cache-dir", filepath.Join(workDir, "cache"),
		"--trace", tracePath,
	}

	res1, out1 := runCLI(t, args)
	if res1.ExitCode != icl.ExitSuccess {
		t.Fatalf("run1 exit: %d", res1.ExitCode)
	}
	if strings.Contains(string(readFile(t, tracePath)), "CacheHit") {
		t.Fatalf("first run must not hit the cache")
	}

	res2, out2 := runCLI(t, args)
	if res2.ExitCode != icl.ExitSuccess {
		t.Fatalf("run2 exit: %d", res2.ExitCode)
	}
	if out1 != out2 {
		t.Fatalf("cached artifact produced different output: %q vs %q", out1, out2)
	}
	if n := buildtest.Invocations(t, counter); n != 1 {
		t.Fatalf("expected toolchain to run once, ran %d times", n)
	}
	if !strings.Contains(string(readFile(t, tracePath)), "CacheHit") {
		t.Fatalf("expected CacheHit in second trace")
	}
}

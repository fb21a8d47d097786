package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"fsscompiler/internal/failure"
	"fsscompiler/internal/logger"
	"fsscompiler/internal/trace"
)

// Default process bounds.
const (
	DefaultCompileTimeout = 2 * time.Minute
	DefaultRunTimeout     = 30 * time.Second
)

// Outcome is the result of one Run. It is returned for failed jobs too.
type Outcome struct {
	State    State
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	CacheHit bool

	// Workspace is the job directory. It only exists on disk after Run
	// returns when KeepWorkspace is set.
	Workspace string

	Trace trace.JobTrace
}

// Driver writes generated source into a job workspace, compiles it with the
// external toolchain and runs the artifact.
type Driver struct {
	Toolchain      Toolchain
	WorkspaceRoot  string
	KeepWorkspace  bool
	CompileTimeout time.Duration
	RunTimeout     time.Duration

	// RunEnv is the complete environment of the compiled program.
	RunEnv map[string]string

	// Cache is optional.
	Cache ArtifactCache

	Logger  *zap.Logger
	Metrics *Metrics
}

// NewDriver returns a Driver with default toolchain and timeouts.
func NewDriver(log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		Toolchain:      DefaultToolchain(),
		CompileTimeout: DefaultCompileTimeout,
		RunTimeout:     DefaultRunTimeout,
		Logger:         log,
	}
}

// job is the per-Run state. It is never shared between goroutines.
type job struct {
	d     *Driver
	id    string
	log   *zap.Logger
	state State
	rec   *trace.Recorder
	out   *Outcome
}

// Run drives source through GENERATED -> WRITTEN -> COMPILED -> EXECUTED ->
// SUCCEEDED. The first failing step moves the job to FAILED and its typed
// failure error is returned alongside the Outcome. No step is retried.
//
// A logger carried by ctx is used as is; otherwise Logger is tagged with
// the job id.
func (d *Driver) Run(ctx context.Context, jobID, source string) (*Outcome, error) {
	log := logger.FromContext(ctx)
	if log == nil {
		log = d.Logger
		if log == nil {
			log = zap.NewNop()
		}
		log = log.With(zap.String("job_id", jobID))
	}
	j := &job{
		d:     d,
		id:    jobID,
		log:   log,
		state: StateGenerated,
		rec:   trace.NewRecorder(),
		out:   &Outcome{State: StateGenerated},
	}
	j.record(StateGenerated, "")

	err := j.run(ctx, source)
	if err != nil {
		j.fail(err)
	}
	j.out.State = j.state
	j.out.Trace = j.rec.Trace(trace.SourceHash(source))
	d.observeJob(j.state, err)
	return j.out, err
}

func (j *job) run(ctx context.Context, source string) (err error) {
	ws, err := NewWorkspace(j.d.WorkspaceRoot, j.id)
	if err != nil {
		return &failure.IOError{Code: failure.CodeWorkspaceCreate, Message: "creating job workspace", Cause: err}
	}
	j.out.Workspace = ws.Dir
	if !j.d.KeepWorkspace {
		defer func() {
			if rmErr := ws.Remove(); rmErr != nil {
				j.log.Warn("Failed to remove workspace", zap.String("dir", ws.Dir), zap.Error(rmErr))
				if err != nil {
					err = multierr.Append(err, rmErr)
				}
			}
		}()
	}

	start := time.Now()
	if err := ws.WriteSource(source); err != nil {
		return &failure.IOError{Code: failure.CodeWorkspaceWrite, Message: "writing generated source", Cause: err}
	}
	j.d.observeStage("write", start)
	if err := j.advance(StateWritten); err != nil {
		return err
	}

	start = time.Now()
	if err := j.compile(ctx, ws, source); err != nil {
		return err
	}
	j.d.observeStage("compile", start)
	if err := j.advance(StateCompiled); err != nil {
		return err
	}

	start = time.Now()
	res, err := j.execute(ctx, ws)
	if err != nil {
		return err
	}
	j.d.observeStage("execute", start)
	if err := j.advance(StateExecuted); err != nil {
		return err
	}

	j.out.Stdout = res.Stdout
	j.out.Stderr = res.Stderr
	j.out.ExitCode = res.ExitCode
	return j.advance(StateSucceeded)
}

func (j *job) compile(ctx context.Context, ws *Workspace, source string) error {
	tc := j.d.Toolchain
	var key CacheKey
	if j.d.Cache != nil {
		key = ComputeCacheKey(tc, source)
		artifact, ok, err := j.d.Cache.Get(key)
		if err != nil {
			j.log.Warn("Artifact cache lookup failed", zap.Error(err))
		}
		if ok {
			if err := os.WriteFile(ws.ArtifactPath(), artifact, 0o755); err != nil {
				return &failure.IOError{Code: failure.CodeWorkspaceWrite, Message: "restoring cached artifact", Cause: err}
			}
			j.d.observeCache("hit")
			j.out.CacheHit = true
			trace.SafeRecord(j.rec, trace.Event{Kind: trace.EventCacheHit})
			j.log.Debug("Artifact restored from cache", zap.String("key", string(key)))
			return nil
		}
		j.d.observeCache("miss")
	}

	cctx, cancel := withTimeout(ctx, j.d.CompileTimeout)
	defer cancel()

	j.log.Debug("Compiling", zap.String("toolchain", tc.Command), zap.Strings("args", tc.Args(sourceName, artifactName)))
	res, err := runProcess(cctx, processSpec{
		Path: tc.Command,
		Args: tc.Args(sourceName, artifactName),
		Dir:  ws.Dir,
	})
	if err != nil {
		var se *errStart
		if errors.As(err, &se) {
			return &failure.CompileError{
				Code:    failure.CodeToolchainUnavailable,
				Message: fmt.Sprintf("toolchain %q could not be started", tc.Command),
				Cause:   err,
			}
		}
		code, msg := interruption(ctx, cctx, "compilation")
		return &failure.CompileError{Code: code, Message: msg, Cause: err}
	}
	if res.ExitCode != 0 {
		diag := string(res.Stderr)
		if strings.TrimSpace(diag) == "" {
			diag = string(res.Stdout)
		}
		return &failure.CompileError{
			Code:       failure.CodeNonZeroExit,
			Message:    fmt.Sprintf("toolchain exited with status %d", res.ExitCode),
			Diagnostic: diag,
			ExitCode:   res.ExitCode,
		}
	}

	artifact, err := os.ReadFile(ws.ArtifactPath())
	if err != nil {
		return &failure.CompileError{
			Code:    failure.CodeArtifactUnavailable,
			Message: "toolchain succeeded but produced no artifact",
			Cause:   err,
		}
	}
	if j.d.Cache != nil {
		if err := j.d.Cache.Put(key, artifact); err != nil {
			j.log.Warn("Failed to store artifact in cache", zap.Error(err))
		} else {
			trace.SafeRecord(j.rec, trace.Event{Kind: trace.EventCacheStored})
		}
	}
	return nil
}

func (j *job) execute(ctx context.Context, ws *Workspace) (*processResult, error) {
	rctx, cancel := withTimeout(ctx, j.d.RunTimeout)
	defer cancel()

	res, err := runProcess(rctx, processSpec{
		Path: ws.ArtifactPath(),
		Dir:  ws.Dir,
		Env:  isolatedEnv(j.d.RunEnv),
	})
	if err != nil {
		var se *errStart
		if errors.As(err, &se) {
			return nil, &failure.RuntimeError{
				Code:    failure.CodeArtifactUnavailable,
				Message: "compiled program could not be started",
				Cause:   err,
			}
		}
		code, msg := interruption(ctx, rctx, "execution")
		return nil, &failure.RuntimeError{Code: code, Message: msg, Cause: err}
	}
	if res.ExitCode != 0 {
		j.out.Stdout = res.Stdout
		j.out.Stderr = res.Stderr
		j.out.ExitCode = res.ExitCode
		return nil, &failure.RuntimeError{
			Code:       failure.CodeNonZeroExit,
			Message:    fmt.Sprintf("program exited with status %d", res.ExitCode),
			Diagnostic: string(res.Stderr),
			ExitCode:   res.ExitCode,
		}
	}
	return res, nil
}

func (j *job) advance(to State) error {
	next, err := Transition(j.state, j.state, to)
	if err != nil {
		return err
	}
	j.state = next
	j.record(next, "")
	return nil
}

func (j *job) fail(cause error) {
	reason := "internal"
	if rec, err := failure.Classify(cause); err == nil {
		reason = rec.Code
	}
	if IsTerminal(j.state) {
		return
	}
	j.state = StateFailed
	j.record(StateFailed, reason)
	j.log.Info("Job failed", zap.String("reason", reason), zap.Error(cause))
}

func (j *job) record(s State, reason string) {
	trace.SafeRecord(j.rec, trace.Event{Kind: trace.EventStateEntered, State: string(s), Reason: reason})
	j.log.Debug("State entered", zap.String("state", string(s)))
}

// interruption maps a process context error onto a failure code. parent is
// the caller's context; bounded is the step's timeout context.
func interruption(parent, bounded context.Context, step string) (code, message string) {
	if parent.Err() != nil {
		return failure.CodeCancelled, step + " cancelled"
	}
	if errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return failure.CodeTimeout, step + " timed out"
	}
	return failure.CodeCancelled, step + " interrupted"
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// ToolchainAvailable reports whether the toolchain command resolves on PATH.
func (d *Driver) ToolchainAvailable() bool {
	_, err := exec.LookPath(d.Toolchain.Command)
	return err == nil
}

func (d *Driver) observeStage(stage string, start time.Time) {
	if d.Metrics == nil {
		return
	}
	d.Metrics.StageDur.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (d *Driver) observeCache(result string) {
	if d.Metrics == nil {
		return
	}
	d.Metrics.CacheLookup.WithLabelValues(result).Inc()
}

func (d *Driver) observeJob(s State, err error) {
	if d.Metrics == nil {
		return
	}
	code := ""
	if err != nil {
		if rec, cerr := failure.Classify(err); cerr == nil {
			code = rec.Code
		}
	}
	d.Metrics.Jobs.WithLabelValues(string(s), code).Inc()
}

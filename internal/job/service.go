// Package job runs compile requests end to end: load, resolve, generate,
// build and execute. Each request is an independent job with its own id and
// workspace.
package job

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"fsscompiler/internal/build"
	"fsscompiler/internal/codegen"
	"fsscompiler/internal/failure"
	"fsscompiler/internal/graph"
	"fsscompiler/internal/logger"
	"fsscompiler/internal/resolve"
)

// DefaultMaxConcurrentJobs bounds jobs when Config leaves it unset.
const DefaultMaxConcurrentJobs = 4

// Runner builds and executes generated source. *build.Driver implements it.
type Runner interface {
	Run(ctx context.Context, jobID, source string) (*build.Outcome, error)
}

var _ Runner = (*build.Driver)(nil)

// Archiver persists finished jobs.
type Archiver interface {
	Archive(res *Result, started, finished time.Time) error
}

// Config configures a Service.
type Config struct {
	Policy            resolve.ReferencePolicy
	MaxConcurrentJobs int64
}

// Service executes compile jobs with bounded concurrency.
type Service struct {
	runner   Runner
	resolver *resolve.Resolver
	sem      *semaphore.Weighted
	log      *zap.Logger
	metrics  *serviceMetrics

	// NewID generates job ids.
	NewID func() string

	// Archive is optional. Archiving failures are logged and never change
	// the job result.
	Archive Archiver
}

// NewService returns a Service that hands generated programs to runner.
func NewService(runner Runner, c Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	n := c.MaxConcurrentJobs
	if n <= 0 {
		n = DefaultMaxConcurrentJobs
	}
	return &Service{
		runner:   runner,
		resolver: resolve.NewResolver(c.Policy),
		sem:      semaphore.NewWeighted(n),
		log:      log,
		metrics:  newServiceMetrics(),
		NewID:    uuid.NewString,
	}
}

// PrometheusCollectors returns the service collectors.
func (s *Service) PrometheusCollectors() []prometheus.Collector {
	return s.metrics.PrometheusCollectors()
}

// Generate translates doc into program source without building it.
func (s *Service) Generate(doc []byte) (string, *resolve.Environment, error) {
	g, err := graph.Load(doc)
	if err != nil {
		return "", nil, err
	}
	calls, env, err := s.resolver.Resolve(g)
	if err != nil {
		return "", nil, err
	}
	return codegen.Generate(calls), env, nil
}

// Compile runs one job for doc. It always returns a Result; failures are
// reported in Result.Err and Result.Failure, never as a panic.
//
// Compile waits for a job slot until ctx is done. A job that is never
// admitted fails with an *AdmissionError.
func (s *Service) Compile(ctx context.Context, doc []byte) (res *Result) {
	id := s.NewID()
	log := s.log.With(zap.String("job_id", id))
	start := time.Now()

	res = &Result{JobID: id}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			res = &Result{JobID: id, Source: res.Source, Trace: res.Trace}
			s.finish(res, fmt.Errorf("job panicked: %v", r), failure.CodePanic)
		}
		end := time.Now()
		s.metrics.duration.WithLabelValues(string(res.Kind)).Observe(end.Sub(start).Seconds())
		log.Info("Job finished",
			zap.String("kind", string(res.Kind)),
			zap.Duration("duration", end.Sub(start)),
		)
		if s.Archive != nil {
			if err := s.Archive.Archive(res, start, end); err != nil {
				log.Warn("Failed to archive job", zap.Error(err))
			}
		}
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.finish(res, &AdmissionError{Cause: err}, "")
		return res
	}
	defer s.sem.Release(1)
	s.metrics.active.Inc()
	defer s.metrics.active.Dec()

	source, env, err := s.Generate(doc)
	if err != nil {
		s.finish(res, err, "")
		return res
	}
	res.Source = source
	log.Debug("Generated program",
		zap.Int("bindings", env.Len()),
		zap.Int("rebinds", env.Rebinds()),
	)

	out, err := s.runner.Run(logger.NewContextWithLogger(ctx, log), id, source)
	if out != nil {
		tr := out.Trace
		res.Trace = &tr
		res.ExitCode = out.ExitCode
	}
	if err != nil {
		s.finish(res, err, "")
		return res
	}
	res.Payload = string(out.Stdout)
	s.finish(res, nil, "")
	return res
}

// finish fills in the terminal fields of res. code overrides the
// classified failure code when non-empty.
func (s *Service) finish(res *Result, err error, code string) {
	if err == nil {
		res.Kind = Succeeded
		s.metrics.requests.WithLabelValues(string(Succeeded), "").Inc()
		return
	}

	res.Kind = Failed
	res.Err = err
	rec, cerr := failure.Classify(err)
	if cerr != nil {
		rec = failure.Record{Class: failure.ClassInternal, Code: "UnknownError", Message: err.Error()}
	}
	if code != "" {
		rec.Code = code
	}
	res.Failure = &rec
	res.Payload = rec.Text()
	if rec.ExitCode != nil {
		res.ExitCode = *rec.ExitCode
	}
	s.metrics.requests.WithLabelValues(string(Failed), string(rec.Class)).Inc()
}

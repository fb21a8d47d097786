// Package cli implements the fsscompiler command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"fsscompiler/internal/job"
	"fsscompiler/internal/server"
	"fsscompiler/internal/trace"
)

// envPrefix prefixes the environment variable of every option:
// --compile-timeout is FSSC_COMPILE_TIMEOUT.
const envPrefix = "FSSC"

// CLIResult is the outcome of one invocation.
type CLIResult struct {
	ExitCode int
	Job      *job.Result
}

// Program is one fsscompiler invocation bound to its streams.
type Program struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	v      *viper.Viper
	cfg    Config
	opts   []Opt
	result CLIResult
	ran    bool
}

// NewProgram returns a Program connected to standard in/out/err.
func NewProgram() *Program {
	return &Program{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run is a high-level CLI entrypoint suitable for black-box tests.
// It accepts the argument slice (excluding argv[0]) and returns the semantic
// exit code plus any error.
func Run(ctx context.Context, args []string) (CLIResult, error) {
	return NewProgram().Run(ctx, args)
}

// Run executes args against p's streams.
func (p *Program) Run(ctx context.Context, args []string) (CLIResult, error) {
	p.result = CLIResult{ExitCode: ExitInternalError}
	p.ran = false

	cmd := p.newCommand()
	cmd.SetArgs(args)
	cmd.SetIn(p.Stdin)
	cmd.SetOut(p.Stdout)
	cmd.SetErr(p.Stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil && !p.ran {
		// Cobra rejected the command line before any command ran.
		var invErr *InvocationError
		if !errors.As(err, &invErr) {
			err = &InvocationError{ExitCode: ExitInvalidInvocation, Message: err.Error()}
		}
	}
	if err != nil {
		var invErr *InvocationError
		if errors.As(err, &invErr) {
			p.result.ExitCode = invErr.ExitCode
		}
	} else if !p.ran {
		// Help and usage output.
		p.result.ExitCode = ExitSuccess
	}
	return p.result, err
}

func (p *Program) newCommand() *cobra.Command {
	p.v = viper.New()
	p.v.SetEnvPrefix(envPrefix)
	p.v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	p.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	root := &cobra.Command{
		Use:           "fsscompiler",
		Short:         "Translate function-chain documents into C++ programs, build and run them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return p.loadConfig()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	p.cfg = Config{}
	p.opts = p.cfg.options()
	BindOptions(p.v, root.PersistentFlags(), p.opts)

	root.AddCommand(
		p.newCompileCommand(),
		p.newGenerateCommand(),
		p.newServeCommand(),
		p.newJobsCommand(),
	)
	return root
}

// loadConfig resolves every option, reading the config file first when one
// is named.
func (p *Program) loadConfig() error {
	applyOptions(p.v, p.opts)
	if p.cfg.ConfigFile != "" {
		p.v.SetConfigFile(p.cfg.ConfigFile)
		if err := p.v.ReadInConfig(); err != nil {
			return configErrorf("read config %s: %v", p.cfg.ConfigFile, err)
		}
		applyOptions(p.v, p.opts)
	}
	return nil
}

func documentArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
		return invalidInvocationf("%v", err)
	}
	return nil
}

func (p *Program) newCompileCommand() *cobra.Command {
	var tracePath string
	cmd := &cobra.Command{
		Use:   "compile [file|-]",
		Short: "Generate, build and run the program described by a document",
		Args:  documentArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.ran = true
			return p.compile(cmd.Context(), args, tracePath)
		},
	}
	cmd.Flags().StringVar(&tracePath, "trace", "", "write the job trace as canonical JSON to this path")
	return cmd
}

func (p *Program) compile(ctx context.Context, args []string, tracePath string) error {
	doc, err := readDocument(args, p.Stdin)
	if err != nil {
		return err
	}
	log, err := p.cfg.newLogger(p.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	d, err := p.cfg.newDriver(log)
	if err != nil {
		return err
	}
	defer closeDriver(d, log)
	svc, err := p.cfg.newService(d, log)
	if err != nil {
		return err
	}

	res := svc.Compile(ctx, doc)
	p.result.Job = res

	if tracePath != "" && res.Trace != nil {
		if err := writeTrace(tracePath, res.Trace); err != nil {
			p.result.ExitCode = ExitInternalError
			return err
		}
	}

	p.result.ExitCode = jobExitCode(res)
	if res.OK() {
		fmt.Fprint(p.Stdout, res.Payload)
		return nil
	}
	fmt.Fprintln(p.Stderr, strings.TrimRight(res.Payload, "\n"))
	return nil
}

func writeTrace(path string, tr *trace.JobTrace) error {
	b, err := tr.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}

func (p *Program) newGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [file|-]",
		Short: "Print the C++ program generated from a document without building it",
		Args:  documentArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.ran = true
			return p.generate(args)
		},
	}
}

func (p *Program) generate(args []string) error {
	doc, err := readDocument(args, p.Stdin)
	if err != nil {
		return err
	}
	log, err := p.cfg.newLogger(p.Stderr)
	if err != nil {
		return err
	}
	svc, err := p.cfg.newService(nil, log)
	if err != nil {
		return err
	}

	// Generation never reaches the runner.
	source, _, err := svc.Generate(doc)
	if err != nil {
		p.result.ExitCode = ExitJobFailure
		fmt.Fprintln(p.Stderr, err)
		return nil
	}
	fmt.Fprint(p.Stdout, source)
	p.result.ExitCode = ExitSuccess
	return nil
}

func (p *Program) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the compile API over HTTP",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return invalidInvocationf("%v", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			p.ran = true
			return p.serve(cmd.Context())
		},
	}
}

func (p *Program) serve(ctx context.Context) error {
	log, err := p.cfg.newLogger(p.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	d, err := p.cfg.newDriver(log)
	if err != nil {
		return err
	}
	defer closeDriver(d, log)
	svc, err := p.cfg.newService(d, log)
	if err != nil {
		return err
	}
	if !d.ToolchainAvailable() {
		log.Warn("Toolchain not found on PATH; compile requests will fail", zap.String("toolchain", d.Toolchain.Command))
	}

	reg := prometheus.NewRegistry()
	collectorsList := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	collectorsList = append(collectorsList, d.Metrics.PrometheusCollectors()...)
	collectorsList = append(collectorsList, svc.PrometheusCollectors()...)
	for _, c := range collectorsList {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	h, err := server.NewHandler(log.With(zap.String("service", "http")), svc, reg, reg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", p.cfg.HTTPBindAddress)
	if err != nil {
		return configErrorf("listen on %s: %v", p.cfg.HTTPBindAddress, err)
	}
	log.Info("Starting fsscompiler",
		zap.String("toolchain", d.Toolchain.Command),
		zap.Strings("include_dirs", d.Toolchain.IncludeDirs),
		zap.Int("max_concurrent_jobs", p.cfg.MaxConcurrentJobs),
	)

	if err := server.Serve(ctx, log, ln, h); err != nil {
		return err
	}
	p.result.ExitCode = ExitSuccess
	return nil
}

package cli

import (
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fsscompiler/internal/build"
	"fsscompiler/internal/job"
	"fsscompiler/internal/jobstore"
	"fsscompiler/internal/logger"
	"fsscompiler/internal/resolve"
)

// Config is the effective configuration of one invocation.
type Config struct {
	ConfigFile string

	Toolchain   string
	OptFlag     string
	IncludeDirs []string
	CompileArgs []string
	LinkArgs    []string

	WorkspaceRoot  string
	KeepWorkspace  bool
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	RunEnv         []string
	CacheDir       string
	CacheDB        string
	LibraryVersion string
	RecordDir      string

	StrictReferences  bool
	MaxConcurrentJobs int

	LogLevel        string
	LogFormat       string
	HTTPBindAddress string
}

func (c *Config) options() []Opt {
	return []Opt{
		{
			DestP: &c.ConfigFile,
			Flag:  "config",
			Desc:  "path to a toml, yaml or json config file",
		},
		{
			DestP:   &c.Toolchain,
			Flag:    "toolchain",
			Default: "g++",
			Desc:    "C++ compiler command",
		},
		{
			DestP:   &c.OptFlag,
			Flag:    "opt-flag",
			Default: "-O2",
			Desc:    "optimization flag passed to the compiler",
		},
		{
			DestP: &c.IncludeDirs,
			Flag:  "include-dir",
			Desc:  "header search directory passed as -I (repeatable)",
		},
		{
			DestP: &c.CompileArgs,
			Flag:  "compile-arg",
			Desc:  "extra compiler argument placed before the source file; runs in the job workspace, so use absolute paths (repeatable)",
		},
		{
			DestP: &c.LinkArgs,
			Flag:  "link-arg",
			Desc:  "extra argument placed after the output file, e.g. -lcrypto; use absolute paths (repeatable)",
		},
		{
			DestP: &c.WorkspaceRoot,
			Flag:  "workspace-root",
			Desc:  "directory holding job workspaces (default: system temp dir)",
		},
		{
			DestP:   &c.KeepWorkspace,
			Flag:    "keep-workspace",
			Default: false,
			Desc:    "keep job workspaces after the job ends",
		},
		{
			DestP:   &c.CompileTimeout,
			Flag:    "compile-timeout",
			Default: build.DefaultCompileTimeout,
			Desc:    "maximum time for one compilation",
		},
		{
			DestP:   &c.RunTimeout,
			Flag:    "run-timeout",
			Default: build.DefaultRunTimeout,
			Desc:    "maximum time for one program execution",
		},
		{
			DestP: &c.RunEnv,
			Flag:  "run-env",
			Desc:  "KEY=VALUE visible to the compiled program; nothing else is (repeatable)",
		},
		{
			DestP: &c.CacheDir,
			Flag:  "cache-dir",
			Desc:  "directory for cached artifacts (disabled when empty); keyed by include-dir paths, not contents, so set --library-version when the library is rebuilt",
		},
		{
			DestP: &c.CacheDB,
			Flag:  "cache-db",
			Desc:  "boltdb file for cached artifacts; excludes --cache-dir (same keying as --cache-dir)",
		},
		{
			DestP: &c.LibraryVersion,
			Flag:  "library-version",
			Desc:  "version of the primitive library build; part of the artifact cache key",
		},
		{
			DestP: &c.RecordDir,
			Flag:  "record-dir",
			Desc:  "directory where finished jobs are archived (disabled when empty)",
		},
		{
			DestP:   &c.StrictReferences,
			Flag:    "strict-references",
			Default: false,
			Desc:    "reject identifiers that no earlier call declares",
		},
		{
			DestP:   &c.MaxConcurrentJobs,
			Flag:    "max-concurrent-jobs",
			Default: job.DefaultMaxConcurrentJobs,
			Desc:    "maximum number of jobs running at once",
		},
		{
			DestP:   &c.LogLevel,
			Flag:    "log-level",
			Default: zapcore.InfoLevel.String(),
			Desc:    "supported log levels are debug, info, warn, and error",
		},
		{
			DestP:   &c.LogFormat,
			Flag:    "log-format",
			Default: logger.FormatConsole,
			Desc:    "supported log formats are console and json",
		},
		{
			DestP:   &c.HTTPBindAddress,
			Flag:    "http-bind-address",
			Default: ":8080",
			Desc:    "bind address for the HTTP API",
		},
	}
}

// runEnv parses the KEY=VALUE entries of RunEnv.
func (c *Config) runEnv() (map[string]string, error) {
	env := make(map[string]string, len(c.RunEnv))
	for _, kv := range c.RunEnv {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, configErrorf("invalid --run-env entry %q (expected KEY=VALUE)", kv)
		}
		env[key] = value
	}
	return env, nil
}

func (c *Config) newLogger(w io.Writer) (*zap.Logger, error) {
	lvl, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, configErrorf("%v", err)
	}
	lc := logger.Config{Format: c.LogFormat, Level: lvl}
	log, err := lc.New(w)
	if err != nil {
		return nil, configErrorf("%v", err)
	}
	return log, nil
}

func (c *Config) newDriver(log *zap.Logger) (*build.Driver, error) {
	if strings.TrimSpace(c.Toolchain) == "" {
		return nil, configErrorf("--toolchain must not be empty")
	}
	if c.CompileTimeout < 0 || c.RunTimeout < 0 {
		return nil, configErrorf("timeouts must not be negative")
	}
	env, err := c.runEnv()
	if err != nil {
		return nil, err
	}

	tc, err := build.Toolchain{
		Command:        c.Toolchain,
		OptFlag:        c.OptFlag,
		IncludeDirs:    c.IncludeDirs,
		CompileArgs:    c.CompileArgs,
		LinkArgs:       c.LinkArgs,
		LibraryVersion: c.LibraryVersion,
	}.Absolute()
	if err != nil {
		return nil, configErrorf("%v", err)
	}
	d := build.NewDriver(log)
	d.Toolchain = tc
	d.WorkspaceRoot = c.WorkspaceRoot
	d.KeepWorkspace = c.KeepWorkspace
	d.CompileTimeout = c.CompileTimeout
	d.RunTimeout = c.RunTimeout
	d.RunEnv = env
	d.Metrics = build.NewMetrics()
	switch {
	case c.CacheDir != "" && c.CacheDB != "":
		return nil, configErrorf("--cache-dir and --cache-db are mutually exclusive")
	case c.CacheDir != "":
		d.Cache = build.NewFileCache(c.CacheDir)
	case c.CacheDB != "":
		bc := build.NewBoltCache(c.CacheDB)
		bc.WithLogger(log)
		if err := bc.Open(); err != nil {
			return nil, configErrorf("--cache-db: %v", err)
		}
		d.Cache = bc
	}
	return d, nil
}

// closeDriver releases the driver's cache when it holds resources.
func closeDriver(d *build.Driver, log *zap.Logger) {
	if c, ok := d.Cache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn("Failed to close artifact cache", zap.Error(err))
		}
	}
}

func (c *Config) newService(d *build.Driver, log *zap.Logger) (*job.Service, error) {
	if c.MaxConcurrentJobs <= 0 {
		return nil, configErrorf("--max-concurrent-jobs must be positive (got %d)", c.MaxConcurrentJobs)
	}
	policy := resolve.PolicyPassThrough
	if c.StrictReferences {
		policy = resolve.PolicyStrict
	}
	svc := job.NewService(d, job.Config{
		Policy:            policy,
		MaxConcurrentJobs: int64(c.MaxConcurrentJobs),
	}, log)
	if c.RecordDir != "" {
		store, err := c.newStore()
		if err != nil {
			return nil, err
		}
		svc.Archive = store
	}
	return svc, nil
}

func (c *Config) newStore() (*jobstore.Store, error) {
	store, err := jobstore.NewStore(c.RecordDir)
	if err != nil {
		return nil, configErrorf("--record-dir: %v", err)
	}
	return store, nil
}


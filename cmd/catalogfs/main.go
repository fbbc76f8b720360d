// catalogfs exposes a hierarchical object catalog as a filesystem.
//
// The catalog engine runs in-process on the configured metadata and
// content stores; every command opens a session on it, runs, and tears
// the session down. With the default memory stores nothing outlives the
// process, so one-shot commands are mostly useful with badger and
// filesystem (or s3) backends.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/catalog/local"
	"github.com/marmos91/catalogfs/pkg/config"
	"github.com/marmos91/catalogfs/pkg/metrics"
	"github.com/marmos91/catalogfs/pkg/vfs"
)

const usage = `catalogfs - catalog filesystem bridge

Usage:
  catalogfs [global flags] <command> [flags] [args]

Commands:
  init              Write a default configuration file
  password          Store the login password in the OS keyring (read from stdin)
  stat PATH         Show an entity's metadata and session id
  ls PATH           List a collection, or names matching a glob pattern
  walk PATH         Read a collection through a directory stream
  mkdir PATH        Create a collection
  rmdir PATH        Remove an empty collection
  put FILE PATH     Upload a local file as a data object
  gc                Delete stored content no entity references
  mount             Mount the catalog with FUSE until interrupted

Global flags:
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the flags accepted before the command name.
type globalOptions struct {
	configPath string
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	var opts globalOptions

	flagSet := pflag.NewFlagSet("catalogfs", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(stdout)
	flagSet.StringVar(&opts.configPath, "config", "", "path to config file (default: "+config.GetDefaultConfigPath()+")")
	flagSet.String("log-level", "", "override logging.level (DEBUG, INFO, WARN, ERROR)")
	flagSet.String("log-format", "", "override logging.format (text, json)")
	flagSet.Usage = func() {
		_, _ = fmt.Fprint(stdout, usage)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return fmt.Errorf("missing command")
	}

	command, commandArgs := rest[0], rest[1:]
	switch command {
	case "init":
		return runInit(commandArgs, stdout)
	case "help":
		flagSet.Usage()
		return nil
	}

	cfg, err := config.LoadWithFlags(opts.configPath, flagSet, map[string]string{
		"logging.level":  "log-level",
		"logging.format": "log-format",
	})
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return err
	}
	defer logger.Close()

	switch command {
	case "password":
		return runPassword(cfg, stdin, stdout)
	case "stat":
		return withSession(ctx, cfg, nil, func(s *vfs.Session) error { return runStat(ctx, s, commandArgs, stdout) })
	case "ls":
		return withSession(ctx, cfg, nil, func(s *vfs.Session) error { return runList(ctx, s, commandArgs, stdout) })
	case "walk":
		return withSession(ctx, cfg, nil, func(s *vfs.Session) error { return runWalk(ctx, s, commandArgs, stdout) })
	case "mkdir":
		return withSession(ctx, cfg, nil, func(s *vfs.Session) error { return runMkdir(ctx, s, commandArgs) })
	case "rmdir":
		return withSession(ctx, cfg, nil, func(s *vfs.Session) error { return runRmdir(ctx, s, commandArgs) })
	case "put":
		return withSession(ctx, cfg, nil, func(s *vfs.Session) error { return runPut(ctx, s, commandArgs, stdout) })
	case "gc":
		return runGC(ctx, cfg, commandArgs, stdout)
	case "mount":
		return runMount(ctx, cfg, commandArgs)
	default:
		flagSet.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// withEngine starts the catalog engine, runs fn and closes the engine.
func withEngine(ctx context.Context, cfg *config.Config, fn func(*local.Engine) error) error {
	engine, err := config.CreateCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEngine(engine)

	return fn(engine)
}

// withSession starts the engine, connects a session and runs fn. The
// session is destroyed and the engine closed afterwards, whatever fn
// returns. When m is non-nil its session metrics are attached.
func withSession(ctx context.Context, cfg *config.Config, m metrics.SessionMetrics, fn func(*vfs.Session) error) error {
	return withEngine(ctx, cfg, func(engine *local.Engine) error {
		return connect(ctx, engine, cfg, m, fn)
	})
}

func connect(ctx context.Context, engine *local.Engine, cfg *config.Config, m metrics.SessionMetrics, fn func(*vfs.Session) error) error {
	opts := cfg.SessionOptions()
	opts.Metrics = m

	s := vfs.NewSession(engine, cfg.Catalog.EnvSource(), opts)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	defer s.Destroy(context.Background())

	return fn(s)
}

func closeEngine(engine *local.Engine) {
	if err := engine.Close(); err != nil {
		logger.Error("Closing catalog engine: %v", err)
	}
}

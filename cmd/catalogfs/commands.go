package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/adapter/fuse"
	"github.com/marmos91/catalogfs/pkg/catalog/local"
	"github.com/marmos91/catalogfs/pkg/config"
	"github.com/marmos91/catalogfs/pkg/gc"
	"github.com/marmos91/catalogfs/pkg/server"
	"github.com/marmos91/catalogfs/pkg/vfs"
)

// putChunkSize is how much of a local file is sent per session write.
const putChunkSize = 64 * 1024

func runInit(args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("init", pflag.ContinueOnError)
	force := flagSet.BoolP("force", "f", false, "overwrite an existing config file")
	to := flagSet.String("path", "", "write the file here instead of the default location")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	target := *to
	if target == "" {
		p, err := config.InitConfig(*force)
		if err != nil {
			return err
		}
		target = p
	} else if err := config.InitConfigToPath(target, *force); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(stdout, "Configuration written to %s\n", target)
	return nil
}

func runPassword(cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return fmt.Errorf("empty password")
	}

	pw := &cfg.Catalog.Password
	if err := config.StorePassword(pw, password); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(stdout, "Password stored in keyring service %q as %q\n", pw.KeyringService, pw.KeyringKey)
	if pw.Source != "keyring" {
		_, _ = fmt.Fprintf(stdout, "Set catalog.password.source to \"keyring\" to use it.\n")
	}
	return nil
}

func oneArg(command string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s: expected exactly one PATH argument", command)
	}
	return args[0], nil
}

func runStat(ctx context.Context, s *vfs.Session, args []string, stdout io.Writer) error {
	p, err := oneArg("stat", args)
	if err != nil {
		return err
	}

	info, err := s.Stat(ctx, p)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(stdout)
	_, _ = fmt.Fprintf(w, "Path:     %s\n", info.Path)
	_, _ = fmt.Fprintf(w, "ID:       %d\n", info.ID)
	_, _ = fmt.Fprintf(w, "Kind:     %s\n", info.Kind)
	_, _ = fmt.Fprintf(w, "Size:     %d\n", info.Size)
	_, _ = fmt.Fprintf(w, "Mode:     %#o\n", info.Mode)
	_, _ = fmt.Fprintf(w, "Owner:    %s#%s\n", info.OwnerName, info.OwnerZone)
	_, _ = fmt.Fprintf(w, "Modified: %s\n", info.ModifiedAt.Format(time.RFC3339))
	if !info.IsCollection() {
		_, _ = fmt.Fprintf(w, "Resource: %s\n", info.Resource)
		_, _ = fmt.Fprintf(w, "Checksum: %s\n", info.Checksum)
	}
	return w.Flush()
}

func runList(ctx context.Context, s *vfs.Session, args []string, stdout io.Writer) error {
	p, err := oneArg("ls", args)
	if err != nil {
		return err
	}

	names, err := s.List(ctx, p)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(stdout)
	for _, name := range names {
		_, _ = fmt.Fprintln(w, name)
	}
	return w.Flush()
}

func runWalk(ctx context.Context, s *vfs.Session, args []string, stdout io.Writer) error {
	p, err := oneArg("walk", args)
	if err != nil {
		return err
	}

	ds, err := s.Opendir(ctx, p)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(stdout)
	for {
		entry, err := ds.Readdir(ctx)
		if errors.Is(err, vfs.ErrStreamExhausted) {
			break
		}
		if err != nil {
			_ = ds.Closedir(ctx)
			return err
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", entry.ID, entry.Kind, entry.Name)
	}
	logger.Debug("walk %s: stream status %s", ds.Path(), ds.Telldir())

	if err := ds.Closedir(ctx); err != nil {
		return err
	}
	return w.Flush()
}

func runMkdir(ctx context.Context, s *vfs.Session, args []string) error {
	p, err := oneArg("mkdir", args)
	if err != nil {
		return err
	}
	return s.Mkdir(ctx, p)
}

func runRmdir(ctx context.Context, s *vfs.Session, args []string) error {
	p, err := oneArg("rmdir", args)
	if err != nil {
		return err
	}
	return s.Rmdir(ctx, p)
}

func runPut(ctx context.Context, s *vfs.Session, args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("put", pflag.ContinueOnError)
	mode := flagSet.Uint32("mode", 0o644, "permission bits for a new data object")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 2 {
		return fmt.Errorf("put: expected FILE and PATH arguments")
	}
	src, remote := flagSet.Arg(0), flagSet.Arg(1)

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	// Open resolves names against the working directory.
	dir, name := path.Split(remote)
	if dir != "" {
		if err := s.Chdir(ctx, dir); err != nil {
			return err
		}
	}

	fd, err := s.Open(ctx, name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, *mode)
	if err != nil {
		return err
	}

	var total int64
	buf := make([]byte, putChunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			written, werr := s.Write(ctx, fd, buf[:n])
			total += int64(written)
			if werr != nil {
				_ = s.Close(ctx, fd)
				return werr
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			_ = s.Close(ctx, fd)
			return rerr
		}
	}

	if err := s.Close(ctx, fd); err != nil {
		return err
	}

	info, err := s.Fstat(ctx, fd)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Wrote %d bytes to %s (checksum %s)\n", total, info.Path, info.Checksum)
	return nil
}

func runMount(ctx context.Context, cfg *config.Config, args []string) error {
	flagSet := pflag.NewFlagSet("mount", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.FUSE.Mountpoint, "mountpoint", cfg.FUSE.Mountpoint, "local directory to mount on")
	flagSet.BoolVar(&cfg.FUSE.AllowOther, "allow-other", cfg.FUSE.AllowOther, "let other local users access the mount")
	flagSet.BoolVar(&cfg.FUSE.Debug, "debug", cfg.FUSE.Debug, "log every FUSE request")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if cfg.FUSE.Mountpoint == "" {
		return fmt.Errorf("mount: no mountpoint (set fuse.mountpoint or pass --mountpoint)")
	}

	m := config.InitializeMetrics(cfg)

	return withEngine(ctx, cfg, func(engine *local.Engine) error {
		if cfg.Backend.GC.Enabled {
			meta, store := engine.Stores()
			collector, err := gc.NewCollector(meta, store, gc.Config{
				Interval: cfg.Backend.GC.Interval,
				DryRun:   cfg.Backend.GC.DryRun,
			})
			if err != nil {
				return err
			}
			collector.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				_ = collector.Stop(stopCtx)
			}()
		}

		return connect(ctx, engine, cfg, m.SessionMetrics, func(s *vfs.Session) error {
			srv := server.New()
			if err := srv.AddAdapter(fuse.New(fuse.Config{
				Mountpoint: cfg.FUSE.Mountpoint,
				AllowOther: cfg.FUSE.AllowOther,
				Debug:      cfg.FUSE.Debug,
			}, s)); err != nil {
				return err
			}
			if m.Server != nil {
				if err := srv.AddAdapter(m.Server); err != nil {
					return err
				}
			}

			logger.Info("Serving %s as %s@%s. Press Ctrl+C to stop.", s.CatalogRoot(), cfg.Catalog.User, cfg.Catalog.Zone)

			err := srv.Serve(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	})
}

func runGC(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("gc", pflag.ContinueOnError)
	dryRun := flagSet.Bool("dry-run", cfg.Backend.GC.DryRun, "report orphaned content without deleting it")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	return withEngine(ctx, cfg, func(engine *local.Engine) error {
		meta, store := engine.Stores()
		collector, err := gc.NewCollector(meta, store, gc.Config{DryRun: *dryRun})
		if err != nil {
			return err
		}

		stats, err := collector.RunNow(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, stats.Summary())
		return nil
	})
}

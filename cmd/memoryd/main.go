// memoryd serves a local vector memory over a WebSocket.
//
// Usage:
//
//	memoryd [-config memoryd.yaml]
//	memoryd -export memories.jsonl.zst
//	memoryd -import memories.jsonl.zst
//	memoryd -restore <backup name>
//	memoryd -chat
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/backup"
	"github.com/becomeliminal/nim-memory/memory/store"
	"github.com/becomeliminal/nim-memory/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	exportPath := flag.String("export", "", "write all memories to this file and exit")
	importPath := flag.String("import", "", "load memories from this file and exit")
	restoreName := flag.String("restore", "", "load memories from this object storage backup and exit")
	chat := flag.Bool("chat", false, "chat with Claude on stdin using the memory tools")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cfg.Log.Logger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, modes{
		exportPath:  *exportPath,
		importPath:  *importPath,
		restoreName: *restoreName,
		chat:        *chat,
	}); err != nil {
		logger.Error("memoryd failed", "error", err)
		os.Exit(1)
	}
}

// modes selects a one-shot command instead of serving.
type modes struct {
	exportPath  string
	importPath  string
	restoreName string
	chat        bool
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, m modes) error {
	backend, err := newBackend(cfg.Store, logger)
	if err != nil {
		return err
	}
	s, err := openStore(ctx, backend, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	switch {
	case m.exportPath != "":
		return exportFile(ctx, s, m.exportPath, logger)
	case m.importPath != "":
		return importFile(ctx, s, m.importPath, logger)
	case m.restoreName != "":
		objects, err := dialBackups(ctx, cfg.Backup)
		if err != nil {
			return err
		}
		n, err := objects.Download(ctx, m.restoreName, s)
		if err != nil {
			return err
		}
		logger.Info("restored memories", "backup", m.restoreName, "records", n)
		return nil
	}

	embedder, closers, err := newEmbedder(ctx, cfg.Embedder, cfg.Store.Dimensionality, logger)
	if err != nil {
		return err
	}
	defer closeAll(closers, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	manager, err := memory.NewManager(s, embedder, &memory.Config{
		DefaultK:         cfg.Recall.K,
		DefaultThreshold: cfg.Recall.Threshold,
		DefaultCategory:  cfg.Recall.DefaultCategory,
	}, memory.WithLogger(logger), memory.WithMetrics(memory.NewMetrics(reg)))
	if err != nil {
		return err
	}

	if m.chat {
		return runChat(ctx, cfg.Agent, manager, os.Stdin, os.Stdout, logger)
	}

	srv := server.New(manager, server.Config{
		Addr:           cfg.Server.Addr,
		RequestTimeout: cfg.Server.RequestTimeout,
		Gatherer:       reg,
		Health: func(ctx context.Context) error {
			_, err := s.Count(ctx)
			return err
		},
		Logger: logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if cfg.Backup.Endpoint != "" && cfg.Backup.Interval > 0 {
		objects, err := dialBackups(ctx, cfg.Backup)
		if err != nil {
			return err
		}
		g.Go(func() error { return periodicBackup(gctx, objects, s, cfg.Backup.Interval, logger) })
	}

	return g.Wait()
}

func exportFile(ctx context.Context, s *store.Store, path string, logger *slog.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	n, err := backup.Export(ctx, s, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	logger.Info("exported memories", "path", path, "records", n)
	return nil
}

func importFile(ctx context.Context, s *store.Store, path string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	n, err := backup.Import(ctx, s, f)
	if err != nil {
		return err
	}
	logger.Info("imported memories", "path", path, "records", n)
	return nil
}

func dialBackups(ctx context.Context, cfg config.BackupConfig) (*backup.ObjectStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("backup.endpoint is not configured")
	}
	return backup.DialObjectStore(ctx, backup.ObjectConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Prefix:    cfg.Prefix,
		Secure:    cfg.Secure,
	})
}

// periodicBackup uploads a snapshot every interval until ctx ends. Failed
// uploads are logged and retried on the next tick.
func periodicBackup(ctx context.Context, objects *backup.ObjectStore, s *store.Store, interval time.Duration, logger *slog.Logger) error {
	logger = logger.With("component", "backup")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			name := t.UTC().Format("20060102T150405Z") + ".jsonl.zst"
			n, err := objects.Upload(ctx, name, s)
			if err != nil {
				logger.Warn("backup upload failed", "backup", name, "error", err)
				continue
			}
			logger.Info("uploaded backup", "backup", name, "records", n)
		}
	}
}

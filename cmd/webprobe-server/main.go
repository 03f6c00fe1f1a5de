// webprobe-server 以 HTTP 接口提供页面采集能力，不依赖桌面环境
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webprobe/internal/config"
	"webprobe/internal/httpapi"
	"webprobe/internal/logger"
	"webprobe/internal/service"
	"webprobe/internal/storage/db"
	"webprobe/internal/storage/model"
	"webprobe/internal/storage/repo"
	"webprobe/pkg/api"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, Writers: []string{"console"}})

	var opts []service.Option
	if cfg.Capture.Archive {
		gdb, err := db.New(db.Options{
			Name:   cfg.Sqlite.Db,
			Prefix: cfg.Sqlite.Prefix,
			Logger: db.NewLogger(log),
		})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(gdb, &model.EntryRecord{}); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		entries := repo.NewEntryRepo(gdb, log, repo.EntryRepoOptions{})
		defer entries.Stop()
		opts = append(opts, service.WithArchiver(entries))
	}

	svc := api.NewService(log, opts...)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewServer(svc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP 接口已启动", "addr", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	svc.StopAll(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP 接口关闭失败", "error", err)
	}
	log.Info("HTTP 接口已关闭")
	return nil
}

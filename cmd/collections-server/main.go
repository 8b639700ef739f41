package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/meftunca/postbench/pkg/common"
	"github.com/meftunca/postbench/pkg/config"
	pbjson "github.com/meftunca/postbench/pkg/json"
	"github.com/meftunca/postbench/pkg/server"
	"github.com/meftunca/postbench/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("collections-server", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to config file")
	flags.String("host", "", "listen host")
	flags.IntP("port", "p", 0, "listen port")
	flags.String("storage", "", "storage back end: memory or redis")
	flags.String("log-level", "", "debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.LoadConfig(*configPath, flags)
	if err != nil {
		common.DefaultLogger.Errorf("failed to load config: %v", err)
		return 2
	}
	common.SetDefaultLevel(common.ParseLevel(cfg.Logging.Level))
	log := common.DefaultLogger

	if err := pbjson.InitializeFromConfig(cfg.JSON); err != nil {
		log.Errorf("failed to initialize json encoder: %v", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Server)
	if err != nil {
		log.Errorf("failed to open %s storage: %v", cfg.Server.Storage, err)
		return 1
	}
	defer store.Close()

	srv, err := server.New(cfg, store, log)
	if err != nil {
		log.Errorf("failed to create server: %v", err)
		return 1
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Errorf("server stopped: %v", err)
			return 1
		}
	case <-ctx.Done():
		log.Infof("shutting down")
		if err := srv.Shutdown(shutdownTimeout); err != nil {
			log.Errorf("shutdown failed: %v", err)
			return 1
		}
	}
	return 0
}

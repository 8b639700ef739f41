package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/meftunca/postbench/pkg/client"
	"github.com/meftunca/postbench/pkg/common"
	"github.com/meftunca/postbench/pkg/config"
	"github.com/meftunca/postbench/pkg/dispatch"
	pbjson "github.com/meftunca/postbench/pkg/json"
	"github.com/meftunca/postbench/pkg/metrics"
	"github.com/meftunca/postbench/pkg/types"
	"github.com/meftunca/postbench/pkg/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns 0 when every payload was accepted, 1 when the batch aborted
// and 2 on usage or setup errors.
func run(args []string) int {
	flags := pflag.NewFlagSet("postbench", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to config file")
	flags.StringP("url", "u", "", "target endpoint")
	flags.IntP("batch-size", "n", 0, "number of payloads to dispatch")
	flags.StringP("mode", "m", "", "dispatch mode: sequential or concurrent")
	flags.Int("concurrency", 0, "in-flight request limit in concurrent mode")
	flags.String("compression", "", "request body encoding: none, gzip, zstd, br, lz4")
	flags.StringP("format", "f", "", "request body format: json, msgpack, cbor")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.Bool("metrics", false, "serve Prometheus metrics while the batch runs")
	showVersion := flags.BoolP("version", "v", false, "print version and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *showVersion {
		fmt.Println(version.UserAgent())
		return 0
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

	poster, err := client.NewHTTPPosterFromConfig(cfg)
	if err != nil {
		log.Errorf("failed to create client: %v", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []dispatch.Option{
		dispatch.WithLogger(log),
		dispatch.WithReporter(&dispatch.LineReporter{W: os.Stdout}),
	}

	if cfg.Metrics.Enabled {
		m := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		opts = append(opts, dispatch.WithRecorder(m))

		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.Metrics.Addr, m); err != nil {
				log.Warnf("metrics endpoint stopped: %v", err)
			}
		}()
		log.Infof("metrics available on %s/metrics", cfg.Metrics.Addr)
	}

	d := dispatch.New(cfg.Dispatch, opts...)
	encoding := "uncompressed"
	if cfg.IsCompressionEnabled() {
		encoding = "compression " + string(cfg.Compression.Type)
	}
	log.Infof("dispatching %d payloads to %s (%s, format %s, %s)",
		cfg.Batch.Size, cfg.Target.URL, d.Mode(), cfg.Serialization.Format, encoding)

	_, err = d.Run(ctx, cfg.Batch.Size, cfg.Target.URL, poster)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, types.ErrBatchAborted):
		return 1
	default:
		log.Errorf("batch not started: %v", err)
		return 2
	}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"taskline/internal/config"
	"taskline/internal/expander"
	appLog "taskline/internal/log"
	"taskline/internal/store"
	"taskline/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	appLog.Info("taskline starting", "version", "0.1.0-dev")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"expand_cron", conf.ExpandCron,
		"lookup_days", conf.LookupDays,
		"min_fragment_minutes", conf.MinFragmentMinutes,
		"horizon_days", conf.HorizonDays,
		"store_path", conf.Store.Path,
		"ics_count", len(conf.ICS),
		"once", flags.once,
	)

	st, err := store.Open(store.Config{
		Path:        conf.Store.Path,
		BusyTimeout: time.Duration(conf.Store.BusyTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		appLog.Error("failed to open task store", err, "path", conf.Store.Path)
		os.Exit(1)
	}
	defer st.Close()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.once {
		// Single-shot mode: expand once, print the report, exit.
		report, err := expander.Run(ctx, st, expander.Options{
			Location:   conf.Location(),
			LookupDays: conf.LookupDays,
		})
		if err != nil {
			appLog.Error("expansion run failed", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}

	// Periodic expander job.
	runExpansion := func() {
		report, err := expander.Run(ctx, st, expander.Options{
			Location:   conf.Location(),
			LookupDays: conf.LookupDays,
		})
		if err != nil {
			appLog.Error("expansion run failed", err)
			return
		}
		appLog.Info("expansion run completed",
			"processed", report.Processed,
			"created", report.NewChildrenCreated,
		)
	}

	c := cron.New()
	if _, err := c.AddFunc(conf.ExpandCron, runExpansion); err != nil {
		appLog.Error("invalid expand_cron schedule", err, "expand_cron", conf.ExpandCron)
		os.Exit(1)
	}
	c.Start()
	appLog.Info("expander job scheduled", "expand_cron", conf.ExpandCron)

	// HTTP API.
	go func() {
		if err := web.StartServer(ctx, conf, st, flags.debug); err != nil {
			appLog.Error("HTTP server stopped", err)
			cancel()
		}
	}()

	<-ctx.Done()

	cronCtx := c.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(5 * time.Second):
		appLog.Warn("timed out waiting for running expansion to finish")
	}
	appLog.Info("taskline exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/taskline/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one recurrence expansion and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging and local cache paths")

	flag.Parse()

	return cfg
}

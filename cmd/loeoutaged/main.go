package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loeoutaged/internal/config"
	"loeoutaged/internal/loe"
	appLog "loeoutaged/internal/log"
	"loeoutaged/internal/metrics"
	"loeoutaged/internal/model"
	"loeoutaged/internal/poller"
	"loeoutaged/internal/schedule"
	"loeoutaged/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	dump       bool
	debug      bool
}

func main() {
	appLog.Info("loeoutaged starting", "version", "0.1.0")

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

	// The one non-negotiable: a known group. No safe default exists, so
	// refuse to run instead of degrading.
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"group", conf.Group,
		"refresh", conf.Refresh,
		"timezone", conf.Timezone,
		"timeout_seconds", conf.TimeoutSeconds,
		"lookahead_days", conf.LookaheadDays,
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	store := schedule.NewStore(conf.Group)
	fetcher := loe.NewFetcher(conf.Endpoint, conf.Timeout())

	if flags.once {
		runOnce(ctx, fetcher, store, conf, flags.dump)
		return
	}

	met := metrics.New()
	p := poller.New(fetcher, store, met, conf.Refresh, conf.Location())
	if err := p.Start(ctx); err != nil {
		appLog.Error("failed to start poller", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, store, p, met).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			appLog.Error("http shutdown error", err)
		}
	}()

	appLog.Info("listening", "listen", "http://"+conf.Listen)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		appLog.Error("http server error", err)
		os.Exit(1)
	}
	appLog.Info("loeoutaged exiting")
}

// runOnce executes a single fetch cycle and prints the result to
// stdout; useful for cron-less setups and for poking at the live API.
func runOnce(ctx context.Context, fetcher *loe.Fetcher, store *schedule.Store, conf *config.Config, dump bool) {
	p := poller.New(fetcher, store, nil, conf.Refresh, conf.Location())
	p.RunCycle(ctx)
	if err := p.LastError(); err != nil {
		appLog.Error("fetch cycle failed", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if dump {
		_ = enc.Encode(store.Snapshot())
		return
	}

	now := time.Now().In(conf.Location())
	out := struct {
		Group  string              `json:"group"`
		Events []model.OutageEvent `json:"events"`
	}{
		Group:  conf.Group,
		Events: store.MergedEventsBetween(now.AddDate(0, 0, -1), now.AddDate(0, 0, conf.LookaheadDays)),
	}
	_ = enc.Encode(out)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/loeoutaged/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch cycle, print events and exit")
	flag.BoolVar(&cfg.dump, "dump", false, "With -once: print the raw parsed snapshot instead of events")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"askcoach/internal/config"
	"askcoach/internal/engine"
	"askcoach/internal/groupme"
	"askcoach/internal/ics"
	appLog "askcoach/internal/log"
	"askcoach/internal/store"
	"askcoach/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
	importOnce bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	defer appLog.Sync()

	appLog.Info("askcoach starting", "version", "0.1.0")

	// .env is optional; deployments usually inject GROUPME_BOT_ID directly.
	if err := godotenv.Load(); err == nil {
		appLog.Debug(".env loaded")
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("invalid timezone in config", err, "timezone", conf.Timezone)
		os.Exit(1)
	}
	now := func() time.Time { return time.Now().In(loc) }

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"db_path", conf.DBPath,
		"bot_configured", conf.BotID != "",
		"ics_count", len(conf.ICS),
		"sweep", conf.SweepCron,
	)
	if conf.BotID == "" {
		appLog.Info("GROUPME_BOT_ID not configured; outbound replies will fail until it is set")
	}

	st, err := store.Open(conf.DBPath, loc)
	if err != nil {
		appLog.Error("failed to open store", err, "db_path", conf.DBPath)
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

	importer := buildImporter(conf, st, loc, now)

	if flags.importOnce {
		if importer == nil {
			appLog.Info("no ICS sources configured; nothing to import")
			return
		}
		if err := importer.Run(ctx); err != nil {
			appLog.Error("schedule import failed", err)
			os.Exit(1)
		}
		return
	}

	client := groupme.NewClient(conf.BotID)
	eng := engine.New(st, st, client, now)

	// Background jobs: expired pending-choice sweep, optional ICS refresh.
	// Owned here so start/stop is tied to process lifecycle, not package
	// side effects.
	runner := cron.New()
	if _, err := runner.AddFunc(conf.SweepCron, func() {
		sweepCtx, sweepCancel := context.WithTimeout(ctx, 30*time.Second)
		defer sweepCancel()
		if err := st.SweepExpired(sweepCtx, now()); err != nil {
			appLog.Error("pending-choice sweep failed", err)
		}
	}); err != nil {
		appLog.Error("invalid sweep schedule", err, "sweep", conf.SweepCron)
		os.Exit(1)
	}
	if importer != nil {
		if _, err := runner.AddFunc(conf.RefreshCron, func() {
			importCtx, importCancel := context.WithTimeout(ctx, 2*time.Minute)
			defer importCancel()
			if err := importer.Run(importCtx); err != nil {
				appLog.Error("schedule import failed", err)
			}
		}); err != nil {
			appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
			os.Exit(1)
		}
	}
	runner.Start()
	defer runner.Stop()

	srv, err := web.NewServer(conf, st, eng, now)
	if err != nil {
		appLog.Error("failed to build HTTP server", err)
		os.Exit(1)
	}

	if err := srv.Serve(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}

	appLog.Info("askcoach exiting")
}

func buildImporter(conf *config.Config, st *store.Store, loc *time.Location, now func() time.Time) *ics.Importer {
	if len(conf.ICS) == 0 {
		return nil
	}

	sources := make([]ics.Source, 0, len(conf.ICS))
	for _, c := range conf.ICS {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			if c.Name != "" {
				id = c.Name
			} else {
				id = c.URL
			}
		}
		sources = append(sources, ics.Source{ID: id, URL: c.URL})
	}
	if len(sources) == 0 {
		return nil
	}

	fetcher := ics.NewFetcher("./var/ics-cache")
	return ics.NewImporter(fetcher, st, sources, loc, now)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "askcoach.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&cfg.importOnce, "import-once", false, "Run one ICS schedule import and exit")

	flag.Parse()

	return cfg
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryan-buckman/techpulse/internal/classify"
	"github.com/bryan-buckman/techpulse/internal/config"
	"github.com/bryan-buckman/techpulse/internal/database"
	"github.com/bryan-buckman/techpulse/internal/ingest"
	"github.com/bryan-buckman/techpulse/internal/logging"
	"github.com/bryan-buckman/techpulse/internal/model"
	"github.com/bryan-buckman/techpulse/internal/opml"
	"github.com/bryan-buckman/techpulse/internal/rss"
	"github.com/bryan-buckman/techpulse/internal/scheduler"
	"github.com/bryan-buckman/techpulse/internal/server"
)

const usage = `usage: techpulse <command> [flags]

commands:
  fetch [-source ID]     fetch all active RSS sources once
  serve [-addr ADDR]     run the HTTP API
  schedule               fetch due sources on the configured cron schedule
  import-opml FILE       register the feeds of an OPML file as sources
  export-opml            write all RSS sources as OPML to stdout
  seed-categories        create the built-in categories

every command accepts -config PATH`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "techpulse:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	var (
		sourceID *int64
		addr     *string
	)
	switch cmd {
	case "fetch":
		sourceID = fs.Int64("source", 0, "fetch only this source id")
	case "serve":
		addr = fs.String("addr", "", "listen address (overrides config)")
	case "schedule", "import-opml", "export-opml", "seed-categories":
	case "-h", "--help", "help":
		fmt.Println(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Debug("database opened", "type", store.DatabaseType())

	switch cmd {
	case "fetch":
		var opts ingest.RunOptions
		if *sourceID != 0 {
			opts.SourceID = sourceID
		}
		return runFetch(ctx, newRunner(cfg, store, logger), opts)
	case "serve":
		listen := cfg.Server.Addr
		if *addr != "" {
			listen = *addr
		}
		return server.New(store, newRunner(cfg, store, logger), logger).Start(ctx, listen)
	case "schedule":
		return runSchedule(ctx, cfg, newRunner(cfg, store, logger), logger)
	case "import-opml":
		if fs.NArg() != 1 {
			return errors.New("import-opml needs exactly one FILE argument")
		}
		return runImportOPML(ctx, store, fs.Arg(0), logger)
	case "export-opml":
		return runExportOPML(ctx, store)
	case "seed-categories":
		return seedCategories(ctx, store, logger)
	}
	return nil
}

func openStore(cfg config.Config) (database.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return database.NewPostgres(cfg.Database.DSN)
	default:
		return database.New(cfg.Database.DSN)
	}
}

func newRunner(cfg config.Config, store database.Store, logger *slog.Logger) *ingest.Runner {
	retries := cfg.Fetch.Retries
	if retries == 0 {
		retries = -1
	}
	client := rss.NewClient(rss.ClientConfig{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		Retries:      retries,
		RetryBackoff: cfg.Fetch.RetryBackoff,
	})
	return ingest.New(store, ingest.Config{
		Workers:   cfg.Fetch.Workers,
		Location:  cfg.Location(),
		HostDelay: cfg.Fetch.HostDelay,
		Fetcher:   client,
		Logger:    logger,
	})
}

func runFetch(ctx context.Context, runner *ingest.Runner, opts ingest.RunOptions) error {
	sum, err := runner.Run(ctx, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Done: %d seen, %d created, %d updated, %d skipped\n",
		sum.Totals.Seen, sum.Totals.Created, sum.Totals.Updated, sum.Totals.Skipped)
	return nil
}

func runSchedule(ctx context.Context, cfg config.Config, runner *ingest.Runner, logger *slog.Logger) error {
	opts := scheduler.Options{LockTTL: cfg.Scheduler.LockTTL, Logger: logger}
	if cfg.Scheduler.RedisAddr != "" {
		locker, err := scheduler.NewRedisLocker(ctx, cfg.Scheduler.RedisAddr, logger)
		if err != nil {
			return err
		}
		defer locker.Close()
		opts.Locker = locker
	}
	sched, err := scheduler.New(cfg.Scheduler.Cron, runner, opts)
	if err != nil {
		return fmt.Errorf("cron spec %q: %w", cfg.Scheduler.Cron, err)
	}
	sched.Start()
	<-ctx.Done()
	sched.Stop()
	return nil
}

func runImportOPML(ctx context.Context, store database.Store, path string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	res, err := opml.Import(ctx, store, f)
	if err != nil {
		return err
	}
	for _, msg := range res.Errors {
		logger.Warn("opml entry not imported", "error", msg)
	}
	logger.Info("opml imported", "added", res.Added, "existing", res.Existing, "failed", res.Failed)
	return nil
}

func runExportOPML(ctx context.Context, store database.Store) error {
	rssType := model.SourceRSS
	sources, err := store.ListSources(ctx, database.SourceFilter{Type: &rssType})
	if err != nil {
		return err
	}
	data, err := opml.Export("techpulse sources", sources)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func seedCategories(ctx context.Context, store database.Store, logger *slog.Logger) error {
	for _, topic := range classify.Taxonomy() {
		if _, err := store.GetCategoryByName(ctx, topic.Name); err == nil {
			continue
		} else if !errors.Is(err, database.ErrNotFound) {
			return err
		}
		cat, err := store.CreateCategory(ctx, topic.Name, topic.Description)
		if err != nil {
			return err
		}
		logger.Info("category created", "name", cat.Name, "slug", cat.Slug)
	}
	return nil
}

// Command syncd keeps the canonical forecast store in sync with the remote
// providers. Without flags it runs as a daemon: an hourly scheduler cycle, a
// staging-directory watcher, and an HTTP endpoint for health and metrics.
// With -command it performs a single job and exits, matching the crontab
// style of deployment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/sewaa/forecast-sync/internal/api"
	"github.com/sewaa/forecast-sync/internal/config"
	"github.com/sewaa/forecast-sync/internal/dataset"
	"github.com/sewaa/forecast-sync/internal/domain"
	"github.com/sewaa/forecast-sync/internal/ledger"
	"github.com/sewaa/forecast-sync/internal/notify"
	"github.com/sewaa/forecast-sync/internal/observability"
	"github.com/sewaa/forecast-sync/internal/scheduler"
	"github.com/sewaa/forecast-sync/internal/store"
	"github.com/sewaa/forecast-sync/internal/sync"
	"github.com/sewaa/forecast-sync/internal/transport"
	"github.com/sewaa/forecast-sync/internal/watch"
)

func main() {
	var (
		model     = flag.String("model", "open-ifs", "forecast model or product family: open-ifs, jurre-brishti, mvua-kubwa")
		command   = flag.String("command", "", "one-shot job: sync, migrate, or generate; empty runs the daemon")
		date      = flag.String("date", "", "sync forecasts for one explicit date (YYYYMMDD)")
		period    = flag.Int("period", 0, "days to look back from the data date; 0 uses SYNC_DAYS_BACK")
		stepStart = flag.Int("start", 0, "first forecast step in hours; 0 uses FORECAST_STEP_START")
		stepFinal = flag.Int("final", 0, "last forecast step in hours; 0 uses FORECAST_STEP_FINAL")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *period > 0 {
		cfg.DaysBack = *period
	}
	if *stepStart > 0 {
		cfg.StepStart = *stepStart
	}
	if *stepFinal > 0 {
		cfg.StepFinal = *stepFinal
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	led := ledger.NewFileStore(cfg.LogsDir, logger)
	resolver := &store.Resolver{ForecastsDir: cfg.ForecastsDir, JobsDir: cfg.JobsDir}

	migrator := &sync.Migrator{
		Resolver:         resolver,
		Codec:            dataset.NetCDFCodec{},
		Regions:          domain.DefaultRegions,
		MinEnsembleBytes: config.MinEnsembleBytes,
		Logger:           logger,
		Metrics:          metrics,
		Ledger:           led,
	}

	var publisher *notify.Publisher
	if cfg.NotifyEnabled() {
		publisher = notify.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger, metrics)
		migrator.Notifier = publisher
		logger.Info("migration events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("migration events disabled")
	}

	post := &sync.PostProcessor{
		Converter:       &sync.GribConverter{Logger: logger},
		Migrator:        migrator,
		MinGribBytes:    config.MinGribBytes,
		DeleteRetries:   cfg.DeleteRetries,
		DeleteRetryWait: cfg.DeleteRetryWait,
		Logger:          logger,
		Metrics:         metrics,
		Clock:           clock,
	}

	openData := transport.NewOpenData(logger)
	openData.BaseURL = cfg.OpenDataURL
	openData.Retries = cfg.OpenDataRetries

	orch := &sync.Orchestrator{
		Ledger:   led,
		Resolver: resolver,
		Migrator: migrator,
		Post:     post,
		SFTP: &transport.SFTP{
			Host:       cfg.IFSServerHost,
			User:       cfg.IFSServerUser,
			KeyFile:    cfg.IFSPrivateKey,
			Port:       cfg.IFSServerPort,
			MaxRetries: cfg.SFTPRetries,
			Workers:    cfg.SFTPWorkers,
			Logger:     logger,
		},
		Mirror: &transport.Mirror{
			BaseURL:  cfg.MirrorURL,
			Crawler:  transport.NewCrawler(nil, logger),
			Resolver: resolver,
			Logger:   logger,
			MinSize:  config.MinRegionalBytes,
		},
		OpenData:      openData,
		UseHTTPMirror: cfg.UseHTTPMirror,
		RemoteDirs:    cfg.RemoteDirs(),
		Workers:       cfg.OpenDataWorkers,
		Steps:         domain.ForecastSteps(cfg.StepStart, cfg.StepFinal, 3),
		DaysBack:      cfg.DaysBack,
		PollInterval:  cfg.PollInterval,
		Logger:        logger,
		Metrics:       metrics,
		Clock:         clock,
	}

	trigger := &sync.Trigger{
		WorkHome:      cfg.WorkHome,
		Resolver:      resolver,
		Migrator:      migrator,
		Ledger:        led,
		Runner:        &sync.ExecRunner{Logger: logger},
		MinInputBytes: config.MinGenerationInputBytes,
		Logger:        logger,
		Metrics:       metrics,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *command != "" {
		err = runJob(ctx, *command, *model, *date, orch, trigger, logger)
	} else {
		err = runDaemon(ctx, cfg, orch, trigger, migrator, resolver, logger, clock)
	}

	if publisher != nil {
		if cerr := publisher.Close(); cerr != nil {
			logger.Error("kafka publisher close error", "error", cerr)
		}
	}
	if err != nil {
		logger.Error("syncd failed", "error", err)
		os.Exit(1)
	}
}

// modelSources resolves the -model flag to the ensemble input to sync and
// the products to generate from it.
func modelSources(model string) (input domain.Source, products []domain.Source, err error) {
	switch model {
	case "jurre-brishti":
		return domain.SourceCganIFS6h, []domain.Source{domain.SourceJurreBrishtiEns}, nil
	case "mvua-kubwa":
		return domain.SourceCganIFS7d, []domain.Source{domain.SourceMvuaKubwaEns}, nil
	default:
		return "", nil, fmt.Errorf("unknown model %q", model)
	}
}

func runJob(ctx context.Context, command, model, date string, orch *sync.Orchestrator, trigger *sync.Trigger, logger *slog.Logger) error {
	switch command {
	case "sync":
		if model == "open-ifs" {
			return orch.SyncOpenIFS(ctx, date)
		}
		input, products, err := modelSources(model)
		if err != nil {
			return err
		}
		if err := orch.SyncEnsemble(ctx, input); err != nil {
			return err
		}
		for _, product := range products {
			if err := trigger.GenerateMissing(ctx, product); err != nil {
				logger.Error("forecast generation failed", "model", product, "error", err)
			}
		}
		return nil

	case "migrate":
		source, err := domain.ParseSource(model)
		if err != nil {
			input, _, merr := modelSources(model)
			if merr != nil {
				return err
			}
			source = input
		}
		return orch.MigrateStaged(ctx, source)

	case "generate":
		_, products, err := modelSources(model)
		if err != nil {
			return err
		}
		for _, product := range products {
			if err := trigger.GenerateMissing(ctx, product); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runDaemon(ctx context.Context, cfg *config.Config, orch *sync.Orchestrator, trigger *sync.Trigger, migrator *sync.Migrator, resolver *store.Resolver, logger *slog.Logger, clock clockwork.Clock) error {
	cleaner := &store.Cleaner{
		Root:   cfg.ForecastsDir,
		MaxAge: cfg.MaxFileAge,
		Clock:  clock,
		Logger: logger,
	}

	sched := &scheduler.Scheduler{
		Syncer:    orch,
		Generator: trigger,
		Cleaner:   cleaner,
		Ensembles: []domain.Source{domain.SourceCganIFS6h, domain.SourceCganIFS7d},
		Models: []domain.Source{domain.SourceJurreBrishtiEns, domain.SourceMvuaKubwaEns},
		Logger: logger,
		Clock:  clock,
	}

	watcher := &watch.Watcher{
		Resolver: resolver,
		Migrator: migrator,
		Sources:  []domain.Source{domain.SourceCganIFS6h, domain.SourceCganIFS7d},
		Logger:   logger,
		Clock:    clock,
	}

	srv := api.NewServer(cfg.HTTPAddr, resolver, &storeReadiness{dirs: []string{cfg.ForecastsDir, cfg.JobsDir}}, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("staging watcher error", "error", err)
		}
	}()
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// storeReadiness reports ready once the data roots exist.
type storeReadiness struct {
	dirs []string
}

func (s *storeReadiness) CheckReadiness(_ context.Context) error {
	for _, dir := range s.dirs {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("data root %s unavailable: %w", dir, err)
		}
	}
	return nil
}

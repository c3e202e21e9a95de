package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/process-eta/internal/config"
	"github.com/hochfrequenz/process-eta/internal/domain"
	"github.com/hochfrequenz/process-eta/internal/loader"
	"github.com/hochfrequenz/process-eta/internal/metrics"
	"github.com/hochfrequenz/process-eta/internal/observer"
	"github.com/hochfrequenz/process-eta/internal/processstore"
	"github.com/hochfrequenz/process-eta/internal/regression"
	"github.com/hochfrequenz/process-eta/internal/report"
	"github.com/hochfrequenz/process-eta/internal/retrain"
	"github.com/hochfrequenz/process-eta/internal/sample"
	"github.com/hochfrequenz/process-eta/web/api"
)

var (
	listStatus string
	listType   string
	listOwner  string
	servePort  int
)

func init() {
	// import command
	importCmd := &cobra.Command{
		Use:   "import FILE|DIR...",
		Short: "Import process records from YAML files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	rootCmd.AddCommand(importCmd)

	// list command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored process records",
		RunE:  runList,
	}
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	listCmd.Flags().StringVar(&listType, "type", "", "filter by process type")
	listCmd.Flags().StringVar(&listOwner, "owner", "", "filter by owner")
	rootCmd.AddCommand(listCmd)

	// train command
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the model on completed records and print the weights",
		RunE:  runTrain,
	}
	rootCmd.AddCommand(trainCmd)

	// forecast command
	forecastCmd := &cobra.Command{
		Use:   "forecast [ID...]",
		Short: "Forecast duration and ETA for in-flight processes",
		RunE:  runForecast,
	}
	rootCmd.AddCommand(forecastCmd)

	// demo command
	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Train on a built-in sample history and forecast one process",
		RunE:  runDemo,
	}
	rootCmd.AddCommand(demoCmd)

	// watch command
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Import and retrain whenever the records directory changes",
		RunE:  runWatch,
	}
	rootCmd.AddCommand(watchCmd)

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadWithLocalFallback(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openStore(cfg *config.Config) (*processstore.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.General.DatabasePath), 0755); err != nil {
		return nil, err
	}
	return processstore.New(cfg.General.DatabasePath)
}

func modelOptions(cfg *config.Config) []regression.Option {
	var opts []regression.Option
	if cfg.Model.PivotTolerance > 0 {
		opts = append(opts, regression.WithPivotTolerance(cfg.Model.PivotTolerance))
	}
	if cfg.Model.MinSamples > 0 {
		opts = append(opts, regression.WithMinSamples(cfg.Model.MinSamples))
	}
	return opts
}

// expandArgs turns directory arguments into the record files they contain
func expandArgs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		dirFiles, err := loader.RecordFiles(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, dirFiles...)
	}
	return files, nil
}

func importFiles(ctx context.Context, store *processstore.Store, files []string) (int, string, error) {
	processes, err := loader.LoadFiles(ctx, files)
	if err != nil {
		return 0, "", err
	}
	if len(processes) == 0 {
		return 0, "", nil
	}
	batch, err := store.UpsertProcesses(ctx, processes)
	if err != nil {
		return 0, "", fmt.Errorf("storing records: %w", err)
	}
	return len(processes), batch, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	files, err := expandArgs(args)
	if err != nil {
		return err
	}

	n, batch, err := importFiles(cmd.Context(), store, files)
	if err != nil {
		return err
	}

	logger.Info("records imported", "count", n, "files", len(files), "batch", batch)
	fmt.Printf("Imported %d processes from %d files\n", n, len(files))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := processstore.ListOptions{
		Type:  listType,
		Owner: listOwner,
	}
	if listStatus != "" {
		opts.Status = domain.ParseStatus(listStatus)
	}

	processes, err := store.ListProcesses(cmd.Context(), opts)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tPRIORITY\tSTATUS\tSTARTED\tDURATION")
	for _, p := range processes {
		duration := "-"
		if p.IsCompleted() {
			duration = p.Duration().String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Type, p.Priority, p.Status, humanize.Time(p.StartTime), duration)
	}
	w.Flush()

	return nil
}

func newTrainer(cfg *config.Config, logger *slog.Logger, store *processstore.Store) *retrain.Trainer {
	return retrain.NewTrainer(store, logger, modelOptions(cfg)...)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	trainer := newTrainer(cfg, logger, store)
	fit, err := trainer.Reload(cmd.Context())
	if err != nil {
		return err
	}

	if err := report.WriteFitReport(os.Stdout, fit); err != nil {
		return err
	}
	return report.WriteCoefficients(os.Stdout, trainer.Engine().Coefficients())
}

func runForecast(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	trainer := newTrainer(cfg, logger, store)
	if _, err := trainer.Reload(ctx); err != nil {
		return err
	}

	var targets []*domain.Process
	if len(args) > 0 {
		for _, id := range args {
			p, err := store.GetProcess(ctx, id)
			if err != nil {
				return err
			}
			targets = append(targets, p)
		}
	} else {
		targets, err = store.ListProcesses(ctx, processstore.ListOptions{Status: domain.StatusInProgress})
		if err != nil {
			return err
		}
	}

	engine := trainer.Engine()
	if engine.State() == regression.Untrained {
		fmt.Fprintln(os.Stderr, "warning: no completed records, forecasts use an untrained model")
	}

	rows := make([]report.Forecast, len(targets))
	for i, p := range targets {
		rows[i] = report.Forecast{
			Process: p,
			Seconds: engine.ForecastDuration(p),
			ETA:     engine.PredictETA(p),
		}
	}
	return report.WriteForecasts(os.Stdout, rows, time.Now())
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	now := time.Now()
	engine := regression.New(modelOptions(cfg)...)
	engine.AddRecords(sample.History(now))

	if _, err := engine.Train(); err != nil {
		return err
	}
	if err := report.WriteCoefficients(os.Stdout, engine.Coefficients()); err != nil {
		return err
	}

	p := sample.InFlight(now)
	seconds := engine.ForecastDuration(p)
	eta := engine.PredictETA(p)

	fmt.Printf("Forecasted duration: %g sec\n", seconds)
	fmt.Printf("Estimated completion time: %s\n", eta.Format(time.ANSIC))
	return nil
}

// startRetraining wires the records watcher and the cron schedule to trainer.
// The returned func stops both.
func startRetraining(ctx context.Context, cfg *config.Config, logger *slog.Logger, store *processstore.Store, trainer *retrain.Trainer, watch bool) (func(), error) {
	var stops []func()
	stop := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if watch {
		debounce, err := cfg.Debounce()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(cfg.General.RecordsDir, 0755); err != nil {
			return nil, err
		}

		watcher, err := observer.NewRecordsWatcher(func(files []string) {
			n, _, err := importFiles(ctx, store, files)
			if err != nil {
				logger.Error("importing changed records", "error", err)
				return
			}
			logger.Info("records changed, retraining", "files", len(files), "records", n)
			if _, err := trainer.Reload(ctx); err != nil {
				logger.Error("retrain after records change failed", "error", err)
			}
		})
		if err != nil {
			return nil, err
		}
		watcher.SetDebounce(debounce)
		watcher.SetLogger(logger)
		if err := watcher.AddDir(cfg.General.RecordsDir); err != nil {
			watcher.Stop()
			return nil, err
		}
		watcher.Start(ctx)
		stops = append(stops, watcher.Stop)
		logger.Info("watching records", "dir", cfg.General.RecordsDir)
	}

	if cfg.Retrain.Cron != "" {
		sched, err := retrain.New(cfg.Retrain.Cron, func() {
			logger.Info("scheduled retrain")
			if _, err := trainer.Reload(ctx); err != nil {
				logger.Error("scheduled retrain failed", "error", err)
			}
		})
		if err != nil {
			stop()
			return nil, err
		}
		sched.Start()
		stops = append(stops, sched.Stop)
		logger.Info("retrain scheduled", "cron", cfg.Retrain.Cron, "next", sched.Next())
	}

	return stop, nil
}

// initialTrain fits the model once at startup. A failed fit is logged and
// leaves the model untrained.
func initialTrain(ctx context.Context, trainer *retrain.Trainer) error {
	_, err := trainer.Reload(ctx)
	if errors.Is(err, regression.ErrSingularSystem) || errors.Is(err, regression.ErrInsufficientSamples) {
		return nil
	}
	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	trainer := newTrainer(cfg, logger, store)
	trainer.OnTrained(func(fit regression.FitReport, err error) {
		if err == nil && !fit.Skipped() {
			if err := report.WriteCoefficients(os.Stdout, fit.Coefficients); err != nil {
				logger.Error("writing coefficients", "error", err)
			}
		}
	})

	files, err := loader.RecordFiles(cfg.General.RecordsDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if _, _, err := importFiles(ctx, store, files); err != nil {
		return err
	}
	if err := initialTrain(ctx, trainer); err != nil {
		return err
	}

	stop, err := startRetraining(ctx, cfg, logger, store, trainer, true)
	if err != nil {
		return err
	}
	defer stop()

	<-ctx.Done()
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	port := servePort
	if port == 0 {
		port = cfg.Web.Port
	}
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, port)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	trainer := newTrainer(cfg, logger, store)
	server := api.NewServer(store, trainer, metrics.New(), logger, addr)

	if err := initialTrain(ctx, trainer); err != nil {
		return err
	}

	stop, err := startRetraining(ctx, cfg, logger, store, trainer, false)
	if err != nil {
		return err
	}
	defer stop()

	fmt.Printf("Serving API at http://%s\n", addr)
	return server.Start(ctx)
}

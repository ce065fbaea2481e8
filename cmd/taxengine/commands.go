package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/avalontax/tax-engine/internal/api"
	"github.com/avalontax/tax-engine/internal/config"
	"github.com/avalontax/tax-engine/internal/database"
	"github.com/avalontax/tax-engine/internal/repository"
	"github.com/avalontax/tax-engine/internal/service"
	"github.com/avalontax/tax-engine/internal/version"
)

// engine bundles the opened database and wired services for one command run.
type engine struct {
	db        *sql.DB
	cfg       *config.Config
	system    *service.SystemService
	taxpayer  *service.TaxpayerService
	processor *service.ProcessorService
	ingest    *service.IngestService
	export    *service.ExportService
}

func newEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tax rules: %w", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	taxpayerRepo := repository.NewTaxpayerRepository(db)
	transactionRepo := repository.NewAssetTransactionRepository(db)
	incomeRepo := repository.NewIncomeHistoryRepository(db)
	donationRepo := repository.NewDonationRepository(db)
	gainRepo := repository.NewRealizedGainRepository(db)
	computationRepo := repository.NewTaxComputationRepository(db)

	return &engine{
		db:       db,
		cfg:      cfg,
		system:   service.NewSystemService(db),
		taxpayer: service.NewTaxpayerService(taxpayerRepo, computationRepo, gainRepo),
		processor: service.NewProcessorService(
			db, taxpayerRepo, transactionRepo, incomeRepo, donationRepo,
			gainRepo, computationRepo, rules, cfg.Processing.Workers,
		),
		ingest: service.NewIngestService(db, taxpayerRepo, transactionRepo, incomeRepo, donationRepo),
		export: service.NewExportService(computationRepo),
	}, nil
}

func (e *engine) close() {
	if err := e.db.Close(); err != nil {
		log.Printf("failed to close database: %v", err)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()
			log.Println("Database schema is up to date")
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	var inputFile string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest NDJSON household records into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()
			return runIngest(cmd.Context(), e, inputFile)
		},
	}
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "path to input NDJSON file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func processCmd() *cobra.Command {
	var taxpayerID string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process pending taxpayers (or one specific taxpayer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			if taxpayerID != "" {
				return e.processor.ProcessTaxpayer(cmd.Context(), taxpayerID)
			}
			return runProcess(cmd.Context(), e)
		},
	}
	cmd.Flags().StringVar(&taxpayerID, "taxpayer", "", "process a single taxpayer by ID")
	return cmd
}

func exportCmd() *cobra.Command {
	var outputFile string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export final liabilities as NDJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()
			return runExport(cmd.Context(), e, outputFile)
		},
	}
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "path to output NDJSON file")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runCmd() *cobra.Command {
	var inputFile, outputFile string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest, process and export in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			if err := runIngest(ctx, e, inputFile); err != nil {
				return err
			}
			if err := runProcess(ctx, e); err != nil {
				return err
			}
			return runExport(ctx, e, outputFile)
		},
	}
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "path to input NDJSON file")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "path to output NDJSON file")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit API and sweep pending taxpayers on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()
			return runServe(e)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(os.Stdout, "taxengine %s\n", version.Version)
		},
	}
}

func runIngest(ctx context.Context, e *engine, inputFile string) error {
	f, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	stats, err := e.ingest.IngestFile(ctx, f)
	if err != nil {
		return err
	}
	log.Printf("Ingested %d taxpayers (%d lines skipped)", stats.Taxpayers, stats.Skipped)
	return nil
}

func runProcess(ctx context.Context, e *engine) error {
	result, err := e.processor.ProcessPending(ctx)
	if err != nil {
		return err
	}
	log.Printf("Processed %d taxpayers (%d failed)", result.Completed+result.Failed, result.Failed)
	return nil
}

func runExport(ctx context.Context, e *engine, outputFile string) error {
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	count, err := e.export.WriteResults(ctx, f)
	if err != nil {
		return err
	}
	log.Printf("Wrote %d results to %s", count, outputFile)
	return nil
}

func runServe(e *engine) error {
	router := api.NewRouter(e.system, e.taxpayer, e.processor, e.cfg)

	server := &http.Server{
		Addr:         e.cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()

	// Periodic sweep keeps newly ingested taxpayers flowing through the
	// pipeline without an explicit process call.
	var scheduler *cron.Cron
	if schedule := e.cfg.Processing.SweepSchedule; schedule != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(schedule, func() {
			result, err := e.processor.ProcessPending(sweepCtx)
			if err != nil {
				log.Printf("pending sweep failed: %v", err)
				return
			}
			if result.Completed+result.Failed > 0 {
				log.Printf("Pending sweep processed %d taxpayers (%d failed)",
					result.Completed+result.Failed, result.Failed)
			}
		}); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
		}
		scheduler.Start()
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", e.cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	cancelSweep()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exited")
	return nil
}

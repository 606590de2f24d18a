package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"custody-backend/internal/bootstrap"
	"custody-backend/internal/config"
	"custody-backend/internal/jobs"
	"custody-backend/internal/logger"
	"custody-backend/internal/scheduler"
	"custody-backend/internal/service"
	"custody-backend/internal/telemetry"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'expire-pending-requests', 'audit-custody', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Asset Custody Cronjob Runner...", "log_level", cfg.Log.Level)

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName+"-cronjob", cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open asset store: %v", err)
	}
	defer store.Close()

	lifecycleSvc := service.NewLifecycleService(store.Assets)

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store.Assets, lifecycleSvc, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if !runJobOnce(jobRunner, *runOnce) {
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}

	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.", "jobs", cronScheduler.Entries())

	// Wait for interrupt signal
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// onceJobs maps -run-once names to jobs.
var onceJobs = map[string]func(*jobs.JobRunner){
	"expire-pending-requests": (*jobs.JobRunner).ExpireStalePendingRequests,
	"audit-custody":           (*jobs.JobRunner).AuditCustodyInvariants,
	"all":                     (*jobs.JobRunner).RunAll,
}

// runJobOnce runs a specific job once; it reports false for an unknown name
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) bool {
	job, ok := onceJobs[jobName]
	if !ok {
		logger.Error("Unknown job name", "job", jobName)
		names := make([]string, 0, len(onceJobs))
		for name := range onceJobs {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("Available jobs:\n")
		for _, name := range names {
			fmt.Printf("  - %s\n", name)
		}
		return false
	}
	job(jobRunner)
	return true
}

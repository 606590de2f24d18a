package jobs

import (
	"time"

	"custody-backend/internal/config"
	"custody-backend/internal/domain"
	"custody-backend/internal/logger"
	"custody-backend/internal/repository"
	"custody-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	assets    repository.AssetRepository
	lifecycle service.LifecycleService
	config    *config.Config
	now       func() time.Time
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(assets repository.AssetRepository, lifecycle service.LifecycleService, cfg *config.Config) *JobRunner {
	return &JobRunner{
		assets:    assets,
		lifecycle: lifecycle,
		config:    cfg,
		now:       time.Now,
	}
}

// Config exposes the configuration the scheduler reads cron specs from.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// systemCaller is the administrator identity jobs act as.
func (jr *JobRunner) systemCaller() domain.Caller {
	return domain.Caller{ID: jr.config.Scheduler.SystemCallerID, IsAdmin: true}
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	log := logger.WithJob(jobName)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "panic", r)
		}
	}()

	start := jr.now()
	log.Info("Starting job")
	jobFunc()
	log.Info("Job completed", "duration_ms", jr.now().Sub(start).Milliseconds())
}

// RunAll runs every maintenance job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ExpireStalePendingRequests()
	jr.AuditCustodyInvariants()
}

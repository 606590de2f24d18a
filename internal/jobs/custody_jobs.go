package jobs

import (
	"context"
	"errors"
	"fmt"

	"custody-backend/internal/domain"
	"custody-backend/internal/logger"
	"custody-backend/internal/repository"
)

// ExpireReport summarises one expiry sweep.
type ExpireReport struct {
	Examined int
	Denied   int
	// Skipped counts requests that changed under the sweep (approved,
	// denied or edited concurrently); they are left for the next run.
	Skipped int
	Failed  int
}

// AuditReport lists records breaking a custody invariant.
type AuditReport struct {
	Examined   int
	Violations []string
}

// ExpireStalePendingRequests denies pending requests older than the configured TTL.
func (jr *JobRunner) ExpireStalePendingRequests() {
	jr.runWithRecovery("ExpireStalePendingRequests", func() {
		report, err := jr.ExpirePending(context.Background())
		if err != nil {
			logger.Error("Failed to expire pending requests", "error", err)
			return
		}
		logger.Info("Expired stale pending requests",
			"examined", report.Examined, "denied", report.Denied,
			"skipped", report.Skipped, "failed", report.Failed)
	})
}

// ExpirePending runs one sweep. Each denial pins the version the sweep read,
// so a request that moved since the listing is skipped, never overwritten.
func (jr *JobRunner) ExpirePending(ctx context.Context) (ExpireReport, error) {
	var report ExpireReport
	cutoff := jr.now().Add(-jr.config.PendingRequestTTL())
	stale, err := jr.assets.List(ctx, repository.AssetFilter{
		Status:        domain.AssetStatusPending,
		CreatedBefore: cutoff,
	})
	if err != nil {
		return report, fmt.Errorf("list stale pending requests: %w", err)
	}

	caller := jr.systemCaller()
	for _, a := range stale {
		report.Examined++
		_, err := jr.lifecycle.Deny(ctx, caller, a.ID, domain.Payload{ExpectedVersion: a.Version})
		switch {
		case err == nil:
			report.Denied++
			logger.Debug("Denied stale pending request", "asset_id", a.ID, "created_at", a.CreatedAt)
		case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, domain.ErrStateMismatch),
			errors.Is(err, domain.ErrNotFound):
			report.Skipped++
			logger.Info("Skipped pending request that changed during sweep", "asset_id", a.ID, "error", err)
		default:
			report.Failed++
			logger.Error("Failed to deny stale pending request", "asset_id", a.ID, "error", err)
		}
	}
	return report, nil
}

// AuditCustodyInvariants scans every record for custody invariant breaches.
func (jr *JobRunner) AuditCustodyInvariants() {
	jr.runWithRecovery("AuditCustodyInvariants", func() {
		report, err := jr.AuditCustody(context.Background())
		if err != nil {
			logger.Error("Failed to audit custody invariants", "error", err)
			return
		}
		if len(report.Violations) > 0 {
			for _, v := range report.Violations {
				logger.Error("Custody invariant violated", "violation", v)
			}
			return
		}
		logger.Info("Custody invariants hold", "examined", report.Examined)
	})
}

func (jr *JobRunner) AuditCustody(ctx context.Context) (AuditReport, error) {
	var report AuditReport
	assets, err := jr.assets.List(ctx, repository.AssetFilter{})
	if err != nil {
		return report, fmt.Errorf("list assets: %w", err)
	}

	ids := make(map[string]bool, len(assets))
	for i := range assets {
		ids[assets[i].ID.String()] = true
	}
	for i := range assets {
		a := &assets[i]
		report.Examined++
		if err := a.CheckInvariants(); err != nil {
			report.Violations = append(report.Violations, err.Error())
		}
		if a.ActionType == domain.ActionTypeReturn {
			if a.LinkedAsset == nil {
				report.Violations = append(report.Violations,
					fmt.Sprintf("asset %s: return record has no linked asset", a.ID))
			} else if !ids[a.LinkedAsset.String()] {
				report.Violations = append(report.Violations,
					fmt.Sprintf("asset %s: linked asset %s does not exist", a.ID, a.LinkedAsset))
			}
		}
	}
	return report, nil
}

package scheduler

import (
	"testing"

	"custody-backend/internal/config"
	"custody-backend/internal/jobs"
	"custody-backend/internal/repository/memory"
	"custody-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runner(t *testing.T, scheduler string) *jobs.JobRunner {
	t.Helper()
	cfg, err := config.Parse([]byte(`
database: {driver: memory}
identity: {jwt_secret: "0123456789abcdef0123456789abcdef"}
storage: {dir: /tmp/custody-scheduler}
` + scheduler))
	require.NoError(t, err)
	store := memory.NewStore()
	return jobs.NewJobRunner(store, service.NewLifecycleService(store), cfg)
}

func TestNewScheduler(t *testing.T) {
	s, err := NewScheduler(runner(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	s.Start()
	s.Stop()
}

func TestNewScheduler_BadSpec(t *testing.T) {
	_, err := NewScheduler(runner(t, `scheduler: {expire_pending_requests: "every tuesday"}`))
	assert.ErrorContains(t, err, "ExpireStalePendingRequests")

	// Five-field specs lack the seconds column the scheduler expects.
	_, err = NewScheduler(runner(t, `scheduler: {audit_custody: "30 3 * * *"}`))
	assert.ErrorContains(t, err, "AuditCustodyInvariants")
}

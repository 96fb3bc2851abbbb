package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	apptesting "github.com/skinflow/tradebot/internal/testing"
)

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := &CheckWALCheckpointsJob{
		log: zerolog.Nop(),
	}
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NoDatabases(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil, nil)
	job.SetLogger(zerolog.Nop())

	err := job.Run()
	assert.NoError(t, err) // Should handle nil databases gracefully
}

func TestCheckWALCheckpointsJob_Run_LiveDatabases(t *testing.T) {
	ledgerDB, cleanupLedger := apptesting.NewTestDB(t, "ledger")
	defer cleanupLedger()
	cacheDB, cleanupCache := apptesting.NewTestDB(t, "cache")
	defer cleanupCache()

	job := NewCheckWALCheckpointsJob(ledgerDB, cacheDB)
	job.SetLogger(zerolog.Nop())

	assert.NoError(t, job.Run())
}

package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLogs(t *testing.T) (*IngestionLogRepository, func()) {
	t.Helper()
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	return repos.Logs, func() { repos.Close() }
}

func TestCreateLog(t *testing.T) {
	repo, cleanup := setupLogs(t)
	defer cleanup()
	ctx := context.Background()

	log := &core.IngestionLog{ID: "log-1", JobID: "job-1", Kind: core.JobKindFullPipeline, Source: "mbs.xml"}
	require.NoError(t, repo.CreateLog(ctx, log))
	assert.Equal(t, core.JobRunning, log.Status)
	assert.False(t, log.StartedAt.IsZero())

	stored, err := repo.GetLog(ctx, "log-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", stored.JobID)
	assert.Equal(t, "mbs.xml", stored.Source)
	assert.False(t, stored.Finalized())

	t.Run("duplicate id", func(t *testing.T) {
		err := repo.CreateLog(ctx, &core.IngestionLog{ID: "log-1"})
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("missing id", func(t *testing.T) {
		err := repo.CreateLog(ctx, &core.IngestionLog{})
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestFinalizeLog_Once(t *testing.T) {
	repo, cleanup := setupLogs(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.CreateLog(ctx, &core.IngestionLog{ID: "log-1", JobID: "job-1"}))

	t.Run("non-terminal status rejected", func(t *testing.T) {
		err := repo.FinalizeLog(ctx, &core.IngestionLog{ID: "log-1", Status: core.JobRunning})
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	final := &core.IngestionLog{
		ID:     "log-1",
		JobID:  "rewritten",
		Status: core.JobCompleted,
		Counts: core.IngestionCounts{Parsed: 10, Created: 8, Skipped: 2},
		Errors: []string{"item 99: negative fee"},
	}
	require.NoError(t, repo.FinalizeLog(ctx, final))

	stored, err := repo.GetLog(ctx, "log-1")
	require.NoError(t, err)
	assert.True(t, stored.Finalized())
	assert.Equal(t, "job-1", stored.JobID)
	assert.Equal(t, 8, stored.Counts.Created)
	assert.Equal(t, []string{"item 99: negative fee"}, stored.Errors)
	assert.False(t, stored.FinishedAt.IsZero())

	err = repo.FinalizeLog(ctx, &core.IngestionLog{ID: "log-1", Status: core.JobFailed})
	assert.ErrorIs(t, err, storage.ErrAlreadyFinalized)

	err = repo.FinalizeLog(ctx, &core.IngestionLog{ID: "unknown", Status: core.JobFailed})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListLogs_NewestFirstPaged(t *testing.T) {
	repo, cleanup := setupLogs(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, repo.CreateLog(ctx, &core.IngestionLog{
			ID:        fmt.Sprintf("log-%d", i),
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	tests := []struct {
		name   string
		limit  int
		offset int
		want   []string
	}{
		{"first page", 2, 0, []string{"log-4", "log-3"}},
		{"second page", 2, 2, []string{"log-2", "log-1"}},
		{"tail", 2, 4, []string{"log-0"}},
		{"past end", 2, 10, nil},
		{"unlimited", 0, 0, []string{"log-4", "log-3", "log-2", "log-1", "log-0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs, total, err := repo.ListLogs(ctx, tt.limit, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, 5, total)
			var ids []string
			for _, l := range logs {
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

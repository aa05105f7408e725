package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/blogpipeline/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.db")
	store, err := Open(path, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := models.NewJob(models.JobConfig{Keyword: "espresso machines", CompanyURL: "https://example.com"})
	require.NoError(t, store.Save(ctx, job))

	loaded, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, loaded.ID)
	require.Equal(t, models.JobStatusPending, loaded.Status)
	require.Equal(t, "espresso machines", loaded.Config.Keyword)
}

func TestStore_ListFiltersByStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	pending := models.NewJob(models.JobConfig{Keyword: "a", CompanyURL: "https://a.example"})
	require.NoError(t, store.Save(ctx, pending))

	running := models.NewJob(models.JobConfig{Keyword: "b", CompanyURL: "https://b.example"})
	running.Status = models.JobStatusRunning
	require.NoError(t, store.Save(ctx, running))

	pendingOnly, err := store.List(ctx, models.JobStatusPending)
	require.NoError(t, err)
	require.Len(t, pendingOnly, 1)
	require.Equal(t, pending.ID, pendingOnly[0].ID)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestStore_ListPendingOrderedByPriorityThenCreatedAt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	low := models.NewJob(models.JobConfig{Keyword: "low", CompanyURL: "https://low.example", Priority: 3})
	require.NoError(t, store.Save(ctx, low))

	high := models.NewJob(models.JobConfig{Keyword: "high", CompanyURL: "https://high.example", Priority: 1})
	require.NoError(t, store.Save(ctx, high))

	ordered, err := store.ListPendingOrdered(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	require.Equal(t, high.ID, ordered[0].ID)
	require.Equal(t, low.ID, ordered[1].ID)
}

func TestStore_DeleteCompletedBefore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := models.NewJob(models.JobConfig{Keyword: "old", CompanyURL: "https://old.example"})
	old.Status = models.JobStatusCompleted
	oldCompletedAt := time.Now().AddDate(0, 0, -10)
	old.CompletedAt = &oldCompletedAt
	require.NoError(t, store.Save(ctx, old))

	recent := models.NewJob(models.JobConfig{Keyword: "recent", CompanyURL: "https://recent.example"})
	recent.Status = models.JobStatusCompleted
	recentCompletedAt := time.Now()
	recent.CompletedAt = &recentCompletedAt
	require.NoError(t, store.Save(ctx, recent))

	deleted, err := store.DeleteCompletedBefore(ctx, time.Now().AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	remaining, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, recent.ID, remaining[0].ID)
}

func TestStore_CountByStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := models.NewJob(models.JobConfig{Keyword: "x", CompanyURL: "https://x.example"})
	require.NoError(t, store.Save(ctx, job))

	n, err := store.CountByStatus(ctx, models.JobStatusPending)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = store.CountByStatus(ctx, models.JobStatusRunning)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

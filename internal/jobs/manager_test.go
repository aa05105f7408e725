package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/blogpipeline/internal/common"
	"github.com/ternarybob/blogpipeline/internal/models"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
	"github.com/ternarybob/blogpipeline/internal/storage/sqlite"
)

type fakeStage struct {
	name string
	fn   func(ctx context.Context, ec *pipeline.ExecutionContext) error
}

func (f *fakeStage) Number() int  { return 0 }
func (f *fakeStage) Name() string { return f.name }
func (f *fakeStage) Execute(ctx context.Context, ec *pipeline.ExecutionContext) error {
	if f.fn != nil {
		return f.fn(ctx, ec)
	}
	return nil
}

func newTestManager(t *testing.T, head []pipeline.Stage) *Manager {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "jobs.db"), arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runner := pipeline.NewRunner(head, nil, nil, arbor.NewLogger())
	return NewManager(store, runner, common.JobsConfig{Concurrency: 2}, arbor.NewLogger())
}

func TestManager_SubmitRejectsMissingFields(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.Submit(context.Background(), models.JobConfig{})
	require.Error(t, err)
}

func TestManager_SubmitPersistsPendingJob(t *testing.T) {
	m := newTestManager(t, nil)
	job, err := m.Submit(context.Background(), models.JobConfig{Keyword: "k", CompanyURL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, models.JobStatusPending, job.Status)

	loaded, err := m.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, loaded.ID)
}

func TestManager_RunSyncCompletesJob(t *testing.T) {
	head := []pipeline.Stage{&fakeStage{name: "noop"}}
	m := newTestManager(t, head)

	job, err := m.RunSync(context.Background(), models.JobConfig{Keyword: "k", CompanyURL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, job.Status)
	require.Equal(t, 100, job.ProgressPercent)

	stats := m.CurrentStats()
	require.Equal(t, 1, stats.TotalCompleted)
}

func TestManager_RunSyncRecordsFailure(t *testing.T) {
	head := []pipeline.Stage{&fakeStage{name: "data_fetch", fn: func(ctx context.Context, ec *pipeline.ExecutionContext) error {
		return errors.New("boom")
	}}}
	m := newTestManager(t, head)

	job, err := m.RunSync(context.Background(), models.JobConfig{Keyword: "k", CompanyURL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, models.JobStatusFailed, job.Status)
	require.NotEmpty(t, job.ErrorMessage)
}

func TestManager_CancelUnknownJobReturnsFalse(t *testing.T) {
	m := newTestManager(t, nil)
	require.False(t, m.Cancel("nonexistent"))
}

func TestManager_DispatchTickRespectsConcurrencyLimit(t *testing.T) {
	release := make(chan struct{})
	head := []pipeline.Stage{&fakeStage{name: "blocking", fn: func(ctx context.Context, ec *pipeline.ExecutionContext) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}}}
	m := newTestManager(t, head)
	m.cfg.Concurrency = 1
	ctx := context.Background()

	first, err := m.Submit(ctx, models.JobConfig{Keyword: "first", CompanyURL: "https://a.example"})
	require.NoError(t, err)
	second, err := m.Submit(ctx, models.JobConfig{Keyword: "second", CompanyURL: "https://b.example"})
	require.NoError(t, err)

	m.dispatchTick(ctx)
	time.Sleep(20 * time.Millisecond)

	m.mu.Lock()
	runningCount := len(m.running)
	m.mu.Unlock()
	require.Equal(t, 1, runningCount)

	m.dispatchTick(ctx)
	m.mu.Lock()
	runningCountAfter := len(m.running)
	m.mu.Unlock()
	require.Equal(t, 1, runningCountAfter)

	close(release)
	require.Eventually(t, func() bool {
		loadedFirst, _ := m.Get(ctx, first.ID)
		return loadedFirst.Status.IsTerminal()
	}, time.Second, 10*time.Millisecond)

	_ = second
}

// Package jobs implements the job manager: a persistent FIFO-by-priority
// queue with bounded concurrency, cooperative cancellation, a retention
// sweep, and moving-average stats (spec.md §4.5 Job Manager, §5
// Concurrency & Resource Model).
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/common"
	"github.com/ternarybob/blogpipeline/internal/models"
	"github.com/ternarybob/blogpipeline/internal/perrors"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
	"github.com/ternarybob/blogpipeline/internal/storage/sqlite"
)

const tickInterval = 5 * time.Second

// Manager owns the job lifecycle: submission, scheduling, execution,
// cancellation, and cleanup. One Manager is created per process and
// shared by the HTTP server and the CLI's synchronous path.
type Manager struct {
	store  *sqlite.Store
	runner *pipeline.Runner
	cfg    common.JobsConfig
	logger arbor.ILogger

	mu      sync.Mutex
	running map[string]context.CancelFunc

	statsMu  sync.Mutex
	stats    Stats
	stopOnce sync.Once
	stopCh   chan struct{}
	cron     *cron.Cron
}

// Stats is the running tally GET /jobs/stats reports (spec.md §4.5).
type Stats struct {
	TotalSubmitted   int
	TotalCompleted   int
	TotalFailed      int
	TotalCancelled   int
	AverageDurationS float64
}

func NewManager(store *sqlite.Store, runner *pipeline.Runner, cfg common.JobsConfig, logger arbor.ILogger) *Manager {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	return &Manager{
		store:   store,
		runner:  runner,
		cfg:     cfg,
		logger:  logger,
		running: make(map[string]context.CancelFunc),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the background dispatch tick and the retention sweep
// cron entry. Safe to call once per Manager lifetime.
func (m *Manager) Start(ctx context.Context) error {
	m.cron = cron.New(cron.WithSeconds())
	schedule := m.cfg.CleanupSchedule
	if schedule == "" {
		schedule = "0 0 0 * * *"
	}
	if _, err := m.cron.AddFunc(schedule, func() { m.sweep(ctx) }); err != nil {
		return fmt.Errorf("jobs: schedule cleanup: %w", err)
	}
	m.cron.Start()

	go m.dispatchLoop(ctx)
	return nil
}

// Stop halts the dispatch loop and cron entries. In-flight jobs are
// left to finish; use Cancel to stop a specific one.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if m.cron != nil {
		m.cron.Stop()
	}
}

// Submit validates and persists a new pending job, to be picked up by
// the next dispatch tick (spec.md §6 POST /write-async).
func (m *Manager) Submit(ctx context.Context, config models.JobConfig) (*models.Job, error) {
	config.Normalize()
	if missing := config.MissingFields(); len(missing) > 0 {
		return nil, perrors.Classify(fmt.Errorf("missing required fields: %v", missing), perrors.KindValidation, "stage_00", "submit")
	}

	job := models.NewJob(config)
	if err := m.store.Save(ctx, job); err != nil {
		return nil, err
	}
	m.statsMu.Lock()
	m.stats.TotalSubmitted++
	m.statsMu.Unlock()
	return job, nil
}

// RunSync submits a job and executes it inline, blocking until it
// finishes or its max duration elapses (spec.md §6 POST /write). It
// bypasses the concurrency gate entirely: the caller is already
// willing to wait, so there is no reason to queue behind unrelated work.
func (m *Manager) RunSync(ctx context.Context, config models.JobConfig) (*models.Job, error) {
	job, err := m.Submit(ctx, config)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, job.MaxDuration())
	defer cancel()

	m.markRunning(runCtx, job, cancel)
	m.execute(runCtx, job)

	final, err := m.store.Get(ctx, job.ID)
	if err != nil {
		return job, err
	}
	return final, nil
}

// Get loads a single job's current record.
func (m *Manager) Get(ctx context.Context, id string) (*models.Job, error) {
	return m.store.Get(ctx, id)
}

// List returns jobs, optionally filtered by status, newest first.
func (m *Manager) List(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	return m.store.List(ctx, status)
}

// Cancel requests cooperative cancellation of a running job. Returns
// false if the job is not currently running (it may be pending,
// already terminal, or unknown).
func (m *Manager) Cancel(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.running[jobID]
	if !ok {
		return false
	}
	cancel()
	return true
}

// CurrentStats returns a snapshot of the running totals.
func (m *Manager) CurrentStats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// dispatchLoop ticks every tickInterval, scheduling up to
// (max_concurrent - running) pending jobs ordered by priority then
// created_at (spec.md §4.5 step-by-step tick description).
func (m *Manager) dispatchLoop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.dispatchTick(ctx)
		}
	}
}

func (m *Manager) dispatchTick(ctx context.Context) {
	m.mu.Lock()
	runningCount := len(m.running)
	m.mu.Unlock()

	slots := m.cfg.Concurrency - runningCount
	if slots <= 0 {
		return
	}

	pending, err := m.store.ListPendingOrdered(ctx, slots)
	if err != nil {
		m.logger.Error().Err(err).Msg("jobs: list pending failed")
		return
	}

	for _, job := range pending {
		runCtx, cancel := context.WithTimeout(context.Background(), job.MaxDuration())
		m.markRunning(runCtx, job, cancel)
		go func(job *models.Job, runCtx context.Context, cancel context.CancelFunc) {
			defer cancel()
			m.execute(runCtx, job)
		}(job, runCtx, cancel)
	}
}

func (m *Manager) markRunning(ctx context.Context, job *models.Job, cancel context.CancelFunc) {
	now := time.Now()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	if err := m.store.Save(ctx, job); err != nil {
		m.logger.Error().Err(err).Str("job_id", job.ID).Msg("jobs: failed to mark job running")
	}
	m.mu.Lock()
	m.running[job.ID] = cancel
	m.mu.Unlock()
}

// execute drives one job through the pipeline runner, persisting
// progress after every stage and the terminal result at the end
// (spec.md §4.5).
func (m *Manager) execute(ctx context.Context, job *models.Job) {
	defer func() {
		m.mu.Lock()
		delete(m.running, job.ID)
		m.mu.Unlock()
	}()

	ec := pipeline.NewExecutionContext(job.ID, job.Config)

	onProgress := func(stageNumber int, stageName string) {
		job.StagesCompleted = stageNumber + 1
		job.CurrentStage = stageName
		job.ProgressPercent = job.StagesCompleted * 100 / job.TotalStages
		if err := m.store.Save(context.Background(), job); err != nil {
			m.logger.Warn().Err(err).Str("job_id", job.ID).Msg("jobs: failed to persist progress")
		}
	}

	runErr := m.runner.Run(ctx, ec, onProgress)

	now := time.Now()
	job.CompletedAt = &now
	if job.StartedAt != nil {
		job.DurationSeconds = now.Sub(*job.StartedAt).Seconds()
	}

	switch {
	case runErr != nil && ctx.Err() == context.Canceled:
		job.Status = models.JobStatusCancelled
		m.recordTerminal(&m.stats.TotalCancelled)
	case runErr != nil && ctx.Err() == context.DeadlineExceeded:
		job.Status = models.JobStatusTimeout
		job.ErrorMessage = models.TruncatedError(runErr)
		m.recordTerminal(&m.stats.TotalFailed)
	case runErr != nil:
		job.Status = models.JobStatusFailed
		job.ErrorMessage = models.TruncatedError(runErr)
		m.recordTerminal(&m.stats.TotalFailed)
	default:
		job.Status = models.JobStatusCompleted
		job.ProgressPercent = 100
		job.Result = buildResult(ec)
		m.recordTerminal(&m.stats.TotalCompleted)
		m.recordDuration(job.DurationSeconds)
	}

	if err := m.store.Save(context.Background(), job); err != nil {
		m.logger.Error().Err(err).Str("job_id", job.ID).Msg("jobs: failed to persist terminal job state")
	}
}

func (m *Manager) recordTerminal(counter *int) {
	m.statsMu.Lock()
	*counter++
	m.statsMu.Unlock()
}

// recordDuration folds a new completed-job duration into the running
// average (spec.md §4.5 average_duration_seconds).
func (m *Manager) recordDuration(seconds float64) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	n := float64(m.stats.TotalCompleted)
	if n <= 1 {
		m.stats.AverageDurationS = seconds
		return
	}
	m.stats.AverageDurationS += (seconds - m.stats.AverageDurationS) / n
}

// sweep deletes terminal jobs older than the retention window (spec.md
// §4.5 "sweep terminal jobs older than N days and delete them").
func (m *Manager) sweep(ctx context.Context) {
	days := m.cfg.RetentionDays
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	deleted, err := m.store.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		m.logger.Error().Err(err).Msg("jobs: retention sweep failed")
		return
	}
	if deleted > 0 {
		m.logger.Info().Int64("deleted", deleted).Msg("jobs: retention sweep removed expired jobs")
	}
}

func buildResult(ec *pipeline.ExecutionContext) *models.JobResult {
	result := &models.JobResult{StorageResult: ec.StorageResult}
	if ec.RawArticle != nil {
		result.FinalArticle = map[string]any{
			"headline":   ec.RawArticle.Headline,
			"html":       ec.FinalHTML,
			"word_count": ec.WordCount,
		}
	}
	if ec.Quality != nil {
		result.QualityReport = map[string]any{
			"passed":          ec.Quality.Passed,
			"keyword_density": ec.Quality.KeywordDensity,
			"issues":          ec.Quality.Issues,
		}
	}
	return result
}

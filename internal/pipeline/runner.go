package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/perrors"
)

// Runner drives one job through every stage in order: stages 0-3
// sequentially, stages 4-9 fanned out, then 10-12 sequentially against
// the merged fan-out result (spec.md §4.4, §8).
type Runner struct {
	sequentialHead []Stage         // stages 0-3
	parallel       []ParallelStage // stages 4-9
	sequentialTail []Stage         // stages 10-12
	logger         arbor.ILogger
}

// NewRunner assembles a Runner from its three phases. Stage numbers
// within each phase are executed in slice order.
func NewRunner(head []Stage, parallel []ParallelStage, tail []Stage, logger arbor.ILogger) *Runner {
	return &Runner{sequentialHead: head, parallel: parallel, sequentialTail: tail, logger: logger}
}

// Run executes every stage against ec, invoking onProgress after each
// one completes (successfully or degraded). A critical-stage failure
// aborts the run and returns its error; a non-critical failure is
// logged and the run continues with that stage's contribution missing
// (spec.md §4.1, §8 invariants).
func (r *Runner) Run(ctx context.Context, ec *ExecutionContext, onProgress ProgressFunc) error {
	for _, stage := range r.sequentialHead {
		if err := r.runSequential(ctx, stage, ec); err != nil {
			return err
		}
		reportProgress(onProgress, stage.Number(), stage.Name())
	}

	if err := r.runParallel(ctx, ec, onProgress); err != nil {
		return err
	}
	ec.Merge()

	for _, stage := range r.sequentialTail {
		if stage.Number() == 11 && !needsReviewIteration(ec) {
			reportProgress(onProgress, stage.Number(), stage.Name())
			continue
		}
		if err := r.runSequential(ctx, stage, ec); err != nil {
			return err
		}
		reportProgress(onProgress, stage.Number(), stage.Name())
	}

	return nil
}

func (r *Runner) runSequential(ctx context.Context, stage Stage, ec *ExecutionContext) error {
	stageID := fmt.Sprintf("stage_%02d", stage.Number())
	err := stage.Execute(ctx, ec)
	if err == nil {
		return nil
	}

	classified := perrors.Classify(err, perrors.KindInternal, stageID, stage.Name())
	if c, ok := perrors.As(err); ok {
		classified = c
	}

	if perrors.IsCriticalStage(stageID) {
		r.logger.Error().Str("stage", stageID).Err(classified).Msg("critical stage failed, aborting job")
		return classified
	}

	r.logger.Warn().Str("stage", stageID).Err(classified).Msg("non-critical stage failed, continuing with degraded output")
	return nil
}

// runParallel launches every fan-out stage concurrently and waits for
// all of them. A critical-stage failure (no critical stage fans out at
// present) does not cancel the others; the first one is returned after
// every stage has finished. Non-critical failures are logged and that
// stage simply contributes nothing to the merge.
func (r *Runner) runParallel(ctx context.Context, ec *ExecutionContext, onProgress ProgressFunc) error {
	handle := ec.Handle()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstCritical error

	for _, stage := range r.parallel {
		wg.Add(1)
		go func(stage ParallelStage) {
			defer wg.Done()
			stageID := fmt.Sprintf("stage_%02d", stage.Number())

			err := stage.ExecuteParallel(ctx, handle)
			if err != nil {
				classified := perrors.Classify(err, perrors.KindInternal, stageID, stage.Name())
				if c, ok := perrors.As(err); ok {
					classified = c
				}
				if perrors.IsCriticalStage(stageID) {
					mu.Lock()
					if firstCritical == nil {
						firstCritical = classified
					}
					mu.Unlock()
					r.logger.Error().Str("stage", stageID).Err(classified).Msg("critical parallel stage failed")
				} else {
					r.logger.Warn().Str("stage", stageID).Err(classified).Msg("non-critical parallel stage failed, degrading")
				}
			}
			reportProgress(onProgress, stage.Number(), stage.Name())
		}(stage)
	}
	wg.Wait()

	return firstCritical
}

func reportProgress(onProgress ProgressFunc, num int, name string) {
	if onProgress != nil {
		onProgress(num, name)
	}
}

// needsReviewIteration decides whether stage 11 (review) should run at
// all: only when the configuration requested review prompts (spec.md
// §4.4 stage 11: conditional on review_prompts being non-empty).
func needsReviewIteration(ec *ExecutionContext) bool {
	return len(ec.Config.ReviewPrompts) > 0
}

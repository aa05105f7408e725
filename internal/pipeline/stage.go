package pipeline

import "context"

// Stage is one numbered step of the content pipeline (spec.md §4.4).
// Sequential stages take and return the shared context directly;
// fan-out stages instead implement ParallelStage.
type Stage interface {
	Number() int
	Name() string
	Execute(ctx context.Context, ec *ExecutionContext) error
}

// ParallelStage is a stage that runs concurrently with its siblings
// during the fan-out phase (stages 4-9). It only ever sees the narrow
// ParallelHandle view of the context, never the full ExecutionContext,
// so it cannot race with another fan-out stage on shared fields.
type ParallelStage interface {
	Number() int
	Name() string
	ExecuteParallel(ctx context.Context, handle *ParallelHandle) error
}

// ProgressFunc reports stage completion back to the job manager so it
// can update a job's stages_completed/progress_percent fields (spec.md
// §4.5).
type ProgressFunc func(stageNumber int, stageName string)

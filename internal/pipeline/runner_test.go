package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/models"
)

type fakeStage struct {
	num  int
	name string
	fn   func(ctx context.Context, ec *ExecutionContext) error
}

func (f *fakeStage) Number() int { return f.num }
func (f *fakeStage) Name() string { return f.name }
func (f *fakeStage) Execute(ctx context.Context, ec *ExecutionContext) error {
	if f.fn != nil {
		return f.fn(ctx, ec)
	}
	return nil
}

type fakeParallelStage struct {
	num  int
	name string
	fn   func(ctx context.Context, h *ParallelHandle) error
}

func (f *fakeParallelStage) Number() int { return f.num }
func (f *fakeParallelStage) Name() string { return f.name }
func (f *fakeParallelStage) ExecuteParallel(ctx context.Context, h *ParallelHandle) error {
	return f.fn(ctx, h)
}

func TestRunner_RunsSequentialAndParallelPhases(t *testing.T) {
	head := []Stage{
		&fakeStage{num: 0, name: "data_fetch"},
		&fakeStage{num: 1, name: "prompt_build"},
	}
	parallel := []ParallelStage{
		&fakeParallelStage{num: 4, name: "citations", fn: func(ctx context.Context, h *ParallelHandle) error {
			return h.Put(KeyCitations, &models.CitationList{})
		}},
		&fakeParallelStage{num: 5, name: "internal_links", fn: func(ctx context.Context, h *ParallelHandle) error {
			return h.Put(KeyInternalLinks, []models.InternalLink{{URL: "https://a.com"}})
		}},
	}
	tail := []Stage{
		&fakeStage{num: 10, name: "cleanup_merge"},
		&fakeStage{num: 11, name: "review"},
		&fakeStage{num: 12, name: "storage"},
	}

	runner := NewRunner(head, parallel, tail, arbor.NewLogger())
	ec := NewExecutionContext("job-1", models.JobConfig{})

	var progressed []int
	err := runner.Run(context.Background(), ec, func(n int, name string) {
		progressed = append(progressed, n)
	})

	require.NoError(t, err)
	assert.NotNil(t, ec.Citations)
	require.Len(t, ec.InternalLinks, 1)
	assert.Equal(t, "https://a.com", ec.InternalLinks[0].URL)
	assert.Contains(t, progressed, 0)
	assert.Contains(t, progressed, 12)
}

func TestRunner_SkipsReviewWhenNoReviewPrompts(t *testing.T) {
	reviewCalled := false
	tail := []Stage{
		&fakeStage{num: 11, name: "review", fn: func(ctx context.Context, ec *ExecutionContext) error {
			reviewCalled = true
			return nil
		}},
	}
	runner := NewRunner(nil, nil, tail, arbor.NewLogger())
	ec := NewExecutionContext("job-2", models.JobConfig{})

	err := runner.Run(context.Background(), ec, nil)
	require.NoError(t, err)
	assert.False(t, reviewCalled)
}

func TestRunner_AbortsOnCriticalStageFailure(t *testing.T) {
	head := []Stage{
		&fakeStage{num: 0, name: "data_fetch", fn: func(ctx context.Context, ec *ExecutionContext) error {
			return errors.New("fetch failed")
		}},
	}
	tail := []Stage{
		&fakeStage{num: 12, name: "storage", fn: func(ctx context.Context, ec *ExecutionContext) error {
			t.Fatal("storage stage must not run after a critical abort")
			return nil
		}},
	}
	runner := NewRunner(head, nil, tail, arbor.NewLogger())
	ec := NewExecutionContext("job-3", models.JobConfig{})

	err := runner.Run(context.Background(), ec, nil)
	assert.Error(t, err)
}

func TestRunner_ContinuesPastNonCriticalStageFailure(t *testing.T) {
	tail := []Stage{
		&fakeStage{num: 7, name: "metadata"},
		&fakeStage{num: 8, name: "faq", fn: func(ctx context.Context, ec *ExecutionContext) error {
			return errors.New("faq generation failed")
		}},
		&fakeStage{num: 12, name: "storage"},
	}
	runner := NewRunner(nil, nil, tail, arbor.NewLogger())
	ec := NewExecutionContext("job-4", models.JobConfig{})

	err := runner.Run(context.Background(), ec, nil)
	assert.NoError(t, err)
}

// Package pipeline_test tests stage selection, skip-if-exists and fail-fast
// semantics of the orchestrator.
package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/corpus-prep/internal/pipeline"
)

var errMockStage = errors.New("mock stage error")

// spyStage counts invocations of its action.
type spyStage struct {
	calls int
	err   error
}

func (s *spyStage) run(_ context.Context) error {
	s.calls++

	return s.err
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "pipeline-test.log")
	require.NoError(t, err)

	return log
}

// spyNotifier records every stage result it receives.
type spyNotifier struct {
	results []pipeline.StageResult
}

func (n *spyNotifier) StageCompleted(_ context.Context, result pipeline.StageResult) error {
	n.results = append(n.results, result)

	return nil
}

func threeStages(spies []*spyStage, outputs []string) []pipeline.Stage {
	return []pipeline.Stage{
		{ID: 1, Name: "load", Run: spies[0].run, ExpectedOutput: outputs[0]},
		{ID: 2, Name: "audit", Run: spies[1].run, ExpectedOutput: outputs[1]},
		{ID: 3, Name: "clean", Run: spies[2].run, ExpectedOutput: outputs[2]},
	}
}

func TestRunAllStagesInOrder(t *testing.T) {
	t.Parallel()

	spies := []*spyStage{{}, {}, {}}
	runner := pipeline.NewRunner(
		threeStages(spies, []string{"", "", ""}), nil, newTestLogger(t),
	)

	trace, err := runner.Run(context.Background(), pipeline.Options{})
	require.NoError(t, err)
	require.Len(t, trace, 3)

	for index, result := range trace {
		assert.Equal(t, index+1, result.ID)
		assert.Equal(t, pipeline.StatusOK, result.Status)
	}

	for _, spy := range spies {
		assert.Equal(t, 1, spy.calls)
	}
}

func TestRunFailFast(t *testing.T) {
	t.Parallel()

	spies := []*spyStage{{}, {err: errMockStage}, {}}
	runner := pipeline.NewRunner(
		threeStages(spies, []string{"", "", ""}), nil, newTestLogger(t),
	)

	trace, err := runner.Run(context.Background(), pipeline.Options{
		Stages: []int{1, 2, 3},
	})
	require.ErrorIs(t, err, pipeline.ErrStageFailed)

	require.Len(t, trace, 2)
	assert.Equal(t, pipeline.StatusOK, trace[0].Status)
	assert.Equal(t, pipeline.StatusFailed, trace[1].Status)
	assert.Contains(t, trace[1].Err, "mock stage error")

	assert.Zero(t, spies[2].calls, "stage 3 must never run after stage 2 fails")
}

func TestRunSkipIfExists(t *testing.T) {
	t.Parallel()

	existing := filepath.Join(t.TempDir(), "output.csv")
	require.NoError(t, os.WriteFile(existing, []byte("done"), 0o600))

	spies := []*spyStage{{}, {}, {}}
	runner := pipeline.NewRunner(
		threeStages(spies, []string{existing, "", ""}), nil, newTestLogger(t),
	)

	trace, err := runner.Run(context.Background(), pipeline.Options{SkipExisting: true})
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusSkipped, trace[0].Status)
	assert.Zero(t, spies[0].calls, "skipped stage action must not be invoked")
	assert.Equal(t, pipeline.StatusOK, trace[1].Status)
	assert.Equal(t, 1, spies[1].calls)
}

func TestRunWithoutSkipFlagIgnoresExistingOutput(t *testing.T) {
	t.Parallel()

	existing := filepath.Join(t.TempDir(), "output.csv")
	require.NoError(t, os.WriteFile(existing, []byte("done"), 0o600))

	spies := []*spyStage{{}, {}, {}}
	runner := pipeline.NewRunner(
		threeStages(spies, []string{existing, "", ""}), nil, newTestLogger(t),
	)

	_, err := runner.Run(context.Background(), pipeline.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, spies[0].calls)
}

func TestRunSubsetLeavesOthersUntouched(t *testing.T) {
	t.Parallel()

	spies := []*spyStage{{}, {}, {}}
	runner := pipeline.NewRunner(
		threeStages(spies, []string{"", "", ""}), nil, newTestLogger(t),
	)

	trace, err := runner.Run(context.Background(), pipeline.Options{Stages: []int{3}})
	require.NoError(t, err)
	require.Len(t, trace, 1)

	assert.Equal(t, 3, trace[0].ID)
	assert.Zero(t, spies[0].calls)
	assert.Zero(t, spies[1].calls)
	assert.Equal(t, 1, spies[2].calls)
}

// The orchestrator does not verify that a requested subset's upstream inputs
// exist; the stage itself must surface the missing input. This documents the
// trust-the-caller contract.
func TestRunSubsetDoesNotValidateUpstream(t *testing.T) {
	t.Parallel()

	missingInput := errors.New("raw metadata table not found")

	spies := []*spyStage{{}, {}, {err: missingInput}}
	runner := pipeline.NewRunner(
		threeStages(spies, []string{"", "", ""}), nil, newTestLogger(t),
	)

	trace, err := runner.Run(context.Background(), pipeline.Options{Stages: []int{3}})
	require.ErrorIs(t, err, pipeline.ErrStageFailed)

	require.Len(t, trace, 1)
	assert.Equal(t, pipeline.StatusFailed, trace[0].Status)
	assert.Equal(t, 1, spies[2].calls, "the stage runs; the failure comes from inside it")
}

func TestRunSubsetPreservesPipelineOrder(t *testing.T) {
	t.Parallel()

	spies := []*spyStage{{}, {}, {}}
	runner := pipeline.NewRunner(
		threeStages(spies, []string{"", "", ""}), nil, newTestLogger(t),
	)

	trace, err := runner.Run(context.Background(), pipeline.Options{Stages: []int{3, 1}})
	require.NoError(t, err)
	require.Len(t, trace, 2)

	assert.Equal(t, 1, trace[0].ID)
	assert.Equal(t, 3, trace[1].ID)
}

func TestRunUnknownStageID(t *testing.T) {
	t.Parallel()

	spies := []*spyStage{{}, {}, {}}
	runner := pipeline.NewRunner(
		threeStages(spies, []string{"", "", ""}), nil, newTestLogger(t),
	)

	_, err := runner.Run(context.Background(), pipeline.Options{Stages: []int{9}})
	require.ErrorIs(t, err, pipeline.ErrUnknownStage)
}

func TestRunNotifiesEveryResult(t *testing.T) {
	t.Parallel()

	notifier := &spyNotifier{}
	spies := []*spyStage{{}, {err: errMockStage}, {}}
	runner := pipeline.NewRunner(
		threeStages(spies, []string{"", "", ""}), notifier, newTestLogger(t),
	)

	_, err := runner.Run(context.Background(), pipeline.Options{})
	require.ErrorIs(t, err, pipeline.ErrStageFailed)

	require.Len(t, notifier.results, 2)
	assert.Equal(t, pipeline.StatusOK, notifier.results[0].Status)
	assert.Equal(t, pipeline.StatusFailed, notifier.results[1].Status)
}

// Package pipeline implements the stage orchestrator: an ordered list of
// stages, each with one expected output artifact, executed with
// skip-if-exists and strict fail-fast semantics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/book-expert/logger"
)

// Status is the terminal state of a stage within one run.
type Status string

// Stage statuses surfaced in the run trace.
const (
	StatusOK      Status = "OK"
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
)

// Static errors.
var (
	// ErrStageFailed halts the run; subsequent stages are never started.
	ErrStageFailed = errors.New("stage failed")
	// ErrUnknownStage indicates a requested stage id that is not defined.
	ErrUnknownStage = errors.New("unknown stage id")
)

// Stage is one unit of pipeline work. ExpectedOutput is the single artifact
// used for the skip-if-exists check; stages without one are never skipped.
type Stage struct {
	ID             int
	Name           string
	Run            func(ctx context.Context) error
	ExpectedOutput string
}

// StageResult is one entry of the per-run status trace.
type StageResult struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Err    string `json:"error,omitempty"`
}

// Options selects which stages run and whether existing outputs short-circuit
// them.
type Options struct {
	// Stages restricts the run to these stage ids, in pipeline order.
	// Empty means all stages. The orchestrator does not validate that
	// upstream dependencies of a requested subset have already completed;
	// that responsibility stays with the caller.
	Stages []int
	// SkipExisting marks a stage SKIPPED without executing it when its
	// expected output already exists.
	SkipExisting bool
}

// Notifier receives each stage result as it is produced. Implementations must
// not block the run; notification failures are logged and ignored.
type Notifier interface {
	StageCompleted(ctx context.Context, result StageResult) error
}

// Runner sequences the stages. It owns no data itself: every stage is opaque
// beyond its action and expected output.
type Runner struct {
	stages   []Stage
	notifier Notifier
	log      *logger.Logger
}

// NewRunner creates a Runner over an ordered stage list. The notifier may be
// nil.
func NewRunner(stages []Stage, notifier Notifier, log *logger.Logger) *Runner {
	return &Runner{
		stages:   stages,
		notifier: notifier,
		log:      log,
	}
}

// Run executes the selected stages in order. It returns the trace of every
// stage that was considered, plus ErrStageFailed wrapping the underlying
// error if any stage failed. On failure no later stage is started.
func (r *Runner) Run(ctx context.Context, opts Options) ([]StageResult, error) {
	selected, err := r.selectStages(opts.Stages)
	if err != nil {
		return nil, err
	}

	trace := make([]StageResult, 0, len(selected))

	for _, stage := range selected {
		result := r.runStage(ctx, stage, opts.SkipExisting)
		trace = append(trace, result)

		r.notify(ctx, result)

		if result.Status == StatusFailed {
			return trace, fmt.Errorf(
				"%w: %s: %s", ErrStageFailed, stage.Name, result.Err,
			)
		}
	}

	return trace, nil
}

// Stages returns the configured stage list, for display purposes.
func (r *Runner) Stages() []Stage {
	return slices.Clone(r.stages)
}

func (r *Runner) runStage(ctx context.Context, stage Stage, skipExisting bool) StageResult {
	result := StageResult{
		ID:     stage.ID,
		Name:   stage.Name,
		Status: StatusOK,
		Err:    "",
	}

	if skipExisting && stage.ExpectedOutput != "" && pathExists(stage.ExpectedOutput) {
		result.Status = StatusSkipped

		r.log.Info("Stage %d (%s): output exists, skipping", stage.ID, stage.Name)

		return result
	}

	r.log.Info("Stage %d (%s): running", stage.ID, stage.Name)

	runErr := stage.Run(ctx)
	if runErr != nil {
		result.Status = StatusFailed
		result.Err = runErr.Error()

		r.log.Error("Stage %d (%s): failed: %v", stage.ID, stage.Name, runErr)

		return result
	}

	r.log.Info("Stage %d (%s): ok", stage.ID, stage.Name)

	return result
}

func (r *Runner) selectStages(requested []int) ([]Stage, error) {
	if len(requested) == 0 {
		return r.stages, nil
	}

	byID := make(map[int]Stage, len(r.stages))
	for _, stage := range r.stages {
		byID[stage.ID] = stage
	}

	for _, id := range requested {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownStage, id)
		}
	}

	selected := make([]Stage, 0, len(requested))

	// Preserve pipeline order regardless of the order ids were requested in.
	for _, stage := range r.stages {
		if slices.Contains(requested, stage.ID) {
			selected = append(selected, stage)
		}
	}

	return selected, nil
}

func (r *Runner) notify(ctx context.Context, result StageResult) {
	if r.notifier == nil {
		return
	}

	notifyErr := r.notifier.StageCompleted(ctx, result)
	if notifyErr != nil {
		r.log.Warn("Failed to publish stage result for %s: %v", result.Name, notifyErr)
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

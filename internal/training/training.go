// Package training adapts the external model-training process to the
// core.Trainer interface. The pipeline treats training as an opaque stage
// whose only contract is the model artifact directory it must produce.
package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/book-expert/logger"
)

// Static errors.
var (
	// ErrTrainFailed indicates the external trainer exited with an error.
	ErrTrainFailed = errors.New("external training failed")
	// ErrCommandEmpty indicates no training command was configured.
	ErrCommandEmpty = errors.New("training command cannot be empty")
	// ErrModelNotProduced indicates training completed without writing the
	// model artifact directory.
	ErrModelNotProduced = errors.New("trainer completed but produced no model directory")
)

// ExecTrainer runs a configured external command to fine-tune the model on
// the processed corpus. The command is invoked as:
// <command> <args...> <processedDir> <metadataPath> <modelDir>.
type ExecTrainer struct {
	command string
	args    []string
	log     *logger.Logger
}

// New creates an ExecTrainer for the given command and fixed arguments.
func New(command string, args []string, log *logger.Logger) (*ExecTrainer, error) {
	if command == "" {
		return nil, ErrCommandEmpty
	}

	return &ExecTrainer{
		command: command,
		args:    args,
		log:     log,
	}, nil
}

// Train invokes the external trainer and verifies that the model artifact
// directory exists afterwards.
func (t *ExecTrainer) Train(
	ctx context.Context, processedDir, metadataPath, modelDir string,
) error {
	args := make([]string, 0, len(t.args)+3)
	args = append(args, t.args...)
	args = append(args, processedDir, metadataPath, modelDir)

	t.log.Info("Training: %s %v", t.command, args)

	// #nosec G204 -- command and arguments come from the project configuration
	cmd := exec.CommandContext(ctx, t.command, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %v - output: %s", ErrTrainFailed, err, string(output))
	}

	if _, statErr := os.Stat(modelDir); statErr != nil {
		return fmt.Errorf("%w: %s", ErrModelNotProduced, modelDir)
	}

	return nil
}

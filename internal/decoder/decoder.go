// Package decoder adapts the external shard-decoding process to the
// core.ShardDecoder interface.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/book-expert/logger"
)

// Static errors.
var (
	// ErrDecodeFailed indicates the external decoder exited with an error.
	ErrDecodeFailed = errors.New("external decode failed")
	// ErrCommandEmpty indicates no decode command was configured.
	ErrCommandEmpty = errors.New("decode command cannot be empty")
)

// ExecDecoder runs a configured external command to decode raw corpus shards
// into individual audio files plus a metadata table. The command is invoked
// as: <command> <args...> <shardDir> <outDir>.
type ExecDecoder struct {
	command string
	args    []string
	log     *logger.Logger
}

// New creates an ExecDecoder for the given command and fixed arguments.
func New(command string, args []string, log *logger.Logger) (*ExecDecoder, error) {
	if command == "" {
		return nil, ErrCommandEmpty
	}

	return &ExecDecoder{
		command: command,
		args:    args,
		log:     log,
	}, nil
}

// Decode invokes the external decoder and surfaces any failure, including the
// process output, as ErrDecodeFailed.
func (d *ExecDecoder) Decode(ctx context.Context, shardDir, outDir string) error {
	args := make([]string, 0, len(d.args)+2)
	args = append(args, d.args...)
	args = append(args, shardDir, outDir)

	d.log.Info("Decoding shards: %s %v", d.command, args)

	// #nosec G204 -- command and arguments come from the project configuration
	cmd := exec.CommandContext(ctx, d.command, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %v - output: %s", ErrDecodeFailed, err, string(output))
	}

	return nil
}

// Package loader implements the corpus loading stage: it locates raw corpus
// shards, delegates codec decoding to the external decoding collaborator and
// verifies the resulting file layout and metadata contract.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"

	"github.com/book-expert/corpus-prep/internal/core"
	"github.com/book-expert/corpus-prep/internal/metadata"
)

// Shard naming patterns produced by the upstream corpus export.
var shardPatterns = []string{
	"train-*-of-*.parquet",
	"validation-*-of-*.parquet",
	"test-*-of-*.parquet",
}

// Static errors.
var (
	// ErrNoShards indicates no shard files matched the expected naming.
	ErrNoShards = errors.New("no corpus shards found")
	// ErrMetadataNotProduced indicates the decoder completed without
	// writing the raw metadata table.
	ErrMetadataNotProduced = errors.New("decoder completed but produced no metadata table")
)

// Loader owns the raw-corpus file layout. The decoder does the codec work.
type Loader struct {
	decoder core.ShardDecoder
	log     *logger.Logger
}

// New creates a Loader backed by the given decoding collaborator.
func New(decoder core.ShardDecoder, log *logger.Logger) *Loader {
	return &Loader{
		decoder: decoder,
		log:     log,
	}
}

// Run decodes every shard under shardDir into outDir and validates the
// metadata table at metadataPath afterwards. Re-running overwrites previous
// outputs. Partially written files from a failed shard are not cleaned up; a
// later successful run overwrites them.
func (l *Loader) Run(ctx context.Context, shardDir, outDir, metadataPath string) error {
	shards, err := findShards(shardDir)
	if err != nil {
		return err
	}

	if len(shards) == 0 {
		return fmt.Errorf("%w: %s", ErrNoShards, shardDir)
	}

	l.log.Info("Found %d shards in %s", len(shards), shardDir)

	decodeErr := l.decoder.Decode(ctx, shardDir, outDir)
	if decodeErr != nil {
		return fmt.Errorf("failed to decode shards: %w", decodeErr)
	}

	if _, statErr := os.Stat(metadataPath); statErr != nil {
		return fmt.Errorf("%w: %s", ErrMetadataNotProduced, metadataPath)
	}

	entries, loadErr := metadata.Load(metadataPath)
	if loadErr != nil {
		return fmt.Errorf("decoder produced an invalid metadata table: %w", loadErr)
	}

	l.log.Info("Loaded %d raw metadata rows from %s", len(entries), metadataPath)

	return nil
}

func findShards(shardDir string) ([]string, error) {
	var shards []string

	for _, pattern := range shardPatterns {
		matches, err := filepath.Glob(filepath.Join(shardDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to scan shard directory: %w", err)
		}

		shards = append(shards, matches...)
	}

	return shards, nil
}

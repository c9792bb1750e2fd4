// Package cleaning implements the audio cleaning and export engine: the
// trim → normalize → re-filter transform that turns the raw corpus into its
// training-ready form.
//
// Per-entry problems (an unreadable file, an out-of-range or silent clip) are
// skips, never run failures; the engine only fails outright when it cannot
// write its outputs or when no entry survives the full pass.
package cleaning

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"

	"github.com/book-expert/corpus-prep/internal/audio"
	"github.com/book-expert/corpus-prep/internal/core"
	"github.com/book-expert/corpus-prep/internal/metadata"
)

const dirPermissions = 0o750

// Static errors.
var (
	// ErrMissingMetadata indicates the raw metadata table does not exist yet.
	ErrMissingMetadata = errors.New("raw metadata table not found; run the load stage first")
	// ErrNoUsableEntries indicates the full pass produced zero surviving entries.
	ErrNoUsableEntries = errors.New("cleaning produced zero usable entries")
)

// Skip reasons surfaced in logs.
const (
	reasonRawDuration     = "recorded duration out of range"
	reasonUnreadable      = "unreadable audio"
	reasonSilent          = "entirely silent clip"
	reasonTrimmedDuration = "post-trim duration out of range"
	reasonExportFailed    = "export failed"
)

// Params holds the cleaning thresholds.
type Params struct {
	MinDurationSec   float64
	MaxDurationSec   float64
	SilenceThreshold float64
	TargetLoudnessDB float64
}

// Engine applies the cleaning transform to every raw metadata entry and
// exports the survivors as 16-bit PCM plus a new processed metadata table.
type Engine struct {
	params Params
	log    *logger.Logger
}

// New creates a cleaning engine.
func New(params Params, log *logger.Logger) *Engine {
	return &Engine{
		params: params,
		log:    log,
	}
}

// Run processes the raw corpus described by rawMetadataPath, writing cleaned
// audio under processedDir and the surviving rows to processedMetadataPath.
// Re-running with identical inputs overwrites the previous outputs with
// identical content.
func (e *Engine) Run(
	ctx context.Context,
	rawMetadataPath, processedDir, processedMetadataPath string,
) error {
	if _, statErr := os.Stat(rawMetadataPath); os.IsNotExist(statErr) {
		return fmt.Errorf("%w: %s", ErrMissingMetadata, rawMetadataPath)
	}

	entries, err := metadata.Load(rawMetadataPath)
	if err != nil {
		return fmt.Errorf("failed to load raw metadata: %w", err)
	}

	dirErr := os.MkdirAll(processedDir, dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create processed audio directory: %w", dirErr)
	}

	processed := make([]core.MetadataEntry, 0, len(entries))

	skipped := 0

	for _, entry := range entries {
		if ctx.Err() != nil {
			return fmt.Errorf("cleaning interrupted: %w", ctx.Err())
		}

		cleaned, reason := e.cleanEntry(entry, processedDir)
		if reason != "" {
			skipped++

			e.log.Warn("Skipping %s: %s", entry.Path, reason)

			continue
		}

		processed = append(processed, cleaned)
	}

	e.log.Info("Cleaning: %d entries kept, %d skipped", len(processed), skipped)

	if len(processed) == 0 {
		return ErrNoUsableEntries
	}

	saveErr := metadata.SaveAtomic(processedMetadataPath, processed)
	if saveErr != nil {
		return fmt.Errorf("failed to write processed metadata: %w", saveErr)
	}

	return nil
}

// cleanEntry runs the per-entry transform. A non-empty reason means the entry
// was rejected; the returned entry is only meaningful when reason is empty.
func (e *Engine) cleanEntry(
	entry core.MetadataEntry, processedDir string,
) (core.MetadataEntry, string) {
	// Cheap short-circuit on the recorded duration before any audio I/O.
	if !e.durationInRange(entry.DurationSec) {
		return core.MetadataEntry{}, reasonRawDuration
	}

	clip, readErr := audio.ReadMono(entry.Path)
	if readErr != nil {
		return core.MetadataEntry{}, fmt.Sprintf("%s: %v", reasonUnreadable, readErr)
	}

	trimmed, ok := audio.TrimSilence(clip.Samples, e.params.SilenceThreshold)
	if !ok {
		return core.MetadataEntry{}, reasonSilent
	}

	normalized := audio.NormalizeRMS(
		trimmed, audio.TargetRMSFromDB(e.params.TargetLoudnessDB),
	)

	cleaned := audio.Clip{
		Samples:    normalized,
		SampleRate: clip.SampleRate,
	}

	// The trim changed the sample count; the duration filter must hold for
	// the waveform actually being exported.
	if !e.durationInRange(cleaned.DurationSec()) {
		return core.MetadataEntry{}, reasonTrimmedDuration
	}

	outputPath := filepath.Join(processedDir, filepath.Base(entry.Path))

	writeErr := audio.WriteMono16(outputPath, cleaned)
	if writeErr != nil {
		return core.MetadataEntry{}, fmt.Sprintf("%s: %v", reasonExportFailed, writeErr)
	}

	return core.MetadataEntry{
		Path:        outputPath,
		Text:        entry.Text,
		SpeakerID:   entry.SpeakerID,
		DurationSec: cleaned.DurationSec(),
		Split:       entry.Split,
	}, ""
}

func (e *Engine) durationInRange(durationSec float64) bool {
	return durationSec >= e.params.MinDurationSec &&
		durationSec <= e.params.MaxDurationSec
}

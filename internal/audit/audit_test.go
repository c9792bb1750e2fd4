// Package audit_test tests the corpus audit statistics.
package audit_test

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/corpus-prep/internal/audit"
	"github.com/book-expert/corpus-prep/internal/core"
	"github.com/book-expert/corpus-prep/internal/metadata"
)

func entryWithDuration(duration float64, speakerID int, split core.Split) core.MetadataEntry {
	return core.MetadataEntry{
		Path:        "/data/raw/wav/clip.wav",
		Text:        "muraho",
		SpeakerID:   speakerID,
		DurationSec: duration,
		Split:       split,
	}
}

func TestBuildTotalsAndMedian(t *testing.T) {
	t.Parallel()

	entries := []core.MetadataEntry{
		entryWithDuration(2, 1, core.SplitTrain),
		entryWithDuration(4, 1, core.SplitTrain),
		entryWithDuration(6, 1, core.SplitTrain),
		entryWithDuration(8, 2, core.SplitValidation),
		entryWithDuration(10, 2, core.SplitTest),
	}

	report := audit.Build(entries)

	assert.Equal(t, 5, report.TotalClips)
	assert.InEpsilon(t, 30.0, report.TotalDurationSec, 1e-9)
	assert.InEpsilon(t, 6.0, report.Duration.Median, 1e-9)
	assert.InEpsilon(t, 2.0, report.Duration.Min, 1e-9)
	assert.InEpsilon(t, 10.0, report.Duration.Max, 1e-9)
	assert.InEpsilon(t, 6.0, report.Duration.Mean, 1e-9)
}

func TestBuildSpeakerPercentages(t *testing.T) {
	t.Parallel()

	entries := []core.MetadataEntry{
		entryWithDuration(3, 1, core.SplitTrain),
		entryWithDuration(3, 1, core.SplitTrain),
		entryWithDuration(3, 2, core.SplitTrain),
	}

	report := audit.Build(entries)

	require.Len(t, report.Speakers, 2)
	assert.Equal(t, 2, report.Speakers["1"].Count)
	assert.InEpsilon(t, 66.67, report.Speakers["1"].Percent, 1e-9)
	assert.InEpsilon(t, 33.33, report.Speakers["2"].Percent, 1e-9)
}

func TestBuildSplitSubtotals(t *testing.T) {
	t.Parallel()

	entries := []core.MetadataEntry{
		entryWithDuration(2, 1, core.SplitTrain),
		entryWithDuration(4, 1, core.SplitTrain),
		entryWithDuration(5, 1, core.SplitTest),
	}

	report := audit.Build(entries)

	assert.Equal(t, 2, report.Splits["train"].Count)
	assert.InEpsilon(t, 6.0, report.Splits["train"].DurationSec, 1e-9)
	assert.Equal(t, 1, report.Splits["test"].Count)
}

func TestBuildExcludesNaNAndNonPositiveDurations(t *testing.T) {
	t.Parallel()

	entries := []core.MetadataEntry{
		entryWithDuration(4, 1, core.SplitTrain),
		entryWithDuration(math.NaN(), 1, core.SplitTrain),
		entryWithDuration(-1, 2, core.SplitTrain),
	}

	report := audit.Build(entries)

	assert.Equal(t, 3, report.TotalClips)
	assert.Equal(t, 2, report.ExcludedRows)
	assert.InEpsilon(t, 4.0, report.TotalDurationSec, 1e-9)
	assert.InEpsilon(t, 4.0, report.Duration.Median, 1e-9)
	// Excluded rows still count toward speaker distribution.
	assert.Equal(t, 2, report.Speakers["1"].Count)
}

func TestBuildEmptyInput(t *testing.T) {
	t.Parallel()

	report := audit.Build(nil)

	assert.Equal(t, 0, report.TotalClips)
	assert.Zero(t, report.Duration.Median)
	assert.Empty(t, report.Speakers)
}

func TestRunMissingMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	log, err := logger.New(dir, "audit-test.log")
	require.NoError(t, err)

	err = audit.Run(
		filepath.Join(dir, "absent.csv"),
		filepath.Join(dir, "audit_report.json"),
		log,
	)
	require.ErrorIs(t, err, audit.ErrMissingMetadata)
}

func TestRunWritesReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	metadataPath := filepath.Join(dir, "metadata.csv")
	reportPath := filepath.Join(dir, "reports", "audit_report.json")

	entries := []core.MetadataEntry{
		entryWithDuration(2, 1, core.SplitTrain),
		entryWithDuration(6, 1, core.SplitTrain),
	}
	require.NoError(t, metadata.SaveAtomic(metadataPath, entries))

	log, err := logger.New(dir, "audit-test.log")
	require.NoError(t, err)

	err = audit.Run(metadataPath, reportPath, log)
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var report audit.Report

	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 2, report.TotalClips)
	assert.InEpsilon(t, 8.0, report.TotalDurationSec, 1e-9)
}

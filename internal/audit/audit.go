// Package audit computes a read-only statistical summary of a raw corpus
// metadata table: clip counts, duration and transcript-length distributions,
// and per-speaker and per-split breakdowns. It never mutates audio or
// metadata.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/book-expert/corpus-prep/internal/core"
	"github.com/book-expert/corpus-prep/internal/metadata"
)

const (
	lowerQuartile = 25
	upperQuartile = 75

	percentPrecision = 100.0

	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ErrMissingMetadata indicates the raw metadata table does not exist yet; the
// loader stage must run first.
var ErrMissingMetadata = errors.New("raw metadata table not found; run the load stage first")

// Summary is the five-number summary of a distribution.
type Summary struct {
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	P75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// SpeakerStat is one speaker's share of the corpus.
type SpeakerStat struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// SplitStat is one split's subtotal.
type SplitStat struct {
	Count       int     `json:"count"`
	DurationSec float64 `json:"duration_sec"`
}

// Report is the derived aggregate over a metadata table. It is a pure
// function of its input; a later audit run simply overwrites it.
type Report struct {
	TotalClips       int                    `json:"total_clips"`
	TotalDurationSec float64                `json:"total_duration_sec"`
	Duration         Summary                `json:"duration_sec"`
	TextLength       Summary                `json:"text_length_chars"`
	Speakers         map[string]SpeakerStat `json:"speakers"`
	Splits           map[string]SplitStat   `json:"splits"`
	ExcludedRows     int                    `json:"excluded_rows"`
}

// Build computes the report for a set of metadata entries. Rows with a
// missing or NaN duration are excluded from the numeric aggregates (and
// counted in ExcludedRows) without failing the report.
func Build(entries []core.MetadataEntry) Report {
	report := Report{
		TotalClips:       len(entries),
		TotalDurationSec: 0,
		Duration:         Summary{},
		TextLength:       Summary{},
		Speakers:         make(map[string]SpeakerStat),
		Splits:           make(map[string]SplitStat),
		ExcludedRows:     0,
	}

	durations := make([]float64, 0, len(entries))
	textLengths := make([]float64, 0, len(entries))

	for _, entry := range entries {
		if math.IsNaN(entry.DurationSec) || entry.DurationSec <= 0 {
			report.ExcludedRows++
		} else {
			durations = append(durations, entry.DurationSec)
			report.TotalDurationSec += entry.DurationSec

			splitStat := report.Splits[string(entry.Split)]
			splitStat.Count++
			splitStat.DurationSec += entry.DurationSec
			report.Splits[string(entry.Split)] = splitStat
		}

		if entry.Text != "" {
			textLengths = append(textLengths, float64(len([]rune(entry.Text))))
		}

		speakerKey := strconv.Itoa(entry.SpeakerID)
		speakerStat := report.Speakers[speakerKey]
		speakerStat.Count++
		report.Speakers[speakerKey] = speakerStat
	}

	for key, speakerStat := range report.Speakers {
		percent := float64(speakerStat.Count) / float64(len(entries)) * 100
		speakerStat.Percent = roundPercent(percent)
		report.Speakers[key] = speakerStat
	}

	report.Duration = summarize(durations)
	report.TextLength = summarize(textLengths)

	return report
}

// Run loads the raw metadata table, builds the report and writes it as JSON
// to reportPath via a temporary file and rename.
func Run(metadataPath, reportPath string, log *logger.Logger) error {
	if _, statErr := os.Stat(metadataPath); os.IsNotExist(statErr) {
		return fmt.Errorf("%w: %s", ErrMissingMetadata, metadataPath)
	}

	entries, err := metadata.Load(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to load raw metadata: %w", err)
	}

	report := Build(entries)

	log.Info(
		"Audit: %d clips, %.1f s total, %d rows excluded from numeric aggregates",
		report.TotalClips, report.TotalDurationSec, report.ExcludedRows,
	)

	return writeReport(reportPath, report)
}

func writeReport(reportPath string, report Report) error {
	dirErr := os.MkdirAll(filepath.Dir(reportPath), dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create report directory: %w", dirErr)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal audit report: %w", err)
	}

	tempPath := reportPath + ".tmp." + uuid.NewString()

	writeErr := os.WriteFile(tempPath, data, filePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write audit report: %w", writeErr)
	}

	renameErr := os.Rename(tempPath, reportPath)
	if renameErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to move audit report into place: %w", renameErr)
	}

	return nil
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	// The stats helpers only error on empty input, which is handled above.
	minimum, _ := stats.Min(values)
	p25, _ := stats.Percentile(values, lowerQuartile)
	median, _ := stats.Median(values)
	mean, _ := stats.Mean(values)
	p75, _ := stats.Percentile(values, upperQuartile)
	maximum, _ := stats.Max(values)

	return Summary{
		Min:    minimum,
		P25:    p25,
		Median: median,
		Mean:   mean,
		P75:    p75,
		Max:    maximum,
	}
}

func roundPercent(percent float64) float64 {
	return math.Round(percent*percentPrecision) / percentPrecision
}

// Package evaluation implements the evaluation harness: it calls the
// synthesis collaborator once per evaluation sentence and writes an aggregate
// latency report.
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/book-expert/corpus-prep/internal/core"
)

const (
	latencyPercentile = 95

	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ErrNoSentences indicates an empty evaluation sentence list.
var ErrNoSentences = errors.New("no evaluation sentences configured")

// DefaultSentences is the fixed evaluation set used when none is configured.
var DefaultSentences = []string{
	"Muraho, amakuru yawe?",
	"Urakoze cyane kubufasha bwawe.",
	"Ikinyarwanda ni ururimi rwiza cyane.",
	"Ejo hazaza heza ntihbaho tutabigizemo uruhare.",
	"Umwana wiga neza azagira ejo hazaza heza.",
}

// healthChecker is implemented by synthesizers that can report readiness
// before the sentence loop starts.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SentenceResult is the measurement for one evaluation sentence.
type SentenceResult struct {
	Sentence   string  `json:"sentence"`
	LatencyMS  float64 `json:"latency_ms"`
	AudioBytes int     `json:"audio_bytes"`
}

// Report aggregates latencies over the full evaluation set. Sentences are
// keyed by their index in the configured order.
type Report struct {
	Sentences     map[int]SentenceResult `json:"sentences"`
	MeanLatencyMS float64                `json:"mean_latency_ms"`
	P95LatencyMS  float64                `json:"p95_latency_ms"`
}

// Harness drives the synthesis collaborator over the evaluation set.
type Harness struct {
	synthesizer core.Synthesizer
	log         *logger.Logger
}

// New creates an evaluation harness.
func New(synthesizer core.Synthesizer, log *logger.Logger) *Harness {
	return &Harness{
		synthesizer: synthesizer,
		log:         log,
	}
}

// Run synthesizes every sentence, aggregates latency and writes the report as
// JSON to reportPath. A failed synthesis call fails the stage; there is no
// partial report.
func (h *Harness) Run(
	ctx context.Context, sentences []string, speakerID *int, reportPath string,
) error {
	if len(sentences) == 0 {
		return ErrNoSentences
	}

	if checker, ok := h.synthesizer.(healthChecker); ok {
		healthErr := checker.HealthCheck(ctx)
		if healthErr != nil {
			return fmt.Errorf("synthesis service is not healthy: %w", healthErr)
		}
	}

	report := Report{
		Sentences:     make(map[int]SentenceResult, len(sentences)),
		MeanLatencyMS: 0,
		P95LatencyMS:  0,
	}

	latencies := make([]float64, 0, len(sentences))

	for index, sentence := range sentences {
		result, err := h.synthesizer.Synthesize(ctx, sentence, speakerID)
		if err != nil {
			return fmt.Errorf("failed to synthesize sentence %d: %w", index, err)
		}

		report.Sentences[index] = SentenceResult{
			Sentence:   sentence,
			LatencyMS:  result.LatencyMS,
			AudioBytes: len(result.Audio),
		}

		latencies = append(latencies, result.LatencyMS)

		h.log.Info(
			"Evaluated sentence %d/%d: %.1f ms, %d bytes",
			index+1, len(sentences), result.LatencyMS, len(result.Audio),
		)
	}

	// Only errors on empty input, which is excluded above.
	report.MeanLatencyMS, _ = stats.Mean(latencies)
	report.P95LatencyMS, _ = stats.Percentile(latencies, latencyPercentile)

	return writeReport(reportPath, report)
}

func writeReport(reportPath string, report Report) error {
	dirErr := os.MkdirAll(filepath.Dir(reportPath), dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create report directory: %w", dirErr)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation report: %w", err)
	}

	tempPath := reportPath + ".tmp." + uuid.NewString()

	writeErr := os.WriteFile(tempPath, data, filePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write evaluation report: %w", writeErr)
	}

	renameErr := os.Rename(tempPath, reportPath)
	if renameErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to move evaluation report into place: %w", renameErr)
	}

	return nil
}

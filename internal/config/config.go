// Package config provides the configuration structure for corpus-prep.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Default relative project layout. Each path is the single artifact the
// orchestrator checks when deciding whether a stage may be skipped.
const (
	defaultRawWAVDir         = "data/raw/wav"
	defaultRawMetadata       = "data/raw/metadata.csv"
	defaultAuditReport       = "reports/audit_report.json"
	defaultProcessedWAVDir   = "data/processed/wav"
	defaultProcessedMetadata = "data/processed/metadata.csv"
	defaultModelDir          = "artifacts/final_model"
	defaultEvaluationReport  = "reports/evaluation_report.json"
)

// Default cleaning parameters. The loudness target is an RMS approximation of
// perceptual loudness, not a standard-compliant LUFS measurement.
const (
	defaultMinDurationSec   = 2.0
	defaultMaxDurationSec   = 12.0
	defaultSilenceThreshold = 0.01
	defaultTargetLoudnessDB = -23.0
)

const defaultEvaluationTimeoutSeconds = 120

// ProjectConfig locates the project root. All relative paths resolve
// against it.
type ProjectConfig struct {
	Root string `toml:"root"`
}

// PathsConfig holds the persisted artifact layout.
type PathsConfig struct {
	RawWAVDir         string `toml:"raw_wav_dir"`
	RawMetadata       string `toml:"raw_metadata"`
	AuditReport       string `toml:"audit_report"`
	ProcessedWAVDir   string `toml:"processed_wav_dir"`
	ProcessedMetadata string `toml:"processed_metadata"`
	ModelDir          string `toml:"model_dir"`
	EvaluationReport  string `toml:"evaluation_report"`
	BaseLogsDir       string `toml:"base_logs_dir"`
}

// LoaderConfig configures the corpus loader and its external decoder.
type LoaderConfig struct {
	ShardDir      string   `toml:"shard_dir"`
	DecodeCommand string   `toml:"decode_command"`
	DecodeArgs    []string `toml:"decode_args"`
}

// CleaningConfig holds the audio transform parameters.
type CleaningConfig struct {
	MinDurationSec   float64 `toml:"min_duration_sec"`
	MaxDurationSec   float64 `toml:"max_duration_sec"`
	SilenceThreshold float64 `toml:"silence_threshold"`
	TargetLoudnessDB float64 `toml:"target_loudness_db"`
}

// TrainingConfig configures the external training collaborator.
type TrainingConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// EvaluationConfig configures the synthesis service evaluation stage.
type EvaluationConfig struct {
	ServiceURL     string   `toml:"service_url"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	Sentences      []string `toml:"sentences"`
	SpeakerID      *int     `toml:"speaker_id"`
}

// NATSConfig configures the optional stage-event publisher. An empty
// StageSubject disables publishing entirely.
type NATSConfig struct {
	URL          string `toml:"url"`
	StageSubject string `toml:"stage_subject"`
}

// Config is the root configuration structure.
type Config struct {
	Project    ProjectConfig    `toml:"project"`
	Paths      PathsConfig      `toml:"paths"`
	Loader     LoaderConfig     `toml:"loader"`
	Cleaning   CleaningConfig   `toml:"cleaning"`
	Training   TrainingConfig   `toml:"training"`
	Evaluation EvaluationConfig `toml:"evaluation"`
	NATS       NATSConfig       `toml:"nats"`
}

// Load loads the configuration for corpus-prep and fills in defaults for any
// omitted paths and cleaning parameters.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields with the standard project layout and
// cleaning parameters.
func (c *Config) ApplyDefaults() {
	if c.Paths.RawWAVDir == "" {
		c.Paths.RawWAVDir = defaultRawWAVDir
	}

	if c.Paths.RawMetadata == "" {
		c.Paths.RawMetadata = defaultRawMetadata
	}

	if c.Paths.AuditReport == "" {
		c.Paths.AuditReport = defaultAuditReport
	}

	if c.Paths.ProcessedWAVDir == "" {
		c.Paths.ProcessedWAVDir = defaultProcessedWAVDir
	}

	if c.Paths.ProcessedMetadata == "" {
		c.Paths.ProcessedMetadata = defaultProcessedMetadata
	}

	if c.Paths.ModelDir == "" {
		c.Paths.ModelDir = defaultModelDir
	}

	if c.Paths.EvaluationReport == "" {
		c.Paths.EvaluationReport = defaultEvaluationReport
	}

	if c.Cleaning.MinDurationSec == 0 {
		c.Cleaning.MinDurationSec = defaultMinDurationSec
	}

	if c.Cleaning.MaxDurationSec == 0 {
		c.Cleaning.MaxDurationSec = defaultMaxDurationSec
	}

	if c.Cleaning.SilenceThreshold == 0 {
		c.Cleaning.SilenceThreshold = defaultSilenceThreshold
	}

	if c.Cleaning.TargetLoudnessDB == 0 {
		c.Cleaning.TargetLoudnessDB = defaultTargetLoudnessDB
	}

	if c.Evaluation.TimeoutSeconds == 0 {
		c.Evaluation.TimeoutSeconds = defaultEvaluationTimeoutSeconds
	}
}

// Resolve returns the path joined onto the project root when it is relative,
// or the path unchanged when it is already absolute.
func (c *Config) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(c.Project.Root, path)
}

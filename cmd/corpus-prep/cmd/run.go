package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/book-expert/corpus-prep/internal/audit"
	"github.com/book-expert/corpus-prep/internal/cleaning"
	"github.com/book-expert/corpus-prep/internal/config"
	"github.com/book-expert/corpus-prep/internal/decoder"
	"github.com/book-expert/corpus-prep/internal/evaluation"
	"github.com/book-expert/corpus-prep/internal/loader"
	"github.com/book-expert/corpus-prep/internal/notify"
	"github.com/book-expert/corpus-prep/internal/pipeline"
	"github.com/book-expert/corpus-prep/internal/synth"
	"github.com/book-expert/corpus-prep/internal/training"
)

var (
	flagStages       []int
	flagSkipExisting bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline, or an explicit subset of its stages",
	Long: `Run executes the pipeline stages in order and prints a per-stage
status trace. With --stages only the listed stage ids run, in pipeline order;
the orchestrator does not verify that upstream outputs for a subset exist.
With --skip-existing a stage whose expected output already exists is marked
SKIPPED without executing.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().IntSliceVar(&flagStages, "stages", nil,
		"comma-separated stage ids to run (default: all)")
	runCmd.Flags().BoolVar(&flagSkipExisting, "skip-existing", false,
		"skip stages whose expected output already exists")

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cobraCmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	defer func() {
		_ = log.Close()
	}()

	notifier, closeNotifier := buildNotifier(cfg, log)
	defer closeNotifier()

	runner := pipeline.NewRunner(buildStages(cfg, log), notifier, log)

	trace, runErr := runner.Run(cobraCmd.Context(), pipeline.Options{
		Stages:       flagStages,
		SkipExisting: flagSkipExisting,
	})

	printTrace(cobraCmd, trace)

	if runErr != nil {
		return fmt.Errorf("pipeline run failed: %w", runErr)
	}

	return nil
}

// buildStages wires each pipeline stage to its component. Collaborator
// adapters are constructed inside the stage action so a misconfigured stage
// only fails when it actually runs.
func buildStages(cfg *config.Config, log *logger.Logger) []pipeline.Stage {
	rawWAVDir := cfg.Resolve(cfg.Paths.RawWAVDir)
	rawMetadata := cfg.Resolve(cfg.Paths.RawMetadata)
	auditReport := cfg.Resolve(cfg.Paths.AuditReport)
	processedWAVDir := cfg.Resolve(cfg.Paths.ProcessedWAVDir)
	processedMetadata := cfg.Resolve(cfg.Paths.ProcessedMetadata)
	modelDir := cfg.Resolve(cfg.Paths.ModelDir)
	evaluationReport := cfg.Resolve(cfg.Paths.EvaluationReport)

	return []pipeline.Stage{
		{
			ID:   1,
			Name: "load",
			Run: func(ctx context.Context) error {
				dec, err := decoder.New(
					cfg.Loader.DecodeCommand, cfg.Loader.DecodeArgs, log,
				)
				if err != nil {
					return err
				}

				return loader.New(dec, log).Run(
					ctx, cfg.Resolve(cfg.Loader.ShardDir), rawWAVDir, rawMetadata,
				)
			},
			ExpectedOutput: rawMetadata,
		},
		{
			ID:   2,
			Name: "audit",
			Run: func(_ context.Context) error {
				return audit.Run(rawMetadata, auditReport, log)
			},
			ExpectedOutput: auditReport,
		},
		{
			ID:   3,
			Name: "clean",
			Run: func(ctx context.Context) error {
				engine := cleaning.New(cleaning.Params{
					MinDurationSec:   cfg.Cleaning.MinDurationSec,
					MaxDurationSec:   cfg.Cleaning.MaxDurationSec,
					SilenceThreshold: cfg.Cleaning.SilenceThreshold,
					TargetLoudnessDB: cfg.Cleaning.TargetLoudnessDB,
				}, log)

				return engine.Run(ctx, rawMetadata, processedWAVDir, processedMetadata)
			},
			ExpectedOutput: processedMetadata,
		},
		{
			ID:   4,
			Name: "train",
			Run: func(ctx context.Context) error {
				trainer, err := training.New(
					cfg.Training.Command, cfg.Training.Args, log,
				)
				if err != nil {
					return err
				}

				return trainer.Train(ctx, processedWAVDir, processedMetadata, modelDir)
			},
			ExpectedOutput: modelDir,
		},
		{
			ID:   5,
			Name: "evaluate",
			Run: func(ctx context.Context) error {
				client := synth.NewHTTPClient(
					cfg.Evaluation.ServiceURL,
					time.Duration(cfg.Evaluation.TimeoutSeconds)*time.Second,
				)

				sentences := cfg.Evaluation.Sentences
				if len(sentences) == 0 {
					sentences = evaluation.DefaultSentences
				}

				return evaluation.New(client, log).Run(
					ctx, sentences, cfg.Evaluation.SpeakerID, evaluationReport,
				)
			},
			ExpectedOutput: evaluationReport,
		},
	}
}

// buildNotifier connects the optional NATS stage-event publisher. A failed
// connection degrades to a run without notifications rather than aborting.
func buildNotifier(cfg *config.Config, log *logger.Logger) (pipeline.Notifier, func()) {
	if cfg.NATS.StageSubject == "" || cfg.NATS.URL == "" {
		return nil, func() {}
	}

	conn, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		log.Warn("Stage events disabled; failed to connect to NATS at %s: %v",
			cfg.NATS.URL, err)

		return nil, func() {}
	}

	publisher, err := notify.New(conn, cfg.NATS.StageSubject)
	if err != nil {
		log.Warn("Stage events disabled: %v", err)
		conn.Close()

		return nil, func() {}
	}

	return publisher, conn.Close
}

func printTrace(cobraCmd *cobra.Command, trace []pipeline.StageResult) {
	for _, result := range trace {
		line := fmt.Sprintf("stage %d %-10s %s", result.ID, result.Name, result.Status)
		if result.Err != "" {
			line += ": " + result.Err
		}

		cobraCmd.Println(line)
	}
}

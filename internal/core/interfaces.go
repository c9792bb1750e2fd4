// Package core defines the domain types and collaborator interfaces for the
// corpus preparation pipeline.
package core

import "context"

// Split identifies which dataset partition a clip belongs to.
type Split string

// Recognized dataset splits.
const (
	SplitTrain      Split = "train"
	SplitValidation Split = "validation"
	SplitTest       Split = "test"
)

// Valid reports whether the split is one of the recognized partitions.
func (s Split) Valid() bool {
	switch s {
	case SplitTrain, SplitValidation, SplitTest:
		return true
	default:
		return false
	}
}

// MetadataEntry is one row of a corpus metadata table: a decoded audio clip,
// its transcript, speaker, measured duration and split assignment. The raw
// and processed tables share this shape; they differ only in which audio
// store Path points into and whether DurationSec reflects the post-transform
// waveform.
type MetadataEntry struct {
	Path        string
	Text        string
	SpeakerID   int
	DurationSec float64
	Split       Split
}

// SynthesisResult is the output of one synthesis call: encoded audio plus the
// latency the collaborator reported (or the caller measured).
type SynthesisResult struct {
	Audio     []byte
	LatencyMS float64
}

// ShardDecoder decodes a directory of raw corpus shards into individual audio
// files plus a metadata table under outDir. Implementations typically wrap an
// external decoding process.
type ShardDecoder interface {
	Decode(ctx context.Context, shardDir, outDir string) error
}

// Trainer consumes the processed corpus and produces a model artifact
// directory. Opaque to the pipeline beyond its expected output.
type Trainer interface {
	Train(ctx context.Context, processedDir, metadataPath, modelDir string) error
}

// Synthesizer converts text to speech. A nil speakerID requests the model's
// default speaker.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, speakerID *int) (SynthesisResult, error)
}

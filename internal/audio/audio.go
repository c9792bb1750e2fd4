// Package audio provides WAV file I/O and the waveform transforms used by the
// cleaning engine: mono downmix, silence trimming and RMS loudness
// normalization.
//
// Loudness here is an RMS-based approximation, not a standard-compliant LUFS
// measurement.
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Export encoding parameters. Processed clips are always 16-bit PCM mono.
const (
	exportBitDepth    = 16
	exportChannels    = 1
	pcmAudioFormat    = 1
	fallbackBitDepth  = 16
	maxInt16          = 32767
	minInt16          = -32768
	dirPermissions    = 0o750
	decibelsPerDecade = 20.0
)

// rmsFloor is the numerical floor below which a waveform is considered too
// quiet to scale safely.
const rmsFloor = 1e-10

// Static errors.
var (
	// ErrEmptyWaveform indicates a WAV file decoded to zero samples.
	ErrEmptyWaveform = errors.New("waveform contains no samples")
	// ErrNoChannels indicates a WAV file reported zero channels.
	ErrNoChannels = errors.New("waveform reports zero channels")
)

// Clip is a decoded mono waveform with samples in [-1.0, 1.0].
type Clip struct {
	Samples    []float64
	SampleRate int
}

// DurationSec returns the clip duration computed from its sample count.
func (c Clip) DurationSec() float64 {
	if c.SampleRate <= 0 {
		return 0
	}

	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// ReadMono decodes a WAV file, averages multi-channel audio down to mono and
// scales integer samples into [-1.0, 1.0].
func ReadMono(path string) (Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to open audio file %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := wav.NewDecoder(file)

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("failed to decode audio file %s: %w", path, err)
	}

	if buffer.Format == nil || buffer.Format.NumChannels <= 0 {
		return Clip{}, fmt.Errorf("%w: %s", ErrNoChannels, path)
	}

	if len(buffer.Data) == 0 {
		return Clip{}, fmt.Errorf("%w: %s", ErrEmptyWaveform, path)
	}

	return Clip{
		Samples:    downmix(buffer),
		SampleRate: buffer.Format.SampleRate,
	}, nil
}

// WriteMono16 re-encodes a mono clip as 16-bit PCM WAV at its sample rate.
// An existing file at path is overwritten.
func WriteMono16(path string, clip Clip) error {
	dirErr := os.MkdirAll(filepath.Dir(path), dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create audio directory: %w", dirErr)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audio file %s: %w", path, err)
	}

	encoder := wav.NewEncoder(
		file, clip.SampleRate, exportBitDepth, exportChannels, pcmAudioFormat,
	)

	buffer := &goaudio.IntBuffer{
		Data: quantize16(clip.Samples),
		Format: &goaudio.Format{
			NumChannels: exportChannels,
			SampleRate:  clip.SampleRate,
		},
		SourceBitDepth: exportBitDepth,
	}

	writeErr := encoder.Write(buffer)
	encodeCloseErr := encoder.Close()
	fileCloseErr := file.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to encode audio file %s: %w", path, writeErr)
	}

	if encodeCloseErr != nil {
		return fmt.Errorf("failed to finalize audio file %s: %w", path, encodeCloseErr)
	}

	if fileCloseErr != nil {
		return fmt.Errorf("failed to close audio file %s: %w", path, fileCloseErr)
	}

	return nil
}

// TrimSilence truncates the waveform to the inclusive span between the first
// and last sample whose absolute amplitude exceeds threshold. The second
// return value is false when every sample is below the threshold.
func TrimSilence(samples []float64, threshold float64) ([]float64, bool) {
	first := -1
	last := -1

	for index, sample := range samples {
		if math.Abs(sample) > threshold {
			if first == -1 {
				first = index
			}

			last = index
		}
	}

	if first == -1 {
		return nil, false
	}

	return samples[first : last+1], true
}

// RMS returns the root-mean-square amplitude of the waveform.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, sample := range samples {
		sum += sample * sample
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// TargetRMSFromDB converts a loudness target in dB to a linear RMS amplitude.
func TargetRMSFromDB(loudnessDB float64) float64 {
	return math.Pow(10, loudnessDB/decibelsPerDecade)
}

// NormalizeRMS scales the waveform so its RMS matches targetRMS, then
// hard-clips the result to [-1.0, 1.0] so re-encoding can never overflow.
// Waveforms whose RMS sits below the numerical floor are returned unscaled.
func NormalizeRMS(samples []float64, targetRMS float64) []float64 {
	normalized := make([]float64, len(samples))

	currentRMS := RMS(samples)
	if currentRMS <= rmsFloor {
		copy(normalized, samples)

		return normalized
	}

	gain := targetRMS / currentRMS
	for index, sample := range samples {
		normalized[index] = clamp(sample*gain, -1.0, 1.0)
	}

	return normalized
}

// downmix averages interleaved channels into mono and scales samples by the
// source bit depth into [-1.0, 1.0].
func downmix(buffer *goaudio.IntBuffer) []float64 {
	channels := buffer.Format.NumChannels

	bitDepth := buffer.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = fallbackBitDepth
	}

	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buffer.Data) / channels
	samples := make([]float64, frames)

	for frame := range frames {
		var sum float64
		for channel := range channels {
			sum += float64(buffer.Data[frame*channels+channel])
		}

		samples[frame] = sum / float64(channels) / scale
	}

	return samples
}

func quantize16(samples []float64) []int {
	data := make([]int, len(samples))
	for index, sample := range samples {
		scaled := math.Round(clamp(sample, -1.0, 1.0) * maxInt16)
		data[index] = int(clamp(scaled, minInt16, maxInt16))
	}

	return data
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}

	if value > high {
		return high
	}

	return value
}

// Package synth provides an HTTP client for the synthesis service used by the
// evaluation stage. The service wraps a pretrained model and exposes a single
// synthesize operation returning WAV audio.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/book-expert/corpus-prep/internal/core"
)

// API endpoints.
const (
	apiSynthesize = "/synthesize"
	apiHealth     = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerLatencyMS   = "X-Latency-Ms"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

const millisecondsPerSecond = 1000.0

// Static errors.
var (
	// ErrTextEmpty indicates an empty synthesis request.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrEmptyAudio indicates the service returned no audio data.
	ErrEmptyAudio = errors.New("received empty audio data")
)

// request is the JSON payload for a synthesis call. SpeakerID is omitted for
// single-speaker models.
type request struct {
	Text      string `json:"text"`
	SpeakerID *int   `json:"speaker_id,omitempty"`
}

// errorResponse is the structured error payload the service may return.
type errorResponse struct {
	Detail string `json:"detail"`
}

// HTTPClient implements core.Synthesizer against the synthesis HTTP service.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPClient creates a client for the synthesis service. The baseURL
// should include protocol and port (e.g. "http://localhost:8000"); the
// timeout applies to every request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize sends one synthesis request and returns the WAV bytes plus the
// call latency. When the service reports its own latency via the
// X-Latency-Ms header that value wins; otherwise wall-clock time is used.
func (c *HTTPClient) Synthesize(
	ctx context.Context, text string, speakerID *int,
) (core.SynthesisResult, error) {
	if text == "" {
		return core.SynthesisResult{}, ErrTextEmpty
	}

	requestBody, err := json.Marshal(request{Text: text, SpeakerID: speakerID})
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiSynthesize,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf(
			"failed to reach synthesis service at %s: %w", c.baseURL, err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.SynthesisResult{}, c.parseErrorResponse(resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return core.SynthesisResult{}, ErrEmptyAudio
	}

	return core.SynthesisResult{
		Audio:     audioData,
		LatencyMS: latencyMS(resp, start),
	}, nil
}

// HealthCheck verifies the synthesis service is up. Evaluation performs this
// before the sentence loop to fail fast with a clear diagnostic.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody,
	)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

func latencyMS(resp *http.Response, start time.Time) float64 {
	header := resp.Header.Get(headerLatencyMS)
	if header != "" {
		reported, parseErr := strconv.ParseFloat(header, 64)
		if parseErr == nil && reported >= 0 {
			return reported
		}
	}

	return time.Since(start).Seconds() * millisecondsPerSecond
}

// parseErrorResponse decodes a structured JSON error from the service,
// falling back to the raw body so diagnostics are never lost.
func (c *HTTPClient) parseErrorResponse(resp *http.Response) error {
	var errorResp errorResponse

	err := json.NewDecoder(resp.Body).Decode(&errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf("synthesis service error (%s): %s", resp.Status, errorResp.Detail)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf(
		"synthesis service returned non-OK status: %s, body: %s",
		resp.Status, string(body),
	)
}

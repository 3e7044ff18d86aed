package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/transcript-worker/internal/transcript"
)

// ErrNotConfigured is returned when an operation's endpoint is unset.
var ErrNotConfigured = errors.New("endpoint not configured")

// Client provides HTTP client functionality for the transcription and
// diarization model API
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{} // bounds in-flight model calls

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains transcription client configuration
type Config struct {
	TranscribeEndpoint string
	DiarizeEndpoint    string // optional; required only when speakers are requested
	APIKey             string
	Timeout            time.Duration
	MaxConcurrent      int
	Language           string
	Model              string
}

// TranscriptionResponse is the body returned by the transcribe endpoint
type TranscriptionResponse struct {
	RequestID string               `json:"request_id,omitempty"`
	Text      string               `json:"text"`
	Language  string               `json:"language,omitempty"`
	Segments  []transcript.Segment `json:"segments"`
	Duration  float64              `json:"duration"`
}

// DiarizationResponse is the body returned by the diarize endpoint
type DiarizationResponse struct {
	RequestID string                   `json:"request_id,omitempty"`
	Segments  []transcript.SpeakerSpan `json:"segments"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewClient creates a new transcription HTTP client
func NewClient(config Config) (*Client, error) {
	if config.TranscribeEndpoint == "" {
		return nil, fmt.Errorf("transcribe endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Minute
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 2
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Transcribe sends a WAV recording to the speech-to-text model and returns
// its segments in model order.
func (c *Client) Transcribe(ctx context.Context, wav []byte) ([]transcript.Segment, error) {
	var resp TranscriptionResponse
	if err := c.call(ctx, c.config.TranscribeEndpoint, wav, &resp); err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	return resp.Segments, nil
}

// Diarize sends a WAV recording to the diarization model and returns its
// speaker turns in model order.
func (c *Client) Diarize(ctx context.Context, wav []byte) ([]transcript.SpeakerSpan, error) {
	if c.config.DiarizeEndpoint == "" {
		return nil, fmt.Errorf("diarization failed: %w", ErrNotConfigured)
	}

	var resp DiarizationResponse
	if err := c.call(ctx, c.config.DiarizeEndpoint, wav, &resp); err != nil {
		return nil, fmt.Errorf("diarization failed: %w", err)
	}
	return resp.Segments, nil
}

// call performs one rate-limited request. Model calls are not retried; a
// failed job is redelivered by the queue instead.
func (c *Client) call(ctx context.Context, endpoint string, wav []byte, out any) error {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	if err := c.doRequest(ctx, endpoint, wav, out); err != nil {
		c.incrementFailedRequests()
		return err
	}

	c.incrementSuccessRequests()
	c.updateAvgResponseTime(time.Since(startTime))
	return nil
}

// doRequest performs a single HTTP request to the model API
func (c *Client) doRequest(ctx context.Context, endpoint string, wav []byte, out any) error {
	requestID := uuid.NewString()

	body, contentType, err := c.createMultipartRequest(requestID, wav)
	if err != nil {
		return fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "Transcript-Worker/1.0")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return nil
}

// createMultipartRequest creates a multipart/form-data request body
func (c *Client) createMultipartRequest(requestID string, wav []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", requestID+".wav")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(wav); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := [][2]string{
		{"request_id", requestID},
		{"format", "wav"},
	}
	if c.config.Language != "" {
		fields = append(fields, [2]string{"language", c.config.Language})
	}
	if c.config.Model != "" {
		fields = append(fields, [2]string{"model", c.config.Model})
	}

	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}

// Close waits for in-flight requests to complete
func (c *Client) Close() error {
	for i := 0; i < c.config.MaxConcurrent; i++ {
		c.semaphore <- struct{}{}
	}
	return nil
}

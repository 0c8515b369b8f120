package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
)

// ErrVideoGenerationFailed is returned when the provider rejects or fails a
// generation request.
var ErrVideoGenerationFailed = errors.New("video generation failed")

var (
	providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adstudio_provider_requests_total",
			Help: "Total number of requests to the video provider by operation and status.",
		},
		[]string{"operation", "status"},
	)
	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adstudio_provider_request_duration_seconds",
			Help:    "Histogram of video provider request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// SubmitRequest carries a generation submission to the video provider.
type SubmitRequest struct {
	Prompt          string             `json:"prompt"`
	ImageData       []byte             `json:"image"`
	ImageMime       string             `json:"imageMime"`
	DurationSeconds int                `json:"durationSeconds"`
	Quality         models.QualityTier `json:"quality"`
	Provider        models.Provider    `json:"provider"`
}

// JobState is the provider's view of a job, mapped onto the orchestrator's
// status machine by the caller.
type JobState struct {
	JobID                 string           `json:"jobId"`
	Status                models.JobStatus `json:"status"`
	ProgressPct           int              `json:"progressPct"`
	DurationSeconds       int              `json:"durationSeconds"`
	TargetDurationSeconds int              `json:"targetDurationSeconds"`
	FinalVideoURL         string           `json:"finalVideoUrl"`
	RawVideoURL           string           `json:"rawVideoUrl"`
	ThumbnailURL          string           `json:"thumbnailUrl"`
	ExtensionStep         int              `json:"extensionStep"`
	ExtensionTotal        int              `json:"extensionTotal"`
	ErrorMessage          string           `json:"errorMessage"`
}

// ExtendResult describes a started extension.
type ExtendResult struct {
	ExtensionTotal        int `json:"extensionTotal"`
	ExtensionStep         int `json:"extensionStep"`
	TargetDurationSeconds int `json:"targetDurationSeconds"`
}

// VideoGenerator is the interface to the text-to-video backend. Extend
// mutates the existing provider job; it never creates a new job id.
type VideoGenerator interface {
	Submit(ctx context.Context, req SubmitRequest) (jobID string, err error)
	Poll(ctx context.Context, jobID string) (JobState, error)
	Extend(ctx context.Context, jobID string) (ExtendResult, error)
}

// VideoClientConfig configures the HTTP video provider client.
type VideoClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// videoClient is the HTTP implementation of VideoGenerator.
type videoClient struct {
	cfg        VideoClientConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewVideoClient creates a VideoGenerator talking to an HTTP provider API.
func NewVideoClient(cfg VideoClientConfig, logger *zap.Logger) VideoGenerator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &videoClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("VideoClient"),
	}
}

type submitAPIResponse struct {
	JobID string `json:"jobId"`
	Error string `json:"error,omitempty"`
}

// Submit sends the generation request, retrying transient failures with
// exponential backoff and jitter. A 4xx response is not retried.
func (c *videoClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal submit request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		var resp submitAPIResponse
		status, err := c.doJSON(ctx, http.MethodPost, "/v1/generations", body, &resp, "submit")
		if err == nil && status < 300 && resp.JobID != "" {
			return resp.JobID, nil
		}
		switch {
		case err != nil:
			lastErr = err
		case resp.Error != "":
			lastErr = fmt.Errorf("%w: %s", ErrVideoGenerationFailed, resp.Error)
		default:
			lastErr = fmt.Errorf("%w: unexpected status %d", ErrVideoGenerationFailed, status)
		}
		if status >= 400 && status < 500 {
			return "", lastErr
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		delay := float64(c.cfg.RetryDelay) * math.Pow(2, float64(attempt-1))
		jitter := delay * 0.1
		delay += jitter * (rand.Float64()*2 - 1)
		wait := time.Duration(delay)
		if wait < c.cfg.RetryDelay {
			wait = c.cfg.RetryDelay
		}
		c.logger.Warn("Submit attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

// Poll fetches the provider-side state of one job.
func (c *videoClient) Poll(ctx context.Context, jobID string) (JobState, error) {
	var state JobState
	status, err := c.doJSON(ctx, http.MethodGet, "/v1/generations/"+jobID, nil, &state, "poll")
	if err != nil {
		return JobState{}, err
	}
	if status == http.StatusNotFound {
		return JobState{}, models.ErrJobNotFound
	}
	if status >= 300 {
		return JobState{}, fmt.Errorf("%w: poll returned status %d", ErrVideoGenerationFailed, status)
	}
	return state, nil
}

// Extend asks the provider to lengthen a completed job in place.
func (c *videoClient) Extend(ctx context.Context, jobID string) (ExtendResult, error) {
	var result ExtendResult
	status, err := c.doJSON(ctx, http.MethodPost, "/v1/generations/"+jobID+"/extend", nil, &result, "extend")
	if err != nil {
		return ExtendResult{}, err
	}
	if status == http.StatusNotFound {
		return ExtendResult{}, models.ErrJobNotFound
	}
	if status == http.StatusConflict {
		return ExtendResult{}, models.ErrJobNotExtendable
	}
	if status >= 300 {
		return ExtendResult{}, fmt.Errorf("%w: extend returned status %d", ErrVideoGenerationFailed, status)
	}
	return result, nil
}

// doJSON performs one request/response cycle against the provider API and
// records metrics for it.
func (c *videoClient) doJSON(ctx context.Context, method, path string, body []byte, out interface{}, operation string) (int, error) {
	start := time.Now()
	statusLabel := "success"
	defer func() {
		providerRequestsTotal.WithLabelValues(operation, statusLabel).Inc()
		providerRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		statusLabel = "error"
		return 0, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		statusLabel = "error"
		return 0, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		statusLabel = "error"
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		statusLabel = "error"
		return resp.StatusCode, fmt.Errorf("failed to read provider response: %w", err)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			// Non-JSON error bodies are reported through the status code.
			if resp.StatusCode < 300 {
				statusLabel = "error"
				return resp.StatusCode, fmt.Errorf("failed to decode provider response: %w", err)
			}
		}
	}
	return resp.StatusCode, nil
}

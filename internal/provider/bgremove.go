package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrBackgroundRemovalFailed is returned when the removal service rejects
// or fails a request.
var ErrBackgroundRemovalFailed = errors.New("background removal failed")

// BackgroundRemover strips the background from an image. Purely
// request/response; safe to re-invoke after a failure.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, image []byte, mimeType string) ([]byte, string, error)
}

// BgRemovalClientConfig configures the HTTP background removal client.
type BgRemovalClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

type bgRemovalClient struct {
	cfg        BgRemovalClientConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewBgRemovalClient creates a BackgroundRemover over HTTP.
func NewBgRemovalClient(cfg BgRemovalClientConfig, logger *zap.Logger) BackgroundRemover {
	return &bgRemovalClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("BgRemovalClient"),
	}
}

type bgRemovalAPIRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
}

type bgRemovalAPIResponse struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
	Error    string `json:"error,omitempty"`
}

// RemoveBackground sends the image and returns the transformed bytes. The
// result is always PNG-like with transparency; the returned mime type comes
// from the service.
func (c *bgRemovalClient) RemoveBackground(ctx context.Context, image []byte, mimeType string) ([]byte, string, error) {
	payload, err := json.Marshal(bgRemovalAPIRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		MimeType: mimeType,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal removal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/remove-background", bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("failed to build removal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBackgroundRemovalFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read response: %v", ErrBackgroundRemovalFailed, err)
	}

	var apiResp bgRemovalAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, "", fmt.Errorf("%w: failed to decode response: %v", ErrBackgroundRemovalFailed, err)
	}
	if resp.StatusCode >= 300 || apiResp.Error != "" {
		c.logger.Error("Background removal rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("error", apiResp.Error),
		)
		return nil, "", fmt.Errorf("%w: %s", ErrBackgroundRemovalFailed, apiResp.Error)
	}

	data, err := base64.StdEncoding.DecodeString(apiResp.Image)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid image encoding: %v", ErrBackgroundRemovalFailed, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: service returned empty image data", ErrBackgroundRemovalFailed)
	}
	return data, apiResp.MimeType, nil
}

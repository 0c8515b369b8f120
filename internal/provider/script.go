package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
)

// ErrScriptGenerationFailed is returned when script drafting fails.
var ErrScriptGenerationFailed = errors.New("script generation failed")

var (
	scriptRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adstudio_script_requests_total",
			Help: "Total number of script drafting requests by model and status.",
		},
		[]string{"model", "status"},
	)
	scriptRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adstudio_script_request_duration_seconds",
			Help:    "Histogram of script drafting request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	scriptTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adstudio_script_tokens_total",
			Help: "Total prompt/completion tokens spent on script drafting.",
		},
		[]string{"model", "kind"},
	)
)

const scriptSystemPrompt = `You are a UGC ad scriptwriter. Given product knowledge and presenter settings, write a shot plan for a simulated on-camera testimonial video.
Respond with a single JSON object with the following fields:
"prompt" (full video generation prompt), "dialogue" (spoken lines), "sceneSummary" (one-paragraph summary), "overlay" ({"hook","cta"}), "extensionPrompts" (array of per-segment prompts for clips longer than 8 seconds), "estimatedDuration" (integer seconds, 8 when a single clip suffices).
Respond with JSON only, no prose, no code fences.`

// ScriptWriter drafts a UGC script from product knowledge and presenter
// settings. Drafting consumes no generation credits.
type ScriptWriter interface {
	WriteScript(ctx context.Context, productKnowledge string, presenter models.PresenterSettings) (models.UGCScript, error)
}

// ScriptClientConfig configures the OpenAI-compatible drafting client.
type ScriptClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type scriptClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewScriptClient creates a ScriptWriter backed by an OpenAI-compatible
// chat completion API.
func NewScriptClient(cfg ScriptClientConfig, logger *zap.Logger) (ScriptWriter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("script client: API key is not set")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &scriptClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger.Named("ScriptClient"),
	}, nil
}

// WriteScript performs one chat completion and parses the JSON script.
func (c *scriptClient) WriteScript(ctx context.Context, productKnowledge string, presenter models.PresenterSettings) (models.UGCScript, error) {
	start := time.Now()
	statusLabel := "success"
	defer func() {
		scriptRequestsTotal.WithLabelValues(c.model, statusLabel).Inc()
		scriptRequestDuration.WithLabelValues(c.model).Observe(time.Since(start).Seconds())
	}()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: scriptSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildScriptUserInput(productKnowledge, presenter),
			},
		},
		Temperature: 0.7,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		statusLabel = "error"
		c.logger.Error("Chat completion failed", zap.Error(err))
		return models.UGCScript{}, fmt.Errorf("%w: %v", ErrScriptGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		statusLabel = "error"
		return models.UGCScript{}, fmt.Errorf("%w: empty response", ErrScriptGenerationFailed)
	}

	scriptTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	scriptTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	script, err := parseScriptResponse(resp.Choices[0].Message.Content)
	if err != nil {
		statusLabel = "error"
		c.logger.Error("Failed to parse script response",
			zap.Error(err),
			zap.Int("response_length", len(resp.Choices[0].Message.Content)),
		)
		return models.UGCScript{}, err
	}
	return script, nil
}

// buildScriptUserInput renders product knowledge and presenter settings
// into the user message.
func buildScriptUserInput(productKnowledge string, presenter models.PresenterSettings) string {
	var sb strings.Builder
	sb.WriteString("Product Knowledge:\n")
	sb.WriteString(productKnowledge)
	sb.WriteString("\n\nPresenter Settings:\n")
	writeField := func(name, value string) {
		if value != "" {
			sb.WriteString(name)
			sb.WriteString(": ")
			sb.WriteString(value)
			sb.WriteString("\n")
		}
	}
	writeField("Gender", presenter.Gender)
	writeField("Age range", presenter.AgeRange)
	writeField("Tone", presenter.Tone)
	writeField("Features", presenter.Features)
	writeField("Clothing", presenter.Clothing)
	writeField("Scene/setting", presenter.Setting)
	writeField("Notes", presenter.Notes)
	return sb.String()
}

// parseScriptResponse decodes the model output into a UGCScript. Models
// occasionally wrap JSON in code fences despite instructions, so fences are
// stripped before decoding.
func parseScriptResponse(raw string) (models.UGCScript, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var script models.UGCScript
	if err := json.Unmarshal([]byte(cleaned), &script); err != nil {
		return models.UGCScript{}, fmt.Errorf("%w: invalid JSON: %v", ErrScriptGenerationFailed, err)
	}
	if script.EstimatedDuration <= 0 {
		script.EstimatedDuration = 8
	}
	return script, nil
}

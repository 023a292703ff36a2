package storyparser

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KinKeep/pkg/errors"
)

// Config holds the Gemini endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GeminiParser calls the generateContent REST endpoint once per story.
// Requests are not retried.
type GeminiParser struct {
	http   *resty.Client
	cfg    Config
	logger logging.Logger
}

var _ Parser = (*GeminiParser)(nil)

func NewGeminiParser(cfg Config, logger logging.Logger) (*GeminiParser, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeImportDisabled, "story import needs an API key")
	}
	if cfg.Model == "" {
		return nil, errors.InvalidParam("model is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("x-goog-api-key", cfg.APIKey).
		SetRetryCount(0)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &GeminiParser{http: client, cfg: cfg, logger: logger.Named("storyparser")}, nil
}

// Parse sends story to the model. A reply that is not the expected JSON is
// an error; a reply with no members is not.
func (p *GeminiParser) Parse(ctx context.Context, story string) ([]Fragment, error) {
	empty := []Fragment{}
	if strings.TrimSpace(story) == "" {
		return empty, errors.New(errors.ErrCodeStoryEmpty, "story is empty")
	}

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: buildPrompt(story)}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema(),
		},
	}

	start := time.Now()
	var out generateResponse
	var apiErr apiError
	resp, err := p.http.R().
		SetContext(ctx).
		SetPathParam("model", p.cfg.Model).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		p.logger.Error("story parser request failed", logging.Err(err))
		return empty, errors.Wrap(err, errors.ErrCodeExternalService, "story parser request failed")
	}
	if resp.IsError() {
		p.logger.Error("story parser returned an error",
			logging.Int("status_code", resp.StatusCode()),
			logging.String("status", apiErr.Error.Status),
			logging.String("message", apiErr.Error.Message))
		return empty, errors.New(errors.ErrCodeExternalService, "story parser returned an error").
			WithDetail(resp.Status())
	}

	text := out.text()
	if text == "" {
		reason := ""
		if out.PromptFeedback != nil {
			reason = out.PromptFeedback.BlockReason
		}
		p.logger.Warn("story parser returned no text", logging.String("block_reason", reason))
		return empty, errors.New(errors.ErrCodeExternalService, "story parser returned no content").WithDetail(reason)
	}

	var result storyResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		p.logger.Warn("story parser reply is not valid JSON", logging.Err(err), logging.Int("bytes", len(text)))
		return empty, errors.Wrap(err, errors.ErrCodeSerialization, "story parser reply is not valid JSON")
	}
	if result.Members == nil {
		result.Members = empty
	}

	p.logger.Info("story parsed",
		logging.Int("members", len(result.Members)),
		logging.Duration("latency", time.Since(start)))
	return result.Members, nil
}

// text joins the parts of the first candidate.
func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

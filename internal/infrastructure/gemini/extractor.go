package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/recipetube/backend/internal/domain"
)

// Config holds model selection and sampling parameters
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float32
	TopK            float32
	TopP            float32
	MaxOutputTokens int32
	Timeout         time.Duration
}

// DefaultConfig returns the sampling parameters recipes are tuned for
func DefaultConfig() Config {
	return Config{
		Model:           "gemini-1.5-flash",
		Temperature:     0.2,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
		Timeout:         60 * time.Second,
	}
}

// Extractor asks a Gemini model for recipe fields. It never retries.
type Extractor struct {
	client *genai.Client
	cfg    Config
	log    zerolog.Logger
}

// NewExtractor creates a Gemini-backed recipe extractor
func NewExtractor(ctx context.Context, cfg Config, log zerolog.Logger) (*Extractor, error) {
	defaults := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = defaults.MaxOutputTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Extractor{
		client: client,
		cfg:    cfg,
		log:    log.With().Str("component", "gemini").Str("model", cfg.Model).Logger(),
	}, nil
}

func (e *Extractor) generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(e.cfg.Temperature),
		TopK:            genai.Ptr(e.cfg.TopK),
		TopP:            genai.Ptr(e.cfg.TopP),
		MaxOutputTokens: e.cfg.MaxOutputTokens,
	}
}

// Extract builds the prompt, calls the model and parses its answer
func (e *Extractor) Extract(ctx context.Context, input domain.ExtractionInput) (domain.RecipeFields, error) {
	prompt := BuildPrompt(input)
	started := time.Now()

	resp, err := e.client.Models.GenerateContent(ctx, e.cfg.Model, genai.Text(prompt), e.generationConfig())
	if err != nil {
		e.log.Warn().Err(err).Dur("elapsed", time.Since(started)).Msg("generateContent failed")
		return domain.RecipeFields{}, &domain.ExtractionError{
			Reason:     domain.ExtractionStatus,
			StatusCode: statusCode(err),
			Err:        err,
		}
	}

	text := responseText(resp)
	e.log.Debug().Int("chars", len(text)).Dur("elapsed", time.Since(started)).Msg("generateContent succeeded")

	fields, err := ParseResponse(text)
	if err != nil {
		e.log.Warn().Err(err).Msg("unusable model response")
		return domain.RecipeFields{}, err
	}
	return fields, nil
}

// responseText returns the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// statusCode digs the HTTP status out of a genai API error, 0 if there is none
func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

package oracle

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/atspro/atspro/internal/model"
)

// GeminiConfig configures a GeminiScorer.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint. Empty means the public endpoint.
	BaseURL string
}

// GeminiScorer calls GenerateContent with a JSON response schema.
type GeminiScorer struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiScorer creates a scorer backed by the Gemini API.
func NewGeminiScorer(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiScorer, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiScorer{
		client: client,
		model:  cfg.Model,
		logger: logger.With("component", "oracle", "driver", DriverGenAI),
	}, nil
}

// Score implements Scorer.
func (s *GeminiScorer) Score(ctx context.Context, resumeText, jobDescription string) (*model.Analysis, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(buildPrompt(resumeText, jobDescription)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	})
	if err != nil {
		s.logger.Error("generate content failed", slog.String("model", s.model), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrOracleFailure, err)
	}

	analysis, err := Parse(resp.Text())
	if err != nil {
		s.logger.Warn("rejected oracle response", slog.String("model", s.model), slog.String("error", err.Error()))
		return nil, err
	}
	return analysis, nil
}

func analysisSchema() *genai.Schema {
	stringList := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"overallScore":     {Type: genai.TypeNumber},
			"matchedSkills":    stringList,
			"missingSkills":    stringList,
			"semanticAnalysis": {Type: genai.TypeString},
			"improvementTips":  stringList,
			"categoryScores": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"subject":  {Type: genai.TypeString},
						"value":    {Type: genai.TypeNumber},
						"fullMark": {Type: genai.TypeNumber},
					},
					Required: []string{"subject", "value", "fullMark"},
				},
			},
		},
		Required: []string{"overallScore", "matchedSkills", "missingSkills", "semanticAnalysis", "improvementTips", "categoryScores"},
	}
}

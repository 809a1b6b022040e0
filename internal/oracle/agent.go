package oracle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/atspro/atspro/internal/model"
)

const agentAppName = "atspro"

// AgentScorer runs an LLM agent per call over an in-memory session service.
type AgentScorer struct {
	runner   *runner.Runner
	sessions session.Service
	logger   *slog.Logger
}

// NewAgentScorer builds the agent and its runner.
func NewAgentScorer(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*AgentScorer, error) {
	if modelName == "" {
		modelName = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	llm, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	resumeAgent, err := llmagent.New(llmagent.Config{
		Name:        "resume_analyzer",
		Model:       llm,
		Description: "Analyze Resume",
		Instruction: instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	sessions := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        agentAppName,
		Agent:          resumeAgent,
		SessionService: sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	return &AgentScorer{
		runner:   r,
		sessions: sessions,
		logger:   logger.With("component", "oracle", "driver", DriverAgent),
	}, nil
}

// Score implements Scorer. Each call gets its own agent session.
func (s *AgentScorer) Score(ctx context.Context, resumeText, jobDescription string) (*model.Analysis, error) {
	created, err := s.sessions.Create(ctx, &session.CreateRequest{
		AppName:   agentAppName,
		UserID:    "scorer",
		SessionID: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create agent session: %w", ErrOracleFailure, err)
	}
	sess := created.Session
	defer func() {
		err := s.sessions.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   sess.AppName(),
			UserID:    sess.UserID(),
			SessionID: sess.ID(),
		})
		if err != nil {
			s.logger.Warn("failed to delete agent session", slog.String("session_id", sess.ID()), slog.String("error", err.Error()))
		}
	}()

	stream := s.runner.Run(ctx, sess.UserID(), sess.ID(), &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: buildMessage(resumeText, jobDescription)}},
	}, agent.RunConfig{})

	var output string
	for event, err := range stream {
		if err != nil {
			return nil, fmt.Errorf("%w: agent stream: %w", ErrOracleFailure, err)
		}
		if event != nil && event.IsFinalResponse() && event.Content != nil && len(event.Content.Parts) > 0 {
			output = event.Content.Parts[0].Text
		}
	}

	analysis, err := Parse(output)
	if err != nil {
		s.logger.Warn("rejected agent response", slog.String("error", err.Error()))
		return nil, err
	}
	return analysis, nil
}

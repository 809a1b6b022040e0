// Package oracle scores a resume against a job description with a
// generative model and validates the structured response.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atspro/atspro/internal/metrics"
	"github.com/atspro/atspro/internal/model"
)

// Drivers selectable through configuration.
const (
	DriverGenAI = "genai"
	DriverAgent = "agent"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// ErrOracleFailure covers every way a scoring call can fail: transport,
// empty output or a response that does not validate.
var ErrOracleFailure = errors.New("oracle failure")

// Scorer produces an analysis for a resume and job description.
type Scorer interface {
	Score(ctx context.Context, resumeText, jobDescription string) (*model.Analysis, error)
}

// CleanJSON strips surrounding whitespace and markdown code fences.
func CleanJSON(input string) string {
	clean := strings.TrimSpace(input)

	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")
	clean = strings.TrimSuffix(clean, "```")

	return strings.TrimSpace(clean)
}

type rawCategory struct {
	Subject  string   `json:"subject"`
	Value    *float64 `json:"value"`
	Legacy   *float64 `json:"A"`
	FullMark *float64 `json:"fullMark"`
}

type rawAnalysis struct {
	OverallScore     *float64      `json:"overallScore"`
	MatchedSkills    []string      `json:"matchedSkills"`
	MissingSkills    []string      `json:"missingSkills"`
	SemanticAnalysis string        `json:"semanticAnalysis"`
	ImprovementTips  []string      `json:"improvementTips"`
	CategoryScores   []rawCategory `json:"categoryScores"`
}

// Parse decodes and validates raw model output.
func Parse(raw string) (*model.Analysis, error) {
	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrOracleFailure)
	}

	var in rawAnalysis
	if err := json.Unmarshal([]byte(cleaned), &in); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrOracleFailure, err)
	}

	if in.OverallScore == nil {
		return nil, invalid("overallScore is missing")
	}
	if !inPercentRange(*in.OverallScore) {
		return nil, invalid("overallScore %v out of range", *in.OverallScore)
	}
	if in.MatchedSkills == nil {
		return nil, invalid("matchedSkills is missing")
	}
	if in.MissingSkills == nil {
		return nil, invalid("missingSkills is missing")
	}
	if strings.TrimSpace(in.SemanticAnalysis) == "" {
		return nil, invalid("semanticAnalysis is empty")
	}
	if len(in.ImprovementTips) == 0 {
		return nil, invalid("improvementTips is empty")
	}
	if len(in.CategoryScores) == 0 {
		return nil, invalid("categoryScores is empty")
	}

	out := &model.Analysis{
		OverallScore:     *in.OverallScore,
		MatchedSkills:    in.MatchedSkills,
		MissingSkills:    in.MissingSkills,
		SemanticAnalysis: strings.TrimSpace(in.SemanticAnalysis),
		ImprovementTips:  in.ImprovementTips,
		CategoryScores:   make([]model.CategoryScore, 0, len(in.CategoryScores)),
	}

	for i, c := range in.CategoryScores {
		value := c.Value
		if value == nil {
			value = c.Legacy
		}
		switch {
		case strings.TrimSpace(c.Subject) == "":
			return nil, invalid("categoryScores[%d].subject is empty", i)
		case value == nil:
			return nil, invalid("categoryScores[%d].value is missing", i)
		case !inPercentRange(*value):
			return nil, invalid("categoryScores[%d].value %v out of range", i, *value)
		case c.FullMark == nil || *c.FullMark <= 0:
			return nil, invalid("categoryScores[%d].fullMark must be positive", i)
		}
		out.CategoryScores = append(out.CategoryScores, model.CategoryScore{
			Subject:  c.Subject,
			Value:    *value,
			FullMark: *c.FullMark,
		})
	}

	return out, nil
}

func inPercentRange(v float64) bool {
	return v >= 0 && v <= 100
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: invalid response: %s", ErrOracleFailure, fmt.Sprintf(format, args...))
}

// instrumented records call latency and failures.
type instrumented struct {
	next    Scorer
	metrics metrics.Recorder
}

// Instrument wraps a scorer with metrics.
func Instrument(next Scorer, recorder metrics.Recorder) Scorer {
	if recorder == nil {
		return next
	}
	return &instrumented{next: next, metrics: recorder}
}

func (s *instrumented) Score(ctx context.Context, resumeText, jobDescription string) (*model.Analysis, error) {
	start := time.Now()
	analysis, err := s.next.Score(ctx, resumeText, jobDescription)
	s.metrics.ObserveOracleDuration(time.Since(start))
	if err != nil {
		s.metrics.IncOracleFailure()
	}
	return analysis, err
}

// Package testutil holds helpers shared by package tests.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/atspro/atspro/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// BaseTime is a fixed reference instant for deterministic tests.
var BaseTime = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// NewUser returns a regular user with the given id.
func NewUser(id string) model.User {
	return model.User{
		ID:       id,
		Email:    id + "@example.com",
		Password: "password1",
		Name:     "User " + id,
		Role:     model.RoleUser,
	}
}

// NewAdmin returns an admin user with the given id.
func NewAdmin(id string) model.User {
	u := NewUser(id)
	u.Role = model.RoleAdmin
	return u
}

// NewReport returns a fully populated report. offset is added to BaseTime
// to produce createdAt.
func NewReport(id, userID, jobTitle string, score float64, offset time.Duration) model.ATSReport {
	return model.ATSReport{
		ID:               id,
		UserID:           userID,
		UserName:         "User " + userID,
		JobTitle:         jobTitle,
		OverallScore:     score,
		MatchedSkills:    []string{"Go", "SQL"},
		MissingSkills:    []string{"Kubernetes"},
		SemanticAnalysis: "Solid backend profile.",
		ImprovementTips:  []string{"a", "b", "c", "d", "e"},
		CategoryScores: []model.CategoryScore{
			{Subject: "Technical Stack", Value: 80, FullMark: 100},
			{Subject: "Soft Skills", Value: 70, FullMark: 100},
		},
		CreatedAt:      BaseTime.Add(offset),
		ResumeContent:  "resume of " + userID,
		JobDescription: jobTitle + "\nresponsibilities",
		Status:         model.StatusPending,
	}
}

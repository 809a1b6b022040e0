package model

import (
	"slices"
	"time"
)

// CandidateStatus is the hiring state an admin assigns to a report.
type CandidateStatus string

const (
	StatusPending      CandidateStatus = "pending"
	StatusShortlisted  CandidateStatus = "shortlisted"
	StatusRejected     CandidateStatus = "rejected"
	StatusInterviewing CandidateStatus = "interviewing"
)

// ValidStatuses contains all valid status values.
var ValidStatuses = []CandidateStatus{StatusPending, StatusShortlisted, StatusRejected, StatusInterviewing}

// IsValid checks if the status is known.
func (s CandidateStatus) IsValid() bool {
	return slices.Contains(ValidStatuses, s)
}

// CategoryScore is one axis of the radar chart.
type CategoryScore struct {
	Subject  string  `json:"subject"`
	Value    float64 `json:"value"`
	FullMark float64 `json:"fullMark"`
}

// Analysis is the structured result returned by the scoring oracle.
type Analysis struct {
	OverallScore     float64         `json:"overallScore"`
	MatchedSkills    []string        `json:"matchedSkills"`
	MissingSkills    []string        `json:"missingSkills"`
	SemanticAnalysis string          `json:"semanticAnalysis"`
	ImprovementTips  []string        `json:"improvementTips"`
	CategoryScores   []CategoryScore `json:"categoryScores"`
}

// ATSReport is a scored resume/job-description pair.
// Status is the only field that changes after creation.
type ATSReport struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	UserName         string          `json:"userName"`
	JobTitle         string          `json:"jobTitle"`
	OverallScore     float64         `json:"overallScore"`
	MatchedSkills    []string        `json:"matchedSkills"`
	MissingSkills    []string        `json:"missingSkills"`
	SemanticAnalysis string          `json:"semanticAnalysis"`
	ImprovementTips  []string        `json:"improvementTips"`
	CategoryScores   []CategoryScore `json:"categoryScores"`
	CreatedAt        time.Time       `json:"createdAt"`
	ResumeContent    string          `json:"resumeContent"`
	JobDescription   string          `json:"jobDescription"`
	Status           CandidateStatus `json:"status"`
}

// ApplyAnalysis copies the oracle result into the report.
func (r *ATSReport) ApplyAnalysis(a *Analysis) {
	r.OverallScore = a.OverallScore
	r.MatchedSkills = a.MatchedSkills
	r.MissingSkills = a.MissingSkills
	r.SemanticAnalysis = a.SemanticAnalysis
	r.ImprovementTips = a.ImprovementTips
	r.CategoryScores = a.CategoryScores
}

// IsOwnedBy returns true if the report belongs to the given user.
func (r *ATSReport) IsOwnedBy(userID string) bool {
	return r.UserID == userID
}

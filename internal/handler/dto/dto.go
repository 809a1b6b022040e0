// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/atspro/atspro/internal/analytics"
	"github.com/atspro/atspro/internal/model"
	"github.com/atspro/atspro/internal/ranking"
)

// ErrorResponse is the error envelope shared with the middleware.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a machine-readable code, a message and, for input
// errors, the offending field.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// RegisterRequest represents the request body for creating an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest represents the request body for logging in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest represents the request body for PATCH /auth/me.
type UpdateProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	Token string             `json:"token"`
	User  model.UserResponse `json:"user"`
}

// AnalyzeRequest is the JSON form of POST /analyses.
type AnalyzeRequest struct {
	ResumeText     string `json:"resumeText"`
	JobDescription string `json:"jobDescription"`
}

// UpdateStatusRequest represents the request body for a status change.
type UpdateStatusRequest struct {
	Status model.CandidateStatus `json:"status"`
}

// ReportListResponse wraps a list of reports.
type ReportListResponse struct {
	Reports []model.ATSReport `json:"reports"`
	Total   int               `json:"total"`
}

// LeaderboardResponse is the ranked view of one job group.
type LeaderboardResponse struct {
	Job     string            `json:"job"`
	Reports []model.ATSReport `json:"reports"`
	Total   int               `json:"total"`
}

// JobGroupResponse summarises one job group.
type JobGroupResponse struct {
	JobTitle  string  `json:"jobTitle"`
	Count     int     `json:"count"`
	TopScore  float64 `json:"topScore"`
	TopReport string  `json:"topReportId,omitempty"`
}

// JobGroupListResponse lists job groups.
type JobGroupListResponse struct {
	Jobs []JobGroupResponse `json:"jobs"`
}

// UserListResponse lists users without their passwords.
type UserListResponse struct {
	Users []model.UserResponse `json:"users"`
	Total int                  `json:"total"`
}

// ToReportList wraps reports, never returning a null array.
func ToReportList(reports []model.ATSReport) ReportListResponse {
	if reports == nil {
		reports = []model.ATSReport{}
	}
	return ReportListResponse{Reports: reports, Total: len(reports)}
}

// ToJobGroups summarises groups. Each group's top report is its best-ranked one.
func ToJobGroups(groups []ranking.Group) JobGroupListResponse {
	jobs := make([]JobGroupResponse, 0, len(groups))
	for _, g := range groups {
		item := JobGroupResponse{JobTitle: g.JobTitle, Count: len(g.Reports)}
		if ranked := ranking.Rank(g.Reports); len(ranked) > 0 {
			item.TopScore = ranked[0].OverallScore
			item.TopReport = ranked[0].ID
		}
		jobs = append(jobs, item)
	}
	return JobGroupListResponse{Jobs: jobs}
}

// ToUserList converts users to their public view.
func ToUserList(users []model.User) UserListResponse {
	out := make([]model.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	return UserListResponse{Users: out, Total: len(out)}
}

// TimelineResponse lists the recorded status transitions of one report.
type TimelineResponse struct {
	ReportID string            `json:"reportId"`
	Entries  []analytics.Entry `json:"entries"`
	Total    int               `json:"total"`
}

// Package ranking groups and orders reports. Every function is pure and
// returns new slices; inputs are never modified.
package ranking

import (
	"sort"
	"strings"

	"github.com/atspro/atspro/internal/model"
)

// DefaultGroup labels reports whose job title is blank.
const DefaultGroup = "General Diagnostic"

// FilterAll selects every report in Leaderboard.
const FilterAll = "all"

// Group is the reports sharing one job title.
type Group struct {
	JobTitle string            `json:"jobTitle"`
	Reports  []model.ATSReport `json:"reports"`
}

// GroupKey returns the bucket label of a report.
func GroupKey(r model.ATSReport) string {
	if key := strings.TrimSpace(r.JobTitle); key != "" {
		return key
	}
	return DefaultGroup
}

// GroupByJobTitle buckets reports by trimmed job title, in first-seen order.
// Reports keep their input order within a group.
func GroupByJobTitle(reports []model.ATSReport) []Group {
	index := make(map[string]int)
	var groups []Group

	for _, r := range reports {
		key := GroupKey(r)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{JobTitle: key})
		}
		groups[i].Reports = append(groups[i].Reports, r)
	}
	return groups
}

// JobTitles returns the group labels in first-seen order.
func JobTitles(reports []model.ATSReport) []string {
	seen := make(map[string]struct{})
	titles := []string{}
	for _, r := range reports {
		key := GroupKey(r)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		titles = append(titles, key)
	}
	return titles
}

// Less orders by score descending, then createdAt descending, then id.
func Less(a, b model.ATSReport) bool {
	if a.OverallScore != b.OverallScore {
		return a.OverallScore > b.OverallScore
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Rank returns a sorted copy of reports.
func Rank(reports []model.ATSReport) []model.ATSReport {
	ranked := clone(reports)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Less(ranked[i], ranked[j])
	})
	return ranked
}

// Leaderboard ranks the reports of one job title. An empty filter or "all"
// ranks every report; an unknown title yields an empty slice.
func Leaderboard(reports []model.ATSReport, jobFilter string) []model.ATSReport {
	filter := strings.TrimSpace(jobFilter)
	if filter == "" || filter == FilterAll {
		return Rank(reports)
	}

	selected := []model.ATSReport{}
	for _, r := range reports {
		if GroupKey(r) == filter {
			selected = append(selected, r)
		}
	}
	return Rank(selected)
}

// History returns the reports visible to viewer, newest first. Admins see
// every report; other users see their own.
func History(reports []model.ATSReport, viewer model.User) []model.ATSReport {
	visible := []model.ATSReport{}
	for _, r := range reports {
		if viewer.IsAdmin() || r.IsOwnedBy(viewer.ID) {
			visible = append(visible, r)
		}
	}

	sort.SliceStable(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].CreatedAt.After(visible[j].CreatedAt)
		}
		return visible[i].ID < visible[j].ID
	})
	return visible
}

// WithStatus returns a copy of report with only the status changed.
func WithStatus(report model.ATSReport, status model.CandidateStatus) model.ATSReport {
	report.Status = status
	return report
}

func clone(reports []model.ATSReport) []model.ATSReport {
	out := make([]model.ATSReport, len(reports))
	copy(out, reports)
	return out
}

package model

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeName    = regexp.MustCompile(`[^\w.-]`)
)

// ExportFilename names the plain-text download of the report.
func (r *ATSReport) ExportFilename() string {
	title := whitespaceRun.ReplaceAllString(strings.TrimSpace(r.JobTitle), "_")
	title = unsafeName.ReplaceAllString(title, "")
	if title == "" {
		title = "Report"
	}
	return "ATS_Report_" + title + ".txt"
}

// PlainText renders the report for download.
func (r *ATSReport) PlainText() string {
	status := strings.ToUpper(string(r.Status))
	if status == "" {
		status = strings.ToUpper(string(StatusPending))
	}

	var b strings.Builder
	b.WriteString("ATS PRO - RESUME RELEVANCE REPORT\n")
	b.WriteString("----------------------------------\n")
	fmt.Fprintf(&b, "Job Title: %s\n", r.JobTitle)
	fmt.Fprintf(&b, "Score: %g/100\n", r.OverallScore)
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Date: %s\n", r.CreatedAt.UTC().Format("2006-01-02"))

	fmt.Fprintf(&b, "\nMATCHED SKILLS:\n%s\n", strings.Join(r.MatchedSkills, ", "))
	fmt.Fprintf(&b, "\nMISSING SKILLS:\n%s\n", strings.Join(r.MissingSkills, ", "))
	fmt.Fprintf(&b, "\nSEMANTIC ANALYSIS:\n%s\n", r.SemanticAnalysis)

	b.WriteString("\nIMPROVEMENT TIPS:\n")
	for i, tip := range r.ImprovementTips {
		fmt.Fprintf(&b, "%d. %s\n", i+1, tip)
	}
	return b.String()
}

package oracle

import "fmt"

// Subjects are the radar chart axes every analysis must score.
var Subjects = []string{
	"Technical Stack",
	"Soft Skills",
	"Experience Rank",
	"Education Match",
	"Keyword Density",
}

const instruction = `You are an applicant tracking system that evaluates a professional resume against a job description.

1. Calculate a final 'overallScore' (0-100) based on industry relevance.
2. Extract 'matchedSkills' and identify 'missingSkills'.
3. Write a detailed 'semanticAnalysis' explaining the alignment (max 150 words).
4. Provide 5 actionable 'improvementTips' for higher ATS ranking.
5. Generate 'categoryScores' (0-100, fullMark 100) for: 'Technical Stack', 'Soft Skills', 'Experience Rank', 'Education Match', 'Keyword Density'.

Each category score is an object {"subject": string, "value": number, "fullMark": number}.
You MUST return only a strict JSON object with the fields overallScore, matchedSkills, missingSkills, semanticAnalysis, improvementTips and categoryScores.`

func buildPrompt(resumeText, jobDescription string) string {
	return fmt.Sprintf("%s\n\nResume Content:\n%s\n\nTarget Job Description:\n%s\n", instruction, resumeText, jobDescription)
}

func buildMessage(resumeText, jobDescription string) string {
	return fmt.Sprintf("Job Description:\n%s\n\nResume:\n%s", jobDescription, resumeText)
}

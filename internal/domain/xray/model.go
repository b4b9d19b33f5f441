// Package xray runs an uploaded chest X-ray through the pathology scorer and
// the language model, then files the findings as conditions and the report as
// a clinical note.
package xray

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pavankad/healthcare-ai-assistant/internal/domain/clinical"
)

// DefaultProvider is recorded on the note when the upload names none.
const DefaultProvider = "AI X-ray Analysis"

// Score thresholds.
const (
	FindingThreshold  = 0.3
	ModerateThreshold = 0.5
	SevereThreshold   = 0.7
)

var allowedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true,
	".tif": true, ".tiff": true, ".dcm": true,
}

// Allowed reports whether ext (lower case, with the dot) is an accepted image type.
func Allowed(ext string) bool {
	return allowedExtensions[ext]
}

type Finding struct {
	Pathology string  `json:"pathology"`
	Score     float64 `json:"score"`
	Severity  string  `json:"severity"`
}

// Result is the outcome of one analysis.
type Result struct {
	NoteID       int64              `json:"note_id"`
	ConditionIDs []int64            `json:"condition_ids"`
	Findings     []Finding          `json:"findings"`
	Scores       map[string]float64 `json:"scores"`
}

// Severity grades a pathology score.
func Severity(score float64) string {
	switch {
	case score >= SevereThreshold:
		return clinical.SeveritySevere
	case score >= ModerateThreshold:
		return clinical.SeverityModerate
	default:
		return clinical.SeverityMild
	}
}

// Findings returns the pathologies scoring above FindingThreshold, highest
// score first and by name among equal scores.
func Findings(scores map[string]float64) []Finding {
	findings := []Finding{}
	for name, score := range scores {
		if score > FindingThreshold {
			findings = append(findings, Finding{Pathology: name, Score: score, Severity: Severity(score)})
		}
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Score != findings[j].Score {
			return findings[i].Score > findings[j].Score
		}
		return findings[i].Pathology < findings[j].Pathology
	})
	return findings
}

func sortedNames(scores map[string]float64) []string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AnalysisError wraps the failure of any pipeline stage. Its message, cause
// included, is returned to the client.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return "X-ray analysis failed: " + e.Err.Error()
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func (e *AnalysisError) StatusCode() int {
	return http.StatusInternalServerError
}

const systemPrompt = "You are an expert radiologist providing medical interpretations of X-ray analysis results. " +
	"Provide structured, professional medical reports."

func userPrompt(scores map[string]float64, patientContext string) string {
	var b strings.Builder
	b.WriteString("You are an expert radiologist analyzing X-ray results from a deep learning model. ")
	b.WriteString("The model has analyzed a chest X-ray and provided probability scores for various pathologies.\n\n")
	if patientContext != "" {
		fmt.Fprintf(&b, "Patient Information:\n%s\n\n", patientContext)
	}
	b.WriteString("X-ray Analysis Results:\n")
	for _, name := range sortedNames(scores) {
		fmt.Fprintf(&b, "- %s: %.4f\n", name, scores[name])
	}
	b.WriteString(`
Please provide a comprehensive medical interpretation including:

1. **Primary Findings**: List the most significant findings (scores > 0.3 are typically considered positive)
2. **Clinical Significance**: Explain what these findings might indicate
3. **Differential Diagnosis**: List possible conditions based on the findings
4. **Recommended Actions**: Suggest appropriate follow-up care or additional testing
5. **Clinical Summary**: Provide a concise summary suitable for medical records

Important Guidelines:
- Scores > 0.5 are considered highly suggestive
- Scores 0.3-0.5 are moderately suggestive
- Scores < 0.3 are typically not clinically significant
- Always emphasize need for clinical correlation

Format your response as a structured medical report with clear sections.
`)
	return b.String()
}

const disclaimer = `This analysis is for educational/research purposes only.
Always consult with qualified medical professionals for actual diagnosis.
AI analysis should supplement, not replace, clinical expertise.`

func report(at time.Time, imageName string, scores map[string]float64, findings []Finding, interpretation string) string {
	rule := strings.Repeat("-", 30)

	var b strings.Builder
	b.WriteString("CHEST X-RAY ANALYSIS REPORT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "Analysis Date: %s\n", at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Image File: %s\n\n", imageName)

	fmt.Fprintf(&b, "RAW MODEL RESULTS\n%s\n", rule)
	for _, name := range sortedNames(scores) {
		fmt.Fprintf(&b, "%s: %.4f\n", name, scores[name])
	}

	fmt.Fprintf(&b, "\nFINDINGS\n%s\n", rule)
	if len(findings) == 0 {
		b.WriteString("No significant findings\n")
	}
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s: %.4f (%s)\n", f.Pathology, f.Score, f.Severity)
	}

	fmt.Fprintf(&b, "\nAI INTERPRETATION\n%s\n%s\n", rule, strings.TrimSpace(interpretation))
	fmt.Fprintf(&b, "\nDISCLAIMER\n%s\n%s\n", rule, disclaimer)
	return b.String()
}

package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const (
	maxViolationsShown      = 10
	maxRecommendationsShown = 5
)

// Filename is the dated attachment name for one generated document.
func Filename(now time.Time) string {
	return fmt.Sprintf("Credit-Report-Analysis-%s.html", now.Format("2006-01-02"))
}

// Document renders an analysis result into a printable HTML report. Pure
// transform: no network, no persistence; missing optional fields come out as
// neutral placeholders instead of failing. Long lists are truncated with a
// remainder note to bound document size.
func Document(results map[string]any, leadName string, now time.Time) ([]byte, error) {
	view := buildView(results, leadName, now)
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}

type violationView struct {
	Title       string
	Bureau      string
	Priority    string
	Description string
	LegalBasis  string
}

type recommendationView struct {
	Title       string
	Description string
}

type reportView struct {
	LeadName        string
	Date            string
	Year            int
	ViolationCount  int
	Damages         string
	Bureaus         string
	OverallScore    string
	Summary         string
	KeyFindings     []string
	Violations      []violationView
	MoreViolations  int
	Recommendations []recommendationView
}

func buildView(results map[string]any, leadName string, now time.Time) reportView {
	v := reportView{
		LeadName:     leadName,
		Date:         now.Format("January 2, 2006"),
		Year:         now.Year(),
		Damages:      "$0",
		Bureaus:      "N/A",
		OverallScore: "N/A",
		Summary:      "No summary available.",
	}
	if v.LeadName == "" {
		v.LeadName = "Valued Client"
	}

	// the result shape belongs to the model; every read is defensive
	if es, ok := results["executive_summary"].(map[string]any); ok {
		v.Damages = str(es, "estimated_damages", v.Damages)
		v.OverallScore = str(es, "overall_score", v.OverallScore)
		v.Summary = str(es, "summary", v.Summary)
		if bureaus := strList(es, "bureaus_analyzed"); len(bureaus) > 0 {
			v.Bureaus = join(bureaus)
		}
		v.KeyFindings = strList(es, "key_findings")
	} else if s := str(results, "summary", ""); s != "" {
		v.Summary = s
	}

	violations := list(results, "violations")
	if len(violations) == 0 {
		violations = list(results, "fcraViolations")
	}
	v.ViolationCount = len(violations)
	for i, raw := range violations {
		if i == maxViolationsShown {
			v.MoreViolations = len(violations) - maxViolationsShown
			break
		}
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		v.Violations = append(v.Violations, violationView{
			Title:       firstStr(item, []string{"type", "title", "violationType"}, "Violation"),
			Bureau:      firstStr(item, []string{"bureau", "accountName"}, "N/A"),
			Priority:    firstStr(item, []string{"priority", "severity"}, "N/A"),
			Description: firstStr(item, []string{"description", "details", "issue"}, ""),
			LegalBasis:  firstStr(item, []string{"legal_basis", "legalBasis"}, ""),
		})
	}

	recommendations := list(results, "recommendations")
	for i, raw := range recommendations {
		if i == maxRecommendationsShown {
			break
		}
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		v.Recommendations = append(v.Recommendations, recommendationView{
			Title:       firstStr(item, []string{"title", "action"}, "Recommendation"),
			Description: firstStr(item, []string{"description", "details"}, ""),
		})
	}

	return v
}

func str(m map[string]any, key, fallback string) string {
	switch val := m[key].(type) {
	case string:
		if val != "" {
			return val
		}
	case float64:
		return fmt.Sprintf("%v", val)
	}
	return fallback
}

func firstStr(m map[string]any, keys []string, fallback string) string {
	for _, k := range keys {
		if s := str(m, k, ""); s != "" {
			return s
		}
	}
	return fallback
}

func list(m map[string]any, key string) []any {
	l, _ := m[key].([]any)
	return l
}

func strList(m map[string]any, key string) []string {
	var out []string
	for _, item := range list(m, key) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func join(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body { font-family: 'Helvetica', 'Arial', sans-serif; color: #1a1a1a; line-height: 1.6; padding: 40px; max-width: 800px; margin: 0 auto; }
    .header { text-align: center; border-bottom: 3px solid #dc2626; padding-bottom: 20px; margin-bottom: 30px; }
    .logo-text { font-size: 24px; font-weight: bold; }
    .logo-subtitle { font-size: 12px; color: #666; margin-top: 5px; }
    .report-title { font-size: 28px; font-weight: bold; margin: 20px 0 10px; }
    .report-date { color: #666; font-size: 14px; }
    .summary-box { background: #f8f9fa; border: 1px solid #e5e7eb; border-radius: 8px; padding: 20px; margin: 20px 0; }
    .summary-grid { display: grid; grid-template-columns: repeat(2, 1fr); gap: 15px; }
    .stat-item { padding: 15px; background: white; border-radius: 6px; border: 1px solid #e5e7eb; }
    .stat-label { font-size: 12px; color: #666; text-transform: uppercase; letter-spacing: 0.5px; }
    .stat-value { font-size: 24px; font-weight: bold; color: #dc2626; margin-top: 5px; }
    .section { margin: 30px 0; page-break-inside: avoid; }
    .section-title { font-size: 18px; font-weight: bold; border-bottom: 2px solid #dc2626; padding-bottom: 10px; margin-bottom: 15px; }
    .violation-item { background: #fff5f5; border: 1px solid #fecaca; border-radius: 6px; padding: 15px; margin: 10px 0; }
    .violation-title { font-weight: bold; color: #dc2626; }
    .violation-detail { font-size: 14px; color: #666; margin-top: 5px; }
    .recommendation-item { background: #f0fdf4; border: 1px solid #bbf7d0; border-radius: 6px; padding: 15px; margin: 10px 0; }
    .recommendation-title { font-weight: bold; color: #166534; }
    .footer { margin-top: 40px; padding-top: 20px; border-top: 1px solid #e5e7eb; text-align: center; font-size: 12px; color: #666; }
    ul { margin-left: 20px; margin-top: 10px; }
    li { margin: 5px 0; }
  </style>
</head>
<body>
  <div class="header">
    <div class="logo-text">Consumer Advocate Resolution Center</div>
    <div class="logo-subtitle">Credit Report Analysis</div>
    <div class="report-title">Credit Report Violation Analysis</div>
    <div class="report-date">Prepared for {{.LeadName}} &mdash; Generated: {{.Date}}</div>
  </div>

  <div class="summary-box">
    <div class="summary-grid">
      <div class="stat-item">
        <div class="stat-label">Violations Found</div>
        <div class="stat-value">{{.ViolationCount}}</div>
      </div>
      <div class="stat-item">
        <div class="stat-label">Potential Damages</div>
        <div class="stat-value">{{.Damages}}</div>
      </div>
      <div class="stat-item">
        <div class="stat-label">Bureaus Analyzed</div>
        <div class="stat-value">{{.Bureaus}}</div>
      </div>
      <div class="stat-item">
        <div class="stat-label">Overall Score</div>
        <div class="stat-value">{{.OverallScore}}</div>
      </div>
    </div>
  </div>

  <div class="section">
    <div class="section-title">Executive Summary</div>
    <p>{{.Summary}}</p>
    {{if .KeyFindings}}
    <h4 style="margin-top: 15px; margin-bottom: 10px;">Key Findings:</h4>
    <ul>
      {{range .KeyFindings}}<li>{{.}}</li>{{end}}
    </ul>
    {{end}}
  </div>

  {{if .Violations}}
  <div class="section">
    <div class="section-title">Violations Identified ({{.ViolationCount}})</div>
    {{range .Violations}}
    <div class="violation-item">
      <div class="violation-title">{{.Title}}</div>
      <div class="violation-detail"><strong>Bureau:</strong> {{.Bureau}} | <strong>Priority:</strong> {{.Priority}}</div>
      {{if .Description}}<div class="violation-detail">{{.Description}}</div>{{end}}
      {{if .LegalBasis}}<div class="violation-detail"><strong>Legal Basis:</strong> {{.LegalBasis}}</div>{{end}}
    </div>
    {{end}}
    {{if .MoreViolations}}<p style="color: #666; font-style: italic;">... and {{.MoreViolations}} more violations</p>{{end}}
  </div>
  {{end}}

  {{if .Recommendations}}
  <div class="section">
    <div class="section-title">Recommendations</div>
    {{range .Recommendations}}
    <div class="recommendation-item">
      <div class="recommendation-title">{{.Title}}</div>
      {{if .Description}}<div class="violation-detail">{{.Description}}</div>{{end}}
    </div>
    {{end}}
  </div>
  {{end}}

  <div class="section">
    <div class="section-title">Next Steps</div>
    <p>Based on our analysis, we recommend scheduling a consultation with one of our credit resolution specialists to discuss your options for pursuing damages and correcting these violations.</p>
    <p style="margin-top: 15px;"><strong>Contact us:</strong> Book a free consultation call to discuss your case.</p>
  </div>

  <div class="footer">
    <p><strong>Consumer Advocate Resolution Center</strong></p>
    <p>This analysis is provided for informational purposes and does not constitute legal advice.</p>
    <p>&copy; {{.Year}} Consumer Advocate Resolution Center. All rights reserved.</p>
  </div>
</body>
</html>
`))

package render

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	now := time.Date(2025, 3, 9, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "Credit-Report-Analysis-2025-03-09.html", Filename(now))
}

func TestDocumentFullResult(t *testing.T) {
	results := map[string]any{
		"executive_summary": map[string]any{
			"summary":           "Multiple reporting errors were identified.",
			"estimated_damages": "$12,000",
			"overall_score":     "Poor",
			"bureaus_analyzed":  []any{"Experian", "Equifax"},
			"key_findings":      []any{"Duplicate account", "Stale collection"},
		},
		"violations": []any{
			map[string]any{
				"type":        "Inaccurate Balance",
				"bureau":      "Experian",
				"priority":    "high",
				"description": "Balance overstated by $500.",
				"legal_basis": "FCRA 623(a)(2)",
			},
		},
		"recommendations": []any{
			map[string]any{"title": "Dispute the balance", "description": "Send a dispute letter."},
		},
	}

	doc, err := Document(results, "Jane Roe", time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	html := string(doc)
	assert.Contains(t, html, "Consumer Advocate Resolution Center")
	assert.Contains(t, html, "Jane Roe")
	assert.Contains(t, html, "March 9, 2025")
	assert.Contains(t, html, "$12,000")
	assert.Contains(t, html, "Experian, Equifax")
	assert.Contains(t, html, "Multiple reporting errors were identified.")
	assert.Contains(t, html, "Duplicate account")
	assert.Contains(t, html, "Inaccurate Balance")
	assert.Contains(t, html, "FCRA 623(a)(2)")
	assert.Contains(t, html, "Dispute the balance")
}

func TestDocumentEmptyResult(t *testing.T) {
	doc, err := Document(map[string]any{}, "", time.Now())
	require.NoError(t, err)

	html := string(doc)
	assert.Contains(t, html, "Valued Client")
	assert.Contains(t, html, "No summary available.")
	assert.Contains(t, html, "N/A")
	assert.NotContains(t, html, "Violations Identified")
}

func TestDocumentTruncatesLongLists(t *testing.T) {
	var violations []any
	for i := 0; i < 14; i++ {
		violations = append(violations, map[string]any{
			"type":   fmt.Sprintf("Violation %d", i),
			"bureau": "Equifax",
		})
	}
	var recs []any
	for i := 0; i < 8; i++ {
		recs = append(recs, map[string]any{"title": fmt.Sprintf("Rec %d", i)})
	}

	doc, err := Document(map[string]any{
		"violations":      violations,
		"recommendations": recs,
	}, "Jane", time.Now())
	require.NoError(t, err)

	html := string(doc)
	assert.Contains(t, html, "Violation 9")
	assert.NotContains(t, html, "Violation 10<")
	assert.Contains(t, html, "and 4 more violations")
	assert.Contains(t, html, "Rec 4")
	assert.NotContains(t, html, "Rec 5")
	assert.Equal(t, 5, strings.Count(html, `class="recommendation-title"`))
}

func TestDocumentLegacyKeys(t *testing.T) {
	doc, err := Document(map[string]any{
		"summary": "Legacy shaped response.",
		"fcraViolations": []any{
			map[string]any{"violationType": "Obsolete Account", "accountName": "ACME Card", "severity": "medium"},
		},
	}, "Jane", time.Now())
	require.NoError(t, err)

	html := string(doc)
	assert.Contains(t, html, "Legacy shaped response.")
	assert.Contains(t, html, "Obsolete Account")
	assert.Contains(t, html, "ACME Card")
}

func TestDocumentEscapesMarkup(t *testing.T) {
	doc, err := Document(map[string]any{
		"executive_summary": map[string]any{
			"summary": `<script>alert("x")</script>`,
		},
	}, "<b>Jane</b>", time.Now())
	require.NoError(t, err)

	html := string(doc)
	assert.NotContains(t, html, "<script>alert")
	assert.NotContains(t, html, "<b>Jane</b>")
}

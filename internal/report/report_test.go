// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/niche-engine/internal/store"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

var t0 = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

func sampleDocument() store.Document {
	score := 3.0
	return store.Document{
		Run: types.RunMetadata{
			RunID:     "run-1",
			StartedAt: t0,
			EndedAt:   t0.Add(90 * time.Second),
			Status:    types.RunPartiallyCompleted,
			PhaseLog: []types.PhaseRecord{
				{NodeID: "market_research", StartedAt: t0, EndedAt: t0.Add(2 * time.Second), Outcome: types.OutcomeSucceeded},
				{NodeID: "competition_scan", StartedAt: t0, EndedAt: t0, Outcome: types.OutcomeFailed, Error: "web_search: rate limited"},
			},
		},
		Graph: "niche-pipeline",
		Input: types.RunInput{Industry: "accounting", Region: "US", MarketType: types.MarketB2B},
		Trends: []types.Trend{
			{ID: "trend-1", Source: "google_trends", Description: "AI | bookkeeping", SignalStrength: 7.5},
		},
		PainPoints: []types.PainPoint{
			{ID: "pain-1", Source: "reddit", QuoteOrSummary: "Reconciling\nby hand", FrequencyEstimate: 6, RelatedTrendIDs: []string{"trend-1"}},
		},
		Personas: []types.Persona{
			{ID: "persona-1", DemographicProfile: "Solo bookkeepers", BuyingBehavior: "monthly SaaS", RelatedPainPointIDs: []string{"pain-1"}},
		},
		Niches: []types.Niche{
			{ID: "niche-1", Description: "Reconciliation for solo firms", EvidenceIDs: []string{"pain-1", "persona-1"}, SaturationScore: &score},
			{ID: "niche-2", Description: "Receipt capture", EvidenceIDs: []string{"trend-1"}},
		},
		Ideas: []types.Idea{
			{ID: "idea-2", ProblemStatement: "Receipts get lost", EvidenceRefs: []string{"trend-1"}, FeasibilityScore: 4, Status: types.IdeaEvidenceRejected, RejectionReason: "insufficient evidence strength"},
			{ID: "idea-1", NicheID: "niche-1", ProblemStatement: "Bank matching is manual", ValueProposition: "Close the month in an hour", EvidenceRefs: []string{"pain-1", "persona-1"}, FeasibilityScore: 8, Status: types.IdeaValidated},
		},
		Plans: []types.LaunchPlan{
			{ID: "plan-1", IdeaID: "idea-1", MVPScope: "CSV import and matching", Milestones: []string{"Private beta", "Paid launch"}, PricingTest: "$29 vs $49"},
		},
		Rejected: []types.RejectedCandidate{
			{Idea: types.Idea{ID: "idea-x"}, Reason: "evidence reference \"pain-9\" does not resolve", NodeID: "idea_generator"},
		},
		ToolLog: []tool.Record{
			{Tool: "web_search", Latency: 100 * time.Millisecond, Attempts: 1, Outcome: tool.OutcomeOK},
			{Tool: "web_search", Latency: 300 * time.Millisecond, Attempts: 3, Outcome: "rate_limited"},
			{Tool: "llm", Latency: time.Second, Attempts: 1, Outcome: tool.OutcomeOK},
		},
	}
}

func TestRender(t *testing.T) {
	out := Render(sampleDocument())

	for _, want := range []string{
		"# Niche research: accounting",
		"- Status: **partially_completed**",
		"- Duration: 1m30s",
		"- Ideas: 1 validated, 1 evidence rejected, 0 draft",
		"| market_research | succeeded | 2s |",
		`| ` + "`trend-1`" + ` | AI \| bookkeeping | 7.5 |`,
		"Reconciling by hand",
		"| `niche-1` | Reconciliation for solo firms | 3.0 | `pain-1`, `persona-1` |",
		"| `niche-2` | Receipt capture | unscored | `trend-1` |",
		"- Rejected: insufficient evidence strength",
		"1. Private beta\n2. Paid launch",
		"Pricing test: $29 vs $49",
		"- `competition_scan` failed: web_search: rate limited",
		"- candidate from `idea_generator` rejected",
		"| llm | 1 | 0 | 1 | 1s |",
		"| web_search | 2 | 1 | 4 | 200ms |",
	} {
		assert.Contains(t, out, want)
	}

	// Validated ideas come first.
	assert.Less(t, strings.Index(out, "Bank matching is manual"), strings.Index(out, "Receipts get lost"))
	// Sections appear in a fixed order.
	assert.Less(t, strings.Index(out, "## Phases"), strings.Index(out, "## Market trends"))
	assert.Less(t, strings.Index(out, "## Launch plans"), strings.Index(out, "## Tools used"))
}

func TestRender_EmptyRun(t *testing.T) {
	out := Render(store.Document{
		Run:   types.RunMetadata{RunID: "run-0", Status: types.RunFailed},
		Input: types.RunInput{Industry: "dentistry"},
	})
	assert.Contains(t, out, "- Started: unknown")
	assert.NotContains(t, out, "## ")
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleDocument()))
	assert.Equal(t, Render(sampleDocument()), buf.String())
}

func TestUnresolvedReferences(t *testing.T) {
	d := sampleDocument()
	assert.Empty(t, UnresolvedReferences(d))

	d.Ideas[0].EvidenceRefs = []string{"trend-1", "pain-9"}
	d.Niches[1].EvidenceIDs = []string{"trend-7", "pain-9"}
	assert.Equal(t, []string{"pain-9", "trend-7"}, UnresolvedReferences(d))
}

func TestLoadDocument(t *testing.T) {
	d := sampleDocument()
	dir := t.TempDir()

	for _, f := range []store.Format{store.FormatYAML, store.FormatJSON} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, store.Encode(&buf, d, f))
			path := filepath.Join(dir, "run-1."+string(f))
			require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

			got, err := LoadDocument(path)
			require.NoError(t, err)
			assert.Equal(t, "run-1", got.Run.RunID)
			assert.Len(t, got.Ideas, 2)
			assert.Equal(t, 300*time.Millisecond, got.ToolLog[1].Latency)
			assert.True(t, t0.Equal(got.Run.StartedAt))
		})
	}
}

func TestLoadDocument_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"missing file", "absent.yaml", ""},
		{"invalid yaml", "bad.yaml", ":::bad\n"},
		{"no run id", "empty.yaml", "graph: niche-pipeline\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if tt.content != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}
			_, err := LoadDocument(path)
			assert.Error(t, err)
		})
	}
}

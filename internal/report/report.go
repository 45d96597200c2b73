// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders a run document as a Markdown report and checks
// exported documents for dangling evidence references.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/niche-engine/internal/store"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// LoadDocument reads an exported run document. Files ending in .json are
// decoded as JSON, anything else as YAML.
func LoadDocument(path string) (store.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return store.Document{}, fmt.Errorf("reading document: %w", err)
	}
	var d store.Document
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &d)
	} else {
		err = yaml.Unmarshal(data, &d)
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if d.Run.RunID == "" {
		return store.Document{}, fmt.Errorf("%s has no run id", filepath.Base(path))
	}
	return d, nil
}

// UnresolvedReferences returns the evidence ids cited by niches, ideas, and
// persona or pain point links that no trend, pain point, or persona in d
// carries. Documents written by a run never have any; hand-edited exports
// may.
func UnresolvedReferences(d store.Document) []string {
	known := make(map[string]bool)
	for _, t := range d.Trends {
		known[t.ID] = true
	}
	for _, p := range d.PainPoints {
		known[p.ID] = true
	}
	for _, p := range d.Personas {
		known[p.ID] = true
	}

	missing := make(map[string]bool)
	check := func(ids []string) {
		for _, id := range ids {
			if !known[id] {
				missing[id] = true
			}
		}
	}
	for _, p := range d.PainPoints {
		check(p.RelatedTrendIDs)
	}
	for _, p := range d.Personas {
		check(p.RelatedPainPointIDs)
	}
	for _, n := range d.Niches {
		check(n.EvidenceIDs)
	}
	for _, i := range d.Ideas {
		check(i.EvidenceRefs)
	}

	out := make([]string, 0, len(missing))
	for id := range missing {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Write renders d as Markdown to w.
func Write(w io.Writer, d store.Document) error {
	_, err := io.WriteString(w, Render(d))
	return err
}

// Render returns d as a Markdown report.
func Render(d store.Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Niche research: %s\n\n", d.Input.Industry)
	fmt.Fprintf(&b, "- Run: `%s`\n", d.Run.RunID)
	fmt.Fprintf(&b, "- Graph: `%s`\n", d.Graph)
	fmt.Fprintf(&b, "- Status: **%s**\n", d.Run.Status)
	if d.Input.Region != "" {
		fmt.Fprintf(&b, "- Region: %s\n", d.Input.Region)
	}
	if d.Input.MarketType != "" {
		fmt.Fprintf(&b, "- Market: %s\n", d.Input.MarketType)
	}
	fmt.Fprintf(&b, "- Started: %s\n", stamp(d.Run.StartedAt))
	if !d.Run.EndedAt.IsZero() {
		fmt.Fprintf(&b, "- Duration: %s\n", d.Run.EndedAt.Sub(d.Run.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "- Ideas: %d validated, %d evidence rejected, %d draft\n\n",
		d.CountIdeas(types.IdeaValidated), d.CountIdeas(types.IdeaEvidenceRejected), d.CountIdeas(types.IdeaDraft))

	writePhases(&b, d.Run.PhaseLog)
	writeEvidence(&b, d)
	writeIdeas(&b, d)
	writePlans(&b, d)
	writeErrors(&b, d)
	writeTools(&b, d.ToolLog)
	return b.String()
}

func writePhases(b *strings.Builder, log []types.PhaseRecord) {
	if len(log) == 0 {
		return
	}
	b.WriteString("## Phases\n\n| Node | Outcome | Duration |\n|---|---|---|\n")
	for _, p := range log {
		fmt.Fprintf(b, "| %s | %s | %s |\n", p.NodeID, p.Outcome, p.Duration().Round(time.Millisecond))
	}
	b.WriteString("\n")
}

func writeEvidence(b *strings.Builder, d store.Document) {
	if len(d.Trends) > 0 {
		b.WriteString("## Market trends\n\n| ID | Trend | Signal |\n|---|---|---|\n")
		for _, t := range d.Trends {
			fmt.Fprintf(b, "| `%s` | %s | %.1f |\n", t.ID, cell(t.Description), t.SignalStrength)
		}
		b.WriteString("\n")
	}
	if len(d.PainPoints) > 0 {
		b.WriteString("## Pain points\n\n| ID | Complaint | Frequency | Source |\n|---|---|---|---|\n")
		for _, p := range d.PainPoints {
			fmt.Fprintf(b, "| `%s` | %s | %.1f | %s |\n", p.ID, cell(p.QuoteOrSummary), p.FrequencyEstimate, cell(p.Source))
		}
		b.WriteString("\n")
	}
	if len(d.Personas) > 0 {
		b.WriteString("## Personas\n\n")
		for _, p := range d.Personas {
			fmt.Fprintf(b, "- `%s` %s", p.ID, p.DemographicProfile)
			if p.BuyingBehavior != "" {
				fmt.Fprintf(b, " Buys: %s", p.BuyingBehavior)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(d.Niches) > 0 {
		b.WriteString("## Niches\n\n| ID | Niche | Saturation | Evidence |\n|---|---|---|---|\n")
		for _, n := range d.Niches {
			sat := "unscored"
			if n.SaturationScore != nil {
				sat = fmt.Sprintf("%.1f", *n.SaturationScore)
			}
			fmt.Fprintf(b, "| `%s` | %s | %s | %s |\n", n.ID, cell(n.Description), sat, refs(n.EvidenceIDs))
		}
		b.WriteString("\n")
	}
}

// statusOrder lists validated ideas first.
var statusOrder = map[types.IdeaStatus]int{
	types.IdeaValidated:        0,
	types.IdeaDraft:            1,
	types.IdeaEvidenceRejected: 2,
}

func writeIdeas(b *strings.Builder, d store.Document) {
	if len(d.Ideas) == 0 {
		return
	}
	ideas := append([]types.Idea(nil), d.Ideas...)
	sort.SliceStable(ideas, func(i, j int) bool {
		if statusOrder[ideas[i].Status] != statusOrder[ideas[j].Status] {
			return statusOrder[ideas[i].Status] < statusOrder[ideas[j].Status]
		}
		return ideas[i].FeasibilityScore > ideas[j].FeasibilityScore
	})

	b.WriteString("## Business ideas\n\n")
	for _, i := range ideas {
		fmt.Fprintf(b, "### %s\n\n", oneLine(i.ProblemStatement))
		fmt.Fprintf(b, "- ID: `%s` (%s)\n", i.ID, i.Status)
		if i.RejectionReason != "" {
			fmt.Fprintf(b, "- Rejected: %s\n", i.RejectionReason)
		}
		if i.ValueProposition != "" {
			fmt.Fprintf(b, "- Value: %s\n", oneLine(i.ValueProposition))
		}
		if i.WorkflowDesign != "" {
			fmt.Fprintf(b, "- Workflow: %s\n", oneLine(i.WorkflowDesign))
		}
		if i.MonetizationModel != "" {
			fmt.Fprintf(b, "- Monetization: %s\n", oneLine(i.MonetizationModel))
		}
		fmt.Fprintf(b, "- Feasibility: %.1f/10\n", i.FeasibilityScore)
		fmt.Fprintf(b, "- Evidence: %s\n\n", refs(i.EvidenceRefs))
	}
}

func writePlans(b *strings.Builder, d store.Document) {
	if len(d.Plans) == 0 {
		return
	}
	b.WriteString("## Launch plans\n\n")
	for _, p := range d.Plans {
		fmt.Fprintf(b, "### Plan for `%s`\n\n", p.IdeaID)
		if p.MVPScope != "" {
			fmt.Fprintf(b, "MVP: %s\n\n", oneLine(p.MVPScope))
		}
		for n, m := range p.Milestones {
			fmt.Fprintf(b, "%d. %s\n", n+1, oneLine(m))
		}
		if len(p.Milestones) > 0 {
			b.WriteString("\n")
		}
		if p.PricingTest != "" {
			fmt.Fprintf(b, "Pricing test: %s\n\n", oneLine(p.PricingTest))
		}
	}
}

func writeErrors(b *strings.Builder, d store.Document) {
	var lines []string
	for _, p := range d.Run.PhaseLog {
		if p.Outcome == types.OutcomeFailed || p.Outcome == types.OutcomeBlocked {
			lines = append(lines, fmt.Sprintf("- `%s` %s: %s", p.NodeID, p.Outcome, oneLine(p.Error)))
		}
	}
	for _, r := range d.Rejected {
		lines = append(lines, fmt.Sprintf("- candidate from `%s` rejected: %s", r.NodeID, oneLine(r.Reason)))
	}
	if len(lines) == 0 {
		return
	}
	b.WriteString("## Errors\n\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")
}

type toolStats struct {
	calls, failures, attempts int
	latency                   time.Duration
}

func writeTools(b *strings.Builder, log []tool.Record) {
	if len(log) == 0 {
		return
	}
	stats := make(map[string]*toolStats)
	var names []string
	for _, r := range log {
		s, ok := stats[r.Tool]
		if !ok {
			s = &toolStats{}
			stats[r.Tool] = s
			names = append(names, r.Tool)
		}
		s.calls++
		s.attempts += r.Attempts
		s.latency += r.Latency
		if r.Outcome != tool.OutcomeOK {
			s.failures++
		}
	}
	sort.Strings(names)

	b.WriteString("## Tools used\n\n| Tool | Calls | Failures | Attempts | Mean latency |\n|---|---|---|---|---|\n")
	for _, name := range names {
		s := stats[name]
		mean := s.latency / time.Duration(s.calls)
		fmt.Fprintf(b, "| %s | %d | %d | %d | %s |\n", name, s.calls, s.failures, s.attempts, mean.Round(time.Millisecond))
	}
	b.WriteString("\n")
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}

func refs(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "`" + id + "`"
	}
	return strings.Join(quoted, ", ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cell escapes s for a Markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(oneLine(s), "|", `\|`)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"bytes"
	"encoding/json"
	"text/template"
)

// maxContext bounds how much raw tool output goes into one prompt.
const maxContext = 4000

var promptFuncs = template.FuncMap{
	"json": func(v any) string {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "null"
		}
		if len(data) > maxContext {
			return string(data[:maxContext]) + "\n... (truncated)"
		}
		return string(data)
	},
	"deref": func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	},
}

func mustPrompt(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(promptFuncs).Parse(text))
}

var painPointsPrompt = mustPrompt("pain_points", `You analyze forum discussions about {{.Input.Industry}} to find recurring user complaints.
Focus on repetitive tasks, manual processes, and efficiency problems that software could remove.

Known market trends (cite their ids in related_trend_ids when a complaint relates to one):
{{json .Trends}}

Forum discussions:
{{json .Discussions}}

Respond with a JSON object {"pain_points": [...]}. Each element has:
- quote_or_summary: a short quote or faithful summary of the complaint
- source: the query or thread the complaint came from
- frequency_estimate: 0-10, how often the complaint recurs across the discussions
- related_trend_ids: ids from the trend list above, or an empty array
Do not include any text outside the JSON object.
`)

var personasPrompt = mustPrompt("personas", `You build buyer personas for a {{.Input.MarketType}} product in {{.Input.Industry}}{{if .Input.Region}} ({{.Input.Region}}){{end}}.
{{- with .Input.Audience}}
Target audience: {{.Demographic}}{{if .AgeRange}}, age {{.AgeRange}}{{end}}{{if .IncomeLevel}}, income {{.IncomeLevel}}{{end}}{{if .TechLiteracy}}, tech literacy {{.TechLiteracy}}{{end}}.
{{- end}}

Pain points (cite their ids in related_pain_point_ids):
{{json .PainPoints}}

Respond with a JSON object {"personas": [...]} with two or three personas. Each element has:
- demographic_profile: who they are, role and context
- buying_behavior: how they discover, evaluate, and pay for tools
- related_pain_point_ids: ids from the list above that this persona suffers from
Do not include any text outside the JSON object.
`)

var nichesPrompt = mustPrompt("niches", `You identify underserved niches in {{.Input.Industry}} for small, automation-first software products.

Recorded evidence. Every niche must cite at least one of these ids in evidence_ids:
Trends: {{json .Trends}}
Pain points: {{json .PainPoints}}
Personas: {{json .Personas}}

Forum signals about unmet needs and alternatives:
{{json .Signals}}

Respond with a JSON object {"niches": [...]}. Each element has:
- description: the niche, who it serves and the gap it fills
- evidence_ids: ids from the evidence above that support it
Do not invent ids. Do not include any text outside the JSON object.
`)

var ideasPrompt = mustPrompt("ideas", `You design LLM-powered micro-SaaS products built as multi-agent workflows.

Niche: {{.Niche.Description}}

Evidence for this niche (cite ids in evidence_refs; only ideas backed by this evidence are accepted):
Trends: {{json .Trends}}
Pain points: {{json .PainPoints}}
Personas: {{json .Personas}}

Propose up to two ideas. If the evidence does not clearly support an idea, return an empty list.
Respond with a JSON object {"ideas": [...]}. Each element has:
- problem_statement
- evidence_refs: ids from the evidence above
- workflow_design: the agents and steps of the workflow
- value_proposition
- target_persona_id: a persona id from above, or ""
- monetization_model
- feasibility_score: 0-10, how buildable it is by a small team
Do not include any text outside the JSON object.
`)

var validationPrompt = mustPrompt("validation", `You review micro-SaaS ideas for {{.Input.Industry}} before anyone builds them.
For each idea decide whether it is viable: a real buyer, a problem worth paying for, and a product a small team can ship.

Ideas:
{{json .Ideas}}

Respond with a JSON object {"verdicts": [...]} with one element per idea:
- idea_id
- viable: true or false
- concern: the main risk, one sentence
Do not include any text outside the JSON object.
`)

var planPrompt = mustPrompt("launch_plan", `You write launch plans for validated micro-SaaS ideas.

Idea: {{json .Idea}}
{{- if .Niche}}
Niche: {{.Niche.Description}}{{if .Niche.SaturationScore}} (competition saturation {{deref .Niche.SaturationScore}}/10){{end}}
{{- end}}

Respond with a JSON object with:
- mvp_scope: the smallest product that proves the value proposition
- milestones: four to six ordered milestones from build to first paying users
- pricing_test: how to test willingness to pay
Do not include any text outside the JSON object.
`)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

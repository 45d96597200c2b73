// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package node

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/niche-engine/internal/evidence"
	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

func seededState(t *testing.T) *state.State {
	t.Helper()
	s, err := state.Seed("run-h", time.Unix(0, 0), "seed", state.Artifacts{
		Trends:     []types.Trend{{ID: "trend-hot", Description: "AI support bots", SignalStrength: 9}},
		PainPoints: []types.PainPoint{{ID: "pain-rare", QuoteOrSummary: "ticket tagging is tedious", FrequencyEstimate: 2}},
	})
	require.NoError(t, err)
	return s
}

func newHarness(t *testing.T, tools ...tool.Tool) *Harness {
	t.Helper()
	inv := tool.NewInvoker()
	for _, tl := range tools {
		require.NoError(t, inv.Register(tl, types.ToolPolicy{MaxRetries: 0, BackoffBase: time.Millisecond}))
	}
	return NewHarness(evidence.NewGate(types.DefaultEvidenceConfig()), inv, nil, nil)
}

var ideaContract = Contract{
	Reads:  []types.Field{types.FieldTrends, types.FieldPainPoints},
	Writes: []types.Field{types.FieldIdeas},
}

func idea(id string, refs ...string) types.Idea {
	return types.Idea{ID: id, ProblemStatement: "p", EvidenceRefs: refs, FeasibilityScore: 5}
}

func TestExecute_RoutesIdeasThroughGate(t *testing.T) {
	st := seededState(t)
	h := newHarness(t)
	n := &Func{NodeID: "generator", Declared: ideaContract, Fn: func(context.Context, *state.Snapshot, tool.Client) (state.Artifacts, error) {
		strong := idea("idea-strong", "trend-hot")
		strong.Status = types.IdeaValidated // the node cannot self-validate
		return state.Artifacts{Ideas: []types.Idea{
			strong,
			idea("idea-weak", "pain-rare"),
			idea("idea-dangling", "pain-ghost"),
			idea("idea-empty"),
		}}, nil
	}}

	res := h.Execute(context.Background(), st, n)
	require.Nil(t, res.Err)
	assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 1, res.Approved)
	assert.Equal(t, 3, res.Rejected)

	snap := st.Snapshot()
	got, ok := snap.Idea("idea-strong")
	require.True(t, ok)
	assert.Equal(t, types.IdeaDraft, got.Status)

	weak, ok := snap.Idea("idea-weak")
	require.True(t, ok)
	assert.Equal(t, types.IdeaEvidenceRejected, weak.Status)
	assert.Equal(t, evidence.ReasonWeakEvidence, weak.RejectionReason)

	_, ok = snap.Idea("idea-dangling")
	assert.False(t, ok, "unresolvable candidates never enter business_ideas")
	require.Len(t, snap.Rejected, 2)
	assert.Equal(t, "unresolved evidence reference pain-ghost", snap.Rejected[0].Reason)
	assert.Equal(t, evidence.ReasonNoEvidence, snap.Rejected[1].Reason)
	assert.Equal(t, "generator", snap.Rejected[1].NodeID)
}

func TestExecute_RegatesPromotions(t *testing.T) {
	st := seededState(t)
	_, err := st.Commit("gen", state.Artifacts{Ideas: []types.Idea{
		{ID: "idea-a", ProblemStatement: "p", EvidenceRefs: []string{"trend-hot"}, Status: types.IdeaDraft},
		{ID: "idea-b", ProblemStatement: "p", EvidenceRefs: []string{"pain-rare"}, Status: types.IdeaDraft},
	}})
	require.NoError(t, err)

	forged := types.Approve()
	h := newHarness(t)
	n := &Func{NodeID: "validation", Declared: Contract{Reads: []types.Field{types.FieldIdeas}, Writes: []types.Field{types.FieldIdeas}},
		Fn: func(context.Context, *state.Snapshot, tool.Client) (state.Artifacts, error) {
			return state.Artifacts{IdeaUpdates: []state.IdeaUpdate{
				{IdeaID: "idea-a", Status: types.IdeaValidated},
				{IdeaID: "idea-b", Status: types.IdeaValidated, Gate: &forged},
			}}, nil
		}}

	res := h.Execute(context.Background(), st, n)
	require.Nil(t, res.Err)

	snap := st.Snapshot()
	a, _ := snap.Idea("idea-a")
	b, _ := snap.Idea("idea-b")
	assert.Equal(t, types.IdeaValidated, a.Status)
	assert.Equal(t, types.IdeaEvidenceRejected, b.Status, "a forged gate verdict is ignored")
	assert.Equal(t, evidence.ReasonWeakEvidence, b.RejectionReason)
}

func TestExecute_ClassifiesErrors(t *testing.T) {
	flaky := tool.Func("web_search", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, tool.Transient(errors.New("503"))
	})

	tests := []struct {
		name    string
		fn      func(ctx context.Context, view *state.Snapshot, tc tool.Client) (state.Artifacts, error)
		outcome types.Outcome
		kind    Kind
	}{
		{
			name: "input insufficient",
			fn: func(context.Context, *state.Snapshot, tool.Client) (state.Artifacts, error) {
				return state.Artifacts{}, InputInsufficient("no niches")
			},
			outcome: types.OutcomeInputInsufficient,
			kind:    KindInputInsufficient,
		},
		{
			name: "tool failure",
			fn: func(ctx context.Context, _ *state.Snapshot, tc tool.Client) (state.Artifacts, error) {
				_, err := tc.Invoke(ctx, "web_search", nil)
				return state.Artifacts{}, err
			},
			outcome: types.OutcomeFailed,
			kind:    KindToolFailure,
		},
		{
			name: "undeclared tool",
			fn: func(ctx context.Context, _ *state.Snapshot, tc tool.Client) (state.Artifacts, error) {
				_, err := tc.Invoke(ctx, "llm", nil)
				return state.Artifacts{}, err
			},
			outcome: types.OutcomeFailed,
			kind:    KindToolFailure,
		},
		{
			name: "unexpected",
			fn: func(context.Context, *state.Snapshot, tool.Client) (state.Artifacts, error) {
				return state.Artifacts{}, errors.New("boom")
			},
			outcome: types.OutcomeFailed,
			kind:    KindUnexpected,
		},
		{
			name: "invariant violation",
			fn: func(context.Context, *state.Snapshot, tool.Client) (state.Artifacts, error) {
				return state.Artifacts{Trends: []types.Trend{{ID: "trend-hot", Description: "dup"}}}, nil
			},
			outcome: types.OutcomeFailed,
			kind:    KindInvariantViolation,
		},
		{
			name: "undeclared write",
			fn: func(context.Context, *state.Snapshot, tool.Client) (state.Artifacts, error) {
				return state.Artifacts{Plans: []types.LaunchPlan{{ID: "p"}}}, nil
			},
			outcome: types.OutcomeFailed,
			kind:    KindInvariantViolation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := seededState(t)
			h := newHarness(t, flaky)
			n := &Func{NodeID: "n", Declared: Contract{
				Writes: []types.Field{types.FieldTrends},
				Tools:  []string{"web_search"},
			}, Fn: tt.fn}

			res := h.Execute(context.Background(), st, n)
			assert.Equal(t, tt.outcome, res.Outcome)
			require.NotNil(t, res.Err)
			assert.Equal(t, tt.kind, res.Err.Kind)
			assert.Equal(t, "n", res.Err.NodeID)
			assert.Equal(t, uint64(1), st.Version(), "failed nodes commit nothing")
		})
	}
}

func TestExecute_TimeoutIsUnexpected(t *testing.T) {
	st := seededState(t)
	h := newHarness(t)
	n := &Func{NodeID: "slow", Fn: func(ctx context.Context, _ *state.Snapshot, _ tool.Client) (state.Artifacts, error) {
		<-ctx.Done()
		return state.Artifacts{}, InputInsufficient("gave up")
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res := h.Execute(ctx, st, n)
	assert.Equal(t, types.OutcomeFailed, res.Outcome)
	require.NotNil(t, res.Err)
	assert.Equal(t, KindUnexpected, res.Err.Kind)
	assert.True(t, IsTimeout(res.Err))
}

func TestExecute_ViewIsScoped(t *testing.T) {
	st := seededState(t)
	h := newHarness(t)
	var sawPains bool
	n := &Func{NodeID: "reader", Declared: Contract{Reads: []types.Field{types.FieldTrends}},
		Fn: func(_ context.Context, view *state.Snapshot, _ tool.Client) (state.Artifacts, error) {
			sawPains = len(view.PainPoints) > 0
			return state.Artifacts{}, nil
		}}

	res := h.Execute(context.Background(), st, n)
	assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
	assert.False(t, sawPains)
}

func TestExecute_ViewWritesDoNotReachState(t *testing.T) {
	st := seededState(t)
	h := newHarness(t)
	gen := &Func{NodeID: "generator", Declared: ideaContract, Fn: func(context.Context, *state.Snapshot, tool.Client) (state.Artifacts, error) {
		return state.Artifacts{Ideas: []types.Idea{idea("idea-weak", "pain-rare")}}, nil
	}}
	require.Equal(t, types.OutcomeSucceeded, h.Execute(context.Background(), st, gen).Outcome)
	before := st.Version()

	tamper := &Func{NodeID: "tamper", Declared: Contract{Reads: []types.Field{types.FieldPainPoints, types.FieldIdeas}},
		Fn: func(_ context.Context, view *state.Snapshot, _ tool.Client) (state.Artifacts, error) {
			view.Ideas[0].Status = types.IdeaValidated
			view.Ideas[0].EvidenceRefs[0] = "ghost"
			view.PainPoints[0].FrequencyEstimate = 99
			return state.Artifacts{}, nil
		}}
	res := h.Execute(context.Background(), st, tamper)
	assert.Equal(t, types.OutcomeSucceeded, res.Outcome)

	snap := st.Snapshot()
	got, ok := snap.Idea("idea-weak")
	require.True(t, ok)
	assert.Equal(t, types.IdeaEvidenceRejected, got.Status)
	assert.Equal(t, []string{"pain-rare"}, got.EvidenceRefs)
	pain, _ := snap.PainPoint("pain-rare")
	assert.Equal(t, 2.0, pain.FrequencyEstimate)
	assert.Equal(t, before, st.Version())
}

func TestIsInputInsufficient(t *testing.T) {
	assert.True(t, IsInputInsufficient(InputInsufficient("x")))
	assert.False(t, IsInputInsufficient(Unexpected(errors.New("x"))))
	assert.False(t, IsInputInsufficient(errors.New("x")))
}

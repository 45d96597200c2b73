// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RunStatus is the lifecycle state of one pipeline run.
type RunStatus string

const (
	RunPending            RunStatus = "pending"
	RunRunning            RunStatus = "running"
	RunCompleted          RunStatus = "completed"
	RunFailed             RunStatus = "failed"
	RunPartiallyCompleted RunStatus = "partially_completed"
)

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunPartiallyCompleted
}

// CanTransition reports whether the run may move from s to next.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch s {
	case RunPending:
		return next == RunRunning
	case RunRunning:
		return next.Terminal()
	}
	return false
}

// Outcome is the recorded result of one node in the phase log.
type Outcome string

const (
	// OutcomeSucceeded means the node ran and its artifacts were committed.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeInputInsufficient means the node ran but found nothing to work on.
	OutcomeInputInsufficient Outcome = "input_insufficient"
	// OutcomeSkipped means a predicate or an upstream skip excluded the node.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the node ran and failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeBlocked means an upstream node failed, so the node never ran.
	OutcomeBlocked Outcome = "blocked"
	// OutcomeCancelled means the run was cancelled before the node started.
	OutcomeCancelled Outcome = "cancelled"
)

// Ran reports whether the node was actually attempted.
func (o Outcome) Ran() bool {
	return o == OutcomeSucceeded || o == OutcomeInputInsufficient || o == OutcomeFailed
}

// PhaseRecord logs one node attempt (or non-attempt) in a run.
type PhaseRecord struct {
	NodeID    string    `json:"node_id" yaml:"node_id"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	EndedAt   time.Time `json:"ended_at" yaml:"ended_at"`
	Outcome   Outcome   `json:"outcome" yaml:"outcome"`

	// Error carries the failure, skip, or block reason.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Duration returns how long the attempt took.
func (r PhaseRecord) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// RunMetadata describes a run and its phase log.
type RunMetadata struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Status    RunStatus     `json:"status" yaml:"status"`
	PhaseLog  []PhaseRecord `json:"phase_log" yaml:"phase_log"`
}

// MarketType is the business model the research targets.
type MarketType string

const (
	MarketB2B   MarketType = "B2B"
	MarketB2C   MarketType = "B2C"
	MarketB2B2C MarketType = "B2B2C"
)

// Audience narrows research to a known target group.
type Audience struct {
	Demographic    string   `json:"demographic" yaml:"demographic" mapstructure:"demographic"`
	AgeRange       string   `json:"age_range,omitempty" yaml:"age_range,omitempty" mapstructure:"age_range"`
	IncomeLevel    string   `json:"income_level,omitempty" yaml:"income_level,omitempty" mapstructure:"income_level"`
	TechLiteracy   string   `json:"tech_literacy,omitempty" yaml:"tech_literacy,omitempty" mapstructure:"tech_literacy"`
	KnownPains     []string `json:"known_pains,omitempty" yaml:"known_pains,omitempty" mapstructure:"known_pains"`
	BuyingBehavior string   `json:"buying_behavior,omitempty" yaml:"buying_behavior,omitempty" mapstructure:"buying_behavior"`
}

// RunInput is the user's research brief for one run.
type RunInput struct {
	Industry   string     `json:"industry" yaml:"industry" mapstructure:"industry"`
	Region     string     `json:"region" yaml:"region" mapstructure:"region"`
	MarketType MarketType `json:"market_type" yaml:"market_type" mapstructure:"market_type"`
	Audience   *Audience  `json:"audience,omitempty" yaml:"audience,omitempty" mapstructure:"audience"`
}

// Validate checks the brief. Market type defaults to B2B when empty.
func (in *RunInput) Validate() error {
	if strings.TrimSpace(in.Industry) == "" {
		return errors.New("industry is required")
	}
	switch in.MarketType {
	case "":
		in.MarketType = MarketB2B
	case MarketB2B, MarketB2C, MarketB2B2C:
	default:
		return fmt.Errorf("unknown market type %q (want B2B, B2C, or B2B2C)", in.MarketType)
	}
	return nil
}

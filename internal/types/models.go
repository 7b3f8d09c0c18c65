package types

import "time"

// Tone selects the register the agent speaks in for one brand.
type Tone string

const (
	ToneFormal        Tone = "formal"
	ToneProfessional  Tone = "professional"
	ToneCollaborative Tone = "collaborative"
)

// FormalityLevel selects how formal the agent's wording is.
type FormalityLevel string

const (
	FormalityHigh   FormalityLevel = "high"
	FormalityMedium FormalityLevel = "medium"
	FormalityLow    FormalityLevel = "low"
)

// Phrasing selects the sentence style the agent uses.
type Phrasing string

const (
	PhrasingConcise        Phrasing = "concise"
	PhrasingDirect         Phrasing = "direct"
	PhrasingConversational Phrasing = "conversational"
)

// ClientProfile describes one brand's tone, phrasing and labels.
// Profiles are validated and defaulted once at config load and are
// read-only afterwards.
type ClientProfile struct {
	ClientName     string         `yaml:"client_name" json:"client_name"`
	Tone           Tone           `yaml:"tone" json:"tone"`
	FormalityLevel FormalityLevel `yaml:"formality_level" json:"formality_level"`
	Phrasing       Phrasing       `yaml:"phrasing" json:"phrasing"`
	PaymentLabel   string         `yaml:"payment_label" json:"payment_label"`
	ClosingLine    string         `yaml:"closing_line" json:"closing_line"`
}

// Speaker identifies which party produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ScenarioCategory buckets scenarios by what they exercise.
type ScenarioCategory string

const (
	CategoryPositive ScenarioCategory = "positive"
	CategoryEdge     ScenarioCategory = "edge"
	CategoryBoundary ScenarioCategory = "boundary"
)

// ScenarioDefinition is a fixed scripted sequence of user turns, driven
// against a fresh session to exercise the agent deterministically.
type ScenarioDefinition struct {
	Name      string           `yaml:"name" json:"name"`
	Category  ScenarioCategory `yaml:"category" json:"category"`
	UserTurns []string         `yaml:"conversation" json:"conversation"`
}

// FailureReason classifies why a scenario run did not pass.
type FailureReason string

const (
	FailureGeneration FailureReason = "generation_error"
	FailureNoClosure  FailureReason = "no_closure"
	FailureTimeout    FailureReason = "timeout"
	FailureCancelled  FailureReason = "cancelled"
	FailureHandoff    FailureReason = "handoff"
)

// ScenarioResult records one scenario run for one client. Immutable once
// the run completes.
type ScenarioResult struct {
	RunID         string          `json:"run_id"`
	ScenarioName  string          `json:"scenario_name"`
	ClientID      string          `json:"client_id"`
	Iteration     int             `json:"iteration"`
	Passed        bool            `json:"passed"`
	ResponseTimes []time.Duration `json:"response_times"`
	FailureReason FailureReason   `json:"failure_reason,omitempty"`
	Transcript    []Turn          `json:"transcript"`
}

// ClientStats is the per-client slice of an AggregateReport.
type ClientStats struct {
	Total           int           `json:"total"`
	Passed          int           `json:"passed"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	P95ResponseTime time.Duration `json:"p95_response_time"`
	MaxResponseTime time.Duration `json:"max_response_time"`
}

// AggregateReport is derived purely from a set of ScenarioResult; it is
// recomputed from the full result set, never updated in place.
type AggregateReport struct {
	Total           int                   `json:"total"`
	Passed          int                   `json:"passed"`
	SuccessRate     float64               `json:"success_rate"`
	HandoffRate     float64               `json:"handoff_rate"`
	AvgResponseTime time.Duration         `json:"avg_response_time"`
	P95ResponseTime time.Duration         `json:"p95_response_time"`
	MaxResponseTime time.Duration         `json:"max_response_time"`
	PerClient       map[string]ClientStats `json:"per_client"`
	FailureModes    map[FailureReason]int  `json:"failure_modes"`
}

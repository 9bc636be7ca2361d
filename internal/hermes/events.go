package hermes

import "time"

// Subjects used by the insight service.
const (
	SubjectAnalysisRequested = "kepler.analysis.requested"
	SubjectInsightGenerated  = "kepler.insight.generated"
	SubjectAnalysisFailed    = "kepler.analysis.failed"
	SubjectRegistered        = "swarm.agent.kepler.registered"

	// SubjectSlackReaction carries reactions from the slack forwarder.
	SubjectSlackReaction = "swarm.slack.reaction"
)

// InsightEvent is published after a successful run. The email collaborator
// renders it without loading the full run.
type InsightEvent struct {
	RunID         string         `json:"run_id"`
	SourceID      string         `json:"source_id,omitempty"`
	Title         string         `json:"title"`
	Squad         string         `json:"squad"`
	Responsible   string         `json:"responsible"`
	Actions       int            `json:"actions"`
	EvidenceCount int            `json:"evidence_count"`
	SourceCounts  map[string]int `json:"source_counts"`
	Model         string         `json:"model"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// AnalysisFailedEvent is published when a run ends without an insight.
type AnalysisFailedEvent struct {
	RunID    string    `json:"run_id"`
	SourceID string    `json:"source_id,omitempty"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

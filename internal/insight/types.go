// Package insight holds the structured insight record and the parser that
// extracts it from model markdown.
package insight

type ActionType string

const (
	ActionUXUI       ActionType = "UX/UI"
	ActionBackend    ActionType = "Backend"
	ActionOpsProcess ActionType = "Ops/Process"
)

type Priority string

const (
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

type Action struct {
	Type        ActionType `json:"type"`
	Description string     `json:"description"`
}

// Owner is always populated.
type Owner struct {
	Squad       string `json:"squad"`
	Responsible string `json:"responsible"`
}

type DeltaAnalysis struct {
	Impact    string `json:"impact"`
	Violation string `json:"violation"`
}

// Evidence is nil on an insight that cites nothing. Count is the number of
// tickets the model says back the pattern, when it states one.
type Evidence struct {
	Tickets []string `json:"tickets,omitempty"`
	Count   *int     `json:"count,omitempty"`
}

type OtherFinding struct {
	Title    string   `json:"title"`
	Priority Priority `json:"priority"`
	Count    int      `json:"count"`
}

// ActionableInsight is the single recommendation produced per analysis run.
type ActionableInsight struct {
	Title         string         `json:"title"`
	Actions       []Action       `json:"actions"`
	Owner         Owner          `json:"owner"`
	DeltaAnalysis DeltaAnalysis  `json:"delta_analysis"`
	Evidence      *Evidence      `json:"evidence,omitempty"`
	OtherFindings []OtherFinding `json:"other_findings,omitempty"`
}

// Fallbacks used when a field cannot be extracted.
const (
	DefaultTitle     = "Insight de Feedback"
	DefaultImpact    = "Impacto no negócio não identificado na análise."
	DefaultViolation = "Nenhuma violação de meta ou diretriz identificada."
)

var DefaultOwner = Owner{Squad: "Squad de Produto", Responsible: "@product-lead"}

// DefaultInsight is returned when parsing fails outright.
func DefaultInsight() ActionableInsight {
	return ActionableInsight{
		Title:   DefaultTitle,
		Actions: []Action{},
		Owner:   DefaultOwner,
		DeltaAnalysis: DeltaAnalysis{
			Impact:    DefaultImpact,
			Violation: DefaultViolation,
		},
	}
}

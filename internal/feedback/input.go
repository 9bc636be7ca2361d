package feedback

import (
	"errors"
	"fmt"
	"strings"
)

// BusinessContext is a labelled free-text document about the organization.
type BusinessContext struct {
	Name    string `json:"name" yaml:"name"`
	Content string `json:"content" yaml:"content"`
}

// TeamMember biases the owner assignment of an insight.
type TeamMember struct {
	Name           string `json:"name,omitempty" yaml:"name"`
	Email          string `json:"email,omitempty" yaml:"email"`
	Expertise      string `json:"expertise" yaml:"expertise"`
	ResponsibleFor string `json:"responsible_for" yaml:"responsible_for"`
}

// Label returns the name, the email, or both.
func (m TeamMember) Label() string {
	name := strings.TrimSpace(m.Name)
	email := strings.TrimSpace(m.Email)
	switch {
	case name != "" && email != "":
		return name + " (" + email + ")"
	case name != "":
		return name
	default:
		return email
	}
}

func (m TeamMember) Validate() error {
	if strings.TrimSpace(m.Name) == "" && strings.TrimSpace(m.Email) == "" {
		return errors.New("team member needs a name or an email")
	}
	return nil
}

// Input is everything one analysis run looks at. It is built fresh per request
// and never mutated by the pipeline.
type Input struct {
	Tickets          []Ticket          `json:"tickets,omitempty"`
	NPS              []NPSSurvey       `json:"nps,omitempty"`
	CSAT             []CSATSurvey      `json:"csat,omitempty"`
	PlayStore        []PlayStoreReview `json:"playstore,omitempty"`
	Instagram        []InstagramPost   `json:"instagram,omitempty"`
	LinkedIn         []LinkedInPost    `json:"linkedin,omitempty"`
	BusinessContexts []BusinessContext `json:"business_contexts,omitempty"`
	Team             []TeamMember      `json:"team,omitempty"`
}

// Count returns the number of records of kind k.
func (in Input) Count(k Kind) int {
	switch k {
	case KindTicket:
		return len(in.Tickets)
	case KindNPS:
		return len(in.NPS)
	case KindCSAT:
		return len(in.CSAT)
	case KindPlayStore:
		return len(in.PlayStore)
	case KindInstagram:
		return len(in.Instagram)
	case KindLinkedIn:
		return len(in.LinkedIn)
	default:
		panic(fmt.Sprintf("feedback: unhandled kind %q", k))
	}
}

// Counts returns the per-kind record counts.
func (in Input) Counts() map[Kind]int {
	counts := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		counts[k] = in.Count(k)
	}
	return counts
}

// TotalItems is the number of records across all kinds.
func (in Input) TotalItems() int {
	total := 0
	for _, k := range Kinds {
		total += in.Count(k)
	}
	return total
}

// Empty reports whether every record list is empty.
func (in Input) Empty() bool {
	return in.TotalItems() == 0
}

// Add appends records to the list matching their kind.
func (in *Input) Add(records ...Record) {
	for _, r := range records {
		switch v := r.(type) {
		case Ticket:
			in.Tickets = append(in.Tickets, v)
		case NPSSurvey:
			in.NPS = append(in.NPS, v)
		case CSATSurvey:
			in.CSAT = append(in.CSAT, v)
		case PlayStoreReview:
			in.PlayStore = append(in.PlayStore, v)
		case InstagramPost:
			in.Instagram = append(in.Instagram, v)
		case LinkedInPost:
			in.LinkedIn = append(in.LinkedIn, v)
		default:
			panic(fmt.Sprintf("feedback: unhandled record type %T", r))
		}
	}
}

package feedback

import "fmt"

// Kind identifies one of the feedback channels.
type Kind string

const (
	KindTicket    Kind = "ticket"
	KindNPS       Kind = "nps"
	KindCSAT      Kind = "csat"
	KindPlayStore Kind = "playstore"
	KindInstagram Kind = "instagram"
	KindLinkedIn  Kind = "linkedin"
)

// Kinds lists every supported kind in prompt order.
var Kinds = []Kind{KindTicket, KindNPS, KindCSAT, KindPlayStore, KindInstagram, KindLinkedIn}

// Score ranges, inclusive.
const (
	NPSMin    = 0
	NPSMax    = 10
	CSATMin   = 0
	CSATMax   = 5
	RatingMin = 0
	RatingMax = 5
)

// ParseKind maps a user-supplied name onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "ticket", "tickets":
		return KindTicket, nil
	case "nps":
		return KindNPS, nil
	case "csat":
		return KindCSAT, nil
	case "playstore", "play_store", "reviews", "review":
		return KindPlayStore, nil
	case "instagram":
		return KindInstagram, nil
	case "linkedin":
		return KindLinkedIn, nil
	default:
		return "", fmt.Errorf("unknown feedback kind %q", s)
	}
}

// Record is implemented by the six feedback variants only.
type Record interface {
	RecordID() string
	Kind() Kind
	sealed()
}

// Comment belongs to a social post and has no lifecycle of its own.
type Comment struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Ticket struct {
	ID          string `json:"id"`
	ExternalID  string `json:"external_id,omitempty"` // identifier in the helpdesk, e.g. SUP-1234
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// DisplayID is the identifier shown to the model and cited back as evidence.
func (t Ticket) DisplayID() string {
	if t.ExternalID != "" {
		return t.ExternalID
	}
	return t.ID
}

type NPSSurvey struct {
	ID        string `json:"id"`
	Score     int    `json:"score"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"created_at"`
}

type CSATSurvey struct {
	ID        string `json:"id"`
	Score     int    `json:"score"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"created_at"`
}

type PlayStoreReview struct {
	ID        string `json:"id"`
	Rating    int    `json:"rating"`
	Text      string `json:"text"`
	Author    string `json:"author,omitempty"`
	CreatedAt string `json:"created_at"`
}

type InstagramPost struct {
	ID        string    `json:"id"`
	Caption   string    `json:"caption"`
	Likes     int       `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt string    `json:"created_at"`
}

type LinkedInPost struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Reactions int       `json:"reactions"`
	Comments  []Comment `json:"comments"`
	CreatedAt string    `json:"created_at"`
}

func (t Ticket) RecordID() string          { return t.ID }
func (s NPSSurvey) RecordID() string       { return s.ID }
func (s CSATSurvey) RecordID() string      { return s.ID }
func (r PlayStoreReview) RecordID() string { return r.ID }
func (p InstagramPost) RecordID() string   { return p.ID }
func (p LinkedInPost) RecordID() string    { return p.ID }

func (Ticket) Kind() Kind          { return KindTicket }
func (NPSSurvey) Kind() Kind       { return KindNPS }
func (CSATSurvey) Kind() Kind      { return KindCSAT }
func (PlayStoreReview) Kind() Kind { return KindPlayStore }
func (InstagramPost) Kind() Kind   { return KindInstagram }
func (LinkedInPost) Kind() Kind    { return KindLinkedIn }

func (Ticket) sealed()          {}
func (NPSSurvey) sealed()       {}
func (CSATSurvey) sealed()      {}
func (PlayStoreReview) sealed() {}
func (InstagramPost) sealed()   {}
func (LinkedInPost) sealed()    {}

// ValidNPS reports whether score is a valid NPS answer.
func ValidNPS(score int) bool { return score >= NPSMin && score <= NPSMax }

// ValidCSAT reports whether score is a valid CSAT answer.
func ValidCSAT(score int) bool { return score >= CSATMin && score <= CSATMax }

// ValidRating reports whether rating is a valid store rating.
func ValidRating(rating int) bool { return rating >= RatingMin && rating <= RatingMax }

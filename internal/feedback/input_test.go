package feedback

import "testing"

func TestInputCount_EveryKindHandled(t *testing.T) {
	var in Input
	for _, k := range Kinds {
		if got := in.Count(k); got != 0 {
			t.Errorf("Count(%s) = %d, want 0", k, got)
		}
	}
}

func TestInputAdd_RoutesByKind(t *testing.T) {
	var in Input
	in.Add(
		Ticket{ID: "s-ticket-0", Subject: "login"},
		NPSSurvey{ID: "s-nps-0", Score: 3},
		CSATSurvey{ID: "s-csat-0", Score: 2},
		PlayStoreReview{ID: "s-playstore-0", Rating: 1},
		InstagramPost{ID: "s-instagram-0"},
		LinkedInPost{ID: "s-linkedin-0"},
		Ticket{ID: "s-ticket-1", Subject: "billing"},
	)

	want := map[Kind]int{
		KindTicket:    2,
		KindNPS:       1,
		KindCSAT:      1,
		KindPlayStore: 1,
		KindInstagram: 1,
		KindLinkedIn:  1,
	}
	for k, n := range want {
		if got := in.Count(k); got != n {
			t.Errorf("Count(%s) = %d, want %d", k, got, n)
		}
	}
	if in.TotalItems() != 7 {
		t.Errorf("TotalItems() = %d, want 7", in.TotalItems())
	}
	if in.Empty() {
		t.Error("expected non-empty input")
	}
}

func TestRecordKinds(t *testing.T) {
	records := []Record{
		Ticket{}, NPSSurvey{}, CSATSurvey{}, PlayStoreReview{}, InstagramPost{}, LinkedInPost{},
	}
	if len(records) != len(Kinds) {
		t.Fatalf("expected one variant per kind, got %d variants for %d kinds", len(records), len(Kinds))
	}
	for i, r := range records {
		if r.Kind() != Kinds[i] {
			t.Errorf("variant %T has kind %s, want %s", r, r.Kind(), Kinds[i])
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"tickets":   KindTicket,
		"nps":       KindNPS,
		"csat":      KindCSAT,
		"reviews":   KindPlayStore,
		"playstore": KindPlayStore,
		"instagram": KindInstagram,
		"linkedin":  KindLinkedIn,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		if err != nil {
			t.Errorf("ParseKind(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseKind(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseKind("tiktok"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestTeamMember(t *testing.T) {
	if err := (TeamMember{Expertise: "go"}).Validate(); err == nil {
		t.Error("expected validation error without name or email")
	}
	if err := (TeamMember{Email: "ana@acme.io"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got := (TeamMember{Name: "Ana", Email: "ana@acme.io"}).Label(); got != "Ana (ana@acme.io)" {
		t.Errorf("Label() = %q", got)
	}
}

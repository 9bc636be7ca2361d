package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/kepler/internal/agent"
	"github.com/MikeSquared-Agency/kepler/internal/feedback"
	"github.com/MikeSquared-Agency/kepler/internal/hermes"
	"github.com/MikeSquared-Agency/kepler/internal/insight"
	"github.com/MikeSquared-Agency/kepler/internal/normalize"
	"github.com/MikeSquared-Agency/kepler/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAgent struct {
	last  feedback.Input
	calls int
}

func (f *fakeAgent) Run(_ context.Context, in feedback.Input) agent.Output {
	f.calls++
	f.last = in
	if in.Empty() {
		return agent.Output{Error: agent.ErrNoData.Error(), Err: agent.ErrNoData}
	}
	ins := insight.DefaultInsight()
	ins.Title = "Checkout lento"
	ins.Actions = []insight.Action{{Type: insight.ActionBackend, Description: "Cache de frete"}}
	n := 7
	ins.Evidence = &insight.Evidence{Tickets: []string{"SUP-1"}, Count: &n}
	return agent.Output{
		Success:     true,
		Insight:     &ins,
		RawResponse: "## 🎯 Checkout lento",
		Metadata:    &agent.Metadata{Model: "gpt-4o-mini", ItemsAnalyzed: in.TotalItems()},
		Warnings:    []string{"owner not found, using default"},
	}
}

type fakeStore struct {
	saved    []*store.Run
	verdicts map[uuid.UUID]string
	err      error
}

func (f *fakeStore) SaveRun(_ context.Context, r *store.Run) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, r)
	return nil
}

func (f *fakeStore) SetVerdict(_ context.Context, id uuid.UUID, verdict string) error {
	if f.verdicts == nil {
		f.verdicts = map[uuid.UUID]string{}
	}
	f.verdicts[id] = verdict
	return nil
}

type published struct {
	subject string
	data    any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(subject string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

type fakeNotifier struct {
	posted     []*store.Run
	err        error
	sequential bool // distinct ts per post
}

func (f *fakeNotifier) PostInsight(_ context.Context, run *store.Run) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.posted = append(f.posted, run)
	if f.sequential {
		return fmt.Sprintf("1700000000.%06d", len(f.posted)), nil
	}
	return "1700000000.000100", nil
}

var fixedNow = func() time.Time { return time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC) }

func TestAnalyze_Success(t *testing.T) {
	fa := &fakeAgent{}
	fs := &fakeStore{}
	fp := &fakePublisher{}
	fn := &fakeNotifier{}
	p := New(fa, discardLogger(), WithStore(fs), WithPublisher(fp), WithNotifier(fn), WithClock(fixedNow))

	req := Request{
		SourceID: "acme",
		Input:    feedback.Input{NPS: []feedback.NPSSurvey{{ID: "n1", Score: 3, Comment: "lento"}}},
		Files: []File{
			{Name: "tickets.csv", Kind: feedback.KindTicket, Format: normalize.FormatCSV, Content: "id,subject\nSUP-1,Frete demora\nSUP-2,Checkout trava\n"},
		},
	}

	run, err := p.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !run.Success || run.Title != "Checkout lento" {
		t.Fatalf("unexpected run %+v", run)
	}
	if len(fa.last.Tickets) != 2 || len(fa.last.NPS) != 1 {
		t.Errorf("expected files merged into input, got %d tickets %d nps", len(fa.last.Tickets), len(fa.last.NPS))
	}
	if run.SourceCounts["ticket"] != 2 || run.SourceCounts["nps"] != 1 || run.SourceCounts["linkedin"] != 0 {
		t.Errorf("unexpected counts %v", run.SourceCounts)
	}
	if !run.CreatedAt.Equal(fixedNow()) {
		t.Errorf("expected clock time, got %v", run.CreatedAt)
	}
	if len(fs.saved) != 1 || fs.saved[0] != run {
		t.Error("expected run persisted")
	}
	if len(fn.posted) != 1 {
		t.Error("expected slack post")
	}

	if len(fp.msgs) != 1 || fp.msgs[0].subject != hermes.SubjectInsightGenerated {
		t.Fatalf("expected insight event, got %+v", fp.msgs)
	}
	evt := fp.msgs[0].data.(hermes.InsightEvent)
	if evt.RunID != run.ID.String() || evt.Actions != 1 || evt.EvidenceCount != 7 || evt.Model != "gpt-4o-mini" {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestAnalyze_FilesOfSameKindGetDistinctIDs(t *testing.T) {
	tests := []struct {
		name     string
		sourceID string
		prefix   string
	}{
		{"explicit source", "s", "s-"},
		{"generated source", "", "req-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAgent{}
			p := New(fa, discardLogger())

			run, err := p.Analyze(context.Background(), Request{
				SourceID: tt.sourceID,
				Files: []File{
					{Name: "jan.csv", Kind: feedback.KindTicket, Format: normalize.FormatCSV, Content: "subject\nLogin\nBoleto\n"},
					{Name: "nps.csv", Kind: feedback.KindNPS, Format: normalize.FormatCSV, Content: "score\n7\n"},
					{Name: "feb.csv", Kind: feedback.KindTicket, Format: normalize.FormatCSV, Content: "subject\nFrete\n"},
					{Name: "mar.json", Kind: feedback.KindTicket, Format: normalize.FormatJSON, Content: `[{"subject": "Cupom"}]`},
				},
			})
			if err != nil {
				t.Fatal(err)
			}

			if len(fa.last.Tickets) != 4 {
				t.Fatalf("expected 4 tickets, got %d", len(fa.last.Tickets))
			}
			ids := map[string]bool{}
			for _, tk := range fa.last.Tickets {
				if ids[tk.ID] {
					t.Errorf("duplicate record id %q", tk.ID)
				}
				ids[tk.ID] = true
				if !strings.HasPrefix(tk.ID, tt.prefix) {
					t.Errorf("id %q does not start with %q", tk.ID, tt.prefix)
				}
			}
			if strings.HasPrefix(fa.last.NPS[0].ID, "-") {
				t.Errorf("unexpected nps id %q", fa.last.NPS[0].ID)
			}
			if tt.sourceID == "" && !strings.HasPrefix(run.SourceID, "req-") {
				t.Errorf("expected generated source id, got %q", run.SourceID)
			}
		})
	}
}

func TestAnalyze_DoesNotMutateCallerInput(t *testing.T) {
	fa := &fakeAgent{}
	p := New(fa, discardLogger())

	tickets := make([]feedback.Ticket, 1, 10)
	tickets[0] = feedback.Ticket{ID: "t0", Subject: "a"}
	req := Request{
		Input: feedback.Input{Tickets: tickets},
		Files: []File{{Kind: feedback.KindTicket, Format: normalize.FormatJSON, Content: `[{"subject":"b"}]`}},
	}

	if _, err := p.Analyze(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if len(fa.last.Tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(fa.last.Tickets))
	}
	if got := tickets[:2][1]; got.Subject != "" {
		t.Errorf("caller backing array was written: %+v", got)
	}
}

func TestAnalyze_SkipsBadFiles(t *testing.T) {
	fa := &fakeAgent{}
	p := New(fa, discardLogger())

	req := Request{
		Input: feedback.Input{Tickets: []feedback.Ticket{{ID: "t0", Subject: "x"}}},
		Files: []File{
			{Name: "broken.json", Kind: feedback.KindNPS, Format: normalize.FormatJSON, Content: "not json"},
		},
	}

	run, err := p.Analyze(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !run.Success {
		t.Fatalf("expected success, got %q", run.Error)
	}
	if len(run.Warnings) != 2 || !strings.HasPrefix(run.Warnings[0], "skipped broken.json") {
		t.Errorf("unexpected warnings %v", run.Warnings)
	}
}

func TestAnalyze_FailurePublishesFailedEvent(t *testing.T) {
	fp := &fakePublisher{}
	fn := &fakeNotifier{}
	fs := &fakeStore{}
	p := New(&fakeAgent{}, discardLogger(), WithStore(fs), WithPublisher(fp), WithNotifier(fn))

	run, err := p.Analyze(context.Background(), Request{SourceID: "empty"})
	if err != nil {
		t.Fatal(err)
	}
	if run.Success || run.Error != agent.ErrNoData.Error() {
		t.Errorf("unexpected run %+v", run)
	}
	if len(fs.saved) != 1 {
		t.Error("failed runs are persisted too")
	}
	if len(fn.posted) != 0 {
		t.Error("failed runs must not be posted to slack")
	}
	if len(fp.msgs) != 1 || fp.msgs[0].subject != hermes.SubjectAnalysisFailed {
		t.Fatalf("expected failed event, got %+v", fp.msgs)
	}
	evt := fp.msgs[0].data.(hermes.AnalysisFailedEvent)
	if evt.SourceID != "empty" || evt.Error == "" {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestAnalyze_SaveError(t *testing.T) {
	fp := &fakePublisher{}
	p := New(&fakeAgent{}, discardLogger(), WithStore(&fakeStore{err: errors.New("db down")}), WithPublisher(fp))

	run, err := p.Analyze(context.Background(), Request{
		Input: feedback.Input{Tickets: []feedback.Ticket{{ID: "t0", Subject: "x"}}},
	})
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected save error, got %v", err)
	}
	if run == nil || !run.Success {
		t.Error("expected the run to be returned alongside the error")
	}
	if len(fp.msgs) != 1 {
		t.Error("expected the event to be published anyway")
	}
}

func TestAnalyze_SlackFailureIsNotFatal(t *testing.T) {
	p := New(&fakeAgent{}, discardLogger(), WithNotifier(&fakeNotifier{err: errors.New("channel_not_found")}))

	run, err := p.Analyze(context.Background(), Request{
		Input: feedback.Input{Tickets: []feedback.Ticket{{ID: "t0", Subject: "x"}}},
	})
	if err != nil || !run.Success {
		t.Fatalf("expected success, got %v / %+v", err, run)
	}
}

func TestHandleAnalysisRequested(t *testing.T) {
	fa := &fakeAgent{}
	fp := &fakePublisher{}
	p := New(fa, discardLogger(), WithPublisher(fp))

	data, _ := json.Marshal(Request{
		SourceID: "nats",
		Files: []File{
			{Kind: feedback.KindPlayStore, Format: normalize.FormatJSON, Content: `[{"rating": 1, "text": "trava"}]`},
		},
	})
	p.HandleAnalysisRequested(hermes.SubjectAnalysisRequested, data)

	if fa.calls != 1 || len(fa.last.PlayStore) != 1 {
		t.Fatalf("expected one run over one review, got %d calls", fa.calls)
	}
	if len(fp.msgs) != 1 || fp.msgs[0].subject != hermes.SubjectInsightGenerated {
		t.Errorf("unexpected events %+v", fp.msgs)
	}

	p.HandleAnalysisRequested(hermes.SubjectAnalysisRequested, []byte("{bad"))
	if fa.calls != 1 {
		t.Error("malformed requests must not start a run")
	}
}

func reactionPayload(reaction, ts string) []byte {
	data, _ := json.Marshal(map[string]any{
		"metadata": map[string]string{
			"text":       reaction,
			"user_id":    "U1",
			"channel_id": "C1",
			"message_ts": ts,
		},
	})
	return data
}

func TestHandleReaction(t *testing.T) {
	fs := &fakeStore{}
	p := New(&fakeAgent{}, discardLogger(), WithStore(fs), WithNotifier(&fakeNotifier{}))

	run, err := p.Analyze(context.Background(), Request{
		Input: feedback.Input{Tickets: []feedback.Ticket{{ID: "t0", Subject: "x"}}},
	})
	if err != nil {
		t.Fatal(err)
	}

	p.HandleReaction("swarm.slack.reaction", reactionPayload(":heart:", "1700000000.000100"))
	if len(fs.verdicts) != 0 {
		t.Fatal("unknown reactions must be ignored")
	}

	p.HandleReaction("swarm.slack.reaction", reactionPayload("other", "999"))
	p.HandleReaction("swarm.slack.reaction", reactionPayload(":-1:", "999"))
	if len(fs.verdicts) != 0 {
		t.Fatal("reactions on untracked messages must be ignored")
	}

	p.HandleReaction("swarm.slack.reaction", reactionPayload(":+1:", "1700000000.000100"))
	if fs.verdicts[run.ID] != "useful" {
		t.Errorf("expected useful verdict, got %v", fs.verdicts)
	}

	p.HandleReaction("swarm.slack.reaction", reactionPayload(":-1:", "1700000000.000100"))
	if fs.verdicts[run.ID] != "useful" {
		t.Error("only the first verdict is recorded")
	}
}

func TestHandleReaction_OldestPendingIsEvicted(t *testing.T) {
	fs := &fakeStore{}
	p := New(&fakeAgent{}, discardLogger(),
		WithStore(fs), WithNotifier(&fakeNotifier{sequential: true}), WithPendingSize(2))

	var runs []*store.Run
	for i := 0; i < 3; i++ {
		run, err := p.Analyze(context.Background(), Request{
			Input: feedback.Input{Tickets: []feedback.Ticket{{ID: "t0", Subject: "x"}}},
		})
		if err != nil {
			t.Fatal(err)
		}
		runs = append(runs, run)
	}
	if n := p.pending.Len(); n != 2 {
		t.Fatalf("expected 2 pending messages, got %d", n)
	}

	p.HandleReaction("swarm.slack.reaction", reactionPayload(":+1:", "1700000000.000001"))
	if _, ok := fs.verdicts[runs[0].ID]; ok {
		t.Error("evicted message must not record a verdict")
	}

	p.HandleReaction("swarm.slack.reaction", reactionPayload(":-1:", "1700000000.000003"))
	if fs.verdicts[runs[2].ID] != "not_useful" {
		t.Errorf("expected not_useful verdict, got %v", fs.verdicts)
	}
}

// Package processor drives analysis runs for the service: it normalizes raw
// uploads, runs the agent, persists and announces the result, and records
// reviewer feedback from Slack.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MikeSquared-Agency/kepler/internal/agent"
	"github.com/MikeSquared-Agency/kepler/internal/feedback"
	"github.com/MikeSquared-Agency/kepler/internal/hermes"
	"github.com/MikeSquared-Agency/kepler/internal/normalize"
	"github.com/MikeSquared-Agency/kepler/internal/slack"
	"github.com/MikeSquared-Agency/kepler/internal/store"
)

// DefaultRunTimeout bounds a run started from a NATS message.
const DefaultRunTimeout = 3 * time.Minute

// DefaultPendingSize caps how many posted insights still accept a reaction.
// Older messages are forgotten first.
const DefaultPendingSize = 1024

// Analyzer runs one analysis. *agent.Agent satisfies it.
type Analyzer interface {
	Run(ctx context.Context, in feedback.Input) agent.Output
}

type RunStore interface {
	SaveRun(ctx context.Context, r *store.Run) error
	SetVerdict(ctx context.Context, id uuid.UUID, verdict string) error
}

type Publisher interface {
	Publish(subject string, data any) error
}

type Notifier interface {
	PostInsight(ctx context.Context, run *store.Run) (string, error)
}

// File is a raw feedback export attached to a request.
type File struct {
	Name    string           `json:"name,omitempty"`
	Kind    feedback.Kind    `json:"kind"`
	Format  normalize.Format `json:"format"`
	Content string           `json:"content"`
}

// Request asks for one analysis over Input plus any raw Files. An empty
// SourceID is replaced by a generated one so record ids stay meaningful.
type Request struct {
	SourceID string         `json:"source_id,omitempty"`
	Input    feedback.Input `json:"input"`
	Files    []File         `json:"files,omitempty"`
}

type Processor struct {
	agent  Analyzer
	store  RunStore
	hermes Publisher
	slack  Notifier
	logger *slog.Logger
	now    func() time.Time

	pendingSize int
	mu          sync.Mutex
	pending     *lru.Cache[string, uuid.UUID] // slack message ts -> run id
}

type Option func(*Processor)

func WithStore(s RunStore) Option {
	return func(p *Processor) { p.store = s }
}

func WithPublisher(pub Publisher) Option {
	return func(p *Processor) { p.hermes = pub }
}

func WithNotifier(n Notifier) Option {
	return func(p *Processor) { p.slack = n }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithPendingSize sets how many posted insights are remembered for reactions.
func WithPendingSize(n int) Option {
	return func(p *Processor) { p.pendingSize = n }
}

func New(a Analyzer, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		agent:       a,
		logger:      logger,
		now:         time.Now,
		pendingSize: DefaultPendingSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.pendingSize <= 0 {
		p.pendingSize = DefaultPendingSize
	}
	// lru.New only fails on a non-positive size.
	p.pending, _ = lru.New[string, uuid.UUID](p.pendingSize)
	return p
}

// Analyze runs one analysis and returns the run record. A failed analysis is
// not an error: the run carries the reason. Errors are reserved for
// persistence failures, in which case the run is still returned.
func (p *Processor) Analyze(ctx context.Context, req Request) (*store.Run, error) {
	in := cloneInput(req.Input)
	if req.SourceID == "" {
		req.SourceID = "req-" + uuid.NewString()[:8]
	}

	var warnings []string
	seen := make(map[feedback.Kind]bool)
	for i, f := range req.Files {
		// Every file after the first of its kind gets its own id namespace.
		src := req.SourceID
		if seen[f.Kind] {
			src = fmt.Sprintf("%s-%d", req.SourceID, i)
		}
		n, err := normalize.NormalizeInto(&in, []byte(f.Content), f.Format, f.Kind, src)
		if err != nil {
			name := f.Name
			if name == "" {
				name = fmt.Sprintf("file %d", i)
			}
			p.logger.Warn("skipping file", "file", name, "kind", f.Kind, "error", err)
			warnings = append(warnings, fmt.Sprintf("skipped %s: %v", name, err))
			continue
		}
		seen[f.Kind] = true
		p.logger.Debug("normalized file", "file", f.Name, "kind", f.Kind, "records", n)
	}

	out := p.agent.Run(ctx, in)
	out.Warnings = append(warnings, out.Warnings...)

	run := store.NewRun(req.SourceID, out, sourceCounts(in), p.now())

	if p.store != nil {
		if err := p.store.SaveRun(ctx, run); err != nil {
			p.logger.Error("failed to save run", "run_id", run.ID, "error", err)
			p.announce(run)
			return run, fmt.Errorf("save run: %w", err)
		}
	}

	p.announce(run)

	if run.Success && p.slack != nil {
		ts, err := p.slack.PostInsight(ctx, run)
		if err != nil {
			p.logger.Error("slack post failed", "run_id", run.ID, "error", err)
		} else {
			p.mu.Lock()
			p.pending.Add(ts, run.ID)
			p.mu.Unlock()
		}
	}

	p.logger.Info("analysis finished",
		"run_id", run.ID,
		"source_id", run.SourceID,
		"success", run.Success,
		"title", run.Title,
		"warnings", len(run.Warnings),
	)
	return run, nil
}

func (p *Processor) announce(run *store.Run) {
	if p.hermes == nil {
		return
	}

	if !run.Success {
		evt := hermes.AnalysisFailedEvent{
			RunID:    run.ID.String(),
			SourceID: run.SourceID,
			Error:    run.Error,
			FailedAt: run.CreatedAt,
		}
		if err := p.hermes.Publish(hermes.SubjectAnalysisFailed, evt); err != nil {
			p.logger.Error("failed to publish analysis failed", "run_id", run.ID, "error", err)
		}
		return
	}

	if err := p.hermes.Publish(hermes.SubjectInsightGenerated, insightEvent(run)); err != nil {
		p.logger.Error("failed to publish insight", "run_id", run.ID, "error", err)
	}
}

func insightEvent(run *store.Run) hermes.InsightEvent {
	in := run.Insight
	evt := hermes.InsightEvent{
		RunID:        run.ID.String(),
		SourceID:     run.SourceID,
		Title:        in.Title,
		Squad:        in.Owner.Squad,
		Responsible:  in.Owner.Responsible,
		Actions:      len(in.Actions),
		SourceCounts: run.SourceCounts,
		GeneratedAt:  run.CreatedAt,
	}
	if in.Evidence != nil {
		evt.EvidenceCount = len(in.Evidence.Tickets)
		if in.Evidence.Count != nil {
			evt.EvidenceCount = *in.Evidence.Count
		}
	}
	if run.Metadata != nil {
		evt.Model = run.Metadata.Model
	}
	return evt
}

// HandleAnalysisRequested is the NATS handler for kepler.analysis.requested.
func (p *Processor) HandleAnalysisRequested(subject string, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		p.logger.Error("failed to parse analysis request", "subject", subject, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultRunTimeout)
	defer cancel()

	p.logger.Info("analysis requested", "source_id", req.SourceID, "files", len(req.Files))
	if _, err := p.Analyze(ctx, req); err != nil {
		p.logger.Error("analysis request failed", "source_id", req.SourceID, "error", err)
	}
}

// HandleReaction records a reviewer's verdict on a posted insight.
func (p *Processor) HandleReaction(subject string, data []byte) {
	evt, err := slack.ParseReactionEvent(data)
	if err != nil {
		p.logger.Error("failed to parse reaction", "error", err)
		return
	}

	verdict := slack.ParseReaction(evt.Reaction)
	if verdict == slack.VerdictUnknown {
		return
	}

	p.mu.Lock()
	runID, ok := p.pending.Peek(evt.MessageTS)
	if ok {
		p.pending.Remove(evt.MessageTS)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	p.logger.Info("insight reviewed",
		"run_id", runID,
		"verdict", string(verdict),
		"user_id", evt.UserID,
	)

	if p.store == nil {
		return
	}
	err = p.store.SetVerdict(context.Background(), runID, string(verdict))
	if errors.Is(err, store.ErrNotFound) {
		p.logger.Warn("reviewed run not found", "run_id", runID)
		return
	}
	if err != nil {
		p.logger.Error("failed to record verdict", "run_id", runID, "error", err)
	}
}

func sourceCounts(in feedback.Input) map[string]int {
	counts := make(map[string]int, len(feedback.Kinds))
	for k, n := range in.Counts() {
		counts[string(k)] = n
	}
	return counts
}

// cloneInput clips every slice so appends never write into the caller's
// backing arrays.
func cloneInput(in feedback.Input) feedback.Input {
	in.Tickets = slices.Clip(in.Tickets)
	in.NPS = slices.Clip(in.NPS)
	in.CSAT = slices.Clip(in.CSAT)
	in.PlayStore = slices.Clip(in.PlayStore)
	in.Instagram = slices.Clip(in.Instagram)
	in.LinkedIn = slices.Clip(in.LinkedIn)
	return in
}

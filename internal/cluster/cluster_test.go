package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/MikeSquared-Agency/kepler/internal/feedback"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float64
		b        []float64
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float64{1.0, 2.0, 3.0},
			b:        []float64{1.0, 2.0, 3.0},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float64{1.0, 0.0},
			b:        []float64{0.0, 1.0},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        []float64{1.0, 2.0},
			b:        []float64{-1.0, -2.0},
			expected: -1.0,
		},
		{
			name:     "different lengths",
			a:        []float64{1.0, 2.0},
			b:        []float64{1.0, 2.0, 3.0},
			expected: 0.0,
		},
		{
			name:     "zero vector",
			a:        []float64{0.0, 0.0},
			b:        []float64{1.0, 2.0},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cosineSimilarity(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("cosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

// at returns a 2-d unit vector whose cosine with (1, 0) is sim.
func at(sim float64) []float64 {
	return []float64{sim, math.Sqrt(1 - sim*sim)}
}

func TestGroup_Threshold(t *testing.T) {
	seed := []float64{1, 0, 0, 0, 0}
	tests := []struct {
		name      string
		candidate []float64
		merged    bool
	}{
		{name: "above", candidate: pad(at(0.76)), merged: true},
		{name: "below", candidate: pad(at(0.74)), merged: false},
		// (3,2,1,1,1) has norm 4, so its cosine with the seed is exactly 0.75.
		{name: "boundary", candidate: []float64{3, 2, 1, 1, 1}, merged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := []Item{{ID: "a", Text: "a"}, {ID: "b", Text: "b"}}
			clusters := Group(items, [][]float64{seed, tt.candidate}, DefaultThreshold)
			if got := len(clusters) == 1; got != tt.merged {
				t.Errorf("merged = %v, want %v (clusters: %d)", got, tt.merged, len(clusters))
			}
		})
	}
}

func pad(v []float64) []float64 {
	return append(v, 0, 0, 0)
}

func TestGroup_SeedOnlyMembership(t *testing.T) {
	// b and c are each close to the seed but far from each other.
	items := []Item{{ID: "seed"}, {ID: "b"}, {ID: "c"}}
	embeddings := [][]float64{
		{1, 0},
		{0.8, 0.6},
		{0.8, -0.6},
	}
	clusters := Group(items, embeddings, DefaultThreshold)
	if len(clusters) != 1 || clusters[0].Size != 3 {
		t.Fatalf("expected one cluster of 3, got %+v", clusters)
	}
	if clusters[0].Representative.ID != "seed" {
		t.Errorf("expected seed to be closest to centroid, got %q", clusters[0].Representative.ID)
	}
}

func TestGroup_MismatchedEmbeddings(t *testing.T) {
	if got := Group([]Item{{ID: "a"}}, nil, DefaultThreshold); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestKeep(t *testing.T) {
	score := func(v int) *int { return &v }
	single := func(kind feedback.Kind, s *int) Cluster {
		return Cluster{Items: []Item{{Kind: kind, Score: s}}, Size: 1}
	}

	tests := []struct {
		name string
		in   Cluster
		want bool
	}{
		{"pair", Cluster{Items: []Item{{}, {}}, Size: 2}, true},
		{"low nps", single(feedback.KindNPS, score(6)), true},
		{"high nps", single(feedback.KindNPS, score(7)), false},
		{"low csat", single(feedback.KindCSAT, score(2)), true},
		{"ok csat", single(feedback.KindCSAT, score(3)), false},
		{"low rating", single(feedback.KindPlayStore, score(1)), true},
		{"unscored ticket", single(feedback.KindTicket, nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := len(Keep([]Cluster{tt.in})) == 1
			if got != tt.want {
				t.Errorf("kept = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPriority(t *testing.T) {
	avg := func(v float64) *float64 { return &v }
	tests := []struct {
		name string
		size int
		avg  *float64
		want float64
	}{
		{"very low score", 4, avg(1.5), 12},
		{"boundary two", 2, avg(2), 6},
		{"mid score", 3, avg(3.5), 6},
		{"high score", 3, avg(8), 3},
		{"unscored large", 10, nil, 25},
		{"unscored medium", 5, nil, 10},
		{"unscored small", 4, nil, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := priority(tt.size, tt.avg); got != tt.want {
				t.Errorf("priority(%d) = %v, want %v", tt.size, got, tt.want)
			}
		})
	}
}

func TestPrioritize(t *testing.T) {
	in := []Cluster{
		{Priority: 4, Representative: Item{ID: "four"}},
		{Priority: 12, Representative: Item{ID: "twelve"}},
		{Priority: 1, Representative: Item{ID: "one"}},
		{Priority: 4, Representative: Item{ID: "four-b"}},
	}
	got := Prioritize(in)

	want := []string{"twelve", "four", "four-b", "one"}
	for i, c := range got {
		if c.Representative.ID != want[i] {
			t.Errorf("position %d = %q, want %q", i, c.Representative.ID, want[i])
		}
	}
	if in[0].Representative.ID != "four" {
		t.Error("Prioritize must not reorder its input")
	}
}

func TestItemsFromInput(t *testing.T) {
	in := feedback.Input{
		Tickets: []feedback.Ticket{{ID: "t-0", ExternalID: "SUP-1", Subject: "Login", Description: "falha"}},
		NPS:     []feedback.NPSSurvey{{ID: "n-0", Score: 2, Comment: "ruim"}, {ID: "n-1", Score: 9}},
		Instagram: []feedback.InstagramPost{{
			ID:       "ig-0",
			Caption:  "lançamento",
			Comments: []feedback.Comment{{ID: "ig-0-comment-0", Text: "travou"}},
		}},
	}

	items := ItemsFromInput(in)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d: %+v", len(items), items)
	}
	if items[0].ID != "SUP-1" || items[0].Text != "Login: falha" {
		t.Errorf("unexpected ticket item %+v", items[0])
	}
	if items[1].Score == nil || *items[1].Score != 2 {
		t.Errorf("expected nps score carried, got %+v", items[1])
	}
	if items[2].ID != "ig-0-comment-0" {
		t.Errorf("expected comment item, got %+v", items[2])
	}
}

type fakeEmbedder struct {
	calls  int
	inputs []int
	failOn int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string, inputs []string) ([][]float64, error) {
	f.calls++
	f.inputs = append(f.inputs, len(inputs))
	if f.failOn > 0 && f.calls == f.failOn {
		return nil, errors.New("rate limited")
	}
	out := make([][]float64, len(inputs))
	for i := range inputs {
		out[i] = []float64{1, float64(len(inputs[i]))}
	}
	return out, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("feedback %d", i)
	}
	return out
}

func TestEmbed_BatchesAndCache(t *testing.T) {
	emb := &fakeEmbedder{}
	c := New(emb, "", discardLogger())

	vectors, err := c.Embed(context.Background(), texts(250))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 250 {
		t.Fatalf("expected 250 vectors, got %d", len(vectors))
	}
	if emb.calls != 3 {
		t.Errorf("expected 3 batches, got %d (%v)", emb.calls, emb.inputs)
	}

	if _, err := c.Embed(context.Background(), texts(250)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.calls != 3 {
		t.Errorf("expected cached texts not to be re-sent, calls = %d", emb.calls)
	}
}

func TestEmbed_DuplicateTextsSentOnce(t *testing.T) {
	emb := &fakeEmbedder{}
	c := New(emb, "m", discardLogger(), WithCacheSize(0))

	vectors, err := c.Embed(context.Background(), []string{"same", "other", "same"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.inputs[0] != 2 {
		t.Errorf("expected 2 unique inputs, got %d", emb.inputs[0])
	}
	if vectors[2] == nil {
		t.Error("duplicate position left without a vector")
	}
}

func TestEmbed_BatchFailure(t *testing.T) {
	emb := &fakeEmbedder{failOn: 2}
	c := New(emb, "", discardLogger(), WithBatchSize(10))

	vectors, err := c.Embed(context.Background(), texts(25))
	if vectors != nil {
		t.Error("expected no partial vectors on failure")
	}
	var eerr *EmbeddingError
	if !errors.As(err, &eerr) {
		t.Fatalf("expected *EmbeddingError, got %v", err)
	}
	if eerr.Batch != 1 || eerr.Start != 10 || eerr.End != 20 {
		t.Errorf("unexpected batch bounds %+v", eerr)
	}
	if emb.calls != 2 {
		t.Errorf("expected abort after the failing batch, calls = %d", emb.calls)
	}
}

func TestRun_GroupsAndFilters(t *testing.T) {
	emb := embedderFunc(func(inputs []string) [][]float64 {
		out := make([][]float64, len(inputs))
		for i, in := range inputs {
			switch in {
			case "login falha", "não consigo logar":
				out[i] = []float64{1, 0}
			default:
				out[i] = []float64{0, 1}
			}
		}
		return out
	})

	high := 9
	items := []Item{
		{ID: "a", Kind: feedback.KindTicket, Text: "login falha"},
		{ID: "b", Kind: feedback.KindNPS, Text: "app lento", Score: &high},
		{ID: "c", Kind: feedback.KindTicket, Text: "não consigo logar"},
	}

	clusters, err := New(emb, "", discardLogger()).Run(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected only the repeated login cluster, got %d", len(clusters))
	}
	if clusters[0].Size != 2 || clusters[0].Priority != 2 {
		t.Errorf("unexpected cluster %+v", clusters[0])
	}
}

type embedderFunc func(inputs []string) [][]float64

func (f embedderFunc) Embed(_ context.Context, _ string, inputs []string) ([][]float64, error) {
	return f(inputs), nil
}

// Package cluster groups near-duplicate feedback by embedding similarity so the
// prompt can show one representative per pattern instead of raw samples.
package cluster

import (
	"math"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/kepler/internal/feedback"
)

// DefaultThreshold is the cosine similarity to a seed at which an item joins its cluster.
const DefaultThreshold = 0.75

// Item is one piece of feedback text that can be embedded.
type Item struct {
	ID    string        `json:"id"`
	Kind  feedback.Kind `json:"kind"`
	Text  string        `json:"text"`
	Score *int          `json:"score,omitempty"`
}

// Cluster is a group of similar items.
type Cluster struct {
	Items          []Item    `json:"items"`
	Centroid       []float64 `json:"-"`
	Representative Item      `json:"representative"`
	Size           int       `json:"size"`
	AvgScore       *float64  `json:"avg_score,omitempty"`
	Priority       float64   `json:"priority"`
}

// ItemsFromInput flattens every record with text into clusterable items. Social
// posts contribute their comments, not the caption.
func ItemsFromInput(in feedback.Input) []Item {
	var items []Item
	add := func(id string, kind feedback.Kind, text string, score *int) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		items = append(items, Item{ID: id, Kind: kind, Text: text, Score: score})
	}

	for _, k := range feedback.Kinds {
		switch k {
		case feedback.KindTicket:
			for _, t := range in.Tickets {
				text := t.Subject
				if t.Description != "" {
					text = strings.TrimSpace(text + ": " + t.Description)
				}
				add(t.DisplayID(), k, text, nil)
			}
		case feedback.KindNPS:
			for _, s := range in.NPS {
				add(s.ID, k, s.Comment, intPtr(s.Score))
			}
		case feedback.KindCSAT:
			for _, s := range in.CSAT {
				add(s.ID, k, s.Comment, intPtr(s.Score))
			}
		case feedback.KindPlayStore:
			for _, r := range in.PlayStore {
				add(r.ID, k, r.Text, intPtr(r.Rating))
			}
		case feedback.KindInstagram:
			for _, p := range in.Instagram {
				for _, c := range p.Comments {
					add(c.ID, k, c.Text, nil)
				}
			}
		case feedback.KindLinkedIn:
			for _, p := range in.LinkedIn {
				for _, c := range p.Comments {
					add(c.ID, k, c.Text, nil)
				}
			}
		default:
			panic("cluster: unhandled kind " + string(k))
		}
	}
	return items
}

// Group clusters items greedily: each unassigned item seeds a cluster and absorbs
// every unassigned item whose similarity to the seed is >= threshold. Membership
// is judged against the seed only, so two members need not be similar to each other.
func Group(items []Item, embeddings [][]float64, threshold float64) []Cluster {
	if len(items) == 0 || len(items) != len(embeddings) {
		return nil
	}

	used := make([]bool, len(items))
	var clusters []Cluster
	for i := range items {
		if used[i] {
			continue
		}
		used[i] = true
		members := []int{i}

		for j := i + 1; j < len(items); j++ {
			if used[j] {
				continue
			}
			if cosineSimilarity(embeddings[i], embeddings[j]) >= threshold {
				members = append(members, j)
				used[j] = true
			}
		}

		clusters = append(clusters, build(items, embeddings, members))
	}
	return clusters
}

// Keep drops clusters that are neither repeated nor individually alarming. A
// singleton survives only when its own score is low.
func Keep(clusters []Cluster) []Cluster {
	var kept []Cluster
	for _, c := range clusters {
		if c.Size >= 2 || (c.Size == 1 && isLowScore(c.Items[0])) {
			kept = append(kept, c)
		}
	}
	return kept
}

// Prioritize orders clusters by descending priority. Ties keep their input order.
func Prioritize(clusters []Cluster) []Cluster {
	sorted := make([]Cluster, len(clusters))
	copy(sorted, clusters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}

func build(items []Item, embeddings [][]float64, members []int) Cluster {
	c := Cluster{
		Items: make([]Item, len(members)),
		Size:  len(members),
	}
	for k, idx := range members {
		c.Items[k] = items[idx]
	}

	dim := len(embeddings[members[0]])
	c.Centroid = make([]float64, dim)
	for _, idx := range members {
		for d := 0; d < dim && d < len(embeddings[idx]); d++ {
			c.Centroid[d] += embeddings[idx][d]
		}
	}
	for d := range c.Centroid {
		c.Centroid[d] /= float64(len(members))
	}

	best, bestSim := members[0], math.Inf(-1)
	for _, idx := range members {
		if sim := cosineSimilarity(embeddings[idx], c.Centroid); sim > bestSim {
			best, bestSim = idx, sim
		}
	}
	c.Representative = items[best]

	var sum float64
	var scored int
	for _, it := range c.Items {
		if it.Score != nil {
			sum += float64(*it.Score)
			scored++
		}
	}
	if scored > 0 {
		avg := sum / float64(scored)
		c.AvgScore = &avg
	}

	c.Priority = priority(c.Size, c.AvgScore)
	return c
}

// priority is volume x risk. Low average scores carry more risk; without any
// score, risk escalates with volume alone.
func priority(size int, avgScore *float64) float64 {
	var risk float64
	if avgScore != nil {
		switch {
		case *avgScore <= 2:
			risk = 3
		case *avgScore <= 4:
			risk = 2
		default:
			risk = 1
		}
	} else {
		switch {
		case size >= 10:
			risk = 2.5
		case size >= 5:
			risk = 2
		default:
			risk = 1
		}
	}
	return float64(size) * risk
}

func isLowScore(it Item) bool {
	if it.Score == nil {
		return false
	}
	s := *it.Score
	switch it.Kind {
	case feedback.KindNPS:
		return s <= 6
	case feedback.KindCSAT, feedback.KindPlayStore:
		return s <= 2
	default:
		return false
	}
}

// cosineSimilarity calculates cosine similarity between two vectors
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0.0 || normB == 0.0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

func intPtr(v int) *int { return &v }

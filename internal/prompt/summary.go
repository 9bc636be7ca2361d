package prompt

import (
	"fmt"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/kepler/internal/feedback"
)

// Summarize renders one line per non-empty kind with its count and, for scored
// kinds, the mean score rounded to one decimal.
func Summarize(in feedback.Input) string {
	var lines []string
	for _, k := range feedback.Kinds {
		if in.Count(k) == 0 {
			continue
		}
		lines = append(lines, summaryLine(in, k))
	}
	if len(lines) == 0 {
		return NoDataCollected
	}
	return strings.Join(lines, "\n")
}

func summaryLine(in feedback.Input, k feedback.Kind) string {
	switch k {
	case feedback.KindTicket:
		return fmt.Sprintf("- Tickets de suporte: %d", len(in.Tickets))
	case feedback.KindNPS:
		scores := make([]int, len(in.NPS))
		for i, s := range in.NPS {
			scores[i] = s.Score
		}
		return fmt.Sprintf("- NPS: %d respostas, média %.1f/10", len(scores), mean(scores))
	case feedback.KindCSAT:
		scores := make([]int, len(in.CSAT))
		for i, s := range in.CSAT {
			scores[i] = s.Score
		}
		return fmt.Sprintf("- CSAT: %d respostas, média %.1f/5", len(scores), mean(scores))
	case feedback.KindPlayStore:
		ratings := make([]int, len(in.PlayStore))
		for i, r := range in.PlayStore {
			ratings[i] = r.Rating
		}
		return fmt.Sprintf("- Play Store: %d avaliações, média %.1f/5", len(ratings), mean(ratings))
	case feedback.KindInstagram:
		comments := 0
		for _, p := range in.Instagram {
			comments += len(p.Comments)
		}
		return fmt.Sprintf("- Instagram: %d posts, %d comentários", len(in.Instagram), comments)
	case feedback.KindLinkedIn:
		comments := 0
		for _, p := range in.LinkedIn {
			comments += len(p.Comments)
		}
		return fmt.Sprintf("- LinkedIn: %d posts, %d comentários", len(in.LinkedIn), comments)
	default:
		panic(fmt.Sprintf("prompt: unhandled kind %q", k))
	}
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return math.Round(float64(sum)/float64(len(values))*10) / 10
}

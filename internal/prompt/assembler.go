package prompt

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/kepler/internal/cluster"
	"github.com/MikeSquared-Agency/kepler/internal/feedback"
)

// Per-source caps on the detailed block. These count items, not tokens.
const (
	MaxTickets          = 30
	MaxSurveyComments   = 20
	MaxReviews          = 20
	MaxSocialPosts      = 10
	MaxCommentsPerPost  = 5
	MaxClusters         = 30
	maxClusterMemberIDs = 8
)

// Prompt is the message pair sent to the model.
type Prompt struct {
	System string
	User   string
}

type options struct {
	clusters []cluster.Cluster
}

type Option func(*options)

// WithClusters replaces the raw record samples with cluster representatives.
// An empty slice keeps raw sampling.
func WithClusters(clusters []cluster.Cluster) Option {
	return func(o *options) {
		o.clusters = clusters
	}
}

// Assemble builds the system and user instructions for one analysis.
func Assemble(in feedback.Input, ctx Context, summary string, now time.Time, opts ...Option) Prompt {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	detailed := detailedBlock(in)
	if len(o.clusters) > 0 {
		detailed = clusterBlock(o.clusters)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Análise de Feedback (%s)\n\n", now.Format("02/01/2006"))
	b.WriteString("## Contexto do Negócio\n")
	b.WriteString(ctx.Business)
	b.WriteString("\n\n## Time e Responsabilidades\n")
	b.WriteString(ctx.Team)
	b.WriteString("\n\n## Resumo dos Dados\n")
	b.WriteString(summary)
	b.WriteString("\n\n## Dados Detalhados\n")
	b.WriteString(detailed)
	b.WriteString("\n\n")
	b.WriteString(closingInstruction)

	return Prompt{System: SystemPrompt, User: b.String()}
}

func detailedBlock(in feedback.Input) string {
	var sections []string
	for _, k := range feedback.Kinds {
		if s := section(in, k); s != "" {
			sections = append(sections, s)
		}
	}
	if len(sections) == 0 {
		return NoDetailedData
	}
	return strings.Join(sections, "\n\n")
}

func section(in feedback.Input, k feedback.Kind) string {
	switch k {
	case feedback.KindTicket:
		return ticketSection(in.Tickets)
	case feedback.KindNPS:
		var lines []string
		for _, s := range in.NPS {
			if strings.TrimSpace(s.Comment) == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("- [nota %d] %s", s.Score, oneLine(s.Comment)))
		}
		return capped("NPS", len(in.NPS), lines, MaxSurveyComments)
	case feedback.KindCSAT:
		var lines []string
		for _, s := range in.CSAT {
			if strings.TrimSpace(s.Comment) == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("- [nota %d] %s", s.Score, oneLine(s.Comment)))
		}
		return capped("CSAT", len(in.CSAT), lines, MaxSurveyComments)
	case feedback.KindPlayStore:
		return reviewSection(in.PlayStore)
	case feedback.KindInstagram:
		posts := make([]socialPost, len(in.Instagram))
		for i, p := range in.Instagram {
			posts[i] = socialPost{text: p.Caption, engagement: fmt.Sprintf("%d curtidas", p.Likes), comments: p.Comments}
		}
		return socialSection("Instagram", posts)
	case feedback.KindLinkedIn:
		posts := make([]socialPost, len(in.LinkedIn))
		for i, p := range in.LinkedIn {
			posts[i] = socialPost{text: p.Text, engagement: fmt.Sprintf("%d reações", p.Reactions), comments: p.Comments}
		}
		return socialSection("LinkedIn", posts)
	default:
		panic(fmt.Sprintf("prompt: unhandled kind %q", k))
	}
}

func ticketSection(tickets []feedback.Ticket) string {
	lines := make([]string, 0, min(len(tickets), MaxTickets))
	for _, t := range tickets {
		if len(lines) == MaxTickets {
			break
		}
		text := oneLine(t.Subject)
		if d := oneLine(t.Description); d != "" && text != "" {
			text += ": " + d
		} else if d != "" {
			text = d
		}
		line := fmt.Sprintf("- [%s] %s", t.DisplayID(), text)
		var meta []string
		if t.Status != "" {
			meta = append(meta, "status: "+t.Status)
		}
		if t.Priority != "" {
			meta = append(meta, "prioridade: "+t.Priority)
		}
		if len(meta) > 0 {
			line += " (" + strings.Join(meta, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return capped("Tickets de Suporte", len(tickets), lines, MaxTickets)
}

// reviewSection lists the worst reviews first.
func reviewSection(reviews []feedback.PlayStoreReview) string {
	sorted := make([]feedback.PlayStoreReview, len(reviews))
	copy(sorted, reviews)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rating < sorted[j].Rating
	})

	lines := make([]string, 0, len(sorted))
	for _, r := range sorted {
		line := fmt.Sprintf("- [%d★] %s", r.Rating, oneLine(r.Text))
		if r.Author != "" {
			line += " (" + r.Author + ")"
		}
		lines = append(lines, line)
	}
	return capped("Avaliações Play Store", len(reviews), lines, MaxReviews)
}

type socialPost struct {
	text       string
	engagement string
	comments   []feedback.Comment
}

func socialSection(name string, posts []socialPost) string {
	if len(posts) == 0 {
		return ""
	}
	shown := min(len(posts), MaxSocialPosts)

	var b strings.Builder
	fmt.Fprintf(&b, "### %s (%d total, mostrando %d)", name, len(posts), shown)
	for _, p := range posts[:shown] {
		fmt.Fprintf(&b, "\n- Post: %s (%s)", oneLine(p.text), p.engagement)
		for _, c := range p.comments[:min(len(p.comments), MaxCommentsPerPost)] {
			fmt.Fprintf(&b, "\n  - %s", oneLine(c.Text))
		}
	}
	return b.String()
}

// capped renders a heading stating the source total and the number shown,
// followed by at most limit lines. No qualifying lines means no section.
func capped(name string, total int, lines []string, limit int) string {
	if len(lines) == 0 {
		return ""
	}
	shown := min(len(lines), limit)
	return fmt.Sprintf("### %s (%d total, mostrando %d)\n%s", name, total, shown, strings.Join(lines[:shown], "\n"))
}

func clusterBlock(clusters []cluster.Cluster) string {
	shown := min(len(clusters), MaxClusters)

	var b strings.Builder
	fmt.Fprintf(&b, "### Padrões Agrupados (%d total, mostrando %d)", len(clusters), shown)
	for _, c := range clusters[:shown] {
		rep := c.Representative
		fmt.Fprintf(&b, "\n- [prioridade %.1f | %d itens", c.Priority, c.Size)
		if c.AvgScore != nil {
			fmt.Fprintf(&b, " | nota média %.1f", *c.AvgScore)
		}
		fmt.Fprintf(&b, "] (%s) %s", rep.Kind, oneLine(rep.Text))

		ids := make([]string, 0, min(len(c.Items), maxClusterMemberIDs))
		for _, it := range c.Items[:min(len(c.Items), maxClusterMemberIDs)] {
			ids = append(ids, it.ID)
		}
		fmt.Fprintf(&b, "\n  Itens: %s", strings.Join(ids, ", "))
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

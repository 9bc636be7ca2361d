// Package prompt turns feedback input into the system and user instructions sent
// to the model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/kepler/internal/feedback"
)

// Sentinels substituted when a block would otherwise be empty. A blank section
// invites the model to make things up.
const (
	NoBusinessContext = "Nenhum contexto de negócio configurado."
	NoTeamContext     = "Nenhum time configurado. Infira o squad responsável pela natureza do problema."
	NoDataCollected   = "Nenhum dado coletado."
	NoDetailedData    = "Nenhum dado detalhado disponível."
)

// Context holds the consolidated business and team text blocks.
type Context struct {
	Business string
	Team     string
}

// Consolidate renders business documents and team members into two plain-text
// blocks. Neither block is ever empty.
func Consolidate(business []feedback.BusinessContext, team []feedback.TeamMember) Context {
	return Context{
		Business: businessBlock(business),
		Team:     teamBlock(team),
	}
}

func businessBlock(docs []feedback.BusinessContext) string {
	if len(docs) == 0 {
		return NoBusinessContext
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, fmt.Sprintf("**%s:**\n%s", d.Name, strings.TrimSpace(d.Content)))
	}
	return strings.Join(parts, "\n\n")
}

func teamBlock(members []feedback.TeamMember) string {
	if len(members) == 0 {
		return NoTeamContext
	}
	parts := make([]string, 0, len(members))
	for _, m := range members {
		parts = append(parts, fmt.Sprintf("- **%s**\n  Expertise: %s\n  Responsável por: %s",
			m.Label(), orDash(m.Expertise), orDash(m.ResponsibleFor)))
	}
	return strings.Join(parts, "\n\n")
}

func orDash(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "-"
	}
	return s
}

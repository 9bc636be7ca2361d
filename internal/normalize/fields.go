package normalize

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/kepler/internal/feedback"
)

// Accepted column names per logical field, in priority order.
var (
	fieldCreatedAt = []string{"created_at", "createdat", "created", "date", "data", "timestamp"}

	fieldTicketRef   = []string{"id", "ticket_id", "ticketid", "ticket", "key", "numero", "number"}
	fieldSubject     = []string{"subject", "assunto", "titulo", "title"}
	fieldDescription = []string{"description", "descricao", "body", "conteudo", "content", "message", "mensagem"}
	fieldStatus      = []string{"status", "situacao"}
	fieldPriority    = []string{"priority", "prioridade"}

	fieldNPSScore  = []string{"score", "nps", "rating", "nota"}
	fieldCSATScore = []string{"score", "csat", "rating", "nota"}
	fieldComment   = []string{"comment", "comentario", "feedback", "text"}

	fieldRating     = []string{"rating", "score", "stars", "estrelas", "nota"}
	fieldReviewText = []string{"text", "review", "content", "comment", "comentario", "avaliacao"}
	fieldAuthor     = []string{"author", "user", "username", "usuario", "autor"}

	fieldCaption   = []string{"caption", "legenda", "text", "content"}
	fieldPostText  = []string{"text", "content", "post", "caption", "texto"}
	fieldLikes     = []string{"likes", "like_count", "curtidas"}
	fieldReactions = []string{"reactions", "reacoes", "likes"}
	fieldComments  = []string{"comments", "comentarios"}

	fieldCommentText = []string{"text", "comment", "comentario", "content", "message"}
)

type builder func(r row, id, now string) (feedback.Record, bool)

var builders = map[feedback.Kind]builder{
	feedback.KindTicket:    buildTicket,
	feedback.KindNPS:       buildNPS,
	feedback.KindCSAT:      buildCSAT,
	feedback.KindPlayStore: buildReview,
	feedback.KindInstagram: buildInstagram,
	feedback.KindLinkedIn:  buildLinkedIn,
}

func createdAt(r row, now string) string {
	if ts := r.str(fieldCreatedAt...); ts != "" {
		return ts
	}
	return now
}

func buildTicket(r row, id, now string) (feedback.Record, bool) {
	t := feedback.Ticket{
		ID:          id,
		ExternalID:  r.str(fieldTicketRef...),
		Subject:     r.str(fieldSubject...),
		Description: r.str(fieldDescription...),
		Status:      r.str(fieldStatus...),
		Priority:    r.str(fieldPriority...),
		CreatedAt:   createdAt(r, now),
	}
	if t.Subject == "" && t.Description == "" {
		return nil, false
	}
	return t, true
}

func buildNPS(r row, id, now string) (feedback.Record, bool) {
	score, ok := parseScore(r.str(fieldNPSScore...), feedback.NPSMin, feedback.NPSMax)
	if !ok {
		return nil, false
	}
	return feedback.NPSSurvey{
		ID:        id,
		Score:     score,
		Comment:   r.str(fieldComment...),
		CreatedAt: createdAt(r, now),
	}, true
}

func buildCSAT(r row, id, now string) (feedback.Record, bool) {
	score, ok := parseScore(r.str(fieldCSATScore...), feedback.CSATMin, feedback.CSATMax)
	if !ok {
		return nil, false
	}
	return feedback.CSATSurvey{
		ID:        id,
		Score:     score,
		Comment:   r.str(fieldComment...),
		CreatedAt: createdAt(r, now),
	}, true
}

func buildReview(r row, id, now string) (feedback.Record, bool) {
	rating, ok := parseScore(r.str(fieldRating...), feedback.RatingMin, feedback.RatingMax)
	if !ok {
		return nil, false
	}
	return feedback.PlayStoreReview{
		ID:        id,
		Rating:    rating,
		Text:      r.str(fieldReviewText...),
		Author:    r.str(fieldAuthor...),
		CreatedAt: createdAt(r, now),
	}, true
}

func buildInstagram(r row, id, now string) (feedback.Record, bool) {
	return feedback.InstagramPost{
		ID:        id,
		Caption:   r.str(fieldCaption...),
		Likes:     parseCount(r.str(fieldLikes...)),
		Comments:  comments(r, id),
		CreatedAt: createdAt(r, now),
	}, true
}

func buildLinkedIn(r row, id, now string) (feedback.Record, bool) {
	return feedback.LinkedInPost{
		ID:        id,
		Text:      r.str(fieldPostText...),
		Reactions: parseCount(r.str(fieldReactions...)),
		Comments:  comments(r, id),
		CreatedAt: createdAt(r, now),
	}, true
}

// comments accepts a list of strings, a list of objects, or a single
// pipe-separated string (the CSV form). Empty comments are dropped.
func comments(r row, postID string) []feedback.Comment {
	v, ok := r.value(fieldComments...)
	if !ok {
		return nil
	}

	var texts []string
	switch t := v.(type) {
	case []any:
		for _, el := range t {
			if m := toRow(el); m != nil {
				texts = append(texts, m.str(fieldCommentText...))
			} else {
				texts = append(texts, toString(el))
			}
		}
	default:
		texts = strings.Split(toString(t), "|")
	}

	var out []feedback.Comment
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		out = append(out, feedback.Comment{
			ID:   fmt.Sprintf("%s-comment-%d", postID, i),
			Text: text,
		})
	}
	return out
}

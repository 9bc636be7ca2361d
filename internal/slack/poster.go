package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/kepler/internal/store"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostInsight posts a successful run to the insights channel. It returns the
// message timestamp, which reactions refer back to.
func (p *Poster) PostInsight(ctx context.Context, run *store.Run) (string, error) {
	if run == nil || run.Insight == nil {
		return "", fmt.Errorf("run has no insight")
	}
	text := formatInsightMessage(run)

	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": "Reaja: :+1: útil | :-1: não útil",
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}

	p.logger.Info("posted insight to slack", "ts", slackResp.TS, "run_id", run.ID)
	return slackResp.TS, nil
}

func formatInsightMessage(run *store.Run) string {
	in := run.Insight
	var sb strings.Builder

	fmt.Fprintf(&sb, "*🎯 %s*\n", in.Title)
	fmt.Fprintf(&sb, "*Responsável:* %s %s\n\n", in.Owner.Squad, in.Owner.Responsible)

	if len(in.Actions) > 0 {
		sb.WriteString("*Ações recomendadas:*\n")
		for _, a := range in.Actions {
			fmt.Fprintf(&sb, "• [%s] %s\n", a.Type, a.Description)
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("_Nenhuma ação extraída._\n\n")
	}

	if in.Evidence != nil && len(in.Evidence.Tickets) > 0 {
		fmt.Fprintf(&sb, "*Evidências:* %s\n", strings.Join(in.Evidence.Tickets, ", "))
	}

	if counts := formatCounts(run.SourceCounts); counts != "" {
		fmt.Fprintf(&sb, "*Fontes:* %s\n", counts)
	}
	fmt.Fprintf(&sb, "_run %s_", run.ID)

	return sb.String()
}

// formatCounts lists non-zero counts in name order.
func formatCounts(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name, n := range counts {
		if n > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s %d", name, counts[name])
	}
	return strings.Join(parts, " · ")
}

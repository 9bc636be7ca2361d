package slack

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ReactionEvent is a reaction forwarded from Slack over NATS.
type ReactionEvent struct {
	Reaction  string `json:"reaction"`
	UserID    string `json:"user_id"`
	Channel   string `json:"channel"`
	MessageTS string `json:"message_ts"`
}

// Verdict is a reviewer's judgement of a posted insight.
type Verdict string

const (
	VerdictUseful    Verdict = "useful"
	VerdictNotUseful Verdict = "not_useful"
	VerdictUnknown   Verdict = "unknown"
)

// ParseReaction maps a Slack emoji name to a verdict.
func ParseReaction(reaction string) Verdict {
	switch reaction {
	case "+1", "thumbsup", "white_check_mark":
		return VerdictUseful
	case "-1", "thumbsdown", "x":
		return VerdictNotUseful
	default:
		return VerdictUnknown
	}
}

// ParseReactionEvent decodes the forwarder payload, which carries the
// reaction fields in a metadata map.
func ParseReactionEvent(data []byte) (*ReactionEvent, error) {
	var wrapper struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse reaction wrapper: %w", err)
	}

	evt := &ReactionEvent{
		Reaction:  wrapper.Metadata["text"],
		UserID:    wrapper.Metadata["user_id"],
		Channel:   wrapper.Metadata["channel_id"],
		MessageTS: wrapper.Metadata["message_ts"],
	}

	if len(evt.Reaction) > 2 && strings.HasPrefix(evt.Reaction, ":") && strings.HasSuffix(evt.Reaction, ":") {
		evt.Reaction = evt.Reaction[1 : len(evt.Reaction)-1]
	}
	return evt, nil
}

package analysis

import (
	"fmt"
	"strings"

	"github.com/overhear-ai/overhear/pkg/core/convo"
)

const systemPrompt = `You are a real-time meeting copilot. You receive the most recent
turns of a live two-person conversation and must update a running analysis.
Reply in plain text with exactly these labeled sections:

OVERVIEW
- one bullet per key point (most important first)

KEY TOPIC: <short topic title>
- up to three bullets about the current topic

EXPLANATION
A few sentences of context on the key topic.

SUGGESTED QUESTIONS
1. <a question the user could ask next>
2. <another question>

Keep bullets short. Do not use markdown headers or code fences.`

// digest caps for carrying prior context forward.
const (
	digestSummaryBullets = 3
	digestActions        = 2
)

// BuildPrompt embeds the recent-turns window and, when a previous analysis
// exists, a short digest of it so the new analysis builds incrementally.
func BuildPrompt(turns []convo.Turn, prev *Result) CompletionRequest {
	var b strings.Builder

	if prev != nil {
		b.WriteString("Previous analysis context:\n")
		if prev.Topic.Header != "" {
			fmt.Fprintf(&b, "Topic: %s\n", prev.Topic.Header)
		}
		for i, s := range prev.Summary {
			if i >= digestSummaryBullets {
				break
			}
			fmt.Fprintf(&b, "- %s\n", s)
		}
		for i, a := range prev.Actions {
			if i >= digestActions {
				break
			}
			fmt.Fprintf(&b, "Action: %s\n", a)
		}
		b.WriteString("\n")
	}

	b.WriteString("Conversation (most recent turns):\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Speaker, t.Text)
	}
	b.WriteString("\nUpdate the analysis.")

	return CompletionRequest{
		System:    systemPrompt,
		Prompt:    b.String(),
		MaxTokens: 700,
	}
}

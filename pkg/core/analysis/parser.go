package analysis

import (
	"regexp"
	"strings"
)

// The reply is semi-structured free text; section headers switch the
// current extraction target as the parser walks line by line.
type section int

const (
	sectionNone section = iota
	sectionOverview
	sectionTopic
	sectionExplanation
	sectionQuestions
)

var (
	numberedLine = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)
	bulletLine   = regexp.MustCompile(`^\s*[-*•]\s*(.+)$`)
)

// defaultActions are always offered so the consumer has something to act
// on even when the model suggests nothing usable.
var defaultActions = []string{
	"Draft a recap of the conversation so far",
	"Suggest questions to move the discussion forward",
}

// ParseResult parses a completion reply into a Result, deriving from prev:
// empty sections are backfilled from the previous result so the analysis
// never goes blank once populated. Parsing never fails; unrecognizable
// input yields the previous result plus default actions.
func ParseResult(reply string, prev *Result) Result {
	var out Result

	current := sectionNone
	var explanation strings.Builder

	for _, raw := range strings.Split(reply, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "overview"):
			current = sectionOverview
			continue
		case strings.HasPrefix(lower, "key topic"):
			current = sectionTopic
			if _, after, ok := strings.Cut(line, ":"); ok {
				out.Topic.Header = strings.TrimSpace(after)
			}
			continue
		case strings.HasPrefix(lower, "explanation"):
			current = sectionExplanation
			continue
		case strings.HasPrefix(lower, "suggested questions"):
			current = sectionQuestions
			continue
		}

		switch current {
		case sectionOverview:
			if m := bulletLine.FindStringSubmatch(line); m != nil {
				out.Summary = appendUnique(out.Summary, m[1])
			}
		case sectionTopic:
			if m := bulletLine.FindStringSubmatch(line); m != nil {
				out.Topic.Bullets = appendUnique(out.Topic.Bullets, m[1])
			}
		case sectionExplanation:
			explanation.WriteString(line)
			explanation.WriteString(" ")
		case sectionQuestions:
			if m := numberedLine.FindStringSubmatch(line); m != nil && strings.Contains(m[1], "?") {
				q := strings.TrimSpace(m[1])
				out.FollowUps = append(out.FollowUps, q)
				out.Actions = appendUnique(out.Actions, "Ask: "+q)
			}
		}
	}

	// Explanation sentences round out the topic bullets.
	if len(out.Topic.Bullets) < maxTopicBullets {
		for _, s := range splitSentences(explanation.String()) {
			if len(out.Topic.Bullets) >= maxTopicBullets {
				break
			}
			out.Topic.Bullets = appendUnique(out.Topic.Bullets, s)
		}
	}

	// New summary bullets go in front of the carried-over ones.
	if prev != nil {
		for _, s := range prev.Summary {
			out.Summary = appendUnique(out.Summary, s)
		}
	}
	out.Summary = capList(out.Summary, maxSummaryBullets)
	out.Topic.Bullets = capList(out.Topic.Bullets, maxTopicBullets)

	// Backfill from the previous result when the derivation came up empty.
	if prev != nil {
		if len(out.Summary) == 0 {
			out.Summary = append([]string(nil), prev.Summary...)
		}
		if len(out.Topic.Bullets) == 0 {
			out.Topic.Bullets = append([]string(nil), prev.Topic.Bullets...)
		}
		if out.Topic.Header == "" {
			out.Topic.Header = prev.Topic.Header
		}
	}

	for _, a := range defaultActions {
		out.Actions = appendUnique(out.Actions, a)
	}
	out.Actions = capList(out.Actions, maxActions)

	return out
}

func appendUnique(list []string, item string) []string {
	item = strings.TrimSpace(item)
	if item == "" {
		return list
	}
	for _, existing := range list {
		if strings.EqualFold(existing, item) {
			return list
		}
	}
	return append(list, item)
}

func capList(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

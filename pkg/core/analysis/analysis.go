// Package analysis turns accumulated conversation history into a running
// structured summary. A scheduler watches ledger growth and, every batch of
// turns, asks a completion provider to update the analysis; each result is
// derived from the previous one so the summary builds incrementally instead
// of restarting from scratch.
package analysis

import "time"

// Limits on the structured fields. The consumer renders these in a compact
// panel, so the caps are part of the contract.
const (
	maxSummaryBullets = 5
	maxTopicBullets   = 3
	maxActions        = 5
)

// Topic is the currently dominant conversation topic.
type Topic struct {
	Header  string   `json:"header"`
	Bullets []string `json:"bullets"`
}

// Result is one structured analysis of the conversation so far. Fields
// persist from the previous result when a new derivation comes up empty;
// once populated, Summary never shrinks to empty within a session.
type Result struct {
	Summary   []string `json:"summary"`
	Topic     Topic    `json:"topic"`
	Actions   []string `json:"actions"`
	FollowUps []string `json:"followUps"`
}

// Clone returns a deep copy so shared snapshots stay immutable.
func (r Result) Clone() Result {
	out := Result{
		Summary:   append([]string(nil), r.Summary...),
		Actions:   append([]string(nil), r.Actions...),
		FollowUps: append([]string(nil), r.FollowUps...),
	}
	out.Topic.Header = r.Topic.Header
	out.Topic.Bullets = append([]string(nil), r.Topic.Bullets...)
	return out
}

// Snapshot is a retained analysis result with its trigger context.
type Snapshot struct {
	Result    Result    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
	LedgerLen int       `json:"ledgerLen"`
}

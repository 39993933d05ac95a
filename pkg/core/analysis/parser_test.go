package analysis

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestParseResultExtractsSections(t *testing.T) {
	reply := strings.Join([]string{
		"OVERVIEW",
		"- Discussed the migration timeline",
		"- Agreed on a staging rollout first",
		"",
		"KEY TOPIC: Database migration",
		"- Schema changes land next sprint",
		"",
		"EXPLANATION",
		"The team wants zero downtime. A dual-write phase covers the cutover.",
		"",
		"SUGGESTED QUESTIONS",
		"1. What is the rollback plan?",
		"2) Who owns the dual-write monitoring?",
	}, "\n")

	got := ParseResult(reply, nil)

	wantSummary := []string{
		"Discussed the migration timeline",
		"Agreed on a staging rollout first",
	}
	if !reflect.DeepEqual(got.Summary, wantSummary) {
		t.Fatalf("Summary = %v, want %v", got.Summary, wantSummary)
	}
	if got.Topic.Header != "Database migration" {
		t.Fatalf("Topic.Header = %q", got.Topic.Header)
	}
	wantBullets := []string{
		"Schema changes land next sprint",
		"The team wants zero downtime",
		"A dual-write phase covers the cutover",
	}
	if !reflect.DeepEqual(got.Topic.Bullets, wantBullets) {
		t.Fatalf("Topic.Bullets = %v, want %v", got.Topic.Bullets, wantBullets)
	}
	wantFollowUps := []string{
		"What is the rollback plan?",
		"Who owns the dual-write monitoring?",
	}
	if !reflect.DeepEqual(got.FollowUps, wantFollowUps) {
		t.Fatalf("FollowUps = %v, want %v", got.FollowUps, wantFollowUps)
	}
	wantActions := []string{
		"Ask: What is the rollback plan?",
		"Ask: Who owns the dual-write monitoring?",
		"Draft a recap of the conversation so far",
		"Suggest questions to move the discussion forward",
	}
	if !reflect.DeepEqual(got.Actions, wantActions) {
		t.Fatalf("Actions = %v, want %v", got.Actions, wantActions)
	}
}

func TestParseResultUnrecognizableInputBackfills(t *testing.T) {
	prev := &Result{
		Summary: []string{"Earlier point A", "Earlier point B"},
		Topic: Topic{
			Header:  "Budget planning",
			Bullets: []string{"Q3 numbers pending"},
		},
	}

	got := ParseResult("the model rambled with no structure whatsoever", prev)

	if !reflect.DeepEqual(got.Summary, prev.Summary) {
		t.Fatalf("Summary = %v, want backfilled %v", got.Summary, prev.Summary)
	}
	if got.Topic.Header != "Budget planning" {
		t.Fatalf("Topic.Header = %q, want backfill", got.Topic.Header)
	}
	if !reflect.DeepEqual(got.Topic.Bullets, prev.Topic.Bullets) {
		t.Fatalf("Topic.Bullets = %v, want backfill", got.Topic.Bullets)
	}
	if !reflect.DeepEqual(got.Actions, defaultActions) {
		t.Fatalf("Actions = %v, want only defaults", got.Actions)
	}
}

func TestParseResultPrependsNewSummaryAndCaps(t *testing.T) {
	prev := &Result{
		Summary: []string{"old 1", "old 2", "old 3", "old 4"},
	}
	reply := strings.Join([]string{
		"OVERVIEW",
		"- new 1",
		"- new 2",
	}, "\n")

	got := ParseResult(reply, prev)

	want := []string{"new 1", "new 2", "old 1", "old 2", "old 3"}
	if !reflect.DeepEqual(got.Summary, want) {
		t.Fatalf("Summary = %v, want %v", got.Summary, want)
	}
}

func TestParseResultDedupesSummaryCaseInsensitive(t *testing.T) {
	prev := &Result{Summary: []string{"Agreed on rollout"}}
	reply := strings.Join([]string{
		"OVERVIEW",
		"- agreed on rollout",
		"- Fresh development",
	}, "\n")

	got := ParseResult(reply, prev)

	want := []string{"agreed on rollout", "Fresh development"}
	if !reflect.DeepEqual(got.Summary, want) {
		t.Fatalf("Summary = %v, want %v", got.Summary, want)
	}
}

func TestParseResultQuestionsWithoutQuestionMarkIgnored(t *testing.T) {
	reply := strings.Join([]string{
		"SUGGESTED QUESTIONS",
		"1. This is a statement not a question",
		"2. Is this one real?",
	}, "\n")

	got := ParseResult(reply, nil)

	if len(got.FollowUps) != 1 || got.FollowUps[0] != "Is this one real?" {
		t.Fatalf("FollowUps = %v", got.FollowUps)
	}
}

func TestParseResultActionsCapped(t *testing.T) {
	lines := []string{"SUGGESTED QUESTIONS"}
	for i := 1; i <= 8; i++ {
		lines = append(lines, fmt.Sprintf("%d. Question number %d?", i, i))
	}
	got := ParseResult(strings.Join(lines, "\n"), nil)

	if len(got.Actions) != maxActions {
		t.Fatalf("len(Actions) = %d, want %d", len(got.Actions), maxActions)
	}
}

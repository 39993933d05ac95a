package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/overhear-ai/overhear/pkg/core/convo"
	"github.com/overhear-ai/overhear/pkg/core/live"
)

// TestLiveStore exercises the real database end to end. Skipped unless
// OVERHEAR_POSTGRES_DSN points at a reachable instance.
func TestLiveStore(t *testing.T) {
	dsn := os.Getenv("OVERHEAR_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("OVERHEAR_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	id, err := store.CreateSession(ctx, "live-test")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if id == "" {
		t.Fatal("empty session id")
	}

	turns := []live.Transcript{
		{SessionID: id, Speaker: convo.Me, Text: "hello from the mic", Timestamp: time.Now()},
		{SessionID: id, Speaker: convo.Them, Text: "hello from the system", Timestamp: time.Now().Add(time.Second)},
	}
	for _, tr := range turns {
		if err := store.AddTranscript(ctx, tr); err != nil {
			t.Fatalf("AddTranscript: %v", err)
		}
	}

	got, err := store.Transcripts(ctx, id)
	if err != nil {
		t.Fatalf("Transcripts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(transcripts) = %d, want 2", len(got))
	}
	if got[0].Text != "hello from the mic" || got[0].Speaker != convo.Me {
		t.Fatalf("first transcript = %+v", got[0])
	}
	if got[1].Speaker != convo.Them {
		t.Fatalf("second transcript = %+v", got[1])
	}

	if err := store.EndSession(ctx, id); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if err := store.EndSession(ctx, id); err == nil {
		t.Fatal("ending twice should fail")
	}

	latest, err := store.LatestSession(ctx, "live-test")
	if err != nil {
		t.Fatalf("LatestSession: %v", err)
	}
	if latest == nil || latest.Status != "ended" || latest.EndedAt == nil {
		t.Fatalf("LatestSession = %+v", latest)
	}
}

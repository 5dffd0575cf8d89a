package server

import (
	"strings"
	"testing"

	"github.com/avesohel/replypilot/internal/database"
)

func TestBuildDigestEmpty(t *testing.T) {
	db := openTestDB(t)
	digest, err := BuildDigest(db, 7)
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if !strings.Contains(digest, "No activity recorded") {
		t.Errorf("unexpected empty digest: %q", digest)
	}
}

func TestBuildDigestCounts(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 2; i++ {
		id := seedLog(t, db, database.ReplyPending)
		if err := db.MarkReplySent(id, "r-1"); err != nil {
			t.Fatalf("mark sent: %v", err)
		}
	}
	seedLog(t, db, database.ReplySkipped)

	digest, err := BuildDigest(db, 7)
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if !strings.Contains(digest, "**2 sent**, 1 skipped, 0 failed") {
		t.Errorf("totals wrong:\n%s", digest)
	}
	if !strings.Contains(digest, "## By day") {
		t.Error("missing by-day section")
	}
	if !strings.Contains(digest, "## Most replied content") {
		t.Error("missing top content section")
	}
}

func TestBuildDigestUsesTranscriptTitles(t *testing.T) {
	db := openTestDB(t)
	if err := db.InsertTranscript("vid-1", "user-1", "UCabc"); err != nil {
		t.Fatalf("insert transcript: %v", err)
	}
	if err := db.MarkTranscriptExtracted("vid-1", "Lighting on a Budget", "", 540, "text", nil, 1); err != nil {
		t.Fatalf("extract: %v", err)
	}
	id := seedLog(t, db, database.ReplyPending)
	if err := db.MarkReplySent(id, "r-1"); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	digest, err := BuildDigest(db, 7)
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if !strings.Contains(digest, "Lighting on a Budget") {
		t.Errorf("expected content title in digest:\n%s", digest)
	}
}

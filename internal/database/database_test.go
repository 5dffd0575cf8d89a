package database

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetOrCreateSettingsDefaults(t *testing.T) {
	db := openTestDB(t)

	s, err := db.GetOrCreateSettings("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Enabled {
		t.Error("expected enabled by default")
	}
	if s.Tone != "friendly" {
		t.Errorf("expected tone 'friendly', got %q", s.Tone)
	}
	if s.Friendliness != 7 {
		t.Errorf("expected friendliness 7, got %d", s.Friendliness)
	}
	if !s.ExcludeSpam {
		t.Error("expected exclude_spam by default")
	}
	if s.Plan != "free" {
		t.Errorf("expected plan 'free', got %q", s.Plan)
	}

	// Second call returns the same row, no duplicate insert.
	again, err := db.GetOrCreateSettings("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.UserID != s.UserID || again.Tone != s.Tone {
		t.Error("expected same settings row on second access")
	}
}

func TestUpdateSettingsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s, _ := db.GetOrCreateSettings("user-1")

	s.Tone = "humorous"
	s.BannedWords = []string{"crypto", "giveaway"}
	s.PeriodReplies = 12
	s.AutoEnabled = true
	if err := db.UpdateSettings(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := db.GetOrCreateSettings("user-1")
	if got.Tone != "humorous" {
		t.Errorf("expected tone 'humorous', got %q", got.Tone)
	}
	if len(got.BannedWords) != 2 || got.BannedWords[0] != "crypto" {
		t.Errorf("expected banned words round trip, got %v", got.BannedWords)
	}
	if got.PeriodReplies != 12 {
		t.Errorf("expected 12 period replies, got %d", got.PeriodReplies)
	}
	if !got.AutoEnabled {
		t.Error("expected auto_enabled to persist")
	}
}

func TestListAutoUsers(t *testing.T) {
	db := openTestDB(t)

	a, _ := db.GetOrCreateSettings("auto-user")
	a.AutoEnabled = true
	db.UpdateSettings(a)

	b, _ := db.GetOrCreateSettings("manual-user")
	b.AutoEnabled = false
	db.UpdateSettings(b)

	c, _ := db.GetOrCreateSettings("disabled-user")
	c.AutoEnabled = true
	c.Enabled = false
	db.UpdateSettings(c)

	users, err := db.ListAutoUsers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 auto user, got %d", len(users))
	}
	if users[0].UserID != "auto-user" {
		t.Errorf("expected 'auto-user', got %q", users[0].UserID)
	}
}

func TestApplySettingsPatch(t *testing.T) {
	s := defaultSettings("u")

	err := ApplySettingsPatch(s, map[string]any{
		"tone":           "professional",
		"humor":          9,
		"min_sentiment":  -0.2,
		"banned_words":   "spam, scam",
		"auto_enabled":   true,
		"max_tokens":     512,
		"require_question": true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Tone != "professional" || s.Humor != 9 || s.MinSentiment != -0.2 {
		t.Errorf("patch not applied: %+v", s)
	}
	if len(s.BannedWords) != 2 || s.BannedWords[1] != "scam" {
		t.Errorf("expected parsed banned words, got %v", s.BannedWords)
	}
	if !s.AutoEnabled || s.MaxTokens != 512 || !s.RequireQuestion {
		t.Errorf("patch not applied: %+v", s)
	}
}

func TestApplySettingsPatchRejectsUnknownKey(t *testing.T) {
	s := defaultSettings("u")
	err := ApplySettingsPatch(s, map[string]any{"plan": "pro"})
	if err == nil {
		t.Error("expected error for non-settable key 'plan'")
	}
	err = ApplySettingsPatch(s, map[string]any{"no_such_setting": 1})
	if err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestApplySettingsPatchRejectsBadValues(t *testing.T) {
	s := defaultSettings("u")
	cases := []map[string]any{
		{"tone": "sarcastic"},
		{"humor": 11},
		{"humor": 0},
		{"min_sentiment": 2.0},
		{"max_tokens": 0},
		{"temperature": 5.0},
		{"enabled": "maybe"},
	}
	for _, patch := range cases {
		if err := ApplySettingsPatch(s, patch); err == nil {
			t.Errorf("expected error for patch %v", patch)
		}
	}
}

func TestChannelLifecycle(t *testing.T) {
	db := openTestDB(t)

	id, err := db.InsertChannel("user-1", "UC123", "My Channel", "tok", "refresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero channel ID")
	}

	dup, err := db.InsertChannel("user-1", "UC123", "Again", "t", "r")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup != 0 {
		t.Error("expected 0 for duplicate platform_id")
	}

	channels, _ := db.ListActiveChannels("user-1")
	if len(channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(channels))
	}
	if channels[0].AccessToken != "tok" {
		t.Errorf("expected access token 'tok', got %q", channels[0].AccessToken)
	}

	if err := db.UpdateChannelTokens(id, "tok2", "refresh2", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ch, _ := db.GetChannel(id)
	if ch.AccessToken != "tok2" || ch.RefreshToken != "refresh2" {
		t.Error("expected refreshed tokens to persist")
	}

	if err := db.DeleteChannel(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ch, _ = db.GetChannel(id)
	if ch != nil {
		t.Error("expected channel to be deleted")
	}
}

func TestTranscriptLifecycle(t *testing.T) {
	db := openTestDB(t)

	if err := db.InsertTranscript("vid-1", "user-1", "UC123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Concurrent extraction: second insert is a no-op.
	if err := db.InsertTranscript("vid-1", "user-1", "UC123"); err != nil {
		t.Fatalf("unexpected error on duplicate insert: %v", err)
	}

	tr, _ := db.GetTranscript("vid-1")
	if tr == nil || tr.Status != TranscriptProcessing {
		t.Fatalf("expected processing record, got %+v", tr)
	}
	if tr.Processed() {
		t.Error("processing record must not report processed")
	}

	segs := []Segment{{Text: "hello world", OffsetMs: 0, DurationMs: 1500}}
	if err := db.MarkTranscriptExtracted("vid-1", "Title", "Desc", 90, "hello world", segs, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary := "A greeting."
	sentiment := 0.4
	if err := db.MarkTranscriptCompleted("vid-1", &summary, []string{"greetings"}, &sentiment, []string{"hello"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr, _ = db.GetTranscript("vid-1")
	if !tr.Processed() {
		t.Error("expected completed record")
	}
	if tr.Summary == nil || *tr.Summary != "A greeting." {
		t.Error("expected summary to persist")
	}
	if len(tr.Segments) != 1 || tr.Segments[0].DurationMs != 1500 {
		t.Errorf("expected segments round trip, got %v", tr.Segments)
	}
	if len(tr.Topics) != 1 || tr.Topics[0] != "greetings" {
		t.Errorf("expected topics round trip, got %v", tr.Topics)
	}
}

func TestTranscriptCompletedWithEmptyDerivedFields(t *testing.T) {
	db := openTestDB(t)
	db.InsertTranscript("vid-2", "user-1", "UC123")
	db.MarkTranscriptExtracted("vid-2", "T", "", 10, "some text", nil, 2)

	// All enrichment sub-steps failed; record still completes.
	if err := db.MarkTranscriptCompleted("vid-2", nil, nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr, _ := db.GetTranscript("vid-2")
	if tr.Status != TranscriptCompleted {
		t.Errorf("expected completed, got %q", tr.Status)
	}
	if tr.Summary != nil || tr.Topics != nil {
		t.Error("expected empty derived fields")
	}
}

func TestTranscriptFailed(t *testing.T) {
	db := openTestDB(t)
	db.InsertTranscript("vid-3", "user-1", "UC123")
	if err := db.MarkTranscriptFailed("vid-3", "no transcript available"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr, _ := db.GetTranscript("vid-3")
	if tr.Status != TranscriptFailed {
		t.Errorf("expected failed, got %q", tr.Status)
	}
	if tr.FailReason == nil || *tr.FailReason != "no transcript available" {
		t.Error("expected fail reason to persist")
	}
}

func TestReplyLogLifecycle(t *testing.T) {
	db := openTestDB(t)

	model := "gpt-4o-mini"
	id, err := db.InsertReplyLog(&ReplyLogEntry{
		UserID:      "user-1",
		ContentID:   "vid-1",
		CommentID:   "c-1",
		CommentText: "Great video!",
		ReplyText:   "Thanks!",
		Status:      ReplyPending,
		Model:       &model,
		TokensUsed:  42,
		Confidence:  0.9,
		AIGenerated: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	replied, _ := db.HasSentReply("user-1", "c-1")
	if replied {
		t.Error("pending entry must not count as already replied")
	}

	if err := db.MarkReplySent(id, "platform-reply-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	replied, _ = db.HasSentReply("user-1", "c-1")
	if !replied {
		t.Error("sent entry must count as already replied")
	}

	e, _ := db.GetReplyLog(id)
	if e.Status != ReplySent || e.PlatformReplyID == nil || *e.PlatformReplyID != "platform-reply-9" {
		t.Errorf("expected sent entry, got %+v", e)
	}

	// Sent entries are immutable.
	if err := db.MarkReplyFailed(id, "late error"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e, _ = db.GetReplyLog(id)
	if e.Status != ReplySent {
		t.Errorf("sent entry must stay sent, got %q", e.Status)
	}
}

func TestFailedReplyLeavesCommentEligible(t *testing.T) {
	db := openTestDB(t)

	id, _ := db.InsertReplyLog(&ReplyLogEntry{
		UserID: "user-1", ContentID: "vid-1", CommentID: "c-2",
		CommentText: "Question?", Status: ReplyPending,
	})
	db.MarkReplyFailed(id, "post failed: 500")

	replied, _ := db.HasSentReply("user-1", "c-2")
	if replied {
		t.Error("failed entry must not count as already replied")
	}
}

func TestCountSentForContent(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 3; i++ {
		id, _ := db.InsertReplyLog(&ReplyLogEntry{
			UserID: "user-1", ContentID: "vid-1", CommentID: string(rune('a' + i)),
			CommentText: "x", Status: ReplyPending,
		})
		db.MarkReplySent(id, "r")
	}
	db.InsertReplyLog(&ReplyLogEntry{
		UserID: "user-1", ContentID: "vid-1", CommentID: "d",
		CommentText: "x", Status: ReplySkipped,
	})

	count, err := db.CountSentForContent("user-1", "vid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 sent replies, got %d", count)
	}
}

func TestEmbeddingsOwnerIsolation(t *testing.T) {
	db := openTestDB(t)

	db.UpsertEmbedding(&EmbeddingRow{UserID: "a", ContentID: "v1", Vector: []byte{1}, Dimensions: 1, Model: "m"})
	db.UpsertEmbedding(&EmbeddingRow{UserID: "b", ContentID: "v2", Vector: []byte{2}, Dimensions: 1, Model: "m"})

	rows, err := db.GetEmbeddings("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ContentID != "v1" {
		t.Errorf("expected only owner-a rows, got %v", rows)
	}

	// Upsert replaces, not duplicates.
	db.UpsertEmbedding(&EmbeddingRow{UserID: "a", ContentID: "v1", Vector: []byte{9}, Dimensions: 1, Model: "m2"})
	rows, _ = db.GetEmbeddings("a")
	if len(rows) != 1 || rows[0].Model != "m2" {
		t.Errorf("expected replaced row, got %v", rows)
	}

	if err := db.DeleteEmbedding("a", "v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, _ = db.GetEmbeddings("a")
	if len(rows) != 0 {
		t.Error("expected owner-a rows deleted")
	}
	rows, _ = db.GetEmbeddings("b")
	if len(rows) != 1 {
		t.Error("expected owner-b rows untouched")
	}
}

func TestSameUsagePeriod(t *testing.T) {
	now := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)

	if !SameUsagePeriod("2026-08-01", now) {
		t.Error("same month should match")
	}
	if !SameUsagePeriod("2026-08-29", now) {
		t.Error("same day should match")
	}
	if SameUsagePeriod("2026-07-31", now) {
		t.Error("previous month should not match")
	}
	if SameUsagePeriod("2025-08-15", now) {
		t.Error("same month previous year should not match")
	}
	if SameUsagePeriod("garbage", now) {
		t.Error("unparseable date should not match")
	}

	if got := PeriodStartFor(now); got != "2026-08-01" {
		t.Errorf("expected 2026-08-01, got %q", got)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)

	db.GetOrCreateSettings("user-1")
	db.InsertChannel("user-1", "UC1", "Ch", "t", "r")
	db.InsertTranscript("v1", "user-1", "UC1")
	db.MarkTranscriptCompleted("v1", nil, nil, nil, nil)
	id, _ := db.InsertReplyLog(&ReplyLogEntry{UserID: "user-1", ContentID: "v1", CommentID: "c", CommentText: "x", Status: ReplyPending})
	db.MarkReplySent(id, "r1")

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Transcripts != 1 || stats.TranscriptsCompleted != 1 {
		t.Errorf("unexpected transcript stats: %+v", stats)
	}
	if stats.Channels != 1 || stats.ActiveChannels != 1 {
		t.Errorf("unexpected channel stats: %+v", stats)
	}
	if stats.RepliesSent != 1 {
		t.Errorf("expected 1 sent reply, got %d", stats.RepliesSent)
	}
	if stats.Users != 1 {
		t.Errorf("expected 1 user, got %d", stats.Users)
	}
}

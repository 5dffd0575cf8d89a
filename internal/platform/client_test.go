package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avesohel/replypilot/internal/database"
)

func testChannel() *database.Channel {
	return &database.Channel{
		UserID:      "user-1",
		PlatformID:  "UCabc123",
		Title:       "Test Channel",
		AccessToken: "tok-abc",
	}
}

func newTestClient(apiURL string) *Client {
	return &Client{
		APIBaseURL: apiURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func TestListRecentContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
			t.Errorf("missing bearer token, got %q", got)
		}
		if r.URL.Query().Get("channelId") != "UCabc123" {
			t.Errorf("missing channelId param")
		}
		fmt.Fprint(w, `{"items":[
			{"id":"vid-1","title":"New Video","publishedAt":"2026-08-20T10:00:00Z","commentCount":4},
			{"id":"vid-0","title":"Old Video","publishedAt":"2026-08-01T10:00:00Z","commentCount":9}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	since := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	items, err := c.ListRecentContent(context.Background(), testChannel(), since)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "vid-1" {
		t.Fatalf("expected only the item after since, got %+v", items)
	}
	if items[0].CommentCount != 4 {
		t.Errorf("comment count not carried: %d", items[0].CommentCount)
	}
}

func TestListRecentContentAuthExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ListRecentContent(context.Background(), testChannel(), time.Now().Add(-time.Hour))
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
}

func TestListRecentContentForbiddenTokenReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"errors":[{"reason":"authError"}]}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ListComments(context.Background(), testChannel(), "vid-1", time.Now().Add(-time.Hour))
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired for authError 403, got %v", err)
	}
}

func TestListRecentContentFeedFallback(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer api.Close()

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("channel_id") != "UCabc123" {
			t.Errorf("feed missing channel_id param")
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Channel</title>
  <entry>
    <id>yt:video:vid-7</id>
    <title>Feed Video</title>
    <published>2026-08-20T10:00:00Z</published>
  </entry>
  <entry>
    <id>yt:video:vid-6</id>
    <title>Stale Feed Video</title>
    <published>2026-07-01T10:00:00Z</published>
  </entry>
</feed>`)
	}))
	defer feed.Close()

	c := newTestClient(api.URL)
	c.FeedBaseURL = feed.URL

	since := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	items, err := c.ListRecentContent(context.Background(), testChannel(), since)
	if err != nil {
		t.Fatalf("expected feed fallback to succeed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "vid-7" {
		t.Fatalf("unexpected feed items: %+v", items)
	}
}

func TestAuthExpiredSkipsFeedFallback(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()

	feedCalled := false
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feedCalled = true
	}))
	defer feed.Close()

	c := newTestClient(api.URL)
	c.FeedBaseURL = feed.URL

	_, err := c.ListRecentContent(context.Background(), testChannel(), time.Now().Add(-time.Hour))
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if feedCalled {
		t.Error("auth failures must surface for refresh, not mask behind the feed")
	}
}

func TestListComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("videoId") != "vid-1" {
			t.Errorf("missing videoId param")
		}
		fmt.Fprint(w, `{"items":[
			{"id":"cmt-1","authorChannelId":"UCviewer","authorName":"viewer42","text":"What camera?","likeCount":3,"publishedAt":"2026-08-20T11:00:00Z"}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	comments, err := c.ListComments(context.Background(), testChannel(), "vid-1", time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("list comments failed: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(comments))
	}
	got := comments[0]
	if got.ID != "cmt-1" || got.ContentID != "vid-1" || got.AuthorChannelID != "UCviewer" || got.Likes != 3 {
		t.Errorf("comment fields wrong: %+v", got)
	}
}

func TestPostReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/comments/cmt-1/replies" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"id":"reply-9"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	id, err := c.PostReply(context.Background(), testChannel(), "cmt-1", "Thanks!")
	if err != nil {
		t.Fatalf("post reply failed: %v", err)
	}
	if id != "reply-9" {
		t.Errorf("unexpected reply id: %s", id)
	}
}

func TestFetchTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/captions/vid-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("lang") != "en" {
			t.Errorf("missing lang param")
		}
		fmt.Fprint(w, `{"segments":[{"text":"hello and welcome","offset_ms":0,"duration_ms":2500}]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	segs, err := c.FetchTranscript(context.Background(), testChannel(), "vid-1", "en")
	if err != nil {
		t.Fatalf("fetch transcript failed: %v", err)
	}
	if len(segs) != 1 || segs[0].Text != "hello and welcome" || segs[0].DurationMs != 2500 {
		t.Errorf("unexpected segments: %+v", segs)
	}
}

func TestFetchTranscriptMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.FetchTranscript(context.Background(), testChannel(), "vid-1", "en")
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestFetchTranscriptEmptyTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"segments":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.FetchTranscript(context.Background(), testChannel(), "vid-1", "en")
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript for empty track, got %v", err)
	}
}

func TestRefreshCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "rt-1" {
			t.Errorf("bad form: %v", r.PostForm)
		}
		fmt.Fprint(w, `{"access_token":"tok-new","refresh_token":"rt-2","expires_in":3600}`)
	}))
	defer srv.Close()

	c := newTestClient("")
	c.TokenURL = srv.URL

	cred, err := c.RefreshCredential(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if cred.AccessToken != "tok-new" || cred.RefreshToken != "rt-2" {
		t.Errorf("unexpected credential: %+v", cred)
	}
	if time.Until(cred.ExpiresAt) < 59*time.Minute {
		t.Errorf("expiry not derived from expires_in: %v", cred.ExpiresAt)
	}
}

func TestRefreshCredentialRevoked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer srv.Close()

	c := newTestClient("")
	c.TokenURL = srv.URL

	_, err := c.RefreshCredential(context.Background(), "rt-dead")
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired for revoked grant, got %v", err)
	}
}

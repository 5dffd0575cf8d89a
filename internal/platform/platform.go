// Package platform talks to the video platform's data API: content and
// comment listing, reply posting, caption download and OAuth token refresh.
// Recent-content discovery falls back to the platform's public RSS feed
// when the data API is unavailable, since the feed costs no API quota.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/avesohel/replypilot/internal/database"
)

// ErrAuthExpired marks a failed call that a token refresh can fix. Callers
// must not retry the same token.
var ErrAuthExpired = errors.New("access token expired or revoked")

// ErrNoTranscript marks content that has no captions in the requested
// language. It is a permanent condition for that content, not a transient
// failure.
var ErrNoTranscript = errors.New("no transcript available")

// Content is one piece of published content from a listing.
type Content struct {
	ID           string
	Title        string
	Description  string
	PublishedAt  time.Time
	CommentCount int
}

// ContentDetails is the full metadata for one piece of content.
type ContentDetails struct {
	ID              string
	Title           string
	Description     string
	DurationSeconds int
}

// Comment is one top-level comment on a piece of content.
type Comment struct {
	ID              string
	ContentID       string
	AuthorChannelID string
	AuthorName      string
	Text            string
	Likes           int
	PublishedAt     time.Time
}

// TranscriptSegment is one caption cue.
type TranscriptSegment struct {
	Text       string `json:"text"`
	OffsetMs   int    `json:"offset_ms"`
	DurationMs int    `json:"duration_ms"`
}

// Credential is a refreshed OAuth token pair. RefreshToken may be empty
// when the platform keeps the old one valid.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// API is the platform surface the pipeline and monitor depend on. The
// HTTP client implements it; tests substitute stubs.
type API interface {
	ListRecentContent(ctx context.Context, ch *database.Channel, since time.Time) ([]Content, error)
	ListComments(ctx context.Context, ch *database.Channel, contentID string, since time.Time) ([]Comment, error)
	GetContentDetails(ctx context.Context, ch *database.Channel, contentID string) (*ContentDetails, error)
	PostReply(ctx context.Context, ch *database.Channel, parentCommentID, text string) (string, error)
	FetchTranscript(ctx context.Context, ch *database.Channel, contentID, lang string) ([]TranscriptSegment, error)
	RefreshCredential(ctx context.Context, refreshToken string) (*Credential, error)
}

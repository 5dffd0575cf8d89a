package database

// Transcript statuses.
const (
	TranscriptProcessing = "processing"
	TranscriptCompleted  = "completed"
	TranscriptFailed     = "failed"
)

// Reply log statuses.
const (
	ReplyPending   = "pending"
	ReplyGenerated = "generated"
	ReplySent      = "sent"
	ReplyFailed    = "failed"
	ReplySkipped   = "skipped"
)

// Segment is one timed piece of a transcript.
type Segment struct {
	Text       string `json:"text"`
	OffsetMs   int    `json:"offset_ms"`
	DurationMs int    `json:"duration_ms"`
}

// Transcript is the per-content transcript record with derived fields.
// A record is either fully unprocessed or status 'completed'; derived fields
// may be empty on a completed record when enrichment sub-steps failed.
type Transcript struct {
	ContentID       string
	UserID          string
	ChannelID       string
	Title           string
	Description     string
	DurationSeconds int
	RawText         string
	Segments        []Segment
	Summary         *string
	Topics          []string
	Sentiment       *float64
	Keywords        []string
	Status          string
	FailReason      *string
	WordCount       int
	ExtractedAt     *string
	ProcessedAt     *string
}

// Processed reports whether the record finished extraction.
func (t *Transcript) Processed() bool {
	return t.Status == TranscriptCompleted
}

// Channel is a connected platform channel with live credentials.
type Channel struct {
	ID             int64
	UserID         string
	PlatformID     string
	Title          string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *string
	Active         bool
	ConnectedAt    *string
}

// AISettings is the per-user reply configuration plus usage counters.
// One row per user, created on first access.
type AISettings struct {
	UserID          string
	Enabled         bool
	Tone            string
	Length          string
	Friendliness    int
	Humor           int
	Formality       int
	Enthusiasm      int
	Instructions    string
	MinSentiment    float64
	MinWordCount    int
	ExcludeSpam     bool
	RequireQuestion bool
	BannedWords     []string
	RequiredWords   []string

	AutoEnabled       bool
	AutoDelaySeconds  int
	AutoMaxPerContent int
	AutoNewOnly       bool
	AutoSkipReplied   bool

	Model       string
	MaxTokens   int
	Temperature float64

	Plan          string
	TotalReplies  int
	PeriodReplies int
	PeriodStart   string
	SuccessRate   int
	AvgLatencyMs  int
	UpdatedAt     *string
}

// ReplyLogEntry is one generation/post attempt. Immutable once sent or failed.
type ReplyLogEntry struct {
	ID                 int64
	UserID             string
	ContentID          string
	CommentID          string
	CommentText        string
	CommentAuthor      string
	CommentPublishedAt *string
	ReplyText          string
	Status             string
	PlatformReplyID    *string
	ErrorDetail        *string
	SkipReason         *string
	Model              *string
	TokensUsed         int
	LatencyMs          int
	Confidence         float64
	RetryCount         int
	AIGenerated        bool
	CreatedAt          *string
	UpdatedAt          *string
}

// EmbeddingRow is a stored vector plus denormalized metadata, keyed by
// (user, content) so index entries never cross user namespaces.
type EmbeddingRow struct {
	UserID     string
	ContentID  string
	Vector     []byte
	Dimensions int
	Model      string
	Title      string
	Summary    string
	Topics     []string
	CreatedAt  *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Transcripts          int
	TranscriptsCompleted int
	TranscriptsFailed    int
	Embeddings           int
	Channels             int
	ActiveChannels       int
	RepliesSent          int
	RepliesFailed        int
	RepliesSkipped       int
	Users                int
}

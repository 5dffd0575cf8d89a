package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS ai_settings (
    user_id TEXT PRIMARY KEY,
    enabled INTEGER DEFAULT 1,
    tone TEXT DEFAULT 'friendly',
    length TEXT DEFAULT 'medium',
    friendliness INTEGER DEFAULT 7,
    humor INTEGER DEFAULT 5,
    formality INTEGER DEFAULT 4,
    enthusiasm INTEGER DEFAULT 6,
    instructions TEXT DEFAULT '',
    min_sentiment REAL DEFAULT -1.0,
    min_word_count INTEGER DEFAULT 0,
    exclude_spam INTEGER DEFAULT 1,
    require_question INTEGER DEFAULT 0,
    banned_words TEXT,
    required_words TEXT,
    auto_enabled INTEGER DEFAULT 0,
    auto_delay_seconds INTEGER DEFAULT 30,
    auto_max_per_content INTEGER DEFAULT 10,
    auto_new_only INTEGER DEFAULT 1,
    auto_skip_replied INTEGER DEFAULT 1,
    model TEXT DEFAULT '',
    max_tokens INTEGER DEFAULT 256,
    temperature REAL DEFAULT 0.7,
    plan TEXT DEFAULT 'free',
    total_replies INTEGER DEFAULT 0,
    period_replies INTEGER DEFAULT 0,
    period_start TEXT DEFAULT (date('now')),
    success_rate INTEGER DEFAULT 0,
    avg_latency_ms INTEGER DEFAULT 0,
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS channels (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    platform_id TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    token_expires_at TEXT,
    active INTEGER DEFAULT 1,
    connected_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS transcripts (
    content_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    title TEXT DEFAULT '',
    description TEXT DEFAULT '',
    duration_seconds INTEGER DEFAULT 0,
    raw_text TEXT DEFAULT '',
    segments TEXT,
    summary TEXT,
    topics TEXT,
    sentiment REAL,
    keywords TEXT,
    status TEXT NOT NULL DEFAULT 'processing',
    fail_reason TEXT,
    word_count INTEGER DEFAULT 0,
    extracted_at TEXT,
    processed_at TEXT
);

CREATE TABLE IF NOT EXISTS embeddings (
    user_id TEXT NOT NULL,
    content_id TEXT NOT NULL,
    vector BLOB NOT NULL,
    dimensions INTEGER NOT NULL,
    model TEXT NOT NULL,
    title TEXT DEFAULT '',
    summary TEXT DEFAULT '',
    topics TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (user_id, content_id)
);

CREATE TABLE IF NOT EXISTS reply_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    content_id TEXT NOT NULL,
    comment_id TEXT NOT NULL,
    comment_text TEXT NOT NULL,
    comment_author TEXT DEFAULT '',
    comment_published_at TEXT,
    reply_text TEXT DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    platform_reply_id TEXT,
    error_detail TEXT,
    skip_reason TEXT,
    model TEXT,
    tokens_used INTEGER DEFAULT 0,
    latency_ms INTEGER DEFAULT 0,
    confidence REAL DEFAULT 0,
    retry_count INTEGER DEFAULT 0,
    ai_generated INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_channels_user ON channels(user_id);
CREATE INDEX IF NOT EXISTS idx_transcripts_user ON transcripts(user_id);
CREATE INDEX IF NOT EXISTS idx_reply_log_user ON reply_log(user_id);
CREATE INDEX IF NOT EXISTS idx_reply_log_comment ON reply_log(user_id, comment_id);
CREATE INDEX IF NOT EXISTS idx_reply_log_content ON reply_log(user_id, content_id);
CREATE INDEX IF NOT EXISTS idx_reply_log_status ON reply_log(status);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

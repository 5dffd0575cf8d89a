package database

import (
	"database/sql"
	"encoding/json"
)

// InsertTranscript creates a new record in 'processing' state. Duplicate
// inserts for the same content id are ignored so concurrent extraction
// attempts stay idempotent.
func (db *DB) InsertTranscript(contentID, userID, channelID string) error {
	_, err := db.conn.Exec(
		`INSERT OR IGNORE INTO transcripts (content_id, user_id, channel_id, status)
		VALUES (?, ?, ?, 'processing')`,
		contentID, userID, channelID)
	return err
}

// GetTranscript returns a record by content id, nil if absent.
func (db *DB) GetTranscript(contentID string) (*Transcript, error) {
	row := db.conn.QueryRow(
		`SELECT content_id, user_id, channel_id, title, description, duration_seconds,
		raw_text, segments, summary, topics, sentiment, keywords,
		status, fail_reason, word_count, extracted_at, processed_at
		FROM transcripts WHERE content_id = ?`, contentID)
	t, err := scanTranscript(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// MarkTranscriptExtracted stores the cleaned text, segments, and platform
// metadata after a successful fetch. Status stays 'processing' until
// enrichment results are merged.
func (db *DB) MarkTranscriptExtracted(contentID, title, description string, durationSeconds int, rawText string, segments []Segment, wordCount int) error {
	segJSON, err := json.Marshal(segments)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		`UPDATE transcripts SET title = ?, description = ?, duration_seconds = ?,
		raw_text = ?, segments = ?, word_count = ?, extracted_at = datetime('now')
		WHERE content_id = ?`,
		title, description, durationSeconds, rawText, string(segJSON), wordCount, contentID)
	return err
}

// MarkTranscriptCompleted merges enrichment results and flips the record to
// 'completed'. Nil derived fields are permitted: enrichment sub-steps fail
// independently and an empty summary must not block completion.
func (db *DB) MarkTranscriptCompleted(contentID string, summary *string, topics []string, sentiment *float64, keywords []string) error {
	_, err := db.conn.Exec(
		`UPDATE transcripts SET summary = ?, topics = ?, sentiment = ?, keywords = ?,
		status = 'completed', fail_reason = NULL, processed_at = datetime('now')
		WHERE content_id = ?`,
		summary, encodeWords(topics), sentiment, encodeWords(keywords), contentID)
	return err
}

// MarkTranscriptFailed records a terminal extraction failure with its reason.
func (db *DB) MarkTranscriptFailed(contentID, reason string) error {
	_, err := db.conn.Exec(
		`UPDATE transcripts SET status = 'failed', fail_reason = ?, processed_at = datetime('now')
		WHERE content_id = ?`,
		reason, contentID)
	return err
}

// DeleteTranscript removes a record. The caller is responsible for removing
// the matching index entry.
func (db *DB) DeleteTranscript(contentID string) error {
	_, err := db.conn.Exec(`DELETE FROM transcripts WHERE content_id = ?`, contentID)
	return err
}

func scanTranscript(row rowScanner) (*Transcript, error) {
	var t Transcript
	var segments, topics, keywords sql.NullString
	if err := row.Scan(&t.ContentID, &t.UserID, &t.ChannelID, &t.Title, &t.Description,
		&t.DurationSeconds, &t.RawText, &segments, &t.Summary, &topics, &t.Sentiment,
		&keywords, &t.Status, &t.FailReason, &t.WordCount, &t.ExtractedAt, &t.ProcessedAt); err != nil {
		return nil, err
	}
	if segments.Valid && segments.String != "" {
		if err := json.Unmarshal([]byte(segments.String), &t.Segments); err != nil {
			t.Segments = nil
		}
	}
	t.Topics = decodeWords(topics)
	t.Keywords = decodeWords(keywords)
	return &t, nil
}

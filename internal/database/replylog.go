package database

import (
	"database/sql"
	"fmt"
)

// InsertReplyLog creates a log entry before the external post call, so a
// crash mid-call still leaves an auditable record.
func (db *DB) InsertReplyLog(e *ReplyLogEntry) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO reply_log (user_id, content_id, comment_id, comment_text, comment_author,
		comment_published_at, reply_text, status, skip_reason, model, tokens_used, latency_ms,
		confidence, retry_count, ai_generated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.ContentID, e.CommentID, e.CommentText, e.CommentAuthor,
		e.CommentPublishedAt, e.ReplyText, e.Status, e.SkipReason, e.Model,
		e.TokensUsed, e.LatencyMs, e.Confidence, e.RetryCount, boolToInt(e.AIGenerated))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// MarkReplySent finalizes an entry after a successful platform post.
func (db *DB) MarkReplySent(id int64, platformReplyID string) error {
	_, err := db.conn.Exec(
		`UPDATE reply_log SET status = 'sent', platform_reply_id = ?, updated_at = datetime('now')
		WHERE id = ? AND status NOT IN ('sent', 'failed')`,
		platformReplyID, id)
	return err
}

// MarkReplyFailed finalizes an entry after a post failure.
func (db *DB) MarkReplyFailed(id int64, errorDetail string) error {
	_, err := db.conn.Exec(
		`UPDATE reply_log SET status = 'failed', error_detail = ?, updated_at = datetime('now')
		WHERE id = ? AND status NOT IN ('sent', 'failed')`,
		errorDetail, id)
	return err
}

// HasSentReply reports whether a comment already received a posted reply.
// Only 'sent' entries count: failed attempts leave the comment eligible for
// the next sweep.
func (db *DB) HasSentReply(userID, commentID string) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM reply_log WHERE user_id = ? AND comment_id = ? AND status = 'sent'`,
		userID, commentID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountSentForContent returns how many replies were posted under one content
// item, for the per-content reply cap.
func (db *DB) CountSentForContent(userID, contentID string) (int, error) {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM reply_log WHERE user_id = ? AND content_id = ? AND status = 'sent'`,
		userID, contentID).Scan(&count)
	return count, err
}

// GetReplyLog returns a single entry by id, nil if absent.
func (db *DB) GetReplyLog(id int64) (*ReplyLogEntry, error) {
	row := db.conn.QueryRow(
		`SELECT id, user_id, content_id, comment_id, comment_text, comment_author,
		comment_published_at, reply_text, status, platform_reply_id, error_detail, skip_reason,
		model, tokens_used, latency_ms, confidence, retry_count, ai_generated, created_at, updated_at
		FROM reply_log WHERE id = ?`, id)
	e, err := scanReplyLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetRecentLogs returns the newest entries across all users.
func (db *DB) GetRecentLogs(limit int) ([]ReplyLogEntry, error) {
	rows, err := db.conn.Query(
		`SELECT id, user_id, content_id, comment_id, comment_text, comment_author,
		comment_published_at, reply_text, status, platform_reply_id, error_detail, skip_reason,
		model, tokens_used, latency_ms, confidence, retry_count, ai_generated, created_at, updated_at
		FROM reply_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReplyLogs(rows)
}

// GetLogsSince returns entries created within the last N days, oldest first,
// for the activity digest.
func (db *DB) GetLogsSince(days int) ([]ReplyLogEntry, error) {
	rows, err := db.conn.Query(
		`SELECT id, user_id, content_id, comment_id, comment_text, comment_author,
		comment_published_at, reply_text, status, platform_reply_id, error_detail, skip_reason,
		model, tokens_used, latency_ms, confidence, retry_count, ai_generated, created_at, updated_at
		FROM reply_log WHERE created_at >= datetime('now', ?) ORDER BY id`,
		sqlDaysAgo(days))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReplyLogs(rows)
}

func sqlDaysAgo(days int) string {
	if days <= 0 {
		days = 1
	}
	return fmt.Sprintf("-%d days", days)
}

func scanReplyLogs(rows *sql.Rows) ([]ReplyLogEntry, error) {
	var entries []ReplyLogEntry
	for rows.Next() {
		e, err := scanReplyLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanReplyLog(row rowScanner) (*ReplyLogEntry, error) {
	var e ReplyLogEntry
	var aiGenerated int
	if err := row.Scan(&e.ID, &e.UserID, &e.ContentID, &e.CommentID, &e.CommentText,
		&e.CommentAuthor, &e.CommentPublishedAt, &e.ReplyText, &e.Status,
		&e.PlatformReplyID, &e.ErrorDetail, &e.SkipReason, &e.Model, &e.TokensUsed,
		&e.LatencyMs, &e.Confidence, &e.RetryCount, &aiGenerated, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.AIGenerated = aiGenerated != 0
	return &e, nil
}

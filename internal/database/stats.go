package database

// GetStats returns aggregate counts for the status command and dashboard.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	err := db.conn.QueryRow(`SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM transcripts`).Scan(&s.Transcripts, &s.TranscriptsCompleted, &s.TranscriptsFailed)
	if err != nil {
		return nil, err
	}

	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM embeddings`).Scan(&s.Embeddings); err != nil {
		return nil, err
	}

	err = db.conn.QueryRow(`SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN active = 1 THEN 1 ELSE 0 END), 0)
		FROM channels`).Scan(&s.Channels, &s.ActiveChannels)
	if err != nil {
		return nil, err
	}

	err = db.conn.QueryRow(`SELECT
		COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END), 0)
		FROM reply_log`).Scan(&s.RepliesSent, &s.RepliesFailed, &s.RepliesSkipped)
	if err != nil {
		return nil, err
	}

	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM ai_settings`).Scan(&s.Users); err != nil {
		return nil, err
	}

	return s, nil
}

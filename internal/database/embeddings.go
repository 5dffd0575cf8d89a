package database

import (
	"database/sql"
)

// UpsertEmbedding stores or replaces the vector for (user, content). Last
// writer wins; duplicate extraction attempts do not corrupt the row.
func (db *DB) UpsertEmbedding(e *EmbeddingRow) error {
	_, err := db.conn.Exec(
		`INSERT INTO embeddings (user_id, content_id, vector, dimensions, model, title, summary, topics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, content_id) DO UPDATE SET
		vector = excluded.vector, dimensions = excluded.dimensions, model = excluded.model,
		title = excluded.title, summary = excluded.summary, topics = excluded.topics,
		created_at = datetime('now')`,
		e.UserID, e.ContentID, e.Vector, e.Dimensions, e.Model, e.Title, e.Summary, encodeWords(e.Topics))
	return err
}

// GetEmbeddings returns every stored vector for one user. The user filter
// is the namespace boundary: queries never see another owner's rows.
func (db *DB) GetEmbeddings(userID string) ([]EmbeddingRow, error) {
	rows, err := db.conn.Query(
		`SELECT user_id, content_id, vector, dimensions, model, title, summary, topics, created_at
		FROM embeddings WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var e EmbeddingRow
		var topics sql.NullString
		if err := rows.Scan(&e.UserID, &e.ContentID, &e.Vector, &e.Dimensions,
			&e.Model, &e.Title, &e.Summary, &topics, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Topics = decodeWords(topics)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEmbedding removes a vector by the same key used to create it.
func (db *DB) DeleteEmbedding(userID, contentID string) error {
	_, err := db.conn.Exec(
		`DELETE FROM embeddings WHERE user_id = ? AND content_id = ?`, userID, contentID)
	return err
}

// CountEmbeddings returns the total number of index entries, and the number
// of distinct owners.
func (db *DB) CountEmbeddings() (total, owners int, err error) {
	err = db.conn.QueryRow(
		`SELECT COUNT(*), COUNT(DISTINCT user_id) FROM embeddings`).Scan(&total, &owners)
	return total, owners, err
}

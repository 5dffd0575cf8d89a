package database

import (
	"database/sql"
)

// InsertChannel adds a connected channel. Returns the ID on success, 0 if
// the platform channel is already connected.
func (db *DB) InsertChannel(userID, platformID, title, accessToken, refreshToken string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO channels (user_id, platform_id, title, access_token, refresh_token)
		VALUES (?, ?, ?, ?, ?)`,
		userID, platformID, title, accessToken, refreshToken,
	)
	if err != nil {
		// Duplicate platform_id constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetChannel returns a single channel by ID, nil if absent.
func (db *DB) GetChannel(id int64) (*Channel, error) {
	row := db.conn.QueryRow(
		`SELECT id, user_id, platform_id, title, access_token, refresh_token, token_expires_at, active, connected_at
		FROM channels WHERE id = ?`, id)
	ch, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// GetChannelByPlatformID returns the channel connected for a platform id.
func (db *DB) GetChannelByPlatformID(platformID string) (*Channel, error) {
	row := db.conn.QueryRow(
		`SELECT id, user_id, platform_id, title, access_token, refresh_token, token_expires_at, active, connected_at
		FROM channels WHERE platform_id = ?`, platformID)
	ch, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// ListActiveChannels returns a user's active channels ordered by connect time.
func (db *DB) ListActiveChannels(userID string) ([]Channel, error) {
	rows, err := db.conn.Query(
		`SELECT id, user_id, platform_id, title, access_token, refresh_token, token_expires_at, active, connected_at
		FROM channels WHERE user_id = ? AND active = 1 ORDER BY connected_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChannels(rows)
}

// ListAllChannels returns every channel, for the channels CLI.
func (db *DB) ListAllChannels() ([]Channel, error) {
	rows, err := db.conn.Query(
		`SELECT id, user_id, platform_id, title, access_token, refresh_token, token_expires_at, active, connected_at
		FROM channels ORDER BY user_id, connected_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChannels(rows)
}

// UpdateChannelTokens persists refreshed credentials for a channel.
func (db *DB) UpdateChannelTokens(id int64, accessToken, refreshToken string, expiresAt *string) error {
	_, err := db.conn.Exec(
		`UPDATE channels SET access_token = ?, refresh_token = ?, token_expires_at = ? WHERE id = ?`,
		accessToken, refreshToken, expiresAt, id)
	return err
}

// DeleteChannel removes a channel by ID.
func (db *DB) DeleteChannel(id int64) error {
	_, err := db.conn.Exec(`DELETE FROM channels WHERE id = ?`, id)
	return err
}

func scanChannels(rows *sql.Rows) ([]Channel, error) {
	var channels []Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

func scanChannel(row rowScanner) (*Channel, error) {
	var ch Channel
	var active int
	if err := row.Scan(&ch.ID, &ch.UserID, &ch.PlatformID, &ch.Title,
		&ch.AccessToken, &ch.RefreshToken, &ch.TokenExpiresAt, &active, &ch.ConnectedAt); err != nil {
		return nil, err
	}
	ch.Active = active != 0
	return &ch, nil
}

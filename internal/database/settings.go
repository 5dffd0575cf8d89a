package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// defaultSettings mirrors the column defaults in the schema so a freshly
// created row and a freshly constructed struct agree.
func defaultSettings(userID string) *AISettings {
	return &AISettings{
		UserID:            userID,
		Enabled:           true,
		Tone:              "friendly",
		Length:            "medium",
		Friendliness:      7,
		Humor:             5,
		Formality:         4,
		Enthusiasm:        6,
		MinSentiment:      -1.0,
		ExcludeSpam:       true,
		AutoDelaySeconds:  30,
		AutoMaxPerContent: 10,
		AutoNewOnly:       true,
		AutoSkipReplied:   true,
		MaxTokens:         256,
		Temperature:       0.7,
		Plan:              "free",
		PeriodStart:       Today(),
	}
}

// GetOrCreateSettings returns the settings row for a user, inserting the
// defaults on first access.
func (db *DB) GetOrCreateSettings(userID string) (*AISettings, error) {
	s, err := db.getSettings(userID)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}

	def := defaultSettings(userID)
	if err := db.insertSettings(def); err != nil {
		return nil, err
	}
	return db.getSettings(userID)
}

func (db *DB) getSettings(userID string) (*AISettings, error) {
	row := db.conn.QueryRow(`SELECT user_id, enabled, tone, length,
		friendliness, humor, formality, enthusiasm, instructions,
		min_sentiment, min_word_count, exclude_spam, require_question,
		banned_words, required_words,
		auto_enabled, auto_delay_seconds, auto_max_per_content, auto_new_only, auto_skip_replied,
		model, max_tokens, temperature,
		plan, total_replies, period_replies, period_start, success_rate, avg_latency_ms, updated_at
		FROM ai_settings WHERE user_id = ?`, userID)

	s, err := scanSettings(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) insertSettings(s *AISettings) error {
	_, err := db.conn.Exec(`INSERT INTO ai_settings (user_id, enabled, tone, length,
		friendliness, humor, formality, enthusiasm, instructions,
		min_sentiment, min_word_count, exclude_spam, require_question,
		banned_words, required_words,
		auto_enabled, auto_delay_seconds, auto_max_per_content, auto_new_only, auto_skip_replied,
		model, max_tokens, temperature,
		plan, total_replies, period_replies, period_start, success_rate, avg_latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.UserID, boolToInt(s.Enabled), s.Tone, s.Length,
		s.Friendliness, s.Humor, s.Formality, s.Enthusiasm, s.Instructions,
		s.MinSentiment, s.MinWordCount, boolToInt(s.ExcludeSpam), boolToInt(s.RequireQuestion),
		encodeWords(s.BannedWords), encodeWords(s.RequiredWords),
		boolToInt(s.AutoEnabled), s.AutoDelaySeconds, s.AutoMaxPerContent,
		boolToInt(s.AutoNewOnly), boolToInt(s.AutoSkipReplied),
		s.Model, s.MaxTokens, s.Temperature,
		s.Plan, s.TotalReplies, s.PeriodReplies, s.PeriodStart, s.SuccessRate, s.AvgLatencyMs)
	return err
}

// UpdateSettings writes the full settings row back. Callers must hold a
// freshly read row; updates are read-modify-write to avoid lost writes when
// the sweep and an interactive request race.
func (db *DB) UpdateSettings(s *AISettings) error {
	_, err := db.conn.Exec(`UPDATE ai_settings SET enabled = ?, tone = ?, length = ?,
		friendliness = ?, humor = ?, formality = ?, enthusiasm = ?, instructions = ?,
		min_sentiment = ?, min_word_count = ?, exclude_spam = ?, require_question = ?,
		banned_words = ?, required_words = ?,
		auto_enabled = ?, auto_delay_seconds = ?, auto_max_per_content = ?, auto_new_only = ?, auto_skip_replied = ?,
		model = ?, max_tokens = ?, temperature = ?,
		plan = ?, total_replies = ?, period_replies = ?, period_start = ?, success_rate = ?, avg_latency_ms = ?,
		updated_at = datetime('now')
		WHERE user_id = ?`,
		boolToInt(s.Enabled), s.Tone, s.Length,
		s.Friendliness, s.Humor, s.Formality, s.Enthusiasm, s.Instructions,
		s.MinSentiment, s.MinWordCount, boolToInt(s.ExcludeSpam), boolToInt(s.RequireQuestion),
		encodeWords(s.BannedWords), encodeWords(s.RequiredWords),
		boolToInt(s.AutoEnabled), s.AutoDelaySeconds, s.AutoMaxPerContent,
		boolToInt(s.AutoNewOnly), boolToInt(s.AutoSkipReplied),
		s.Model, s.MaxTokens, s.Temperature,
		s.Plan, s.TotalReplies, s.PeriodReplies, s.PeriodStart, s.SuccessRate, s.AvgLatencyMs,
		s.UserID)
	return err
}

// ListAutoUsers returns settings rows with both the master switch and
// automatic mode enabled, the eligibility set for a sweep.
func (db *DB) ListAutoUsers() ([]AISettings, error) {
	rows, err := db.conn.Query(`SELECT user_id, enabled, tone, length,
		friendliness, humor, formality, enthusiasm, instructions,
		min_sentiment, min_word_count, exclude_spam, require_question,
		banned_words, required_words,
		auto_enabled, auto_delay_seconds, auto_max_per_content, auto_new_only, auto_skip_replied,
		model, max_tokens, temperature,
		plan, total_replies, period_replies, period_start, success_rate, avg_latency_ms, updated_at
		FROM ai_settings WHERE enabled = 1 AND auto_enabled = 1 ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AISettings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettings(row rowScanner) (*AISettings, error) {
	var s AISettings
	var enabled, excludeSpam, requireQuestion, autoEnabled, autoNewOnly, autoSkipReplied int
	var banned, required sql.NullString
	err := row.Scan(&s.UserID, &enabled, &s.Tone, &s.Length,
		&s.Friendliness, &s.Humor, &s.Formality, &s.Enthusiasm, &s.Instructions,
		&s.MinSentiment, &s.MinWordCount, &excludeSpam, &requireQuestion,
		&banned, &required,
		&autoEnabled, &s.AutoDelaySeconds, &s.AutoMaxPerContent, &autoNewOnly, &autoSkipReplied,
		&s.Model, &s.MaxTokens, &s.Temperature,
		&s.Plan, &s.TotalReplies, &s.PeriodReplies, &s.PeriodStart, &s.SuccessRate, &s.AvgLatencyMs, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Enabled = enabled != 0
	s.ExcludeSpam = excludeSpam != 0
	s.RequireQuestion = requireQuestion != 0
	s.AutoEnabled = autoEnabled != 0
	s.AutoNewOnly = autoNewOnly != 0
	s.AutoSkipReplied = autoSkipReplied != 0
	s.BannedWords = decodeWords(banned)
	s.RequiredWords = decodeWords(required)
	return &s, nil
}

// ApplySettingsPatch merges a set of named setting changes into s. Only a
// fixed set of keys is permitted; unknown keys are rejected rather than
// silently written, and values are range-checked here instead of in the
// storage layer.
func ApplySettingsPatch(s *AISettings, patch map[string]any) error {
	for key, raw := range patch {
		if err := applySetting(s, key, raw); err != nil {
			return err
		}
	}
	return nil
}

func applySetting(s *AISettings, key string, raw any) error {
	switch key {
	case "enabled":
		return setBool(&s.Enabled, key, raw)
	case "tone":
		v, err := toString(key, raw)
		if err != nil {
			return err
		}
		switch v {
		case "friendly", "professional", "casual", "humorous":
			s.Tone = v
			return nil
		}
		return fmt.Errorf("setting %q: unknown tone %q", key, v)
	case "length":
		v, err := toString(key, raw)
		if err != nil {
			return err
		}
		switch v {
		case "short", "medium", "long":
			s.Length = v
			return nil
		}
		return fmt.Errorf("setting %q: unknown length %q", key, v)
	case "friendliness":
		return setTrait(&s.Friendliness, key, raw)
	case "humor":
		return setTrait(&s.Humor, key, raw)
	case "formality":
		return setTrait(&s.Formality, key, raw)
	case "enthusiasm":
		return setTrait(&s.Enthusiasm, key, raw)
	case "instructions":
		v, err := toString(key, raw)
		if err != nil {
			return err
		}
		if len(v) > 500 {
			return fmt.Errorf("setting %q: too long (%d chars, max 500)", key, len(v))
		}
		s.Instructions = v
		return nil
	case "min_sentiment":
		v, err := toFloat(key, raw)
		if err != nil {
			return err
		}
		if v < -1 || v > 1 {
			return fmt.Errorf("setting %q: must be in [-1, 1], got %g", key, v)
		}
		s.MinSentiment = v
		return nil
	case "min_word_count":
		return setNonNegInt(&s.MinWordCount, key, raw)
	case "exclude_spam":
		return setBool(&s.ExcludeSpam, key, raw)
	case "require_question":
		return setBool(&s.RequireQuestion, key, raw)
	case "banned_words":
		return setWords(&s.BannedWords, key, raw)
	case "required_words":
		return setWords(&s.RequiredWords, key, raw)
	case "auto_enabled":
		return setBool(&s.AutoEnabled, key, raw)
	case "auto_delay_seconds":
		return setNonNegInt(&s.AutoDelaySeconds, key, raw)
	case "auto_max_per_content":
		return setNonNegInt(&s.AutoMaxPerContent, key, raw)
	case "auto_new_only":
		return setBool(&s.AutoNewOnly, key, raw)
	case "auto_skip_replied":
		return setBool(&s.AutoSkipReplied, key, raw)
	case "model":
		v, err := toString(key, raw)
		if err != nil {
			return err
		}
		s.Model = v
		return nil
	case "max_tokens":
		v, err := toInt(key, raw)
		if err != nil {
			return err
		}
		if v < 1 || v > 4000 {
			return fmt.Errorf("setting %q: must be in [1, 4000], got %d", key, v)
		}
		s.MaxTokens = v
		return nil
	case "temperature":
		v, err := toFloat(key, raw)
		if err != nil {
			return err
		}
		if v < 0 || v > 2 {
			return fmt.Errorf("setting %q: must be in [0, 2], got %g", key, v)
		}
		s.Temperature = v
		return nil
	}
	return fmt.Errorf("unknown setting %q", key)
}

func setBool(dst *bool, key string, raw any) error {
	switch v := raw.(type) {
	case bool:
		*dst = v
		return nil
	case string:
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			*dst = true
			return nil
		case "false", "0", "no", "off":
			*dst = false
			return nil
		}
	}
	return fmt.Errorf("setting %q: expected boolean, got %v", key, raw)
}

func setTrait(dst *int, key string, raw any) error {
	v, err := toInt(key, raw)
	if err != nil {
		return err
	}
	if v < 1 || v > 10 {
		return fmt.Errorf("setting %q: must be in [1, 10], got %d", key, v)
	}
	*dst = v
	return nil
}

func setNonNegInt(dst *int, key string, raw any) error {
	v, err := toInt(key, raw)
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("setting %q: must not be negative, got %d", key, v)
	}
	*dst = v
	return nil
}

func setWords(dst *[]string, key string, raw any) error {
	switch v := raw.(type) {
	case []string:
		*dst = v
		return nil
	case []any:
		var words []string
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("setting %q: expected list of strings", key)
			}
			words = append(words, s)
		}
		*dst = words
		return nil
	case string:
		// Comma-separated form from the CLI.
		var words []string
		for _, w := range strings.Split(v, ",") {
			if w = strings.TrimSpace(w); w != "" {
				words = append(words, w)
			}
		}
		*dst = words
		return nil
	}
	return fmt.Errorf("setting %q: expected list of strings", key)
}

func toString(key string, raw any) (string, error) {
	if s, ok := raw.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("setting %q: expected string, got %v", key, raw)
}

func toInt(key string, raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("setting %q: expected integer, got %v", key, raw)
}

func toFloat(key string, raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("setting %q: expected number, got %v", key, raw)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeWords(words []string) *string {
	if len(words) == 0 {
		return nil
	}
	data, err := json.Marshal(words)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

func decodeWords(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var words []string
	if err := json.Unmarshal([]byte(raw.String), &words); err != nil {
		return nil
	}
	return words
}

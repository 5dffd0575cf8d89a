// Package transcript extracts, caches and enriches content transcripts.
// Extraction is the expensive step, so every result, including "this
// content has no transcript", is cached permanently.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/avesohel/replypilot/internal/analyze"
	"github.com/avesohel/replypilot/internal/database"
	"github.com/avesohel/replypilot/internal/llm"
	"github.com/avesohel/replypilot/internal/platform"
	"github.com/avesohel/replypilot/internal/semindex"
)

// maxTranscriptChars caps stored transcripts at roughly 4000 model tokens.
const maxTranscriptChars = 16000

// Store serves transcripts from the database, extracting and enriching on
// first request.
type Store struct {
	db       *database.DB
	api      platform.API
	provider llm.Provider
	index    *semindex.Index
	model    string
	lang     string
}

// New creates a store. provider and index may be nil; enrichment then
// degrades to what the local analyzer alone can derive.
func New(db *database.DB, api platform.API, provider llm.Provider, index *semindex.Index, model, lang string) *Store {
	if lang == "" {
		lang = "en"
	}
	return &Store{db: db, api: api, provider: provider, index: index, model: model, lang: lang}
}

// GetOrExtract returns the transcript for a piece of content, extracting
// it on a cache miss. A cached failure returns platform.ErrNoTranscript
// without touching the platform again.
func (s *Store) GetOrExtract(ctx context.Context, ch *database.Channel, contentID string) (*database.Transcript, error) {
	cached, err := s.db.GetTranscript(contentID)
	if err != nil {
		return nil, fmt.Errorf("loading transcript %s: %w", contentID, err)
	}
	if cached != nil {
		switch cached.Status {
		case database.TranscriptCompleted:
			return cached, nil
		case database.TranscriptFailed:
			return nil, fmt.Errorf("transcript %s: %w", contentID, platform.ErrNoTranscript)
		}
		// processing: a previous attempt died mid-way; fall through and redo
	}

	return s.extract(ctx, ch, contentID)
}

func (s *Store) extract(ctx context.Context, ch *database.Channel, contentID string) (*database.Transcript, error) {
	if err := s.db.InsertTranscript(contentID, ch.UserID, ch.PlatformID); err != nil {
		return nil, fmt.Errorf("creating transcript record: %w", err)
	}

	details, err := s.api.GetContentDetails(ctx, ch, contentID)
	if err != nil {
		return nil, fmt.Errorf("fetching content details for %s: %w", contentID, err)
	}

	segments, err := s.api.FetchTranscript(ctx, ch, contentID, s.lang)
	if err != nil {
		if errors.Is(err, platform.ErrNoTranscript) {
			// permanent: cache the failure so the sweep never re-fetches
			if mErr := s.db.MarkTranscriptFailed(contentID, "no transcript available"); mErr != nil {
				log.Printf("Failed to record transcript failure for %s: %v", contentID, mErr)
			}
			return nil, fmt.Errorf("transcript %s: %w", contentID, platform.ErrNoTranscript)
		}
		return nil, fmt.Errorf("fetching transcript for %s: %w", contentID, err)
	}

	text, dbSegments := assemble(segments)
	wordCount := len(strings.Fields(text))

	if err := s.db.MarkTranscriptExtracted(contentID, details.Title, details.Description,
		details.DurationSeconds, text, dbSegments, wordCount); err != nil {
		return nil, fmt.Errorf("storing transcript %s: %w", contentID, err)
	}

	summary, topics := s.summarize(ctx, details.Title, text)
	sentiment, keywords := deriveLocal(text)

	if s.index != nil {
		// embed title, summary and transcript together
		parts := []string{details.Title}
		if summary != nil {
			parts = append(parts, *summary)
		}
		parts = append(parts, text)
		indexText := strings.Join(parts, "\n")
		if err := s.index.Upsert(ctx, ch.UserID, contentID, details.Title, deref(summary), topics, indexText); err != nil {
			log.Printf("Indexing failed for %s: %v", contentID, err)
		}
	}

	if err := s.db.MarkTranscriptCompleted(contentID, summary, topics, sentiment, keywords); err != nil {
		return nil, fmt.Errorf("completing transcript %s: %w", contentID, err)
	}

	log.Printf("Extracted transcript for %s: %d words", contentID, wordCount)
	return s.db.GetTranscript(contentID)
}

// Delete removes a stored transcript together with its index entry. The
// next request for the content re-extracts from scratch.
func (s *Store) Delete(userID, contentID string) error {
	if err := s.db.DeleteEmbedding(userID, contentID); err != nil {
		return fmt.Errorf("removing index entry for %s: %w", contentID, err)
	}
	if err := s.db.DeleteTranscript(contentID); err != nil {
		return fmt.Errorf("removing transcript %s: %w", contentID, err)
	}
	return nil
}

// summarize asks the model for a summary and topic list. Any failure
// returns empty results; enrichment never blocks extraction.
func (s *Store) summarize(ctx context.Context, title, text string) (*string, []string) {
	if s.provider == nil || text == "" {
		return nil, nil
	}

	prompt := fmt.Sprintf(`Summarize this video transcript in 2-3 sentences and list its main topics.

Title: %s

Transcript:
%s

Respond with JSON only: {"summary": "...", "topics": ["...", "..."]}`, title, text)

	completion, err := s.provider.Complete(ctx, llm.CompletionRequest{
		System:      "You summarize video transcripts. Respond with valid JSON only.",
		Prompt:      prompt,
		Model:       s.model,
		MaxTokens:   400,
		Temperature: 0.3,
	})
	if err != nil {
		log.Printf("Transcript summarization failed: %v", err)
		return nil, nil
	}

	parsed := llm.ParseJSONResponse(completion.Text)
	if parsed == nil {
		log.Printf("Transcript summarization returned non-JSON output")
		return nil, nil
	}

	summary := llm.GetString(parsed, "summary", "")
	topics := llm.GetStringList(parsed, "topics")
	if summary == "" {
		return nil, topics
	}
	return &summary, topics
}

func deriveLocal(text string) (*float64, []string) {
	if text == "" {
		return nil, nil
	}
	a := analyze.Analyze(text)
	return &a.Sentiment, a.Keywords
}

var annotationRe = regexp.MustCompile(`[\[(][^\[\]()]*[\])]`)

// assemble cleans the caption cues and joins them into one text, keeping
// the cleaned per-segment timing for storage. Bracketed annotations like
// [Music] or (applause) are stripped.
func assemble(segments []platform.TranscriptSegment) (string, []database.Segment) {
	var parts []string
	var kept []database.Segment
	total := 0

	for _, seg := range segments {
		text := cleanSegment(seg.Text)
		if text == "" {
			continue
		}
		if total+len(text) > maxTranscriptChars {
			break
		}
		total += len(text) + 1
		parts = append(parts, text)
		kept = append(kept, database.Segment{
			Text:       text,
			OffsetMs:   seg.OffsetMs,
			DurationMs: seg.DurationMs,
		})
	}
	return strings.Join(parts, " "), kept
}

func cleanSegment(text string) string {
	text = annotationRe.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

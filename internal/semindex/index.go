package semindex

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/avesohel/replypilot/internal/database"
	"github.com/avesohel/replypilot/internal/llm"
)

// DefaultThreshold is the minimum cosine similarity for a match.
const DefaultThreshold = 0.75

// DefaultTopK is the number of matches returned when the caller does not
// specify one.
const DefaultTopK = 3

// Match is one indexed content entry that scored above the threshold.
type Match struct {
	ContentID string
	Title     string
	Summary   string
	Topics    []string
	Score     float64
}

// Stats describes the index size.
type Stats struct {
	Entries int
	Owners  int
}

// Index stores per-user content vectors and answers similarity queries.
// When no embedder is configured it degrades to a no-op: upserts and
// queries succeed with empty results, and the pipeline runs without
// semantic context.
type Index struct {
	db        *database.DB
	embedder  llm.Embedder
	model     string
	threshold float64
}

// New creates an index. embedder may be nil for degraded mode.
func New(db *database.DB, embedder llm.Embedder, model string, threshold float64) *Index {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Index{db: db, embedder: embedder, model: model, threshold: threshold}
}

// Enabled reports whether the index has an embedder behind it.
func (ix *Index) Enabled() bool {
	return ix.embedder != nil
}

// Upsert embeds the text and stores the vector keyed by (user, content).
// Re-indexing the same content replaces the previous vector.
func (ix *Index) Upsert(ctx context.Context, userID, contentID, title, summary string, topics []string, text string) error {
	if ix.embedder == nil {
		return nil
	}
	if text == "" {
		return fmt.Errorf("nothing to index for content %s", contentID)
	}

	vecs, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embedding content %s: %w", contentID, err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("embedding content %s: got %d vectors", contentID, len(vecs))
	}

	return ix.db.UpsertEmbedding(&database.EmbeddingRow{
		UserID:     userID,
		ContentID:  contentID,
		Vector:     EncodeVector(vecs[0]),
		Dimensions: len(vecs[0]),
		Model:      ix.model,
		Title:      title,
		Summary:    summary,
		Topics:     topics,
	})
}

// Query embeds the text and returns the user's entries scoring at or above
// the threshold, best first, at most topK. Vectors of a different dimension
// (from an older embedding model) score 0 and fall out naturally.
func (ix *Index) Query(ctx context.Context, userID, text string, topK int) ([]Match, error) {
	if ix.embedder == nil || text == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vecs, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors", len(vecs))
	}
	query := vecs[0]

	rows, err := ix.db.GetEmbeddings(userID)
	if err != nil {
		return nil, fmt.Errorf("loading index for user %s: %w", userID, err)
	}

	var matches []Match
	for _, row := range rows {
		vec, err := DecodeVector(row.Vector)
		if err != nil {
			log.Printf("Skipping corrupt vector for %s/%s: %v", row.UserID, row.ContentID, err)
			continue
		}
		score := CosineSimilarity(query, vec)
		if score < ix.threshold {
			continue
		}
		matches = append(matches, Match{
			ContentID: row.ContentID,
			Title:     row.Title,
			Summary:   row.Summary,
			Topics:    row.Topics,
			Score:     score,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes one entry. Missing entries are not an error.
func (ix *Index) Delete(userID, contentID string) error {
	return ix.db.DeleteEmbedding(userID, contentID)
}

// Stats reports the index size across all owners.
func (ix *Index) Stats() (Stats, error) {
	total, owners, err := ix.db.CountEmbeddings()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Entries: total, Owners: owners}, nil
}

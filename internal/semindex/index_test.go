package semindex

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/avesohel/replypilot/internal/database"
)

// fakeEmbedder maps known texts to fixed vectors so similarity is
// predictable without a model.
type fakeEmbedder struct {
	vectors map[string][]float64
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.calls++
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float64{0, 0, 1}
		}
	}
	return out, nil
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float64{0.1, -2.5, 3.75, 0}
	got, err := DecodeVector(EncodeVector(vec))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got) != len(vec) {
		t.Fatalf("dimension mismatch: got %d want %d", len(got), len(vec))
	}
	for i := range vec {
		if math.Abs(got[i]-vec[i]) > 1e-6 {
			t.Errorf("value %d: got %f want %f", i, got[i], vec[i])
		}
	}
}

func TestDecodeVectorRejectsGarbage(t *testing.T) {
	if _, err := DecodeVector([]byte{1, 2}); err == nil {
		t.Error("expected error for truncated header")
	}
	blob := EncodeVector([]float64{1, 2, 3})
	if _, err := DecodeVector(blob[:len(blob)-2]); err == nil {
		t.Error("expected error for truncated body")
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float64{1, 0, 0}
	if got := CosineSimilarity(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors: got %f want 1", got)
	}
	if got := CosineSimilarity(a, []float64{0, 1, 0}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: got %f want 0", got)
	}
	if got := CosineSimilarity(a, []float64{1, 0}); got != 0 {
		t.Errorf("mismatched dimensions: got %f want 0", got)
	}
	if got := CosineSimilarity(a, []float64{0, 0, 0}); got != 0 {
		t.Errorf("zero vector: got %f want 0", got)
	}
}

func TestQueryReturnsAboveThreshold(t *testing.T) {
	db := openTestDB(t)
	emb := &fakeEmbedder{vectors: map[string][]float64{
		"camera gear":  {1, 0, 0},
		"close match":  {0.95, 0.3, 0},
		"far match":    {0, 1, 0},
		"lens review?": {1, 0.05, 0},
	}}
	ix := New(db, emb, "test-model", 0.75)

	ctx := context.Background()
	for _, c := range []struct{ id, text string }{
		{"vid-1", "camera gear"},
		{"vid-2", "close match"},
		{"vid-3", "far match"},
	} {
		if err := ix.Upsert(ctx, "user-1", c.id, "Title "+c.id, "", nil, c.text); err != nil {
			t.Fatalf("upsert %s failed: %v", c.id, err)
		}
	}

	matches, err := ix.Query(ctx, "user-1", "lens review?", 3)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches above threshold, got %d", len(matches))
	}
	if matches[0].ContentID != "vid-1" {
		t.Errorf("expected best match first, got %s", matches[0].ContentID)
	}
	if matches[0].Score < matches[1].Score {
		t.Error("matches not sorted by score")
	}
}

func TestQueryTopKLimit(t *testing.T) {
	db := openTestDB(t)
	emb := &fakeEmbedder{vectors: map[string][]float64{"q": {1, 0, 0}}}
	ix := New(db, emb, "test-model", 0.5)

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		emb.vectors[id] = []float64{1, 0.01, 0}
		if err := ix.Upsert(ctx, "user-1", id, id, "", nil, id); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	matches, err := ix.Query(ctx, "user-1", "q", 2)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected topK to cap results at 2, got %d", len(matches))
	}
}

func TestQueryOwnerIsolation(t *testing.T) {
	db := openTestDB(t)
	emb := &fakeEmbedder{vectors: map[string][]float64{"shared text": {1, 0, 0}}}
	ix := New(db, emb, "test-model", 0.5)

	ctx := context.Background()
	if err := ix.Upsert(ctx, "alice", "vid-a", "A", "", nil, "shared text"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	matches, err := ix.Query(ctx, "bob", "shared text", 3)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("bob should not see alice's entries, got %d matches", len(matches))
	}
}

func TestDisabledIndexIsNoOp(t *testing.T) {
	db := openTestDB(t)
	ix := New(db, nil, "", 0.75)

	if ix.Enabled() {
		t.Error("index without embedder should report disabled")
	}
	ctx := context.Background()
	if err := ix.Upsert(ctx, "user-1", "vid-1", "T", "", nil, "some text"); err != nil {
		t.Errorf("disabled upsert should succeed: %v", err)
	}
	matches, err := ix.Query(ctx, "user-1", "some text", 3)
	if err != nil || matches != nil {
		t.Errorf("disabled query should return nothing: %v %v", matches, err)
	}
}

func TestDeleteAndStats(t *testing.T) {
	db := openTestDB(t)
	emb := &fakeEmbedder{vectors: map[string][]float64{}}
	ix := New(db, emb, "test-model", 0.75)

	ctx := context.Background()
	if err := ix.Upsert(ctx, "alice", "vid-1", "A", "", nil, "text one"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := ix.Upsert(ctx, "bob", "vid-2", "B", "", nil, "text two"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	stats, err := ix.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Entries != 2 || stats.Owners != 2 {
		t.Errorf("expected 2 entries / 2 owners, got %+v", stats)
	}

	if err := ix.Delete("alice", "vid-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	stats, _ = ix.Stats()
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry after delete, got %d", stats.Entries)
	}
	// deleting a missing entry is fine
	if err := ix.Delete("alice", "vid-1"); err != nil {
		t.Errorf("double delete should not error: %v", err)
	}
}

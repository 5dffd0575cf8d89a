// Package pipeline runs one comment through the full reply flow: filter,
// context assembly, generation, scoring, quota accounting, logging and
// posting. The scheduler and the interactive test path both enter here,
// so the reply log reads the same regardless of who triggered the reply.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/avesohel/replypilot/internal/analyze"
	"github.com/avesohel/replypilot/internal/compose"
	"github.com/avesohel/replypilot/internal/database"
	"github.com/avesohel/replypilot/internal/filter"
	"github.com/avesohel/replypilot/internal/platform"
	"github.com/avesohel/replypilot/internal/semindex"
	"github.com/avesohel/replypilot/internal/transcript"
	"github.com/avesohel/replypilot/internal/usage"
)

// Input is one comment to process. Post false runs everything except the
// platform post; the log entry then stays in 'generated'.
type Input struct {
	Channel *database.Channel
	Comment platform.Comment
	Post    bool
}

// Outcome is the structured result of one pipeline run. QuotaExhausted
// marks a skip caused by the user's monthly limit, so callers can stop
// feeding that user's comments in.
type Outcome struct {
	Status         string
	SkipReason     string
	ReplyText      string
	Confidence     float64
	Generated      bool
	QuotaExhausted bool
	LogID          int64
}

// Pipeline wires the reply stages together.
type Pipeline struct {
	db          *database.DB
	api         platform.API
	transcripts *transcript.Store
	index       *semindex.Index
	composer    *compose.Composer
	accountant  *usage.Accountant
	topK        int
}

// New creates a pipeline. index may be nil when no embedder is configured.
func New(db *database.DB, api platform.API, transcripts *transcript.Store,
	index *semindex.Index, composer *compose.Composer, accountant *usage.Accountant, topK int) *Pipeline {
	if topK <= 0 {
		topK = semindex.DefaultTopK
	}
	return &Pipeline{
		db:          db,
		api:         api,
		transcripts: transcripts,
		index:       index,
		composer:    composer,
		accountant:  accountant,
		topK:        topK,
	}
}

// ProcessComment runs one comment through the pipeline. Only internal
// failures (database errors, mostly) return an error; filtered comments,
// exhausted quotas and failed posts all come back as an Outcome.
func (p *Pipeline) ProcessComment(ctx context.Context, in Input) (*Outcome, error) {
	ch := in.Channel
	c := in.Comment

	settings, err := p.db.GetOrCreateSettings(ch.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading settings for %s: %w", ch.UserID, err)
	}

	if in.Post {
		replied, err := p.db.HasSentReply(ch.UserID, c.ID)
		if err != nil {
			return nil, fmt.Errorf("checking reply history: %w", err)
		}
		if replied {
			return &Outcome{Status: database.ReplySkipped, SkipReason: "already replied"}, nil
		}
	}

	analysis := analyze.Analyze(c.Text)

	if d := filter.ShouldReply(settings, analysis, c.Text); !d.Allow {
		return p.skip(ch, c, d.Reason)
	}

	ok, reason, err := p.accountant.CanGenerate(ch.UserID)
	if err != nil {
		return nil, fmt.Errorf("checking quota: %w", err)
	}
	if !ok {
		out, err := p.skip(ch, c, reason)
		if err != nil {
			return nil, err
		}
		out.QuotaExhausted = true
		return out, nil
	}

	// Context is best effort: a missing transcript or a down embedder
	// degrades the reply, it does not block it.
	tr, err := p.transcripts.GetOrExtract(ctx, ch, c.ContentID)
	if err != nil {
		if !errors.Is(err, platform.ErrNoTranscript) {
			log.Printf("Transcript unavailable for %s: %v", c.ContentID, err)
		}
		tr = nil
	}

	var matches []semindex.Match
	if p.index != nil {
		matches, err = p.index.Query(ctx, ch.UserID, c.Text, p.topK)
		if err != nil {
			log.Printf("Semantic query failed for %s: %v", c.ID, err)
			matches = nil
		}
	}

	result := p.composer.Compose(ctx, compose.Request{
		Settings:    settings,
		CommentText: c.Text,
		Author:      c.AuthorName,
		Likes:       c.Likes,
		Analysis:    analysis,
		Transcript:  tr,
		Matches:     matches,
	})
	confidence := compose.Score(result.Generated, true, len(matches), result.StopReason == "stop")

	status := database.ReplyGenerated
	if in.Post {
		status = database.ReplyPending
	}
	entry := &database.ReplyLogEntry{
		UserID:             ch.UserID,
		ContentID:          c.ContentID,
		CommentID:          c.ID,
		CommentText:        c.Text,
		CommentAuthor:      c.AuthorName,
		CommentPublishedAt: strPtr(c.PublishedAt.Format("2006-01-02 15:04:05")),
		ReplyText:          result.Text,
		Status:             status,
		Model:              strPtr(result.Model),
		TokensUsed:         result.TokensUsed,
		LatencyMs:          int(result.Latency.Milliseconds()),
		Confidence:         confidence,
		// canned fallbacks are still machine-authored; Generated only
		// records whether the model produced the text
		AIGenerated: true,
	}
	logID, err := p.db.InsertReplyLog(entry)
	if err != nil {
		return nil, fmt.Errorf("logging reply: %w", err)
	}

	out := &Outcome{
		Status:     status,
		ReplyText:  result.Text,
		Confidence: confidence,
		Generated:  result.Generated,
		LogID:      logID,
	}
	if !in.Post {
		return out, nil
	}

	replyID, err := p.api.PostReply(ctx, ch, c.ID, result.Text)
	if err != nil {
		if mErr := p.db.MarkReplyFailed(logID, err.Error()); mErr != nil {
			log.Printf("Failed to mark reply %d failed: %v", logID, mErr)
		}
		if rErr := p.accountant.RecordOutcome(ch.UserID, false, result.Latency); rErr != nil {
			log.Printf("Failed to record outcome for %s: %v", ch.UserID, rErr)
		}
		out.Status = database.ReplyFailed
		// auth errors must bubble so the sweep can refresh the token
		if errors.Is(err, platform.ErrAuthExpired) {
			return out, err
		}
		log.Printf("Posting reply to %s failed: %v", c.ID, err)
		return out, nil
	}

	if err := p.db.MarkReplySent(logID, replyID); err != nil {
		return nil, fmt.Errorf("marking reply sent: %w", err)
	}
	if err := p.accountant.Charge(ch.UserID); err != nil {
		log.Printf("Failed to charge quota for %s: %v", ch.UserID, err)
	}
	if err := p.accountant.RecordOutcome(ch.UserID, true, result.Latency); err != nil {
		log.Printf("Failed to record outcome for %s: %v", ch.UserID, err)
	}

	out.Status = database.ReplySent
	log.Printf("Replied to comment %s on %s (confidence %.2f)", c.ID, c.ContentID, confidence)
	return out, nil
}

func (p *Pipeline) skip(ch *database.Channel, c platform.Comment, reason string) (*Outcome, error) {
	id, err := p.db.InsertReplyLog(&database.ReplyLogEntry{
		UserID:             ch.UserID,
		ContentID:          c.ContentID,
		CommentID:          c.ID,
		CommentText:        c.Text,
		CommentAuthor:      c.AuthorName,
		CommentPublishedAt: strPtr(c.PublishedAt.Format("2006-01-02 15:04:05")),
		Status:             database.ReplySkipped,
		SkipReason:         strPtr(reason),
	})
	if err != nil {
		return nil, fmt.Errorf("logging skip: %w", err)
	}
	return &Outcome{Status: database.ReplySkipped, SkipReason: reason, LogID: id}, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Package compose turns a comment plus its content context into a reply.
// Generation goes through the configured LLM provider; when the model is
// unreachable or returns garbage, a canned reply in the user's tone is
// substituted so the pipeline always has something to post.
package compose

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/avesohel/replypilot/internal/analyze"
	"github.com/avesohel/replypilot/internal/database"
	"github.com/avesohel/replypilot/internal/llm"
	"github.com/avesohel/replypilot/internal/semindex"
)

const (
	maxTitleChars      = 200
	maxTranscriptChars = 500
)

// Request carries everything the composer can draw on. Transcript and
// Matches are optional context; a reply is produced even with both empty.
type Request struct {
	Settings    *database.AISettings
	CommentText string
	Author      string
	Likes       int
	Analysis    analyze.Analysis
	Transcript  *database.Transcript
	Matches     []semindex.Match
}

// Result is the composed reply. Generated is false when the canned
// fallback was used.
type Result struct {
	Text       string
	Model      string
	TokensUsed int
	StopReason string
	Latency    time.Duration
	Generated  bool
}

// Composer generates replies through an LLM provider.
type Composer struct {
	provider llm.Provider
	model    string
}

// New creates a composer. provider may be nil, in which case every reply
// is a fallback.
func New(provider llm.Provider, model string) *Composer {
	return &Composer{provider: provider, model: model}
}

// Compose produces a reply. It never returns an error: generation
// failures degrade to a tone-appropriate canned reply.
func (c *Composer) Compose(ctx context.Context, req Request) Result {
	if c.provider == nil {
		return fallbackResult(req)
	}

	model := c.model
	if req.Settings.Model != "" {
		model = req.Settings.Model
	}

	completion, err := c.provider.Complete(ctx, llm.CompletionRequest{
		System:      systemPrompt(req.Settings),
		Prompt:      userPrompt(req),
		Model:       model,
		MaxTokens:   req.Settings.MaxTokens,
		Temperature: req.Settings.Temperature,
	})
	if err != nil {
		log.Printf("Reply generation failed, using fallback: %v", err)
		return fallbackResult(req)
	}

	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return fallbackResult(req)
	}

	return Result{
		Text:       text,
		Model:      completion.Model,
		TokensUsed: completion.TokensUsed,
		StopReason: completion.StopReason,
		Latency:    completion.Latency,
		Generated:  true,
	}
}

func systemPrompt(s *database.AISettings) string {
	var b strings.Builder
	b.WriteString("You are replying to comments on a creator's video content, writing as the creator. ")
	fmt.Fprintf(&b, "Tone: %s. Reply length: %s.\n", s.Tone, s.Length)
	fmt.Fprintf(&b, "Personality (1-10): friendliness %d, humor %d, formality %d, enthusiasm %d.\n",
		s.Friendliness, s.Humor, s.Formality, s.Enthusiasm)
	b.WriteString("Write a single reply, no preamble, no quotation marks around it. ")
	b.WriteString("Never promise anything on the creator's behalf. Never include links.")
	if s.Instructions != "" {
		b.WriteString("\nAdditional instructions: ")
		b.WriteString(s.Instructions)
	}
	return b.String()
}

func userPrompt(req Request) string {
	var b strings.Builder

	if t := req.Transcript; t != nil {
		fmt.Fprintf(&b, "Video: %s\n", truncate(t.Title, maxTitleChars))
		if t.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", truncate(t.Description, maxTitleChars))
		}
		if t.Summary != nil && *t.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", *t.Summary)
		}
		if len(t.Topics) > 0 {
			fmt.Fprintf(&b, "Topics: %s\n", strings.Join(t.Topics, ", "))
		}
		if t.RawText != "" {
			fmt.Fprintf(&b, "Transcript excerpt: %s\n", truncate(t.RawText, maxTranscriptChars))
		}
	}

	if len(req.Matches) > 0 {
		b.WriteString("Related videos from the same creator:\n")
		for _, m := range req.Matches {
			fmt.Fprintf(&b, "- %s", m.Title)
			if m.Summary != "" {
				fmt.Fprintf(&b, ": %s", truncate(m.Summary, maxTitleChars))
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\nComment from %s", req.Author)
	if req.Likes > 0 {
		fmt.Fprintf(&b, " (%d likes)", req.Likes)
	}
	fmt.Fprintf(&b, ", sentiment %.1f:\n%s\n\nWrite the reply.", req.Analysis.Sentiment, req.CommentText)
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

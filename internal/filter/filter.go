// Package filter decides whether a comment deserves a generated reply,
// based on the user's filter settings and the lexical analysis of the
// comment. It runs before any model call so rejected comments cost nothing.
package filter

import (
	"fmt"
	"strings"

	"github.com/avesohel/replypilot/internal/analyze"
	"github.com/avesohel/replypilot/internal/database"
)

// Decision is the outcome of a filter pass. Reason is set only when the
// comment is rejected, in a form suitable for the reply log.
type Decision struct {
	Allow  bool
	Reason string
}

func allow() Decision        { return Decision{Allow: true} }
func skip(r string) Decision { return Decision{Reason: r} }

// ShouldReply evaluates the rules in a fixed order: spam, sentiment,
// word count, question requirement, banned words, required words. The
// first failing rule decides; its reason names what tripped.
func ShouldReply(s *database.AISettings, a analyze.Analysis, text string) Decision {
	if s.ExcludeSpam && a.IsSpam {
		return skip("spam")
	}
	if a.Sentiment < s.MinSentiment {
		return skip(fmt.Sprintf("sentiment %.2f below minimum %.2f", a.Sentiment, s.MinSentiment))
	}
	if a.WordCount < s.MinWordCount {
		return skip(fmt.Sprintf("only %d words, minimum %d", a.WordCount, s.MinWordCount))
	}
	if s.RequireQuestion && !a.IsQuestion {
		return skip("not a question")
	}

	lower := strings.ToLower(text)
	for _, w := range s.BannedWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && strings.Contains(lower, w) {
			return skip(fmt.Sprintf("contains banned word %q", w))
		}
	}

	if len(s.RequiredWords) > 0 {
		found := false
		for _, w := range s.RequiredWords {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" && strings.Contains(lower, w) {
				found = true
				break
			}
		}
		if !found {
			return skip("missing required words")
		}
	}

	return allow()
}

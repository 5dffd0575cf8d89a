package analyze

import (
	"strings"
)

// Analysis is the local lexical read of a piece of text. It is computed
// without any external call so filtering can run before generation spends
// quota.
type Analysis struct {
	Sentiment  float64 // -1..1
	IsSpam     bool
	IsQuestion bool
	WordCount  int
	Keywords   []string
}

var positiveWords = map[string]bool{
	"love": true, "great": true, "awesome": true, "amazing": true, "excellent": true,
	"good": true, "nice": true, "best": true, "fantastic": true, "wonderful": true,
	"helpful": true, "thanks": true, "thank": true, "perfect": true, "brilliant": true,
	"beautiful": true, "enjoyed": true, "useful": true, "informative": true, "clear": true,
	"favorite": true, "impressive": true, "inspiring": true, "fun": true, "cool": true,
}

var negativeWords = map[string]bool{
	"hate": true, "terrible": true, "awful": true, "bad": true, "worst": true,
	"boring": true, "useless": true, "wrong": true, "waste": true, "horrible": true,
	"disappointing": true, "disappointed": true, "stupid": true, "annoying": true,
	"misleading": true, "clickbait": true, "fake": true, "scam": true, "garbage": true,
	"confusing": true, "poor": true, "dislike": true, "trash": true,
}

var spamPhrases = []string{
	"subscribe to my", "check out my channel", "visit my channel", "free followers",
	"buy followers", "buy cheap", "make money fast", "work from home", "click here",
	"giveaway winner", "dm me", "whatsapp me", "promo code", "crypto investment",
	"earn $", "sub4sub", "sub 4 sub", "follow for follow", "onlyfans",
}

var questionStarters = []string{
	"what", "when", "where", "which", "who", "why", "how",
	"can", "could", "would", "should", "do", "does", "did",
	"is", "are", "will", "have", "has", "any",
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "shall": true,
	"to": true, "of": true, "in": true, "for": true, "on": true, "with": true, "at": true,
	"by": true, "from": true, "as": true, "into": true, "through": true, "during": true,
	"before": true, "after": true, "above": true, "below": true, "and": true, "but": true,
	"or": true, "nor": true, "not": true, "so": true, "yet": true, "both": true,
	"either": true, "neither": true, "each": true, "every": true, "all": true, "any": true,
	"few": true, "more": true, "most": true, "other": true, "some": true, "such": true,
	"no": true, "only": true, "own": true, "same": true, "than": true, "too": true,
	"very": true, "just": true, "how": true, "what": true, "which": true, "who": true,
	"whom": true, "this": true, "that": true, "these": true, "those": true, "it": true,
	"its": true, "about": true, "up": true, "out": true, "one": true, "two": true,
	"also": true, "like": true, "get": true, "you": true, "your": true, "i": true,
	"my": true, "me": true, "we": true, "they": true, "he": true, "she": true,
}

// Analyze computes the lexical analysis of a text. Pure function, no I/O.
func Analyze(text string) Analysis {
	words := tokenize(text)

	return Analysis{
		Sentiment:  sentimentScore(words),
		IsSpam:     looksLikeSpam(text, words),
		IsQuestion: looksLikeQuestion(text, words),
		WordCount:  len(words),
		Keywords:   extractKeywords(words, 10),
	}
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, w := range fields {
		w = strings.Trim(w, ".,!?:;\"'()-[]*")
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// sentimentScore is the hit balance over the lexicons, scaled by hit density
// so one "great" in a long rant doesn't read as glowing.
func sentimentScore(words []string) float64 {
	if len(words) == 0 {
		return 0
	}

	var pos, neg int
	for _, w := range words {
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}

	hits := pos + neg
	if hits == 0 {
		return 0
	}

	score := float64(pos-neg) / float64(hits)
	density := float64(hits) / float64(len(words))
	if density > 1 {
		density = 1
	}
	// Keep a floor so any hit registers, then scale toward full strength.
	weight := 0.5 + 0.5*density*4
	if weight > 1 {
		weight = 1
	}
	return score * weight
}

func looksLikeSpam(text string, words []string) bool {
	lower := strings.ToLower(text)

	for _, phrase := range spamPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	// Link-heavy comments are near-always promotion.
	links := strings.Count(lower, "http://") + strings.Count(lower, "https://") + strings.Count(lower, "www.")
	if links >= 2 {
		return true
	}
	if links >= 1 && len(words) <= 5 {
		return true
	}

	// Shouting plus repetition: "FIRST FIRST FIRST!!!"
	if len(words) >= 3 {
		seen := make(map[string]int)
		for _, w := range words {
			seen[w]++
			if seen[w] >= 4 {
				return true
			}
		}
	}

	return false
}

func looksLikeQuestion(text string, words []string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	if len(words) == 0 {
		return false
	}
	for _, starter := range questionStarters {
		if words[0] == starter {
			return true
		}
	}
	return false
}

// extractKeywords returns up to max distinct non-stop-words ordered by
// frequency then first occurrence.
func extractKeywords(words []string, max int) []string {
	counts := make(map[string]int)
	order := make(map[string]int)
	for i, w := range words {
		if len(w) <= 2 || stopWords[w] {
			continue
		}
		if _, ok := counts[w]; !ok {
			order[w] = i
		}
		counts[w]++
	}

	var keywords []string
	for len(keywords) < max {
		best := ""
		for w, c := range counts {
			if best == "" {
				best = w
				continue
			}
			if c > counts[best] || (c == counts[best] && order[w] < order[best]) {
				best = w
			}
		}
		if best == "" {
			break
		}
		keywords = append(keywords, best)
		delete(counts, best)
	}
	return keywords
}

package server

import (
	"fmt"
	"sort"
	"strings"

	"github.com/avesohel/replypilot/internal/database"
)

// BuildDigest renders the last N days of reply activity as markdown. The
// dashboard converts it to HTML; the same text is usable as-is in a chat
// or email summary.
func BuildDigest(db *database.DB, days int) (string, error) {
	logs, err := db.GetLogsSince(days)
	if err != nil {
		return "", fmt.Errorf("loading activity: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Reply activity, last %d days\n\n", days)

	if len(logs) == 0 {
		b.WriteString("No activity recorded.\n")
		return b.String(), nil
	}

	type dayCounts struct {
		sent, skipped, failed int
	}
	byDay := map[string]*dayCounts{}
	sentByContent := map[string]int{}
	var totalSent, totalSkipped, totalFailed int

	for _, e := range logs {
		day := "unknown"
		if e.CreatedAt != nil && len(*e.CreatedAt) >= 10 {
			day = (*e.CreatedAt)[:10]
		}
		dc := byDay[day]
		if dc == nil {
			dc = &dayCounts{}
			byDay[day] = dc
		}
		switch e.Status {
		case database.ReplySent:
			dc.sent++
			totalSent++
			sentByContent[e.ContentID]++
		case database.ReplySkipped:
			dc.skipped++
			totalSkipped++
		case database.ReplyFailed:
			dc.failed++
			totalFailed++
		}
	}

	fmt.Fprintf(&b, "**%d sent**, %d skipped, %d failed across %d processed comments.\n\n",
		totalSent, totalSkipped, totalFailed, len(logs))

	b.WriteString("## By day\n\n")
	b.WriteString("| Day | Sent | Skipped | Failed |\n|---|---|---|---|\n")
	dayKeys := make([]string, 0, len(byDay))
	for d := range byDay {
		dayKeys = append(dayKeys, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dayKeys)))
	for _, d := range dayKeys {
		dc := byDay[d]
		fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", d, dc.sent, dc.skipped, dc.failed)
	}

	if len(sentByContent) > 0 {
		b.WriteString("\n## Most replied content\n\n")
		type contentCount struct {
			id    string
			count int
		}
		top := make([]contentCount, 0, len(sentByContent))
		for id, n := range sentByContent {
			top = append(top, contentCount{id, n})
		}
		sort.Slice(top, func(i, j int) bool {
			if top[i].count != top[j].count {
				return top[i].count > top[j].count
			}
			return top[i].id < top[j].id
		})
		if len(top) > 5 {
			top = top[:5]
		}
		for _, c := range top {
			title := c.id
			if tr, err := db.GetTranscript(c.id); err == nil && tr != nil && tr.Title != "" {
				title = tr.Title
			}
			fmt.Fprintf(&b, "- **%s** — %d replies\n", title, c.count)
		}
	}

	return b.String(), nil
}

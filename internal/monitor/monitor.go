// Package monitor periodically sweeps connected channels for fresh
// comments and hands them to the reply pipeline. One sweep runs at a
// time; a tick that fires while a sweep is still going is dropped.
package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avesohel/replypilot/internal/database"
	"github.com/avesohel/replypilot/internal/pipeline"
	"github.com/avesohel/replypilot/internal/platform"
	"github.com/avesohel/replypilot/internal/usage"
)

// Options hold the sweep timing knobs. ReplyDelay and MaxPerContent are
// fallbacks for users whose settings leave them unset.
type Options struct {
	Interval      time.Duration
	ContentWindow time.Duration
	CommentWindow time.Duration
	ReplyDelay    time.Duration
	MaxPerContent int
}

// SweepStats summarizes one sweep.
type SweepStats struct {
	Users    int
	Channels int
	Comments int
	Sent     int
	Skipped  int
	Failed   int
	Errors   int
}

// Monitor drives the scheduled reply loop.
type Monitor struct {
	db         *database.DB
	api        platform.API
	pipe       *pipeline.Pipeline
	accountant *usage.Accountant
	opts       Options

	mu    sync.Mutex
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a monitor. Zero option fields get sane defaults.
func New(db *database.DB, api platform.API, pipe *pipeline.Pipeline, accountant *usage.Accountant, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	if opts.ContentWindow <= 0 {
		opts.ContentWindow = 7 * 24 * time.Hour
	}
	if opts.CommentWindow <= 0 {
		opts.CommentWindow = 24 * time.Hour
	}
	return &Monitor{
		db:         db,
		api:        api,
		pipe:       pipe,
		accountant: accountant,
		opts:       opts,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Start sweeps immediately, then on every tick until the context is
// cancelled.
func (m *Monitor) Start(ctx context.Context) {
	log.Printf("Monitor started: sweeping every %s", m.opts.Interval)
	m.Sweep(ctx)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep processes every auto-enabled user once. It returns false without
// doing anything when another sweep is still running.
func (m *Monitor) Sweep(ctx context.Context) (SweepStats, bool) {
	if !m.mu.TryLock() {
		log.Println("Sweep still running, skipping this tick")
		return SweepStats{}, false
	}
	defer m.mu.Unlock()

	sweepID := uuid.NewString()[:8]
	start := m.now()
	var stats SweepStats

	users, err := m.db.ListAutoUsers()
	if err != nil {
		log.Printf("[%s] Listing auto users failed: %v", sweepID, err)
		stats.Errors++
		return stats, true
	}

	for i := range users {
		if ctx.Err() != nil {
			break
		}
		m.sweepUser(ctx, sweepID, &users[i], &stats)
		stats.Users++
	}

	log.Printf("[%s] Sweep complete in %s: %d users, %d channels, %d comments, %d sent, %d skipped, %d failed, %d errors",
		sweepID, m.now().Sub(start).Round(time.Millisecond), stats.Users, stats.Channels,
		stats.Comments, stats.Sent, stats.Skipped, stats.Failed, stats.Errors)
	return stats, true
}

func (m *Monitor) sweepUser(ctx context.Context, sweepID string, s *database.AISettings, stats *SweepStats) {
	ok, reason, err := m.accountant.CanGenerate(s.UserID)
	if err != nil {
		log.Printf("[%s] Quota check failed for %s: %v", sweepID, s.UserID, err)
		stats.Errors++
		return
	}
	if !ok {
		log.Printf("[%s] Skipping user %s: %s", sweepID, s.UserID, reason)
		return
	}

	channels, err := m.db.ListActiveChannels(s.UserID)
	if err != nil {
		log.Printf("[%s] Listing channels for %s failed: %v", sweepID, s.UserID, err)
		stats.Errors++
		return
	}

	for i := range channels {
		if ctx.Err() != nil {
			return
		}
		exhausted := m.sweepChannel(ctx, sweepID, s, &channels[i], stats)
		stats.Channels++
		if exhausted {
			log.Printf("[%s] User %s hit their limit mid-sweep", sweepID, s.UserID)
			return
		}
	}
}

// sweepChannel walks one channel's recent content. Expired credentials are
// refreshed at most once per channel per sweep; if the refresh fails, or
// auth expires again after it, the channel is abandoned until next sweep.
// Returns true when the user's quota ran out, which ends the whole user.
func (m *Monitor) sweepChannel(ctx context.Context, sweepID string, s *database.AISettings, ch *database.Channel, stats *SweepStats) bool {
	refreshed := false
	retriable := func(err error) bool {
		if !errors.Is(err, platform.ErrAuthExpired) || refreshed {
			return false
		}
		refreshed = true
		if rErr := m.refreshChannel(ctx, ch); rErr != nil {
			log.Printf("[%s] Token refresh failed for channel %s: %v", sweepID, ch.PlatformID, rErr)
			return false
		}
		log.Printf("[%s] Refreshed token for channel %s", sweepID, ch.PlatformID)
		return true
	}

	contentSince := m.now().Add(-m.opts.ContentWindow)
	if s.AutoNewOnly {
		// only content published since the channel was connected
		if t := connectedAt(ch); t.After(contentSince) {
			contentSince = t
		}
	}
	contents, err := m.api.ListRecentContent(ctx, ch, contentSince)
	if err != nil && retriable(err) {
		contents, err = m.api.ListRecentContent(ctx, ch, contentSince)
	}
	if err != nil {
		log.Printf("[%s] Abandoning channel %s: %v", sweepID, ch.PlatformID, err)
		stats.Errors++
		return false
	}

	for _, content := range contents {
		if ctx.Err() != nil {
			return false
		}

		maxReplies := s.AutoMaxPerContent
		if maxReplies <= 0 {
			maxReplies = m.opts.MaxPerContent
		}
		sent, err := m.db.CountSentForContent(s.UserID, content.ID)
		if err != nil {
			stats.Errors++
			continue
		}
		if maxReplies > 0 && sent >= maxReplies {
			continue
		}

		commentSince := m.now().Add(-m.opts.CommentWindow)
		comments, err := m.api.ListComments(ctx, ch, content.ID, commentSince)
		if err != nil && retriable(err) {
			comments, err = m.api.ListComments(ctx, ch, content.ID, commentSince)
		}
		if err != nil {
			log.Printf("[%s] Abandoning channel %s: %v", sweepID, ch.PlatformID, err)
			stats.Errors++
			return false
		}

		for _, comment := range comments {
			if ctx.Err() != nil {
				return false
			}
			if comment.AuthorChannelID == ch.PlatformID {
				continue // the creator's own comments
			}
			if s.AutoSkipReplied {
				replied, err := m.db.HasSentReply(s.UserID, comment.ID)
				if err != nil {
					stats.Errors++
					continue
				}
				if replied {
					continue
				}
			}
			if maxReplies > 0 && sent >= maxReplies {
				break
			}

			stats.Comments++
			out, err := m.pipe.ProcessComment(ctx, pipeline.Input{Channel: ch, Comment: comment, Post: true})
			if err != nil {
				if errors.Is(err, platform.ErrAuthExpired) {
					if !retriable(err) {
						log.Printf("[%s] Abandoning channel %s: %v", sweepID, ch.PlatformID, err)
						stats.Errors++
						return false
					}
					out, err = m.pipe.ProcessComment(ctx, pipeline.Input{Channel: ch, Comment: comment, Post: true})
				}
				if err != nil {
					log.Printf("[%s] Pipeline error on comment %s: %v", sweepID, comment.ID, err)
					stats.Errors++
					continue
				}
			}

			switch out.Status {
			case database.ReplySent:
				stats.Sent++
				sent++
				delay := time.Duration(s.AutoDelaySeconds) * time.Second
				if delay <= 0 {
					delay = m.opts.ReplyDelay
				}
				if delay > 0 {
					m.sleep(ctx, delay)
				}
			case database.ReplyFailed:
				stats.Failed++
			case database.ReplySkipped:
				stats.Skipped++
				// a quota skip ends the whole user, not just this comment
				if out.QuotaExhausted {
					return true
				}
			}
		}
	}
	return false
}

func (m *Monitor) refreshChannel(ctx context.Context, ch *database.Channel) error {
	cred, err := m.api.RefreshCredential(ctx, ch.RefreshToken)
	if err != nil {
		return err
	}

	ch.AccessToken = cred.AccessToken
	if cred.RefreshToken != "" {
		ch.RefreshToken = cred.RefreshToken
	}
	var expiresAt *string
	if !cred.ExpiresAt.IsZero() {
		v := cred.ExpiresAt.UTC().Format("2006-01-02 15:04:05")
		expiresAt = &v
	}
	return m.db.UpdateChannelTokens(ch.ID, ch.AccessToken, ch.RefreshToken, expiresAt)
}

// connectedAt parses the channel's connect timestamp; zero when absent
// or unparseable.
func connectedAt(ch *database.Channel) time.Time {
	if ch.ConnectedAt == nil {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", *ch.ConnectedAt, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

package platform

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/avesohel/replypilot/internal/database"
)

const maxFeedItems = 50

// listFromFeed discovers recent content through the channel's public
// RSS/Atom feed. It needs no credentials and burns no API quota, but the
// feed carries no comment counts, so CommentCount is 0 for every item and
// the sweep has to list comments to find out.
func (c *Client) listFromFeed(ctx context.Context, ch *database.Channel, since time.Time) ([]Content, error) {
	if c.FeedBaseURL == "" {
		return nil, fmt.Errorf("no feed URL configured for fallback")
	}

	feedURL := c.FeedBaseURL
	if strings.Contains(feedURL, "?") {
		feedURL += "&channel_id=" + ch.PlatformID
	} else {
		feedURL += "?channel_id=" + ch.PlatformID
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing channel feed: %w", err)
	}

	var items []Content
	for _, item := range feed.Items {
		if len(items) >= maxFeedItems {
			break
		}
		published := feedItemTime(item)
		if published.IsZero() || !published.After(since) {
			continue
		}
		items = append(items, Content{
			ID:          feedItemID(item),
			Title:       item.Title,
			Description: item.Description,
			PublishedAt: published,
		})
	}
	log.Printf("Feed fallback found %d items for channel %s", len(items), ch.PlatformID)
	return items, nil
}

func feedItemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// feedItemID extracts the platform content id. Video feeds use guid values
// like "yt:video:abc123"; plain guids and links pass through as-is.
func feedItemID(item *gofeed.Item) string {
	if item.GUID != "" {
		parts := strings.Split(item.GUID, ":")
		return parts[len(parts)-1]
	}
	return item.Link
}

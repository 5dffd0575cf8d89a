package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/avesohel/replypilot/internal/config"
	"github.com/avesohel/replypilot/internal/database"
)

// Client is the HTTP implementation of API against the platform's data
// API. Exported URL fields let tests point it at a local server.
type Client struct {
	APIBaseURL  string
	FeedBaseURL string
	TokenURL    string

	apiKey       string
	clientID     string
	clientSecret string
	client       *http.Client
}

// NewClient builds a client from config, resolving credentials from the
// configured environment variables.
func NewClient(cfg config.Platform) *Client {
	return &Client{
		APIBaseURL:   strings.TrimRight(cfg.APIBaseURL, "/"),
		FeedBaseURL:  cfg.FeedBaseURL,
		TokenURL:     cfg.TokenURL,
		apiKey:       os.Getenv(cfg.APIKeyEnv),
		clientID:     os.Getenv(cfg.ClientIDEnv),
		clientSecret: os.Getenv(cfg.ClientSecretEnv),
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// ListRecentContent lists the channel's content published after since,
// newest first. On data-API failures other than expired auth it falls
// back to the channel's public feed, which costs no API quota but carries
// no comment counts.
func (c *Client) ListRecentContent(ctx context.Context, ch *database.Channel, since time.Time) ([]Content, error) {
	params := url.Values{
		"channelId":      {ch.PlatformID},
		"publishedAfter": {since.UTC().Format(time.RFC3339)},
		"order":          {"date"},
	}

	var result struct {
		Items []struct {
			ID           string `json:"id"`
			Title        string `json:"title"`
			Description  string `json:"description"`
			PublishedAt  string `json:"publishedAt"`
			CommentCount int    `json:"commentCount"`
		} `json:"items"`
	}
	err := c.getJSON(ctx, ch, "/videos", params, &result)
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			return nil, err
		}
		log.Printf("Data API listing failed (%v), falling back to feed for channel %s", err, ch.PlatformID)
		return c.listFromFeed(ctx, ch, since)
	}

	items := make([]Content, 0, len(result.Items))
	for _, it := range result.Items {
		published, _ := time.Parse(time.RFC3339, it.PublishedAt)
		if !published.After(since) {
			continue
		}
		items = append(items, Content{
			ID:           it.ID,
			Title:        it.Title,
			Description:  it.Description,
			PublishedAt:  published,
			CommentCount: it.CommentCount,
		})
	}
	return items, nil
}

// ListComments lists top-level comments on one piece of content published
// after since.
func (c *Client) ListComments(ctx context.Context, ch *database.Channel, contentID string, since time.Time) ([]Comment, error) {
	params := url.Values{
		"videoId":        {contentID},
		"publishedAfter": {since.UTC().Format(time.RFC3339)},
	}

	var result struct {
		Items []struct {
			ID              string `json:"id"`
			AuthorChannelID string `json:"authorChannelId"`
			AuthorName      string `json:"authorName"`
			Text            string `json:"text"`
			LikeCount       int    `json:"likeCount"`
			PublishedAt     string `json:"publishedAt"`
		} `json:"items"`
	}
	if err := c.getJSON(ctx, ch, "/comments", params, &result); err != nil {
		return nil, err
	}

	comments := make([]Comment, 0, len(result.Items))
	for _, it := range result.Items {
		published, _ := time.Parse(time.RFC3339, it.PublishedAt)
		comments = append(comments, Comment{
			ID:              it.ID,
			ContentID:       contentID,
			AuthorChannelID: it.AuthorChannelID,
			AuthorName:      it.AuthorName,
			Text:            it.Text,
			Likes:           it.LikeCount,
			PublishedAt:     published,
		})
	}
	return comments, nil
}

// GetContentDetails fetches full metadata for one piece of content.
func (c *Client) GetContentDetails(ctx context.Context, ch *database.Channel, contentID string) (*ContentDetails, error) {
	var result struct {
		ID              string `json:"id"`
		Title           string `json:"title"`
		Description     string `json:"description"`
		DurationSeconds int    `json:"durationSeconds"`
	}
	if err := c.getJSON(ctx, ch, "/videos/"+url.PathEscape(contentID), nil, &result); err != nil {
		return nil, err
	}
	return &ContentDetails{
		ID:              result.ID,
		Title:           result.Title,
		Description:     result.Description,
		DurationSeconds: result.DurationSeconds,
	}, nil
}

// PostReply posts text as a reply to a comment and returns the new
// reply's id.
func (c *Client) PostReply(ctx context.Context, ch *database.Channel, parentCommentID, text string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}

	endpoint := c.APIBaseURL + "/comments/" + url.PathEscape(parentCommentID) + "/replies"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, ch)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting reply: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding reply response: %w", err)
	}
	return result.ID, nil
}

// FetchTranscript downloads the caption track for one piece of content.
// A 404 means the content has no captions in that language; that maps to
// ErrNoTranscript so callers can record it as permanent.
func (c *Client) FetchTranscript(ctx context.Context, ch *database.Channel, contentID, lang string) ([]TranscriptSegment, error) {
	params := url.Values{"lang": {lang}}

	endpoint := c.APIBaseURL + "/captions/" + url.PathEscape(contentID) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req, ch)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoTranscript
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result struct {
		Segments []TranscriptSegment `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	if len(result.Segments) == 0 {
		return nil, ErrNoTranscript
	}
	return result.Segments, nil
}

// RefreshCredential trades a refresh token for a fresh access token.
func (c *Client) RefreshCredential(ctx context.Context, refreshToken string) (*Credential, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		// invalid_grant: refresh token itself revoked
		return nil, ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access token")
	}

	return &Credential{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, ch *database.Channel, path string, params url.Values, out any) error {
	endpoint := c.APIBaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req, ch)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request, ch *database.Channel) {
	if ch != nil && ch.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+ch.AccessToken)
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuthExpired
	case resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		// The platform reports expired grants as 403 with a token reason.
		if bytes.Contains(body, []byte("authError")) || bytes.Contains(body, []byte("invalid_grant")) {
			return ErrAuthExpired
		}
		return fmt.Errorf("HTTP 403: %s", strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("HTTP %d from platform API", resp.StatusCode)
	}
}

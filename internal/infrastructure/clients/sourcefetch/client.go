package sourcefetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client fetches document feeds from registered knowledge sources. Every
// source URL serves the same feed format regardless of publisher.
type Client interface {
	FetchFeed(ctx context.Context, feedURL string) (*SourceFeed, error)
	FetchFeedSince(ctx context.Context, feedURL string, since time.Time) (*SourceFeed, error)
	CheckHealth(ctx context.Context, feedURL string) (*FeedHealthResponse, error)
}

type HTTPClient struct {
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// SourceFeed is the document payload a source URL serves.
type SourceFeed struct {
	Documents []FeedDocument `json:"documents"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  *FeedMetadata  `json:"metadata"`
}

type FeedMetadata struct {
	Publisher string `json:"publisher"`
	Count     int    `json:"count"`
	Total     int    `json:"total"`
	HasMore   bool   `json:"hasMore,omitempty"`
}

// FeedDocument is one advisory document in a feed. Image documents carry
// a caption in Content and the asset reference in ImageURL.
type FeedDocument struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Modality    string    `json:"modality"`
	Content     string    `json:"content"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Topics      []string  `json:"topics"`
	Crops       []string  `json:"crops,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

type FeedHealthResponse struct {
	Healthy   bool      `json:"healthy"`
	LastBuilt time.Time `json:"lastBuilt,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func NewClient() *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *HTTPClient) FetchFeed(ctx context.Context, feedURL string) (*SourceFeed, error) {
	out := &SourceFeed{}
	if err := c.doJSON(ctx, http.MethodGet, feedURL, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFeedSince asks the source for documents published after since.
// Sources that ignore the parameter return the full feed, which the
// indexer handles because chunk ids are stable.
func (c *HTTPClient) FetchFeedSince(ctx context.Context, feedURL string, since time.Time) (*SourceFeed, error) {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url %q: %w", feedURL, err)
	}

	query := parsed.Query()
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}
	parsed.RawQuery = query.Encode()

	out := &SourceFeed{}
	if err := c.doJSON(ctx, http.MethodGet, parsed.String(), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CheckHealth(ctx context.Context, feedURL string) (*FeedHealthResponse, error) {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url %q: %w", feedURL, err)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/health"

	out := &FeedHealthResponse{}
	if err := c.doJSON(ctx, http.MethodGet, parsed.String(), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body io.Reader, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("source feed returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}

	return nil
}

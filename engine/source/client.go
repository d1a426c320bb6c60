package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/WessleyAI/storyscout/engine/domain"
)

// Client fetches listings from Reddit's public JSON API.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Client. Zero fields in cfg fall back to DefaultConfig.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = def.PageSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
	}
}

// FetchRecent pages through /r/{category}/new.json, following the "after" cursor
// until the listing runs out or the consumer stops.
func (c *Client) FetchRecent(ctx context.Context, category string) iter.Seq2[domain.RawPost, error] {
	return func(yield func(domain.RawPost, error) bool) {
		after := ""
		for {
			resp, err := c.fetchPage(ctx, category, after)
			if err != nil {
				yield(domain.RawPost{}, domain.SourceError("r/"+category, err))
				return
			}
			for _, child := range resp.Data.Children {
				// Pinned posts sit at the top of /new regardless of age and
				// would break the newest-first ordering.
				if child.Kind != "t3" || child.Data.Stickied {
					continue
				}
				if !yield(c.toRawPost(child.Data), nil) {
					return
				}
			}
			after = resp.Data.After
			if after == "" || len(resp.Data.Children) == 0 {
				return
			}
		}
	}
}

func (c *Client) toRawPost(d listingData) domain.RawPost {
	link := d.URL
	if link == "" && d.Permalink != "" {
		link = c.cfg.BaseURL + d.Permalink
	}
	sec := int64(d.CreatedUTC)
	nsec := int64((d.CreatedUTC - float64(sec)) * float64(time.Second))
	return domain.RawPost{
		ID:           d.ID,
		Title:        d.Title,
		Body:         d.SelfText,
		URL:          link,
		CreatedAt:    time.Unix(sec, nsec).UTC(),
		CommentCount: d.NumComments,
	}
}

func (c *Client) pageURL(category, after string) string {
	q := url.Values{
		"limit":    {strconv.Itoa(c.cfg.PageSize)},
		"raw_json": {"1"},
	}
	if after != "" {
		q.Set("after", after)
	}
	return fmt.Sprintf("%s/r/%s/new.json?%s", c.cfg.BaseURL, url.PathEscape(category), q.Encode())
}

func (c *Client) fetchPage(ctx context.Context, category, after string) (*listingResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := c.pageURL(category, after)
	body, err := c.httpGet(ctx, u)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp listingResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return &resp, nil
}

func (c *Client) httpGet(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, fmt.Errorf("http %d from %s", resp.StatusCode, u)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u)
	}
	return resp.Body, nil
}

// Package source enumerates the newest posts of a forum category from Reddit's
// public JSON listing API.
package source

import (
	"context"
	"iter"
	"time"

	"github.com/WessleyAI/storyscout/engine/domain"
)

// Source produces the posts of a category.
//
// Ordering contract: posts are yielded strictly newest-first, as the upstream
// listing delivers them. The sequence is unbounded; consumers stop by breaking
// out of the range loop, which also stops further upstream requests. A fetch
// failure is yielded once as an error wrapping domain.ErrSourceUnavailable and
// ends the sequence. Nothing is retried.
type Source interface {
	FetchRecent(ctx context.Context, category string) iter.Seq2[domain.RawPost, error]
}

// Config controls the Reddit client.
type Config struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	PageSize  int           `yaml:"page_size"`
	Interval  time.Duration `yaml:"interval"` // minimum spacing between page requests
	Timeout   time.Duration `yaml:"timeout"`
}

// DefaultConfig returns settings that stay under Reddit's unauthenticated limits.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://www.reddit.com",
		UserAgent: "storyscout/1.0 (recent post scorer)",
		PageSize:  100,
		Interval:  2 * time.Second,
		Timeout:   30 * time.Second,
	}
}

// Reddit JSON API response types

type listingResponse struct {
	Data struct {
		Children []listingChild `json:"children"`
		After    string         `json:"after"`
	} `json:"data"`
}

type listingChild struct {
	Kind string      `json:"kind"`
	Data listingData `json:"data"`
}

type listingData struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
}

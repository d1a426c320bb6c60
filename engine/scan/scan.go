// Package scan applies the recency window and engagement filter to a post stream
// and scores the survivors.
//
// Every function here relies on the input being ordered newest-first, as
// source.Source guarantees. Window uses that ordering to stop consuming the
// stream at the first post outside the window: every later post is older and
// would fail the same test, so no count limit is needed.
package scan

import (
	"iter"
	"slices"
	"time"

	"github.com/WessleyAI/storyscout/engine/domain"
	"github.com/WessleyAI/storyscout/engine/score"
)

// Options controls a scan.
type Options struct {
	MaxAgeHours float64
	MinComments int
	Now         time.Time
}

// Window yields posts until the first one whose rounded age exceeds maxAgeHours,
// then stops pulling from posts. An error from posts is yielded and ends the sequence.
func Window(posts iter.Seq2[domain.RawPost, error], maxAgeHours float64, now time.Time) iter.Seq2[domain.RawPost, error] {
	return func(yield func(domain.RawPost, error) bool) {
		for p, err := range posts {
			if err != nil {
				yield(domain.RawPost{}, err)
				return
			}
			if score.AgeHours(now, p.CreatedAt) > maxAgeHours {
				return
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Qualify drops posts below minComments and posts too new to score, and yields
// the rest as scored posts in input order. A low-engagement post does not end
// the sequence.
func Qualify(posts iter.Seq[domain.RawPost], minComments int, now time.Time) iter.Seq[domain.Post] {
	return func(yield func(domain.Post) bool) {
		for p := range posts {
			if post, ok := qualify(p, minComments, now); ok {
				if !yield(post) {
					return
				}
			}
		}
	}
}

func qualify(p domain.RawPost, minComments int, now time.Time) (domain.Post, bool) {
	if p.CommentCount < minComments {
		return domain.Post{}, false
	}
	age := score.AgeHours(now, p.CreatedAt)
	s, ok := score.Score(p.CommentCount, age)
	if !ok {
		return domain.Post{}, false
	}
	return domain.Post{
		ID:           p.ID,
		Title:        p.Title,
		Body:         p.Body,
		URL:          p.URL,
		CommentCount: p.CommentCount,
		AgeHours:     age,
		Score:        s,
	}, true
}

// Collect drains a windowed stream. On error it returns the posts read so far
// together with the error.
func Collect(posts iter.Seq2[domain.RawPost, error]) ([]domain.RawPost, error) {
	var out []domain.RawPost
	for p, err := range posts {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Qualified scores an already windowed batch, dropping posts that do not qualify.
func Qualified(raw []domain.RawPost, minComments int, now time.Time) []domain.Post {
	return slices.Collect(Qualify(slices.Values(raw), minComments, now))
}

// Scan is the one-shot form of a run's filter step: Collect over Window, then
// Qualified. On a source error it returns the posts scored so far with the error.
func Scan(posts iter.Seq2[domain.RawPost, error], opts Options) ([]domain.Post, error) {
	raw, err := Collect(Window(posts, opts.MaxAgeHours, opts.Now))
	return Qualified(raw, opts.MinComments, opts.Now), err
}

// Stream adapts an in-memory, newest-first slice of raw posts to a source stream.
func Stream(posts []domain.RawPost) iter.Seq2[domain.RawPost, error] {
	return func(yield func(domain.RawPost, error) bool) {
		for _, p := range posts {
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Package query answers questions about the persisted batch: the single best post
// and the posts at or above a score threshold.
package query

import (
	"cmp"
	"context"
	"slices"

	"github.com/WessleyAI/storyscout/engine/domain"
	"github.com/WessleyAI/storyscout/engine/store"
)

// Engine reads from a Store. It holds no state of its own.
type Engine struct {
	store store.Store
}

// New returns an Engine over s.
func New(s store.Store) *Engine {
	return &Engine{store: s}
}

// Best returns the post with the highest score. Ties go to the post ScanAll
// returned first. ok is false when the store is empty.
func (e *Engine) Best(ctx context.Context) (best domain.Post, ok bool, err error) {
	posts, err := e.store.ScanAll(ctx)
	if err != nil {
		return domain.Post{}, false, err
	}
	for _, p := range posts {
		if !ok || p.Score > best.Score {
			best, ok = p, true
		}
	}
	return best, ok, nil
}

// MinScore returns every post with score >= threshold, in ScanAll order.
// The result is empty, never nil, when nothing qualifies. Bounds on threshold
// are the caller's concern; see domain.ValidateMinScore.
func (e *Engine) MinScore(ctx context.Context, threshold float64) ([]domain.Post, error) {
	posts, err := e.store.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if p.Score >= threshold {
			out = append(out, p)
		}
	}
	return out, nil
}

// Ranked is MinScore sorted by score descending, then id.
func (e *Engine) Ranked(ctx context.Context, threshold float64) ([]domain.Post, error) {
	posts, err := e.MinScore(ctx, threshold)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(posts, func(a, b domain.Post) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return posts, nil
}

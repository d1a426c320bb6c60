package source

import (
	"iter"
	"log/slog"

	"github.com/WessleyAI/storyscout/engine/domain"
)

// Ordered passes posts through unchanged and logs a warning for every post that
// is newer than the one before it. Consumers that stop early on age rely on the
// newest-first contract; a violation means posts may be missed.
func Ordered(posts iter.Seq2[domain.RawPost, error], log *slog.Logger) iter.Seq2[domain.RawPost, error] {
	if log == nil {
		log = slog.Default()
	}
	return func(yield func(domain.RawPost, error) bool) {
		var prev domain.RawPost
		first := true
		for p, err := range posts {
			if err == nil {
				if !first && p.CreatedAt.After(prev.CreatedAt) {
					log.Warn("source yielded post out of order",
						"id", p.ID,
						"created_at", p.CreatedAt,
						"previous_id", prev.ID,
						"previous_created_at", prev.CreatedAt,
					)
				}
				prev, first = p, false
			}
			if !yield(p, err) {
				return
			}
		}
	}
}

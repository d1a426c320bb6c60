package store

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/WessleyAI/storyscout/engine/domain"
)

// Document field names shared by every backend.
const (
	fieldID       = "id"
	fieldTitle    = "title"
	fieldBody     = "body"
	fieldURL      = "url"
	fieldComments = "comment_count"
	fieldAge      = "age_hours"
	fieldScore    = "score"
)

// toDocument flattens a post into schemaless document properties.
func toDocument(p domain.Post) map[string]any {
	return map[string]any{
		fieldID:       p.ID,
		fieldTitle:    p.Title,
		fieldBody:     p.Body,
		fieldURL:      p.URL,
		fieldComments: int64(p.CommentCount),
		fieldAge:      p.AgeHours,
		fieldScore:    p.Score,
	}
}

// fromDocument coerces schemaless properties back into a Post. Required fields
// that are missing or of the wrong type make the document malformed.
func fromDocument(doc map[string]any) (domain.Post, error) {
	var p domain.Post
	id, ok := doc[fieldID].(string)
	if !ok {
		id, ok = doc["_id"].(string)
	}
	if !ok {
		return p, domain.NewValidationError(fieldID, fmt.Sprint(doc[fieldID]), domain.ErrMalformedDocument)
	}
	p.ID = id
	p.Title = stringProp(doc, fieldTitle)
	p.Body = stringProp(doc, fieldBody)
	p.URL = stringProp(doc, fieldURL)

	comments, ok := number(doc[fieldComments])
	if !ok || comments != math.Trunc(comments) {
		return p, domain.NewValidationError(fieldComments, fmt.Sprint(doc[fieldComments]), domain.ErrMalformedDocument)
	}
	p.CommentCount = int(comments)

	if p.AgeHours, ok = number(doc[fieldAge]); !ok {
		return p, domain.NewValidationError(fieldAge, fmt.Sprint(doc[fieldAge]), domain.ErrMalformedDocument)
	}
	if p.Score, ok = number(doc[fieldScore]); !ok {
		return p, domain.NewValidationError(fieldScore, fmt.Sprint(doc[fieldScore]), domain.ErrMalformedDocument)
	}
	return p, domain.ValidatePost(p)
}

func stringProp(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// decodeAll converts documents into posts, quarantining malformed ones: they are
// logged and left out of the result.
func decodeAll(log *slog.Logger, backend string, docs []map[string]any) []domain.Post {
	posts := make([]domain.Post, 0, len(docs))
	for _, doc := range docs {
		p, err := fromDocument(doc)
		if err != nil {
			log.Warn("skipping malformed document", "backend", backend, "id", p.ID, "err", err)
			continue
		}
		posts = append(posts, p)
	}
	return posts
}

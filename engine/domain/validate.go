package domain

import (
	"math"
	"strconv"
	"strings"
)

// ValidateRunParams checks the caller-supplied run parameters against their bounds.
func ValidateRunParams(p RunParams) error {
	if strings.TrimSpace(p.Category) == "" {
		return NewValidationError("category", p.Category, ErrInvalidParam)
	}
	if p.MaxAgeHours < MinMaxAgeHours || p.MaxAgeHours > MaxMaxAgeHours {
		return NewValidationError("max_age_hours", strconv.Itoa(p.MaxAgeHours), ErrInvalidParam)
	}
	if p.MinComments < MinMinComments || p.MinComments > MaxMinComments {
		return NewValidationError("min_comments", strconv.Itoa(p.MinComments), ErrInvalidParam)
	}
	return nil
}

// ValidateMinScore checks a query threshold against its bounds.
func ValidateMinScore(threshold int) error {
	if threshold < MinScoreThreshold || threshold > MaxScoreThreshold {
		return NewValidationError("min_score", strconv.Itoa(threshold), ErrInvalidParam)
	}
	return nil
}

// ValidatePost checks a post read back from a store. Documents that fail are
// quarantined by the store rather than handed to queries.
func ValidatePost(p Post) error {
	if p.ID == "" {
		return NewValidationError("id", p.ID, ErrMalformedDocument)
	}
	if p.CommentCount < 0 {
		return NewValidationError("comment_count", strconv.Itoa(p.CommentCount), ErrMalformedDocument)
	}
	if !(p.AgeHours > 0) || math.IsInf(p.AgeHours, 0) {
		return NewValidationError("age_hours", strconv.FormatFloat(p.AgeHours, 'f', -1, 64), ErrMalformedDocument)
	}
	if math.IsNaN(p.Score) || math.IsInf(p.Score, 0) || p.Score < 0 {
		return NewValidationError("score", strconv.FormatFloat(p.Score, 'f', -1, 64), ErrMalformedDocument)
	}
	return nil
}

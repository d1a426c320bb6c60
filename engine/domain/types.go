// Package domain defines the post types, run parameters, and validation shared by
// the storyscout engine. It acts as the validation gate at pipeline entry points
// and at the store read boundary.
package domain

import "time"

// RawPost is a post as delivered by the source, before filtering and scoring.
type RawPost struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
	CommentCount int       `json:"comment_count"`
}

// Post is a scored post. Score is always derived from CommentCount and AgeHours
// at scrape time and never set on its own.
type Post struct {
	ID           string  `json:"id" bson:"_id"`
	Title        string  `json:"title" bson:"title"`
	Body         string  `json:"body" bson:"body"`
	URL          string  `json:"url" bson:"url"`
	CommentCount int     `json:"comment_count" bson:"comment_count"`
	AgeHours     float64 `json:"age_hours" bson:"age_hours"`
	Score        float64 `json:"score" bson:"score"`
}

// RunParams are the caller-supplied parameters of one scrape run.
type RunParams struct {
	Category    string `json:"category"`
	MaxAgeHours int    `json:"max_age_hours"`
	MinComments int    `json:"min_comments"`
}

// Bounds for caller-supplied parameters.
const (
	MinMaxAgeHours = 1
	MaxMaxAgeHours = 24

	MinMinComments = 0
	MaxMinComments = 200

	MinScoreThreshold = 1
	MaxScoreThreshold = 1000
)

// Package score computes the virality score of a post: comments per hour of age.
package score

import (
	"strconv"
	"time"
)

// Round1 rounds v to one decimal place. It rounds the exact binary value of v,
// with exact ties going to the even digit, so 0.05 becomes 0.1 and 12.25 becomes 12.2.
func Round1(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// AgeHours returns the hours elapsed between created and now, rounded to one decimal.
func AgeHours(now, created time.Time) float64 {
	return Round1(now.Sub(created).Hours())
}

// Score returns round(comments/ageHours, 1). It reports false when ageHours is not
// positive, which covers posts whose age rounds to 0.0; such posts are not yet
// eligible for scoring.
func Score(comments int, ageHours float64) (float64, bool) {
	if !(ageHours > 0) {
		return 0, false
	}
	return Round1(float64(comments) / ageHours), true
}

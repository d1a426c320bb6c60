package domain

import (
	"errors"
	"math"
	"testing"
)

func TestValidateRunParams_Valid(t *testing.T) {
	cases := []RunParams{
		{Category: "AmItheAsshole", MaxAgeHours: 1, MinComments: 0},
		{Category: "AmItheAsshole", MaxAgeHours: 24, MinComments: 200},
		{Category: "golang", MaxAgeHours: 5, MinComments: 60},
	}
	for _, p := range cases {
		if err := ValidateRunParams(p); err != nil {
			t.Errorf("expected valid for %+v, got %v", p, err)
		}
	}
}

func TestValidateRunParams_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		p     RunParams
		field string
	}{
		{"empty category", RunParams{Category: "  ", MaxAgeHours: 5}, "category"},
		{"age zero", RunParams{Category: "a", MaxAgeHours: 0}, "max_age_hours"},
		{"age too large", RunParams{Category: "a", MaxAgeHours: 25}, "max_age_hours"},
		{"negative comments", RunParams{Category: "a", MaxAgeHours: 5, MinComments: -1}, "min_comments"},
		{"comments too large", RunParams{Category: "a", MaxAgeHours: 5, MinComments: 201}, "min_comments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRunParams(tt.p)
			if !errors.Is(err, ErrInvalidParam) {
				t.Fatalf("expected ErrInvalidParam, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestValidateMinScore(t *testing.T) {
	for _, v := range []int{1, 500, 1000} {
		if err := ValidateMinScore(v); err != nil {
			t.Errorf("expected %d valid, got %v", v, err)
		}
	}
	for _, v := range []int{0, -3, 1001} {
		if err := ValidateMinScore(v); !errors.Is(err, ErrInvalidParam) {
			t.Errorf("expected ErrInvalidParam for %d, got %v", v, err)
		}
	}
}

func TestValidatePost(t *testing.T) {
	good := Post{ID: "abc", Title: "t", CommentCount: 10, AgeHours: 2.5, Score: 4}
	if err := ValidatePost(good); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	bad := []Post{
		{ID: "", CommentCount: 1, AgeHours: 1},
		{ID: "a", CommentCount: -1, AgeHours: 1},
		{ID: "a", CommentCount: 1, AgeHours: 0},
		{ID: "a", CommentCount: 1, AgeHours: math.NaN()},
		{ID: "a", CommentCount: 1, AgeHours: 1, Score: math.Inf(1)},
	}
	for _, p := range bad {
		if err := ValidatePost(p); !errors.Is(err, ErrMalformedDocument) {
			t.Errorf("expected ErrMalformedDocument for %+v, got %v", p, err)
		}
	}
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("min_score", "0", ErrInvalidParam)
	want := `validation: invalid parameter: min_score (value="0")`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestSourceAndPersistenceErrors(t *testing.T) {
	cause := errors.New("boom")
	if err := SourceError("fetch", cause); !errors.Is(err, ErrSourceUnavailable) || !errors.Is(err, cause) {
		t.Errorf("SourceError should wrap both, got %v", err)
	}
	if err := PersistenceError("put", cause); !errors.Is(err, ErrPersistence) || !errors.Is(err, cause) {
		t.Errorf("PersistenceError should wrap both, got %v", err)
	}
}

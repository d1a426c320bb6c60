package scan

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/WessleyAI/storyscout/engine/domain"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func raw(id string, comments int, age time.Duration) domain.RawPost {
	return domain.RawPost{
		ID:           id,
		Title:        "title " + id,
		URL:          "https://www.reddit.com/r/test/comments/" + id,
		CreatedAt:    now.Add(-age),
		CommentCount: comments,
	}
}

func ids(posts []domain.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

// countingStream records how many posts were pulled from it.
func countingStream(posts []domain.RawPost, pulled *int) func(func(domain.RawPost, error) bool) {
	return func(yield func(domain.RawPost, error) bool) {
		for _, p := range posts {
			*pulled++
			if !yield(p, nil) {
				return
			}
		}
	}
}

func TestScan_Scenario(t *testing.T) {
	in := []domain.RawPost{
		raw("b", 100, 2*time.Hour),
		raw("a", 60, 5*time.Hour),
	}
	got, err := Scan(Stream(in), Options{MaxAgeHours: 24, MinComments: 50, Now: now})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(got))
	}
	scores := map[string]float64{}
	for _, p := range got {
		scores[p.ID] = p.Score
	}
	if scores["a"] != 12.0 {
		t.Errorf("expected a=12.0, got %v", scores["a"])
	}
	if scores["b"] != 50.0 {
		t.Errorf("expected b=50.0, got %v", scores["b"])
	}
}

func TestScan_ScoreFormula(t *testing.T) {
	in := []domain.RawPost{
		raw("p1", 7, 90*time.Minute),
		raw("p2", 250, 3*time.Hour+20*time.Minute),
		raw("p3", 1, 11*time.Hour),
	}
	got, err := Scan(Stream(in), Options{MaxAgeHours: 12, MinComments: 0, Now: now})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, p := range got {
		want := math.Round(float64(p.CommentCount)/p.AgeHours*10) / 10
		if math.Abs(p.Score-want) > 1e-9 {
			t.Errorf("%s: score %v, want %v", p.ID, p.Score, want)
		}
	}
}

func TestScan_MinCommentsFiltered(t *testing.T) {
	in := []domain.RawPost{raw("low", 10, time.Hour)}
	got, err := Scan(Stream(in), Options{MaxAgeHours: 24, MinComments: 60, Now: now})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no posts, got %v", ids(got))
	}
}

func TestScan_LowEngagementDoesNotStop(t *testing.T) {
	in := []domain.RawPost{
		raw("low", 1, time.Hour),
		raw("high", 100, 2*time.Hour),
	}
	got, _ := Scan(Stream(in), Options{MaxAgeHours: 24, MinComments: 50, Now: now})
	if !slices.Equal(ids(got), []string{"high"}) {
		t.Fatalf("expected [high], got %v", ids(got))
	}
}

func TestScan_ZeroAgeSkipped(t *testing.T) {
	in := []domain.RawPost{
		raw("fresh", 500, 2*time.Minute),
		raw("older", 100, time.Hour),
	}
	got, err := Scan(Stream(in), Options{MaxAgeHours: 24, MinComments: 0, Now: now})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !slices.Equal(ids(got), []string{"older"}) {
		t.Fatalf("expected [older], got %v", ids(got))
	}
	for _, p := range got {
		if math.IsInf(p.Score, 0) || math.IsNaN(p.Score) {
			t.Fatalf("degenerate score %v", p.Score)
		}
	}
}

func TestScan_EarlyTermination(t *testing.T) {
	// "young" is out of order: it appears after a post outside the window and
	// must not be recovered.
	in := []domain.RawPost{
		raw("new", 100, time.Hour),
		raw("old", 100, 30*time.Hour),
		raw("young", 100, 2*time.Hour),
	}
	pulled := 0
	got, err := Scan(countingStream(in, &pulled), Options{MaxAgeHours: 24, MinComments: 0, Now: now})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !slices.Equal(ids(got), []string{"new"}) {
		t.Fatalf("expected [new], got %v", ids(got))
	}
	if pulled != 2 {
		t.Fatalf("expected scan to stop after 2 posts, pulled %d", pulled)
	}
}

func TestScan_WindowBoundaryInclusive(t *testing.T) {
	in := []domain.RawPost{
		raw("edge", 10, 5*time.Hour),
		raw("past", 10, 5*time.Hour+6*time.Minute),
	}
	got, _ := Scan(Stream(in), Options{MaxAgeHours: 5, MinComments: 0, Now: now})
	if !slices.Equal(ids(got), []string{"edge"}) {
		t.Fatalf("expected [edge], got %v", ids(got))
	}
}

func TestScan_SourceErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited")
	stream := func(yield func(domain.RawPost, error) bool) {
		if !yield(raw("first", 100, time.Hour), nil) {
			return
		}
		yield(domain.RawPost{}, boom)
	}
	got, err := Scan(stream, Options{MaxAgeHours: 24, Now: now})
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected posts read before the error, got %d", len(got))
	}
}

func TestScan_DeterministicOrder(t *testing.T) {
	in := []domain.RawPost{
		raw("c", 30, time.Hour),
		raw("b", 30, 2*time.Hour),
		raw("a", 30, 3*time.Hour),
	}
	first, _ := Scan(Stream(in), Options{MaxAgeHours: 24, Now: now})
	second, _ := Scan(Stream(in), Options{MaxAgeHours: 24, Now: now})
	if !slices.Equal(ids(first), []string{"c", "b", "a"}) || !slices.Equal(ids(first), ids(second)) {
		t.Fatalf("order not preserved: %v / %v", ids(first), ids(second))
	}
}

func TestWindowAndCollect(t *testing.T) {
	in := []domain.RawPost{
		raw("in", 1, time.Hour),
		raw("out", 1, 48*time.Hour),
	}
	got, err := Collect(Window(Stream(in), 24, now))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 1 || got[0].ID != "in" {
		t.Fatalf("expected [in], got %+v", got)
	}
}

func TestQualify_StopsWhenConsumerBreaks(t *testing.T) {
	in := []domain.RawPost{
		raw("a", 10, time.Hour),
		raw("b", 10, 2*time.Hour),
		raw("c", 10, 3*time.Hour),
	}
	var seen []string
	for p := range Qualify(slices.Values(in), 0, now) {
		seen = append(seen, p.ID)
		if len(seen) == 2 {
			break
		}
	}
	if !slices.Equal(seen, []string{"a", "b"}) {
		t.Fatalf("got %v", seen)
	}
}

func TestQualified_MatchesScan(t *testing.T) {
	in := []domain.RawPost{
		raw("a", 12, time.Hour),
		raw("low", 3, time.Hour),
		raw("b", 100, 2*time.Hour),
	}
	windowed, err := Collect(Window(Stream(in), 24, now))
	if err != nil {
		t.Fatal(err)
	}
	got := Qualified(windowed, 10, now)
	want, _ := Scan(Stream(in), Options{MaxAgeHours: 24, MinComments: 10, Now: now})
	if !slices.Equal(got, want) {
		t.Fatalf("Qualified = %+v, Scan = %+v", got, want)
	}
	if !slices.Equal(ids(got), []string{"a", "b"}) {
		t.Fatalf("got %v", ids(got))
	}
}

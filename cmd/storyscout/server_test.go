package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/storyscout/engine/domain"
	"github.com/WessleyAI/storyscout/engine/scan"
	"github.com/WessleyAI/storyscout/engine/store"
	"github.com/WessleyAI/storyscout/pkg/config"
)

type staticSource struct {
	posts []domain.RawPost
	err   error
}

func (s staticSource) FetchRecent(_ context.Context, _ string) iter.Seq2[domain.RawPost, error] {
	if s.err != nil {
		return func(yield func(domain.RawPost, error) bool) { yield(domain.RawPost{}, s.err) }
	}
	return scan.Stream(s.posts)
}

func abPosts() []domain.RawPost {
	now := time.Now()
	return []domain.RawPost{
		{ID: "a", Title: "post a", URL: "https://example.com/a", CreatedAt: now.Add(-time.Hour), CommentCount: 12},
		{ID: "b", Title: "post b", URL: "https://example.com/b", CreatedAt: now.Add(-2 * time.Hour), CommentCount: 100},
		{ID: "old", Title: "old", CreatedAt: now.Add(-48 * time.Hour), CommentCount: 9000},
	}
}

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestApp(t *testing.T, src staticSource, st store.Store) *app {
	t.Helper()
	a, err := assemble(config.Default(), quietLog(), src, st)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func newTestServer(t *testing.T, src staticSource, st store.Store) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newRouter(newTestApp(t, src, st)))
	t.Cleanup(srv.Close)
	return srv
}

func postRun(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/api/runs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, staticSource{}, store.NewMemory(quietLog()))
	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRunThenQuery(t *testing.T) {
	srv := newTestServer(t, staticSource{posts: abPosts()}, store.NewMemory(quietLog()))

	resp := postRun(t, srv.URL, `{"category":"golang","max_age_hours":24,"min_comments":0}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("run: expected 200, got %d", resp.StatusCode)
	}
	var rep struct {
		State string       `json:"state"`
		Best  *domain.Post `json:"best"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if rep.State != "done" || rep.Best == nil || rep.Best.ID != "b" || rep.Best.Score != 50.0 {
		t.Fatalf("report = %+v best=%+v", rep, rep.Best)
	}

	best, err := http.Get(srv.URL + "/api/best")
	if err != nil {
		t.Fatal(err)
	}
	defer best.Body.Close()
	var p domain.Post
	json.NewDecoder(best.Body).Decode(&p)
	if best.StatusCode != http.StatusOK || p.ID != "b" {
		t.Fatalf("best: %d %+v", best.StatusCode, p)
	}

	q, err := http.Get(srv.URL + "/api/posts?min_score=20")
	if err != nil {
		t.Fatal(err)
	}
	defer q.Body.Close()
	var posts []domain.Post
	json.NewDecoder(q.Body).Decode(&posts)
	if len(posts) != 1 || posts[0].ID != "b" {
		t.Fatalf("query(20) = %+v, want [b]", posts)
	}

	latest, err := http.Get(srv.URL + "/api/runs/latest")
	if err != nil {
		t.Fatal(err)
	}
	latest.Body.Close()
	if latest.StatusCode != http.StatusOK {
		t.Fatalf("latest: %d", latest.StatusCode)
	}
}

func TestEmptyStore(t *testing.T) {
	srv := newTestServer(t, staticSource{}, store.NewMemory(quietLog()))

	best, err := http.Get(srv.URL + "/api/best")
	if err != nil {
		t.Fatal(err)
	}
	best.Body.Close()
	if best.StatusCode != http.StatusNoContent {
		t.Fatalf("best on empty store: %d, want 204", best.StatusCode)
	}

	q, err := http.Get(srv.URL + "/api/posts?min_score=1")
	if err != nil {
		t.Fatal(err)
	}
	defer q.Body.Close()
	body, _ := io.ReadAll(q.Body)
	if q.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("posts on empty store: %d %s", q.StatusCode, body)
	}

	latest, err := http.Get(srv.URL + "/api/runs/latest")
	if err != nil {
		t.Fatal(err)
	}
	latest.Body.Close()
	if latest.StatusCode != http.StatusNoContent {
		t.Fatalf("latest before any run: %d", latest.StatusCode)
	}
}

func TestErrorStatuses(t *testing.T) {
	srcDown := staticSource{err: domain.SourceError("r/golang", errors.New("status 503"))}
	tests := []struct {
		name   string
		src    staticSource
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", staticSource{}, http.MethodPost, "/api/runs", "{", http.StatusBadRequest},
		{"blank category", staticSource{}, http.MethodPost, "/api/runs", `{"category":" ","max_age_hours":2}`, http.StatusBadRequest},
		{"age out of range", staticSource{}, http.MethodPost, "/api/runs", `{"category":"go","max_age_hours":48}`, http.StatusBadRequest},
		{"source down", srcDown, http.MethodPost, "/api/runs", `{"category":"go","max_age_hours":2}`, http.StatusBadGateway},
		{"missing min_score", staticSource{}, http.MethodGet, "/api/posts", "", http.StatusBadRequest},
		{"min_score not a number", staticSource{}, http.MethodGet, "/api/posts?min_score=high", "", http.StatusBadRequest},
		{"min_score too high", staticSource{}, http.MethodGet, "/api/posts?min_score=1001", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.src, store.NewMemory(quietLog()))
			req, _ := http.NewRequest(tt.method, srv.URL+tt.path, bytes.NewBufferString(tt.body))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body["error"] == "" {
				t.Fatalf("expected error body, got %v (%v)", body, err)
			}
		})
	}
}

type brokenStore struct{ store.Store }

func (brokenStore) Clear(context.Context) error {
	return domain.PersistenceError("clear", errors.New("connection refused"))
}

func (brokenStore) ScanAll(context.Context) ([]domain.Post, error) {
	return nil, domain.PersistenceError("scan", errors.New("connection refused"))
}

func TestPersistenceFailureIs503(t *testing.T) {
	srv := newTestServer(t, staticSource{posts: abPosts()}, brokenStore{})

	resp := postRun(t, srv.URL, `{"category":"go","max_age_hours":24}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("run: %d, want 503", resp.StatusCode)
	}
	best, err := http.Get(srv.URL + "/api/best")
	if err != nil {
		t.Fatal(err)
	}
	best.Body.Close()
	if best.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("best: %d, want 503", best.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("x", "", domain.ErrInvalidParam), http.StatusBadRequest},
		{domain.ErrRunInProgress, http.StatusConflict},
		{domain.SourceError("op", errors.New("x")), http.StatusBadGateway},
		{domain.PersistenceError("op", errors.New("x")), http.StatusServiceUnavailable},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, staticSource{posts: abPosts()}, store.NewMemory(quietLog()))
	postRun(t, srv.URL, `{"category":"go","max_age_hours":24}`)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{`storyscout_runs_total{state="done"} 1`, "storyscout_best_score 50", `route="/api/runs",status="200"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

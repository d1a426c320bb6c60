package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WessleyAI/storyscout/engine/domain"
	"github.com/WessleyAI/storyscout/engine/store"
	"github.com/WessleyAI/storyscout/pkg/config"
)

// useTestApp routes every command to src and a store shared across invocations.
func useTestApp(t *testing.T, src staticSource) {
	t.Helper()
	for _, k := range []string{config.EnvConfigPath, "STORYSCOUT_STORE", "STORYSCOUT_LOG_LEVEL", "NATS_URL", "PORT"} {
		t.Setenv(k, "")
	}
	st := store.NewMemory(quietLog())
	prev := openApp
	openApp = func(_ context.Context, cfg config.Config, _ io.Writer) (*app, error) {
		return assemble(cfg, quietLog(), src, st)
	}
	t.Cleanup(func() { openApp = prev })
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_RunBestQuery(t *testing.T) {
	useTestApp(t, staticSource{posts: abPosts()})

	out, err := execute("run", "--category", "golang", "--max-age-hours", "24")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "2 posts in window, 2 scored") || !strings.Contains(out, "Title:    post b") {
		t.Fatalf("run output:\n%s", out)
	}
	if !strings.Contains(out, "Score:    50.0") {
		t.Fatalf("run output missing score:\n%s", out)
	}

	out, err = execute("best")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "URL:      https://example.com/b") {
		t.Fatalf("best output:\n%s", out)
	}

	out, err = execute("query", "--min-score", "20")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "post b") || strings.Contains(out, "post a") {
		t.Fatalf("query output:\n%s", out)
	}

	out, err = execute("query", "--min-score", "51")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No posts found with score >= 51.") {
		t.Fatalf("query output:\n%s", out)
	}
}

func TestCLI_EmptyStore(t *testing.T) {
	useTestApp(t, staticSource{})
	out, err := execute("best")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != noPosts {
		t.Fatalf("best output: %q", out)
	}
}

func TestCLI_RunNoQualifyingPosts(t *testing.T) {
	useTestApp(t, staticSource{posts: abPosts()})
	out, err := execute("run", "-c", "golang", "--max-age-hours", "24", "--min-comments", "200")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, noPosts) {
		t.Fatalf("run output:\n%s", out)
	}
}

func TestCLI_Errors(t *testing.T) {
	useTestApp(t, staticSource{err: domain.SourceError("r/golang", errors.New("status 429"))})

	if _, err := execute("run", "--category", "golang"); err == nil {
		t.Fatal("expected missing flag error")
	}
	if _, err := execute("run", "--category", "golang", "--max-age-hours", "30"); !errors.Is(err, domain.ErrInvalidParam) {
		t.Fatalf("err = %v, want ErrInvalidParam", err)
	}
	if _, err := execute("run", "--category", "golang", "--max-age-hours", "3"); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if _, err := execute("query", "--min-score", "0"); !errors.Is(err, domain.ErrInvalidParam) {
		t.Fatalf("err = %v, want ErrInvalidParam", err)
	}
	if _, err := execute("watch"); err == nil || !strings.Contains(err.Error(), "nats") {
		t.Fatalf("watch without nats: %v", err)
	}
	if _, err := execute("best", "--store", "cassandra"); err == nil {
		t.Fatal("expected unknown backend error")
	}
}

func TestCLI_JSONOutput(t *testing.T) {
	useTestApp(t, staticSource{posts: abPosts()})
	out, err := execute("run", "--category", "golang", "--max-age-hours", "24", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"state": "done"`) || !strings.Contains(out, `"id": "b"`) {
		t.Fatalf("json output:\n%s", out)
	}
}

func TestCLI_Version(t *testing.T) {
	out, err := execute("version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "storyscout ") {
		t.Fatalf("version output: %q", out)
	}
}

// redditListing serves one /new.json page holding posts and no further cursor.
func redditListing(t *testing.T, posts []domain.RawPost) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/golang/new.json" {
			http.NotFound(w, r)
			return
		}
		var children []string
		for _, p := range posts {
			children = append(children, fmt.Sprintf(
				`{"kind":"t3","data":{"id":%q,"title":%q,"url":%q,"num_comments":%d,"created_utc":%d}}`,
				p.ID, p.Title, p.URL, p.CommentCount, p.CreatedAt.Unix()))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":{"after":null,"children":[%s]}}`, strings.Join(children, ","))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCLI_DefaultStorePersistsAcrossInvocations(t *testing.T) {
	for _, k := range []string{config.EnvConfigPath, "STORYSCOUT_STORE", "STORYSCOUT_LOG_LEVEL", "NATS_URL", "PORT"} {
		t.Setenv(k, "")
	}
	srv := redditListing(t, abPosts())
	t.Setenv("STORYSCOUT_SOURCE_URL", srv.URL)
	t.Setenv("STORYSCOUT_SQLITE_PATH", filepath.Join(t.TempDir(), "storyscout.db"))

	out, err := execute("run", "--category", "golang", "--max-age-hours", "24")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Title:    post b") {
		t.Fatalf("run output:\n%s", out)
	}

	out, err = execute("best")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "URL:      https://example.com/b") {
		t.Fatalf("best after run in a separate invocation:\n%s", out)
	}

	out, err = execute("query", "--min-score", "20")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "post b") || strings.Contains(out, "post a") {
		t.Fatalf("query output:\n%s", out)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/storyscout/engine/domain"
	"github.com/WessleyAI/storyscout/engine/pipeline"
	"github.com/WessleyAI/storyscout/pkg/natsutil"
)

const noPosts = "No posts found."

func newRunCmd(rf *rootFlags) *cobra.Command {
	var (
		p      domain.RunParams
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape a subreddit, replace the stored batch and print the best post",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := rf.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))

			rep, err := a.runner.Run(cmd.Context(), p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, rep)
			}
			fmt.Fprintf(out, "Run %s: %d posts in window, %d scored.\n", rep.RunID, rep.Fetched, rep.Persisted)
			if rep.Best == nil {
				fmt.Fprintln(out, noPosts)
				return nil
			}
			printPost(out, *rep.Best)
			return nil
		},
	}
	bindRunParams(cmd.Flags(), &p)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	cmd.MarkFlagRequired("category")
	cmd.MarkFlagRequired("max-age-hours")
	return cmd
}

func newBestCmd(rf *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "best",
		Short: "Print the highest scoring post of the stored batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := rf.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))

			best, ok, err := a.query.Best(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case !ok:
				fmt.Fprintln(out, noPosts)
			case asJSON:
				return writeJSON(out, best)
			default:
				printPost(out, best)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the post as JSON")
	return cmd
}

func newQueryCmd(rf *rootFlags) *cobra.Command {
	var (
		minScore int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List stored posts whose score is at least --min-score",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := domain.ValidateMinScore(minScore); err != nil {
				return err
			}
			a, err := rf.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))

			posts, err := a.query.Ranked(cmd.Context(), float64(minScore))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, posts)
			}
			if len(posts) == 0 {
				fmt.Fprintf(out, "No posts found with score >= %d.\n", minScore)
				return nil
			}
			printTable(out, posts)
			return nil
		},
	}
	cmd.Flags().IntVar(&minScore, "min-score", domain.MinScoreThreshold, fmt.Sprintf("score threshold [%d-%d]", domain.MinScoreThreshold, domain.MaxScoreThreshold))
	cmd.Flags().BoolVar(&asJSON, "json", false, "print posts as JSON")
	return cmd
}

func newWatchCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print run events as they are published on NATS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rf.loadConfig()
			if err != nil {
				return err
			}
			if cfg.NATS.URL == "" {
				return fmt.Errorf("watch: nats.url (or NATS_URL) is not configured")
			}
			nc, err := nats.Connect(cfg.NATS.URL, nats.Name("storyscout-watch"))
			if err != nil {
				return fmt.Errorf("watch: nats connect: %w", err)
			}
			defer nc.Drain()
			return watchEvents(cmd.Context(), nc, cfg.NATS.Subject, cmd.OutOrStdout())
		},
	}
}

// watchEvents prints every event on subject until ctx is done.
func watchEvents(ctx context.Context, nc *nats.Conn, subject string, out io.Writer) error {
	events := make(chan pipeline.RunEvent, 16)
	sub, err := natsutil.Subscribe(nc, subject, forwardTo(ctx, events))
	if err != nil {
		return fmt.Errorf("watch: subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			printEvent(out, ev)
		}
	}
}

// forwardTo hands events to the printer. Once ctx is done nobody reads
// events, so the delivery goroutine drops them instead of blocking.
func forwardTo(ctx context.Context, events chan<- pipeline.RunEvent) func(context.Context, pipeline.RunEvent) {
	return func(_ context.Context, ev pipeline.RunEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
}

func printEvent(w io.Writer, ev pipeline.RunEvent) {
	r := ev.Report
	fmt.Fprintf(w, "%s %s run=%s r/%s state=%s fetched=%d persisted=%d",
		r.StartedAt.Format("15:04:05"), ev.Kind, r.RunID, r.Params.Category, r.State, r.Fetched, r.Persisted)
	if r.Best != nil {
		fmt.Fprintf(w, " best=%s score=%s", r.Best.ID, formatScore(r.Best.Score))
	}
	if r.Error != "" {
		fmt.Fprintf(w, " error=%q", r.Error)
	}
	fmt.Fprintln(w)
}

func printPost(w io.Writer, p domain.Post) {
	fmt.Fprintf(w, "Title:    %s\n", p.Title)
	fmt.Fprintf(w, "Comments: %d\n", p.CommentCount)
	fmt.Fprintf(w, "Age:      %s hours ago\n", formatScore(p.AgeHours))
	fmt.Fprintf(w, "Score:    %s\n", formatScore(p.Score))
	fmt.Fprintf(w, "URL:      %s\n", p.URL)
}

func printTable(w io.Writer, posts []domain.Post) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tCOMMENTS\tHOURS AGO\tTITLE\tURL")
	for _, p := range posts {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", formatScore(p.Score), p.CommentCount, formatScore(p.AgeHours), p.Title, p.URL)
	}
	tw.Flush()
}

// formatScore prints one decimal, the precision scores and ages are rounded to.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

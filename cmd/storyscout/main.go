// Command storyscout scrapes a subreddit's newest posts, scores them by comments
// per hour and answers queries over the latest batch.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/WessleyAI/storyscout/engine/domain"
	"github.com/WessleyAI/storyscout/pkg/config"
)

var version = "dev"

type rootFlags struct {
	config   string
	logLevel string
	backend  string
}

func newRootCmd() *cobra.Command {
	var rf rootFlags
	root := &cobra.Command{
		Use:           "storyscout",
		Short:         "Find the most discussed recent posts of a subreddit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&rf.config, "config", "", "path to config file (default $"+config.EnvConfigPath+")")
	pf.StringVar(&rf.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	pf.StringVar(&rf.backend, "store", "", "override store backend (memory, mongo, neo4j, qdrant, postgres)")

	root.AddCommand(
		newRunCmd(&rf),
		newBestCmd(&rf),
		newQueryCmd(&rf),
		newServeCmd(&rf),
		newWatchCmd(&rf),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "storyscout %s\n", version)
			},
		},
	)
	return root
}

// loadConfig applies command-line overrides on top of the file and environment.
func (rf *rootFlags) loadConfig() (config.Config, error) {
	cfg, err := config.Load(rf.config)
	if err != nil {
		return config.Config{}, err
	}
	if rf.logLevel != "" {
		cfg.Log.Level = rf.logLevel
	}
	if rf.backend != "" {
		cfg.Store.Backend = rf.backend
	}
	return cfg, cfg.Validate()
}

// open loads configuration and builds the app for one command invocation.
func (rf *rootFlags) open(cmd *cobra.Command) (*app, error) {
	cfg, err := rf.loadConfig()
	if err != nil {
		return nil, err
	}
	return openApp(cmd.Context(), cfg, cmd.ErrOrStderr())
}

// bindRunParams registers the run parameter flags on fs.
func bindRunParams(fs *pflag.FlagSet, p *domain.RunParams) {
	fs.StringVarP(&p.Category, "category", "c", "", "subreddit to scrape (required)")
	fs.IntVar(&p.MaxAgeHours, "max-age-hours", 0, fmt.Sprintf("only posts younger than this many hours [%d-%d] (required)", domain.MinMaxAgeHours, domain.MaxMaxAgeHours))
	fs.IntVar(&p.MinComments, "min-comments", 0, fmt.Sprintf("minimum comment count [%d-%d]", domain.MinMinComments, domain.MaxMinComments))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

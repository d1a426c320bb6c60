// Package pipeline runs one scrape: fetch the category's newest posts inside the
// age window, score the qualifying ones, replace the stored batch with them and
// report the best post.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/WessleyAI/storyscout/engine/domain"
	"github.com/WessleyAI/storyscout/engine/query"
	"github.com/WessleyAI/storyscout/engine/scan"
	"github.com/WessleyAI/storyscout/engine/source"
	"github.com/WessleyAI/storyscout/engine/store"
	"github.com/WessleyAI/storyscout/pkg/fn"
)

// State is the position of a run in its lifecycle.
type State string

const (
	Idle       State = "idle"
	Scraping   State = "scraping"
	Scoring    State = "scoring"
	Persisting State = "persisting"
	Done       State = "done"
	Failed     State = "failed"
)

// Report describes one run. Best is nil when no post qualified.
type Report struct {
	RunID      string           `json:"run_id"`
	Params     domain.RunParams `json:"params"`
	State      State            `json:"state"`
	Fetched    int              `json:"fetched"`
	Persisted  int              `json:"persisted"`
	Best       *domain.Post     `json:"best,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at,omitzero"`
	Error      string           `json:"error,omitempty"`
}

// Event kinds.
const (
	EventStarted  = "run.started"
	EventFinished = "run.finished"
)

// RunEvent is published when a run starts and when it reaches Done or Failed.
type RunEvent struct {
	Kind   string `json:"kind"`
	Report Report `json:"report"`
}

// EventPublisher delivers run events. Publishing failures are logged and never
// fail the run.
type EventPublisher interface {
	Publish(ctx context.Context, ev RunEvent) error
}

// Recorder receives run metrics.
type Recorder interface {
	RecordRun(state string, d time.Duration, fetched, persisted int, best float64, hasBest bool)
}

// Runner executes runs one at a time against a single store.
type Runner struct {
	src     source.Source
	store   store.Store
	query   *query.Engine
	log     *slog.Logger
	events  EventPublisher
	metrics Recorder
	now     func() time.Time
	newID   func() string

	run sync.Mutex // held for the whole of a run

	mu    sync.RWMutex
	state State
	last  Report
}

// Option configures a Runner.
type Option func(*Runner)

func WithLogger(log *slog.Logger) Option { return func(r *Runner) { r.log = log } }

func WithEvents(p EventPublisher) Option { return func(r *Runner) { r.events = p } }

func WithMetrics(m Recorder) Option { return func(r *Runner) { r.metrics = m } }

// WithClock overrides time.Now, which fixes "now" for age computation.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// New returns an idle Runner. The caller owns st and closes it on shutdown.
func New(src source.Source, st store.Store, opts ...Option) *Runner {
	r := &Runner{
		src:   src,
		store: st,
		query: query.New(st),
		log:   slog.Default(),
		now:   time.Now,
		newID: uuid.NewString,
		state: Idle,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// State returns the state of the current or latest run.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Last returns the report of the current or latest run.
func (r *Runner) Last() Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Run validates p and executes a run, waiting for any run in progress to finish
// first. Invalid parameters are rejected before a run starts.
func (r *Runner) Run(ctx context.Context, p domain.RunParams) (Report, error) {
	if err := domain.ValidateRunParams(p); err != nil {
		return Report{}, err
	}
	r.run.Lock()
	defer r.run.Unlock()
	return r.execute(ctx, p)
}

// TryRun is Run without waiting: it fails with domain.ErrRunInProgress when
// another run holds the store.
func (r *Runner) TryRun(ctx context.Context, p domain.RunParams) (Report, error) {
	if err := domain.ValidateRunParams(p); err != nil {
		return Report{}, err
	}
	if !r.run.TryLock() {
		return Report{}, domain.ErrRunInProgress
	}
	defer r.run.Unlock()
	return r.execute(ctx, p)
}

func (r *Runner) transition(rep *Report, s State) {
	rep.State = s
	r.mu.Lock()
	r.state = s
	r.last = *rep
	r.mu.Unlock()
}

func (r *Runner) execute(ctx context.Context, p domain.RunParams) (Report, error) {
	now := r.now()
	rep := Report{RunID: r.newID(), Params: p, State: Idle, StartedAt: now}
	log := r.log.With("run_id", rep.RunID, "category", p.Category)
	r.publish(ctx, log, EventStarted, rep)
	log.Info("run started", "max_age_hours", p.MaxAgeHours, "min_comments", p.MinComments)

	attrs := []attribute.KeyValue{
		attribute.String("run.id", rep.RunID),
		attribute.String("run.category", p.Category),
	}

	scrape := fn.TracedStage("pipeline.scrape", fn.Lift(func(ctx context.Context, p domain.RunParams) ([]domain.RawPost, error) {
		posts := source.Ordered(r.src.FetchRecent(ctx, p.Category), log)
		raw, err := scan.Collect(scan.Window(posts, float64(p.MaxAgeHours), now))
		rep.Fetched = len(raw)
		return raw, err
	}), attrs...)
	qualify := fn.TracedStage("pipeline.score", fn.Lift(func(_ context.Context, raw []domain.RawPost) ([]domain.Post, error) {
		r.transition(&rep, Scoring)
		return scan.Qualified(raw, p.MinComments, now), nil
	}), attrs...)

	r.transition(&rep, Scraping)
	scored, err := fn.Then(scrape, qualify)(ctx, p).Unwrap()
	if err != nil {
		return r.fail(ctx, log, rep, err)
	}

	r.transition(&rep, Persisting)
	_, err = fn.TracedStage("pipeline.persist", fn.Lift(func(ctx context.Context, posts []domain.Post) (struct{}, error) {
		if err := r.store.Clear(ctx); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, r.store.PutAll(ctx, posts)
	}), attrs...)(ctx, scored).Unwrap()
	if err != nil {
		return r.fail(ctx, log, rep, err)
	}
	rep.Persisted = len(scored)

	best, ok, err := r.query.Best(ctx)
	if err != nil {
		return r.fail(ctx, log, rep, err)
	}
	if ok {
		rep.Best = &best
	}

	rep.FinishedAt = r.now()
	r.transition(&rep, Done)
	log.Info("run finished", "fetched", rep.Fetched, "persisted", rep.Persisted, "has_best", ok)
	r.record(rep)
	r.publish(ctx, log, EventFinished, rep)
	return rep, nil
}

func (r *Runner) fail(ctx context.Context, log *slog.Logger, rep Report, err error) (Report, error) {
	failedIn := rep.State
	rep.Error = err.Error()
	rep.FinishedAt = r.now()
	r.transition(&rep, Failed)
	log.Error("run failed", "stage", string(failedIn), "err", err)
	r.record(rep)
	r.publish(context.WithoutCancel(ctx), log, EventFinished, rep)
	return rep, fmt.Errorf("pipeline: %s: %w", failedIn, err)
}

func (r *Runner) record(rep Report) {
	if r.metrics == nil {
		return
	}
	var best float64
	if rep.Best != nil {
		best = rep.Best.Score
	}
	r.metrics.RecordRun(string(rep.State), rep.FinishedAt.Sub(rep.StartedAt), rep.Fetched, rep.Persisted, best, rep.Best != nil)
}

func (r *Runner) publish(ctx context.Context, log *slog.Logger, kind string, rep Report) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(ctx, RunEvent{Kind: kind, Report: rep}); err != nil {
		log.Warn("publishing run event failed", "kind", kind, "err", err)
	}
}

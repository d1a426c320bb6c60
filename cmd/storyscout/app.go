package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/WessleyAI/storyscout/engine/pipeline"
	"github.com/WessleyAI/storyscout/engine/query"
	"github.com/WessleyAI/storyscout/engine/source"
	"github.com/WessleyAI/storyscout/engine/store"
	"github.com/WessleyAI/storyscout/pkg/config"
	"github.com/WessleyAI/storyscout/pkg/logx"
	"github.com/WessleyAI/storyscout/pkg/metrics"
	"github.com/WessleyAI/storyscout/pkg/natsutil"
)

// app owns every long-lived dependency of a command.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	store    store.Store
	runner   *pipeline.Runner
	query    *query.Engine
	metrics  *metrics.Collector
	registry *prometheus.Registry
	nc       *nats.Conn
}

// openApp is replaced in tests.
var openApp = newApp

func newApp(ctx context.Context, cfg config.Config, logOut io.Writer) (*app, error) {
	log, err := logx.New(logOut, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	st, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}
	return assemble(cfg, log, source.NewClient(cfg.Source), st)
}

// assemble wires a runner over src and st, connecting to NATS when configured.
func assemble(cfg config.Config, log *slog.Logger, src source.Source, st store.Store) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	col := metrics.NewCollector(reg)

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		query:    query.New(st),
		metrics:  col,
		registry: reg,
	}
	opts := []pipeline.Option{pipeline.WithLogger(log), pipeline.WithMetrics(col)}
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("storyscout"))
		if err != nil {
			st.Close(context.Background())
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		a.nc = nc
		opts = append(opts, pipeline.WithEvents(natsutil.NewPublisher[pipeline.RunEvent](nc, cfg.NATS.Subject)))
	}
	a.runner = pipeline.New(src, st, opts...)
	return a, nil
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.store.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

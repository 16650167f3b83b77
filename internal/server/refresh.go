// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/tomtom215/cartotile/internal/config"
	"github.com/tomtom215/cartotile/internal/logging"
	"github.com/tomtom215/cartotile/internal/metrics"
)

// Refresh stages used in logs and the refresh metric.
const (
	StageLoad       = config.OpLoad
	StageMerge      = config.OpMerge
	StageFinalize   = config.OpFinalize
	StageResolve    = config.OpResolve
	StageCatalog    = "catalog"
	StageSuperseded = "superseded"
)

// ReadFunc produces finalized configuration from start-up arguments.
type ReadFunc func(args config.Args) (*config.Config, error)

// Refresher rebuilds and swaps the application state.
type Refresher struct {
	args     config.Args
	read     ReadFunc
	resolver *Resolver
	state    atomic.Pointer[AppState]
	gen      atomic.Uint64

	// afterFunc schedules closing a superseded generation.
	afterFunc func(d time.Duration, f func())
}

// NewRefresher returns a refresher that re-reads configuration with args.
func NewRefresher(args config.Args, resolver *Resolver) *Refresher {
	return &Refresher{
		args:     args,
		read:     config.Read,
		resolver: resolver,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Bootstrap reads configuration and builds the first generation and the
// AppState holding it.
func (r *Refresher) Bootstrap(ctx context.Context) (*AppState, error) {
	cfg, err := r.read(r.args)
	if err != nil {
		return nil, err
	}
	return r.BootstrapWith(ctx, cfg)
}

// BootstrapWith builds the first generation from an already read cfg.
func (r *Refresher) BootstrapWith(ctx context.Context, cfg *config.Config) (*AppState, error) {
	gen, _, err := r.resolve(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := NewAppState(gen)
	r.state.Store(app)
	metrics.StateGeneration.Set(float64(gen.State.Generation))
	metrics.SetSourceCounts(gen.State.Tiles.Len(), gen.State.Sprites.Len(), gen.State.Fonts.Len())
	return app, nil
}

// Attach makes r refresh an existing AppState.
func (r *Refresher) Attach(app *AppState) {
	r.state.Store(app)
	if st := app.State.Read(); st != nil && st.Generation > r.gen.Load() {
		r.gen.Store(st.Generation)
	}
}

// Refresh re-reads configuration and swaps every slot. When any step
// before the swap fails the error is returned and nothing changes.
func (r *Refresher) Refresh(ctx context.Context) error {
	app := r.state.Load()
	if app == nil {
		return errors.New("refresh before bootstrap")
	}

	start := time.Now()
	gen, stage, err := r.build(ctx)
	if err != nil {
		metrics.RecordRefresh(stage, time.Since(start), err)
		logging.Ctx(ctx).Error().Err(err).Str("stage", stage).Msg("Refresh failed, keeping current state")
		return err
	}

	before := app.SrvConfig.Read()
	old, ok := app.swap(gen)
	if !ok {
		// A refresh that started later already swapped in a newer generation.
		metrics.RecordRefresh(StageSuperseded, time.Since(start), nil)
		logging.Ctx(ctx).Info().
			Uint64("generation", gen.State.Generation).
			Msg("Refresh superseded by a newer generation, discarding")
		r.retire(gen.State, 0)
		return nil
	}
	WarnRestartRequired(before, gen.SrvConfig)
	elapsed := time.Since(start)
	metrics.RecordRefresh("", elapsed, nil)
	metrics.StateGeneration.Set(float64(gen.State.Generation))
	metrics.SetSourceCounts(gen.State.Tiles.Len(), gen.State.Sprites.Len(), gen.State.Fonts.Len())

	logging.Ctx(ctx).Info().
		Uint64("generation", gen.State.Generation).
		Int("sources", gen.State.Tiles.Len()).
		Int("sprites", gen.State.Sprites.Len()).
		Int("fonts", gen.State.Fonts.Len()).
		Dur("duration", elapsed).
		Msg("Refresh complete")

	r.retire(old, gen.SrvConfig.DrainTimeout)
	return nil
}

// build runs every fallible step and returns the failing stage on error.
func (r *Refresher) build(ctx context.Context) (*Generation, string, error) {
	cfg, err := r.read(r.args)
	if err != nil {
		stage := StageLoad
		var cerr *config.Error
		if errors.As(err, &cerr) {
			stage = cerr.Op
		}
		return nil, stage, err
	}
	return r.resolve(ctx, cfg)
}

// resolve builds a generation from cfg.
func (r *Refresher) resolve(ctx context.Context, cfg *config.Config) (*Generation, string, error) {
	next := r.gen.Add(1)
	state, err := r.resolver.Resolve(ctx, cfg, next)
	if err != nil {
		return nil, StageResolve, &config.Error{Op: config.OpResolve, Err: err}
	}

	doc, err := NewCatalogDoc(state)
	if err != nil {
		_ = state.Close()
		return nil, StageCatalog, err
	}
	return &Generation{SrvConfig: cfg.Server, State: state, Catalog: doc}, "", nil
}

// retire closes old after the drain timeout so in-flight requests that
// still reference it can finish.
func (r *Refresher) retire(old *ServerState, drain time.Duration) {
	if old == nil {
		return
	}
	closeOld := func() {
		if err := old.Close(); err != nil {
			logging.Warn().Err(err).Uint64("generation", old.Generation).Msg("Closing superseded state failed")
			return
		}
		logging.Debug().Uint64("generation", old.Generation).Msg("Superseded state closed")
	}
	if drain <= 0 {
		closeOld()
		return
	}
	r.afterFunc(drain, closeOld)
}

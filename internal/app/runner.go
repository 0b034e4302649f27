// Package app wires a simulation to its configuration, scenario data and
// journal, and serializes access for concurrent callers.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"officesim/internal/config"
	"officesim/internal/domain"
	"officesim/internal/events"
	"officesim/internal/office"
	"officesim/internal/repo"
	"officesim/internal/scenario"
	"officesim/internal/weather"
)

// Options configure Build.
type Options struct {
	Config   *config.Config
	Registry *scenario.Registry
	Logger   *slog.Logger
	// DB enables the journal when set and Config.Journal.Enabled is true.
	DB    *sql.DB
	Label string
	Now   func() time.Time
}

// Runner owns one simulation. Every call takes the lock, so the HTTP server
// and the auto-ticker can share it.
type Runner struct {
	mu      sync.Mutex
	sim     *office.Simulation
	run     domain.Run
	journal *events.Writer
	repo    repo.Repo
	log     *slog.Logger

	hookMu     sync.RWMutex
	tickHooks  []func(domain.TickSummary)
	eventHooks []func([]domain.Event)
}

// LoadRegistry reads scenarios and task templates from the configured dirs.
func LoadRegistry(cfg *config.Config, log *slog.Logger) (*scenario.Registry, error) {
	reg := scenario.NewRegistry(log)
	if _, err := reg.LoadTemplates(cfg.Scenarios.TemplatesDir); err != nil {
		return nil, fmt.Errorf("load task templates: %w", err)
	}
	if _, err := reg.LoadScenarios(cfg.Scenarios.Dir); err != nil {
		return nil, fmt.Errorf("load scenarios: %w", err)
	}
	return reg, nil
}

// SimOptions translates config into simulation options.
func SimOptions(cfg *config.Config, reg *scenario.Registry, log *slog.Logger) (office.Options, error) {
	opts := office.DefaultOptions()
	opts.Seed = cfg.Simulation.Seed
	opts.Registry = reg
	opts.Logger = log
	opts.InitialTasks = cfg.Simulation.InitialTasks
	opts.ScenarioCheckProbability = cfg.Simulation.ScenarioCheckProbability
	opts.WeatherInterval = cfg.Weather.UpdateInterval
	opts.WallClock = cfg.Simulation.ScenarioClock == config.ClockWall

	var err error
	if opts.DayStart, err = cfg.DayStartMinute(); err != nil {
		return opts, err
	}
	if opts.DayEnd, err = cfg.DayEndMinute(); err != nil {
		return opts, err
	}
	if opts.CalendarStart, err = cfg.CalendarStart(); err != nil {
		return opts, err
	}
	if cfg.Weather.Fixed != "" {
		cond, err := weather.ParseCondition(cfg.Weather.Fixed)
		if err != nil {
			return opts, fmt.Errorf("weather.fixed: %w", err)
		}
		opts.Weather = weather.Static(cond)
	}
	return opts, nil
}

// Build creates, initializes and (when journaling) registers a run.
func Build(ctx context.Context, o Options) (*Runner, error) {
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Registry == nil {
		o.Registry = scenario.NewRegistry(o.Logger)
	}
	journaling := o.DB != nil && o.Config.Journal.Enabled

	opts, err := SimOptions(o.Config, o.Registry, o.Logger)
	if err != nil {
		return nil, err
	}
	opts.RecordEvents = journaling
	sim := office.New(opts)
	sim.Initialize(o.Config.Simulation.Workers)

	r := &Runner{
		sim: sim,
		run: domain.Run{
			ID:        uuid.NewString(),
			Seed:      o.Config.Simulation.Seed,
			Workers:   o.Config.Simulation.Workers,
			Label:     o.Label,
			StartedAt: o.Now().UTC().Format(time.RFC3339),
		},
		log: o.Logger.With("component", "runner"),
	}
	if journaling {
		r.repo = repo.Repo{DB: o.DB}
		r.journal = &events.Writer{DB: o.DB, Now: o.Now}
		if err := r.repo.InsertRun(ctx, r.run); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}
	r.log.Info("run started", "run", r.run.ID, "seed", r.run.Seed, "workers", r.run.Workers, "journal", journaling)
	return r, nil
}

func (r *Runner) RunInfo() domain.Run { return r.run }

// OnTick registers fn to receive a summary after every step.
func (r *Runner) OnTick(fn func(domain.TickSummary)) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.tickHooks = append(r.tickHooks, fn)
}

// OnEvents registers fn to receive journal events once stored.
func (r *Runner) OnEvents(fn func([]domain.Event)) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.eventHooks = append(r.eventHooks, fn)
}

// Step advances the simulation by minutes and flushes the journal.
func (r *Runner) Step(ctx context.Context, minutes int) (domain.TickSummary, error) {
	if minutes <= 0 {
		return domain.TickSummary{}, fmt.Errorf("minutes must be positive")
	}
	r.mu.Lock()
	rep := r.sim.Step(minutes)
	summary := r.summarize(rep)
	stored, err := r.flushLocked(ctx)
	r.mu.Unlock()

	r.notify(summary, stored)
	return summary, err
}

// Advance runs n steps of minutes each, stopping early on ctx cancellation.
func (r *Runner) Advance(ctx context.Context, n, minutes int) (domain.TickSummary, error) {
	var last domain.TickSummary
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		s, err := r.Step(ctx, minutes)
		if err != nil {
			return s, err
		}
		last = s
	}
	return last, nil
}

// Loop steps every interval until ctx is done.
func (r *Runner) Loop(ctx context.Context, interval time.Duration, minutes int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Step(ctx, minutes); err != nil {
				r.log.Error("auto tick", "error", err)
			}
		}
	}
}

// StartDay recalls off-duty workers.
func (r *Runner) StartDay(ctx context.Context) error {
	r.mu.Lock()
	r.sim.StartDay()
	stored, err := r.flushLocked(ctx)
	r.mu.Unlock()
	r.notifyEvents(stored)
	return err
}

// Activate fires a scenario when its requirements hold. force skips the
// requirements check.
func (r *Runner) Activate(ctx context.Context, id string, force bool) ([]string, error) {
	r.mu.Lock()
	activate := r.sim.ActivateScenario
	if force {
		activate = r.sim.ForceActivateScenario
	}
	ids, err := activate(id)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	stored, ferr := r.flushLocked(ctx)
	r.mu.Unlock()
	r.notifyEvents(stored)
	return ids, ferr
}

func (r *Runner) Snapshot() domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Snapshot()
}

// View runs fn with exclusive access to the simulation. fn must not retain
// any pointer it reads.
func (r *Runner) View(fn func(*office.Simulation)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.sim)
}

func (r *Runner) summarize(rep office.TickReport) domain.TickSummary {
	return domain.TickSummary{
		Day:       r.sim.Day(),
		Minute:    r.sim.Minute(),
		Clock:     r.sim.ClockString(),
		Weather:   string(r.sim.Weather()),
		DayEnded:  rep.DayEnded,
		Completed: rep.Completed,
		Failed:    rep.Failed,
		Assigned:  rep.Assigned,
		Activated: rep.Activated,
		PoolSize:  len(r.sim.Pool()),
	}
}

func (r *Runner) flushLocked(ctx context.Context) ([]domain.Event, error) {
	pending := r.sim.DrainEvents()
	if r.journal == nil || len(pending) == 0 {
		return nil, nil
	}
	stored, err := r.journal.AppendBatch(ctx, r.run.ID, pending)
	if err != nil {
		r.log.Error("journal write failed", "events", len(pending), "error", err)
		return nil, fmt.Errorf("write journal: %w", err)
	}
	return stored, nil
}

func (r *Runner) notify(s domain.TickSummary, stored []domain.Event) {
	r.hookMu.RLock()
	hooks := r.tickHooks
	r.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(s)
	}
	r.notifyEvents(stored)
}

func (r *Runner) notifyEvents(stored []domain.Event) {
	if len(stored) == 0 {
		return
	}
	r.hookMu.RLock()
	hooks := r.eventHooks
	r.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(stored)
	}
}

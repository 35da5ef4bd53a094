package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"homenet-monitor/internal/config"
	"homenet-monitor/internal/models"
	"homenet-monitor/internal/ping"
	"homenet-monitor/internal/traffic"
)

// PingRunner runs one ping burst against a destination
type PingRunner interface {
	Run(ctx context.Context, destination string) (ping.RunStats, error)
}

// TrafficRunner runs one traffic sampling pass
type TrafficRunner interface {
	Run(ctx context.Context) (traffic.RunStats, error)
}

// Pruner deletes samples older than a cutoff
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Time) (models.PruneResult, error)
}

// Monitor schedules the samplers and retention pruning in-process
type Monitor struct {
	config  config.Config
	pinger  PingRunner
	traffic TrafficRunner
	store   Pruner
	clock   clockwork.Clock
	log     zerolog.Logger

	sem   *semaphore.Weighted
	cron  *cron.Cron
	chain cron.Chain
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New creates a new Monitor
func New(cfg config.Config, pinger PingRunner, tr TrafficRunner, store Pruner, clock clockwork.Clock, log zerolog.Logger) *Monitor {
	jobs := cfg.Schedule.Jobs
	if jobs < 1 {
		jobs = 1
	}
	cl := cronLogger{log: log}
	return &Monitor{
		config:  cfg,
		pinger:  pinger,
		traffic: tr,
		store:   store,
		clock:   clock,
		log:     log,
		sem:     semaphore.NewWeighted(int64(jobs)),
		chain:   cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		cron:    cron.New(cron.WithParser(parser), cron.WithLogger(cl)),
	}
}

// Start registers all jobs and starts the scheduler. Ping and traffic run
// once immediately; pruning waits for its first firing.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	var initial []cron.Job
	for _, dest := range m.config.Destinations {
		dest := dest
		job, err := m.add(m.config.Schedule.Ping, "ping "+dest, func(ctx context.Context) error {
			_, err := m.pinger.Run(ctx, dest)
			return err
		})
		if err != nil {
			return err
		}
		initial = append(initial, job)
	}
	job, err := m.add(m.config.Schedule.Traffic, "traffic", func(ctx context.Context) error {
		_, err := m.traffic.Run(ctx)
		return err
	})
	if err != nil {
		return err
	}
	initial = append(initial, job)

	if _, err := m.add(m.config.Schedule.Prune, "prune", func(ctx context.Context) error {
		_, err := Prune(ctx, m.store, m.clock, m.config.Retention, m.log)
		return err
	}); err != nil {
		return err
	}

	m.cron.Start()

	// Immediate first samples
	for _, job := range initial {
		m.wg.Add(1)
		go func(job cron.Job) {
			defer m.wg.Done()
			job.Run()
		}(job)
	}

	m.log.Info().
		Strs("destinations", m.config.Destinations).
		Str("ping", m.config.Schedule.Ping).
		Str("traffic", m.config.Schedule.Traffic).
		Str("prune", m.config.Schedule.Prune).
		Int("jobs", m.config.Schedule.Jobs).
		Msg("scheduler started")
	return nil
}

// Stop cancels running jobs and stops scheduling new ones
func (m *Monitor) Stop() {
	m.log.Info().Msg("stopping scheduler")
	if m.cancel != nil {
		m.cancel()
	}
	<-m.cron.Stop().Done()
}

// Wait blocks until the immediate first runs have returned. Scheduled runs
// are awaited by Stop.
func (m *Monitor) Wait() {
	m.wg.Wait()
	m.log.Info().Msg("scheduler stopped")
}

// add schedules fn under spec and returns the wrapped job. Scheduled and
// immediate runs share the wrapper, so they never overlap.
func (m *Monitor) add(spec, name string, fn func(context.Context) error) (cron.Job, error) {
	job := m.chain.Then(cron.FuncJob(func() { m.runJob(name, fn) }))
	if _, err := m.cron.AddJob(spec, job); err != nil {
		return nil, fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return job, nil
}

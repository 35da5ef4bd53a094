package monitor

import (
	"context"

	"github.com/rs/zerolog"
)

// runJob executes fn once a concurrency slot is free. A job that cannot get
// a slot before shutdown is dropped.
func (m *Monitor) runJob(name string, fn func(context.Context) error) {
	if err := m.sem.Acquire(m.ctx, 1); err != nil {
		return
	}
	defer m.sem.Release(1)

	start := m.clock.Now()
	if err := fn(m.ctx); err != nil {
		m.log.Error().Err(err).Str("job", name).Msg("job failed")
		return
	}
	m.log.Debug().Str("job", name).Dur("took", m.clock.Since(start)).Msg("job finished")
}

// cronLogger routes the scheduler's own messages through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

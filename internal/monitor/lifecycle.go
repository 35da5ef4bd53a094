package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"homenet-monitor/internal/metrics"
	"homenet-monitor/internal/models"
)

// Prune deletes every sample recorded before now minus retention. It runs
// unconditionally and concurrently with inserts and reads.
func Prune(ctx context.Context, store Pruner, clock clockwork.Clock, retention time.Duration, log zerolog.Logger) (models.PruneResult, error) {
	cutoff := clock.Now().Add(-retention)

	res, err := store.Prune(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("prune before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	metrics.RowsPruned.WithLabelValues("ping").Add(float64(res.Pings))
	metrics.RowsPruned.WithLabelValues("traffic").Add(float64(res.Traffic))
	log.Info().
		Time("cutoff", cutoff).
		Int64("pings", res.Pings).
		Int64("traffic", res.Traffic).
		Msg("retention pass complete")
	return res, nil
}

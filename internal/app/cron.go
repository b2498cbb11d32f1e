package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/deepscholar/core/internal/modules/aicontent"
	"github.com/deepscholar/core/internal/modules/discuss"
	pkgcron "github.com/deepscholar/core/internal/pkg/cron"
)

const (
	staleSweepInterval = 10 * time.Minute
	staleSweepAge      = time.Hour
)

// registerCronJobs wires the background maintenance jobs. Finalize
// already closes rows on cancellation; the sweep only catches rows
// orphaned by a process crash mid-stream.
func registerCronJobs(sched *pkgcron.Scheduler, logger *zap.Logger, content *aicontent.Service, disc *discuss.Service) {
	sched.Register(pkgcron.Job{
		Name:        "sweep_stale_generations",
		Description: "mark generation rows stuck in GENERATING as errored",
		Interval:    staleSweepInterval,
		Fn: func(ctx context.Context) error {
			responses, err := content.SweepStale(ctx, staleSweepAge)
			if err != nil {
				return err
			}
			nodes, err := disc.SweepStale(ctx, staleSweepAge)
			if err != nil {
				return err
			}
			if responses+nodes > 0 {
				logger.Info("closed stale generation rows",
					zap.Int64("responses", responses),
					zap.Int64("discuss_nodes", nodes))
			}
			return nil
		},
	})
}

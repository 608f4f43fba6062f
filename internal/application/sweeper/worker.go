// Package sweeper runs the periodic notification sweep in the background.
package sweeper

import (
	"context"
	"time"

	"github.com/smartfix-api/internal/application/notification"
	"github.com/smartfix-api/internal/logger"
)

type sweeper interface {
	Sweep(ctx context.Context) (notification.SweepResult, error)
}

// Run sweeps once per interval until ctx is cancelled. A failed sweep is
// logged and retried on the next tick.
func Run(ctx context.Context, s sweeper, interval time.Duration, log *logger.Logger) {
	if log == nil {
		log = logger.Nop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper exiting")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("notification sweep failed")
			}
		}
	}
}

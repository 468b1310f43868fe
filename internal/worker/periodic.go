package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Periodic runs fn once on start and then on every tick until stopped.
type Periodic struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	log      zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPeriodic(name string, interval time.Duration, fn func(ctx context.Context) error, log zerolog.Logger) *Periodic {
	return &Periodic{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      log.With().Str("worker", name).Logger(),
	}
}

func (p *Periodic) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.log.Info().Dur("interval", p.interval).Msg("worker started")
		p.run(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.run(ctx)
			case <-ctx.Done():
				p.log.Info().Msg("worker stopped")
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for the current run to return.
func (p *Periodic) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Periodic) run(ctx context.Context) {
	if err := p.fn(ctx); err != nil && ctx.Err() == nil {
		p.log.Warn().Err(err).Msg("worker run failed")
	}
}

// Package compactor runs the periodic balance snapshot job. Each pass folds
// every wallet's accumulated transaction delta into its stored snapshot so
// balance reads stay cheap as the ledger grows.
package compactor

import (
	"context"
	"sync"
	"time"

	"wallet-ledger-service/internal/core/ports"

	"github.com/rs/zerolog"
)

// Compactor periodically compacts wallet balance snapshots.
type Compactor struct {
	balanceSvc ports.BalanceService
	interval   time.Duration
	log        zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Compactor that runs every interval once started.
func New(balanceSvc ports.BalanceService, interval time.Duration, log zerolog.Logger) *Compactor {
	return &Compactor{
		balanceSvc: balanceSvc,
		interval:   interval,
		log:        log,
	}
}

// Start launches the background compaction loop. It returns immediately;
// call Stop to shut the loop down.
func (c *Compactor) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)

	go c.run(ctx)

	c.log.Info().Dur("interval", c.interval).Msg("balance compactor started")
}

// Stop signals the loop to exit and waits for an in-flight pass to finish.
func (c *Compactor) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.wg.Wait()
	c.log.Info().Msg("balance compactor stopped")
}

func (c *Compactor) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pass(ctx)
		}
	}
}

func (c *Compactor) pass(ctx context.Context) {
	start := time.Now()
	folded, err := c.balanceSvc.CompactAll(ctx)
	if err != nil {
		c.log.Error().Err(err).
			Int("wallets_folded", folded).
			Msg("compaction pass aborted")
		return
	}
	c.log.Info().
		Int("wallets_folded", folded).
		Dur("elapsed", time.Since(start)).
		Msg("compaction pass complete")
}

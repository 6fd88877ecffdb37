package tokenlife

import (
	"context"
	"log"
	"sync"
	"time"
)

// gcRunner periodically sweeps expired refresh and session records. A
// failed sweep is logged and retried on the next tick; it never takes the
// engine down.
type gcRunner struct {
	engine   *Engine
	interval time.Duration
	timeout  time.Duration

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newGCRunner(engine *Engine, cfg GCConfig) *gcRunner {
	if !cfg.Enabled {
		return nil
	}

	g := &gcRunner{
		engine:   engine,
		interval: cfg.Interval,
		timeout:  cfg.SweepTimeout,
		done:     make(chan struct{}),
	}

	g.wg.Add(1)
	go g.run()

	return g
}

func (g *gcRunner) run() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.done:
			return
		}
	}
}

func (g *gcRunner) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	if _, err := g.engine.CleanupExpiredTokens(ctx); err != nil {
		log.Printf("tokenlife: gc sweep failed: %v", err)
	}
}

func (g *gcRunner) stop() {
	if g == nil {
		return
	}
	g.stopOnce.Do(func() {
		close(g.done)
		g.wg.Wait()
	})
}

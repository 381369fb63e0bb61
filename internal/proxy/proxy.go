// Package proxy is the supervisor from spec.md §4.1/§4.6: it starts the
// two endpoints appropriate to ProxyDirection, wires their sessions to
// the two retry queues, and owns shutdown.
package proxy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/d3sync/hl7proxy/internal/ackpolicy"
	"github.com/d3sync/hl7proxy/internal/config"
	"github.com/d3sync/hl7proxy/internal/connector"
	"github.com/d3sync/hl7proxy/internal/metrics"
	"github.com/d3sync/hl7proxy/internal/peerstream"
	"github.com/d3sync/hl7proxy/internal/retryqueue"
	"github.com/d3sync/hl7proxy/internal/session"
)

// Proxy bridges the analyzer and LIS sides per spec.md §4.
type Proxy struct {
	settings config.Settings
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// New builds a Proxy from settings.
func New(settings config.Settings, m *metrics.Metrics, log zerolog.Logger) *Proxy {
	return &Proxy{settings: settings, metrics: m, log: log}
}

// Run blocks until ctx is cancelled, running both endpoints, their
// sessions, and the two retry-queue drains. If an endpoint fails (for
// example, the listening port cannot be bound), everything else is
// stopped and Run returns that endpoint's error.
func (p *Proxy) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	analyzerSlot := peerstream.NewSlot()
	lisSlot := peerstream.NewSlot()
	toAnalyzer := retryqueue.New(p.settings.MaxQueueDepth)
	toLIS := retryqueue.New(p.settings.MaxQueueDepth)

	direction := p.settings.ProxyDirection

	analyzerCfg := session.Config{
		Side: ackpolicy.Analyzer, SideLabel: "analyzer", Direction: direction,
		Settings: p.settings, DestSlot: lisSlot, DestQueue: toLIS,
		Metrics: p.metrics, Log: p.log,
	}
	lisCfg := session.Config{
		Side: ackpolicy.LIS, SideLabel: "lis", Direction: direction,
		Settings: p.settings, DestSlot: analyzerSlot, DestQueue: toAnalyzer,
		Metrics: p.metrics, Log: p.log,
	}

	runAnalyzerSession := func(ctx context.Context, s *peerstream.Stream) {
		if err := session.Run(ctx, s, analyzerCfg); err != nil {
			p.log.Warn().Err(err).Str("side", "analyzer").Msg("session ended")
		}
	}
	runLISSession := func(ctx context.Context, s *peerstream.Stream) {
		if err := session.Run(ctx, s, lisCfg); err != nil {
			p.log.Warn().Err(err).Str("side", "lis").Msg("session ended")
		}
	}

	// The to-LIS drain carries a deferred ACK to the analyzer only under
	// ClientToListener, where the analyzer session may have enqueued a
	// record without acking it yet (spec.md §4.5's corollary). Under
	// ListenerToClient the analyzer was already acked on receipt, so no
	// deferred target is wired: the drain is a plain forward (spec.md
	// §4.5 "a no-op for policy A").
	var deferredAckTo *peerstream.Slot
	if direction == config.DirClientToListener {
		deferredAckTo = analyzerSlot
	}

	p.watchAndDrain(ctx, analyzerSlot, session.DrainConfig{
		Queue: toAnalyzer, DestSlot: analyzerSlot, SideLabel: "analyzer",
		Settings: p.settings, Metrics: p.metrics, Log: p.log,
	})
	p.watchAndDrain(ctx, lisSlot, session.DrainConfig{
		Queue: toLIS, DestSlot: lisSlot, SideLabel: "lis",
		DeferredAckTo: deferredAckTo, Settings: p.settings, Metrics: p.metrics, Log: p.log,
	})
	p.watchQueueDrops(ctx, toAnalyzer, "analyzer")
	p.watchQueueDrops(ctx, toLIS, "lis")

	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex
	run := func(label string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", label, err)
				}
				mu.Unlock()
				cancel()
			}
		}()
	}

	analyzerAddr := fmt.Sprintf(":%d", p.settings.Port)
	lisAddr := fmt.Sprintf(":%d", p.settings.Port)
	dialAddr := fmt.Sprintf("%s:%d", p.settings.ClientHost, p.settings.ClientPort)

	switch direction {
	case config.DirListenerToClient:
		run("analyzer listener", func() error {
			return connector.Passive(ctx, analyzerAddr, analyzerSlot, "analyzer", p.metrics, p.log, runAnalyzerSession)
		})
		run("lis dialer", func() error {
			return connector.Active(ctx, dialAddr, lisSlot, "lis", p.metrics, p.log, runLISSession)
		})
	case config.DirClientToListener:
		run("lis listener", func() error {
			return connector.Passive(ctx, lisAddr, lisSlot, "lis", p.metrics, p.log, runLISSession)
		})
		run("analyzer dialer", func() error {
			return connector.Active(ctx, dialAddr, analyzerSlot, "analyzer", p.metrics, p.log, runAnalyzerSession)
		})
	default:
		return fmt.Errorf("proxy: unknown direction %q", direction)
	}

	wg.Wait()
	return firstErr
}

// watchQueueDrops polls queue.Dropped() and republishes the delta on the
// queue_dropped_total counter, since MaxQueueDepth evictions happen deep
// inside retryqueue.Push with no metrics dependency of its own.
func (p *Proxy) watchQueueDrops(ctx context.Context, queue *retryqueue.Queue, sideLabel string) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		var last uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if d := queue.Dropped(); d > last {
					p.metrics.AddQueueDropped(sideLabel, d-last)
					last = d
				}
			}
		}
	}()
}

// watchAndDrain spawns a drain task every time slot acquires a new
// non-nil stream, per spec.md §4.5 "the drain task runs while its side's
// stream is non-null".
func (p *Proxy) watchAndDrain(ctx context.Context, slot *peerstream.Slot, cfg session.DrainConfig) {
	go func() {
		for {
			ch := slot.Changed()
			if st := slot.Get(); st != nil {
				go session.Drain(ctx, st, cfg)
			}
			select {
			case <-ch:
			case <-ctx.Done():
				return
			}
		}
	}()
}

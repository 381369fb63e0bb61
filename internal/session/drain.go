package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/d3sync/hl7proxy/internal/ackbuilder"
	"github.com/d3sync/hl7proxy/internal/config"
	"github.com/d3sync/hl7proxy/internal/metrics"
	"github.com/d3sync/hl7proxy/internal/mllpframe"
	"github.com/d3sync/hl7proxy/internal/peerstream"
	"github.com/d3sync/hl7proxy/internal/retryqueue"
)

// idlePoll is the empty-queue sleep (spec.md §4.5: "a 100 ms idle sleep ...
// no condition variable is required").
const idlePoll = 100 * time.Millisecond

// DrainConfig configures one retry-queue drain task.
type DrainConfig struct {
	Queue     *retryqueue.Queue
	DestSlot  *peerstream.Slot
	SideLabel string

	// DeferredAckTo, when non-nil, is the slot a deferred ACK is written to
	// once a record drains successfully (spec.md §4.5's corollary, which
	// is only live for the to-LIS queue under ClientToListener; see
	// DESIGN.md). Left nil, drained records never carry a deferred ACK.
	DeferredAckTo *peerstream.Slot
	Settings      config.Settings

	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

// Drain runs while stream remains cfg.DestSlot's current stream, draining
// cfg.Queue in FIFO order (spec.md §4.5). It returns as soon as the
// stream is superseded or a write fails, so the connector's reconnect
// loop can start a fresh drain against the new stream.
func Drain(ctx context.Context, stream *peerstream.Stream, cfg DrainConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if cfg.DestSlot.Get() != stream {
			return
		}

		record, ok := cfg.Queue.Pop()
		if !ok {
			select {
			case <-time.After(idlePoll):
				continue
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Write(record); err != nil {
			cfg.Queue.PushFront(record)
			cfg.Log.Warn().Err(err).Str("side", cfg.SideLabel).Msg("drain write failed, re-queued at head")
			return
		}

		cfg.Metrics.Forwarded(cfg.SideLabel)
		cfg.Metrics.SetQueueDepth(cfg.SideLabel, cfg.Queue.Len())

		if cfg.DeferredAckTo != nil {
			cfg.emitDeferredAck(record)
		}
	}
}

func (cfg DrainConfig) emitDeferredAck(record []byte) {
	inner, ok := mllpframe.Unwrap(record)
	if !ok {
		inner = record
	}

	target := cfg.DeferredAckTo.Get()
	if target == nil {
		return
	}

	ack := ackbuilder.Build(inner, cfg.Settings)
	if err := target.Write(mllpframe.Frame(ack)); err != nil {
		cfg.Log.Warn().Err(err).Msg("deferred ack write failed")
		return
	}
	cfg.Metrics.Acked("analyzer")
}

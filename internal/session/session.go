// Package session drives one connected peer, grounded on the teacher's
// mllp.Handler loop (deframe, classify, act) but generalized to the
// proxy's forward/enqueue/ACK semantics instead of a single in-process
// handler callback.
package session

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/d3sync/hl7proxy/internal/ackbuilder"
	"github.com/d3sync/hl7proxy/internal/ackpolicy"
	"github.com/d3sync/hl7proxy/internal/config"
	"github.com/d3sync/hl7proxy/internal/connector"
	"github.com/d3sync/hl7proxy/internal/hl7msg"
	"github.com/d3sync/hl7proxy/internal/metrics"
	"github.com/d3sync/hl7proxy/internal/mllpframe"
	"github.com/d3sync/hl7proxy/internal/peerstream"
	"github.com/d3sync/hl7proxy/internal/retryqueue"
)

// Config wires one side's session to its opposite side's resources.
type Config struct {
	Side      ackpolicy.Side
	SideLabel string
	Direction config.ProxyDirection
	Settings  config.Settings

	DestSlot  *peerstream.Slot
	DestQueue *retryqueue.Queue

	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

// Run deframes records from stream until it closes or ctx is cancelled,
// classifying and acting on each per spec.md §4.4. It returns nil on a
// clean peer disconnect (EOF) and a non-nil error on anything else.
func Run(ctx context.Context, stream *peerstream.Stream, cfg Config) error {
	if connID := connector.ConnID(ctx); connID != "" {
		cfg.Log = cfg.Log.With().Str("connId", connID).Logger()
	}

	reader := mllpframe.NewReader(stream.Reader(), 0)

	// Closing the stream on cancellation unblocks a ReadRecord that is
	// waiting on the peer.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-stop:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, err := reader.ReadRecord()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				cfg.Log.Debug().Str("side", cfg.SideLabel).Msg("peer stream closed")
				return nil
			}
			return err
		}

		if hl7msg.IsAck(payload) {
			// P1: ACK-classified records never forward and never enqueue.
			cfg.Log.Debug().Str("side", cfg.SideLabel).Msg("dropping inbound ack")
			continue
		}

		cfg.handleApplicationRecord(payload, stream)
	}
}

func (cfg Config) handleApplicationRecord(payload []byte, stream *peerstream.Stream) {
	destConnected := cfg.DestSlot.Get() != nil
	timing := ackpolicy.For(cfg.Direction, cfg.Side, destConnected)
	framed := mllpframe.Frame(payload)

	switch timing {
	case ackpolicy.Now:
		cfg.writeAck(payload, stream)
		cfg.forwardOrEnqueue(framed)

	case ackpolicy.AfterForward:
		if cfg.forwardOrEnqueue(framed) {
			cfg.writeAck(payload, stream)
		}
		// Forward failed or the dest vanished between the check and the
		// write: the record is now queued and will carry its own ACK
		// when the drain delivers it (see drain.go).

	case ackpolicy.Deferred:
		cfg.DestQueue.Push(framed)
		cfg.Metrics.Enqueued(cfg.SideLabel)
	}

	cfg.Metrics.SetQueueDepth(cfg.SideLabel, cfg.DestQueue.Len())
}

// forwardOrEnqueue implements I3: write directly if the destination is
// connected, else enqueue; never both. A write failure demotes to enqueue.
//
// Per spec.md §5 "Ordering", a direct forward that raced a nonempty queue
// could otherwise land on the wire ahead of older queued records. This
// applies the spec's recommended fix: if the queue is already nonempty,
// a direct forward enqueues instead of writing, so the drain is the only
// thing that ever empties the queue and total order is preserved.
func (cfg Config) forwardOrEnqueue(framed []byte) bool {
	dest := cfg.DestSlot.Get()
	if dest == nil || cfg.DestQueue.Len() > 0 {
		cfg.DestQueue.Push(framed)
		cfg.Metrics.Enqueued(cfg.SideLabel)
		return false
	}
	if err := dest.Write(framed); err != nil {
		cfg.Log.Warn().Err(err).Str("side", cfg.SideLabel).Msg("forward failed, enqueued")
		cfg.DestSlot.Set(nil)
		cfg.DestQueue.Push(framed)
		cfg.Metrics.Enqueued(cfg.SideLabel)
		return false
	}
	cfg.Metrics.Forwarded(cfg.SideLabel)
	return true
}

// writeAck builds and writes a local ACK for payload back onto stream.
// Per spec.md §7, a failed ACK write is logged only: the inbound record
// is not retried, the peer is expected to resend.
func (cfg Config) writeAck(payload []byte, stream *peerstream.Stream) {
	ack := ackbuilder.Build(payload, cfg.Settings)
	if err := stream.Write(mllpframe.Frame(ack)); err != nil {
		cfg.Log.Warn().Err(err).Str("side", cfg.SideLabel).Msg("ack write failed")
		return
	}
	cfg.Metrics.Acked(cfg.SideLabel)
}

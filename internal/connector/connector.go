// Package connector implements spec.md §4.3's two endpoint variants:
// a passive side that accepts and publishes whichever peer connected
// most recently, and an active side that dials with a 1-second retry,
// grounded on the accept-loop/dial-loop shape of the teacher's
// mllp/server.go and mllp/client.go.
package connector

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/d3sync/hl7proxy/internal/metrics"
	"github.com/d3sync/hl7proxy/internal/peerstream"
)

// RedialDelay is the pause between failed dial attempts and between one
// active-side session ending and the next dial (spec.md §4.3, §3).
const RedialDelay = time.Second

// SessionFunc drives one connected peer stream until it disconnects.
type SessionFunc func(ctx context.Context, stream *peerstream.Stream)

// Passive listens on addr, accepting connections until ctx is cancelled.
// Each accepted connection becomes the side's current stream and gets its
// own session; an older session, if still running, keeps going until its
// peer closes, but writers only ever target the most recent stream
// (spec.md §4.3).
func Passive(ctx context.Context, addr string, slot *peerstream.Slot, sideLabel string, m *metrics.Metrics, log zerolog.Logger, run SessionFunc) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Error().Err(err).Str("side", sideLabel).Msg("accept failed")
				continue
			}
		}

		stream := peerstream.Wrap(conn)
		slot.Set(stream)
		m.SetConnected(sideLabel, true)
		connCtx := withConnID(ctx)
		log.Info().Str("side", sideLabel).Str("remote", stream.RemoteAddr()).Str("connId", ConnID(connCtx)).Msg("accepted connection")

		go func() {
			run(connCtx, stream)
			stream.Close()
			if slot.Get() == stream {
				slot.Set(nil)
				m.SetConnected(sideLabel, false)
			}
		}()
	}
}

// Active dials host:port, redialing every RedialDelay on failure or after
// a session ends, until ctx is cancelled (spec.md §4.3, §3).
func Active(ctx context.Context, addr string, slot *peerstream.Slot, sideLabel string, m *metrics.Metrics, log zerolog.Logger, run SessionFunc) error {
	dialer := net.Dialer{}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			log.Warn().Err(err).Str("side", sideLabel).Msg("dial failed, retrying")
			if !sleepOrDone(ctx, RedialDelay) {
				return nil
			}
			continue
		}

		stream := peerstream.Wrap(conn)
		slot.Set(stream)
		m.SetConnected(sideLabel, true)
		connCtx := withConnID(ctx)
		log.Info().Str("side", sideLabel).Str("remote", stream.RemoteAddr()).Str("connId", ConnID(connCtx)).Msg("dialed connection")

		run(connCtx, stream)

		stream.Close()
		if slot.Get() == stream {
			slot.Set(nil)
			m.SetConnected(sideLabel, false)
		}

		if !sleepOrDone(ctx, RedialDelay) {
			return nil
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

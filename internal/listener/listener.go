// Package listener implements the standalone listener mode of spec.md
// §4.6: an accept loop, one connection handled per goroutine, filtering
// inbound records by AllowedEvents before ACKing.
//
// Per spec.md §9's open question on "MSH parsing of ACK replies", this
// always uses the §4.2 ackbuilder rather than the reference's field-9
// overwrite, which the spec calls out as a bug producing a malformed
// ACK (wrong message type, no MSA segment). That overwrite behavior is
// intentionally not reproduced here.
package listener

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/d3sync/hl7proxy/internal/ackbuilder"
	"github.com/d3sync/hl7proxy/internal/config"
	"github.com/d3sync/hl7proxy/internal/hl7msg"
	"github.com/d3sync/hl7proxy/internal/metrics"
	"github.com/d3sync/hl7proxy/internal/mllpframe"
)

// Listener serves spec.md §4.6's standalone Server mode.
type Listener struct {
	settings config.Settings
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// New builds a Listener.
func New(settings config.Settings, m *metrics.Metrics, log zerolog.Logger) *Listener {
	return &Listener{settings: settings, metrics: m, log: log}
}

// Run accepts connections on settings.Port until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", l.settings.Port))
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
				l.log.Error().Err(err).Msg("listener accept failed")
				continue
			}
		}
		go l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	defer conn.Close()

	reader := mllpframe.NewReader(conn, 0)
	writer := mllpframe.NewWriter(conn)

	for {
		payload, err := reader.ReadRecord()
		if err != nil {
			return
		}

		msgType := hl7msg.Parse(payload).MessageType()
		if !l.settings.AllowsEvent(msgType) {
			l.log.Debug().Str("messageType", msgType).Msg("event not in AllowedEvents, not acking")
			if l.settings.DisconnectAfterAck {
				return
			}
			continue
		}

		ack := ackbuilder.Build(payload, l.settings)
		if err := writer.WriteRecord(ack); err != nil {
			l.log.Warn().Err(err).Msg("listener ack write failed")
			return
		}
		l.metrics.Acked("listener")

		if l.settings.DisconnectAfterAck {
			return
		}
	}
}

// Package stdinclient implements spec.md §4.7's standalone Client mode:
// a dial loop (via internal/connector) running two concurrent activities
// per stream, an interactive terminal producer and an ACK-generating
// receive task.
package stdinclient

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/d3sync/hl7proxy/internal/ackbuilder"
	"github.com/d3sync/hl7proxy/internal/config"
	"github.com/d3sync/hl7proxy/internal/connector"
	"github.com/d3sync/hl7proxy/internal/hl7msg"
	"github.com/d3sync/hl7proxy/internal/metrics"
	"github.com/d3sync/hl7proxy/internal/mllpframe"
	"github.com/d3sync/hl7proxy/internal/peerstream"
)

// Client is the standalone interactive client.
type Client struct {
	settings config.Settings
	metrics  *metrics.Metrics
	log      zerolog.Logger
	in       io.Reader
}

// New builds a Client reading pasted HL7 text from stdin.
func New(settings config.Settings, m *metrics.Metrics, log zerolog.Logger) *Client {
	return &Client{settings: settings, metrics: m, log: log, in: os.Stdin}
}

// Run dials settings.ClientHost:ClientPort, redialing every second on
// failure or disconnect, until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.settings.ClientHost, c.settings.ClientPort)
	slot := peerstream.NewSlot()

	return connector.Active(ctx, addr, slot, "client", c.metrics, c.log, func(ctx context.Context, stream *peerstream.Stream) {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.produce(ctx, stream)
		}()
		go func() {
			defer wg.Done()
			c.receive(ctx, stream)
		}()
		wg.Wait()
	})
}

// produce reads pasted HL7 text line by line, joining lines with 0x0D
// segment terminators, and frames+writes a message on each blank line or
// at EOF.
func (c *Client) produce(ctx context.Context, stream *peerstream.Stream) {
	scanner := bufio.NewScanner(c.in)
	var segments []string

	flush := func() {
		if len(segments) == 0 {
			return
		}
		payload := strings.Join(segments, "\r") + "\r"
		if err := stream.Write(mllpframe.Frame([]byte(payload))); err != nil {
			c.log.Warn().Err(err).Msg("client write failed")
		}
		segments = nil
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		segments = append(segments, line)
	}
	flush()
}

// receive deframes inbound records and replies with an ACK for each,
// closing the stream after the first ACK when DisconnectAfterAck is set.
func (c *Client) receive(ctx context.Context, stream *peerstream.Stream) {
	reader := mllpframe.NewReader(stream.Reader(), 0)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := reader.ReadRecord()
		if err != nil {
			return
		}

		controlID := hl7msg.ExtractControlID(payload)
		ack := ackbuilder.Build(payload, c.settings)
		if err := stream.Write(mllpframe.Frame(ack)); err != nil {
			c.log.Warn().Err(err).Str("controlId", controlID).Msg("client ack write failed")
			return
		}
		c.metrics.Acked("client")

		if c.settings.DisconnectAfterAck {
			stream.Close()
			return
		}
	}
}

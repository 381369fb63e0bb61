package stdinclient

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/d3sync/hl7proxy/internal/config"
	"github.com/d3sync/hl7proxy/internal/hl7msg"
	"github.com/d3sync/hl7proxy/internal/mllpframe"
	"github.com/d3sync/hl7proxy/internal/peerstream"
)

func TestProduceFramesOnBlankLine(t *testing.T) {
	in := strings.NewReader("MSH|^~\\&|ANA|F1|LIS|F2|20240101||ORU^R01|9|P|2.3.1\nPID|1\n\n")

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	c := &Client{settings: config.Defaults(), log: zerolog.Nop(), in: in}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.produce(ctx, peerstream.Wrap(clientConn))

	serverConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	rec, err := mllpframe.NewReader(serverConn, 0).ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord() error = %v", err)
	}
	v := hl7msg.Parse(rec)
	if v.ControlID() != "9" {
		t.Errorf("ControlID() = %q, want 9", v.ControlID())
	}
}

func TestReceiveAcksAndClosesOnDisconnectAfterAck(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()

	settings := config.Defaults()
	settings.DisconnectAfterAck = true
	c := &Client{settings: settings, log: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.receive(ctx, peerstream.Wrap(clientConn))

	msg := "MSH|^~\\&|LIS|F2|ANA|F1|20240101||ORU^R01|4|P|2.3.1\rPID|1\r"
	if err := mllpframe.NewWriter(serverConn).WriteRecord([]byte(msg)); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}

	serverConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	ack, err := mllpframe.NewReader(serverConn, 0).ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord() error = %v", err)
	}
	v := hl7msg.Parse(ack)
	if v.ControlID() != "4" {
		t.Errorf("ControlID() = %q, want 4", v.ControlID())
	}

	serverConn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := serverConn.Read(buf); err == nil {
		t.Error("expected the stream to close after the ack, but read succeeded")
	}
}

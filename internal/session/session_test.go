package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/d3sync/hl7proxy/internal/ackpolicy"
	"github.com/d3sync/hl7proxy/internal/config"
	"github.com/d3sync/hl7proxy/internal/hl7msg"
	"github.com/d3sync/hl7proxy/internal/mllpframe"
	"github.com/d3sync/hl7proxy/internal/peerstream"
	"github.com/d3sync/hl7proxy/internal/retryqueue"
)

const oruRecord = "MSH|^~\\&|ANA|F1|LIS|F2|20240101000000||ORU^R01|123|P|2.3.1\rPID|1\r"

func readRecord(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := mllpframe.NewReader(conn, 0)
	rec, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord() error = %v", err)
	}
	return rec
}

func TestRunPolicyAAcksThenForwards(t *testing.T) {
	analyzerLocal, analyzerRemote := net.Pipe()
	defer analyzerLocal.Close()
	defer analyzerRemote.Close()

	lisSlot := peerstream.NewSlot()
	lisLocal, lisRemote := net.Pipe()
	defer lisLocal.Close()
	defer lisRemote.Close()
	lisSlot.Set(peerstream.Wrap(lisLocal))

	cfg := Config{
		Side:      ackpolicy.Analyzer,
		SideLabel: "analyzer",
		Direction: config.DirListenerToClient,
		Settings:  config.Defaults(),
		DestSlot:  lisSlot,
		DestQueue: retryqueue.New(0),
		Log:       zerolog.Nop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Run(ctx, peerstream.Wrap(analyzerRemote), cfg)

	go func() {
		mllpframe.NewWriter(analyzerLocal).WriteRecord([]byte(oruRecord))
	}()

	ackFrame := readRecord(t, analyzerLocal)
	v := hl7msg.Parse(ackFrame)
	if v.MessageType() != "ACK^R01" {
		t.Errorf("ack MessageType() = %q, want ACK^R01", v.MessageType())
	}
	if v.ControlID() != "123" {
		t.Errorf("ack ControlID() = %q, want 123", v.ControlID())
	}

	forwarded := readRecord(t, lisRemote)
	if string(forwarded) != oruRecord {
		t.Errorf("forwarded = %q, want original record unchanged", forwarded)
	}
}

func TestRunDropsInboundAck(t *testing.T) {
	lisLocal, lisRemote := net.Pipe()
	defer lisLocal.Close()
	defer lisRemote.Close()

	analyzerSlot := peerstream.NewSlot()
	analyzerLocal, analyzerRemote := net.Pipe()
	defer analyzerLocal.Close()
	defer analyzerRemote.Close()
	analyzerSlot.Set(peerstream.Wrap(analyzerLocal))

	cfg := Config{
		Side:      ackpolicy.LIS,
		SideLabel: "lis",
		Direction: config.DirListenerToClient,
		Settings:  config.Defaults(),
		DestSlot:  analyzerSlot,
		DestQueue: retryqueue.New(0),
		Log:       zerolog.Nop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Run(ctx, peerstream.Wrap(lisRemote), cfg) }()

	ackFromLIS := "MSH|^~\\&|LIS|F2|ANA|F1|20240101||ACK^R01|1|P|2.3.1\rMSA|AA|1\r"
	if err := mllpframe.NewWriter(lisLocal).WriteRecord([]byte(ackFromLIS)); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}

	analyzerRemote.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 1)
	if _, err := analyzerRemote.Read(buf); err == nil {
		t.Fatal("expected no bytes forwarded to the analyzer for an inbound ACK")
	}
}

func TestPolicyBAnalyzerDeferredUntilLISReconnects(t *testing.T) {
	analyzerLocal, analyzerRemote := net.Pipe()
	defer analyzerLocal.Close()
	defer analyzerRemote.Close()

	lisSlot := peerstream.NewSlot() // LIS starts disconnected

	queue := retryqueue.New(0)
	cfg := Config{
		Side:      ackpolicy.Analyzer,
		SideLabel: "analyzer",
		Direction: config.DirClientToListener,
		Settings:  config.Defaults(),
		DestSlot:  lisSlot,
		DestQueue: queue,
		Log:       zerolog.Nop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Run(ctx, peerstream.Wrap(analyzerRemote), cfg)

	if err := mllpframe.NewWriter(analyzerLocal).WriteRecord([]byte(oruRecord)); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}

	analyzerLocal.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 1)
	if _, err := analyzerLocal.Read(buf); err == nil {
		t.Fatal("expected no immediate ack to the analyzer while LIS is down (P7)")
	}

	deadline := time.Now().Add(time.Second)
	for queue.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if queue.Len() != 1 {
		t.Fatalf("queue.Len() = %d, want 1", queue.Len())
	}
}

package ackbuilder

import (
	"strings"
	"testing"
	"time"

	"github.com/d3sync/hl7proxy/internal/config"
	"github.com/d3sync/hl7proxy/internal/hl7msg"
)

func withFixedClock(t *testing.T, ts time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = orig })
}

func TestBuildSwapsSendingAndReceiving(t *testing.T) {
	withFixedClock(t, time.Date(2024, 3, 2, 13, 4, 5, 0, time.UTC))

	incoming := []byte("MSH|^~\\&|ANA|F1|LIS|F2|20240101000000||ORU^R01|123|P|2.3.1\rPID|1\r")
	s := config.Defaults()
	s.AckMode = "AA"
	s.MessageDateTimeFormat = "yyyy-MM-dd HH:mm:ss"

	got := Build(incoming, s)
	v := hl7msg.Parse(got)

	if !v.HasMSH() {
		t.Fatalf("Build() produced no MSH segment: %q", got)
	}
	if sa := v.SendingApplication(); sa != "LIS" {
		t.Errorf("SendingApplication() = %q, want LIS (incoming receiving app)", sa)
	}
	if sf := v.SendingFacility(); sf != "F2" {
		t.Errorf("SendingFacility() = %q, want F2", sf)
	}
	if ra := v.ReceivingApplication(); ra != "ANA" {
		t.Errorf("ReceivingApplication() = %q, want ANA", ra)
	}
	if rf := v.ReceivingFacility(); rf != "F1" {
		t.Errorf("ReceivingFacility() = %q, want F1", rf)
	}
	if mt := v.MessageType(); mt != "ACK^R01" {
		t.Errorf("MessageType() = %q, want ACK^R01", mt)
	}
	if cid := v.ControlID(); cid != "123" {
		t.Errorf("ControlID() = %q, want 123", cid)
	}
	if !strings.Contains(string(got), "2024-03-02 13:04:05") {
		t.Errorf("Build() = %q, want timestamp 2024-03-02 13:04:05", got)
	}
	if !strings.Contains(string(got), "MSA|AA|123\r") {
		t.Errorf("Build() = %q, want MSA|AA|123", got)
	}
}

func TestBuildFallsBackToSettingsWhenIncomingFieldsEmpty(t *testing.T) {
	withFixedClock(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	incoming := []byte("MSH|^~\\&||||||ORU^R01|77|P|2.3.1\r")
	s := config.Defaults()
	s.SendingApplication = "PROXY"
	s.SendingFacility = "PROXYFAC"
	s.ReceivingApplication = "LIS"
	s.ReceivingFacility = "LISFAC"

	got := Build(incoming, s)
	v := hl7msg.Parse(got)

	if sa := v.SendingApplication(); sa != "PROXY" {
		t.Errorf("SendingApplication() = %q, want PROXY (falls back to settings.SendingApplication)", sa)
	}
	if ra := v.ReceivingApplication(); ra != "LIS" {
		t.Errorf("ReceivingApplication() = %q, want LIS (falls back to settings.ReceivingApplication)", ra)
	}
}

func TestBuildReusesIncomingEncodingCharacters(t *testing.T) {
	// Non-default encoding characters (component separator changed from
	// '^' to '@') must be echoed into the ACK's MSH-2, not overwritten
	// with hl7msg.DefaultEncodingCharacters.
	incoming := []byte("MSH|@~\\&|ANA|F1|LIS|F2|20240101000000||ORU^R01|123|P|2.3.1\rPID|1\r")
	s := config.Defaults()

	got := Build(incoming, s)
	if !strings.Contains(string(got), "MSH|@~\\&|") {
		t.Errorf("Build() = %q, want MSH-2 to echo incoming encoding characters @~\\&", got)
	}
}

func TestBuildWithoutMSHUsesDefaultsAndEmptyControlID(t *testing.T) {
	s := config.Defaults()
	got := Build([]byte("PID|1\r"), s)
	v := hl7msg.Parse(got)

	if !v.HasMSH() {
		t.Fatalf("Build() should always emit an MSH segment, got %q", got)
	}
	if cid := v.ControlID(); cid != "" {
		t.Errorf("ControlID() = %q, want empty when incoming has no MSH", cid)
	}
	if mt := v.MessageType(); mt != "ACK^R01" {
		t.Errorf("MessageType() = %q, want ACK^R01", mt)
	}
}

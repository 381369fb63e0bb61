// Package ackbuilder constructs HL7 ACK^R01 replies, grounded on the
// MSH/MSA-swap logic in the teacher's ack package (buildMSHSegment /
// buildMSASegment in ack/ack.go) but adapted to the minimal hl7msg.View
// and to spec.md §4.2's exact field layout instead of the teacher's full
// typed-segment model.
package ackbuilder

import (
	"fmt"
	"strings"
	"time"

	"github.com/d3sync/hl7proxy/internal/config"
	"github.com/d3sync/hl7proxy/internal/hl7msg"
)

// now is overridable in tests, mirroring the teacher ack package's
// WithTimeFunc option.
var now = time.Now

// Build produces an ACK^R01 payload (HL7 text, no MLLP framing) for the
// given inbound payload, per spec.md §4.2:
//
//   - reuses the incoming field separator and encoding characters when an
//     MSH segment is present, else falls back to the defaults;
//   - swaps sending/receiving application & facility (incoming 3,4,5,6 ->
//     outgoing 5,6,3,4), falling back to settings defaults when the
//     incoming fields are empty;
//   - timestamps MSH-7 with the local time formatted per
//     settings.MessageDateTimeFormat;
//   - echoes the incoming control ID into MSH-10 and MSA-2;
//   - sets processing ID "P" and version "2.3.1".
//
// When the incoming payload has no MSH segment, defaults are used
// throughout and the control ID is empty (spec.md §7 "Parse failure on MSH
// absent").
func Build(incoming []byte, s config.Settings) []byte {
	v := hl7msg.Parse(incoming)

	sep := string(v.FieldSeparator())
	encoding := firstNonEmpty(v.EncodingCharacters(), hl7msg.DefaultEncodingCharacters)

	sendingApp := firstNonEmpty(v.ReceivingApplication(), s.SendingApplication)
	sendingFacility := firstNonEmpty(v.ReceivingFacility(), s.SendingFacility)
	receivingApp := firstNonEmpty(v.SendingApplication(), s.ReceivingApplication)
	receivingFacility := firstNonEmpty(v.SendingFacility(), s.ReceivingFacility)

	controlID := v.ControlID()
	timestamp := now().Format(goLayout(s.MessageDateTimeFormat))

	// MSH-3..MSH-12, joined by the field separator. MSH-1 (the separator
	// itself) and MSH-2 (encoding characters) are written explicitly since
	// they are not regular delimited tokens.
	fields := []string{
		sendingApp, sendingFacility, // MSH-3, MSH-4
		receivingApp, receivingFacility, // MSH-5, MSH-6
		timestamp, // MSH-7
		"",        // MSH-8 (security)
		"ACK^R01", // MSH-9
		controlID, // MSH-10
		"P",       // MSH-11 (processing ID)
		"2.3.1",   // MSH-12 (version ID)
	}

	var b strings.Builder
	b.WriteString("MSH")
	b.WriteString(sep)
	b.WriteString(encoding)
	for _, f := range fields {
		b.WriteString(sep)
		b.WriteString(f)
	}
	b.WriteByte('\r')

	fmt.Fprintf(&b, "MSA%s%s%s%s\r", sep, s.AckMode, sep, controlID)

	return []byte(b.String())
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// goLayout translates a Java/.NET-style date pattern (the vocabulary
// spec.md §6 uses for MessageDateTimeFormat, e.g. "yyyy-MM-dd HH:mm:ss")
// into a Go reference-time layout. Unrecognized runs of characters pass
// through unchanged, which keeps literal separators like "-" and ":" intact.
func goLayout(pattern string) string {
	replacer := strings.NewReplacer(
		"yyyy", "2006",
		"MM", "01",
		"dd", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
	)
	return replacer.Replace(pattern)
}

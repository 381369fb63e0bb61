// Package hl7msg provides the minimal HL7 v2 parsing this proxy needs: just
// enough of the MSH segment to classify a record as an ACK or an
// application message and to build a local ACK reply. It intentionally
// does not implement a general HL7 object model (components, repetitions,
// typed segments) — spec scope stops at MSH, its field separator,
// sending/receiving app & facility, message type, and control ID.
package hl7msg

import "bytes"

// SegmentTerminator separates HL7 segments within a payload.
const SegmentTerminator = '\r'

// DefaultFieldSeparator is used when no MSH segment is present to parse one from.
const DefaultFieldSeparator = '|'

// DefaultEncodingCharacters is MSH-2's default value (component, repetition,
// escape, subcomponent).
const DefaultEncodingCharacters = "^~\\&"

// View is a read-only, derived look at an HL7 payload's MSH segment.
// It is built once per inbound record and never mutated.
type View struct {
	segments  [][]byte
	msh       []byte   // the MSH segment, or nil if absent
	fieldSep  byte     // MSH field separator, DefaultFieldSeparator if msh is nil
	mshFields [][]byte // msh split on fieldSep; mshFields[n-1] is MSH-n for n>=2
}

// Parse derives a View from a raw HL7 payload (no MLLP framing).
func Parse(payload []byte) *View {
	segments := bytes.Split(payload, []byte{SegmentTerminator})

	v := &View{
		segments: segments,
		fieldSep: DefaultFieldSeparator,
	}

	for _, seg := range segments {
		if len(seg) >= 3 && seg[0] == 'M' && seg[1] == 'S' && seg[2] == 'H' {
			v.msh = seg
			break
		}
	}

	if v.msh == nil || len(v.msh) < 4 {
		return v
	}

	v.fieldSep = v.msh[3]
	v.mshFields = bytes.Split(v.msh, []byte{v.fieldSep})
	return v
}

// HasMSH reports whether an MSH segment was found.
func (v *View) HasMSH() bool {
	return v.msh != nil
}

// FieldSeparator returns the MSH field separator, or DefaultFieldSeparator
// when no MSH segment was present.
func (v *View) FieldSeparator() byte {
	return v.fieldSep
}

// EncodingCharacters returns MSH-2, or "" if the MSH segment is absent or
// short.
func (v *View) EncodingCharacters() string { return v.mshField(2) }

// mshField returns MSH-n (1-based, HL7 numbering) as a string, or "" if
// absent or out of range. MSH-1 is the field separator itself since it is
// consumed as the delimiter when splitting, not a token.
func (v *View) mshField(n int) string {
	if n == 1 {
		if v.msh == nil {
			return ""
		}
		return string(v.fieldSep)
	}
	idx := n - 1
	if idx < 0 || idx >= len(v.mshFields) {
		return ""
	}
	return string(v.mshFields[idx])
}

// SendingApplication returns MSH-3.
func (v *View) SendingApplication() string { return v.mshField(3) }

// SendingFacility returns MSH-4.
func (v *View) SendingFacility() string { return v.mshField(4) }

// ReceivingApplication returns MSH-5.
func (v *View) ReceivingApplication() string { return v.mshField(5) }

// ReceivingFacility returns MSH-6.
func (v *View) ReceivingFacility() string { return v.mshField(6) }

// MessageType returns MSH-9.
func (v *View) MessageType() string { return v.mshField(9) }

// ControlID returns MSH-10, or "" if the MSH segment is absent or short.
func (v *View) ControlID() string { return v.mshField(10) }

// ProcessingID returns MSH-11.
func (v *View) ProcessingID() string { return v.mshField(11) }

// IsAck reports whether the message type (MSH-9) begins with "ACK".
func (v *View) IsAck() bool {
	t := v.MessageType()
	return len(t) >= 3 && t[:3] == "ACK"
}

// ExtractControlID is a package-level convenience matching spec.md §4.2's
// ExtractControlId(payload) operation.
func ExtractControlID(payload []byte) string {
	return Parse(payload).ControlID()
}

// IsAck is a package-level convenience matching spec.md §4.2's
// IsAck(payload) operation.
func IsAck(payload []byte) bool {
	return Parse(payload).IsAck()
}

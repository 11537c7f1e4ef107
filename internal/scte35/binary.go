package scte35

import (
	"encoding/hex"
	"fmt"
	"time"
)

// Binary-form segmentation_type_id values that open or close an avail
// (SCTE 35 Table 22). Only the values actually seen from ad-decisioning
// origins are enumerated; anything else decodes as SignalCmd.
var segmentationStartTypes = map[uint8]bool{
	0x22: true, // Break Start
	0x30: true, // Provider Advertisement Start
	0x32: true, // Distributor Advertisement Start
	0x34: true, // Provider Placement Opportunity Start
	0x36: true, // Distributor Placement Opportunity Start
	0x44: true, // Unscheduled Event Start
	0x46: true, // Network Start
}

var segmentationEndTypes = map[uint8]bool{
	0x23: true, // Break End
	0x31: true, // Provider Advertisement End
	0x33: true, // Distributor Advertisement End
	0x35: true, // Provider Placement Opportunity End
	0x37: true, // Distributor Placement Opportunity End
	0x45: true, // Unscheduled Event End
	0x47: true, // Network End
}

// cueIdentifier is the 32-bit "CUEI" identifier required at the start of
// every splice_descriptor().
const cueIdentifier = 0x43554549

// DecodeBinary parses a base64-or-hex-free splice_info_section byte buffer
// (already base64-decoded by the caller) into a Signal, per SCTE 35 §9.
// CRC failure does not abort parsing: the Signal is returned with
// CRCValid=false so the caller can decide policy (spec §4.2).
func DecodeBinary(b []byte) (*Signal, error) {
	if len(b) < 14 {
		return nil, fmt.Errorf("scte35: splice_info_section too short (%d bytes)", len(b))
	}

	r := newBitReader(b)
	tableID := r.uint8(8)
	if tableID != 0xFC {
		return nil, fmt.Errorf("scte35: unexpected table_id %#02x, want 0xfc", tableID)
	}
	r.skip(1) // section_syntax_indicator
	r.skip(1) // private_indicator
	r.skip(2) // sap_type
	r.skip(12) // section_length, informative

	r.skip(8) // protocol_version
	encryptedPacket := r.bit()
	r.skip(6) // encryption_algorithm
	ptsAdjustment := r.uint64(33)
	r.skip(8) // cw_index
	tier := r.uint16(12)

	spliceCommandLength := int(r.uint32(12))
	spliceCommandType := SpliceCommandType(r.uint8(8))

	sig := &Signal{
		Command:    spliceCommandType,
		Tier:       tier,
		RawHex:     hex.EncodeToString(b),
		ReceivedAt: time.Now(),
	}
	if ptsAdjustment != 0 {
		adj := TicksToDuration(ptsAdjustment)
		_ = adj // pts_adjustment informs downstream PTS math, not exposed on Signal directly
	}

	cmdStart := r.pos
	if err := decodeCommandBody(sig, r); err != nil {
		return nil, fmt.Errorf("scte35: decode splice command: %w", err)
	}
	if r.err != nil {
		return nil, r.err
	}

	// Standard (non-legacy) encoders declare an exact splice_command_length;
	// realign to it in case a command type we don't fully model left bits
	// unconsumed. 0xFFF marks a legacy signal with no declared length, so the
	// reader position from decoding is authoritative instead.
	if spliceCommandLength != 0xFFF {
		r.pos = cmdStart + spliceCommandLength*8
	}

	descriptorLoopLength := int(r.uint32(16))
	descBytes := r.bytes(descriptorLoopLength)
	if r.err != nil {
		return nil, r.err
	}
	if err := decodeDescriptors(sig, descBytes); err != nil {
		return nil, fmt.Errorf("scte35: decode splice descriptors: %w", err)
	}

	if encryptedPacket {
		stuffed := (r.bitsLeft() - 64) / 8
		if stuffed > 0 {
			r.bytes(stuffed)
		}
		r.bytes(4) // E_CRC_32, not verified
	} else {
		stuffed := (r.bitsLeft() - 32) / 8
		if stuffed > 0 {
			r.bytes(stuffed)
		}
	}
	crcBytes := r.bytes(4)
	if r.err != nil {
		return nil, r.err
	}
	wantCRC := uint32(crcBytes[0])<<24 | uint32(crcBytes[1])<<16 | uint32(crcBytes[2])<<8 | uint32(crcBytes[3])
	gotCRC := crc32MPEG(b[:len(b)-4])
	sig.CRCValid = gotCRC == wantCRC

	if sig.EventID == "" {
		// splice_null / bandwidth_reservation carry no event id.
		sig.Type = SignalCmd
	}
	return sig, nil
}

// decodeCommandBody fills in Signal fields from a splice_command() body
// whose type has already been read into sig.Command. r is positioned at the
// first bit of the command body and is advanced past it.
func decodeCommandBody(sig *Signal, r *bitReader) error {
	switch sig.Command {
	case CommandSpliceNull, CommandBandwidthReservation, CommandPrivate:
		sig.Type = SignalCmd
		return nil
	case CommandSpliceInsert:
		return decodeSpliceInsert(sig, r)
	case CommandTimeSignal:
		pts, ok := decodeSpliceTime(r)
		if ok {
			sig.PTSTicks = &pts
		}
		// time_signal carries no avail boundary by itself; the accompanying
		// segmentation_descriptor (decoded separately) supplies OUT/IN.
		sig.Type = SignalCmd
		return r.err
	case CommandSpliceSchedule:
		sig.Type = SignalCmd
		return nil
	default:
		sig.Type = SignalCmd
		return nil
	}
}

// decodeSpliceTime reads a splice_time() structure: a 1-bit
// time_specified_flag followed by either 6 reserved bits + a 33-bit
// pts_time, or 7 reserved bits.
func decodeSpliceTime(r *bitReader) (uint64, bool) {
	timeSpecified := r.bit()
	if !timeSpecified {
		r.skip(7)
		return 0, false
	}
	r.skip(6)
	return r.uint64(33), true
}

func decodeSpliceInsert(sig *Signal, r *bitReader) error {
	eventID := r.uint32(32)
	sig.EventID = fmt.Sprintf("%d", eventID)
	cancel := r.bit()
	r.skip(7)
	if cancel {
		sig.Type = SignalIn
		return r.err
	}

	sig.OutOfNetwork = r.bit()
	programSpliceFlag := r.bit()
	durationFlag := r.bit()
	immediate := r.bit()
	r.skip(4)

	if programSpliceFlag && !immediate {
		pts, ok := decodeSpliceTime(r)
		if ok {
			sig.PTSTicks = &pts
		}
	}
	if !programSpliceFlag {
		componentCount := int(r.uint8(8))
		for i := 0; i < componentCount; i++ {
			r.skip(8) // component_tag
			if !immediate {
				decodeSpliceTime(r)
			}
		}
	}
	if durationFlag {
		sig.AutoReturn = r.bit()
		r.skip(6)
		ticks := r.uint64(33)
		d := TicksToDuration(ticks)
		sig.Duration = &d
	}
	r.skip(16) // unique_program_id
	r.skip(8)  // avail_num
	r.skip(8)  // avails_expected

	if sig.OutOfNetwork {
		sig.Type = SignalOut
	} else {
		sig.Type = SignalIn
	}
	return r.err
}

// decodeDescriptors scans the splice_descriptor() loop for a
// segmentation_descriptor (tag 0x02) and layers its event id, duration and
// UPID onto sig, refining the OUT/IN classification a time_signal alone
// cannot provide.
func decodeDescriptors(sig *Signal, b []byte) error {
	pos := 0
	for pos+2 <= len(b) {
		tag := b[pos]
		length := int(b[pos+1])
		pos += 2
		if pos+length > len(b) {
			return fmt.Errorf("scte35: descriptor length %d exceeds remaining buffer", length)
		}
		body := b[pos : pos+length]
		pos += length

		if tag != 0x02 || len(body) < 5 {
			continue
		}
		if err := decodeSegmentationDescriptor(sig, body); err != nil {
			return err
		}
	}
	return nil
}

func decodeSegmentationDescriptor(sig *Signal, b []byte) error {
	r := newBitReader(b)
	identifier := r.uint32(32)
	if identifier != cueIdentifier {
		return nil // not a CUEI-branded segmentation_descriptor, ignore
	}
	eventID := r.uint32(32)
	sig.EventID = fmt.Sprintf("%d", eventID)
	cancel := r.bit()
	r.skip(7)
	if cancel {
		return r.err
	}

	programSegmentationFlag := r.bit()
	durationFlag := r.bit()
	deliveryNotRestricted := r.bit()
	if !deliveryNotRestricted {
		r.skip(5) // web_delivery_allowed, no_regional_blackout, archive_allowed, device_restrictions
	} else {
		r.skip(5)
	}
	if !programSegmentationFlag {
		componentCount := int(r.uint8(8))
		for i := 0; i < componentCount; i++ {
			r.skip(8)  // component_tag
			r.skip(7)  // reserved
			r.skip(33) // pts_offset
		}
	}
	if durationFlag {
		ticks := r.uint64(40)
		d := TicksToDuration(ticks)
		sig.Duration = &d
	}
	upidType := r.uint8(8)
	upidLength := int(r.uint8(8))
	upid := r.bytes(upidLength)
	if r.err != nil {
		return r.err
	}
	typeID := r.uint8(8)

	if upidLength > 0 {
		sig.UPID = append([]byte(nil), upid...)
	}
	_ = upidType

	switch {
	case segmentationStartTypes[typeID]:
		sig.Type = SignalOut
		sig.OutOfNetwork = true
	case segmentationEndTypes[typeID]:
		sig.Type = SignalIn
	}
	return nil
}

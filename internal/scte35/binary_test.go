package scte35

import (
	"encoding/base64"
	"testing"
	"time"
)

// spliceInsertVector is a widely circulated SCTE-35 splice_insert example:
// event id 0x4800008f, tier 0xfff, out_of_network with a 33-bit PTS time and
// an auto-return break_duration of 5,426,421 ticks (~60.2936s).
const spliceInsertVector = "/DAvAAAAAAAA///wFAVIAACPf+/+c2nALv4AUsz1AAAAAAAKAAhDVUVJAAABNWLbowo="

func decodeVector(t *testing.T, b64 string) *Signal {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	sig, err := DecodeBinary(raw)
	if err != nil {
		t.Fatalf("DecodeBinary: %v", err)
	}
	return sig
}

func TestDecodeBinary_spliceInsert(t *testing.T) {
	sig := decodeVector(t, spliceInsertVector)

	if sig.EventID != "1207959695" {
		t.Errorf("EventID = %q, want %q", sig.EventID, "1207959695")
	}
	if sig.Command != CommandSpliceInsert {
		t.Errorf("Command = %v, want CommandSpliceInsert", sig.Command)
	}
	if sig.Type != SignalOut {
		t.Errorf("Type = %v, want SignalOut", sig.Type)
	}
	if !sig.OutOfNetwork {
		t.Error("OutOfNetwork = false, want true")
	}
	if sig.Tier != 0xfff {
		t.Errorf("Tier = %#x, want 0xfff", sig.Tier)
	}
	if sig.PTSTicks == nil || *sig.PTSTicks != 1936310318 {
		t.Errorf("PTSTicks = %v, want 1936310318", sig.PTSTicks)
	}
	if !sig.AutoReturn {
		t.Error("AutoReturn = false, want true")
	}
	if sig.Duration == nil {
		t.Fatal("Duration = nil, want ~60.2936s")
	}
	want := 60293566666 * time.Nanosecond
	if *sig.Duration != want {
		t.Errorf("Duration = %v, want %v", *sig.Duration, want)
	}
	if !sig.CRCValid {
		t.Error("CRCValid = false, want true")
	}
}

func TestDecodeBinary_badTableID(t *testing.T) {
	b := make([]byte, 20)
	b[0] = 0x00 // wrong table_id
	if _, err := DecodeBinary(b); err == nil {
		t.Error("DecodeBinary with bad table_id: want error, got nil")
	}
}

func TestDecodeBinary_tooShort(t *testing.T) {
	if _, err := DecodeBinary([]byte{0xfc, 0x30}); err == nil {
		t.Error("DecodeBinary with short buffer: want error, got nil")
	}
}

func TestDecodeBinary_corruptedCRC(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(spliceInsertVector)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-1] ^= 0xff // flip bits in the trailing CRC_32 byte
	sig, err := DecodeBinary(raw)
	if err != nil {
		t.Fatalf("DecodeBinary: %v", err)
	}
	if sig.CRCValid {
		t.Error("CRCValid = true after corrupting CRC bytes, want false")
	}
}

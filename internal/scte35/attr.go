package scte35

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseAttributeList splits an HLS attribute-list value (the part of a tag
// after the leading colon, e.g. `ID="x",DURATION=12.0,SCTE35-OUT=0x...`)
// into a map keyed by attribute name. Quoted values keep their inner commas
// intact; quotes themselves are stripped.
func ParseAttributeList(s string) map[string]string {
	attrs := make(map[string]string)
	var inQuotes bool
	start := 0
	flush := func(end int) {
		pair := s[start:end]
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return
		}
		attrs[strings.TrimSpace(name)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(s))
	return attrs
}

// DecodeAttrForm builds a Signal from a DATERANGE tag's parsed attributes,
// preferring the binary payload carried in SCTE35-OUT / SCTE35-CMD (decoded
// via DecodeBinary) and falling back to the plain ID / START-DATE / DURATION
// / PLANNED-DURATION attributes when no binary payload is present (spec
// §4.2). SCTE35-IN without a binary payload marks the end of the avail
// named by ID.
func DecodeAttrForm(attrs map[string]string) (*Signal, error) {
	if hexPayload, ok := firstNonEmpty(attrs, "SCTE35-OUT", "SCTE35-CMD"); ok {
		raw, err := decodeHexPayload(hexPayload)
		if err != nil {
			return nil, fmt.Errorf("scte35: decode %s: %w", hexPayload, err)
		}
		sig, err := DecodeBinary(raw)
		if err != nil {
			return nil, err
		}
		if id := attrs["ID"]; id != "" && sig.EventID == "" {
			sig.EventID = id
		}
		if d, ok := attrDuration(attrs); ok && sig.Duration == nil {
			sig.Duration = &d
		}
		if t, ok := attrStartDate(attrs); ok {
			sig.ReceivedAt = t
		}
		return sig, nil
	}

	if hexPayload, ok := firstNonEmpty(attrs, "SCTE35-IN"); ok {
		raw, err := decodeHexPayload(hexPayload)
		if err != nil {
			return nil, fmt.Errorf("scte35: decode %s: %w", hexPayload, err)
		}
		sig, err := DecodeBinary(raw)
		if err != nil {
			return nil, err
		}
		sig.Type = SignalIn
		return sig, nil
	}

	// No binary payload: a bare DATERANGE carries only ID/START-DATE/DURATION.
	id, ok := attrs["ID"]
	if !ok || id == "" {
		return nil, fmt.Errorf("scte35: attribute-form DATERANGE missing ID")
	}
	sig := &Signal{
		EventID:    id,
		Type:       SignalOut,
		Command:    CommandSpliceInsert,
		CRCValid:   true, // no binary payload, nothing to fail CRC on
		ReceivedAt: time.Now(),
	}
	if t, ok := attrStartDate(attrs); ok {
		sig.ReceivedAt = t
	}
	if d, ok := attrDuration(attrs); ok {
		sig.Duration = &d
	}
	return sig, nil
}

// attrStartDate parses the DATERANGE START-DATE attribute, an RFC3339
// timestamp per RFC 8216 §4.4.5.1, e.g. "2026-07-29T00:00:00.000Z". The
// splice anchor PDT must come from here, not decode wall-clock time: it is
// the instant ReplaceSegmentsWithAds matches against origin segment PDTs.
func attrStartDate(attrs map[string]string) (time.Time, bool) {
	raw := attrs["START-DATE"]
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func attrDuration(attrs map[string]string) (time.Duration, bool) {
	raw, ok := firstNonEmpty(attrs, "DURATION", "PLANNED-DURATION")
	if !ok {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func firstNonEmpty(attrs map[string]string, keys ...string) (string, bool) {
	for _, k := range keys {
		if v := attrs[k]; v != "" {
			return v, true
		}
	}
	return "", false
}

func decodeHexPayload(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return hex.DecodeString(s)
}

package hls

import "strings"

// parseAttributeList splits an HLS attribute-list value (RFC 8216 §4.2,
// e.g. the text after the colon in `#EXT-X-DATERANGE:ID="x",DURATION=12.0`)
// into ordered key/value pairs. Quoted values keep embedded commas intact;
// quotes are stripped from the stored value but remembered for re-render.
func parseAttributeList(s string) (keys []string, vals map[string]string, quoted map[string]bool) {
	vals = map[string]string{}
	quoted = map[string]bool{}
	var inQuotes bool
	start := 0
	flush := func(end int) {
		pair := s[start:end]
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		isQuoted := strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) && len(value) >= 2
		if isQuoted {
			value = value[1 : len(value)-1]
		}
		keys = append(keys, name)
		vals[name] = value
		quoted[name] = isQuoted
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
	return keys, vals, quoted
}

func parseDateRangeAttrs(value string) DateRange {
	keys, vals, quoted := parseAttributeList(value)
	return DateRange{Keys: keys, Vals: vals, Quoted: quoted}
}

// render writes the DATERANGE attribute-list text, e.g. `ID="x",DURATION=12.0`.
func (d DateRange) render() string {
	var sb strings.Builder
	for i, k := range d.Keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		if d.Quoted[k] {
			sb.WriteByte('"')
			sb.WriteString(d.Vals[k])
			sb.WriteByte('"')
		} else {
			sb.WriteString(d.Vals[k])
		}
	}
	return sb.String()
}

// classStartsWith reports whether the DateRange's CLASS attribute starts
// with prefix (case-sensitive, matching the spec's literal "scte35" match).
func (d DateRange) classStartsWith(prefix string) bool {
	return strings.HasPrefix(d.Get("CLASS"), prefix)
}

// hasSCTE35Attrs reports whether any of the three SCTE-35 attribute names
// are present on this DateRange.
func (d DateRange) hasSCTE35Attrs() bool {
	_, out := d.Vals["SCTE35-OUT"]
	_, in := d.Vals["SCTE35-IN"]
	_, cmd := d.Vals["SCTE35-CMD"]
	return out || in || cmd
}

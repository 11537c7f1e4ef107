package hls

// ExtractPDTs returns the ISO-8601 PROGRAM-DATE-TIME of every segment that
// carries one, in playlist order. Pure function over the parsed manifest.
func ExtractPDTs(manifest string) ([]string, error) {
	p, err := Parse(manifest)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, seg := range p.Segments {
		if seg.HasPDT {
			out = append(out, seg.PDT.Format(pdtLayout))
		}
	}
	return out, nil
}

package scte35

// MPEG-2 CRC32 (the "reverse" of crc32.IEEE): polynomial 0x04C11DB7, not
// reflected, no final XOR. SCTE-35 splice_info_section uses this checksum
// over every byte before the trailing CRC_32 field (SCTE 35 §9.1).
//
// Table generation mirrors compress/bzip2's CRC32/BZIP2 table (same
// polynomial, same non-reflected bit order).
const crc32PolyMPEG = 0x04C11DB7

var crc32Table = makeCRC32Table(crc32PolyMPEG)

func makeCRC32Table(poly uint32) [256]uint32 {
	var tab [256]uint32
	for i := range tab {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc = crc << 1
			}
		}
		tab[i] = crc
	}
	return tab
}

// crc32MPEG computes the non-reflected CRC-32 over b: init 0xFFFFFFFF, no
// final XOR (SCTE-35 deviates from classic CRC-32/BZIP2 by skipping the
// final inversion).
func crc32MPEG(b []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, v := range b {
		crc = crc32Table[byte(crc>>24)^v] ^ (crc << 8)
	}
	return crc
}

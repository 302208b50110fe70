package tiffio

import "bytes"

// TIFF-variant LZW (Compression=5). Differs from the classic scheme in two
// ways the standard library cannot express: codes are packed MSB first, and
// the code width grows one entry early. A decoder adds a table entry for
// every data code it reads, so the writer must widen as soon as the next
// free code would no longer fit, including once more before the final EOI.
// The table is flushed with a ClearCode before it reaches 12-bit capacity,
// matching what mainstream TIFF writers emit.
const (
	lzwClearCode  = 256
	lzwEOICode    = 257
	lzwFirstCode  = 258
	lzwTableLimit = 4094
	lzwMinWidth   = 9
	lzwMaxWidth   = 12
)

// bitWriter packs variable-width codes MSB first.
type bitWriter struct {
	buf  bytes.Buffer
	bits uint32
	n    uint
}

func (w *bitWriter) write(code uint16, width uint) {
	w.bits |= uint32(code) << (32 - width - w.n)
	w.n += width
	for w.n >= 8 {
		w.buf.WriteByte(byte(w.bits >> 24))
		w.bits <<= 8
		w.n -= 8
	}
}

func (w *bitWriter) flush() {
	if w.n > 0 {
		w.buf.WriteByte(byte(w.bits >> 24))
		w.bits = 0
		w.n = 0
	}
}

func compressLZW(data []byte) []byte {
	var bw bitWriter
	width := uint(lzwMinWidth)
	bw.write(lzwClearCode, width)
	if len(data) == 0 {
		bw.write(lzwEOICode, width)
		bw.flush()
		return bw.buf.Bytes()
	}

	table := make(map[uint32]uint16, 4096)
	next := uint16(lzwFirstCode)
	omega := uint16(data[0])

	for _, c := range data[1:] {
		key := uint32(omega)<<8 | uint32(c)
		if code, ok := table[key]; ok {
			omega = code
			continue
		}
		bw.write(omega, width)
		table[key] = next
		next++
		switch {
		case next == lzwTableLimit:
			bw.write(lzwClearCode, width)
			table = make(map[uint32]uint16, 4096)
			next = lzwFirstCode
			width = lzwMinWidth
		case next == 1<<width && width < lzwMaxWidth:
			width++
		}
		omega = uint16(c)
	}

	bw.write(omega, width)
	// The decoder grows the table on the last data code too, widening its
	// read before it sees the EOI.
	if next+1 >= 1<<width && width < lzwMaxWidth {
		width++
	}
	bw.write(lzwEOICode, width)
	bw.flush()
	return bw.buf.Bytes()
}

// Package tiffio writes baseline little-endian TIFF containers and carries
// sanitized metadata tags between files. Scanner-origin TIFFs routinely ship
// malformed vendor tags (maker-note blobs, stale offset tables, broken XMP)
// that crash naive copy-everything logic, so tag carry-over is allowlist
// shaped: structural tags are dropped, oversized payloads are dropped, and
// rationals are converted to plain doubles.
package tiffio

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// TIFF data types.
const (
	TypeByte      uint16 = 1
	TypeASCII     uint16 = 2
	TypeShort     uint16 = 3
	TypeLong      uint16 = 4
	TypeRational  uint16 = 5
	TypeSByte     uint16 = 6
	TypeUndefined uint16 = 7
	TypeSShort    uint16 = 8
	TypeSLong     uint16 = 9
	TypeSRational uint16 = 10
	TypeFloat     uint16 = 11
	TypeDouble    uint16 = 12
)

// Tag IDs the encoder owns or the sanitizer special-cases.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagExtraSamples    = 338
	tagICCProfile      = 34675
)

// Field is one IFD entry: a tag ID, its TIFF data type, the element count,
// and the value payload already encoded little-endian.
type Field struct {
	ID    uint16
	Type  uint16
	Count uint32
	Value []byte
}

// ShortField builds a SHORT field from one or more values.
func ShortField(id uint16, vals ...uint16) Field {
	v := make([]byte, 2*len(vals))
	for i, s := range vals {
		binary.LittleEndian.PutUint16(v[2*i:], s)
	}
	return Field{ID: id, Type: TypeShort, Count: uint32(len(vals)), Value: v}
}

// LongField builds a single-value LONG field.
func LongField(id uint16, val uint32) Field {
	v := make([]byte, 4)
	binary.LittleEndian.PutUint32(v, val)
	return Field{ID: id, Type: TypeLong, Count: 1, Value: v}
}

// ASCIIField builds a NUL-terminated ASCII field.
func ASCIIField(id uint16, s string) Field {
	v := append([]byte(s), 0)
	return Field{ID: id, Type: TypeASCII, Count: uint32(len(v)), Value: v}
}

// RationalField builds a single unsigned RATIONAL field.
func RationalField(id uint16, num, den uint32) Field {
	v := make([]byte, 8)
	binary.LittleEndian.PutUint32(v, num)
	binary.LittleEndian.PutUint32(v[4:], den)
	return Field{ID: id, Type: TypeRational, Count: 1, Value: v}
}

// serializeIFD renders one IFD placed at ifdOffset inside the final stream.
// Values wider than four bytes land immediately after the entry table, padded
// to word boundaries. The next-IFD pointer is always zero. Fields must
// already be sorted by ID; TIFF readers require ascending entries.
func serializeIFD(fields []Field, ifdOffset uint32) []byte {
	var ifd, ext bytes.Buffer
	le := binary.LittleEndian
	extBase := ifdOffset + uint32(2+12*len(fields)+4)

	var tmp [4]byte
	le.PutUint16(tmp[:2], uint16(len(fields)))
	ifd.Write(tmp[:2])
	for _, f := range fields {
		le.PutUint16(tmp[:2], f.ID)
		ifd.Write(tmp[:2])
		le.PutUint16(tmp[:2], f.Type)
		ifd.Write(tmp[:2])
		le.PutUint32(tmp[:], f.Count)
		ifd.Write(tmp[:])
		if len(f.Value) <= 4 {
			var inline [4]byte
			copy(inline[:], f.Value)
			ifd.Write(inline[:])
			continue
		}
		off := extBase + uint32(ext.Len())
		le.PutUint32(tmp[:], off)
		ifd.Write(tmp[:])
		ext.Write(f.Value)
		if ext.Len()%2 == 1 {
			ext.WriteByte(0)
		}
	}
	le.PutUint32(tmp[:], 0)
	ifd.Write(tmp[:])

	return append(ifd.Bytes(), ext.Bytes()...)
}

func sortFields(fields []Field) {
	sort.Slice(fields, func(i, j int) bool { return fields[i].ID < fields[j].ID })
}

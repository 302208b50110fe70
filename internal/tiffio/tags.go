package tiffio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	gtiff "github.com/rwcarlsen/goexif/tiff"
)

// Structural and offset tags are never carried over: the encoder owns the
// layout it writes, and stale strip/tile/IFD offsets from the source would
// point into the wrong file.
var structuralTags = map[uint16]bool{
	256:   true, // ImageWidth
	257:   true, // ImageLength
	258:   true, // BitsPerSample
	259:   true, // Compression
	262:   true, // PhotometricInterpretation
	266:   true, // FillOrder
	273:   true, // StripOffsets
	277:   true, // SamplesPerPixel
	278:   true, // RowsPerStrip
	279:   true, // StripByteCounts
	284:   true, // PlanarConfiguration
	296:   true, // ResolutionUnit
	317:   true, // Predictor
	320:   true, // ColorMap
	322:   true, // TileWidth
	323:   true, // TileLength
	324:   true, // TileOffsets
	325:   true, // TileByteCounts
	330:   true, // SubIFDs
	338:   true, // ExtraSamples
	339:   true, // SampleFormat
	513:   true, // JPEGInterchangeFormat
	514:   true, // JPEGInterchangeFormatLength
	34665: true, // Exif IFD pointer
	34853: true, // GPS IFD pointer
	40965: true, // Interoperability IFD pointer
}

// Payload ceilings. Oversized vendor blobs (maker notes, embedded XMP) are
// dropped wholesale; the ICC profile is the one sanctioned large payload.
const (
	maxBinaryBytes = 128
	maxStringLen   = 1024
	maxVectorLen   = 16
)

// SanitizeTags parses the first IFD of a TIFF stream and returns the
// metadata fields that survive the carry-over rules, re-encoded
// little-endian and sorted by ID. Rational values come back as DOUBLE.
func SanitizeTags(r io.Reader) ([]Field, error) {
	t, err := gtiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("parse source ifd: %w", err)
	}
	if len(t.Dirs) == 0 {
		return nil, nil
	}
	var out []Field
	for _, tag := range t.Dirs[0].Tags {
		if structuralTags[tag.Id] {
			continue
		}
		if f, ok := sanitizeTag(tag); ok {
			out = append(out, f)
		}
	}
	sortFields(out)
	return out, nil
}

// ICCProfile returns the embedded ICC color profile from a sanitized field
// set, or nil when the source carried none.
func ICCProfile(fields []Field) []byte {
	for _, f := range fields {
		if f.ID == tagICCProfile {
			return f.Value
		}
	}
	return nil
}

func sanitizeTag(tag *gtiff.Tag) (Field, bool) {
	le := binary.LittleEndian
	switch tag.Type {
	case gtiff.DTByte, gtiff.DTSByte, gtiff.DTUndefined:
		if tag.Id != tagICCProfile && tag.Count > maxBinaryBytes {
			return Field{}, false
		}
		v := make([]byte, len(tag.Val))
		copy(v, tag.Val)
		return Field{ID: tag.Id, Type: uint16(tag.Type), Count: tag.Count, Value: v}, true

	case gtiff.DTAscii:
		s, err := tag.StringVal()
		if err != nil || len(s) > maxStringLen {
			return Field{}, false
		}
		return ASCIIField(tag.Id, s), true

	case gtiff.DTShort, gtiff.DTSShort:
		if tag.Count > maxVectorLen {
			return Field{}, false
		}
		v := make([]byte, 2*tag.Count)
		for i := uint32(0); i < tag.Count; i++ {
			n, err := tag.Int64(int(i))
			if err != nil {
				return Field{}, false
			}
			le.PutUint16(v[2*i:], uint16(n))
		}
		return Field{ID: tag.Id, Type: uint16(tag.Type), Count: tag.Count, Value: v}, true

	case gtiff.DTLong, gtiff.DTSLong:
		if tag.Count > maxVectorLen {
			return Field{}, false
		}
		v := make([]byte, 4*tag.Count)
		for i := uint32(0); i < tag.Count; i++ {
			n, err := tag.Int64(int(i))
			if err != nil {
				return Field{}, false
			}
			le.PutUint32(v[4*i:], uint32(n))
		}
		return Field{ID: tag.Id, Type: uint16(tag.Type), Count: tag.Count, Value: v}, true

	case gtiff.DTRational, gtiff.DTSRational:
		if tag.Count > maxVectorLen {
			return Field{}, false
		}
		v := make([]byte, 8*tag.Count)
		for i := uint32(0); i < tag.Count; i++ {
			num, den, err := tag.Rat2(int(i))
			if err != nil || den == 0 {
				return Field{}, false
			}
			le.PutUint64(v[8*i:], math.Float64bits(float64(num)/float64(den)))
		}
		return Field{ID: tag.Id, Type: TypeDouble, Count: tag.Count, Value: v}, true

	case gtiff.DTFloat, gtiff.DTDouble:
		if tag.Count > maxVectorLen {
			return Field{}, false
		}
		size := uint32(4)
		if tag.Type == gtiff.DTDouble {
			size = 8
		}
		v := make([]byte, size*tag.Count)
		for i := uint32(0); i < tag.Count; i++ {
			f, err := tag.Float(int(i))
			if err != nil {
				return Field{}, false
			}
			if tag.Type == gtiff.DTFloat {
				le.PutUint32(v[4*i:], math.Float32bits(float32(f)))
			} else {
				le.PutUint64(v[8*i:], math.Float64bits(f))
			}
		}
		return Field{ID: tag.Id, Type: uint16(tag.Type), Count: tag.Count, Value: v}, true

	default:
		return Field{}, false
	}
}

package tiffio

import "encoding/binary"

// ExifBlob serializes sanitized fields into a standalone little-endian TIFF
// structure, the payload format a JPEG APP1 Exif segment expects after its
// "Exif\0\0" marker. The ICC profile is skipped; it travels in APP2. Returns
// nil when nothing remains to carry.
func ExifBlob(fields []Field) []byte {
	kept := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.ID != tagICCProfile {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	sortFields(kept)

	var hdr [8]byte
	hdr[0], hdr[1] = 'I', 'I'
	binary.LittleEndian.PutUint16(hdr[2:], 42)
	binary.LittleEndian.PutUint32(hdr[4:], 8)
	return append(hdr[:], serializeIFD(kept, 8)...)
}

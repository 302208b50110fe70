package writer

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image/jpeg"
	"os"
	"time"

	"github.com/backmassage/scanmaster/internal/imaging"
	"github.com/backmassage/scanmaster/internal/tiffio"
)

// Maximum ICC payload per APP2 segment: 65535 minus the length field, the
// "ICC_PROFILE\0" identifier, and the chunk sequence bytes.
const iccChunkSize = 65535 - 2 - 12 - 2

// ConvertJPEG encodes src as a JPEG at dest. The image is normalized to
// 8-bit first; sanitized source tags are spliced in as an APP1 Exif segment
// and the ICC profile as APP2 segments.
func (c *Converter) ConvertJPEG(ctx context.Context, src, dest string) Outcome {
	start := time.Now()
	out := Outcome{Source: src, Action: ActionJPG, Output: dest}
	out.SourceSizeBytes = fileSize(src)

	if c.cfg.DryRun {
		out.Success = true
		out.Simulated = true
		out.finish(start)
		return out
	}
	if err := ctx.Err(); err != nil {
		out.fail(err)
		out.finish(start)
		return out
	}

	fields := c.sanitizedFields(src, &out)

	img, err := imaging.Decode(src)
	if err != nil {
		out.fail(fmt.Errorf("decode source: %w", err))
		out.finish(start)
		return out
	}
	if depth := imaging.BitDepth(img); depth > 8 {
		out.warn(fmt.Sprintf("%d-bit source flattened to 8-bit JPEG", depth))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, imaging.To8Bit(img), &jpeg.Options{Quality: c.cfg.JPGQuality}); err != nil {
		out.fail(fmt.Errorf("encode jpeg: %w", err))
		out.finish(start)
		return out
	}

	data := spliceSegments(buf.Bytes(), tiffio.ExifBlob(fields), tiffio.ICCProfile(fields))

	err = writeAtomic(dest, func(f *os.File) error {
		_, werr := f.Write(data)
		return werr
	})
	if err != nil {
		out.fail(err)
		out.finish(start)
		return out
	}

	out.Success = true
	out.SizeBytes = fileSize(dest)
	out.CompressionRatio = ratio(out.SourceSizeBytes, out.SizeBytes)
	c.verify(dest, &out)
	out.finish(start)
	return out
}

// spliceSegments inserts an APP1 Exif segment and chunked APP2 ICC segments
// directly after the SOI marker. The standard library encoder writes neither,
// so the stream is assembled by hand.
func spliceSegments(jpg, exifBlob, icc []byte) []byte {
	if len(exifBlob) == 0 && len(icc) == 0 {
		return jpg
	}
	if len(jpg) < 2 || jpg[0] != 0xFF || jpg[1] != 0xD8 {
		return jpg
	}

	var buf bytes.Buffer
	buf.Write(jpg[:2])

	if len(exifBlob) > 0 && 6+len(exifBlob) <= 65533 {
		writeSegment(&buf, 0xE1, [][]byte{[]byte("Exif\x00\x00"), exifBlob})
	}

	if len(icc) > 0 {
		total := (len(icc) + iccChunkSize - 1) / iccChunkSize
		if total <= 255 {
			for i := 0; i < total; i++ {
				chunk := icc[i*iccChunkSize:]
				if len(chunk) > iccChunkSize {
					chunk = chunk[:iccChunkSize]
				}
				writeSegment(&buf, 0xE2, [][]byte{
					[]byte("ICC_PROFILE\x00"),
					{byte(i + 1), byte(total)},
					chunk,
				})
			}
		}
	}

	buf.Write(jpg[2:])
	return buf.Bytes()
}

func writeSegment(buf *bytes.Buffer, marker byte, parts [][]byte) {
	length := 2
	for _, p := range parts {
		length += len(p)
	}
	buf.WriteByte(0xFF)
	buf.WriteByte(marker)
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(length))
	buf.Write(l[:])
	for _, p := range parts {
		buf.Write(p)
	}
}

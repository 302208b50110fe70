package tiffio

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"
	"io"
)

// Compression selects the strip compression scheme.
type Compression uint16

const (
	CompressionLZW     Compression = 5
	CompressionDeflate Compression = 8
)

// Options control Encode beyond the pixel data.
type Options struct {
	Compression Compression // Defaults to CompressionLZW.
	Fields      []Field     // Sanitized metadata tags to carry into the IFD.
}

// Encode writes img as a baseline little-endian TIFF with a single
// compressed strip. Grayscale images keep their bit depth (16-bit samples
// are written in file byte order); everything else is flattened to 8-bit
// RGBA with unassociated alpha. Metadata fields whose IDs collide with the
// structural tags the encoder owns are ignored.
func Encode(w io.Writer, img image.Image, opts *Options) error {
	if opts == nil {
		opts = &Options{}
	}
	comp := opts.Compression
	if comp == 0 {
		comp = CompressionLZW
	}

	raw, photometric, bits, hasAlpha := rasterize(img)

	var strip []byte
	switch comp {
	case CompressionLZW:
		strip = compressLZW(raw)
	case CompressionDeflate:
		var zb bytes.Buffer
		zw := zlib.NewWriter(&zb)
		if _, err := zw.Write(raw); err != nil {
			return fmt.Errorf("deflate strip: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("deflate strip: %w", err)
		}
		strip = zb.Bytes()
	default:
		return fmt.Errorf("unsupported compression scheme %d", comp)
	}

	b := img.Bounds()
	fields := []Field{
		LongField(tagImageWidth, uint32(b.Dx())),
		LongField(tagImageLength, uint32(b.Dy())),
		ShortField(tagBitsPerSample, bits...),
		ShortField(tagCompression, uint16(comp)),
		ShortField(tagPhotometric, photometric),
		LongField(tagStripOffsets, 8),
		ShortField(tagSamplesPerPixel, uint16(len(bits))),
		LongField(tagRowsPerStrip, uint32(b.Dy())),
		LongField(tagStripByteCounts, uint32(len(strip))),
	}
	if hasAlpha {
		fields = append(fields, ShortField(tagExtraSamples, 2))
	}
	owned := make(map[uint16]bool, len(fields))
	for _, f := range fields {
		owned[f.ID] = true
	}
	for _, f := range opts.Fields {
		if !owned[f.ID] {
			fields = append(fields, f)
		}
	}
	sortFields(fields)

	// Strip data sits right after the 8-byte header, the IFD after the
	// strip on a word boundary.
	stripPad := len(strip) % 2
	ifdOffset := uint32(8 + len(strip) + stripPad)

	var hdr [8]byte
	hdr[0], hdr[1] = 'I', 'I'
	binary.LittleEndian.PutUint16(hdr[2:], 42)
	binary.LittleEndian.PutUint32(hdr[4:], ifdOffset)

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write(strip); err != nil {
		return err
	}
	if stripPad == 1 {
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
	}
	_, err := w.Write(serializeIFD(fields, ifdOffset))
	return err
}

// rasterize flattens img into tightly packed strip bytes and reports the
// matching photometric interpretation and per-sample bit depths.
func rasterize(img image.Image) (raw []byte, photometric uint16, bits []uint16, hasAlpha bool) {
	b := img.Bounds()
	switch src := img.(type) {
	case *image.Gray:
		return packRows(src.Pix[src.PixOffset(b.Min.X, b.Min.Y):], src.Stride, b.Dx(), b.Dy()), 1, []uint16{8}, false
	case *image.Gray16:
		raw = packRows(src.Pix[src.PixOffset(b.Min.X, b.Min.Y):], src.Stride, 2*b.Dx(), b.Dy())
		// Pix is big-endian, the file is little-endian.
		for i := 0; i+1 < len(raw); i += 2 {
			raw[i], raw[i+1] = raw[i+1], raw[i]
		}
		return raw, 1, []uint16{16}, false
	default:
		nrgba, ok := img.(*image.NRGBA)
		if !ok {
			nrgba = image.NewNRGBA(b)
			draw.Draw(nrgba, b, img, b.Min, draw.Src)
		}
		return packRows(nrgba.Pix[nrgba.PixOffset(b.Min.X, b.Min.Y):], nrgba.Stride, 4*b.Dx(), b.Dy()), 2, []uint16{8, 8, 8, 8}, true
	}
}

func packRows(pix []byte, stride, rowBytes, rows int) []byte {
	if stride == rowBytes {
		out := make([]byte, rowBytes*rows)
		copy(out, pix)
		return out
	}
	out := make([]byte, 0, rowBytes*rows)
	for y := 0; y < rows; y++ {
		out = append(out, pix[y*stride:y*stride+rowBytes]...)
	}
	return out
}

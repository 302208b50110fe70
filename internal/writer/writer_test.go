package writer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/backmassage/scanmaster/internal/config"
	"github.com/backmassage/scanmaster/internal/tiffio"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Verify = true
	return &cfg
}

// writeSourceTIFF creates a tagged grayscale TIFF to convert from.
func writeSourceTIFF(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = byte(i * 7)
	}
	var buf bytes.Buffer
	require.NoError(t, tiffio.Encode(&buf, img, &tiffio.Options{
		Fields: []tiffio.Field{tiffio.ASCIIField(315, "Scan Operator")},
	}))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func requireNoTempLeftovers(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp-", "leftover temp file %s", e.Name())
	}
}

func TestWriteAtomic_Success(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	err := writeAtomic(dest, func(f *os.File) error {
		_, werr := f.Write([]byte("payload"))
		return werr
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
	requireNoTempLeftovers(t, dir)
}

func TestWriteAtomic_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	boom := errors.New("boom")

	err := writeAtomic(dest, func(f *os.File) error {
		f.Write([]byte("partial"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, statErr := os.Stat(dest)
	require.True(t, os.IsNotExist(statErr))
	requireNoTempLeftovers(t, dir)
}

func TestConvertTIFF_LZWCarriesTags(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceTIFF(t, dir, "0001.tif")
	dest := filepath.Join(dir, "0001_lzw.tif")

	out := New(testConfig()).ConvertTIFF(context.Background(), src, dest)
	require.True(t, out.Success, "error: %s", out.Error)
	require.Equal(t, ActionTIFFLZW, out.Action)
	require.True(t, out.Verified)
	require.Positive(t, out.SizeBytes)
	require.Positive(t, out.CompressionRatio)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	fields, err := tiffio.SanitizeTags(f)
	require.NoError(t, err)
	var found bool
	for _, fl := range fields {
		if fl.ID == 315 {
			found = true
		}
	}
	require.True(t, found, "carried tag missing from output")
}

func TestConvertTIFF_DeflateAction(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceTIFF(t, dir, "0001.tif")
	cfg := testConfig()
	cfg.Compression = config.CompressionDeflate

	out := New(cfg).ConvertTIFF(context.Background(), src, filepath.Join(dir, "0001_deflate.tif"))
	require.True(t, out.Success, "error: %s", out.Error)
	require.Equal(t, ActionTIFFDeflate, out.Action)
}

func TestConvertTIFF_DryRunTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceTIFF(t, dir, "0001.tif")
	dest := filepath.Join(dir, "0001_lzw.tif")
	cfg := testConfig()
	cfg.DryRun = true

	out := New(cfg).ConvertTIFF(context.Background(), src, dest)
	require.True(t, out.Success)
	require.True(t, out.Simulated)

	_, err := os.Stat(dest)
	require.True(t, os.IsNotExist(err))
}

func TestConvertTIFF_UndecodableSourceFails(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "garbage.tif")
	require.NoError(t, os.WriteFile(src, []byte("not a tiff at all"), 0o644))
	dest := filepath.Join(dir, "garbage_lzw.tif")

	out := New(testConfig()).ConvertTIFF(context.Background(), src, dest)
	require.False(t, out.Success)
	require.NotEmpty(t, out.Error)
	_, err := os.Stat(dest)
	require.True(t, os.IsNotExist(err))
}

func TestConvertTIFF_Cancelled(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceTIFF(t, dir, "0001.tif")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := New(testConfig()).ConvertTIFF(ctx, src, filepath.Join(dir, "0001_lzw.tif"))
	require.False(t, out.Success)
	requireNoTempLeftovers(t, dir)
}

func TestConvertJPEG_EncodesWithExif(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceTIFF(t, dir, "0001.tif")
	dest := filepath.Join(dir, "0001.jpg")

	out := New(testConfig()).ConvertJPEG(context.Background(), src, dest)
	require.True(t, out.Success, "error: %s", out.Error)
	require.Equal(t, ActionJPG, out.Action)
	require.True(t, out.Verified)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.True(t, bytes.Contains(data, []byte("Exif\x00\x00")), "APP1 Exif segment missing")

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
}

func TestConvertHEIC_DryRun(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceTIFF(t, dir, "0001.tif")
	dest := filepath.Join(dir, "0001.heic")
	cfg := testConfig()
	cfg.DryRun = true

	out := New(cfg).ConvertHEIC(context.Background(), src, dest)
	require.True(t, out.Success)
	require.True(t, out.Simulated)
	_, err := os.Stat(dest)
	require.True(t, os.IsNotExist(err))
}

func TestConvertHEIC_CancelledLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceTIFF(t, dir, "0001.tif")
	dest := filepath.Join(dir, "0001.heic")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := New(testConfig()).ConvertHEIC(ctx, src, dest)
	require.False(t, out.Success)
	_, err := os.Stat(dest)
	require.True(t, os.IsNotExist(err))
	requireNoTempLeftovers(t, dir)
}

func TestSpliceSegments_NoMetadataUnchanged(t *testing.T) {
	jpg := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x02}
	require.Equal(t, jpg, spliceSegments(jpg, nil, nil))
}

func TestSpliceSegments_ICCChunking(t *testing.T) {
	jpg := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	icc := make([]byte, iccChunkSize+100) // forces two APP2 segments

	data := spliceSegments(jpg, nil, icc)

	// First APP2 directly after SOI.
	require.Equal(t, byte(0xFF), data[2])
	require.Equal(t, byte(0xE2), data[3])
	length := int(binary.BigEndian.Uint16(data[4:6]))
	require.Equal(t, 2+12+2+iccChunkSize, length)
	require.Equal(t, []byte("ICC_PROFILE\x00"), data[6:18])
	require.Equal(t, byte(1), data[18]) // chunk 1 of 2
	require.Equal(t, byte(2), data[19])

	// Second APP2 follows the first.
	next := 2 + 2 + length
	require.Equal(t, byte(0xFF), data[next])
	require.Equal(t, byte(0xE2), data[next+1])
	require.Equal(t, byte(2), data[next+16])
}

func TestSyncFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "encoded.heic")
	require.NoError(t, os.WriteFile(path, []byte("ftypheic"), 0o644))

	require.NoError(t, syncFile(path))
	require.Error(t, syncFile(filepath.Join(dir, "missing.heic")))
}

func TestBuildHeifArgs(t *testing.T) {
	require.Equal(t,
		[]string{"heif-enc", "--lossless", "-o", "out.heic", "in.tif"},
		buildHeifArgs("in.tif", "out.heic", -1, true))
	require.Equal(t,
		[]string{"heif-enc", "-q", "90", "-o", "out.heic", "in.tif"},
		buildHeifArgs("in.tif", "out.heic", 90, false))
}

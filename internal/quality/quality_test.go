package quality

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writePNG saves a synthetic image and returns its path.
func writePNG(t *testing.T, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

// stripes produces a grayscale image alternating black/white every period
// columns. Smaller periods mean more edges, i.e. more synthetic sharpness.
func stripes(size, period int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(0)
			if (x/period)%2 == 0 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func flat(size int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestAnalyze_DecodeFailureIsWorstScoreNotError(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "broken.tif")
	require.NoError(os.WriteFile(path, []byte("not an image"), 0o644))

	m, err := NewAnalyzer().Analyze(context.Background(), path)
	require.NoError(err)
	require.Equal(Metrics{}, m)
	require.Equal(0.0, Score(m))
}

func TestAnalyze_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAnalyzer().Analyze(ctx, "irrelevant.tif")
	require.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_MidGrayExposure(t *testing.T) {
	require := require.New(t)

	path := writePNG(t, "midgray.png", flat(64, 128))
	m, err := NewAnalyzer().Analyze(context.Background(), path)
	require.NoError(err)

	require.InDelta(1.0, m.ExposureScore, 0.01)
	require.InDelta(128, m.BrightnessMean, 0.5)
	require.InDelta(0, m.ContrastStd, 0.5)
	require.InDelta(0, m.Sharpness, 0.01)
	require.Equal(0.0, m.Colorfulness, "grayscale image has no chroma")
}

func TestAnalyze_BlackFrameWorstExposure(t *testing.T) {
	require := require.New(t)

	path := writePNG(t, "black.png", flat(64, 0))
	m, err := NewAnalyzer().Analyze(context.Background(), path)
	require.NoError(err)
	require.InDelta(0.0, m.ExposureScore, 0.01)
}

// Score must be monotonically non-decreasing in sharpness with the other
// metrics held constant, verified with synthetic images of increasing edge
// content.
func TestScore_MonotonicInSharpness(t *testing.T) {
	require := require.New(t)
	analyzer := NewAnalyzer()
	ctx := context.Background()

	prevSharpness := -1.0
	prevScore := -1.0
	for _, period := range []int{32, 8, 2} {
		path := writePNG(t, "stripes.png", stripes(128, period))
		m, err := analyzer.Analyze(ctx, path)
		require.NoError(err)
		require.Greater(m.Sharpness, prevSharpness, "period %d should add edge content", period)

		// Hold everything except sharpness at the first image's values.
		score := Score(m)
		require.GreaterOrEqual(score, prevScore, "period %d", period)
		prevSharpness = m.Sharpness
		prevScore = score
	}
}

func TestScore_ComponentsAndWeights(t *testing.T) {
	m := Metrics{
		Sharpness:      100,
		ExposureScore:  1,
		Colorfulness:   100, // capped at 1 after /50
		ContrastStd:    120, // capped at 1 after /60
		BrightnessMean: 128,
	}
	want := 0.40*math.Log1p(100)/10 + 0.25 + 0.20 + 0.15
	require.InDelta(t, want, Score(m), 1e-9)
}

func TestSimilarity_IdenticalImages(t *testing.T) {
	require := require.New(t)

	img := stripes(64, 8)
	a := writePNG(t, "a.png", img)
	b := writePNG(t, "b.png", img)

	sim, err := NewSSIMChecker().Similarity(context.Background(), a, b)
	require.NoError(err)
	require.InDelta(1.0, sim, 0.01)
}

func TestSimilarity_DissimilarImages(t *testing.T) {
	require := require.New(t)

	a := writePNG(t, "a.png", stripes(64, 4))
	b := writePNG(t, "b.png", flat(64, 200))

	sim, err := NewSSIMChecker().Similarity(context.Background(), a, b)
	require.NoError(err)
	require.Less(sim, 0.9)
}

func TestSimilarity_UnavailableOnBadInput(t *testing.T) {
	require := require.New(t)

	good := writePNG(t, "good.png", flat(16, 100))
	bad := filepath.Join(t.TempDir(), "bad.tif")
	require.NoError(os.WriteFile(bad, []byte("junk"), 0o644))

	_, err := NewSSIMChecker().Similarity(context.Background(), good, bad)
	require.ErrorIs(err, ErrUnavailable)
}

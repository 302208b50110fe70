// Package quality computes objective image-quality metrics, the weighted
// scalar score used for variant selection, and a structural-similarity
// estimate for duplicate detection.
package quality

import (
	"context"
	"image"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/backmassage/scanmaster/internal/imaging"
)

// maxAnalysisDim bounds the rendering the metrics are computed on, keeping
// per-image cost flat regardless of scanner resolution.
const maxAnalysisDim = 1024

// Metrics holds the per-image measurements the score is built from.
// A zero Metrics is the deliberate worst-score fallback for undecodable
// files, not an error.
type Metrics struct {
	Sharpness      float64 // Gradient variance; unbounded, higher is sharper.
	BrightnessMean float64 // Mean gray intensity, 0–255.
	ContrastStd    float64 // Gray std-dev, 0–255 scale.
	Colorfulness   float64 // Opponent-channel chroma spread; 0 for grayscale.
	ExposureScore  float64 // 1 at mid-gray, 0 at full black/white clip.
}

// Analyzer computes Metrics for image files. Decode failures degrade to zero
// metrics with a warning; the only error it returns is context cancellation.
type Analyzer struct {
	log zerolog.Logger
}

// NewAnalyzer returns an Analyzer logging under the quality component.
func NewAnalyzer() *Analyzer {
	return &Analyzer{log: log.Logger.With().Str("component", "quality").Logger()}
}

// Analyze decodes path, downsamples it to the bounded analysis rendering,
// and computes all metrics. Cancellation is checked before the decode and
// between computation stages.
func (a *Analyzer) Analyze(ctx context.Context, path string) (Metrics, error) {
	if err := ctx.Err(); err != nil {
		return Metrics{}, err
	}

	img, err := imaging.Decode(path)
	if err != nil {
		a.log.Warn().Err(err).Str("file", path).Msg("metrics unavailable, treating as worst score")
		return Metrics{}, nil
	}

	if err := ctx.Err(); err != nil {
		return Metrics{}, err
	}
	img = imaging.Downsample(img, maxAnalysisDim)

	if err := ctx.Err(); err != nil {
		return Metrics{}, err
	}
	gray, w, h := imaging.GrayPlane(img)

	m := Metrics{}
	m.Sharpness = gradientVariance(gray, w, h)

	if err := ctx.Err(); err != nil {
		return Metrics{}, err
	}
	m.BrightnessMean, m.ContrastStd = meanStd(gray)
	m.ExposureScore = clamp01(1 - math.Abs(m.BrightnessMean-128)/128)

	if err := ctx.Err(); err != nil {
		return Metrics{}, err
	}
	m.Colorfulness = colorfulness(img)

	a.log.Debug().
		Str("file", path).
		Float64("sharpness", m.Sharpness).
		Float64("brightness", m.BrightnessMean).
		Float64("contrast", m.ContrastStd).
		Float64("colorfulness", m.Colorfulness).
		Float64("exposure", m.ExposureScore).
		Msg("computed metrics")
	return m, nil
}

// gradientVariance returns var(dx) + var(dy) of discrete first differences,
// the sharpness estimate the legacy analyzer used.
func gradientVariance(gray []float64, w, h int) float64 {
	if w < 2 || h < 2 {
		return 0
	}

	dx := make([]float64, 0, (w-1)*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w-1; x++ {
			dx = append(dx, gray[y*w+x+1]-gray[y*w+x])
		}
	}

	dy := make([]float64, 0, w*(h-1))
	for y := 0; y < h-1; y++ {
		for x := 0; x < w; x++ {
			dy = append(dy, gray[(y+1)*w+x]-gray[y*w+x])
		}
	}

	return variance(dx) + variance(dy)
}

// colorfulness is sqrt(std(R−G)² + std(0.5(R+G)−B)²) over raw RGB planes.
func colorfulness(img image.Image) float64 {
	r, g, b, ok := imaging.RGBPlanes(img)
	if !ok {
		return 0
	}

	rg := make([]float64, len(r))
	yb := make([]float64, len(r))
	for i := range r {
		rg[i] = r[i] - g[i]
		yb[i] = 0.5*(r[i]+g[i]) - b[i]
	}

	rgStd := math.Sqrt(variance(rg))
	ybStd := math.Sqrt(variance(yb))
	return math.Sqrt(rgStd*rgStd + ybStd*ybStd)
}

func meanStd(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	var sum float64
	for _, v := range vals {
		d := v - mean
		sum += d * d
	}
	return mean, math.Sqrt(sum / float64(len(vals)))
}

func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	_, std := meanStd(vals)
	return std * std
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package quality

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/backmassage/scanmaster/internal/imaging"
)

// ErrUnavailable signals that no similarity estimate could be produced.
// Callers must treat it as "no duplicate evidence", never as a failure.
var ErrUnavailable = errors.New("similarity estimate unavailable")

// SSIM constants: fixed comparison resolution, non-overlapping window size,
// and the standard stabilizers for an 8-bit dynamic range.
const (
	ssimDim    = 512
	ssimWindow = 8
	ssimC1     = (0.01 * 255) * (0.01 * 255)
	ssimC2     = (0.03 * 255) * (0.03 * 255)
)

// SSIMChecker estimates perceptual similarity between two images as the mean
// local SSIM over grayscale renderings at a fixed common resolution.
type SSIMChecker struct {
	log zerolog.Logger
}

// NewSSIMChecker returns a ready-to-use checker.
func NewSSIMChecker() *SSIMChecker {
	return &SSIMChecker{log: log.Logger.With().Str("component", "ssim").Logger()}
}

// Similarity returns a score in [0,1]; 1 means structurally identical.
// Undecodable inputs yield ErrUnavailable.
func (s *SSIMChecker) Similarity(ctx context.Context, pathA, pathB string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	a, err := s.loadGray(pathA)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b, err := s.loadGray(pathB)
	if err != nil {
		return 0, err
	}

	sim := meanSSIM(a, b)
	s.log.Debug().Str("a", pathA).Str("b", pathB).Float64("ssim", sim).Msg("computed similarity")
	return sim, nil
}

func (s *SSIMChecker) loadGray(path string) ([]float64, error) {
	img, err := imaging.Decode(path)
	if err != nil {
		s.log.Warn().Err(err).Str("file", path).Msg("similarity backend cannot read file")
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, path)
	}
	plane, _, _ := imaging.GrayPlane(imaging.ScaleGray(img, ssimDim, ssimDim))
	return plane, nil
}

// meanSSIM averages the SSIM index over non-overlapping windows of two
// equal-sized grayscale planes.
func meanSSIM(a, b []float64) float64 {
	var total float64
	var windows int

	for wy := 0; wy+ssimWindow <= ssimDim; wy += ssimWindow {
		for wx := 0; wx+ssimWindow <= ssimDim; wx += ssimWindow {
			total += windowSSIM(a, b, wx, wy)
			windows++
		}
	}
	if windows == 0 {
		return 0
	}
	return clamp01(total / float64(windows))
}

func windowSSIM(a, b []float64, wx, wy int) float64 {
	const n = ssimWindow * ssimWindow

	var meanA, meanB float64
	for y := 0; y < ssimWindow; y++ {
		for x := 0; x < ssimWindow; x++ {
			i := (wy+y)*ssimDim + wx + x
			meanA += a[i]
			meanB += b[i]
		}
	}
	meanA /= n
	meanB /= n

	var varA, varB, cov float64
	for y := 0; y < ssimWindow; y++ {
		for x := 0; x < ssimWindow; x++ {
			i := (wy+y)*ssimDim + wx + x
			da := a[i] - meanA
			db := b[i] - meanB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n - 1
	varB /= n - 1
	cov /= n - 1

	num := (2*meanA*meanB + ssimC1) * (2*cov + ssimC2)
	den := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	return num / den
}

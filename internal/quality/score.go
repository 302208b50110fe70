package quality

import "math"

// Score weights. These are design constants tuned against the legacy
// selector's behavior; changing them changes which variant wins, so they are
// deliberately not part of the configuration surface.
const (
	weightSharpness    = 0.40
	weightExposure     = 0.25
	weightColorfulness = 0.20
	weightContrast     = 0.15

	// Normalization constants for the unbounded raw metrics.
	sharpnessLogScale = 10.0 // ln(1+sharpness)/10
	colorfulnessCap   = 50.0
	contrastCap       = 60.0
)

// Score combines normalized metric components into the scalar used to rank
// front variants. Monotonically non-decreasing in every component.
func Score(m Metrics) float64 {
	sharp := math.Log1p(m.Sharpness) / sharpnessLogScale
	chroma := math.Min(m.Colorfulness/colorfulnessCap, 1)
	contrast := math.Min(m.ContrastStd/contrastCap, 1)

	return weightSharpness*sharp +
		weightExposure*m.ExposureScore +
		weightColorfulness*chroma +
		weightContrast*contrast
}

package variant

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/backmassage/scanmaster/internal/config"
	"github.com/backmassage/scanmaster/internal/quality"
)

// Reason explains why a variant was chosen.
type Reason string

const (
	ReasonSingleCandidate  Reason = "single_candidate"
	ReasonPolicyPreferBase Reason = "policy_prefer_base"
	ReasonPolicyPreferA    Reason = "policy_prefer_a"
	ReasonQualityMetrics   Reason = "quality_metrics"
	ReasonSSIMDuplicate    Reason = "ssim_duplicate"
)

// ErrNoFrontCandidates reports a contract violation: the caller passed a
// candidate list with no front-side variants. Backsides must be filtered out
// before selection.
var ErrNoFrontCandidates = errors.New("no front candidates to select from")

// Scorer produces a scalar quality score for an image file. The only error
// it may return is context cancellation; undecodable files score zero.
type Scorer interface {
	Score(ctx context.Context, path string) (float64, error)
}

// SimilarityChecker estimates perceptual similarity in [0,1] between two
// files. quality.ErrUnavailable means "no duplicate evidence", not failure.
type SimilarityChecker interface {
	Similarity(ctx context.Context, pathA, pathB string) (float64, error)
}

// Selection is the outcome of choosing among a group's front candidates.
type Selection struct {
	Chosen    Variant
	Reason    Reason
	Ambiguous bool               // Top two scores within the configured gap.
	Scores    map[string]float64 // Path → score, populated on the auto path.
}

// Selector chooses the best front variant per group using policy, quality
// scoring, and optional duplicate detection.
type Selector struct {
	scorer       Scorer
	similarity   SimilarityChecker // May be nil; treated as unavailable.
	simThreshold float64
	scoreGap     float64
	log          zerolog.Logger
}

// NewSelector builds a Selector. similarity may be nil.
func NewSelector(scorer Scorer, similarity SimilarityChecker, simThreshold, scoreGap float64) *Selector {
	return &Selector{
		scorer:       scorer,
		similarity:   similarity,
		simThreshold: simThreshold,
		scoreGap:     scoreGap,
		log:          log.Logger.With().Str("component", "selector").Logger(),
	}
}

// Select applies the decision ladder to a group's front candidates:
// precondition check, single candidate, explicit policy, then quality
// scoring with the base/augmented duplicate shortcut.
func (s *Selector) Select(ctx context.Context, fronts []Variant, policy config.Policy) (Selection, error) {
	if len(fronts) == 0 {
		return Selection{}, ErrNoFrontCandidates
	}
	if len(fronts) == 1 {
		return Selection{Chosen: fronts[0], Reason: ReasonSingleCandidate}, nil
	}

	base := find(fronts, RoleFront)
	augmented := find(fronts, RoleAugmented)

	if policy == config.PolicyPreferBase && base != nil {
		return Selection{Chosen: *base, Reason: ReasonPolicyPreferBase}, nil
	}
	if policy == config.PolicyPreferA && augmented != nil {
		return Selection{Chosen: *augmented, Reason: ReasonPolicyPreferA}, nil
	}

	return s.selectByQuality(ctx, fronts, base, augmented)
}

// selectByQuality scores every candidate, applies the near-duplicate
// shortcut for a base/augmented pair, and otherwise returns the top scorer
// with the ambiguity flag when the runner-up is within the score gap.
func (s *Selector) selectByQuality(ctx context.Context, fronts []Variant, base, augmented *Variant) (Selection, error) {
	scores := make(map[string]float64, len(fronts))
	ranked := make([]Variant, len(fronts))
	copy(ranked, fronts)

	for _, v := range fronts {
		score, err := s.scorer.Score(ctx, v.Path)
		if err != nil {
			return Selection{}, err
		}
		scores[v.Path] = score
	}

	// Stable: ties keep the original input order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].Path] > scores[ranked[j].Path]
	})

	// A base plus one augmented capture of the same front is often pixel-wise
	// near-identical; keeping the un-augmented original avoids storing
	// duplicates.
	if len(fronts) == 2 && base != nil && augmented != nil && s.similarity != nil {
		sim, err := s.similarity.Similarity(ctx, base.Path, augmented.Path)
		switch {
		case errors.Is(err, quality.ErrUnavailable):
			s.log.Debug().Str("stem", base.Stem).Msg("similarity unavailable, falling through to scores")
		case err != nil:
			return Selection{}, err
		case sim >= s.simThreshold:
			s.log.Debug().Str("stem", base.Stem).Float64("ssim", sim).Msg("variants are near-duplicates, keeping base")
			return Selection{Chosen: *base, Reason: ReasonSSIMDuplicate, Scores: scores}, nil
		}
	}

	sel := Selection{Chosen: ranked[0], Reason: ReasonQualityMetrics, Scores: scores}
	gap := scores[ranked[0].Path] - scores[ranked[1].Path]
	if gap < s.scoreGap {
		sel.Ambiguous = true
		s.log.Debug().
			Str("stem", ranked[0].Stem).
			Float64("gap", gap).
			Msg("top candidates are within the ambiguity margin")
	}
	return sel, nil
}

func find(fronts []Variant, role Role) *Variant {
	for i := range fronts {
		if fronts[i].Role == role {
			return &fronts[i]
		}
	}
	return nil
}

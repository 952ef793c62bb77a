package confidence

import (
	"math"
	"sort"

	"github.com/siherrmann/kgraph/model"
)

// Factor is one signal contributing to a combined confidence.
type Factor struct {
	Value  float64
	Weight float64
}

// Score is a combined confidence and its tier.
type Score struct {
	Confidence float64
	Tier       model.QualityTier
}

// Combine blends base with the weighted mean of factors and clamps the result
// to [0,1]. Weights are normalized within the call and factors with a
// non-positive or NaN weight are ignored. Without usable factors the result
// is the clamped base.
func Combine(base float64, factors map[string]Factor, cfg model.ConfidenceConfig) Score {
	base = sanitize(base)

	names := make([]string, 0, len(factors))
	for name, f := range factors {
		if f.Weight > 0 && !math.IsInf(f.Weight, 0) {
			names = append(names, name)
		}
	}
	// Sum in a fixed order so equal inputs give bit-identical results.
	sort.Strings(names)

	var weighted, totalWeight float64
	for _, name := range names {
		f := factors[name]
		weighted += sanitize(f.Value) * f.Weight
		totalWeight += f.Weight
	}

	combined := base
	if totalWeight > 0 {
		combined = (base + weighted/totalWeight) / 2
	}
	combined = Clamp(combined, 0, 1)

	return Score{Confidence: combined, Tier: TierFor(combined, cfg)}
}

// TierFor maps a confidence to its quality tier.
func TierFor(confidence float64, cfg model.ConfidenceConfig) model.QualityTier {
	switch {
	case confidence >= cfg.HighThreshold:
		return model.QualityTierHigh
	case confidence >= cfg.MediumThreshold:
		return model.QualityTierMedium
	default:
		return model.QualityTierLow
	}
}

// Clamp limits v to [lo, hi]. NaN becomes lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sanitize treats NaN as zero and bounds the value to the unit interval.
func sanitize(v float64) float64 {
	return Clamp(v, 0, 1)
}

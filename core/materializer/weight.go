package materializer

import (
	"math"
	"strings"

	"github.com/siherrmann/kgraph/core/confidence"
	"github.com/siherrmann/kgraph/model"
)

// ComputeWeight blends the relationship confidence, the extraction method
// confidence, the pattern confidence and the proximity factor into an edge
// weight within [cfg.MinWeight, cfg.MaxWeight]. Pattern confidence and entity
// distance only contribute when present. NaN inputs count as zero.
func ComputeWeight(candidate model.RelationshipCandidate, cfg model.EdgeConfig) float64 {
	var weighted, total float64
	add := func(value, weight float64) {
		if weight <= 0 {
			return
		}
		weighted += confidence.Clamp(value, 0, 1) * weight
		total += weight
	}

	add(candidate.Confidence, cfg.ConfidenceWeight)
	add(MethodConfidence(candidate.ExtractionMethod, cfg), cfg.MethodWeight)
	if candidate.PatternConfidence != nil {
		add(*candidate.PatternConfidence, cfg.PatternWeight)
	}
	if candidate.EntityDistance != nil {
		add(DistanceFactor(*candidate.EntityDistance, cfg.DistanceScale), cfg.DistanceWeight)
	}

	weight := confidence.Clamp(candidate.Confidence, 0, 1)
	if total > 0 {
		weight = weighted / total
	}

	return confidence.Clamp(weight, cfg.MinWeight, cfg.MaxWeight)
}

// MethodConfidence looks up the fixed confidence of an extraction method.
func MethodConfidence(method string, cfg model.EdgeConfig) float64 {
	if v, ok := cfg.MethodConfidence[strings.ToLower(strings.TrimSpace(method))]; ok {
		return v
	}
	return cfg.UnknownMethodConfidence
}

// DistanceFactor decreases linearly from 1 at distance zero to 0 at scale.
func DistanceFactor(distance int, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	d := math.Abs(float64(distance))
	return math.Max(0, 1-d/scale)
}

// IsProximityInferred reports whether the candidate was inferred from token
// proximity rather than extracted.
func IsProximityInferred(candidate model.RelationshipCandidate) bool {
	method := strings.ToLower(strings.TrimSpace(candidate.ExtractionMethod))
	if method == model.ExtractionMethodProximity || method == model.ExtractionMethodNER {
		return true
	}
	return candidate.EntityDistance != nil && method == ""
}

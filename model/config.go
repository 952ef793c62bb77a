package model

import (
	"fmt"
	"math"

	"github.com/siherrmann/kgraph/helper"
)

// ConfidenceConfig holds the tier thresholds shared by every stage so scores
// stay comparable.
type ConfidenceConfig struct {
	HighThreshold   float64 `json:"high_threshold" mapstructure:"high_threshold"`
	MediumThreshold float64 `json:"medium_threshold" mapstructure:"medium_threshold"`
}

// EntityConfig controls aggregate entity confidence.
type EntityConfig struct {
	MeanWeight      float64 `json:"mean_weight" mapstructure:"mean_weight"`
	BoostWeight     float64 `json:"boost_weight" mapstructure:"boost_weight"`
	BoostPerMention float64 `json:"boost_per_mention" mapstructure:"boost_per_mention"`
	MaxBoost        float64 `json:"max_boost" mapstructure:"max_boost"`
}

// EdgeConfig controls edge weighting and which candidates are persisted.
type EdgeConfig struct {
	ConfidenceWeight float64 `json:"confidence_weight" mapstructure:"confidence_weight"`
	MethodWeight     float64 `json:"method_weight" mapstructure:"method_weight"`
	PatternWeight    float64 `json:"pattern_weight" mapstructure:"pattern_weight"`
	DistanceWeight   float64 `json:"distance_weight" mapstructure:"distance_weight"`
	// DistanceScale is the token distance at which the proximity factor reaches zero.
	DistanceScale float64 `json:"distance_scale" mapstructure:"distance_scale"`
	MinWeight     float64 `json:"min_weight" mapstructure:"min_weight"`
	MaxWeight     float64 `json:"max_weight" mapstructure:"max_weight"`
	// MethodConfidence maps extraction methods to a fixed confidence.
	// Methods not in the table use UnknownMethodConfidence.
	MethodConfidence        map[string]float64 `json:"method_confidence" mapstructure:"method_confidence"`
	UnknownMethodConfidence float64            `json:"unknown_method_confidence" mapstructure:"unknown_method_confidence"`
	AllowProximityEdges     bool               `json:"allow_proximity_edges" mapstructure:"allow_proximity_edges"`

	// Factor weights of the edge quality assessment.
	QualityExtractionWeight float64 `json:"quality_extraction_weight" mapstructure:"quality_extraction_weight"`
	QualityStrengthWeight   float64 `json:"quality_strength_weight" mapstructure:"quality_strength_weight"`
	QualityEvidenceWeight   float64 `json:"quality_evidence_weight" mapstructure:"quality_evidence_weight"`
}

// RankConfig controls the power iteration.
type RankConfig struct {
	Damping       float64 `json:"damping" mapstructure:"damping"`
	MaxIterations int     `json:"max_iterations" mapstructure:"max_iterations"`
	Epsilon       float64 `json:"epsilon" mapstructure:"epsilon"`
}

// QueryConfig represents configuration for a multi-hop query
type QueryConfig struct {
	DefaultMaxHops     int     `json:"default_max_hops" mapstructure:"default_max_hops"`
	MaxHopsLimit       int     `json:"max_hops_limit" mapstructure:"max_hops_limit"`
	DefaultResultLimit int     `json:"default_result_limit" mapstructure:"default_result_limit"`
	HopDecay           float64 `json:"hop_decay" mapstructure:"hop_decay"`
	// MaxExpandedNodes bounds the nodes visited per seed.
	MaxExpandedNodes int `json:"max_expanded_nodes" mapstructure:"max_expanded_nodes"`
	// SeedCandidates is how many name matches are fetched per seed phrase.
	SeedCandidates int `json:"seed_candidates" mapstructure:"seed_candidates"`
}

// Config aggregates the tunable constants of all stages.
type Config struct {
	Confidence ConfidenceConfig `json:"confidence" mapstructure:"confidence"`
	Entity     EntityConfig     `json:"entity" mapstructure:"entity"`
	Edge       EdgeConfig       `json:"edge" mapstructure:"edge"`
	Rank       RankConfig       `json:"rank" mapstructure:"rank"`
	Query      QueryConfig      `json:"query" mapstructure:"query"`
}

// DefaultMethodConfidence returns the default extraction method table.
func DefaultMethodConfidence() map[string]float64 {
	return map[string]float64{
		ExtractionMethodManual:     1.0,
		ExtractionMethodDependency: 0.85,
		ExtractionMethodLLM:        0.8,
		ExtractionMethodPattern:    0.75,
		ExtractionMethodNER:        0.5,
		ExtractionMethodProximity:  0.4,
	}
}

// DefaultQueryConfig returns a sensible default configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		DefaultMaxHops:     2,
		MaxHopsLimit:       5,
		DefaultResultLimit: 10,
		HopDecay:           0.85,
		MaxExpandedNodes:   500,
		SeedCandidates:     5,
	}
}

// DefaultConfig returns the default constants of every stage.
func DefaultConfig() Config {
	return Config{
		Confidence: ConfidenceConfig{
			HighThreshold:   0.8,
			MediumThreshold: 0.5,
		},
		Entity: EntityConfig{
			MeanWeight:      0.7,
			BoostWeight:     0.3,
			BoostPerMention: 0.05,
			MaxBoost:        0.2,
		},
		Edge: EdgeConfig{
			ConfidenceWeight:        0.4,
			MethodWeight:            0.3,
			PatternWeight:           0.2,
			DistanceWeight:          0.1,
			DistanceScale:           200,
			MinWeight:               0.1,
			MaxWeight:               1.0,
			MethodConfidence:        DefaultMethodConfidence(),
			UnknownMethodConfidence: 0.5,
			AllowProximityEdges:     true,
			QualityExtractionWeight: 0.4,
			QualityStrengthWeight:   0.3,
			QualityEvidenceWeight:   0.3,
		},
		Rank: RankConfig{
			Damping:       0.85,
			MaxIterations: 100,
			Epsilon:       1e-6,
		},
		Query: DefaultQueryConfig(),
	}
}

// Validate rejects out of range values.
func (c Config) Validate() error {
	var problems []string
	inUnit := func(name string, v float64) {
		if math.IsNaN(v) || v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("%s must be within [0,1], got %v", name, v))
		}
	}

	inUnit("confidence.high_threshold", c.Confidence.HighThreshold)
	inUnit("confidence.medium_threshold", c.Confidence.MediumThreshold)
	if c.Confidence.MediumThreshold > c.Confidence.HighThreshold {
		problems = append(problems, "confidence.medium_threshold must not exceed confidence.high_threshold")
	}

	inUnit("entity.mean_weight", c.Entity.MeanWeight)
	inUnit("entity.boost_weight", c.Entity.BoostWeight)
	inUnit("entity.boost_per_mention", c.Entity.BoostPerMention)
	inUnit("entity.max_boost", c.Entity.MaxBoost)

	inUnit("edge.confidence_weight", c.Edge.ConfidenceWeight)
	inUnit("edge.method_weight", c.Edge.MethodWeight)
	inUnit("edge.pattern_weight", c.Edge.PatternWeight)
	inUnit("edge.distance_weight", c.Edge.DistanceWeight)
	inUnit("edge.min_weight", c.Edge.MinWeight)
	inUnit("edge.max_weight", c.Edge.MaxWeight)
	inUnit("edge.unknown_method_confidence", c.Edge.UnknownMethodConfidence)
	inUnit("edge.quality_extraction_weight", c.Edge.QualityExtractionWeight)
	inUnit("edge.quality_strength_weight", c.Edge.QualityStrengthWeight)
	inUnit("edge.quality_evidence_weight", c.Edge.QualityEvidenceWeight)
	if c.Edge.MinWeight == 0 {
		// Stored relationships need a weight above zero.
		problems = append(problems, "edge.min_weight must be positive")
	}
	if c.Edge.MinWeight > c.Edge.MaxWeight {
		problems = append(problems, "edge.min_weight must not exceed edge.max_weight")
	}
	if c.Edge.DistanceScale <= 0 {
		problems = append(problems, "edge.distance_scale must be positive")
	}
	for method, v := range c.Edge.MethodConfidence {
		inUnit("edge.method_confidence."+method, v)
	}

	if c.Rank.Damping <= 0 || c.Rank.Damping >= 1 {
		problems = append(problems, fmt.Sprintf("rank.damping must be within (0,1), got %v", c.Rank.Damping))
	}
	if c.Rank.MaxIterations < 1 {
		problems = append(problems, "rank.max_iterations must be at least 1")
	}
	if c.Rank.Epsilon < 0 {
		problems = append(problems, "rank.epsilon must not be negative")
	}

	if c.Query.DefaultMaxHops < 0 || c.Query.MaxHopsLimit < c.Query.DefaultMaxHops {
		problems = append(problems, "query.default_max_hops must be within [0, query.max_hops_limit]")
	}
	if c.Query.DefaultResultLimit < 1 {
		problems = append(problems, "query.default_result_limit must be at least 1")
	}
	if c.Query.HopDecay <= 0 || c.Query.HopDecay > 1 {
		problems = append(problems, "query.hop_decay must be within (0,1]")
	}
	if c.Query.MaxExpandedNodes < 1 {
		problems = append(problems, "query.max_expanded_nodes must be at least 1")
	}
	if c.Query.SeedCandidates < 1 {
		problems = append(problems, "query.seed_candidates must be at least 1")
	}

	if len(problems) > 0 {
		return helper.NewError("config validation", fmt.Errorf("%w: %v", helper.ErrInvalidInput, problems))
	}
	return nil
}

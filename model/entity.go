package model

import (
	"time"
)

// QualityTier is the discrete bucket derived from a confidence score.
type QualityTier string

const (
	QualityTierHigh   QualityTier = "HIGH"
	QualityTierMedium QualityTier = "MEDIUM"
	QualityTierLow    QualityTier = "LOW"
)

// Entity is a canonical, deduplicated node. Exactly one exists per EntityID.
type Entity struct {
	EntityID       string      `json:"entity_id"`
	CanonicalName  string      `json:"canonical_name"`
	EntityType     string      `json:"entity_type"`
	SurfaceForms   []string    `json:"surface_forms"`
	MentionCount   int         `json:"mention_count"`
	Confidence     float64     `json:"confidence"`
	QualityTier    QualityTier `json:"quality_tier"`
	SourceMentions []string    `json:"source_mentions"`
	Sources        []string    `json:"sources"`
	RankScore      *float64    `json:"rank_score,omitempty"`
	Metadata       Metadata    `json:"metadata,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	// Results
	MatchScore float64 `json:"match_score,omitempty"`
}

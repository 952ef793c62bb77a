package model

import (
	"time"

	"github.com/google/uuid"
)

// Extraction methods with a known confidence in the default weight table.
const (
	ExtractionMethodManual     = "manual"
	ExtractionMethodDependency = "dependency_parsing"
	ExtractionMethodLLM        = "llm"
	ExtractionMethodPattern    = "pattern_matching"
	ExtractionMethodNER        = "ner_cooccurrence"
	ExtractionMethodProximity  = "proximity"
)

// RelationshipTypeRelatedTo is used when a label sanitizes to nothing.
const RelationshipTypeRelatedTo = "RELATED_TO"

// RelationshipCandidate is a relationship as produced by the upstream extractor.
type RelationshipCandidate struct {
	SubjectEntityID   string   `json:"subject_entity_id"`
	ObjectEntityID    string   `json:"object_entity_id"`
	RelationshipType  string   `json:"relationship_type"`
	Confidence        float64  `json:"confidence"`
	EvidenceText      string   `json:"evidence_text"`
	ExtractionMethod  string   `json:"extraction_method"`
	PatternConfidence *float64 `json:"pattern_confidence,omitempty"`
	EntityDistance    *int     `json:"entity_distance,omitempty"`
}

// Relationship is a persisted directed, typed and weighted edge.
type Relationship struct {
	RelationshipID   uuid.UUID   `json:"relationship_id"`
	SubjectEntityID  string      `json:"subject_entity_id"`
	ObjectEntityID   string      `json:"object_entity_id"`
	RelationshipType string      `json:"relationship_type"`
	Weight           float64     `json:"weight"`
	Confidence       float64     `json:"confidence"`
	QualityTier      QualityTier `json:"quality_tier"`
	ExtractionMethod string      `json:"extraction_method"`
	EvidenceText     string      `json:"evidence_text"`
	Sources          []string    `json:"sources"`
	Metadata         Metadata    `json:"metadata,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// RelationshipConnection is a relationship seen from one of its endpoints.
type RelationshipConnection struct {
	Relationship *Relationship `json:"relationship"`
	IsOutgoing   bool          `json:"is_outgoing"`
}

// Neighbor returns the entity id on the other side of the connection.
func (c *RelationshipConnection) Neighbor() string {
	if c.IsOutgoing {
		return c.Relationship.ObjectEntityID
	}
	return c.Relationship.SubjectEntityID
}

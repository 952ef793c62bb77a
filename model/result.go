package model

import "github.com/google/uuid"

// WriteStatus is the outcome of persisting a single item of a batch.
type WriteStatus string

const (
	WriteStatusCreated          WriteStatus = "created"
	WriteStatusExists           WriteStatus = "exists"
	WriteStatusMissingEndpoints WriteStatus = "missing_endpoints"
	WriteStatusFailed           WriteStatus = "failed"
)

// WriteOutcome reports what happened to one item of a batch write.
type WriteOutcome struct {
	Status         WriteStatus `json:"status"`
	MissingSubject bool        `json:"missing_subject,omitempty"`
	MissingObject  bool        `json:"missing_object,omitempty"`
	Err            error       `json:"-"`
}

// SkippedItem names an input item that was skipped and why.
type SkippedItem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// EntityBuildResult is returned by the entity resolver.
type EntityBuildResult struct {
	Created       []*Entity      `json:"created"`
	CountsByType  map[string]int `json:"counts_by_type"`
	ExistingCount int            `json:"existing_count"`
	SkippedCount  int            `json:"skipped_count"`
	FailedCount   int            `json:"failed_count"`
	Skipped       []SkippedItem  `json:"skipped,omitempty"`
}

// MissingEndpoint reports a relationship whose endpoints were not found.
type MissingEndpoint struct {
	RelationshipID  uuid.UUID `json:"relationship_id"`
	SubjectEntityID string    `json:"subject_entity_id"`
	ObjectEntityID  string    `json:"object_entity_id"`
	MissingSubject  bool      `json:"missing_subject"`
	MissingObject   bool      `json:"missing_object"`
}

// EdgeBuildOptions controls a relationship materializer run.
type EdgeBuildOptions struct {
	VerifyEndpoints bool `json:"verify_endpoints"`
}

// EdgeBuildResult is returned by the relationship materializer.
type EdgeBuildResult struct {
	Created          []*Relationship   `json:"created"`
	CountsByType     map[string]int    `json:"counts_by_type"`
	SkippedCount     int               `json:"skipped_count"`
	FailedCount      int               `json:"failed_count"`
	Skipped          []SkippedItem     `json:"skipped,omitempty"`
	MissingEntityIDs []string          `json:"missing_entity_ids,omitempty"`
	MissingEndpoints []MissingEndpoint `json:"missing_endpoints,omitempty"`
}

// RankOptions scopes a rank computation. Empty Sources means the whole graph.
type RankOptions struct {
	Sources []string `json:"sources,omitempty"`
}

// RankedEntity is one row of a ranking.
type RankedEntity struct {
	EntityID      string  `json:"entity_id"`
	CanonicalName string  `json:"canonical_name"`
	Score         float64 `json:"score"`
}

// RankResult is returned by the importance ranker.
type RankResult struct {
	Ranked     []RankedEntity `json:"ranked"`
	Iterations int            `json:"iterations"`
	Converged  bool           `json:"converged"`
	Cancelled  bool           `json:"cancelled"`
	Persisted  bool           `json:"persisted"`
}

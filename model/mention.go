package model

// Mention is one surface-form occurrence of an entity in a source unit.
// Mentions are produced by the upstream extractor and never modified here.
type Mention struct {
	MentionID   string  `json:"mention_id"`
	EntityID    string  `json:"entity_id"`
	SurfaceForm string  `json:"surface_form"`
	EntityType  string  `json:"entity_type"`
	Confidence  float64 `json:"confidence"`
	SourceRef   string  `json:"source_ref"`
}

// Identity is what an identity service knows about a linked entity id.
type Identity struct {
	EntityID      string `json:"entity_id"`
	CanonicalName string `json:"canonical_name"`
	EntityType    string `json:"entity_type"`
}

package model

// QueryRequest is a natural-language question against the graph.
// Nil MaxHops and ResultLimit fall back to the configured defaults.
type QueryRequest struct {
	Question    string `json:"question"`
	MaxHops     *int   `json:"max_hops,omitempty"`
	ResultLimit *int   `json:"result_limit,omitempty"`
}

// PathStep is one traversed relationship of an answer path.
type PathStep struct {
	FromEntityID     string  `json:"from_entity_id"`
	FromName         string  `json:"from_name"`
	ToEntityID       string  `json:"to_entity_id"`
	ToName           string  `json:"to_name"`
	RelationshipType string  `json:"relationship_type"`
	Weight           float64 `json:"weight"`
	// Forward is false when the relationship was followed against its direction.
	Forward bool `json:"forward"`
}

// QueryAnswer is one ranked, explainable answer.
type QueryAnswer struct {
	Answer      string     `json:"answer"`
	EntityID    string     `json:"entity_id"`
	EntityType  string     `json:"entity_type"`
	Confidence  float64    `json:"confidence"`
	Hops        int        `json:"hops"`
	Explanation string     `json:"explanation"`
	Path        []PathStep `json:"path"`
}

// QueryResponse is returned for every well-formed question. An empty Results
// slice means no answer was found.
type QueryResponse struct {
	Intent       string        `json:"intent"`
	Seeds        []string      `json:"seeds"`
	Results      []QueryAnswer `json:"results"`
	TotalResults int           `json:"total_results"`
}

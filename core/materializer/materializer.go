package materializer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/kgraph/core/confidence"
	"github.com/siherrmann/kgraph/core/provenance"
	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
)

// Store persists relationships and answers endpoint existence checks.
type Store interface {
	SelectExistingEntityIDs(ctx context.Context, entityIDs []string) ([]string, error)
	InsertRelationships(ctx context.Context, relationships []*model.Relationship) ([]model.WriteOutcome, error)
}

// Materializer verifies, weights and persists relationship candidates.
type Materializer struct {
	store  Store
	sink   provenance.Sink
	cfg    model.Config
	logger *slog.Logger
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithProvenanceSink sets the sink receiving start and complete records.
func WithProvenanceSink(sink provenance.Sink) Option {
	return func(m *Materializer) { m.sink = sink }
}

// NewMaterializer creates a new relationship materializer.
func NewMaterializer(store Store, cfg model.Config, logger *slog.Logger, opts ...Option) (*Materializer, error) {
	if store == nil {
		return nil, helper.NewError("materializer validation", fmt.Errorf("%w: relationship store is nil", helper.ErrInvalidInput))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Materializer{
		store:  store,
		sink:   provenance.NopSink{},
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// BuildEdges turns candidates into weighted relationships and persists them.
//
// With opts.VerifyEndpoints every referenced entity id is checked in one store
// call first. If any is missing nothing is written and the returned error is a
// *helper.ReferentialIntegrityError; the result lists the missing ids.
// Otherwise each insert checks its own endpoints and relationships with a
// missing endpoint are reported in MissingEndpoints while the rest of the
// batch continues.
func (m *Materializer) BuildEdges(ctx context.Context, candidates []model.RelationshipCandidate, sources []string, opts model.EdgeBuildOptions) (*model.EdgeBuildResult, error) {
	complete := provenance.Track(ctx, m.sink, m.logger, helper.ToolID, "build_edges", map[string]any{
		"candidates":       len(candidates),
		"sources":          sources,
		"verify_endpoints": opts.VerifyEndpoints,
	})

	result, err := m.buildEdges(ctx, candidates, sources, opts)
	if err != nil {
		outputs := map[string]any(nil)
		if result != nil {
			outputs = map[string]any{"missing_entity_ids": result.MissingEntityIDs}
		}
		complete(outputs, err)
		return result, err
	}

	complete(map[string]any{
		"created":           len(result.Created),
		"skipped":           result.SkippedCount,
		"failed":            result.FailedCount,
		"missing_endpoints": len(result.MissingEndpoints),
	}, nil)
	return result, nil
}

func (m *Materializer) buildEdges(ctx context.Context, candidates []model.RelationshipCandidate, sources []string, opts model.EdgeBuildOptions) (*model.EdgeBuildResult, error) {
	result := &model.EdgeBuildResult{
		Created:      []*model.Relationship{},
		CountsByType: map[string]int{},
	}
	if len(candidates) == 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, helper.NewError("build edges", err)
	}

	m.logger.Info("Building edges", "candidates", len(candidates), "verify_endpoints", opts.VerifyEndpoints)

	valid := make([]model.RelationshipCandidate, 0, len(candidates))
	for i, candidate := range candidates {
		if reason := m.rejectReason(candidate); reason != "" {
			m.skip(result, fmt.Sprintf("candidate-%d", i), reason)
			continue
		}
		valid = append(valid, candidate)
	}

	if opts.VerifyEndpoints && len(valid) > 0 {
		missing, err := m.missingEndpoints(ctx, valid)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			integrityErr := helper.NewReferentialIntegrityError(missing)
			result.MissingEntityIDs = integrityErr.MissingIDs
			m.logger.Warn("Rejecting edge batch with missing endpoints", "missing", len(integrityErr.MissingIDs))
			return result, integrityErr
		}
	}

	batchSources := distinctSorted(sources)
	relationships := make([]*model.Relationship, 0, len(valid))
	for _, candidate := range valid {
		relationships = append(relationships, m.relationship(candidate, batchSources))
	}

	if len(relationships) > 0 {
		outcomes, err := m.store.InsertRelationships(ctx, relationships)
		if err != nil {
			m.logger.Error("Edge batch failed", "relationships", len(relationships), "error", err)
			return nil, helper.NewError("insert relationships", err)
		}

		for i, outcome := range outcomes {
			relationship := relationships[i]
			switch outcome.Status {
			case model.WriteStatusCreated:
				result.Created = append(result.Created, relationship)
				result.CountsByType[relationship.RelationshipType]++
			case model.WriteStatusMissingEndpoints:
				result.MissingEndpoints = append(result.MissingEndpoints, model.MissingEndpoint{
					RelationshipID:  relationship.RelationshipID,
					SubjectEntityID: relationship.SubjectEntityID,
					ObjectEntityID:  relationship.ObjectEntityID,
					MissingSubject:  outcome.MissingSubject,
					MissingObject:   outcome.MissingObject,
				})
				m.skip(result, relationship.RelationshipID.String(), "missing endpoints")
			default:
				result.FailedCount++
				m.logger.Warn("Relationship not persisted", "relationship_id", relationship.RelationshipID.String(), "error", outcome.Err)
			}
		}
	}

	m.logger.Info("Built edges",
		"created", len(result.Created),
		"skipped", result.SkippedCount,
		"failed", result.FailedCount,
		"missing_endpoints", len(result.MissingEndpoints),
	)

	return result, nil
}

func (m *Materializer) rejectReason(candidate model.RelationshipCandidate) string {
	switch {
	case strings.TrimSpace(candidate.SubjectEntityID) == "" || strings.TrimSpace(candidate.ObjectEntityID) == "":
		return "missing endpoint id"
	case math.IsNaN(candidate.Confidence) || candidate.Confidence < 0 || candidate.Confidence > 1:
		return "confidence out of range"
	case !m.cfg.Edge.AllowProximityEdges && IsProximityInferred(candidate):
		return "proximity edges disabled"
	}
	return ""
}

// missingEndpoints checks all distinct endpoint ids with one store call.
func (m *Materializer) missingEndpoints(ctx context.Context, candidates []model.RelationshipCandidate) ([]string, error) {
	ids := make([]string, 0, 2*len(candidates))
	for _, c := range candidates {
		ids = append(ids, strings.TrimSpace(c.SubjectEntityID), strings.TrimSpace(c.ObjectEntityID))
	}
	ids = distinctSorted(ids)

	existing, err := m.store.SelectExistingEntityIDs(ctx, ids)
	if err != nil {
		return nil, helper.NewError("verify endpoints", err)
	}

	found := make(map[string]bool, len(existing))
	for _, id := range existing {
		found[id] = true
	}

	missing := []string{}
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (m *Materializer) relationship(candidate model.RelationshipCandidate, sources []string) *model.Relationship {
	cfg := m.cfg.Edge
	weight := ComputeWeight(candidate, cfg)
	evidence := EvidenceQuality(candidate.EvidenceText)
	quality := confidence.Combine(candidate.Confidence, map[string]confidence.Factor{
		"extraction_confidence": {Value: candidate.Confidence, Weight: cfg.QualityExtractionWeight},
		"weight_strength":       {Value: weight, Weight: cfg.QualityStrengthWeight},
		"evidence_quality":      {Value: evidence, Weight: cfg.QualityEvidenceWeight},
	}, m.cfg.Confidence)

	method := strings.ToLower(strings.TrimSpace(candidate.ExtractionMethod))
	if method == "" {
		method = "unknown"
	}

	metadata := model.Metadata{
		"quality_score":    quality.Confidence,
		"evidence_quality": evidence,
	}
	if candidate.RelationshipType != "" {
		metadata["raw_relationship_type"] = candidate.RelationshipType
	}
	if candidate.PatternConfidence != nil {
		metadata["pattern_confidence"] = *candidate.PatternConfidence
	}
	if candidate.EntityDistance != nil {
		metadata["entity_distance"] = *candidate.EntityDistance
	}

	return &model.Relationship{
		RelationshipID:   uuid.New(),
		SubjectEntityID:  strings.TrimSpace(candidate.SubjectEntityID),
		ObjectEntityID:   strings.TrimSpace(candidate.ObjectEntityID),
		RelationshipType: SanitizeRelationshipType(candidate.RelationshipType),
		Weight:           weight,
		Confidence:       candidate.Confidence,
		QualityTier:      quality.Tier,
		ExtractionMethod: method,
		EvidenceText:     candidate.EvidenceText,
		Sources:          sources,
		Metadata:         metadata,
	}
}

func (m *Materializer) skip(result *model.EdgeBuildResult, id string, reason string) {
	result.SkippedCount++
	result.Skipped = append(result.Skipped, model.SkippedItem{ID: id, Reason: reason})
	m.logger.Warn("Skipping relationship", "id", id, "reason", reason)
}

func distinctSorted(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

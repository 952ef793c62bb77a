package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/siherrmann/kgraph/core/confidence"
	"github.com/siherrmann/kgraph/core/provenance"
	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
)

// UnknownEntityType is used when neither the identity service nor any mention
// carries a type.
const UnknownEntityType = "UNKNOWN"

// EntityStore persists entities.
type EntityStore interface {
	InsertEntities(ctx context.Context, entities []*model.Entity) ([]model.WriteOutcome, error)
}

// IdentityService resolves a linked entity id to its canonical identity.
// It returns helper.ErrIdentityNotFound for unknown ids.
type IdentityService interface {
	Lookup(ctx context.Context, entityID string) (*model.Identity, error)
}

// Resolver groups mentions into canonical entities and persists them.
type Resolver struct {
	store      EntityStore
	identities IdentityService
	sink       provenance.Sink
	cfg        model.Config
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithIdentityService makes the resolver take canonical names and types from
// service and skip groups it cannot resolve.
func WithIdentityService(service IdentityService) Option {
	return func(r *Resolver) { r.identities = service }
}

// WithProvenanceSink sets the sink receiving start and complete records.
func WithProvenanceSink(sink provenance.Sink) Option {
	return func(r *Resolver) { r.sink = sink }
}

// NewResolver creates a new entity resolver.
func NewResolver(store EntityStore, cfg model.Config, logger *slog.Logger, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, helper.NewError("resolver validation", fmt.Errorf("%w: entity store is nil", helper.ErrInvalidInput))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Resolver{
		store:  store,
		sink:   provenance.NopSink{},
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

type mentionGroup struct {
	entityID string
	mentions []model.Mention
}

// BuildEntities groups mentions by entity id, aggregates every group into one
// entity and persists all of them in a single batch. Invalid mentions and
// groups the identity service cannot resolve are skipped and counted. An
// empty batch is a no-op.
func (r *Resolver) BuildEntities(ctx context.Context, mentions []model.Mention, sources []string) (*model.EntityBuildResult, error) {
	complete := provenance.Track(ctx, r.sink, r.logger, helper.ToolID, "build_entities", map[string]any{
		"mentions": len(mentions),
		"sources":  sources,
	})

	result, err := r.buildEntities(ctx, mentions, sources)
	if err != nil {
		complete(nil, err)
		return nil, err
	}

	complete(map[string]any{
		"created":  len(result.Created),
		"existing": result.ExistingCount,
		"skipped":  result.SkippedCount,
		"failed":   result.FailedCount,
	}, nil)
	return result, nil
}

func (r *Resolver) buildEntities(ctx context.Context, mentions []model.Mention, sources []string) (*model.EntityBuildResult, error) {
	result := &model.EntityBuildResult{
		Created:      []*model.Entity{},
		CountsByType: map[string]int{},
	}
	if len(mentions) == 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, helper.NewError("build entities", err)
	}

	r.logger.Info("Building entities", "mentions", len(mentions), "sources", len(sources))

	groups := r.groupMentions(mentions, result)

	entities := make([]*model.Entity, 0, len(groups))
	for _, group := range groups {
		var identity *model.Identity
		if r.identities != nil {
			var err error
			identity, err = r.identities.Lookup(ctx, group.entityID)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, helper.NewError("identity lookup", ctxErr)
				}
				reason := "identity lookup failed"
				if errors.Is(err, helper.ErrIdentityNotFound) {
					reason = "identity not found"
				}
				r.skip(result, group.entityID, reason, err)
				continue
			}
		}

		entities = append(entities, r.aggregate(group, identity, sources))
	}

	if len(entities) > 0 {
		outcomes, err := r.store.InsertEntities(ctx, entities)
		if err != nil {
			r.logger.Error("Entity batch failed", "entities", len(entities), "error", err)
			return nil, helper.NewError("insert entities", err)
		}

		for i, outcome := range outcomes {
			switch outcome.Status {
			case model.WriteStatusCreated:
				result.Created = append(result.Created, entities[i])
				result.CountsByType[entities[i].EntityType]++
			case model.WriteStatusExists:
				result.ExistingCount++
			default:
				result.FailedCount++
				r.logger.Warn("Entity not persisted", "entity_id", entities[i].EntityID, "error", outcome.Err)
			}
		}
	}

	r.logger.Info("Built entities",
		"created", len(result.Created),
		"existing", result.ExistingCount,
		"skipped", result.SkippedCount,
		"failed", result.FailedCount,
	)

	return result, nil
}

// groupMentions validates mentions and groups them by entity id in first-seen
// order.
func (r *Resolver) groupMentions(mentions []model.Mention, result *model.EntityBuildResult) []*mentionGroup {
	index := map[string]*mentionGroup{}
	groups := []*mentionGroup{}

	for _, mention := range mentions {
		entityID := strings.TrimSpace(mention.EntityID)
		switch {
		case entityID == "":
			r.skip(result, mention.MentionID, "missing entity id", nil)
			continue
		case math.IsNaN(mention.Confidence) || mention.Confidence < 0 || mention.Confidence > 1:
			r.skip(result, mention.MentionID, "confidence out of range", nil)
			continue
		}

		group, ok := index[entityID]
		if !ok {
			group = &mentionGroup{entityID: entityID}
			index[entityID] = group
			groups = append(groups, group)
		}
		group.mentions = append(group.mentions, mention)
	}

	return groups
}

func (r *Resolver) aggregate(group *mentionGroup, identity *model.Identity, sources []string) *model.Entity {
	surfaceForms := []string{}
	seenForms := map[string]bool{}
	mentionIDs := []string{}
	seenMentions := map[string]bool{}
	sourceSet := map[string]bool{}
	typeCounts := map[string]int{}
	typeOrder := []string{}
	var sum float64

	for _, s := range sources {
		if s != "" {
			sourceSet[s] = true
		}
	}

	for _, mention := range group.mentions {
		sum += mention.Confidence

		if form := strings.TrimSpace(mention.SurfaceForm); form != "" && !seenForms[form] {
			seenForms[form] = true
			surfaceForms = append(surfaceForms, form)
		}
		if mention.MentionID != "" && !seenMentions[mention.MentionID] {
			seenMentions[mention.MentionID] = true
			mentionIDs = append(mentionIDs, mention.MentionID)
		}
		if mention.SourceRef != "" {
			sourceSet[mention.SourceRef] = true
		}
		if t := strings.TrimSpace(mention.EntityType); t != "" {
			if typeCounts[t] == 0 {
				typeOrder = append(typeOrder, t)
			}
			typeCounts[t]++
		}
	}

	entity := &model.Entity{
		EntityID:       group.entityID,
		CanonicalName:  group.entityID,
		EntityType:     UnknownEntityType,
		SurfaceForms:   surfaceForms,
		MentionCount:   len(group.mentions),
		SourceMentions: mentionIDs,
		Sources:        sortedKeys(sourceSet),
	}

	if len(surfaceForms) > 0 {
		entity.CanonicalName = surfaceForms[0]
	}
	if t := mostFrequent(typeOrder, typeCounts); t != "" {
		entity.EntityType = t
	}
	if identity != nil {
		if identity.CanonicalName != "" {
			entity.CanonicalName = identity.CanonicalName
		}
		if identity.EntityType != "" {
			entity.EntityType = identity.EntityType
		}
	}

	score := r.aggregateConfidence(sum/float64(len(group.mentions)), len(group.mentions))
	entity.Confidence = score.Confidence
	entity.QualityTier = score.Tier

	return entity
}

// aggregateConfidence blends the mean mention confidence with a capped boost
// for repeated mentions.
func (r *Resolver) aggregateConfidence(mean float64, mentionCount int) confidence.Score {
	cfg := r.cfg.Entity
	boost := math.Min(cfg.BoostPerMention*float64(mentionCount-1), cfg.MaxBoost)
	boosted := math.Min(1, mean+boost)

	return confidence.Combine(mean, map[string]confidence.Factor{
		"mention_confidence": {Value: mean, Weight: cfg.MeanWeight},
		"mention_boost":      {Value: boosted, Weight: cfg.BoostWeight},
	}, r.cfg.Confidence)
}

func (r *Resolver) skip(result *model.EntityBuildResult, id string, reason string, err error) {
	result.SkippedCount++
	result.Skipped = append(result.Skipped, model.SkippedItem{ID: id, Reason: reason})
	if err != nil {
		r.logger.Warn("Skipping entity group", "id", id, "reason", reason, "error", err)
		return
	}
	r.logger.Warn("Skipping mention", "id", id, "reason", reason)
}

// mostFrequent returns the most frequent value, preferring the first seen on ties.
func mostFrequent(order []string, counts map[string]int) string {
	best := ""
	for _, v := range order {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

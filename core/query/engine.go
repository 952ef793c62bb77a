package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/siherrmann/kgraph/core/graph"
	"github.com/siherrmann/kgraph/core/provenance"
	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
)

// EntitySearcher finds entities whose names match a term.
type EntitySearcher interface {
	SearchEntities(ctx context.Context, term string, entityTypes []string, limit int) ([]*model.Entity, error)
}

// Store is everything the engine reads.
type Store interface {
	EntitySearcher
	graph.GraphDB
}

// Engine answers natural language questions by seeding on the entities a
// question names and expanding the graph around them.
type Engine struct {
	store  Store
	sink   provenance.Sink
	cfg    model.Config
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithProvenanceSink sets the sink receiving start and complete records.
func WithProvenanceSink(sink provenance.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// NewEngine creates a new query engine.
func NewEngine(store Store, cfg model.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, helper.NewError("engine validation", fmt.Errorf("%w: store is nil", helper.ErrInvalidInput))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		store:  store,
		sink:   provenance.NopSink{},
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

type candidate struct {
	entity *model.Entity
	seed   *model.Entity
	path   []*model.RelationshipConnection
	score  float64
	isSeed bool
}

// Answer parses the question, resolves its seed entities and returns the
// best scored entities within the hop limit. A question naming no known
// entity yields an empty response. If ctx ends during expansion the results
// gathered so far are returned.
func (e *Engine) Answer(ctx context.Context, req model.QueryRequest) (*model.QueryResponse, error) {
	complete := provenance.Track(ctx, e.sink, e.logger, helper.ToolID, "query", map[string]any{
		"question": req.Question,
	})

	response, err := e.answer(ctx, req)
	if err != nil {
		complete(nil, err)
		return nil, err
	}

	complete(map[string]any{
		"intent":        response.Intent,
		"seeds":         len(response.Seeds),
		"results":       len(response.Results),
		"total_results": response.TotalResults,
	}, nil)
	return response, nil
}

func (e *Engine) answer(ctx context.Context, req model.QueryRequest) (*model.QueryResponse, error) {
	maxHops, limit, err := e.limits(req)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseQuestion(req.Question)
	if err != nil {
		return nil, err
	}

	response := &model.QueryResponse{
		Intent:  string(parsed.Intent),
		Seeds:   []string{},
		Results: []model.QueryAnswer{},
	}

	seeds, err := e.resolveSeeds(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		e.logger.Debug("No seed entity found", "question", req.Question, "seed_phrase", parsed.SeedPhrase)
		return response, nil
	}
	for _, seed := range seeds {
		response.Seeds = append(response.Seeds, seed.EntityID)
	}

	relationshipTypes, err := e.relationshipTypes(ctx, parsed, seeds, maxHops)
	if err != nil {
		return nil, err
	}
	candidates, names, err := e.expand(ctx, parsed, seeds, maxHops, relationshipTypes)
	if err != nil {
		return nil, err
	}

	ordered := sortCandidates(candidates)
	response.TotalResults = len(ordered)
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	for _, c := range ordered {
		steps := buildPath(c.seed.EntityID, c.path, names)
		response.Results = append(response.Results, model.QueryAnswer{
			Answer:      c.entity.CanonicalName,
			EntityID:    c.entity.EntityID,
			EntityType:  c.entity.EntityType,
			Confidence:  c.score,
			Hops:        len(c.path),
			Explanation: explain(c.entity.CanonicalName, steps),
			Path:        steps,
		})
	}

	return response, nil
}

func (e *Engine) limits(req model.QueryRequest) (int, int, error) {
	maxHops := e.cfg.Query.DefaultMaxHops
	if req.MaxHops != nil {
		maxHops = *req.MaxHops
	}
	if maxHops < 0 {
		return 0, 0, helper.NewError("query validation", fmt.Errorf("%w: max hops %d is negative", helper.ErrMalformedQuery, maxHops))
	}
	if maxHops > e.cfg.Query.MaxHopsLimit {
		maxHops = e.cfg.Query.MaxHopsLimit
	}

	limit := e.cfg.Query.DefaultResultLimit
	if req.ResultLimit != nil {
		limit = *req.ResultLimit
	}
	if limit < 0 {
		return 0, 0, helper.NewError("query validation", fmt.Errorf("%w: result limit %d is negative", helper.ErrMalformedQuery, limit))
	}

	return maxHops, limit, nil
}

// resolveSeeds returns the entities best matching the seed phrase. The parts
// of a conjunctive phrase are resolved one by one if the whole phrase
// matches nothing.
func (e *Engine) resolveSeeds(ctx context.Context, parsed *ParsedQuery) ([]*model.Entity, error) {
	seeds, err := e.resolvePhrase(ctx, parsed.SeedPhrase)
	if err != nil || len(seeds) > 0 {
		return seeds, err
	}

	seen := map[string]bool{}
	for _, phrase := range parsed.SeedAlternatives {
		found, err := e.resolvePhrase(ctx, phrase)
		if err != nil {
			return nil, err
		}
		for _, seed := range found {
			if !seen[seed.EntityID] {
				seen[seed.EntityID] = true
				seeds = append(seeds, seed)
			}
		}
	}
	return seeds, nil
}

func (e *Engine) resolvePhrase(ctx context.Context, phrase string) ([]*model.Entity, error) {
	found, err := e.store.SearchEntities(ctx, phrase, nil, e.cfg.Query.SeedCandidates)
	if err != nil {
		return nil, helper.ClassifyError("resolve seeds", err)
	}

	best := 0.0
	scores := make(map[string]float64, len(found))
	for _, entity := range found {
		score := entityMatch(phrase, entity)
		scores[entity.EntityID] = score
		if score > best {
			best = score
		}
	}
	if best < minSeedMatch {
		return nil, nil
	}

	seeds := []*model.Entity{}
	for _, entity := range found {
		if scores[entity.EntityID] >= best {
			seeds = append(seeds, entity)
		}
	}
	sort.SliceStable(seeds, func(i, j int) bool {
		return seeds[i].EntityID < seeds[j].EntityID
	})
	return seeds, nil
}

// expand traverses from every seed and keeps the best scored path per
// entity. A context error ends the expansion with what was reached so far.
func (e *Engine) expand(ctx context.Context, parsed *ParsedQuery, seeds []*model.Entity, maxHops int, relationshipTypes []string) (map[string]*candidate, map[string]string, error) {
	candidates := map[string]*candidate{}
	names := map[string]string{}
	isSeed := map[string]bool{}
	for _, seed := range seeds {
		isSeed[seed.EntityID] = true
		names[seed.EntityID] = seed.CanonicalName
		candidates[seed.EntityID] = &candidate{
			entity: seed,
			seed:   seed,
			path:   []*model.RelationshipConnection{},
			score:  pathScore(nil, seed.Confidence, e.cfg.Query.HopDecay),
			isSeed: true,
		}
	}

	opts := graph.TraversalOptions{
		RelationshipTypes: relationshipTypes,
		FollowIncoming:    true,
		MaxNodes:          e.cfg.Query.MaxExpandedNodes,
	}
	for _, seed := range seeds {
		results, err := graph.BFS(ctx, e.store, seed.EntityID, maxHops, opts)
		for _, r := range results {
			names[r.Entity.EntityID] = r.Entity.CanonicalName
			if r.Distance == 0 || isSeed[r.Entity.EntityID] {
				continue
			}
			if !matchesType(r.Entity.EntityType, parsed.AnswerTypes) {
				continue
			}

			score := pathScore(r.Path, r.Entity.Confidence, e.cfg.Query.HopDecay)
			existing, ok := candidates[r.Entity.EntityID]
			if ok && !better(score, len(r.Path), existing) {
				continue
			}
			candidates[r.Entity.EntityID] = &candidate{
				entity: r.Entity,
				seed:   seed,
				path:   r.Path,
				score:  score,
			}
		}

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				e.logger.Warn("Query expansion interrupted", "seed", seed.EntityID, "error", err)
				break
			}
			return nil, nil, helper.ClassifyError("expand seeds", err)
		}
	}

	return candidates, names, nil
}

// relationshipTypes returns the relationship types the expansion follows. The
// preferred types of the intent are dropped when no answer lies one hop away
// along them, so the choice is the same for every hop limit.
func (e *Engine) relationshipTypes(ctx context.Context, parsed *ParsedQuery, seeds []*model.Entity, maxHops int) ([]string, error) {
	if len(parsed.RelationshipTypes) == 0 || maxHops == 0 {
		return parsed.RelationshipTypes, nil
	}

	direct, _, err := e.expand(ctx, parsed, seeds, 1, parsed.RelationshipTypes)
	if err != nil {
		return nil, err
	}
	if !hasNonSeed(direct) && ctx.Err() == nil {
		e.logger.Debug("No answer along preferred relationships, following all", "intent", parsed.Intent)
		return nil, nil
	}
	return parsed.RelationshipTypes, nil
}

func better(score float64, hops int, existing *candidate) bool {
	if score != existing.score {
		return score > existing.score
	}
	return hops < len(existing.path)
}

func hasNonSeed(candidates map[string]*candidate) bool {
	for _, c := range candidates {
		if !c.isSeed {
			return true
		}
	}
	return false
}

// sortCandidates orders answers before seeds, then by score descending and
// entity id ascending.
func sortCandidates(candidates map[string]*candidate) []*candidate {
	ordered := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.isSeed != b.isSeed {
			return !a.isSeed
		}
		if a.score != b.score {
			return a.score > b.score
		}
		return a.entity.EntityID < b.entity.EntityID
	})
	return ordered
}

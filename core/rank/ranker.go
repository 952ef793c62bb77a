package rank

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/siherrmann/kgraph/core/provenance"
	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
	"golang.org/x/sync/errgroup"
)

// EntityStore loads entities and writes rank scores back.
type EntityStore interface {
	SelectEntities(ctx context.Context, sources []string) ([]*model.Entity, error)
	UpdateEntityRanks(ctx context.Context, ranks map[string]float64) (int, error)
}

// RelationshipStore loads relationships.
type RelationshipStore interface {
	SelectRelationships(ctx context.Context, sources []string) ([]*model.Relationship, error)
}

// Ranker computes importance ranks over the persisted graph.
type Ranker struct {
	entities      EntityStore
	relationships RelationshipStore
	sink          provenance.Sink
	cfg           model.Config
	logger        *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithProvenanceSink sets the sink receiving start and complete records.
func WithProvenanceSink(sink provenance.Sink) Option {
	return func(r *Ranker) { r.sink = sink }
}

// NewRanker creates a new importance ranker.
func NewRanker(entities EntityStore, relationships RelationshipStore, cfg model.Config, logger *slog.Logger, opts ...Option) (*Ranker, error) {
	if entities == nil || relationships == nil {
		return nil, helper.NewError("ranker validation", fmt.Errorf("%w: store is nil", helper.ErrInvalidInput))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Ranker{
		entities:      entities,
		relationships: relationships,
		sink:          provenance.NopSink{},
		cfg:           cfg,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// ComputeRanks ranks the whole graph, or the subgraph of entities linked to
// opts.Sources, and writes the scores back in one statement. If ctx is done
// while iterating, the partial ranking is returned with Cancelled set and
// nothing is written.
func (r *Ranker) ComputeRanks(ctx context.Context, opts model.RankOptions) (*model.RankResult, error) {
	complete := provenance.Track(ctx, r.sink, r.logger, helper.ToolID, "compute_ranks", map[string]any{
		"sources": opts.Sources,
	})

	result, err := r.computeRanks(ctx, opts)
	if err != nil {
		complete(nil, err)
		return nil, err
	}

	complete(map[string]any{
		"ranked":     len(result.Ranked),
		"iterations": result.Iterations,
		"converged":  result.Converged,
		"cancelled":  result.Cancelled,
		"persisted":  result.Persisted,
	}, nil)
	return result, nil
}

func (r *Ranker) computeRanks(ctx context.Context, opts model.RankOptions) (*model.RankResult, error) {
	var entities []*model.Entity
	var relationships []*model.Relationship

	g, loadCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entities, err = r.entities.SelectEntities(loadCtx, opts.Sources)
		return err
	})
	g.Go(func() error {
		var err error
		relationships, err = r.relationships.SelectRelationships(loadCtx, opts.Sources)
		return err
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return &model.RankResult{Ranked: []model.RankedEntity{}, Cancelled: true}, nil
		}
		return nil, helper.NewError("load graph", err)
	}

	r.logger.Info("Computing ranks", "entities", len(entities), "relationships", len(relationships), "scoped", len(opts.Sources) > 0)

	graph := Graph{
		Nodes: make([]string, 0, len(entities)),
		Edges: make([]WeightedEdge, 0, len(relationships)),
	}
	names := make(map[string]string, len(entities))
	for _, e := range entities {
		graph.Nodes = append(graph.Nodes, e.EntityID)
		names[e.EntityID] = e.CanonicalName
	}
	for _, rel := range relationships {
		graph.Edges = append(graph.Edges, WeightedEdge{From: rel.SubjectEntityID, To: rel.ObjectEntityID, Weight: rel.Weight})
	}

	ranking := PageRank(ctx, graph, r.cfg.Rank)

	result := &model.RankResult{
		Ranked:     SortedRanks(ranking.Scores, names),
		Iterations: ranking.Iterations,
		Converged:  ranking.Converged,
		Cancelled:  ranking.Cancelled,
	}

	if ranking.Cancelled {
		r.logger.Warn("Rank computation cancelled", "iterations", ranking.Iterations)
		return result, nil
	}

	if len(ranking.Scores) > 0 {
		updated, err := r.entities.UpdateEntityRanks(ctx, ranking.Scores)
		if err != nil {
			return nil, helper.NewError("update ranks", err)
		}
		result.Persisted = true
		r.logger.Info("Computed ranks", "updated", updated, "iterations", ranking.Iterations, "converged", ranking.Converged)
	}

	return result, nil
}

// SortedRanks orders scores descending, ties broken by entity id.
func SortedRanks(scores map[string]float64, names map[string]string) []model.RankedEntity {
	ranked := make([]model.RankedEntity, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, model.RankedEntity{EntityID: id, CanonicalName: names[id], Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].EntityID < ranked[j].EntityID
	})
	return ranked
}

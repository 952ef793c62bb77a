package kgraph

import (
	"context"
	"log/slog"
	"os"

	"github.com/siherrmann/kgraph/core/graph"
	"github.com/siherrmann/kgraph/core/materializer"
	"github.com/siherrmann/kgraph/core/provenance"
	"github.com/siherrmann/kgraph/core/query"
	"github.com/siherrmann/kgraph/core/rank"
	"github.com/siherrmann/kgraph/core/resolver"
	"github.com/siherrmann/kgraph/database"
	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
	loadSql "github.com/siherrmann/kgraph/sql"
)

// KGraph provides a unified interface to the graph construction and query
// stages over one database.
type KGraph struct {
	DB            *helper.Database
	Entities      *database.EntitiesDBHandler
	Relationships *database.RelationshipsDBHandler
	Resolver      *resolver.Resolver
	Materializer  *materializer.Materializer
	Ranker        *rank.Ranker
	Engine        *query.Engine
	// Logging
	log *slog.Logger
}

type options struct {
	logger     *slog.Logger
	sink       provenance.Sink
	identities resolver.IdentityService
	force      bool
}

// Option configures NewKGraph.
type Option func(*options)

// WithLogger replaces the default pretty stdout logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithProvenanceSink sets the sink every stage reports its operations to.
// Without it operations are recorded in the log.
func WithProvenanceSink(sink provenance.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithIdentityService lets the resolver take canonical names and types from
// an external identity service.
func WithIdentityService(service resolver.IdentityService) Option {
	return func(o *options) { o.identities = service }
}

// WithForceReload reloads the SQL functions even if they already exist.
func WithForceReload() Option {
	return func(o *options) { o.force = true }
}

// graphStore joins both handlers into the stores the stages depend on.
type graphStore struct {
	*database.EntitiesDBHandler
	*database.RelationshipsDBHandler
}

// NewKGraph connects to the database, loads the SQL functions and wires all
// stages with cfg.
func NewKGraph(dbConfig *helper.DatabaseConfiguration, cfg model.Config, opts ...Option) (*KGraph, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// Logger
	logger := o.logger
	if logger == nil {
		logger = slog.New(helper.NewPrettyHandler(os.Stdout, helper.PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{
				Level: slog.LevelInfo,
			},
		}))
	}
	sink := o.sink
	if sink == nil {
		sink = provenance.NewLogSink(logger)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := helper.NewDatabase("kgraph", dbConfig, logger)
	if err != nil {
		return nil, err
	}

	k, err := newKGraph(db, cfg, logger, sink, o)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return k, nil
}

func newKGraph(db *helper.Database, cfg model.Config, logger *slog.Logger, sink provenance.Sink, o *options) (*KGraph, error) {
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Entities first, relationships reference them
	entities, err := database.NewEntitiesDBHandler(db, o.force)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	relationships, err := database.NewRelationshipsDBHandler(db, o.force)
	if err != nil {
		return nil, helper.NewError("create relationships handler", err)
	}

	store := &graphStore{EntitiesDBHandler: entities, RelationshipsDBHandler: relationships}

	resolverOpts := []resolver.Option{resolver.WithProvenanceSink(sink)}
	if o.identities != nil {
		resolverOpts = append(resolverOpts, resolver.WithIdentityService(o.identities))
	}
	res, err := resolver.NewResolver(entities, cfg, logger, resolverOpts...)
	if err != nil {
		return nil, helper.NewError("create resolver", err)
	}

	mat, err := materializer.NewMaterializer(store, cfg, logger, materializer.WithProvenanceSink(sink))
	if err != nil {
		return nil, helper.NewError("create materializer", err)
	}

	ranker, err := rank.NewRanker(entities, relationships, cfg, logger, rank.WithProvenanceSink(sink))
	if err != nil {
		return nil, helper.NewError("create ranker", err)
	}

	engine, err := query.NewEngine(store, cfg, logger, query.WithProvenanceSink(sink))
	if err != nil {
		return nil, helper.NewError("create query engine", err)
	}

	return &KGraph{
		DB:            db,
		Entities:      entities,
		Relationships: relationships,
		Resolver:      res,
		Materializer:  mat,
		Ranker:        ranker,
		Engine:        engine,
		log:           logger,
	}, nil
}

// Close closes the database connection
func (k *KGraph) Close() error {
	if k.DB != nil {
		return k.DB.Close()
	}
	return nil
}

// BuildEntities resolves mentions into entities and persists them.
func (k *KGraph) BuildEntities(ctx context.Context, mentions []model.Mention, sources []string) (*model.EntityBuildResult, error) {
	return k.Resolver.BuildEntities(ctx, mentions, sources)
}

// BuildEdges weights, verifies and persists relationship candidates.
func (k *KGraph) BuildEdges(ctx context.Context, candidates []model.RelationshipCandidate, sources []string, opts model.EdgeBuildOptions) (*model.EdgeBuildResult, error) {
	return k.Materializer.BuildEdges(ctx, candidates, sources, opts)
}

// ComputeRanks runs PageRank over the graph, or the part of it scoped to
// opts.Sources, and stores the scores on the entities.
func (k *KGraph) ComputeRanks(ctx context.Context, opts model.RankOptions) (*model.RankResult, error) {
	return k.Ranker.ComputeRanks(ctx, opts)
}

// Query answers a natural language question.
func (k *KGraph) Query(ctx context.Context, req model.QueryRequest) (*model.QueryResponse, error) {
	return k.Engine.Answer(ctx, req)
}

// Neighbors returns the entities one relationship away from entityID,
// strongest relationship first.
func (k *KGraph) Neighbors(ctx context.Context, entityID string, opts graph.TraversalOptions) ([]*graph.TraversalResult, error) {
	store := &graphStore{EntitiesDBHandler: k.Entities, RelationshipsDBHandler: k.Relationships}
	results, err := graph.GetNeighbors(ctx, store, entityID, opts)
	if err != nil {
		return nil, helper.ClassifyError("neighbors", err)
	}
	return results, nil
}

// Entity returns the entity stored under entityID.
func (k *KGraph) Entity(ctx context.Context, entityID string) (*model.Entity, error) {
	return k.Entities.SelectEntity(ctx, entityID)
}

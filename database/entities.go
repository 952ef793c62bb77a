package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
	loadSql "github.com/siherrmann/kgraph/sql"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	InsertEntities(ctx context.Context, entities []*model.Entity) ([]model.WriteOutcome, error)
	SelectEntity(ctx context.Context, entityID string) (*model.Entity, error)
	SelectExistingEntityIDs(ctx context.Context, entityIDs []string) ([]string, error)
	SearchEntities(ctx context.Context, term string, entityTypes []string, limit int) ([]*model.Entity, error)
	SelectEntities(ctx context.Context, sources []string) ([]*model.Entity, error)
	UpdateEntityRanks(ctx context.Context, ranks map[string]float64) (int, error)
	DeleteEntity(ctx context.Context, entityID string) error
	Ping(ctx context.Context) error
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It loads entity-related SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		return helper.ClassifyError("init entities", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// InsertEntities creates every entity that does not exist yet, in a single
// transaction. Entities that already exist are reported with
// model.WriteStatusExists and gain the new source references only.
// On success CreatedAt is set on each entity.
func (h *EntitiesDBHandler) InsertEntities(ctx context.Context, entities []*model.Entity) ([]model.WriteOutcome, error) {
	return runBatch(ctx, h.db, "insert entity", len(entities), func(ctx context.Context, tx *sql.Tx, i int) (model.WriteOutcome, error) {
		entity := entities[i]
		var created bool
		row := tx.QueryRowContext(ctx,
			`SELECT * FROM insert_entity($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			entity.EntityID,
			entity.CanonicalName,
			entity.EntityType,
			pq.Array(nonNil(entity.SurfaceForms)),
			entity.MentionCount,
			entity.Confidence,
			string(entity.QualityTier),
			pq.Array(nonNil(entity.SourceMentions)),
			pq.Array(nonNil(entity.Sources)),
			entity.Metadata,
		)
		if err := row.Scan(&created, &entity.CreatedAt); err != nil {
			return model.WriteOutcome{}, helper.NewError("scan", err)
		}
		if !created {
			return model.WriteOutcome{Status: model.WriteStatusExists}, nil
		}
		return model.WriteOutcome{Status: model.WriteStatusCreated}, nil
	})
}

// SelectEntity retrieves an entity by its id
func (h *EntitiesDBHandler) SelectEntity(ctx context.Context, entityID string) (*model.Entity, error) {
	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM select_entity($1)`,
		entityID,
	)

	entity, err := scanEntity(row)
	if err != nil {
		return nil, helper.ClassifyError("scan", err)
	}

	return entity, nil
}

// SelectExistingEntityIDs returns the subset of entityIDs present in the store
// with a single statement.
func (h *EntitiesDBHandler) SelectExistingEntityIDs(ctx context.Context, entityIDs []string) ([]string, error) {
	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM select_existing_entity_ids($1)`,
		pq.Array(nonNil(entityIDs)),
	)
	if err != nil {
		return nil, helper.ClassifyError("query", err)
	}
	defer rows.Close()

	existing := []string{}
	for rows.Next() {
		var entityID string
		if err := rows.Scan(&entityID); err != nil {
			return nil, helper.ClassifyError("scan", err)
		}
		existing = append(existing, entityID)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.ClassifyError("rows error", err)
	}

	return existing, nil
}

// SearchEntities finds entities whose canonical name or a surface form
// matches term. An empty entityTypes slice disables the type filter.
// MatchScore is set on every returned entity.
func (h *EntitiesDBHandler) SearchEntities(ctx context.Context, term string, entityTypes []string, limit int) ([]*model.Entity, error) {
	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM search_entities($1, $2, $3)`,
		term,
		pq.Array(nonNil(entityTypes)),
		limit,
	)
	if err != nil {
		return nil, helper.ClassifyError("query", err)
	}
	defer rows.Close()

	entities := []*model.Entity{}
	for rows.Next() {
		var score float64
		entity, err := scanEntity(rows, &score)
		if err != nil {
			return nil, helper.ClassifyError("scan", err)
		}
		entity.MatchScore = score
		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.ClassifyError("rows error", err)
	}

	return entities, nil
}

// SelectEntities returns all entities, or only those linked to one of sources.
func (h *EntitiesDBHandler) SelectEntities(ctx context.Context, sources []string) ([]*model.Entity, error) {
	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM select_entities($1)`,
		pq.Array(nonNil(sources)),
	)
	if err != nil {
		return nil, helper.ClassifyError("query", err)
	}
	defer rows.Close()

	entities := []*model.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, helper.ClassifyError("scan", err)
		}
		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.ClassifyError("rows error", err)
	}

	return entities, nil
}

// UpdateEntityRanks writes all rank scores in one statement and returns the
// number of updated entities.
func (h *EntitiesDBHandler) UpdateEntityRanks(ctx context.Context, ranks map[string]float64) (int, error) {
	if len(ranks) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(ranks))
	scores := make([]float64, 0, len(ranks))
	for id, score := range ranks {
		ids = append(ids, id)
		scores = append(scores, score)
	}

	var updated int
	err := h.db.Instance.QueryRowContext(ctx,
		`SELECT update_entity_ranks($1, $2)`,
		pq.Array(ids),
		pq.Array(scores),
	).Scan(&updated)
	if err != nil {
		return 0, helper.ClassifyError("exec", err)
	}

	return updated, nil
}

// DeleteEntity deletes an entity and its relationships
func (h *EntitiesDBHandler) DeleteEntity(ctx context.Context, entityID string) error {
	_, err := h.db.Instance.ExecContext(ctx,
		`SELECT delete_entity($1)`,
		entityID,
	)
	if err != nil {
		return helper.ClassifyError("exec", err)
	}
	return nil
}

// Ping checks that the datastore is reachable.
func (h *EntitiesDBHandler) Ping(ctx context.Context) error {
	return h.db.Ping(ctx)
}

// scanEntity scans the entity columns followed by any extra columns.
func scanEntity(row rowScanner, extra ...any) (*model.Entity, error) {
	entity := &model.Entity{}
	var qualityTier string
	var rankScore sql.NullFloat64

	dest := []any{
		&entity.EntityID,
		&entity.CanonicalName,
		&entity.EntityType,
		pq.Array(&entity.SurfaceForms),
		&entity.MentionCount,
		&entity.Confidence,
		&qualityTier,
		pq.Array(&entity.SourceMentions),
		pq.Array(&entity.Sources),
		&rankScore,
		&entity.Metadata,
		&entity.CreatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	entity.QualityTier = model.QualityTier(qualityTier)
	if rankScore.Valid {
		entity.RankScore = &rankScore.Float64
	}

	return entity, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

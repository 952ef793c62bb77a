package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
	loadSql "github.com/siherrmann/kgraph/sql"
)

// RelationshipsDBHandlerFunctions defines the interface for Relationships database operations.
type RelationshipsDBHandlerFunctions interface {
	InsertRelationships(ctx context.Context, relationships []*model.Relationship) ([]model.WriteOutcome, error)
	SelectRelationship(ctx context.Context, id uuid.UUID) (*model.Relationship, error)
	SelectRelationshipsConnectedToEntity(ctx context.Context, entityID string, relationshipTypes []string, includeIncoming bool) ([]*model.RelationshipConnection, error)
	SelectRelationships(ctx context.Context, sources []string) ([]*model.Relationship, error)
	DeleteRelationship(ctx context.Context, id uuid.UUID) error
}

// RelationshipsDBHandler handles relationship-related database operations
type RelationshipsDBHandler struct {
	db *helper.Database
}

// NewRelationshipsDBHandler creates a new relationships database handler.
// The entities table has to exist already since relationships reference it.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRelationshipsDBHandler(db *helper.Database, force bool) (*RelationshipsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationshipsDbHandler := &RelationshipsDBHandler{
		db: db,
	}

	err := loadSql.LoadRelationshipsSql(relationshipsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relationships sql", err)
	}

	err = relationshipsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationshipsDBHandler")

	return relationshipsDbHandler, nil
}

// CreateTable creates the 'relationships' table in the database.
// If the table already exists, it does not create it again.
func (h *RelationshipsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relationships();`)
	if err != nil {
		return helper.ClassifyError("init relationships", err)
	}

	h.db.Logger.Info("Checked/created table relationships")

	return nil
}

// InsertRelationships writes the batch in one transaction. Each insert checks
// both endpoints in the same statement; a relationship with a missing
// endpoint is not written and reported with model.WriteStatusMissingEndpoints.
func (h *RelationshipsDBHandler) InsertRelationships(ctx context.Context, relationships []*model.Relationship) ([]model.WriteOutcome, error) {
	return runBatch(ctx, h.db, "insert relationship", len(relationships), func(ctx context.Context, tx *sql.Tx, i int) (model.WriteOutcome, error) {
		relationship := relationships[i]
		if relationship.RelationshipID == uuid.Nil {
			relationship.RelationshipID = uuid.New()
		}

		var createdAt sql.NullTime
		var missingSubject, missingObject bool
		row := tx.QueryRowContext(ctx,
			`SELECT * FROM insert_relationship($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			relationship.RelationshipID,
			relationship.SubjectEntityID,
			relationship.ObjectEntityID,
			relationship.RelationshipType,
			relationship.Weight,
			relationship.Confidence,
			string(relationship.QualityTier),
			relationship.ExtractionMethod,
			relationship.EvidenceText,
			pq.Array(nonNil(relationship.Sources)),
			relationship.Metadata,
		)
		if err := row.Scan(&createdAt, &missingSubject, &missingObject); err != nil {
			return model.WriteOutcome{}, helper.NewError("scan", err)
		}

		if !createdAt.Valid {
			return model.WriteOutcome{
				Status:         model.WriteStatusMissingEndpoints,
				MissingSubject: missingSubject,
				MissingObject:  missingObject,
			}, nil
		}

		relationship.CreatedAt = createdAt.Time
		return model.WriteOutcome{Status: model.WriteStatusCreated}, nil
	})
}

// SelectRelationship retrieves a relationship by ID
func (h *RelationshipsDBHandler) SelectRelationship(ctx context.Context, id uuid.UUID) (*model.Relationship, error) {
	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM select_relationship($1)`,
		id,
	)

	relationship, err := scanRelationship(row)
	if err != nil {
		return nil, helper.ClassifyError("scan", err)
	}

	return relationship, nil
}

// SelectRelationshipsConnectedToEntity returns the relationships leaving the
// entity and, if includeIncoming is set, the ones pointing to it. The result is
// ordered by weight descending, then neighbor id ascending. An empty
// relationshipTypes slice matches every type.
func (h *RelationshipsDBHandler) SelectRelationshipsConnectedToEntity(ctx context.Context, entityID string, relationshipTypes []string, includeIncoming bool) ([]*model.RelationshipConnection, error) {
	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM select_relationships_connected_to_entity($1, $2, $3)`,
		entityID,
		pq.Array(nonNil(relationshipTypes)),
		includeIncoming,
	)
	if err != nil {
		return nil, helper.ClassifyError("query", err)
	}
	defer rows.Close()

	connections := []*model.RelationshipConnection{}
	for rows.Next() {
		var isOutgoing bool
		relationship, err := scanRelationship(rows, &isOutgoing)
		if err != nil {
			return nil, helper.ClassifyError("scan", err)
		}
		connections = append(connections, &model.RelationshipConnection{
			Relationship: relationship,
			IsOutgoing:   isOutgoing,
		})
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.ClassifyError("rows error", err)
	}

	return connections, nil
}

// SelectRelationships returns all relationships, or the ones whose endpoints
// are both linked to one of sources.
func (h *RelationshipsDBHandler) SelectRelationships(ctx context.Context, sources []string) ([]*model.Relationship, error) {
	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM select_relationships($1)`,
		pq.Array(nonNil(sources)),
	)
	if err != nil {
		return nil, helper.ClassifyError("query", err)
	}
	defer rows.Close()

	relationships := []*model.Relationship{}
	for rows.Next() {
		relationship, err := scanRelationship(rows)
		if err != nil {
			return nil, helper.ClassifyError("scan", err)
		}
		relationships = append(relationships, relationship)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.ClassifyError("rows error", err)
	}

	return relationships, nil
}

// DeleteRelationship deletes a relationship by ID
func (h *RelationshipsDBHandler) DeleteRelationship(ctx context.Context, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(ctx,
		`SELECT delete_relationship($1)`,
		id,
	)
	if err != nil {
		return helper.ClassifyError("exec", err)
	}
	return nil
}

func scanRelationship(row rowScanner, extra ...any) (*model.Relationship, error) {
	relationship := &model.Relationship{}
	var qualityTier string

	dest := []any{
		&relationship.RelationshipID,
		&relationship.SubjectEntityID,
		&relationship.ObjectEntityID,
		&relationship.RelationshipType,
		&relationship.Weight,
		&relationship.Confidence,
		&qualityTier,
		&relationship.ExtractionMethod,
		&relationship.EvidenceText,
		pq.Array(&relationship.Sources),
		&relationship.Metadata,
		&relationship.CreatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	relationship.QualityTier = model.QualityTier(qualityTier)

	return relationship, nil
}

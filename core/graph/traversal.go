package graph

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/siherrmann/kgraph/model"
)

// GraphDB defines the interface for graph operations
type GraphDB interface {
	SelectEntity(ctx context.Context, entityID string) (*model.Entity, error)
	SelectRelationshipsConnectedToEntity(ctx context.Context, entityID string, relationshipTypes []string, includeIncoming bool) ([]*model.RelationshipConnection, error)
}

// TraversalOptions restricts a traversal.
type TraversalOptions struct {
	// RelationshipTypes limits the followed relationships. Empty follows all.
	RelationshipTypes []string
	// FollowIncoming also follows relationships against their direction.
	FollowIncoming bool
	// MaxNodes bounds the number of visited entities. Zero means unbounded.
	MaxNodes int
}

// TraversalResult contains an entity and its distance from the source
type TraversalResult struct {
	Entity   *model.Entity `json:"entity"`
	Distance int           `json:"distance"`
	// Path holds the connections followed from the source to Entity.
	Path []*model.RelationshipConnection `json:"path"`
}

// BFS performs breadth-first search from a source entity. Neighbors are
// expanded by weight descending, then entity id ascending, and every entity
// is reached by its first discovered path. If ctx is done the results found so
// far are returned together with the context error.
func BFS(ctx context.Context, db GraphDB, sourceID string, maxHops int, opts TraversalOptions) ([]*TraversalResult, error) {
	source, err := db.SelectEntity(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{source.EntityID: true}
	queue := []*TraversalResult{{Entity: source, Distance: 0}}
	var results []*TraversalResult

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		current := queue[0]
		queue = queue[1:]
		results = append(results, current)

		// Stop if we've reached max hops
		if current.Distance >= maxHops {
			continue
		}

		connections, err := db.SelectRelationshipsConnectedToEntity(ctx, current.Entity.EntityID, opts.RelationshipTypes, opts.FollowIncoming)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}
			return nil, err
		}
		SortConnections(connections)

		for _, connection := range connections {
			if !opts.FollowIncoming && !connection.IsOutgoing {
				continue
			}
			targetID := connection.Neighbor()
			if visited[targetID] {
				continue
			}
			if opts.MaxNodes > 0 && len(visited) >= opts.MaxNodes {
				break
			}

			target, err := db.SelectEntity(ctx, targetID)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return results, ctxErr
				}
				if errors.Is(err, sql.ErrNoRows) {
					continue // Skip if entity not found
				}
				return nil, err
			}
			visited[targetID] = true

			path := make([]*model.RelationshipConnection, len(current.Path), len(current.Path)+1)
			copy(path, current.Path)
			path = append(path, connection)

			queue = append(queue, &TraversalResult{
				Entity:   target,
				Distance: current.Distance + 1,
				Path:     path,
			})
		}
	}

	return results, nil
}

// GetNeighbors retrieves immediate neighbors (1-hop) of an entity
func GetNeighbors(ctx context.Context, db GraphDB, entityID string, opts TraversalOptions) ([]*TraversalResult, error) {
	results, err := BFS(ctx, db, entityID, 1, opts)
	if err != nil {
		return nil, err
	}

	// Skip the source entity itself (first result)
	if len(results) <= 1 {
		return []*TraversalResult{}, nil
	}
	return results[1:], nil
}

// SortConnections orders connections by weight descending, then neighbor id
// and relationship id ascending.
func SortConnections(connections []*model.RelationshipConnection) {
	sort.SliceStable(connections, func(i, j int) bool {
		a, b := connections[i], connections[j]
		if a.Relationship.Weight != b.Relationship.Weight {
			return a.Relationship.Weight > b.Relationship.Weight
		}
		if a.Neighbor() != b.Neighbor() {
			return a.Neighbor() < b.Neighbor()
		}
		return a.Relationship.RelationshipID.String() < b.Relationship.RelationshipID.String()
	})
}

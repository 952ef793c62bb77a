package kgraph

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/kgraph/core/graph"
	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initKGraph(t *testing.T) *KGraph {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")

	k, err := NewKGraph(dbConfig, model.DefaultConfig(), WithLogger(slog.Default()))
	require.NoError(t, err, "failed to create kgraph")
	require.NotNil(t, k, "expected kgraph to be non-nil")

	t.Cleanup(func() {
		k.Close()
	})

	return k
}

func TestNewKGraph(t *testing.T) {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err)

	t.Run("Valid call NewKGraph", func(t *testing.T) {
		k, err := NewKGraph(dbConfig, model.DefaultConfig(), WithForceReload())
		require.NoError(t, err, "Expected NewKGraph to not return an error")
		require.NotNil(t, k, "Expected NewKGraph to return a non-nil instance")
		assert.NotNil(t, k.DB, "Expected kgraph to have a database instance")
		assert.NotNil(t, k.Entities, "Expected kgraph to have entities handler")
		assert.NotNil(t, k.Relationships, "Expected kgraph to have relationships handler")
		assert.NotNil(t, k.Resolver, "Expected kgraph to have a resolver")
		assert.NotNil(t, k.Materializer, "Expected kgraph to have a materializer")
		assert.NotNil(t, k.Ranker, "Expected kgraph to have a ranker")
		assert.NotNil(t, k.Engine, "Expected kgraph to have a query engine")

		err = k.Close()
		assert.NoError(t, err, "Expected Close to not return an error")
	})

	t.Run("Invalid config", func(t *testing.T) {
		cfg := model.DefaultConfig()
		cfg.Rank.Damping = 1.5
		_, err := NewKGraph(dbConfig, cfg)
		assert.ErrorIs(t, err, helper.ErrInvalidInput, "Expected invalid config to be rejected")
	})

	t.Run("Nil database configuration", func(t *testing.T) {
		_, err := NewKGraph(nil, model.DefaultConfig())
		assert.ErrorIs(t, err, helper.ErrInvalidInput, "Expected nil configuration to be rejected")
	})

	t.Run("KGraph with nil database handles Close gracefully", func(t *testing.T) {
		k := &KGraph{}
		assert.NoError(t, k.Close(), "Expected Close to handle nil DB gracefully")
	})
}

func TestKGraphEndToEnd(t *testing.T) {
	k := initKGraph(t)
	ctx := context.Background()

	prefix := uuid.NewString()[:8]
	id := func(name string) string { return prefix + "-" + name }
	source := "doc-" + prefix

	mentions := []model.Mention{
		{MentionID: "m1", EntityID: id("chen"), SurfaceForm: "Dr. Chen", EntityType: "PERSON", Confidence: 0.9, SourceRef: source + "#1"},
		{MentionID: "m2", EntityID: id("stanford"), SurfaceForm: "Stanford University", EntityType: "ORG", Confidence: 0.95, SourceRef: source + "#1"},
		{MentionID: "m3", EntityID: id("chen"), SurfaceForm: "Chen", EntityType: "PERSON", Confidence: 0.8, SourceRef: source + "#2"},
		{MentionID: "m4", EntityID: id("stanford"), SurfaceForm: "Stanford", EntityType: "ORG", Confidence: 0.9, SourceRef: source + "#2"},
		{MentionID: "m5", EntityID: id("mit"), SurfaceForm: "MIT", EntityType: "ORG", Confidence: 0.9, SourceRef: source + "#2"},
	}

	t.Run("Build entities", func(t *testing.T) {
		result, err := k.BuildEntities(ctx, mentions, []string{source})
		require.NoError(t, err, "Expected BuildEntities to not return an error")
		assert.Len(t, result.Created, 3, "Expected one entity per entity id")
		assert.Equal(t, map[string]int{"PERSON": 1, "ORG": 2}, result.CountsByType)

		chen, err := k.Entity(ctx, id("chen"))
		require.NoError(t, err)
		assert.Equal(t, "Dr. Chen", chen.CanonicalName)
		assert.Equal(t, 2, chen.MentionCount)
		assert.ElementsMatch(t, []string{"Dr. Chen", "Chen"}, chen.SurfaceForms)
	})

	t.Run("Rebuilding entities reports them as existing", func(t *testing.T) {
		result, err := k.BuildEntities(ctx, mentions, []string{source})
		require.NoError(t, err)
		assert.Empty(t, result.Created, "Expected no duplicate entities")
		assert.Equal(t, 3, result.ExistingCount)
	})

	t.Run("Build edges", func(t *testing.T) {
		candidates := []model.RelationshipCandidate{
			{
				SubjectEntityID:  id("chen"),
				ObjectEntityID:   id("stanford"),
				RelationshipType: "affiliated with",
				Confidence:       0.9,
				EvidenceText:     "Dr. Chen is a professor at Stanford University and leads the robotics lab there.",
				ExtractionMethod: model.ExtractionMethodDependency,
			},
			{
				SubjectEntityID:  id("stanford"),
				ObjectEntityID:   id("mit"),
				RelationshipType: "COLLABORATES_WITH",
				Confidence:       0.85,
				EvidenceText:     "Stanford collaborates with MIT on several research programs.",
				ExtractionMethod: model.ExtractionMethodPattern,
			},
		}

		result, err := k.BuildEdges(ctx, candidates, []string{source}, model.EdgeBuildOptions{VerifyEndpoints: true})
		require.NoError(t, err, "Expected BuildEdges to not return an error")
		require.Len(t, result.Created, 2, "Expected both edges to be created")
		assert.Equal(t, map[string]int{"AFFILIATED_WITH": 1, "COLLABORATES_WITH": 1}, result.CountsByType)
		for _, r := range result.Created {
			assert.GreaterOrEqual(t, r.Weight, 0.1, "Expected weight above the minimum")
			assert.LessOrEqual(t, r.Weight, 1.0, "Expected weight below the maximum")
		}
	})

	t.Run("Verified edges with missing endpoints are rejected", func(t *testing.T) {
		candidates := []model.RelationshipCandidate{
			{SubjectEntityID: id("chen"), ObjectEntityID: id("nowhere"), RelationshipType: "WORKS_AT", Confidence: 0.7, ExtractionMethod: model.ExtractionMethodLLM},
		}

		result, err := k.BuildEdges(ctx, candidates, []string{source}, model.EdgeBuildOptions{VerifyEndpoints: true})
		var integrityErr *helper.ReferentialIntegrityError
		require.True(t, errors.As(err, &integrityErr), "Expected referential integrity error")
		assert.Equal(t, []string{id("nowhere")}, integrityErr.MissingIDs)
		require.NotNil(t, result)
		assert.Empty(t, result.Created)
	})

	t.Run("Compute ranks scoped to the source", func(t *testing.T) {
		result, err := k.ComputeRanks(ctx, model.RankOptions{Sources: []string{source}})
		require.NoError(t, err, "Expected ComputeRanks to not return an error")
		require.Len(t, result.Ranked, 3)
		assert.True(t, result.Persisted, "Expected ranks to be written back")
		assert.False(t, result.Cancelled)

		sum := 0.0
		for _, r := range result.Ranked {
			sum += r.Score
		}
		assert.InDelta(t, 1.0, sum, 1e-6, "Expected ranks to sum to one")

		mit, err := k.Entity(ctx, id("mit"))
		require.NoError(t, err)
		require.NotNil(t, mit.RankScore, "Expected rank score to be stored")
		assert.Equal(t, id("mit"), result.Ranked[0].EntityID, "Expected the sink of the chain to rank highest")
	})

	t.Run("Query connected organizations", func(t *testing.T) {
		response, err := k.Query(ctx, model.QueryRequest{Question: "What organizations are connected to Stanford?"})
		require.NoError(t, err, "Expected Query to not return an error")
		assert.Equal(t, "connected", response.Intent)
		assert.Equal(t, []string{id("stanford")}, response.Seeds)

		ids := []string{}
		for _, r := range response.Results {
			ids = append(ids, r.EntityID)
		}
		assert.Equal(t, []string{id("mit"), id("stanford")}, ids, "Expected MIT first, the seed last and Dr. Chen filtered out")
		assert.Equal(t, 1, response.Results[0].Hops)
		assert.Contains(t, response.Results[0].Explanation, "collaborates with")
	})

	t.Run("Query for an unknown entity returns no results", func(t *testing.T) {
		response, err := k.Query(ctx, model.QueryRequest{Question: "What is connected to Xqzzyv Labs?"})
		require.NoError(t, err)
		assert.Empty(t, response.Results)
	})

	t.Run("Neighbors in both directions", func(t *testing.T) {
		neighbors, err := k.Neighbors(ctx, id("stanford"), graph.TraversalOptions{FollowIncoming: true})
		require.NoError(t, err)
		ids := []string{}
		for _, n := range neighbors {
			ids = append(ids, n.Entity.EntityID)
		}
		assert.ElementsMatch(t, []string{id("chen"), id("mit")}, ids)
	})
}

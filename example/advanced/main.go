package main

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/siherrmann/kgraph"
	"github.com/siherrmann/kgraph/core/graph"
	"github.com/siherrmann/kgraph/core/provenance"
	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
)

// identities is a static identity service keyed by linked entity id.
type identities map[string]model.Identity

func (i identities) Lookup(ctx context.Context, entityID string) (*model.Identity, error) {
	identity, ok := i[entityID]
	if !ok {
		return nil, helper.ErrIdentityNotFound
	}
	return &identity, nil
}

// recordingSink keeps every provenance record in memory.
type recordingSink struct {
	mu      sync.Mutex
	records []provenance.Record
}

func (s *recordingSink) Emit(ctx context.Context, record provenance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func intPtr(v int) *int { return &v }

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	// Stricter tiers and a shorter hop decay than the defaults
	cfg := model.DefaultConfig()
	cfg.Confidence.HighThreshold = 0.85
	cfg.Query.HopDecay = 0.8

	sink := &recordingSink{}
	service := identities{
		"Q_chen":     {EntityID: "Q_chen", CanonicalName: "Dr. Mei Chen", EntityType: "PERSON"},
		"Q_stanford": {EntityID: "Q_stanford", CanonicalName: "Stanford University", EntityType: "ORG"},
		"Q_mit":      {EntityID: "Q_mit", CanonicalName: "Massachusetts Institute of Technology", EntityType: "ORG"},
		"Q_nsf":      {EntityID: "Q_nsf", CanonicalName: "National Science Foundation", EntityType: "ORG"},
		"Q_palo":     {EntityID: "Q_palo", CanonicalName: "Palo Alto", EntityType: "GPE"},
	}

	g, err := kgraph.NewKGraph(dbConfig, cfg, kgraph.WithIdentityService(service), kgraph.WithProvenanceSink(sink))
	if err != nil {
		log.Fatalf("Failed to create kgraph: %v", err)
	}
	defer g.Close()

	ctx := context.Background()

	// First document
	doc1 := "paper-2021"
	_, err = g.BuildEntities(ctx, []model.Mention{
		{MentionID: "d1-m1", EntityID: "Q_chen", SurfaceForm: "Chen", EntityType: "PERSON", Confidence: 0.85, SourceRef: doc1 + "#p1"},
		{MentionID: "d1-m2", EntityID: "Q_stanford", SurfaceForm: "Stanford", EntityType: "ORG", Confidence: 0.93, SourceRef: doc1 + "#p1"},
		{MentionID: "d1-m3", EntityID: "Q_palo", SurfaceForm: "Palo Alto", EntityType: "GPE", Confidence: 0.9, SourceRef: doc1 + "#p2"},
		{MentionID: "d1-m4", EntityID: "Q_unknown", SurfaceForm: "the lab", EntityType: "ORG", Confidence: 0.4, SourceRef: doc1 + "#p2"},
	}, []string{doc1})
	if err != nil {
		log.Fatalf("Failed to build entities of %s: %v", doc1, err)
	}

	edges, err := g.BuildEdges(ctx, []model.RelationshipCandidate{
		{SubjectEntityID: "Q_chen", ObjectEntityID: "Q_stanford", RelationshipType: "works at", Confidence: 0.88, EvidenceText: "Chen works at Stanford, because the lab moved there in 2019.", ExtractionMethod: model.ExtractionMethodLLM},
		{SubjectEntityID: "Q_stanford", ObjectEntityID: "Q_palo", RelationshipType: "LOCATED_IN", Confidence: 0.95, EvidenceText: "Stanford is located near Palo Alto.", ExtractionMethod: model.ExtractionMethodPattern},
		{SubjectEntityID: "Q_chen", ObjectEntityID: "Q_palo", RelationshipType: "NEAR", Confidence: 0.4, ExtractionMethod: model.ExtractionMethodProximity, EntityDistance: intPtr(42)},
		{SubjectEntityID: "Q_chen", ObjectEntityID: "Q_mit", RelationshipType: "VISITED", Confidence: 0.6, ExtractionMethod: model.ExtractionMethodNER},
	}, []string{doc1}, model.EdgeBuildOptions{})
	if err != nil {
		log.Fatalf("Failed to build edges of %s: %v", doc1, err)
	}
	fmt.Printf("%s: %d edges created, %d skipped\n", doc1, len(edges.Created), edges.SkippedCount)
	for _, missing := range edges.MissingEndpoints {
		fmt.Printf("  missing endpoint %s -> %s (subject %t, object %t)\n", missing.SubjectEntityID, missing.ObjectEntityID, missing.MissingSubject, missing.MissingObject)
	}

	// Second document adds MIT and NSF and links to entities of the first
	doc2 := "grant-2023"
	entities, err := g.BuildEntities(ctx, []model.Mention{
		{MentionID: "d2-m1", EntityID: "Q_mit", SurfaceForm: "MIT", EntityType: "ORG", Confidence: 0.95, SourceRef: doc2},
		{MentionID: "d2-m2", EntityID: "Q_nsf", SurfaceForm: "NSF", EntityType: "ORG", Confidence: 0.9, SourceRef: doc2},
		{MentionID: "d2-m3", EntityID: "Q_stanford", SurfaceForm: "Stanford University", EntityType: "ORG", Confidence: 0.97, SourceRef: doc2},
	}, []string{doc2})
	if err != nil {
		log.Fatalf("Failed to build entities of %s: %v", doc2, err)
	}
	fmt.Printf("%s: %d entities created, %d already known\n", doc2, len(entities.Created), entities.ExistingCount)

	_, err = g.BuildEdges(ctx, []model.RelationshipCandidate{
		{SubjectEntityID: "Q_nsf", ObjectEntityID: "Q_stanford", RelationshipType: "FUNDS", Confidence: 0.9, EvidenceText: "The NSF awarded Stanford a grant, which funds the robotics program.", ExtractionMethod: model.ExtractionMethodManual},
		{SubjectEntityID: "Q_stanford", ObjectEntityID: "Q_mit", RelationshipType: "collaborates with", Confidence: 0.8, EvidenceText: "Stanford and MIT share the grant.", ExtractionMethod: model.ExtractionMethodDependency},
	}, []string{doc2}, model.EdgeBuildOptions{VerifyEndpoints: true})
	if err != nil {
		log.Fatalf("Failed to build edges of %s: %v", doc2, err)
	}

	// Ranks of the second document only, then of the whole graph
	for _, scope := range [][]string{{doc2}, nil} {
		ranks, err := g.ComputeRanks(ctx, model.RankOptions{Sources: scope})
		if err != nil {
			log.Fatalf("Failed to compute ranks: %v", err)
		}
		fmt.Printf("\nRanks for %v (%d iterations):\n", scope, ranks.Iterations)
		for i, r := range ranks.Ranked {
			fmt.Printf("  %d. %s %.4f\n", i+1, r.CanonicalName, r.Score)
		}
	}

	questions := []model.QueryRequest{
		{Question: "What organizations are connected to Dr. Mei Chen?", MaxHops: intPtr(2)},
		{Question: "Which organizations fund Stanford?"},
		{Question: "Who works at Stanford?"},
		{Question: "Where is Stanford located?"},
		{Question: "Tell me about MIT", MaxHops: intPtr(1), ResultLimit: intPtr(3)},
	}
	for _, req := range questions {
		response, err := g.Query(ctx, req)
		if err != nil {
			log.Fatalf("Failed to query %q: %v", req.Question, err)
		}
		fmt.Printf("\n%s [%s, %d results]\n", req.Question, response.Intent, response.TotalResults)
		for i, answer := range response.Results {
			fmt.Printf("  %d. %s (%s) %.3f\n", i+1, answer.Answer, answer.EntityType, answer.Confidence)
			fmt.Printf("     %s\n", answer.Explanation)
		}
	}

	neighbors, err := g.Neighbors(ctx, "Q_stanford", graph.TraversalOptions{FollowIncoming: true})
	if err != nil {
		log.Fatalf("Failed to get neighbors: %v", err)
	}
	fmt.Println("\nNeighbors of Stanford:")
	for _, n := range neighbors {
		r := n.Path[0].Relationship
		fmt.Printf("  %s via %s (weight %.2f)\n", n.Entity.CanonicalName, r.RelationshipType, r.Weight)
	}

	fmt.Printf("\n%d provenance records\n", len(sink.records))
}

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/kgraph"
	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
)

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	g, err := kgraph.NewKGraph(dbConfig, model.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to create kgraph: %v", err)
	}
	defer g.Close()

	ctx := context.Background()
	source := "basic_example"

	// Mentions as an upstream extractor would produce them
	mentions := []model.Mention{
		{MentionID: "m1", EntityID: "Q_chen", SurfaceForm: "Dr. Chen", EntityType: "PERSON", Confidence: 0.92, SourceRef: source},
		{MentionID: "m2", EntityID: "Q_stanford", SurfaceForm: "Stanford University", EntityType: "ORG", Confidence: 0.95, SourceRef: source},
		{MentionID: "m3", EntityID: "Q_stanford", SurfaceForm: "Stanford", EntityType: "ORG", Confidence: 0.88, SourceRef: source},
		{MentionID: "m4", EntityID: "Q_mit", SurfaceForm: "MIT", EntityType: "ORG", Confidence: 0.9, SourceRef: source},
	}

	fmt.Println("Building entities...")
	entities, err := g.BuildEntities(ctx, mentions, []string{source})
	if err != nil {
		log.Fatalf("Failed to build entities: %v", err)
	}
	for _, e := range entities.Created {
		fmt.Printf("  %s (%s) confidence %.2f %s\n", e.CanonicalName, e.EntityType, e.Confidence, e.QualityTier)
	}

	candidates := []model.RelationshipCandidate{
		{
			SubjectEntityID:  "Q_chen",
			ObjectEntityID:   "Q_stanford",
			RelationshipType: "affiliated with",
			Confidence:       0.9,
			EvidenceText:     "Dr. Chen is a professor at Stanford University, where the robotics lab is based.",
			ExtractionMethod: model.ExtractionMethodDependency,
		},
		{
			SubjectEntityID:  "Q_stanford",
			ObjectEntityID:   "Q_mit",
			RelationshipType: "COLLABORATES_WITH",
			Confidence:       0.8,
			EvidenceText:     "Stanford collaborates with MIT on autonomous systems research.",
			ExtractionMethod: model.ExtractionMethodPattern,
		},
	}

	fmt.Println("\nBuilding edges...")
	edges, err := g.BuildEdges(ctx, candidates, []string{source}, model.EdgeBuildOptions{VerifyEndpoints: true})
	if err != nil {
		log.Fatalf("Failed to build edges: %v", err)
	}
	for _, r := range edges.Created {
		fmt.Printf("  %s -%s-> %s weight %.2f\n", r.SubjectEntityID, r.RelationshipType, r.ObjectEntityID, r.Weight)
	}

	fmt.Println("\nRanking entities...")
	ranks, err := g.ComputeRanks(ctx, model.RankOptions{})
	if err != nil {
		log.Fatalf("Failed to compute ranks: %v", err)
	}
	for i, r := range ranks.Ranked {
		fmt.Printf("  %d. %s %.4f\n", i+1, r.CanonicalName, r.Score)
	}

	question := "What organizations are connected to Stanford?"
	fmt.Printf("\nQuerying: %s\n", question)
	response, err := g.Query(ctx, model.QueryRequest{Question: question})
	if err != nil {
		log.Fatalf("Failed to query: %v", err)
	}
	for i, answer := range response.Results {
		fmt.Printf("  %d. %s (confidence %.3f, %d hops)\n", i+1, answer.Answer, answer.Confidence, answer.Hops)
		fmt.Printf("     %s\n", answer.Explanation)
	}
}

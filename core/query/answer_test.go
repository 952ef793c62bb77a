package query

import (
	"testing"

	"github.com/siherrmann/kgraph/model"
	"github.com/stretchr/testify/assert"
)

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		phrase   string
		entity   string
		expected float64
	}{
		{"Exact match ignores case and spacing", "stanford  university", "Stanford University", matchExact},
		{"Prefix match", "Stanford", "Stanford University", matchPrefix},
		{"Substring match", "University", "Stanford University", matchSubstring},
		{"Empty phrase", "", "Stanford", 0},
		{"No overlap", "xyz", "Stanford", 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.InDelta(t, test.expected, NameSimilarity(test.phrase, test.entity), 1e-9)
		})
	}

	t.Run("Trigram overlap ranks below substring", func(t *testing.T) {
		score := NameSimilarity("Stanfrod University", "Stanford University")
		assert.Greater(t, score, 0.0, "Expected some trigram overlap")
		assert.Less(t, score, matchSubstring, "Expected fuzzy match to rank below substring match")
	})

	t.Run("Case folding handles non ASCII", func(t *testing.T) {
		assert.Equal(t, matchExact, NameSimilarity("MÜNCHEN", "münchen"))
	})
}

func TestEntityMatch(t *testing.T) {
	entity := &model.Entity{
		EntityID:      "mit",
		CanonicalName: "Massachusetts Institute of Technology",
		SurfaceForms:  []string{"MIT", "M.I.T."},
	}
	assert.Equal(t, matchExact, entityMatch("mit", entity), "Expected surface form to match exactly")
	assert.Equal(t, matchPrefix, entityMatch("Massachusetts", entity), "Expected canonical name prefix")
}

func TestPathScore(t *testing.T) {
	path := []*model.RelationshipConnection{
		{Relationship: &model.Relationship{Weight: 0.8}, IsOutgoing: true},
		{Relationship: &model.Relationship{Weight: 0.5}, IsOutgoing: false},
	}

	assert.InDelta(t, 0.9, pathScore(nil, 0.9, 0.85), 1e-9, "Expected seed score to be its confidence")
	assert.InDelta(t, 0.9*0.8*0.85, pathScore(path[:1], 0.9, 0.85), 1e-9)
	assert.InDelta(t, 0.9*0.8*0.5*0.85*0.85, pathScore(path, 0.9, 0.85), 1e-9)
	assert.Less(t, pathScore(path, 0.9, 0.85), pathScore(path[:1], 0.9, 0.85), "Expected longer path to score lower")
}

func TestExplain(t *testing.T) {
	names := map[string]string{"chen": "Dr. Chen", "stanford": "Stanford University"}
	path := []*model.RelationshipConnection{
		{
			Relationship: &model.Relationship{SubjectEntityID: "chen", ObjectEntityID: "stanford", RelationshipType: "AFFILIATED_WITH", Weight: 0.85},
			IsOutgoing:   false,
		},
		{
			Relationship: &model.Relationship{SubjectEntityID: "stanford", ObjectEntityID: "mit", RelationshipType: "COLLABORATES_WITH", Weight: 0.8},
			IsOutgoing:   true,
		},
	}

	t.Run("Path steps follow traversal direction", func(t *testing.T) {
		steps := buildPath("stanford", path[:1], names)
		if assert.Len(t, steps, 1) {
			assert.Equal(t, "stanford", steps[0].FromEntityID)
			assert.Equal(t, "chen", steps[0].ToEntityID)
			assert.Equal(t, "Dr. Chen", steps[0].ToName)
			assert.False(t, steps[0].Forward, "Expected incoming relationship to be backward")
		}
	})

	t.Run("Unknown names fall back to ids", func(t *testing.T) {
		steps := buildPath("chen", path[1:], map[string]string{})
		assert.Equal(t, "mit", steps[0].ToName)
	})

	t.Run("Explanation names relationships in their direction", func(t *testing.T) {
		steps := buildPath("chen", []*model.RelationshipConnection{
			{Relationship: path[0].Relationship, IsOutgoing: true},
			path[1],
		}, map[string]string{"chen": "Dr. Chen", "stanford": "Stanford University", "mit": "MIT"})
		explanation := explain("MIT", steps)
		assert.Equal(t, "MIT is 2 hops from Dr. Chen: Dr. Chen affiliated with Stanford University (weight 0.85); Stanford University collaborates with MIT (weight 0.80)", explanation)
	})

	t.Run("Backward hop reads from the subject", func(t *testing.T) {
		explanation := explain("Dr. Chen", buildPath("stanford", path[:1], names))
		assert.Equal(t, "Dr. Chen is 1 hop from Stanford University: Dr. Chen affiliated with Stanford University (weight 0.85)", explanation)
	})

	t.Run("Seed explanation", func(t *testing.T) {
		assert.Equal(t, "Stanford University is named in the question", explain("Stanford University", nil))
	})
}

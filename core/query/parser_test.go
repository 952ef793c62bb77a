package query

import (
	"testing"

	"github.com/siherrmann/kgraph/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestion(t *testing.T) {
	tests := []struct {
		name              string
		question          string
		intent            Intent
		seed              string
		answerTypes       []string
		relationshipTypes bool
	}{
		{
			name:        "Connected organizations",
			question:    "What organizations are connected to Stanford?",
			intent:      IntentConnected,
			seed:        "Stanford",
			answerTypes: []string{EntityTypeOrganization},
		},
		{
			name:        "Connected without type noun",
			question:    "What is connected to the Broad Institute",
			intent:      IntentConnected,
			seed:        "Broad Institute",
			answerTypes: nil,
		},
		{
			name:              "Funding by companies",
			question:          "Which companies fund OpenAI?",
			intent:            IntentFunding,
			seed:              "OpenAI",
			answerTypes:       []string{EntityTypeOrganization},
			relationshipTypes: true,
		},
		{
			name:              "Funded by",
			question:          "What is Stanford funded by?",
			intent:            IntentFunding,
			seed:              "Stanford",
			answerTypes:       nil,
			relationshipTypes: true,
		},
		{
			name:              "Affiliation of people",
			question:          "Who is affiliated with MIT?",
			intent:            IntentAffiliation,
			seed:              "MIT",
			answerTypes:       []string{EntityTypePerson},
			relationshipTypes: true,
		},
		{
			name:              "Workplace",
			question:          "Where does Dr. Chen work?",
			intent:            IntentAffiliation,
			seed:              "Dr. Chen",
			answerTypes:       nil,
			relationshipTypes: true,
		},
		{
			name:              "Location",
			question:          "Where is Stanford located?",
			intent:            IntentLocation,
			seed:              "Stanford",
			answerTypes:       []string{EntityTypeLocation, EntityTypeGeoPolitical},
			relationshipTypes: true,
		},
		{
			name:        "Related about a person",
			question:    "Who is Dr. Chen?",
			intent:      IntentRelated,
			seed:        "Dr. Chen",
			answerTypes: nil,
		},
		{
			name:        "Bare entity name",
			question:    "  Stanford   University ",
			intent:      IntentRelated,
			seed:        "Stanford University",
			answerTypes: nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			parsed, err := ParseQuestion(test.question)
			require.NoError(t, err, "Expected question to parse")
			assert.Equal(t, test.intent, parsed.Intent, "Expected intent to match")
			assert.Equal(t, test.seed, parsed.SeedPhrase, "Expected seed phrase to match")
			assert.Equal(t, test.answerTypes, parsed.AnswerTypes, "Expected answer types to match")
			assert.Equal(t, test.relationshipTypes, len(parsed.RelationshipTypes) > 0, "Expected relationship type preference to match")
			assert.Equal(t, test.question, parsed.Question, "Expected original question to be kept")
		})
	}

	t.Run("Conjunctive seed has alternatives", func(t *testing.T) {
		parsed, err := ParseQuestion("What is connected to Stanford and MIT?")
		require.NoError(t, err)
		assert.Equal(t, "Stanford and MIT", parsed.SeedPhrase)
		assert.Equal(t, []string{"Stanford", "MIT"}, parsed.SeedAlternatives)
	})

	t.Run("Single seed has no alternatives", func(t *testing.T) {
		parsed, err := ParseQuestion("What is connected to Stanford?")
		require.NoError(t, err)
		assert.Nil(t, parsed.SeedAlternatives)
	})

	t.Run("Empty question is malformed", func(t *testing.T) {
		_, err := ParseQuestion("   ?  ")
		assert.ErrorIs(t, err, helper.ErrMalformedQuery, "Expected malformed query error")
	})

	t.Run("Question without entity is malformed", func(t *testing.T) {
		_, err := ParseQuestion(`What is connected to "the"?`)
		assert.ErrorIs(t, err, helper.ErrMalformedQuery, "Expected malformed query error")
	})
}

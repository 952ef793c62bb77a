package query

import (
	"fmt"
	"math"
	"strings"

	"github.com/siherrmann/kgraph/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Seed match scores by kind of match. Trigram overlap is scaled below the
// substring score so that it never outranks a literal match.
const (
	matchExact     = 1.0
	matchPrefix    = 0.9
	matchSubstring = 0.75
	matchTrigram   = 0.7
	minSeedMatch   = 0.3
)

// normalizeName folds case and collapses whitespace. Casers are stateful, so
// every call gets its own.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(cases.Fold().String(name)), " ")
}

// NameSimilarity scores how well a phrase names an entity name in [0, 1].
func NameSimilarity(phrase, name string) float64 {
	a, b := normalizeName(phrase), normalizeName(name)
	if a == "" || b == "" {
		return 0
	}

	switch {
	case a == b:
		return matchExact
	case strings.HasPrefix(b, a) || strings.HasPrefix(a, b):
		return matchPrefix
	case strings.Contains(b, a) || strings.Contains(a, b):
		return matchSubstring
	}
	return trigramSimilarity(a, b) * matchTrigram
}

// trigramSimilarity is the Jaccard index of the rune trigram sets of a and b.
func trigramSimilarity(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for t := range ta {
		if tb[t] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func trigrams(s string) map[string]bool {
	runes := []rune(s)
	set := map[string]bool{}
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = true
	}
	return set
}

// entityMatch is the best similarity of phrase against the canonical name
// and every surface form of e.
func entityMatch(phrase string, e *model.Entity) float64 {
	best := NameSimilarity(phrase, e.CanonicalName)
	for _, form := range e.SurfaceForms {
		best = math.Max(best, NameSimilarity(phrase, form))
	}
	return best
}

// pathScore multiplies the edge weights along path with the answer entity
// confidence and a decay per hop.
func pathScore(path []*model.RelationshipConnection, confidence, decay float64) float64 {
	score := confidence
	for _, connection := range path {
		score *= connection.Relationship.Weight * decay
	}
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return math.Min(score, 1)
}

func matchesType(entityType string, types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if strings.EqualFold(entityType, t) {
			return true
		}
	}
	return false
}

func readableType(relationshipType string) string {
	return cases.Lower(language.English).String(strings.ReplaceAll(relationshipType, "_", " "))
}

// buildPath turns a traversal path into path steps, naming entities from
// names and falling back to their ids.
func buildPath(sourceID string, path []*model.RelationshipConnection, names map[string]string) []model.PathStep {
	name := func(id string) string {
		if n, ok := names[id]; ok && n != "" {
			return n
		}
		return id
	}

	steps := make([]model.PathStep, 0, len(path))
	from := sourceID
	for _, connection := range path {
		to := connection.Neighbor()
		steps = append(steps, model.PathStep{
			FromEntityID:     from,
			FromName:         name(from),
			ToEntityID:       to,
			ToName:           name(to),
			RelationshipType: connection.Relationship.RelationshipType,
			Weight:           connection.Relationship.Weight,
			Forward:          connection.IsOutgoing,
		})
		from = to
	}
	return steps
}

// explain renders the path from a seed to an answer as one sentence.
func explain(answer string, steps []model.PathStep) string {
	if len(steps) == 0 {
		return fmt.Sprintf("%s is named in the question", answer)
	}

	hops := make([]string, len(steps))
	for i, step := range steps {
		if step.Forward {
			hops[i] = fmt.Sprintf("%s %s %s (weight %.2f)", step.FromName, readableType(step.RelationshipType), step.ToName, step.Weight)
		} else {
			hops[i] = fmt.Sprintf("%s %s %s (weight %.2f)", step.ToName, readableType(step.RelationshipType), step.FromName, step.Weight)
		}
	}

	noun := "hop"
	if len(steps) > 1 {
		noun = "hops"
	}
	return fmt.Sprintf("%s is %d %s from %s: %s", answer, len(steps), noun, steps[0].FromName, strings.Join(hops, "; "))
}

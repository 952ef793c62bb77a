package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/siherrmann/kgraph/helper"
)

// Intent is the kind of question being asked.
type Intent string

const (
	IntentConnected   Intent = "connected"
	IntentFunding     Intent = "funding"
	IntentAffiliation Intent = "affiliation"
	IntentLocation    Intent = "location"
	IntentRelated     Intent = "related"
)

// Entity types used as answer type filters.
const (
	EntityTypeOrganization = "ORG"
	EntityTypePerson       = "PERSON"
	EntityTypeLocation     = "LOCATION"
	EntityTypeGeoPolitical = "GPE"
)

// ParsedQuery is the structured form of a natural language question.
type ParsedQuery struct {
	Question string
	Intent   Intent
	// SeedPhrase is the entity name the question is about.
	SeedPhrase string
	// SeedAlternatives are the parts of a conjunctive seed phrase, tried
	// when the full phrase resolves to nothing.
	SeedAlternatives []string
	// AnswerTypes restricts non-seed answers to these entity types. Empty
	// means any type.
	AnswerTypes []string
	// RelationshipTypes are the relationship types preferred by the intent.
	RelationshipTypes []string
}

type questionPattern struct {
	intent Intent
	re     *regexp.Regexp
}

// Patterns are tried in order. The last capture group is the seed phrase.
var questionPatterns = []questionPattern{
	{IntentFunding, regexp.MustCompile(`(?i)^(?:what|which|who)(?:\s+\w+)?\s+(?:funds?|funded|finances?|financed|sponsors?|sponsored|backs?|backed|invests?\s+in|invested\s+in)\s+(.+)$`)},
	{IntentFunding, regexp.MustCompile(`(?i)^(?:who|what)\s+(?:is|are|was|were)\s+(.+?)\s+(?:funded|financed|sponsored|backed)\s+by$`)},
	{IntentAffiliation, regexp.MustCompile(`(?i)^(?:what|which|who)(?:\s+\w+)?\s+(?:is|are|was|were)\s+(?:affiliated\s+with|employed\s+by|members?\s+of|working\s+(?:at|for))\s+(.+)$`)},
	{IntentAffiliation, regexp.MustCompile(`(?i)^(?:what|which|who)(?:\s+\w+)?\s+(?:works?|worked)\s+(?:at|for|with)\s+(.+)$`)},
	{IntentAffiliation, regexp.MustCompile(`(?i)^where\s+(?:does|did)\s+(.+?)\s+work$`)},
	{IntentLocation, regexp.MustCompile(`(?i)^where\s+(?:is|are|was|were)\s+(.+?)(?:\s+(?:located|based|headquartered))?$`)},
	{IntentConnected, regexp.MustCompile(`(?i)^(?:what|which|who)(?:\s+\w+)?\s+(?:is|are|was|were)\s+(?:connected|linked|related)\s+(?:to|with)\s+(.+)$`)},
	{IntentRelated, regexp.MustCompile(`(?i)^(?:tell\s+me\s+about|what\s+do\s+you\s+know\s+about|what\s+is\s+known\s+about|who\s+is|what\s+is)\s+(.+)$`)},
}

var intentRelationshipTypes = map[Intent][]string{
	IntentFunding:     {"FUNDED_BY", "FUNDS", "INVESTED_IN", "INVESTS_IN", "SPONSORED_BY", "SPONSORS"},
	IntentAffiliation: {"AFFILIATED_WITH", "EMPLOYED_BY", "EMPLOYS", "MEMBER_OF", "WORKS_AT", "WORKS_FOR"},
	IntentLocation:    {"BASED_IN", "HEADQUARTERED_IN", "LOCATED_IN"},
}

var answerTypeNouns = map[string][]string{
	"organization":  {EntityTypeOrganization},
	"organizations": {EntityTypeOrganization},
	"organisation":  {EntityTypeOrganization},
	"organisations": {EntityTypeOrganization},
	"company":       {EntityTypeOrganization},
	"companies":     {EntityTypeOrganization},
	"institution":   {EntityTypeOrganization},
	"institutions":  {EntityTypeOrganization},
	"universities":  {EntityTypeOrganization},
	"person":        {EntityTypePerson},
	"people":        {EntityTypePerson},
	"persons":       {EntityTypePerson},
	"researchers":   {EntityTypePerson},
	"who":           {EntityTypePerson},
	"place":         {EntityTypeLocation, EntityTypeGeoPolitical},
	"places":        {EntityTypeLocation, EntityTypeGeoPolitical},
	"location":      {EntityTypeLocation, EntityTypeGeoPolitical},
	"locations":     {EntityTypeLocation, EntityTypeGeoPolitical},
	"cities":        {EntityTypeLocation, EntityTypeGeoPolitical},
	"countries":     {EntityTypeLocation, EntityTypeGeoPolitical},
}

var conjunction = regexp.MustCompile(`(?i)\s*(?:,|\band\b)\s*`)

// ParseQuestion extracts the intent, the seed phrase and the answer type
// filter of a question. A question without a recognizable pattern falls
// back to the related intent with the whole question as seed.
func ParseQuestion(question string) (*ParsedQuery, error) {
	trimmed := strings.TrimSpace(question)
	trimmed = strings.TrimRight(trimmed, "?!. ")
	trimmed = strings.Join(strings.Fields(trimmed), " ")
	if trimmed == "" {
		return nil, helper.NewError("parse question", fmt.Errorf("%w: question is empty", helper.ErrMalformedQuery))
	}

	parsed := &ParsedQuery{
		Question: question,
		Intent:   IntentRelated,
	}
	prefix := ""
	seed := trimmed
	for _, p := range questionPatterns {
		match := p.re.FindStringSubmatchIndex(trimmed)
		if match == nil {
			continue
		}
		start, end := match[len(match)-2], match[len(match)-1]
		parsed.Intent = p.intent
		prefix = trimmed[:start]
		seed = trimmed[start:end]
		break
	}

	seed = cleanSeed(seed)
	if seed == "" {
		return nil, helper.NewError("parse question", fmt.Errorf("%w: no entity named in %q", helper.ErrMalformedQuery, question))
	}
	parsed.SeedPhrase = seed
	parsed.SeedAlternatives = splitSeed(seed)
	switch parsed.Intent {
	case IntentRelated:
		// "who is X" asks about X, not for people around it.
	case IntentLocation:
		parsed.AnswerTypes = []string{EntityTypeLocation, EntityTypeGeoPolitical}
	default:
		parsed.AnswerTypes = answerTypes(prefix)
	}
	parsed.RelationshipTypes = intentRelationshipTypes[parsed.Intent]

	return parsed, nil
}

func cleanSeed(seed string) string {
	seed = strings.Trim(seed, ` "'`)
	lower := strings.ToLower(seed)
	switch lower {
	case "the", "a", "an":
		return ""
	}
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(lower, article) && len(seed) > len(article) {
			seed = seed[len(article):]
			break
		}
	}
	return strings.TrimSpace(seed)
}

func splitSeed(seed string) []string {
	parts := conjunction.Split(seed, -1)
	if len(parts) < 2 {
		return nil
	}

	alternatives := []string{}
	for _, part := range parts {
		if part = cleanSeed(part); part != "" {
			alternatives = append(alternatives, part)
		}
	}
	if len(alternatives) < 2 {
		return nil
	}
	return alternatives
}

// answerTypes reads the answer type filter from the question words in front
// of the seed phrase. The first noun that names a type wins.
func answerTypes(prefix string) []string {
	for _, word := range strings.Fields(strings.ToLower(prefix)) {
		if types, ok := answerTypeNouns[word]; ok {
			return append([]string(nil), types...)
		}
	}
	return nil
}

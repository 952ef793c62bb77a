package materializer

import (
	"strings"
	"unicode"

	"github.com/siherrmann/kgraph/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxRelationshipTypeLength bounds sanitized relationship type labels.
const MaxRelationshipTypeLength = 64

// SanitizeRelationshipType turns a free-form label into an identifier of
// upper-case ASCII letters, digits and single underscores. Accents are
// stripped, a leading digit is prefixed with REL_ and an empty result becomes
// RELATED_TO.
func SanitizeRelationshipType(label string) string {
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, label)
	if err != nil {
		folded = label
	}
	folded = cases.Upper(language.Und).String(folded)

	var b strings.Builder
	pendingUnderscore := false
	for _, r := range folded {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			if pendingUnderscore && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingUnderscore = false
			b.WriteRune(r)
			continue
		}
		pendingUnderscore = true
	}

	sanitized := b.String()
	if sanitized == "" {
		return model.RelationshipTypeRelatedTo
	}
	if sanitized[0] >= '0' && sanitized[0] <= '9' {
		sanitized = "REL_" + sanitized
	}
	if len(sanitized) > MaxRelationshipTypeLength {
		sanitized = strings.TrimRight(sanitized[:MaxRelationshipTypeLength], "_")
	}

	return sanitized
}

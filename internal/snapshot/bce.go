package snapshot

import (
	"regexp"

	"github.com/sinaazimii/Wikidata-tools/internal/canon"
	"github.com/sinaazimii/Wikidata-tools/internal/graph"
)

// bcePrefix marks a literal that stood in for a negative-year timestamp
const bcePrefix = "BCE_"

// Negative years are outside the xsd:dateTime lexical space accepted by the
// decoder, so they are hidden behind a plain literal until parsing is done.
var bcePattern = regexp.MustCompile(`"(-\d{4,}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z)"\^\^(?:xsd:dateTime|<http://www\.w3\.org/2001/XMLSchema#dateTime>)`)

// Substitution records one rewritten BCE timestamp
type Substitution struct {
	Token    string // literal value seen by the decoder, e.g. BCE_0500-01-01T00:00:00Z
	Original string // original lexical value, e.g. -0500-01-01T00:00:00Z
}

// PreprocessBCE rewrites negative-year xsd:dateTime literals into plain
// BCE_ tokens and returns the rewritten document with the substitutions made.
func PreprocessBCE(raw []byte) ([]byte, []Substitution) {
	var subs []Substitution
	seen := make(map[string]bool)

	out := bcePattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		original := string(bcePattern.FindSubmatch(m)[1])
		token := bcePrefix + original[1:]
		if !seen[token] {
			seen[token] = true
			subs = append(subs, Substitution{Token: token, Original: original})
		}
		return []byte(`"` + token + `"`)
	})
	return out, subs
}

// RestoreBCE puts the original timestamp and datatype back on every literal
// that carries a substitution token. Literals that only look like a token
// but were not produced by PreprocessBCE are left alone.
func RestoreBCE(triples []graph.Triple, subs []Substitution) {
	if len(subs) == 0 {
		return
	}
	byToken := make(map[string]string, len(subs))
	for _, s := range subs {
		byToken[s.Token] = s.Original
	}
	for i := range triples {
		o := triples[i].O
		if !o.IsLiteral() || o.Lang != "" || o.Datatype != "" {
			continue
		}
		if original, ok := byToken[o.Value]; ok {
			triples[i].O = graph.Typed(original, canon.XSDDateTime)
		}
	}
}

package selector

import (
	"strings"
	"unicode"
)

// baseStopWords is the default English stop-word set. Tokens listed in
// Config.StopWordExceptions survive this filter even when they appear here.
var baseStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "any": true, "are": true,
	"as": true, "at": true, "be": true, "but": true, "by": true,
	"can": true, "do": true, "for": true, "from": true, "has": true,
	"have": true, "how": true, "i": true, "if": true, "in": true,
	"is": true, "it": true, "its": true, "me": true, "my": true,
	"no": true, "not": true, "of": true, "on": true, "or": true,
	"our": true, "out": true, "over": true, "please": true, "so": true,
	"that": true, "the": true, "their": true, "them": true, "then": true,
	"this": true, "to": true, "up": true, "use": true, "using": true,
	"was": true, "we": true, "what": true, "when": true, "which": true,
	"will": true, "with": true, "you": true, "your": true,
}

// defaultSynonyms maps common lexical variants to one canonical term so that
// queries and descriptors phrased differently still collide on the same
// token. Fully overridable via Config.Synonyms.
var defaultSynonyms = map[string]string{
	"coding":        "code",
	"programming":   "code",
	"development":   "code",
	"developer":     "code",
	"debugging":     "debug",
	"analysis":      "analyze",
	"analytics":     "analyze",
	"docs":          "document",
	"documentation": "document",
	"summarization": "summarize",
	"translation":   "translate",
	"querying":      "query",
}

func tokenize(text string) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsNumber(r))
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// normalize runs the full token pipeline: stop-word removal (honoring the
// exception list), synonym canonicalization, then stemming.
func (c *Config) normalize(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if baseStopWords[tok] && !c.exceptions[tok] {
			continue
		}
		if canon, ok := c.synonyms[tok]; ok {
			tok = canon
		}
		out = append(out, stem(tok))
	}
	return out
}

// stem applies a small suffix-stripping stemmer so lexical variants collapse
// to one term ("testing" -> "test", "queries" -> "query"). It is intentionally
// lighter than Porter: selection only needs variants of the same word to
// collide, not linguistically precise roots.
func stem(word string) string {
	n := len(word)
	switch {
	case n > 5 && strings.HasSuffix(word, "ies"):
		return word[:n-3] + "y"
	case n > 5 && strings.HasSuffix(word, "ing"):
		stemmed := word[:n-3]
		// "running" -> "run", not "runn"
		if len(stemmed) > 2 && stemmed[len(stemmed)-1] == stemmed[len(stemmed)-2] {
			stemmed = stemmed[:len(stemmed)-1]
		}
		return stemmed
	case n > 4 && strings.HasSuffix(word, "ed"):
		return word[:n-2]
	case n > 3 && strings.HasSuffix(word, "es"):
		return word[:n-2]
	case n > 3 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss"):
		return word[:n-1]
	}
	return word
}

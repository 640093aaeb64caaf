package tag

import (
	"fmt"
	"regexp"
	"strings"
)

// Identifier is an uppercase product identifier that matched the grammar.
type Identifier string

func (id Identifier) String() string {
	return string(id)
}

var categoryCodePattern = regexp.MustCompile(`^[A-Z]{2,8}$`)

// Grammar recognises identifiers of the form <CATEGORY><3 digits>.
type Grammar struct {
	codes []string
	full  *regexp.Regexp
	find  *regexp.Regexp
}

// NewGrammar builds a grammar from category codes. Codes are uppercased and
// must be 2-8 ASCII letters.
func NewGrammar(codes []string) (*Grammar, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("grammar requires at least one category code")
	}
	normalized := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if !categoryCodePattern.MatchString(c) {
			return nil, fmt.Errorf("invalid category code %q", c)
		}
		normalized = append(normalized, c)
	}
	alt := strings.Join(normalized, "|")
	return &Grammar{
		codes: normalized,
		full:  regexp.MustCompile(`^(?:` + alt + `)\d{3}$`),
		find:  regexp.MustCompile(`(?:` + alt + `)\d{3}`),
	}, nil
}

// MustGrammar is NewGrammar for static code lists.
func MustGrammar(codes []string) *Grammar {
	g, err := NewGrammar(codes)
	if err != nil {
		panic(err)
	}
	return g
}

// Codes returns the category codes in configuration order.
func (g *Grammar) Codes() []string {
	return append([]string(nil), g.codes...)
}

// Match reports whether s, uppercased, is exactly one identifier.
func (g *Grammar) Match(s string) (Identifier, bool) {
	up := strings.ToUpper(s)
	if !g.full.MatchString(up) {
		return "", false
	}
	return Identifier(up), true
}

// Extract returns the first identifier embedded anywhere in s.
func (g *Grammar) Extract(s string) (Identifier, bool) {
	found := g.find.FindString(strings.ToUpper(s))
	if found == "" {
		return "", false
	}
	return Identifier(found), true
}

// ParseIdentifier trims s and tries an exact match before falling back to extraction.
func (g *Grammar) ParseIdentifier(s string) (Identifier, error) {
	trimmed := strings.TrimSpace(s)
	if id, ok := g.Match(trimmed); ok {
		return id, nil
	}
	if id, ok := g.Extract(trimmed); ok {
		return id, nil
	}
	return "", noIdentifier("text", trimmed)
}

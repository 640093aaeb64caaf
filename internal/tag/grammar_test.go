package tag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultCodes = []string{"FOOD", "ELEC", "CLTH", "BOOK", "HOME", "SPRT"}

func TestNewGrammar(t *testing.T) {
	_, err := NewGrammar(nil)
	assert.Error(t, err)

	_, err = NewGrammar([]string{"FO0D"})
	assert.Error(t, err)

	g, err := NewGrammar([]string{" food ", "elec"})
	require.NoError(t, err)
	assert.Equal(t, []string{"FOOD", "ELEC"}, g.Codes())
}

func TestGrammarMatch(t *testing.T) {
	g := MustGrammar(defaultCodes)

	tests := []struct {
		in   string
		want Identifier
		ok   bool
	}{
		{"FOOD001", "FOOD001", true},
		{"food001", "FOOD001", true},
		{"Sprt999", "SPRT999", true},
		{"FOOD01", "", false},
		{"FOOD0001", "", false},
		{"TOYS001", "", false},
		{" FOOD001", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := g.Match(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGrammarExtract(t *testing.T) {
	g := MustGrammar(defaultCodes)

	id, ok := g.Extract("item:book042;qty=1")
	require.True(t, ok)
	assert.Equal(t, Identifier("BOOK042"), id)

	id, ok = g.Extract("FOOD001 and ELEC002")
	require.True(t, ok)
	assert.Equal(t, Identifier("FOOD001"), id)

	_, ok = g.Extract("nothing here")
	assert.False(t, ok)
}

func TestParseIdentifier(t *testing.T) {
	g := MustGrammar(defaultCodes)

	id, err := g.ParseIdentifier("  home123\n")
	require.NoError(t, err)
	assert.Equal(t, Identifier("HOME123"), id)

	id, err = g.ParseIdentifier("Product: clth007!")
	require.NoError(t, err)
	assert.Equal(t, Identifier("CLTH007"), id)

	_, err = g.ParseIdentifier("TOYS001")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoIdentifierFound))
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}

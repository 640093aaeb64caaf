package tag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDecoder() *Decoder {
	return NewDecoder(MustGrammar(defaultCodes))
}

func TestDecode(t *testing.T) {
	d := newTestDecoder()

	tests := []struct {
		name string
		raw  string
		want Identifier
	}{
		{"plain", "FOOD001", "FOOD001"},
		{"lowercase padded", "  elec002 ", "ELEC002"},
		{"product url", "https://pos.example/product/book003?ref=qr", "BOOK003"},
		{"last segment url", "https://pos.example/items/HOME004", "HOME004"},
		{"embedded", "SKU=SPRT005;", "SPRT005"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, err := d.Decode(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, id)
		})
	}

	_, err := d.Decode("TOYS001")
	assert.True(t, errors.Is(err, ErrNoIdentifierFound))
}

func TestDecodeNDEFTextRoundTrip(t *testing.T) {
	d := newTestDecoder()

	t.Run("with language prefix", func(t *testing.T) {
		id, err := d.DecodeNDEF([]Record{EncodeTextRecord("food001", "en-US")})
		require.NoError(t, err)
		assert.Equal(t, Identifier("FOOD001"), id)
	})

	t.Run("without prefix", func(t *testing.T) {
		rec := Record{TNF: TNFWellKnown, Type: []byte("T"), Payload: []byte("FOOD001")}
		id, err := d.DecodeNDEF([]Record{rec})
		require.NoError(t, err)
		assert.Equal(t, Identifier("FOOD001"), id)
	})

	t.Run("binary message", func(t *testing.T) {
		msg := MarshalMessage([]Record{EncodeTextRecord("CLTH010", "en")})
		id, err := d.DecodeNDEFBytes(msg)
		require.NoError(t, err)
		assert.Equal(t, Identifier("CLTH010"), id)
	})
}

func TestDecodeNDEFInvalidUTF8FallsBackToASCII(t *testing.T) {
	d := newTestDecoder()
	payload := append([]byte{0x02, 'e', 'n', 0xff, 0xfe}, []byte("BOOK042")...)
	rec := Record{TNF: TNFWellKnown, Type: []byte("T"), Payload: payload}

	id, err := d.DecodeNDEF([]Record{rec})
	require.NoError(t, err)
	assert.Equal(t, Identifier("BOOK042"), id)
}

func TestDecodeNDEFURLRecord(t *testing.T) {
	d := newTestDecoder()
	records := []Record{
		{TNF: TNFMedia, Type: []byte("application/octet-stream"), Payload: []byte{0x01}},
		EncodeURIRecord("https://tiptap.example/product/sprt001"),
	}
	id, err := d.DecodeNDEF(records)
	require.NoError(t, err)
	assert.Equal(t, Identifier("SPRT001"), id)
}

func TestDecodeNDEFFirstRecordWins(t *testing.T) {
	d := newTestDecoder()
	id, err := d.DecodeNDEF([]Record{
		EncodeTextRecord("ELEC001", "en"),
		EncodeTextRecord("FOOD002", "en"),
	})
	require.NoError(t, err)
	assert.Equal(t, Identifier("ELEC001"), id)
}

func TestDecodeNDEFUnknownCategory(t *testing.T) {
	d := newTestDecoder()
	_, err := d.DecodeNDEF([]Record{
		EncodeTextRecord("TOYS001", "en"),
		EncodeURIRecord("https://tiptap.example/product/TOYS001"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoIdentifierFound))
}

func TestDecodeNDEFBytesMalformed(t *testing.T) {
	d := newTestDecoder()
	_, err := d.DecodeNDEFBytes([]byte{0xD1})
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.True(t, errors.Is(err, ErrMalformedMessage))
}

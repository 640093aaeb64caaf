package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tiptap/pkg/domain-errors"
	"tiptap/pkg/testutil"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		code        string
		description string
	}{
		{"internal error hides description", dErrors.New(dErrors.CodeInternal, "pq: connection reset"), http.StatusInternalServerError, "internal_error", ""},
		{"not found keeps description", dErrors.New(dErrors.CodeNotFound, "Product not found"), http.StatusNotFound, "not_found", "Product not found"},
		{"bare error is internal", assert.AnError, http.StatusInternalServerError, "internal_error", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			body := decodeEnvelope(t, w)
			assert.Equal(t, tt.code, body["error"])
			desc, ok := body["error_description"]
			if tt.description == "" {
				assert.False(t, ok, "error_description must be omitted")
			} else {
				assert.Equal(t, tt.description, desc)
			}
		})
	}
}

type stockRequest struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
	Stock int      `json:"stock"`
}

func (r *stockRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

func decode(body string) (*stockRequest, bool, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(body))
	req, ok := DecodeAndPrepare[stockRequest](w, r, testutil.DiscardLogger(), context.Background(), "req-1")
	return req, ok, w
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("trims strings before validating", func(t *testing.T) {
		req, ok, _ := decode(`{"name":"  Dosa  ","tags":[" veg ","south"],"stock":3}`)
		require.True(t, ok)
		assert.Equal(t, "Dosa", req.Name)
		assert.Equal(t, []string{"veg", "south"}, req.Tags)
		assert.Equal(t, 3, req.Stock)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		_, ok, w := decode(`not json`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeEnvelope(t, w)["error"])
	})

	t.Run("blank name fails validation after trimming", func(t *testing.T) {
		_, ok, w := decode(`{"name":"   "}`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", decodeEnvelope(t, w)["error"])
	})
}

package models_test

import (
	"testing"

	"github.com/ignatij/apipulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaders(t *testing.T) {
	t.Run("NilValueIsSQLNull", func(t *testing.T) {
		var h models.Headers
		v, err := h.Value()
		assert.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("ScanFromJSONB", func(t *testing.T) {
		var h models.Headers
		require.NoError(t, h.Scan([]byte(`{"content-type":"application/json"}`)))
		assert.Equal(t, "application/json", h["content-type"])

		v, err := h.Value()
		require.NoError(t, err)
		assert.JSONEq(t, `{"content-type":"application/json"}`, v.(string))
	})

	t.Run("ScanNull", func(t *testing.T) {
		h := models.Headers{"a": "b"}
		require.NoError(t, h.Scan(nil))
		assert.Nil(t, h)
	})

	t.Run("ScanUnsupportedType", func(t *testing.T) {
		var h models.Headers
		assert.Error(t, h.Scan(42))
	})
}

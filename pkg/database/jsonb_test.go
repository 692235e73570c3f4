package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONB(t *testing.T) {
	got, err := JSONB(map[string]any{"theme": "dark", "beta": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark","beta":true}`, got)

	got, err = JSONB([]int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", got)

	_, err = JSONB(make(chan int))
	assert.Error(t, err)
}

func TestParseJSONBRecord(t *testing.T) {
	record, err := ParseJSONBRecord([]byte(`{"a":1,"b":{"c":"d"}}`))
	require.NoError(t, err)
	assert.Equal(t, float64(1), record["a"])
	assert.Equal(t, map[string]any{"c": "d"}, record["b"])

	record, err = ParseJSONBRecord(nil)
	require.NoError(t, err)
	assert.Nil(t, record)

	_, err = ParseJSONBRecord([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestParseJSONBArray(t *testing.T) {
	items, err := ParseJSONBArray([]byte(`["x", 2, null]`))
	require.NoError(t, err)
	assert.Equal(t, []any{"x", float64(2), nil}, items)

	items, err = ParseJSONBArray(nil)
	require.NoError(t, err)
	assert.Nil(t, items)

	_, err = ParseJSONBArray([]byte(`{"a":1}`))
	assert.Error(t, err)
}

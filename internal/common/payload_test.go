package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload(t *testing.T) {
	p, err := DecodePayload(json.RawMessage(`{
		"price": 190.5,
		"beta": "1.2",
		"volAvg": "N/A",
		"companyName": "Apple Inc.",
		"fullTimeEmployees": 161000,
		"image": null,
		"segments": [{"name": "iPhone", "revenue": 200}, {"name": "Mac", "revenue": 30}]
	}`))
	require.NoError(t, err)

	v, ok := p.Float("$.price")
	assert.True(t, ok)
	assert.Equal(t, 190.5, v)

	v, ok = p.Float("$.beta")
	assert.True(t, ok, "numeric strings parse")
	assert.Equal(t, 1.2, v)

	_, ok = p.Float("$.volAvg")
	assert.False(t, ok)
	_, ok = p.Float("$.missing")
	assert.False(t, ok)
	assert.Nil(t, p.FloatPtr("$.image"))
	assert.Equal(t, 7.0, p.FloatOr("$.missing", 7))

	assert.Equal(t, "Apple Inc.", p.String("$.companyName"))
	assert.Equal(t, "161000", p.String("$.fullTimeEmployees"))
	assert.Equal(t, "", p.String("$.image"))

	assert.Equal(t, 2, p.Len("$.segments"))
	assert.Equal(t, "Mac", p.String("$.segments[1].name"))
	assert.Equal(t, "iPhone", p.String(`$.segments[*].name`))
	assert.Equal(t, "iPhone", p.String(`$.segments[?(@.revenue > 100)].name`))
	assert.Equal(t, "Mac", p.String(`$.segments[?(@.revenue < 100 && @.name != "iPhone")].name`))
	assert.Equal(t, "", p.String(`$.segments[?(@.revenue > 1000)].name`), "empty selection is absent")
	assert.Equal(t, "", p.String(`$.segments[?(@.revenue >`), "malformed path is absent")
}

func TestPayload_ArrayRoot(t *testing.T) {
	p, err := DecodePayload(json.RawMessage(`[{"revenue": 1000, "netIncome": 250}]`))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, p.FloatOr("$[0].revenue", 0))

	empty, err := DecodePayload(json.RawMessage(`[]`))
	require.NoError(t, err)
	_, ok := empty.Float("$[0].revenue")
	assert.False(t, ok)
}

func TestDecodePayload_Invalid(t *testing.T) {
	_, err := DecodePayload(json.RawMessage(`{broken`))
	assert.Error(t, err)
}

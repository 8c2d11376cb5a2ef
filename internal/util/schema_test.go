package util

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
	D string `json:"-"`
	e string
}

type form struct {
	Result string `json:"result" enum:"win, draw, loss"`
}

type report struct {
	Player  string         `json:"player"`
	Games   []form         `json:"games"`
	Tags    map[string]int `json:"tags,omitempty"`
	Updated time.Time      `json:"updated"`
}

func TestCreateSchema_Flat(t *testing.T) {
	schema := CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)

	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	assert.NotContains(t, props, "D")
	assert.NotContains(t, props, "e")
	assert.Equal(t, []string{"a"}, schema["required"])
	assert.Equal(t, false, schema["additionalProperties"])

	b := props["b"].(map[string]any)
	assert.Equal(t, "integer", b["type"])
	assert.Equal(t, "Optional pointer field", b["description"])
}

func TestCreateSchema_Nested(t *testing.T) {
	schema := CreateSchema(&report{})
	props := schema["properties"].(map[string]any)

	games := props["games"].(map[string]any)
	assert.Equal(t, "array", games["type"])

	item := games["items"].(map[string]any)
	assert.Equal(t, "object", item["type"])
	result := item["properties"].(map[string]any)["result"].(map[string]any)
	assert.Equal(t, []any{"win", "draw", "loss"}, result["enum"])

	assert.Equal(t, "date-time", props["updated"].(map[string]any)["format"])
	assert.ElementsMatch(t, []string{"player", "games", "updated"}, schema["required"])
}

func TestCreateSchema_NonStruct(t *testing.T) {
	for _, v := range []any{nil, 42, "x", time.Time{}} {
		schema := CreateSchema(v)
		assert.Equal(t, "object", schema["type"])
		assert.Empty(t, schema["properties"])
	}
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []any{"x"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"x": 5}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"x": 5.0, "extra": true}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)

	err = ValidateParameters(map[string]any{"x": "not-int"}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "expected type integer")

	err = ValidateParameters(map[string]any{"x": 1.5}, schema)
	assert.Error(t, err)
}

func TestValidateParameters_DerivedSchema(t *testing.T) {
	schema := CreateSchema(report{})

	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"player":"Ann","games":[],"updated":"2024-01-01T00:00:00Z"}`), &args))
	assert.NoError(t, ValidateParameters(args, schema))

	delete(args, "player")
	err := ValidateParameters(args, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "player", vErr.Field)
}

func TestValidateParameters_NestedAndEnum(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"opponent": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"side": map[string]any{"type": "string", "enum": []any{"white", "black"}},
				},
				"required": []any{"side"},
			},
		},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"opponent": map[string]any{"side": "white"}}, schema))

	err := ValidateParameters(map[string]any{"opponent": map[string]any{"side": "green"}}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "opponent.side", vErr.Field)

	err = ValidateParameters(map[string]any{"opponent": map[string]any{}}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "opponent.side", vErr.Field)
}

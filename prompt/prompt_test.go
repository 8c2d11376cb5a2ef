package prompt

import (
	"errors"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hupe1980/promptline/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_TaskOnly(t *testing.T) {
	got := Render(Spec{Task: "Summarize the match.", Tone: "   "})
	assert.Equal(t, "Task:\nSummarize the match.", got)
}

func TestRender_AllSections(t *testing.T) {
	got := Render(Spec{
		Task:               "Summarize the match.",
		Rules:              []string{"Be factual", "No speculation"},
		OutputRequirements: []string{"Max 3 sentences"},
		Tone:               "neutral",
	})
	want := "Task:\nSummarize the match.\n\n" +
		"Rules:\n1. Be factual\n2. No speculation\n\n" +
		"Output Requirements:\n1. Max 3 sentences\n\n" +
		"Tone:\nneutral"
	assert.Equal(t, want, got)
}

func TestRender_SkipsEmptyListSections(t *testing.T) {
	got := Render(Spec{Task: "t", OutputRequirements: []string{"a", "b", "c"}})
	assert.Equal(t, "Task:\nt\n\nOutput Requirements:\n1. a\n2. b\n3. c", got)
	assert.NotContains(t, got, "Rules:")
	assert.NotContains(t, got, "\n\n\n")
}

func TestEmbed_DefaultHeading(t *testing.T) {
	for _, heading := range []string{"", "   ", "\t\n"} {
		got, err := Embed("Base", map[string]any{"k": 1}, ContextOptions{Heading: heading, Format: JSONCompactSorted})
		require.NoError(t, err)
		assert.Equal(t, "Base\n\nContext:\n{\"k\":1}", got)
	}
}

func TestEmbed_TrimsHeading(t *testing.T) {
	got, err := Embed("Base", []int{1, 2}, ContextOptions{Heading: "  Player Data ", Format: JSONCompactUnsorted})
	require.NoError(t, err)
	assert.Equal(t, "Base\n\nPlayer Data:\n[1,2]", got)
}

func TestEncodeJSON_NeverEscapesSlashes(t *testing.T) {
	data := map[string]any{"url": "https://example.com/a/b", "html": "<b>&</b>"}
	for _, f := range []JSONFormat{JSONPrettySorted, JSONCompactSorted, JSONCompactUnsorted} {
		got, err := EncodeJSON(data, f)
		require.NoError(t, err)
		assert.Contains(t, got, "https://example.com/a/b")
		assert.NotContains(t, got, `\/`)
		assert.Contains(t, got, "<b>&</b>")
	}
}

type player struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
	Club   string  `json:"club"`
}

func TestEncodeJSON_Formats(t *testing.T) {
	p := player{Name: "Ann", Rating: 1718.5, Club: "Rooks"}

	compact, err := EncodeJSON(p, JSONCompactUnsorted)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ann","rating":1718.5,"club":"Rooks"}`, compact)

	sorted, err := EncodeJSON(p, JSONCompactSorted)
	require.NoError(t, err)
	assert.Equal(t, `{"club":"Rooks","name":"Ann","rating":1718.5}`, sorted)

	pretty, err := EncodeJSON(p, JSONPrettySorted)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"club\": \"Rooks\",\n  \"name\": \"Ann\",\n  \"rating\": 1718.5\n}", pretty)
}

func TestEmbed_EncodingFailure(t *testing.T) {
	_, err := Embed("Base", map[string]any{"bad": math.NaN()}, ContextOptions{})
	require.Error(t, err)

	var encErr *core.ContextEncodingError
	assert.True(t, errors.As(err, &encErr))
	assert.ErrorIs(t, err, core.ErrContextEncodingFailed)

	_, err = Embed("Base", make(chan int), ContextOptions{})
	assert.ErrorIs(t, err, core.ErrContextEncodingFailed)
}

func TestEncodeJSON_ReplacesInvalidUTF8(t *testing.T) {
	for _, f := range []JSONFormat{JSONPrettySorted, JSONCompactSorted, JSONCompactUnsorted} {
		got, err := EncodeJSON(map[string]string{"name": "An\xffn"}, f)
		require.NoError(t, err)
		assert.True(t, utf8.ValidString(got))
		assert.Contains(t, got, `An\ufffdn`)
	}
}

func TestEncodeJSON_UnknownFormat(t *testing.T) {
	_, err := EncodeJSON(1, JSONFormat("yaml"))
	assert.Error(t, err)
	assert.False(t, JSONFormat("yaml").Valid())
	assert.True(t, JSONFormat("").Valid())
}

func TestWithSchema(t *testing.T) {
	got, err := WithSchema("Describe the player.", map[string]any{"type": "object"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "Describe the player.\n\nOutput Schema:\n"))
	assert.Contains(t, got, `"type": "object"`)
}

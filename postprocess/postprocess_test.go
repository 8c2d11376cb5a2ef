package postprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allKnobs(places, newlines int) Spec {
	return Spec{Trim: true, CollapseWhitespace: true, MaxNewlines: newlines, RoundDecimals: Places(places)}
}

func TestApply_ZeroSpecIsNoOp(t *testing.T) {
	in := "  keep \t\t this\n\n\n\n 1.25  "
	assert.True(t, Spec{}.IsZero())
	assert.Equal(t, in, Apply(in, Spec{}))
}

func TestSpec_IsZero(t *testing.T) {
	assert.False(t, Spec{Trim: true}.IsZero())
	assert.False(t, Spec{CollapseWhitespace: true}.IsZero())
	assert.False(t, Spec{MaxNewlines: 1}.IsZero())
	assert.False(t, Spec{RoundDecimals: Places(0)}.IsZero())
	assert.True(t, Spec{MaxNewlines: 0, RoundDecimals: Places(-1)}.IsZero())
}

func TestSpec_Validate(t *testing.T) {
	require.NoError(t, allKnobs(2, 1).Validate())
	assert.Error(t, Spec{MaxNewlines: -1}.Validate())
	assert.Error(t, Spec{RoundDecimals: Places(-2)}.Validate())
}

func TestApply_RatingExample(t *testing.T) {
	assert.Equal(t, "Rating 1719 vs 1600.", Apply("Rating 1718.58 vs 1600.49.", Spec{RoundDecimals: Places(0)}))

	in := "  Rating 1718.58 vs 1600.49.\n\n\n\nRecent form:\t\tWWD  "
	assert.Equal(t, "Rating 1719 vs 1600.\n\nRecent form: WWD", Apply(in, allKnobs(0, 2)))
}

func TestApply_Idempotent(t *testing.T) {
	inputs := []string{
		"  Rating 1718.58 vs 1600.49.\n\n\n\nRecent form:\t\tWWD  ",
		"\n\n\tv1.2.3   shipped -0.004 and 2.5\n\n\n",
		"a  b\t\tc\n\n\n\n\nd 3.14159 e",
		"",
		"   ",
	}
	for _, places := range []int{0, 1, 3} {
		for _, newlines := range []int{1, 2} {
			spec := allKnobs(places, newlines)
			for _, in := range inputs {
				once := Apply(in, spec)
				assert.Equal(t, once, Apply(once, spec), "spec=%+v input=%q", spec, in)
			}
		}
	}
}

func TestRoundDecimals(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		places int
		want   string
	}{
		{"integer render", "pi is 3.14159", 0, "pi is 3"},
		{"two places", "pi is 3.14159", 2, "pi is 3.14"},
		{"pads fraction", "x=1.5", 3, "x=1.500"},
		{"half away from zero", "2.5 and -2.5", 0, "3 and -3"},
		{"exact decimal tie", "1.005", 2, "1.01"},
		{"carry into integer", "9.996", 2, "10.00"},
		{"carry grows digits", "99.5", 0, "100"},
		{"negative zero drops sign", "-0.4", 0, "0"},
		{"plus sign dropped", "+1.25", 1, "1.3"},
		{"leading zeros normalized", "007.50", 0, "8"},
		{"version untouched", "go 1.22.3 is out", 0, "go 1.22.3 is out"},
		{"trailing dot not a version", "total 12.75.", 0, "total 13."},
		{"integers untouched", "42 apples", 1, "42 apples"},
		{"multiple tokens", "1.44 2.55 3.66", 1, "1.4 2.6 3.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundDecimals(tt.in, tt.places))
		})
	}
}

func TestRoundDecimals_NewBlanksAreCollapsed(t *testing.T) {
	// rounding first, collapsing second: adjacent blanks survive rounding and are then merged
	spec := Spec{RoundDecimals: Places(0), CollapseWhitespace: true}
	assert.Equal(t, "value 4 units", Apply("value  3.7  units", spec))
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("a  b\t\tc"))
	assert.Equal(t, "a\tb", CollapseWhitespace("a\tb"))
	assert.Equal(t, "a\n\n b", CollapseWhitespace("a\n\n \t b"))
}

func TestCapNewlines(t *testing.T) {
	assert.Equal(t, "a\nb", CapNewlines("a\n\n\n\nb", 1))
	assert.Equal(t, "a\n\nb\n\nc", CapNewlines("a\n\n\nb\n\n\n\n\nc", 2))
	assert.Equal(t, "a\n\nb", CapNewlines("a\n\nb", 2))
	assert.Equal(t, "unchanged\n\n\n", CapNewlines("unchanged\n\n\n", 0))
}

func TestSteps_Order(t *testing.T) {
	assert.Empty(t, Steps(Spec{}))
	assert.Len(t, Steps(allKnobs(1, 1)), 4)

	// trimming is last: newline capping cannot re-introduce edge whitespace
	got := Apply("\n\n\n text \n\n\n", Spec{Trim: true, MaxNewlines: 1})
	assert.Equal(t, "text", got)
	assert.False(t, strings.HasPrefix(got, "\n"))
}

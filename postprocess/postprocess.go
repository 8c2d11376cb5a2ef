package postprocess

import (
	"fmt"
	"regexp"
	"strings"
)

// Spec holds the four independent normalization knobs. The zero value is a no-op.
type Spec struct {
	// Trim removes leading and trailing whitespace (including newlines).
	Trim bool `json:"trim,omitempty" yaml:"trim"`
	// CollapseWhitespace replaces runs of two or more spaces/tabs with one space.
	CollapseWhitespace bool `json:"collapse_whitespace,omitempty" yaml:"collapse_whitespace"`
	// MaxNewlines caps runs of consecutive newlines at N. Values < 1 disable the step.
	MaxNewlines int `json:"max_newlines,omitempty" yaml:"max_newlines"`
	// RoundDecimals rounds decimal numbers to P places. Nil or negative disables the step.
	RoundDecimals *int `json:"round_decimals,omitempty" yaml:"round_decimals"`
}

// Places returns a pointer suitable for Spec.RoundDecimals.
func Places(p int) *int { return &p }

// IsZero reports whether no knob is set, i.e. Apply would return its input unchanged.
func (s Spec) IsZero() bool {
	return !s.Trim && !s.CollapseWhitespace && s.MaxNewlines < 1 && !s.rounds()
}

func (s Spec) rounds() bool { return s.RoundDecimals != nil && *s.RoundDecimals >= 0 }

// Validate rejects knob values outside their domain.
func (s Spec) Validate() error {
	if s.MaxNewlines < 0 {
		return fmt.Errorf("postprocess: max_newlines must be >= 1 (or 0 to disable), got %d", s.MaxNewlines)
	}
	if s.RoundDecimals != nil && *s.RoundDecimals < 0 {
		return fmt.Errorf("postprocess: round_decimals must be >= 0, got %d", *s.RoundDecimals)
	}
	return nil
}

// Step is a single pure text transformation.
type Step func(string) string

// Steps returns the enabled steps for spec in execution order.
func Steps(spec Spec) []Step {
	steps := make([]Step, 0, 4)
	if spec.rounds() {
		places := *spec.RoundDecimals
		steps = append(steps, func(s string) string { return RoundDecimals(s, places) })
	}
	if spec.CollapseWhitespace {
		steps = append(steps, CollapseWhitespace)
	}
	if spec.MaxNewlines >= 1 {
		n := spec.MaxNewlines
		steps = append(steps, func(s string) string { return CapNewlines(s, n) })
	}
	if spec.Trim {
		steps = append(steps, strings.TrimSpace)
	}
	return steps
}

// Apply runs the pipeline described by spec over text.
func Apply(text string, spec Spec) string {
	if spec.IsZero() {
		return text
	}
	for _, step := range Steps(spec) {
		text = step(text)
	}
	return text
}

var blankRun = regexp.MustCompile(`[ \t]{2,}`)

// CollapseWhitespace replaces every run of two or more space/tab characters
// with a single space. Newlines are left alone.
func CollapseWhitespace(text string) string {
	return blankRun.ReplaceAllLiteralString(text, " ")
}

// CapNewlines shortens every run of more than n consecutive '\n' to exactly n.
func CapNewlines(text string, n int) string {
	if n < 1 || !strings.Contains(text, strings.Repeat("\n", n+1)) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	run := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' {
			run++
			if run > n {
				continue
			}
		} else {
			run = 0
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Package prompt turns structured prompt specifications into prompt text and
// embeds arbitrary structured context data as a JSON block.
package prompt

import (
	"strconv"
	"strings"
)

// Spec is a structured prompt: a required task plus optional ordered rules,
// output requirements and tone.
type Spec struct {
	Task               string   `json:"task" yaml:"task"`
	Rules              []string `json:"rules,omitempty" yaml:"rules"`
	OutputRequirements []string `json:"output_requirements,omitempty" yaml:"output_requirements"`
	Tone               string   `json:"tone,omitempty" yaml:"tone"`
}

// Render builds the prompt text for spec. Sections appear in the order
// Task, Rules, Output Requirements, Tone; empty sections are omitted and
// sections are separated by exactly one blank line.
func Render(spec Spec) string {
	sections := make([]string, 0, 4)
	sections = append(sections, "Task:\n"+spec.Task)
	if len(spec.Rules) > 0 {
		sections = append(sections, "Rules:\n"+numbered(spec.Rules))
	}
	if len(spec.OutputRequirements) > 0 {
		sections = append(sections, "Output Requirements:\n"+numbered(spec.OutputRequirements))
	}
	if strings.TrimSpace(spec.Tone) != "" {
		sections = append(sections, "Tone:\n"+spec.Tone)
	}
	return strings.Join(sections, "\n\n")
}

// numbered renders items as a contiguous 1-based list.
func numbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(item)
	}
	return b.String()
}

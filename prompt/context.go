package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/promptline/core"
	"github.com/tidwall/pretty"
)

// DefaultHeading labels embedded context when no usable heading is configured.
const DefaultHeading = "Context"

// SchemaHeading labels an output schema injected into a prompt.
const SchemaHeading = "Output Schema"

// JSONFormat selects how embedded context is serialized.
type JSONFormat string

const (
	// JSONPrettySorted renders indented JSON with object keys sorted at every depth.
	JSONPrettySorted JSONFormat = "pretty_sorted"
	// JSONCompactSorted renders single-line JSON with object keys sorted at every depth.
	JSONCompactSorted JSONFormat = "compact_sorted"
	// JSONCompactUnsorted renders single-line JSON in encoder order
	// (struct declaration order; Go maps are always key ordered).
	JSONCompactUnsorted JSONFormat = "compact_unsorted"
)

// Valid reports whether f names a known format. The empty format is valid
// and means JSONPrettySorted.
func (f JSONFormat) Valid() bool {
	switch f {
	case "", JSONPrettySorted, JSONCompactSorted, JSONCompactUnsorted:
		return true
	}
	return false
}

// ContextOptions controls how structured context is embedded into a prompt.
type ContextOptions struct {
	Heading string     `json:"heading,omitempty" yaml:"heading"`
	Format  JSONFormat `json:"format,omitempty" yaml:"format"`
}

// HeadingOrDefault returns the trimmed heading, or DefaultHeading if it trims to empty.
func (o ContextOptions) HeadingOrDefault() string {
	if h := strings.TrimSpace(o.Heading); h != "" {
		return h
	}
	return DefaultHeading
}

var prettySorted = &pretty.Options{Width: 80, Indent: "  ", SortKeys: true}

// EncodeJSON serializes v according to format. Forward slashes and HTML
// characters are never escaped. Invalid UTF-8 in strings is replaced with
// U+FFFD by the encoder, so the output is always valid UTF-8.
func EncodeJSON(v any, format JSONFormat) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	raw := bytes.TrimRight(buf.Bytes(), "\n")

	var out []byte
	switch format {
	case "", JSONPrettySorted:
		out = bytes.TrimRight(pretty.PrettyOptions(raw, prettySorted), "\n")
	case JSONCompactSorted:
		out = pretty.Ugly(pretty.PrettyOptions(raw, &pretty.Options{SortKeys: true}))
	case JSONCompactUnsorted:
		out = raw
	default:
		return "", fmt.Errorf("unknown JSON format %q", format)
	}
	return string(out), nil
}

// Embed appends data as a headed JSON block to base:
//
//	<base>
//
//	<heading>:
//	<json>
//
// Serialization failures are reported as *core.ContextEncodingError.
func Embed(base string, data any, opts ContextOptions) (string, error) {
	text, err := EncodeJSON(data, opts.Format)
	if err != nil {
		return "", &core.ContextEncodingError{Cause: err}
	}
	return base + "\n\n" + opts.HeadingOrDefault() + ":\n" + text, nil
}

// WithSchema appends a JSON schema describing the expected output to base.
func WithSchema(base string, schema map[string]any) (string, error) {
	return Embed(base, schema, ContextOptions{Heading: SchemaHeading, Format: JSONPrettySorted})
}

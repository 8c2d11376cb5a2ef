// Package postprocess implements the deterministic text normalization
// pipeline applied to finished generations and to every streaming snapshot.
//
// The pipeline is an ordered list of pure string -> string steps:
//
//  1. round decimal numbers (gated by Spec.RoundDecimals)
//  2. collapse runs of spaces / tabs (gated by Spec.CollapseWhitespace)
//  3. cap consecutive newlines (gated by Spec.MaxNewlines)
//  4. trim leading / trailing whitespace (gated by Spec.Trim)
//
// Rounding runs before whitespace collapsing because replacing a numeral can
// leave new adjacent blanks behind, and trimming always runs last. A zero
// Spec is recognized up front and returns the input untouched.
package postprocess

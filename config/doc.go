// Package config loads promptline configuration from YAML files.
//
// A file carries the engine configuration (instructions, generation
// options, context embedding and post-processing), the runtime adapter to
// build and the logger settings. Unknown keys and out-of-range values are
// rejected at load time.
package config

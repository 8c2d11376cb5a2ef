// Package testutil contains helpers used across tests: a scripted model
// whose turns are built with a fluent builder, and snapshot feeds for
// exercising stream transformation without a session. They are not
// intended for production usage.
package testutil

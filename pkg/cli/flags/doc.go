// Package flags provides flag handling utilities for CLI commands, such as
// detecting the persistent --timing flag.
package flags

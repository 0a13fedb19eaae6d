// Package tools provides the external command execution primitives used by
// the generator launcher.
//
// Ownership boundary:
// - command execution with an explicit working directory
//
// - exit status and output capture
//
// - shell-escaped command rendering for logs and dry runs
package tools

// Package generators launches the external code generators of a pre-build.
//
// Ownership boundary:
// - generator step definitions and their order
//
// - sequential invocation with explicit per-step working directories
//
// - preflight, failure policy, change detection and run reports
package generators

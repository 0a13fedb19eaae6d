// Package layout derives generator paths from a project working directory.
//
// Ownership boundary:
// - working/parent directory and project name derivation
//
// - fixed generator offsets and their defaults
//
// - platform-neutral path joining (native, posix, windows flavors)
package layout

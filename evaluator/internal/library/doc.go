// Package library loads reference profiles and stock lots from a YAML file.
//
// A Library is immutable once loaded and implements assess.ProfileLookup, so
// one instance can be shared by every evaluation of a batch. Hot reload
// builds a new Library and swaps it in; it never mutates a live one.
package library

// Package textutil provides text helpers for building filesystem-safe path
// segments from record names.
//
// Names coming from the tracking service are free text. SanitizeSegment folds
// them to ASCII (NFKD decomposition, non-ASCII runes dropped), substitutes any
// character outside [A-Za-z0-9_.-] and trims surrounding whitespace so the
// result can be used as a single directory name.
package textutil

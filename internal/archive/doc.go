// Package archive stores graded result sets as individual JSON documents in
// a flat directory. Each document is keyed by its creation time and a slug of
// its title, written atomically and never modified afterwards.
//
// Listing is lenient: malformed files are skipped and counted so one broken
// document never hides the rest of the archive.
package archive

// Package query answers questions about the result archive: filtered and
// sorted listings, subject and school-year facets, and a student's history
// across every stored result set.
//
// Everything here is derived from an archive listing and never written back.
package query

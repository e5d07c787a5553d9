// Package operations runs scoring jobs end to end.
//
// A Runner reads one input workbook, skips META sheets (using them only to
// fill subject, class and school), normalizes and grades every other sheet,
// writes the result workbook and archives the first scored sheet.
//
// RunBatch processes files sequentially with the same settings. A failure
// affects only its own file, cancellation is checked between files, and a
// ProgressFunc receives a report after each file.
package operations

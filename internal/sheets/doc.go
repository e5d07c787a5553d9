// Package sheets reads score spreadsheets and turns their sheets into
// canonical tables.
//
// Readers cover .xlsx/.xlsm (excelize), legacy .xls (extrame/xls), .ods
// (OpenDocument content.xml) and .csv. Normalize detects a header row,
// maps the Polish column aliases onto the canonical names and falls back to
// positional columns when the header cannot be trusted. ResolveColumns is the
// single place where column roles are inferred from header text; the grading
// engine, the archive index and student history all go through it.
package sheets

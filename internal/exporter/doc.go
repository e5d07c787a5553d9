// Package exporter writes grading results out of the application.
//
// WorkbookExporter produces the "<stem>_przetworzone.xlsx" result workbook:
// every scored sheet followed by its "Podsumowanie – <sheet>" summary, and a
// closing "Zbiorcze podsumowanie" sheet with global statistics. Only values
// and number formats are written.
//
// CSVWriter is the CSV writer with optional UTF-8 BOM used to export student
// history for spreadsheet programs.
package exporter

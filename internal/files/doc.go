// Package files finds input spreadsheets for scoring runs.
//
// Discovery accepts the supported spreadsheet formats and skips office lock
// files ("~$klasa.xlsx", ".~lock.klasa.ods#") as well as result workbooks
// written by earlier runs.
//
//	d := files.NewDiscovery(logger)
//	inputs, err := d.ExpandInputs([]string{"wyniki/", "3a.xlsx"})
package files

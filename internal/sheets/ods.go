package sheets

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	apperrors "gradecli/internal/errors"
)

// odsMaxRepeat caps how many times a repeated row or cell is expanded.
// Spreadsheet programs pad sheets with huge empty repeats.
const odsMaxRepeat = 1024

// readODS reads an OpenDocument spreadsheet by streaming content.xml.
func readODS(path string) ([]RawSheet, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, apperrors.NewFormatError("failed to open ods archive", err).WithContext("path", path)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "content.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, apperrors.NewFormatError("failed to open ods content", err).WithContext("path", path)
		}
		defer rc.Close()

		sheets, err := parseODSContent(rc)
		if err != nil {
			return nil, apperrors.NewParsingError("failed to parse ods content", err).WithContext("path", path)
		}
		return sheets, nil
	}
	return nil, apperrors.NewFormatError("ods archive has no content.xml", nil).WithContext("path", path)
}

type odsParser struct {
	sheets []RawSheet
	cur    *RawSheet

	row        []string
	rowRepeat  int
	emptyCells int
	emptyRows  int

	inCell     bool
	cellRepeat int
	cellValue  string
	cellText   strings.Builder
	paragraphs int
}

func parseODSContent(r io.Reader) ([]RawSheet, error) {
	p := &odsParser{}
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			p.start(t)
		case xml.EndElement:
			p.end(t)
		case xml.CharData:
			if p.inCell {
				p.cellText.Write(t)
			}
		}
	}
	return p.sheets, nil
}

func (p *odsParser) start(t xml.StartElement) {
	switch t.Name.Local {
	case "table":
		p.sheets = append(p.sheets, RawSheet{Name: attr(t, "name")})
		p.cur = &p.sheets[len(p.sheets)-1]
		p.emptyRows = 0
	case "table-row":
		p.row = nil
		p.emptyCells = 0
		p.rowRepeat = repeat(attr(t, "number-rows-repeated"))
	case "table-cell", "covered-table-cell":
		p.inCell = true
		p.cellRepeat = repeat(attr(t, "number-columns-repeated"))
		p.cellText.Reset()
		p.paragraphs = 0
		p.cellValue = ""
		switch attr(t, "value-type") {
		case "float", "percentage", "currency":
			p.cellValue = attr(t, "value")
		case "boolean":
			p.cellValue = attr(t, "boolean-value")
		case "date":
			p.cellValue = attr(t, "date-value")
		}
	case "p":
		if p.inCell {
			if p.paragraphs > 0 {
				p.cellText.WriteByte('\n')
			}
			p.paragraphs++
		}
	case "s":
		if p.inCell {
			p.cellText.WriteString(strings.Repeat(" ", repeat(attr(t, "c"))))
		}
	}
}

func (p *odsParser) end(t xml.EndElement) {
	switch t.Name.Local {
	case "table-cell", "covered-table-cell":
		if !p.inCell {
			return
		}
		p.inCell = false
		v := p.cellValue
		if v == "" {
			v = p.cellText.String()
		}
		v = strings.TrimSpace(v)
		if v == "" {
			p.emptyCells += p.cellRepeat
			return
		}
		for ; p.emptyCells > 0; p.emptyCells-- {
			p.row = append(p.row, "")
		}
		for i := 0; i < p.cellRepeat; i++ {
			p.row = append(p.row, v)
		}
	case "table-row":
		if p.cur == nil {
			return
		}
		if len(p.row) == 0 {
			p.emptyRows += p.rowRepeat
			return
		}
		for ; p.emptyRows > 0; p.emptyRows-- {
			p.cur.Rows = append(p.cur.Rows, nil)
		}
		for i := 0; i < p.rowRepeat; i++ {
			p.cur.Rows = append(p.cur.Rows, append([]string(nil), p.row...))
		}
	case "table":
		p.cur = nil
	}
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func repeat(s string) int {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	if n > odsMaxRepeat {
		return odsMaxRepeat
	}
	return n
}

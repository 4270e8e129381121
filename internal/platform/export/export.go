// Package export renders extract results as downloadable archives.
//
// Two formats are supported: a zip of per-record-type CSV files plus a
// query.txt describing the search, and a single XLSX workbook with one
// sheet per record type. Both are built fully in memory; result sets
// are bounded by the episode table so streaming is not needed.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Table is one file (zip) or sheet (workbook) of extracted rows.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// descriptionName is the archive member holding the human-readable query.
const descriptionName = "query.txt"

// Filename builds the download name for an archive, e.g.
// "caretrackextract2026-08-25T140305.zip".
func Filename(brand, ext string, at time.Time) string {
	return fmt.Sprintf("%sextract%s.%s", brand, at.Format("2006-01-02T150405"), ext)
}

// ZipArchive writes each table as <name>.csv inside a zip, along with a
// query.txt holding the search description.
func ZipArchive(tables []Table, description string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create(descriptionName)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", descriptionName, err)
	}
	if _, err := w.Write([]byte(description)); err != nil {
		return nil, fmt.Errorf("write %s: %w", descriptionName, err)
	}

	for _, t := range tables {
		w, err := zw.Create(t.Name + ".csv")
		if err != nil {
			return nil, fmt.Errorf("create %s.csv: %w", t.Name, err)
		}
		if err := writeCSV(w, t); err != nil {
			return nil, fmt.Errorf("write %s.csv: %w", t.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Workbook writes the tables as an XLSX file with one sheet per table
// and a final Query sheet holding the search description.
func Workbook(tables []Table, description string) ([]byte, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, t := range tables {
		name := sheetName(t.Name)
		index, err := f.NewSheet(name)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}

		for col, header := range t.Headers {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("header cell: %w", err)
			}
			if err := f.SetCellValue(name, cell, header); err != nil {
				f.Close()
				return nil, fmt.Errorf("set header %s: %w", cell, err)
			}
			if err := f.SetCellStyle(name, cell, cell, headerStyle); err != nil {
				f.Close()
				return nil, fmt.Errorf("style header %s: %w", cell, err)
			}
		}

		for r, row := range t.Rows {
			for col, value := range row {
				cell, err := excelize.CoordinatesToCellName(col+1, r+2)
				if err != nil {
					f.Close()
					return nil, fmt.Errorf("data cell: %w", err)
				}
				if err := f.SetCellValue(name, cell, value); err != nil {
					f.Close()
					return nil, fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
		}
	}

	if _, err := f.NewSheet("Query"); err != nil {
		f.Close()
		return nil, fmt.Errorf("create query sheet: %w", err)
	}
	if err := f.SetCellValue("Query", "A1", description); err != nil {
		f.Close()
		return nil, fmt.Errorf("write query sheet: %w", err)
	}

	f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName fits a table name into the 31 character sheet name limit.
func sheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, name)
	if len(cleaned) > 31 {
		return cleaned[:31]
	}
	return cleaned
}

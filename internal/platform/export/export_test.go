package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"io"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func sampleTables() []Table {
	return []Table{
		{
			Name:    "episodes",
			Headers: []string{"patient", "category", "admitted"},
			Rows: [][]string{
				{"100001", "inpatient", "21/08/2026"},
				{"100002", "inpatient", "22/08/2026"},
			},
		},
		{
			Name:    "diagnosis",
			Headers: []string{"patient", "condition"},
			Rows: [][]string{
				{"100001", "Pneumonia"},
			},
		},
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2026, 8, 25, 14, 3, 5, 0, time.UTC)
	got := Filename("caretrack", "zip", at)
	want := "caretrackextract2026-08-25T140305.zip"
	if got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}
}

func TestZipArchive(t *testing.T) {
	data, err := ZipArchive(sampleTables(), "searching for pneumonia")
	if err != nil {
		t.Fatalf("ZipArchive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}

	want := map[string]bool{"query.txt": false, "episodes.csv": false, "diagnosis.csv": false}
	for _, f := range zr.File {
		if _, ok := want[f.Name]; !ok {
			t.Errorf("unexpected archive member %q", f.Name)
			continue
		}
		want[f.Name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("archive missing %q", name)
		}
	}

	rc, err := zr.Open("episodes.csv")
	if err != nil {
		t.Fatalf("open episodes.csv: %v", err)
	}
	defer rc.Close()
	records, err := csv.NewReader(rc).ReadAll()
	if err != nil {
		t.Fatalf("read episodes.csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("episodes.csv rows = %d, want 3", len(records))
	}
	if records[0][1] != "category" {
		t.Errorf("header[1] = %q, want category", records[0][1])
	}
	if records[2][0] != "100002" {
		t.Errorf("row2 patient = %q, want 100002", records[2][0])
	}

	dc, err := zr.Open("query.txt")
	if err != nil {
		t.Fatalf("open query.txt: %v", err)
	}
	defer dc.Close()
	desc, err := io.ReadAll(dc)
	if err != nil {
		t.Fatalf("read query.txt: %v", err)
	}
	if string(desc) != "searching for pneumonia" {
		t.Errorf("description = %q", desc)
	}
}

func TestWorkbook(t *testing.T) {
	data, err := Workbook(sampleTables(), "searching for pneumonia")
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 3 {
		t.Fatalf("sheets = %v, want episodes, diagnosis, Query", sheets)
	}

	got, err := f.GetCellValue("episodes", "B1")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if got != "category" {
		t.Errorf("episodes!B1 = %q, want category", got)
	}

	got, err = f.GetCellValue("diagnosis", "B2")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if got != "Pneumonia" {
		t.Errorf("diagnosis!B2 = %q, want Pneumonia", got)
	}

	got, err = f.GetCellValue("Query", "A1")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if got != "searching for pneumonia" {
		t.Errorf("Query!A1 = %q", got)
	}
}

func TestSheetName_Sanitizes(t *testing.T) {
	got := sheetName("past/medical:history with a very long name indeed")
	if len(got) > 31 {
		t.Errorf("sheet name too long: %q", got)
	}
	for _, r := range got {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			t.Errorf("sheet name contains %q", r)
		}
	}
}

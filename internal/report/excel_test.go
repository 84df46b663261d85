// internal/report/excel_test.go
package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/campusit/mfpusage/internal/store"
)

func TestWriteJobsXLSX(t *testing.T) {
	records := []store.JobLogRecord{
		{PrinterAddr: "http://10.0.1.20", JobID: "1", User: "王小明", Login: "wang01",
			Start: time.Date(2026, 2, 5, 10, 0, 0, 0, time.Local), BW: 3, Pages: 3},
	}

	var buf bytes.Buffer
	if err := WriteJobsXLSX(&buf, records); err != nil {
		t.Fatalf("WriteJobsXLSX() = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Jobs")
	if err != nil {
		t.Fatalf("GetRows() = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[0][1] != "工作ID" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "1" || rows[1][3] != "王小明" {
		t.Errorf("data row = %v", rows[1])
	}
}

func TestWriteLeadersXLSXHasSummaryRow(t *testing.T) {
	rep := Build("", []store.JobLogRecord{
		{User: "a", Login: "a1", BW: 2, Pages: 2},
		{User: "b", Login: "b1", Color: 1, Pages: 1},
	})

	var buf bytes.Buffer
	if err := WriteLeadersXLSX(&buf, rep); err != nil {
		t.Fatalf("WriteLeadersXLSX() = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Leaders")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 2 users + summary", len(rows))
	}
	last := rows[len(rows)-1]
	if last[1] != "合計" || last[6] != "3" {
		t.Errorf("summary row = %v", last)
	}
}

// internal/report/excel.go
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/campusit/mfpusage/internal/store"
)

const excelTimeLayout = "2006-01-02 15:04:05"

// WriteJobsXLSX streams a job-log workbook, one row per job.
func WriteJobsXLSX(w io.Writer, records []store.JobLogRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Jobs"
	f.SetSheetName(f.GetSheetName(0), sheet)

	header := []interface{}{
		"印表機", "工作ID", "工作模式", "用戶名稱", "登入名稱", "電腦名稱",
		"開始日期", "完成日期", "黑白", "全彩", "總張數", "檔案名稱", "傳送類型", "直接位址",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		row := []interface{}{
			rec.PrinterAddr, rec.JobID, rec.Mode, rec.User, rec.Login, rec.Computer,
			fmtExcelTime(rec.Start), fmtExcelTime(rec.End),
			rec.BW, rec.Color, rec.Pages, rec.FileName, rec.ScanType, rec.Destination,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := boldHeader(f, sheet, len(header)); err != nil {
		return err
	}
	return f.Write(w)
}

// WriteCountsXLSX streams the latest per-user counter snapshot.
func WriteCountsXLSX(w io.Writer, records []store.UserCountRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Counts"
	f.SetSheetName(f.GetSheetName(0), sheet)

	header := []interface{}{
		"印表機", "用戶名稱", "印表機:黑白", "印表機:全彩", "影印:黑白", "影印:全彩", "其他", "總張數", "統計時間",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		row := []interface{}{
			rec.PrinterAddr, rec.User,
			rec.PrintBW, rec.PrintColor, rec.CopyBW, rec.CopyColor,
			rec.Other, rec.Total, fmtExcelTime(rec.SnapshotAt),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := boldHeader(f, sheet, len(header)); err != nil {
		return err
	}
	return f.Write(w)
}

// WriteLeadersXLSX streams the per-user ranking of a report.
func WriteLeadersXLSX(w io.Writer, rep *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Leaders"
	f.SetSheetName(f.GetSheetName(0), sheet)

	header := []interface{}{"名次", "用戶名稱", "登入名稱", "工作數", "黑白", "全彩", "總張數"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, u := range rep.TopUsers {
		row := []interface{}{i + 1, u.User, u.Login, u.Jobs, u.BW, u.Color, u.Pages}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	summary := []interface{}{
		"", "合計", "", rep.Totals.Jobs, rep.Totals.BW, rep.Totals.Color, rep.Totals.Pages,
	}
	cell, _ := excelize.CoordinatesToCellName(1, len(rep.TopUsers)+2)
	if err := f.SetSheetRow(sheet, cell, &summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if err := boldHeader(f, sheet, len(header)); err != nil {
		return err
	}
	return f.Write(w)
}

func boldHeader(f *excelize.File, sheet string, cols int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(cols, 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func fmtExcelTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(excelTimeLayout)
}

package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	models "kalkulludo/internal/models"
	util "kalkulludo/internal/util"
)

const resultSheet = "Results"

var exportHeaders = []string{
	"Name", "Grade", "Class", "Level", "Cells",
	"Score", "Mistakes", "Time (s)", "Time", "Played At",
}

// ExportResults builds a workbook with one row per result, joined with the
// player's profile. The caller owns closing the file.
func ExportResults(rows []models.ResultRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", resultSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(resultSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for rowIdx, r := range rows {
		values := []any{
			r.Name,
			r.Grade,
			r.ClassName,
			r.Level,
			r.CellCount,
			r.Score,
			r.Mistakes,
			r.TimeSeconds,
			util.FormatDrillTime(r.TimeSeconds),
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(resultSheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", rowIdx+2, err)
			}
		}
	}

	return f, nil
}

// WriteResults streams the workbook to w.
func WriteResults(w io.Writer, rows []models.ResultRow) error {
	f, err := ExportResults(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

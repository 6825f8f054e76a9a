package listscrape

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	// ArticlesSheet holds one row per record, in CSVHeader column order.
	ArticlesSheet = "Articles"
	// FailuresSheet lists skipped articles.
	FailuresSheet = "Failures"

	// maxCellChars is the spreadsheet limit on characters per cell.
	maxCellChars = 32767
)

// WriteXLSX writes result as a workbook with an Articles sheet and a
// Failures sheet. Cell text longer than the spreadsheet limit is cut.
func WriteXLSX(w io.Writer, result *RunResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ArticlesSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := setRow(f, ArticlesSheet, 1, CSVHeader); err != nil {
		return err
	}
	for i, record := range result.Records {
		if err := setRow(f, ArticlesSheet, i+2, record.Row()); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(FailuresSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := setRow(f, FailuresSheet, 1, []string{"url", "error"}); err != nil {
		return err
	}
	for i, failure := range result.Failures {
		if err := setRow(f, FailuresSheet, i+2, []string{failure.URL, failure.Error}); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

// XLSXFilename mirrors CSVFilename.
func XLSXFilename(result *RunResult) string {
	return fmt.Sprintf("articles_%s.xlsx", result.FinishedAt.Format("20060102_150405"))
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", row, err)
	}

	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = truncateCell(v)
	}

	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func truncateCell(s string) string {
	if utf8.RuneCountInString(s) <= maxCellChars {
		return s
	}
	return string([]rune(s)[:maxCellChars])
}

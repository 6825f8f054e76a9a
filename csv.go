package listscrape

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVHeader is the fixed column order of exported rows.
var CSVHeader = []string{
	"title",
	"url",
	"date",
	"categories",
	"meta_description",
	"featured_image",
	"content",
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []ArticleRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, record := range records {
		if err := cw.Write(record.Row()); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", record.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	return nil
}

// CSVFilename names a CSV download after the moment the run finished.
func CSVFilename(result *RunResult) string {
	return fmt.Sprintf("articles_%s.csv", result.FinishedAt.Format("20060102_150405"))
}

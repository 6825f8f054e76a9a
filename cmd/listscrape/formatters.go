package main

import (
	"fmt"
	"io"

	"github.com/pevans/listscrape"
)

// printRecordsTable prints records in human-readable form
func printRecordsTable(w io.Writer, result *listscrape.RunResult) {
	if len(result.Records) == 0 {
		fmt.Fprintln(w, "No articles found.")
	} else {
		fmt.Fprintf(w, "Scraped %d of %d articles from %s\n\n", result.Total(), result.LinksFound, result.ListingURL)
	}

	for _, record := range result.Records {
		title := record.Title
		if title == "" {
			title = "(untitled)"
		}
		if len(title) > 70 {
			title = title[:67] + "..."
		}

		summary := record.MetaDescription
		if len(summary) > 150 {
			summary = summary[:147] + "..."
		}

		date := record.Date
		if date == "" {
			date = "unknown"
		}

		fmt.Fprintf(w, "%s\n", title)
		fmt.Fprintf(w, "   Date: %s", date)
		if len(record.Categories) > 0 {
			fmt.Fprintf(w, " | Categories: %s", record.CategoriesString())
		}
		fmt.Fprintln(w)
		if summary != "" {
			fmt.Fprintf(w, "   %s\n", summary)
		}
		fmt.Fprintf(w, "   URL: %s\n", record.URL)
		fmt.Fprintln(w)
	}

	if len(result.Failures) > 0 {
		fmt.Fprintf(w, "Skipped %d articles:\n", len(result.Failures))
		for _, failure := range result.Failures {
			fmt.Fprintf(w, "   %s: %s\n", failure.URL, failure.Error)
		}
	}
}

package listscrape

import (
	"encoding/json"
	"strings"
	"time"
)

// CategorySeparator joins an article's categories into one field.
const CategorySeparator = ", "

// ArticleRecord holds the fields extracted from one article page. URL is
// always set; every other field is best-effort and may be empty.
type ArticleRecord struct {
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	Date            string   `json:"date"`
	Categories      []string `json:"-"`
	MetaDescription string   `json:"meta_description"`
	FeaturedImage   string   `json:"featured_image"`
	Content         string   `json:"content"`
}

// CategoriesString returns the categories joined with CategorySeparator,
// or "" when there are none.
func (r ArticleRecord) CategoriesString() string {
	return strings.Join(r.Categories, CategorySeparator)
}

// Row returns the record's values in CSVHeader order.
func (r ArticleRecord) Row() []string {
	return []string{
		r.Title,
		r.URL,
		r.Date,
		r.CategoriesString(),
		r.MetaDescription,
		r.FeaturedImage,
		r.Content,
	}
}

// MarshalJSON renders categories as the joined string, matching the CSV
// column.
func (r ArticleRecord) MarshalJSON() ([]byte, error) {
	type plain ArticleRecord
	return json.Marshal(struct {
		plain
		Categories string `json:"categories"`
	}{
		plain:      plain(r),
		Categories: r.CategoriesString(),
	})
}

// UnmarshalJSON accepts the joined categories string produced by
// MarshalJSON.
func (r *ArticleRecord) UnmarshalJSON(data []byte) error {
	type plain ArticleRecord
	aux := struct {
		*plain
		Categories string `json:"categories"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Categories = nil
	if aux.Categories != "" {
		r.Categories = strings.Split(aux.Categories, CategorySeparator)
	}
	return nil
}

// ArticleFailure records an article that was skipped during a run.
type ArticleFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// RunResult is the outcome of one pipeline run. Records keep the order in
// which links were discovered on the listing page.
type RunResult struct {
	ListingURL string           `json:"listing_url"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	LinksFound int              `json:"links_found"`
	Records    []ArticleRecord  `json:"records"`
	Failures   []ArticleFailure `json:"failures"`
}

// Total returns the number of extracted records.
func (r *RunResult) Total() int {
	return len(r.Records)
}

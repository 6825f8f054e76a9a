package listscrape

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: records with awkward content
func sampleRecords() []ArticleRecord {
	return []ArticleRecord{
		{
			Title:           "Plain",
			URL:             "https://example.com/blog/plain",
			Date:            "2024-01-01",
			Categories:      []string{"Email", "Sales"},
			MetaDescription: "desc",
			FeaturedImage:   "https://example.com/img/a.png",
			Content:         "simple body",
		},
		{
			Title:   `Quotes "inside", commas`,
			URL:     "https://example.com/blog/quotes",
			Content: "line one\nline two, with \"quotes\" and, commas",
		},
		{
			URL: "https://example.com/blog/empty",
		},
	}
}

// TestWriteCSV_RoundTrip verifies header + M rows that re-parse
// field-for-field
func TestWriteCSV_RoundTrip(t *testing.T) {
	records := sampleRecords()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(records)+1)

	assert.Equal(t, CSVHeader, rows[0])
	for i, record := range records {
		assert.Equal(t, record.Row(), rows[i+1], "row %d should match", i)
	}
	assert.Equal(t, "Email, Sales", rows[1][3])
}

// TestWriteCSV_Empty verifies an empty result still has a header
func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	assert.Equal(t, "title,url,date,categories,meta_description,featured_image,content\n", buf.String())
}

// TestWriteCSV_UTF8 verifies non-ASCII text is written unchanged
func TestWriteCSV_UTF8(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []ArticleRecord{{URL: "https://example.com/blog/ü", Title: "Grüße – 你好"}}))

	assert.True(t, strings.Contains(buf.String(), "Grüße – 你好"))
}

// TestCSVFilename verifies the download name format
func TestCSVFilename(t *testing.T) {
	result := &RunResult{FinishedAt: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)}
	assert.Equal(t, "articles_20240506_070809.csv", CSVFilename(result))
}

// TestArticleRecord_JSON verifies categories travel as the joined string
func TestArticleRecord_JSON(t *testing.T) {
	record := sampleRecords()[0]

	data, err := json.Marshal(record)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Email, Sales", raw["categories"])
	assert.Equal(t, "Plain", raw["title"])
	assert.Len(t, raw, 7, "exactly the seven exported fields")

	var decoded ArticleRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, record, decoded)
}

// TestArticleRecord_JSONNoCategories verifies empty categories decode to nil
func TestArticleRecord_JSONNoCategories(t *testing.T) {
	data, err := json.Marshal(ArticleRecord{URL: "https://example.com/blog/x"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"categories":""`)

	var decoded ArticleRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Categories)
}

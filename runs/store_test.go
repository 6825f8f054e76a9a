package runs

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/listscrape"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// Test helper: create a store driven by a fake clock
func setupTestStore(t *testing.T, ttl time.Duration, maxRuns int) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(ttl, maxRuns)
	store.now = clock.now
	return store, clock
}

func sampleResult(listingURL string, records int) *listscrape.RunResult {
	result := &listscrape.RunResult{
		ListingURL: listingURL,
		FinishedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Records:    []listscrape.ArticleRecord{},
		Failures:   []listscrape.ArticleFailure{{URL: listingURL + "/blog/bad", Error: "boom"}},
	}
	for range records {
		result.Records = append(result.Records, listscrape.ArticleRecord{URL: listingURL + "/blog/x"})
	}
	return result
}

// TestNewStore_Defaults verifies non-positive arguments select defaults
func TestNewStore_Defaults(t *testing.T) {
	store := NewStore(0, -1)
	assert.Equal(t, DefaultTTL, store.ttl)
	assert.Equal(t, DefaultMaxRuns, store.maxRuns)
}

// TestStore_AddGet verifies a stored run can be read back
func TestStore_AddGet(t *testing.T) {
	store, _ := setupTestStore(t, time.Hour, 5)
	result := sampleResult("https://example.com/blog/", 2)

	id := store.Add(result)
	run := store.Get(id)

	require.NotNil(t, run)
	assert.Equal(t, id, run.ID)
	assert.Same(t, result, run.Result)
	assert.Nil(t, store.Get(uuid.New()), "unknown ID should return nil")
}

// TestStore_TTL verifies runs expire
func TestStore_TTL(t *testing.T) {
	store, clock := setupTestStore(t, time.Hour, 5)
	id := store.Add(sampleResult("https://a.example", 1))

	clock.advance(59 * time.Minute)
	assert.NotNil(t, store.Get(id))

	clock.advance(time.Minute)
	assert.Nil(t, store.Get(id))
	assert.Zero(t, store.Len())
}

// TestStore_MaxRunsEvictsOldest verifies size-bound eviction
func TestStore_MaxRunsEvictsOldest(t *testing.T) {
	store, clock := setupTestStore(t, time.Hour, 2)

	first := store.Add(sampleResult("https://a.example", 1))
	clock.advance(time.Second)
	second := store.Add(sampleResult("https://b.example", 1))
	clock.advance(time.Second)
	third := store.Add(sampleResult("https://c.example", 1))

	assert.Equal(t, 2, store.Len())
	assert.Nil(t, store.Get(first))
	assert.NotNil(t, store.Get(second))
	assert.NotNil(t, store.Get(third))
}

// TestStore_Latest verifies the newest run is returned
func TestStore_Latest(t *testing.T) {
	store, clock := setupTestStore(t, time.Hour, 5)
	assert.Nil(t, store.Latest())

	store.Add(sampleResult("https://a.example", 1))
	clock.advance(time.Second)
	newest := store.Add(sampleResult("https://b.example", 1))

	latest := store.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, newest, latest.ID)
}

// TestStore_List verifies summaries newest first
func TestStore_List(t *testing.T) {
	store, clock := setupTestStore(t, time.Hour, 5)
	assert.NotNil(t, store.List())
	assert.Empty(t, store.List())

	store.Add(sampleResult("https://a.example", 3))
	clock.advance(time.Second)
	store.Add(sampleResult("https://b.example", 1))

	summaries := store.List()
	require.Len(t, summaries, 2)
	assert.Equal(t, "https://b.example", summaries[0].ListingURL)
	assert.Equal(t, "https://a.example", summaries[1].ListingURL)
	assert.Equal(t, 3, summaries[1].Total)
	assert.Equal(t, 1, summaries[1].Failures)
}

// TestStore_Delete verifies removal
func TestStore_Delete(t *testing.T) {
	store, _ := setupTestStore(t, time.Hour, 5)
	id := store.Add(sampleResult("https://a.example", 1))

	assert.True(t, store.Delete(id))
	assert.False(t, store.Delete(id), "second delete should report missing")
	assert.Nil(t, store.Get(id))
}

// TestStore_ConcurrentAccess verifies the store is safe under the race
// detector
func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore(time.Hour, 10)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := store.Add(sampleResult("https://a.example", 1))
			store.Get(id)
			store.List()
			store.Latest()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, store.Len())
}

// Package runs keeps finished scrape runs in memory so their results can
// be fetched and downloaded after the request that produced them.
package runs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pevans/listscrape"
)

const (
	DefaultTTL     = 1 * time.Hour
	DefaultMaxRuns = 20
)

// Run is a stored RunResult.
type Run struct {
	ID       uuid.UUID             `json:"run_id"`
	StoredAt time.Time             `json:"stored_at"`
	Result   *listscrape.RunResult `json:"result"`
}

// Summary is the list view of a Run.
type Summary struct {
	ID         uuid.UUID `json:"run_id"`
	ListingURL string    `json:"listing_url"`
	Total      int       `json:"total"`
	Failures   int       `json:"failures"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store holds runs keyed by ID. Entries expire after ttl and at most
// maxRuns are kept; the oldest is evicted first. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	runs    map[uuid.UUID]*Run
	ttl     time.Duration
	maxRuns int
	now     func() time.Time
}

// NewStore creates a store. Non-positive arguments select the defaults.
func NewStore(ttl time.Duration, maxRuns int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}

	return &Store{
		runs:    make(map[uuid.UUID]*Run),
		ttl:     ttl,
		maxRuns: maxRuns,
		now:     time.Now,
	}
}

// Add stores result under a new ID.
func (s *Store) Add(result *listscrape.RunResult) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	run := &Run{
		ID:       uuid.New(),
		StoredAt: s.now(),
		Result:   result,
	}
	s.runs[run.ID] = run

	for len(s.runs) > s.maxRuns {
		delete(s.runs, s.oldestLocked().ID)
	}

	return run.ID
}

// Get returns the run with id, or nil if it is unknown or expired.
func (s *Store) Get(id uuid.UUID) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	return s.runs[id]
}

// Latest returns the most recently stored run, or nil when empty.
func (s *Store) Latest() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	var latest *Run
	for _, run := range s.runs {
		if latest == nil || run.StoredAt.After(latest.StoredAt) {
			latest = run
		}
	}
	return latest
}

// List returns summaries of live runs, newest first.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	live := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		live = append(live, run)
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].StoredAt.After(live[j].StoredAt)
	})

	summaries := make([]Summary, 0, len(live))
	for _, run := range live {
		summaries = append(summaries, Summary{
			ID:         run.ID,
			ListingURL: run.Result.ListingURL,
			Total:      run.Result.Total(),
			Failures:   len(run.Result.Failures),
			FinishedAt: run.Result.FinishedAt,
		})
	}
	return summaries
}

// Delete removes a run. It reports whether the run existed.
func (s *Store) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	if _, ok := s.runs[id]; !ok {
		return false
	}
	delete(s.runs, id)
	return true
}

// Len returns the number of live runs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	return len(s.runs)
}

func (s *Store) expireLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, run := range s.runs {
		if !run.StoredAt.After(cutoff) {
			delete(s.runs, id)
		}
	}
}

func (s *Store) oldestLocked() *Run {
	var oldest *Run
	for _, run := range s.runs {
		if oldest == nil || run.StoredAt.Before(oldest.StoredAt) {
			oldest = run
		}
	}
	return oldest
}

// Package orchestrator drives a discovery session across the fixed keyword
// list: the initial recent-history load for every keyword, then incremental
// backward expansion of the pool one keyword at a time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kochetovM/aimuzon/cache"
	"github.com/kochetovM/aimuzon/classify"
	"github.com/kochetovM/aimuzon/model"
	"github.com/kochetovM/aimuzon/search"
	"github.com/rs/zerolog/log"
)

const (
	// initialLoadMonths spans the first load for every keyword.
	initialLoadMonths = 6

	// pageSize is the batch size requested from the pipeline per fetch.
	pageSize = 30

	// maxEmptyWindows bounds how many consecutive empty month windows one
	// load-more invocation walks before giving up.
	maxEmptyWindows = 12

	// poolScope names the orchestrator's own seen-id scope. It is separate
	// from the pipeline's per-keyword scopes: the pool deduplicates across
	// keywords, the pipeline within one.
	poolScope = "pool"
)

// ErrBusy reports that another load is already running; the trigger had no
// effect and is not queued.
var ErrBusy = errors.New("load already in progress")

// Searcher is the slice of the fetch pipeline the orchestrator needs.
type Searcher interface {
	Search(ctx context.Context, text, pageToken string, opts search.Options) (*model.SearchResponse, error)
}

// KeywordError records one keyword whose fetch failed during a load.
type KeywordError struct {
	Keyword string `json:"keyword"`
	Err     string `json:"error"`
}

// Progress reports how far a load has come. Fraction is completed/total, so
// frontends can render a bar without knowing the keyword list.
type Progress struct {
	SessionID string         `json:"sessionId"`
	Completed int            `json:"completed"`
	Total     int            `json:"total"`
	Fraction  float64        `json:"fraction"`
	PoolSize  int            `json:"poolSize"`
	Errors    []KeywordError `json:"errors,omitempty"`
}

// Orchestrator owns one discovery session: the keyword list, the growing
// pool with its seen-id set, per-keyword months-back counters and the
// category shelves recomputed from the pool. All methods are safe for
// concurrent use.
type Orchestrator struct {
	searcher Searcher
	keywords []string

	mu         sync.RWMutex
	sessionID  string
	pool       []model.VideoItem
	monthsBack map[string]int
	cursor     int
	oldest     time.Time
	loaded     bool
	buckets    map[string][]model.VideoItem

	seen *cache.SeenSets

	// loadMu serializes loads; LoadMore only TryLocks it, so concurrent
	// triggers are dropped instead of queued.
	loadMu sync.Mutex

	now func() time.Time
}

// New creates a session over its own copy of the keyword list.
func New(searcher Searcher, keywords []string) *Orchestrator {
	kws := make([]string, len(keywords))
	copy(kws, keywords)

	return &Orchestrator{
		searcher:   searcher,
		keywords:   kws,
		sessionID:  uuid.NewString(),
		monthsBack: make(map[string]int),
		buckets:    classify.Buckets(nil),
		seen:       cache.NewSeenSets(),
		now:        time.Now,
	}
}

// SessionID identifies this session in logs and API payloads.
func (o *Orchestrator) SessionID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sessionID
}

// Loaded reports whether an initial load has completed.
func (o *Orchestrator) Loaded() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.loaded
}

// InitialLoad fetches the last six months for every keyword in order,
// reporting progress after each one. A failing keyword is recorded and
// skipped so a single bad keyword cannot sink the session. Calling it again
// is additive: the seen-id set guarantees repeats only contribute videos the
// pool has not absorbed yet.
func (o *Orchestrator) InitialLoad(ctx context.Context, onProgress func(Progress)) Progress {
	o.loadMu.Lock()
	defer o.loadMu.Unlock()

	now := o.now()
	after := now.AddDate(0, -initialLoadMonths, 0)
	total := len(o.keywords)

	log.Info().Int("keywords", total).Time("window_start", after).Msg("Starting initial pool load")

	var errs []KeywordError
	for i, kw := range o.keywords {
		resp, err := o.searcher.Search(ctx, kw, "", search.Options{
			Order:           model.OrderDate,
			MaxResults:      pageSize,
			PublishedAfter:  after,
			PublishedBefore: now,
		})
		if err != nil {
			log.Error().Err(err).Str("keyword", kw).Msg("Initial load failed for keyword")
			errs = append(errs, KeywordError{Keyword: kw, Err: err.Error()})
		} else {
			added := o.absorb(kw, resp.Items)
			log.Debug().Str("keyword", kw).Int("added", added).Msg("Keyword loaded")
		}

		if onProgress != nil {
			onProgress(o.snapshotProgress(i+1, total, errs))
		}
	}

	o.mu.Lock()
	o.oldest = o.computeOldestLocked(now)
	o.loaded = true
	o.mu.Unlock()

	final := o.snapshotProgress(total, total, errs)
	log.Info().
		Int("pool", final.PoolSize).
		Int("keywords", total).
		Int("failed", len(errs)).
		Msg("Initial pool load completed")
	return final
}

// LoadMore expands the pool backward in time for the next keyword in
// round-robin order. It walks month-wide windows older than everything
// already loaded until one contributes a new video, giving up after
// maxEmptyWindows consecutive misses. While a load is running, further
// triggers return ErrBusy without queuing.
func (o *Orchestrator) LoadMore(ctx context.Context) ([]model.VideoItem, error) {
	if !o.loadMu.TryLock() {
		log.Debug().Msg("Load-more trigger ignored, another load is running")
		return nil, ErrBusy
	}
	defer o.loadMu.Unlock()

	o.mu.Lock()
	if len(o.keywords) == 0 {
		o.mu.Unlock()
		return []model.VideoItem{}, nil
	}
	keyword := o.keywords[o.cursor%len(o.keywords)]
	o.cursor++
	anchor := o.oldest
	if anchor.IsZero() {
		anchor = o.now().AddDate(0, -initialLoadMonths, 0)
		o.oldest = anchor
	}
	months := o.monthsBack[keyword]
	if months < 1 {
		months = 1
	}
	o.mu.Unlock()

	for i := 0; i < maxEmptyWindows; i++ {
		win := WindowByMonths(anchor, months)
		resp, err := o.searcher.Search(ctx, keyword, "", search.Options{
			Order:           model.OrderDate,
			MaxResults:      pageSize,
			PublishedAfter:  win.After,
			PublishedBefore: win.Before,
		})
		if err != nil {
			// Remember how far we got; the next trigger for this keyword
			// resumes at the window that failed.
			o.setMonthsBack(keyword, months)
			return nil, fmt.Errorf("load more for %q: %w", keyword, err)
		}

		fresh := o.seen.FilterNew(poolScope, resp.Items)
		if len(fresh) == 0 {
			months++
			continue
		}

		o.mu.Lock()
		o.pool = append(o.pool, fresh...)
		o.monthsBack[keyword] = months + 1
		o.rebuildBucketsLocked()
		o.mu.Unlock()

		log.Info().
			Str("keyword", keyword).
			Int("added", len(fresh)).
			Int("months_back", months).
			Msg("Load-more added videos")
		return fresh, nil
	}

	o.setMonthsBack(keyword, months)
	log.Info().
		Str("keyword", keyword).
		Int("months_back", months).
		Msg("Load-more walked its empty-window budget without new videos")
	return []model.VideoItem{}, nil
}

// Pool returns a copy of the accumulated pool in absorption order.
func (o *Orchestrator) Pool() []model.VideoItem {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]model.VideoItem, len(o.pool))
	copy(out, o.pool)
	return out
}

// Buckets returns the category shelves computed at the last pool change.
// The snapshot is immutable; a later pool change swaps in a new map rather
// than touching this one.
func (o *Orchestrator) Buckets() map[string][]model.VideoItem {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.buckets
}

// absorb filters items through the pool's seen-id set, appends the survivors
// and refreshes the shelves. Returns how many items were new.
func (o *Orchestrator) absorb(keyword string, items []model.VideoItem) int {
	fresh := o.seen.FilterNew(poolScope, items)
	if len(fresh) == 0 {
		return 0
	}

	o.mu.Lock()
	o.pool = append(o.pool, fresh...)
	if o.monthsBack[keyword] == 0 {
		o.monthsBack[keyword] = 1
	}
	o.rebuildBucketsLocked()
	o.mu.Unlock()
	return len(fresh)
}

func (o *Orchestrator) setMonthsBack(keyword string, months int) {
	o.mu.Lock()
	o.monthsBack[keyword] = months
	o.mu.Unlock()
}

func (o *Orchestrator) rebuildBucketsLocked() {
	o.buckets = classify.Buckets(o.pool)
}

// computeOldestLocked finds the oldest published timestamp in the pool; an
// empty or undated pool anchors at the start of the initial-load window.
func (o *Orchestrator) computeOldestLocked(now time.Time) time.Time {
	var oldest time.Time
	for _, v := range o.pool {
		if v.PublishedAt.IsZero() {
			continue
		}
		if oldest.IsZero() || v.PublishedAt.Before(oldest) {
			oldest = v.PublishedAt
		}
	}
	if oldest.IsZero() {
		return now.AddDate(0, -initialLoadMonths, 0)
	}
	return oldest
}

func (o *Orchestrator) snapshotProgress(completed, total int, errs []KeywordError) Progress {
	o.mu.RLock()
	poolSize := len(o.pool)
	sessionID := o.sessionID
	o.mu.RUnlock()

	fraction := 0.0
	if total > 0 {
		fraction = float64(completed) / float64(total)
	}

	p := Progress{
		SessionID: sessionID,
		Completed: completed,
		Total:     total,
		Fraction:  fraction,
		PoolSize:  poolSize,
	}
	p.Errors = append(p.Errors, errs...)
	return p
}

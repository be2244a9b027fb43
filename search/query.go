// Package search implements the shared fetch pipeline: query normalization,
// the request cache with in-flight deduplication, safety filtering, ranking
// and per-keyword seen-id tracking. Both the HTTP surface and the
// command-line surface run through it.
package search

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kochetovM/aimuzon/client"
	"github.com/kochetovM/aimuzon/model"
)

// Mode selects which surface's semantics apply to normalization: the
// command-line surface validates strictly, the HTTP surface repairs what it
// can so a misconfigured frontend still gets results.
type Mode int

const (
	ModeDirect Mode = iota
	ModeProxy
)

func (m Mode) String() string {
	if m == ModeProxy {
		return "proxy"
	}
	return "direct"
}

// MaxResultsCap is the per-call page-size ceiling for the mode.
func (m Mode) MaxResultsCap() int64 {
	if m == ModeProxy {
		return 50
	}
	return 30
}

// defaultWindowMonths is the span applied when a query carries no date
// bounds at all.
const defaultWindowMonths = 1

// Options are the caller-tunable knobs of one search.
type Options struct {
	Order           string
	MaxResults      int64
	PublishedAfter  time.Time
	PublishedBefore time.Time
	VideoCategoryID string
	VideoDuration   string
	VideoSyndicated bool
}

// Query is a normalized, ready-to-fetch search.
type Query struct {
	Text      string
	PageToken string
	Mode      Mode
	Options   Options
}

// InvalidQueryError reports input rejected before any upstream call was made.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return "invalid query: " + e.Reason
}

// IsInvalidQuery reports whether err is a pre-upstream input rejection.
func IsInvalidQuery(err error) bool {
	var iqe *InvalidQueryError
	return errors.As(err, &iqe)
}

// Normalize validates text and options and fills defaults. Queries without a
// date window get the last defaultWindowMonths up to now; a window with only
// one bound has the other derived from it. Inverted windows are rejected in
// direct mode and repaired in proxy mode by clamping the end to now and, if
// the window is still inverted, pulling the start to one second before the
// end.
func Normalize(text, pageToken string, opts Options, mode Mode, now time.Time) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, &InvalidQueryError{Reason: "query text must not be empty"}
	}

	if opts.Order == "" {
		opts.Order = model.OrderRelevance
	}

	limit := mode.MaxResultsCap()
	if opts.MaxResults <= 0 || opts.MaxResults > limit {
		opts.MaxResults = limit
	}

	after, before := opts.PublishedAfter, opts.PublishedBefore
	switch {
	case after.IsZero() && before.IsZero():
		before = now
		after = now.AddDate(0, -defaultWindowMonths, 0)
	case before.IsZero():
		before = now
	case after.IsZero():
		after = before.AddDate(0, -defaultWindowMonths, 0)
	}

	if mode == ModeProxy {
		if before.After(now) {
			before = now
		}
		if !after.Before(before) {
			after = before.Add(-time.Second)
		}
	} else if !after.Before(before) {
		return Query{}, &InvalidQueryError{
			Reason: fmt.Sprintf("publishedAfter %s must be before publishedBefore %s",
				after.UTC().Format(time.RFC3339), before.UTC().Format(time.RFC3339)),
		}
	}

	opts.PublishedAfter = after.UTC().Truncate(time.Second)
	opts.PublishedBefore = before.UTC().Truncate(time.Second)

	return Query{Text: text, PageToken: pageToken, Mode: mode, Options: opts}, nil
}

// CacheKey returns the canonical identity of the query, used for both the
// response cache and in-flight deduplication. Field order is fixed, so two
// equal queries always produce the same key no matter how callers assembled
// them.
func (q Query) CacheKey() string {
	o := q.Options
	parts := []string{
		q.Mode.String(),
		q.Text,
		q.PageToken,
		o.Order,
		strconv.FormatInt(o.MaxResults, 10),
		o.PublishedAfter.UTC().Format(time.RFC3339),
		o.PublishedBefore.UTC().Format(time.RFC3339),
		o.VideoCategoryID,
		o.VideoDuration,
		strconv.FormatBool(o.VideoSyndicated),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("search:%x", sum[:16])
}

// Params converts the normalized query into upstream call parameters.
func (q Query) Params() client.SearchParams {
	o := q.Options
	return client.SearchParams{
		Query:           q.Text,
		PageToken:       q.PageToken,
		Order:           o.Order,
		MaxResults:      o.MaxResults,
		PublishedAfter:  o.PublishedAfter,
		PublishedBefore: o.PublishedBefore,
		VideoCategoryID: o.VideoCategoryID,
		VideoDuration:   o.VideoDuration,
		VideoSyndicated: o.VideoSyndicated,
	}
}

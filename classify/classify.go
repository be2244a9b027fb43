// Package classify assigns pool videos to the fixed category shelves shown by
// the frontend. Assignment is heuristic: upstream category ids are trusted
// when present, keyword matching covers the rest.
package classify

import (
	"sort"
	"strings"

	"github.com/kochetovM/aimuzon/model"
)

// Shelf names. These are display keys; renaming one breaks saved frontends.
const (
	BucketMusic         = "Music"
	BucketSports        = "Sports"
	BucketKids          = "Kids"
	BucketNews          = "News"
	BucketEntertainment = "Entertainment"
	BucketEducational   = "Educational"
	BucketTopViews      = "Top Most Views"
	BucketNewest        = "Top 10 of Newest"
)

// BucketNames lists every shelf in display order.
var BucketNames = []string{
	BucketMusic,
	BucketSports,
	BucketKids,
	BucketNews,
	BucketEntertainment,
	BucketEducational,
	BucketTopViews,
	BucketNewest,
}

// topicOrder lists the shelves filled by rule matching; the two ranked
// shelves are recomputed from the whole pool instead.
var topicOrder = []string{
	BucketMusic,
	BucketSports,
	BucketKids,
	BucketNews,
	BucketEntertainment,
	BucketEducational,
}

// newestShelfSize caps the newest shelf.
const newestShelfSize = 10

type rule struct {
	categoryID string
	keywords   []string
}

// topicRules maps each topical shelf to its upstream category id and keyword
// list. A video lands on a shelf when either signal matches; one video may
// land on several shelves.
var topicRules = map[string]rule{
	BucketMusic: {
		categoryID: "10",
		keywords:   []string{"music", "song", "soundtrack", "melody", "remix", "cover", "instrumental", "lyrics", "beat", "synth"},
	},
	BucketSports: {
		categoryID: "17",
		keywords:   []string{"sport", "football", "soccer", "basketball", "tennis", "workout", "fitness", "match", "race", "olympic"},
	},
	BucketKids: {
		keywords: []string{"kids", "children", "cartoon", "nursery", "rhyme", "lullaby", "toddler", "baby shark"},
	},
	BucketNews: {
		categoryID: "25",
		keywords:   []string{"news", "breaking", "headline", "report", "politics", "election"},
	},
	BucketEntertainment: {
		categoryID: "24",
		keywords:   []string{"entertainment", "funny", "comedy", "show", "trailer", "meme", "dance", "prank"},
	},
	BucketEducational: {
		categoryID: "27",
		keywords:   []string{"educat", "tutorial", "learn", "lesson", "course", "how to", "science", "history", "explain"},
	},
}

func matches(v model.VideoItem, r rule) bool {
	if r.categoryID != "" && v.CategoryID == r.categoryID {
		return true
	}
	haystack := strings.ToLower(v.Title + " " + v.Description + " " + strings.Join(v.Tags, " "))
	for _, kw := range r.keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// Buckets recomputes every shelf from the full pool. The result always
// carries all shelf keys, empty shelves included, and no shelf holds the
// same video twice. The pool slice is not modified.
func Buckets(pool []model.VideoItem) map[string][]model.VideoItem {
	buckets := make(map[string][]model.VideoItem, len(BucketNames))
	for _, name := range BucketNames {
		buckets[name] = []model.VideoItem{}
	}

	seen := make(map[string]map[string]bool, len(BucketNames))
	add := func(name string, v model.VideoItem) {
		if seen[name] == nil {
			seen[name] = make(map[string]bool)
		}
		if seen[name][v.VideoID] {
			return
		}
		seen[name][v.VideoID] = true
		buckets[name] = append(buckets[name], v)
	}

	for _, v := range pool {
		for _, name := range topicOrder {
			if matches(v, topicRules[name]) {
				add(name, v)
			}
		}
		// The made-for-kids flag routes to the kids shelf regardless of
		// keywords.
		if v.MadeForKids {
			add(BucketKids, v)
		}
	}

	buckets[BucketTopViews] = topByViews(pool)
	buckets[BucketNewest] = topByNewest(pool, newestShelfSize)

	return buckets
}

// topByViews returns the pool ordered by view count, highest first. Ties keep
// pool order so recomputation is deterministic.
func topByViews(pool []model.VideoItem) []model.VideoItem {
	out := dedupe(pool)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Views() > out[j].Views()
	})
	return out
}

// topByNewest returns up to n pool videos ordered newest first. A missing
// timestamp sorts as the oldest possible value.
func topByNewest(pool []model.VideoItem, n int) []model.VideoItem {
	out := dedupe(pool)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func dedupe(pool []model.VideoItem) []model.VideoItem {
	out := make([]model.VideoItem, 0, len(pool))
	seen := make(map[string]bool, len(pool))
	for _, v := range pool {
		if seen[v.VideoID] {
			continue
		}
		seen[v.VideoID] = true
		out = append(out, v)
	}
	return out
}

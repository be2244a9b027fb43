// Package ranking orders a fetched batch with a fixed heuristic before it is
// cached or returned.
package ranking

import (
	"sort"

	"github.com/kochetovM/aimuzon/model"
)

// EstablishedSubscriberCount is the threshold above which a channel counts as
// established and its videos rank ahead of the rest.
const EstablishedSubscriberCount = 100_000

// Sort reorders items in place: made-for-kids videos first, then videos from
// established channels, then newer-first when the request asked for date
// ordering. Everything else keeps its upstream relative order. The subs map
// is read only; channels missing from it count as not established.
func Sort(items []model.VideoItem, subs map[string]int64, order string) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]

		if a.MadeForKids != b.MadeForKids {
			return a.MadeForKids
		}

		aEstablished := subs[a.ChannelID] >= EstablishedSubscriberCount
		bEstablished := subs[b.ChannelID] >= EstablishedSubscriberCount
		if aEstablished != bEstablished {
			return aEstablished
		}

		if order == model.OrderDate {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return false
	})
}

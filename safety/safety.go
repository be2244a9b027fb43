// Package safety screens discovered videos against the audience-age gate and
// the fixed blocklist before they reach any view.
package safety

import (
	"strings"

	"github.com/kochetovM/aimuzon/model"
	"github.com/rs/zerolog/log"
)

// AdultAge is the audience age below which age-restricted and explicit
// content is filtered out.
const AdultAge = 18

// blockedTerms is the fixed blocklist matched against title, description and
// tags. Terms are lowercase; matching is case-insensitive substring.
var blockedTerms = []string{
	"porn",
	"sex",
	"xxx",
	"nsfw",
	"nude",
	"naked",
	"erotic",
	"hentai",
	"onlyfans",
	"gore",
	"brutal kill",
	"beheading",
	"massacre",
	"torture",
	"fuck",
	"bitch",
	"slut",
	"uncensored",
	"18+",
	"age-restricted",
	"age restricted",
}

// titleBlockedTerms is the narrower list re-applied to titles alone right
// before a response leaves the pipeline. It backstops items whose detail
// enrichment was unavailable, so only the unambiguous terms belong here.
var titleBlockedTerms = []string{
	"porn",
	"sex",
	"xxx",
	"nsfw",
	"nude",
	"hentai",
	"gore",
	"fuck",
	"18+",
}

// IsSafe reports whether a video may be shown to an audience of the given
// age. Videos flagged age-restricted upstream are rejected for minors, as is
// anything whose title, description or tags contain a blocked term.
func IsSafe(v model.VideoItem, audienceAge int) bool {
	if audienceAge < AdultAge && v.AgeRestricted {
		log.Debug().Str("video_id", v.VideoID).Msg("Video rejected: age-restricted upstream")
		return false
	}

	haystack := strings.ToLower(v.Title + " " + v.Description + " " + strings.Join(v.Tags, " "))
	for _, term := range blockedTerms {
		if strings.Contains(haystack, term) {
			log.Debug().Str("video_id", v.VideoID).Str("term", term).Msg("Video rejected: blocked term")
			return false
		}
	}
	return true
}

// TitleAllowed reports whether a title passes the narrower final recheck.
func TitleAllowed(title string) bool {
	lower := strings.ToLower(title)
	for _, term := range titleBlockedTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}
	return true
}

// Filter returns the items from in that pass IsSafe, preserving order. The
// input slice is not modified.
func Filter(in []model.VideoItem, audienceAge int) []model.VideoItem {
	out := make([]model.VideoItem, 0, len(in))
	for _, v := range in {
		if IsSafe(v, audienceAge) {
			out = append(out, v)
		}
	}
	return out
}

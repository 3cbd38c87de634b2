package chain

import (
	"strings"
	"time"
)

// PreviouslyCalled computes, for every segment, the set of extension
// destination numbers that were dialed strictly before that segment's start
// time. Segments sharing the exact same start time do not see each other:
// the set only grows when time advances.
func PreviouslyCalled(segments []Segment) map[string]map[string]bool {
	ordered := sortChronological(segments)
	result := make(map[string]map[string]bool, len(ordered))

	seen := make(map[string]bool)
	pending := make(map[string]bool)
	var lastStart time.Time

	for i, s := range ordered {
		if i > 0 && s.StartedAt.After(lastStart) {
			for n := range pending {
				seen[n] = true
			}
			pending = make(map[string]bool)
		}
		lastStart = s.StartedAt

		snapshot := make(map[string]bool, len(seen))
		for n := range seen {
			snapshot[n] = true
		}
		result[s.ID] = snapshot

		if strings.EqualFold(s.DestinationType, "extension") {
			pending[s.DestinationNumber] = true
		}
	}

	return result
}

// IsFallback reports whether a segment represents the call being handed back
// to a destination that was already attempted earlier: a party-initiated
// transfer to an extension found in the segment's previously-called set.
func IsFallback(s Segment, previouslyCalled map[string]bool) bool {
	return s.CreationMethod == "transfer" &&
		strings.EqualFold(s.DestinationType, "extension") &&
		previouslyCalled[s.DestinationNumber]
}

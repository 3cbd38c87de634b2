package chain

import "sort"

// sortChronological returns a copy of segments ordered by start time. Ties
// are broken by segment ID ascending so that repeated reconstructions of the
// same call always see the same order regardless of fetch order.
func sortChronological(segments []Segment) []Segment {
	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StartedAt.Equal(ordered[j].StartedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].StartedAt.Before(ordered[j].StartedAt)
	})
	return ordered
}

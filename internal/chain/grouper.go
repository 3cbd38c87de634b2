package chain

import (
	"strings"
	"time"
)

// ringWindow is the maximum start-time spread between two polling attempts
// that still counts as one simultaneous distribution of the call.
const ringWindow = 2000 * time.Millisecond

// isDistributionCandidate reports whether a segment plausibly represents one
// leg of a queue's simultaneous-ring broadcast: system-routed, created by a
// polling distribution, targeting an extension.
func isDistributionCandidate(s Segment) bool {
	return s.CreationMethod == "route_to" &&
		s.CreationForwardReason == "polling" &&
		strings.EqualFold(s.DestinationType, "extension")
}

// GroupSegments partitions a call's segments into timeline groups, merging
// distribution candidates whose start times fall within ringWindow of the
// anchor into a single ringing group. Emission order follows the order in
// which each group's first segment appears in the input.
//
// When a ringing group contains an answered member, that member is emitted
// a second time as a standalone conversation group right after the ringing
// group: the chain view renders the ring and the resulting conversation as
// two separate entries.
func GroupSegments(segments []Segment) []SegmentGroup {
	groups := make([]SegmentGroup, 0, len(segments))
	visited := make([]bool, len(segments))

	for i := range segments {
		if visited[i] {
			continue
		}
		visited[i] = true
		anchor := segments[i]

		if !isDistributionCandidate(anchor) {
			groups = append(groups, singleGroup(anchor))
			continue
		}

		ring := []Segment{anchor}
		for j := i + 1; j < len(segments); j++ {
			if visited[j] || !isDistributionCandidate(segments[j]) {
				continue
			}
			if startDelta(anchor, segments[j]) < ringWindow {
				ring = append(ring, segments[j])
				visited[j] = true
			}
		}

		if len(ring) == 1 {
			groups = append(groups, singleGroup(anchor))
			continue
		}

		group := SegmentGroup{
			Type:     GroupRinging,
			Segments: ring,
			Category: CategoryRinging,
		}
		for k := range group.Segments {
			if group.Segments[k].AnsweredAt != nil {
				group.AnsweredSegment = &group.Segments[k]
				break
			}
		}
		groups = append(groups, group)

		if group.AnsweredSegment != nil {
			groups = append(groups, SegmentGroup{
				Type:     GroupSingle,
				Segments: []Segment{*group.AnsweredSegment},
				Category: CategoryConversation,
			})
		}
	}

	return groups
}

func singleGroup(s Segment) SegmentGroup {
	return SegmentGroup{Type: GroupSingle, Segments: []Segment{s}, Category: s.Category}
}

func startDelta(a, b Segment) time.Duration {
	d := b.StartedAt.Sub(a.StartedAt)
	if d < 0 {
		d = -d
	}
	return d
}

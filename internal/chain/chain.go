// Package chain reconstructs a human-interpretable call chain from the flat
// list of CDR segments recorded for one logical call. A call that hops
// through an IVR, gets distributed to several agents at once, bounces off a
// busy extension and is finally transferred back leaves behind a pile of
// loosely related rows; this package groups simultaneous ring attempts,
// detects retries after busy rejections, flags fallbacks to already-tried
// destinations and resolves which agent ultimately answered.
//
// Everything here is a pure function over one call's segments. There is no
// shared state between calls and no I/O; the same input always yields the
// same output.
package chain

// AnnotatedSegment is a segment enriched with the per-call inferences.
type AnnotatedSegment struct {
	Segment
	RetryCount int
	Fallback   bool
}

// AnnotatedGroup is one display-ready timeline entry of the call chain.
type AnnotatedGroup struct {
	Type              GroupType
	Category          Category
	Segments          []AnnotatedSegment
	AnsweredSegmentID string
	// AnsweredAfter is set on an unanswered ringing group when a member
	// picked the call up through a separate conversation segment right
	// after the group ended.
	AnsweredAfter string
}

// Reconstruct runs the full pipeline for one call: grouping, retry and
// fallback annotation, and answered-after resolution. An empty input yields
// an empty (non-nil error free) result; missing optional fields never fail.
func Reconstruct(segments []Segment) []AnnotatedGroup {
	if len(segments) == 0 {
		return []AnnotatedGroup{}
	}

	groups := GroupSegments(segments)
	retries := RetryCounts(segments)
	previous := PreviouslyCalled(segments)

	annotated := make([]AnnotatedGroup, 0, len(groups))
	for i, g := range groups {
		ag := AnnotatedGroup{
			Type:     g.Type,
			Category: g.Category,
			Segments: make([]AnnotatedSegment, 0, len(g.Segments)),
		}
		for _, s := range g.Segments {
			ag.Segments = append(ag.Segments, AnnotatedSegment{
				Segment:    s,
				RetryCount: retries[s.ID],
				Fallback:   IsFallback(s, previous[s.ID]),
			})
		}
		if g.AnsweredSegment != nil {
			ag.AnsweredSegmentID = g.AnsweredSegment.ID
		}
		if g.Type == GroupRinging && g.AnsweredSegment == nil {
			if dest, ok := ResolveAnsweredAfter(groups, i); ok {
				ag.AnsweredAfter = dest
			}
		}
		annotated = append(annotated, ag)
	}
	return annotated
}

package chain

// ResolveAnsweredAfter determines whether the call was picked up right after
// the ringing group at index idx, by a conversation that follows it in the
// group list. The scan stops as soon as another ringing group is reached:
// anything past it belongs to a later distribution round. This is a display
// heuristic, not a verified causal link; the CDR data carries no foreign key
// from a ring attempt to the conversation it produced.
func ResolveAnsweredAfter(groups []SegmentGroup, idx int) (string, bool) {
	if idx < 0 || idx >= len(groups) || groups[idx].Type != GroupRinging {
		return "", false
	}
	for i := idx + 1; i < len(groups); i++ {
		next := groups[i]
		if next.Type == GroupRinging {
			return "", false
		}
		if next.Category == CategoryConversation && len(next.Segments) == 1 && next.Segments[0].AnsweredAt != nil {
			return next.Segments[0].DestinationNumber, true
		}
	}
	return "", false
}

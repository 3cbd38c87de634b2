package chain

import "strings"

// isBusyOutcome reports whether the destination actively refused the attempt.
func isBusyOutcome(s Segment) bool {
	return s.TerminationReasonDetails == "busy" || s.TerminationReason == "rejected"
}

// RetryCounts walks the call chronologically and, per extension destination,
// counts consecutive busy/rejected attempts. A segment appears in the result
// only when at least one busy attempt to the same destination preceded it:
// busy attempt number N+1 is recorded with count N, and the attempt that is
// finally answered is recorded with the full run of busy attempts before it.
// Answering resets the destination's counter. Non-extension segments are
// ignored entirely.
func RetryCounts(segments []Segment) map[string]int {
	busy := make(map[string]int)
	counts := make(map[string]int)

	for _, s := range sortChronological(segments) {
		if !strings.EqualFold(s.DestinationType, "extension") {
			continue
		}
		dest := s.DestinationNumber
		switch {
		case isBusyOutcome(s):
			if busy[dest] > 0 {
				counts[s.ID] = busy[dest]
			}
			busy[dest]++
		case s.AnsweredAt != nil:
			if busy[dest] > 0 {
				counts[s.ID] = busy[dest]
			}
			busy[dest] = 0
		}
	}

	return counts
}

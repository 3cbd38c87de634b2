package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func answered(ms int) *time.Time {
	t := at(ms)
	return &t
}

// pollSeg builds one leg of a queue's simultaneous-ring broadcast.
func pollSeg(id, dest string, startMs int, answeredAt *time.Time) Segment {
	return Segment{
		ID:                    id,
		StartedAt:             at(startMs),
		AnsweredAt:            answeredAt,
		DestinationNumber:     dest,
		DestinationType:       "Extension",
		CreationMethod:        "route_to",
		CreationForwardReason: "polling",
		Category:              CategoryRinging,
	}
}

func transferSeg(id, dest string, startMs int) Segment {
	return Segment{
		ID:                id,
		StartedAt:         at(startMs),
		DestinationNumber: dest,
		DestinationType:   "extension",
		CreationMethod:    "transfer",
		Category:          CategoryTransfer,
	}
}

func busySeg(id, dest string, startMs int) Segment {
	return Segment{
		ID:                       id,
		StartedAt:                at(startMs),
		DestinationNumber:        dest,
		DestinationType:          "extension",
		TerminationReasonDetails: "busy",
		Category:                 CategoryMissed,
	}
}

func TestGroupSegments_mergesSimultaneousPolling(t *testing.T) {
	segments := []Segment{
		pollSeg("a", "101", 0, nil),
		pollSeg("b", "102", 300, nil),
		pollSeg("c", "103", 500, answered(4000)),
	}

	groups := GroupSegments(segments)

	require.Len(t, groups, 2)
	assert.Equal(t, GroupRinging, groups[0].Type)
	assert.Equal(t, CategoryRinging, groups[0].Category)
	assert.Len(t, groups[0].Segments, 3)
	require.NotNil(t, groups[0].AnsweredSegment)
	assert.Equal(t, "c", groups[0].AnsweredSegment.ID)

	// Answered member re-emitted as a standalone conversation entry.
	assert.Equal(t, GroupSingle, groups[1].Type)
	assert.Equal(t, CategoryConversation, groups[1].Category)
	require.Len(t, groups[1].Segments, 1)
	assert.Equal(t, "c", groups[1].Segments[0].ID)
}

func TestGroupSegments_windowBoundary(t *testing.T) {
	t.Run("1999ms grouped", func(t *testing.T) {
		groups := GroupSegments([]Segment{
			pollSeg("a", "101", 0, nil),
			pollSeg("b", "102", 1999, nil),
		})
		require.Len(t, groups, 1)
		assert.Equal(t, GroupRinging, groups[0].Type)
	})
	t.Run("2001ms split", func(t *testing.T) {
		groups := GroupSegments([]Segment{
			pollSeg("a", "101", 0, nil),
			pollSeg("b", "102", 2001, nil),
		})
		require.Len(t, groups, 2)
		assert.Equal(t, GroupSingle, groups[0].Type)
		assert.Equal(t, GroupSingle, groups[1].Type)
	})
}

func TestGroupSegments_nonCandidatesStaySingle(t *testing.T) {
	ivr := Segment{ID: "x", StartedAt: at(0), DestinationType: "ivr", Category: CategoryIVR}
	groups := GroupSegments([]Segment{ivr, pollSeg("a", "101", 100, nil)})

	require.Len(t, groups, 2)
	assert.Equal(t, GroupSingle, groups[0].Type)
	assert.Equal(t, CategoryIVR, groups[0].Category)
	assert.Equal(t, GroupSingle, groups[1].Type)
	assert.Equal(t, CategoryRinging, groups[1].Category)
}

func TestGroupSegments_coverage(t *testing.T) {
	// Every segment appears exactly once, except answered ring-group members
	// which appear twice (ring entry + conversation entry).
	segments := []Segment{
		{ID: "q", StartedAt: at(0), DestinationType: "queue", Category: CategoryQueue},
		pollSeg("a", "101", 100, nil),
		pollSeg("b", "102", 200, answered(5000)),
		transferSeg("t", "201", 9000),
	}

	appearances := map[string]int{}
	for _, g := range GroupSegments(segments) {
		for _, s := range g.Segments {
			appearances[s.ID]++
		}
	}

	assert.Equal(t, map[string]int{"q": 1, "a": 1, "b": 2, "t": 1}, appearances)
}

func TestRetryCounts_busyRunThenAnswer(t *testing.T) {
	segments := []Segment{
		busySeg("r1", "104", 0),
		busySeg("r2", "104", 10000),
		busySeg("r3", "104", 20000),
		pollSeg("r4", "104", 30000, answered(30500)),
	}

	counts := RetryCounts(segments)

	// First busy attempt is not a retry; later ones carry the prior run.
	assert.Equal(t, map[string]int{"r2": 1, "r3": 2, "r4": 3}, counts)
}

func TestRetryCounts_answerResetsCounter(t *testing.T) {
	segments := []Segment{
		busySeg("r1", "104", 0),
		pollSeg("r2", "104", 5000, answered(5200)),
		busySeg("r3", "104", 60000),
	}

	counts := RetryCounts(segments)

	assert.Equal(t, 1, counts["r2"])
	// Post-answer busy starts a fresh run, so it is not a retry itself.
	assert.NotContains(t, counts, "r3")
}

func TestRetryCounts_rejectedCountsAsBusy(t *testing.T) {
	rejected := Segment{
		ID:                "r1",
		StartedAt:         at(0),
		DestinationNumber: "104",
		DestinationType:   "extension",
		TerminationReason: "rejected",
	}
	counts := RetryCounts([]Segment{rejected, busySeg("r2", "104", 1000)})
	assert.Equal(t, map[string]int{"r2": 1}, counts)
}

func TestRetryCounts_skipsNonExtensions(t *testing.T) {
	queueBusy := Segment{
		ID:                       "q",
		StartedAt:                at(0),
		DestinationNumber:        "800",
		DestinationType:          "queue",
		TerminationReasonDetails: "busy",
	}
	counts := RetryCounts([]Segment{queueBusy, busySeg("r", "800", 1000)})
	// The queue leg neither increments nor records anything.
	assert.Empty(t, counts)
}

func TestPreviouslyCalled_fallbackScenario(t *testing.T) {
	segments := []Segment{
		transferSeg("s1", "201", 0),
		transferSeg("s2", "202", 10000),
		transferSeg("s3", "201", 20000),
	}

	previous := PreviouslyCalled(segments)

	assert.False(t, IsFallback(segments[0], previous["s1"]))
	assert.False(t, IsFallback(segments[1], previous["s2"]))
	assert.True(t, IsFallback(segments[2], previous["s3"]))
}

func TestIsFallback_requiresTransferMethod(t *testing.T) {
	segments := []Segment{
		transferSeg("s1", "201", 0),
		pollSeg("s2", "201", 10000, nil),
	}
	previous := PreviouslyCalled(segments)

	// Same destination revisited, but via queue routing, not a transfer.
	assert.False(t, IsFallback(segments[1], previous["s2"]))
}

func TestPreviouslyCalled_simultaneousStartsDoNotSeeEachOther(t *testing.T) {
	segments := []Segment{
		transferSeg("s1", "201", 0),
		transferSeg("s2", "202", 0),
	}
	previous := PreviouslyCalled(segments)

	assert.Empty(t, previous["s1"])
	assert.Empty(t, previous["s2"])
}

func TestResolveAnsweredAfter(t *testing.T) {
	ring := SegmentGroup{Type: GroupRinging, Category: CategoryRinging}
	conv := SegmentGroup{
		Type:     GroupSingle,
		Category: CategoryConversation,
		Segments: []Segment{{ID: "c", DestinationNumber: "103", AnsweredAt: answered(0)}},
	}
	routing := SegmentGroup{Type: GroupSingle, Category: CategoryRouting, Segments: []Segment{{ID: "r"}}}

	t.Run("next conversation resolves", func(t *testing.T) {
		dest, ok := ResolveAnsweredAfter([]SegmentGroup{ring, conv}, 0)
		require.True(t, ok)
		assert.Equal(t, "103", dest)
	})

	t.Run("scans past non-conversation singles", func(t *testing.T) {
		dest, ok := ResolveAnsweredAfter([]SegmentGroup{ring, routing, conv}, 0)
		require.True(t, ok)
		assert.Equal(t, "103", dest)
	})

	t.Run("stops at next ringing group", func(t *testing.T) {
		_, ok := ResolveAnsweredAfter([]SegmentGroup{ring, ring, conv}, 0)
		assert.False(t, ok)
	})

	t.Run("non-ringing index yields nothing", func(t *testing.T) {
		_, ok := ResolveAnsweredAfter([]SegmentGroup{conv, ring}, 0)
		assert.False(t, ok)
	})
}

func TestReconstruct_exampleScenario(t *testing.T) {
	// Three simultaneous polling legs; 101 busy, 102 unanswered, 103 answers.
	busy101 := pollSeg("a", "101", 0, nil)
	busy101.TerminationReasonDetails = "busy"
	segments := []Segment{
		busy101,
		pollSeg("b", "102", 300, nil),
		pollSeg("c", "103", 500, answered(6000)),
	}

	groups := Reconstruct(segments)

	require.Len(t, groups, 2)
	assert.Equal(t, GroupRinging, groups[0].Type)
	assert.Len(t, groups[0].Segments, 3)
	assert.Equal(t, "c", groups[0].AnsweredSegmentID)
	assert.Equal(t, GroupSingle, groups[1].Type)
	assert.Equal(t, CategoryConversation, groups[1].Category)
	assert.Equal(t, "c", groups[1].Segments[0].ID)

	// A later busy attempt to 101 would carry one prior busy attempt.
	later := busySeg("d", "101", 60000)
	counts := RetryCounts(append(segments, later))
	assert.Equal(t, 1, counts["d"])
}

func TestReconstruct_idempotent(t *testing.T) {
	segments := []Segment{
		{ID: "q", StartedAt: at(0), DestinationType: "queue", Category: CategoryQueue},
		pollSeg("a", "101", 100, nil),
		pollSeg("b", "102", 250, answered(4000)),
		busySeg("c", "101", 8000),
		transferSeg("d", "101", 12000),
	}

	first := Reconstruct(segments)
	second := Reconstruct(segments)

	assert.Equal(t, first, second)
}

func TestReconstruct_annotations(t *testing.T) {
	segments := []Segment{
		busySeg("b1", "201", 0),
		pollSeg("a1", "201", 5000, answered(5300)),
		transferSeg("f1", "201", 20000),
	}

	groups := Reconstruct(segments)

	byID := map[string]AnnotatedSegment{}
	for _, g := range groups {
		for _, s := range g.Segments {
			byID[s.ID] = s
		}
	}

	assert.Equal(t, 1, byID["a1"].RetryCount)
	assert.True(t, byID["f1"].Fallback)
	assert.False(t, byID["b1"].Fallback)
}

func TestReconstruct_answeredAfterRingingGroup(t *testing.T) {
	// Unanswered ring group followed by a conversation created separately.
	convAt := answered(7000)
	segments := []Segment{
		pollSeg("a", "101", 0, nil),
		pollSeg("b", "102", 200, nil),
		{
			ID: "c", StartedAt: at(6500), AnsweredAt: convAt,
			DestinationNumber: "102", DestinationType: "extension",
			Category: CategoryConversation, DurationSeconds: 42,
		},
	}

	groups := Reconstruct(segments)

	require.Len(t, groups, 2)
	assert.Equal(t, GroupRinging, groups[0].Type)
	assert.Empty(t, groups[0].AnsweredSegmentID)
	assert.Equal(t, "102", groups[0].AnsweredAfter)
}

func TestReconstruct_emptyInput(t *testing.T) {
	groups := Reconstruct(nil)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestSortChronological_deterministicTieBreak(t *testing.T) {
	a := transferSeg("b-second", "201", 0)
	b := transferSeg("a-first", "202", 0)

	ordered := sortChronological([]Segment{a, b})
	reversed := sortChronological([]Segment{b, a})

	assert.Equal(t, ordered, reversed)
	assert.Equal(t, "a-first", ordered[0].ID)
}

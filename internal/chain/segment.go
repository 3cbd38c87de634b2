package chain

import "time"

// Category is the semantic bucket a segment belongs to. It is assigned by
// Categorize before reconstruction; the reconstructor itself only reads it.
type Category string

const (
	CategoryConversation Category = "conversation"
	CategoryRinging      Category = "ringing"
	CategoryRouting      Category = "routing"
	CategoryQueue        Category = "queue"
	CategoryBridge       Category = "bridge"
	CategoryIVR          Category = "ivr"
	CategoryVoicemail    Category = "voicemail"
	CategoryTransfer     Category = "transfer"
	CategoryMissed       Category = "missed"
	CategoryUnknown      Category = "unknown"
)

// Segment is one CDR leg of a single logical call. Segments are immutable
// inputs; the reconstructor never mutates them. AnsweredAt is nil when the
// segment was never picked up.
type Segment struct {
	ID              string
	StartedAt       time.Time
	AnsweredAt      *time.Time
	DurationSeconds float64

	SourceNumber string
	SourceName   string
	SourceType   string

	DestinationNumber     string
	DestinationName       string
	DestinationType       string
	DestinationEntityType string

	CreationMethod        string
	CreationForwardReason string

	TerminationReason        string
	TerminationReasonDetails string

	Category Category
}

// GroupType distinguishes a lone segment from a simultaneous-ring set.
type GroupType string

const (
	GroupSingle  GroupType = "single"
	GroupRinging GroupType = "ringing_group"
)

// SegmentGroup is the reconstructor's output unit: one timeline entry of the
// call chain. For ringing groups AnsweredSegment points into Segments (a
// view, not a copy) when one of the polled extensions picked up.
type SegmentGroup struct {
	Type            GroupType
	Segments        []Segment
	Category        Category
	AnsweredSegment *Segment
}

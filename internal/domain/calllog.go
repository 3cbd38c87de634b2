package domain

// CallDirection classifies a logical call relative to the PBX.
type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
	DirectionInternal CallDirection = "internal"
	DirectionBridge   CallDirection = "bridge"
)

// CallStatus is the final outcome of a logical call.
type CallStatus string

const (
	StatusAnswered  CallStatus = "answered"
	StatusAbandoned CallStatus = "abandoned"
	StatusVoicemail CallStatus = "voicemail"
	StatusBusy      CallStatus = "busy"
)

// HandledByAgent is one agent who held a conversation during a call.
type HandledByAgent struct {
	Number string `json:"number"`
	Name   string `json:"name"`
}

// QueueRef is a queue the call passed through.
type QueueRef struct {
	Number string `json:"number"`
	Name   string `json:"name"`
}

// JourneyStep is one coarse hop of the call's path (queue, voicemail or
// direct extension attempt) used by the "Parcours" column.
type JourneyStep struct {
	Type   string `json:"type"`
	Label  string `json:"label"`
	Detail string `json:"detail"`
	Result string `json:"result"`
	Agent  string `json:"agent,omitempty"`
}

// AggregatedCallLog is one row of the dashboard's call log: one logical call
// collapsed from all its cdroutput segments.
type AggregatedCallLog struct {
	CallHistoryID      string `json:"callHistoryId"`
	CallHistoryIDShort string `json:"callHistoryIdShort"`
	SegmentCount       int    `json:"segmentCount"`

	StartedAt             string `json:"startedAt"`
	EndedAt               string `json:"endedAt"`
	TotalDurationSeconds  int    `json:"totalDurationSeconds"`
	TotalDurationDisplay  string `json:"totalDurationFormatted"`
	WaitTimeSeconds       int    `json:"waitTimeSeconds"`
	WaitTimeDisplay       string `json:"waitTimeFormatted"`
	TalkDurationSeconds   int    `json:"totalTalkDurationSeconds"`
	TalkDurationDisplay   string `json:"totalTalkDurationFormatted"`

	CallerNumber string `json:"callerNumber"`
	CallerName   string `json:"callerName,omitempty"`
	CalleeNumber string `json:"calleeNumber"`
	CalleeName   string `json:"calleeName,omitempty"`

	HandledBy        []HandledByAgent `json:"handledBy"`
	HandledByDisplay string           `json:"handledByDisplay"`

	Direction      CallDirection `json:"direction"`
	FinalStatus    CallStatus    `json:"finalStatus"`
	WasTransferred bool          `json:"wasTransferred"`

	Queues  []QueueRef    `json:"queues"`
	Journey []JourneyStep `json:"journey"`
}

// LogsFilters carries every filter the call log screen can apply. Search
// fields support a leading/trailing '*' wildcard.
type LogsFilters struct {
	Directions []CallDirection `json:"directions"`
	Statuses   []CallStatus    `json:"statuses"`

	CallerSearch    string `json:"callerSearch"`
	CalleeSearch    string `json:"calleeSearch"`
	HandledBySearch string `json:"handledBySearch"`
	QueueSearch     string `json:"queueSearch"`
	IDSearch        string `json:"idSearch"`

	SegmentCountMin *int `json:"segmentCountMin"`
	SegmentCountMax *int `json:"segmentCountMax"`
	DurationMin     *int `json:"durationMin"`
	DurationMax     *int `json:"durationMax"`
}

// LogsPage is a pagination request; the repository clamps the page size.
type LogsPage struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// AggregatedCallLogsResponse is the paginated call log payload.
type AggregatedCallLogsResponse struct {
	Logs        []AggregatedCallLog `json:"logs"`
	TotalCount  int                 `json:"totalCount"`
	TotalPages  int                 `json:"totalPages"`
	CurrentPage int                 `json:"currentPage"`
}

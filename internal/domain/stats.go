package domain

// DestinationCount ranks where overflowed or transferred calls ended up.
type DestinationCount struct {
	Destination     string `json:"destination"`
	DestinationName string `json:"destinationName"`
	DestinationType string `json:"destinationType"`
	Count           int    `json:"count"`
}

// QueueKPIs aggregates one queue's performance over a date range.
// "Passages" counts every traversal of the queue; a single logical call that
// bounces back counts several passages but one unique call.
type QueueKPIs struct {
	QueueNumber string `json:"queueNumber"`
	QueueName   string `json:"queueName"`

	CallsReceived int `json:"callsReceived"`
	UniqueCalls   int `json:"uniqueCalls"`

	CallsAnswered               int `json:"callsAnswered"`
	UniqueCallsAnswered         int `json:"uniqueCallsAnswered"`
	CallsAnsweredAndTransferred int `json:"callsAnsweredAndTransferred"`

	CallsAbandoned       int `json:"callsAbandoned"`
	UniqueCallsAbandoned int `json:"uniqueCallsAbandoned"`
	AbandonedBefore10s   int `json:"abandonedBefore10s"`
	AbandonedAfter10s    int `json:"abandonedAfter10s"`

	CallsOverflow       int `json:"callsOverflow"`
	UniqueCallsOverflow int `json:"uniqueCallsOverflow"`

	AvgWaitTimeSeconds int `json:"avgWaitTimeSeconds"`

	OverflowDestinations []DestinationCount `json:"overflowDestinations"`
	TransferDestinations []DestinationCount `json:"transferDestinations"`
}

// TrendPoint is one bucket of the daily or hourly call volume chart.
type TrendPoint struct {
	Bucket    string `json:"bucket"`
	Total     int    `json:"total"`
	Answered  int    `json:"answered"`
	Abandoned int    `json:"abandoned"`
}

// AgentPerformance is one row of the agent performance table.
type AgentPerformance struct {
	Number           string `json:"number"`
	Name             string `json:"name"`
	CallsHandled     int    `json:"callsHandled"`
	TotalTalkSeconds int    `json:"totalTalkSeconds"`
	AvgTalkSeconds   int    `json:"avgTalkSeconds"`
}

package calllog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/chain"
	"github.com/callvista/cdr-analytics-service/internal/domain"
	"github.com/callvista/cdr-analytics-service/internal/repository"
	"github.com/callvista/cdr-analytics-service/pkg/logger"
	"github.com/callvista/cdr-analytics-service/pkg/metrics"
	"github.com/callvista/cdr-analytics-service/pkg/redis"
	"go.uber.org/zap"
)

// Service assembles the dashboard's call log rows and reconstructed call
// chains from the raw CDR segments.
type Service struct {
	repo     repository.RepositoryManager
	redisSvc redis.RedisServiceInterface
	chainTTL time.Duration
	metrics  *metrics.Metrics
}

// NewService creates a call log service. redisSvc may be nil to disable
// chain caching; m may be nil to disable instrumentation.
func NewService(repo repository.RepositoryManager, redisSvc redis.RedisServiceInterface, chainTTL time.Duration, m *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		redisSvc: redisSvc,
		chainTTL: chainTTL,
		metrics:  m,
	}
}

// GetCallLogs returns the paginated, filtered call log.
func (s *Service) GetCallLogs(ctx context.Context, start, end time.Time, filters domain.LogsFilters, page domain.LogsPage) (*domain.AggregatedCallLogsResponse, error) {
	rows, total, err := s.repo.CDR().GetAggregatedCallLogs(ctx, start, end, filters, page)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch call logs: %w", err)
	}

	pageSize := page.PageSize
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > 100 {
		pageSize = 100
	}
	currentPage := page.Page
	if currentPage < 1 {
		currentPage = 1
	}
	totalPages := (total + pageSize - 1) / pageSize

	logs := make([]domain.AggregatedCallLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, buildLog(row))
	}

	return &domain.AggregatedCallLogsResponse{
		Logs:        logs,
		TotalCount:  total,
		TotalPages:  totalPages,
		CurrentPage: currentPage,
	}, nil
}

// SegmentView is one segment of the chain response, display-ready.
type SegmentView struct {
	ID         string  `json:"id"`
	StartedAt  string  `json:"startedAt"`
	AnsweredAt *string `json:"answeredAt"`

	SourceNumber string `json:"sourceNumber"`
	SourceName   string `json:"sourceName,omitempty"`
	SourceType   string `json:"sourceType"`

	DestinationNumber string `json:"destinationNumber"`
	DestinationName   string `json:"destinationName,omitempty"`
	DestinationType   string `json:"destinationType"`

	DurationSeconds   float64 `json:"durationSeconds"`
	DurationFormatted string  `json:"durationFormatted"`

	TerminationReason        string `json:"terminationReason"`
	TerminationReasonDetails string `json:"terminationReasonDetails,omitempty"`
	CreationMethod           string `json:"creationMethod"`
	CreationForwardReason    string `json:"creationForwardReason,omitempty"`

	Category   chain.Category   `json:"category"`
	Descriptor chain.Descriptor `json:"descriptor"`

	RetryCount int  `json:"retryCount,omitempty"`
	Fallback   bool `json:"fallback,omitempty"`
}

// GroupView is one timeline entry of the chain response: a lone segment or a
// simultaneous ring of several extensions.
type GroupView struct {
	Type              chain.GroupType  `json:"type"`
	Category          chain.Category   `json:"category"`
	Descriptor        chain.Descriptor `json:"descriptor"`
	Segments          []SegmentView    `json:"segments"`
	AnsweredSegmentID string           `json:"answeredSegmentId,omitempty"`
	AnsweredAfter     string           `json:"answeredAfter,omitempty"`
}

// ChainResponse is the reconstructed chain of one logical call.
type ChainResponse struct {
	CallHistoryID string      `json:"callHistoryId"`
	SegmentCount  int         `json:"segmentCount"`
	Groups        []GroupView `json:"groups"`
}

// GetCallChain reconstructs the call chain for one logical call. A call with
// no segments yields an empty chain, not an error.
func (s *Service) GetCallChain(ctx context.Context, callHistoryID string) (*ChainResponse, error) {
	if cached := s.cachedChain(ctx, callHistoryID); cached != nil {
		return cached, nil
	}

	segments, err := s.repo.CDR().GetCallSegments(ctx, callHistoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load call %s: %w", callHistoryID, err)
	}

	chainInput := make([]chain.Segment, 0, len(segments))
	for _, seg := range segments {
		chainInput = append(chainInput, seg.ToChainSegment())
	}

	groups := chain.Reconstruct(chainInput)

	resp := &ChainResponse{
		CallHistoryID: callHistoryID,
		SegmentCount:  len(segments),
		Groups:        make([]GroupView, 0, len(groups)),
	}
	for _, g := range groups {
		gv := GroupView{
			Type:              g.Type,
			Category:          g.Category,
			Descriptor:        chain.Describe(g.Category),
			Segments:          make([]SegmentView, 0, len(g.Segments)),
			AnsweredSegmentID: g.AnsweredSegmentID,
			AnsweredAfter:     g.AnsweredAfter,
		}
		for _, seg := range g.Segments {
			gv.Segments = append(gv.Segments, segmentView(seg))
		}
		resp.Groups = append(resp.Groups, gv)
	}

	if s.metrics != nil {
		s.metrics.ObserveChain(len(segments))
	}
	// Only cache calls that have segments: an empty result usually means the
	// CDR export has not caught up with this call yet, and caching it would
	// freeze the miss for the whole TTL.
	if len(segments) > 0 {
		s.cacheChain(ctx, callHistoryID, resp)
	}
	return resp, nil
}

func segmentView(seg chain.AnnotatedSegment) SegmentView {
	var answeredAt *string
	if seg.AnsweredAt != nil {
		v := seg.AnsweredAt.UTC().Format(time.RFC3339)
		answeredAt = &v
	}
	return SegmentView{
		ID:                       seg.ID,
		StartedAt:                seg.StartedAt.UTC().Format(time.RFC3339),
		AnsweredAt:               answeredAt,
		SourceNumber:             seg.SourceNumber,
		SourceName:               seg.SourceName,
		SourceType:               seg.SourceType,
		DestinationNumber:        seg.DestinationNumber,
		DestinationName:          seg.DestinationName,
		DestinationType:          seg.DestinationType,
		DurationSeconds:          seg.DurationSeconds,
		DurationFormatted:        formatDuration(int(seg.DurationSeconds + 0.5)),
		TerminationReason:        seg.TerminationReason,
		TerminationReasonDetails: seg.TerminationReasonDetails,
		CreationMethod:           seg.CreationMethod,
		CreationForwardReason:    seg.CreationForwardReason,
		Category:                 seg.Category,
		Descriptor:               chain.Describe(seg.Category),
		RetryCount:               seg.RetryCount,
		Fallback:                 seg.Fallback,
	}
}

func (s *Service) cachedChain(ctx context.Context, callHistoryID string) *ChainResponse {
	if s.redisSvc == nil {
		return nil
	}
	key := s.redisSvc.GenerateKey(redis.CHAIN_RESULT, callHistoryID)
	var resp ChainResponse
	found, err := s.redisSvc.GetJSON(ctx, key, &resp)
	if err != nil {
		logger.Base().Warn("Chain cache read failed", zap.String("call_history_id", callHistoryID), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	return &resp
}

func (s *Service) cacheChain(ctx context.Context, callHistoryID string, resp *ChainResponse) {
	if s.redisSvc == nil || resp == nil {
		return
	}
	key := s.redisSvc.GenerateKey(redis.CHAIN_RESULT, callHistoryID)
	if err := s.redisSvc.SetJSON(ctx, key, resp, s.chainTTL); err != nil {
		logger.Base().Warn("Chain cache write failed", zap.String("call_history_id", callHistoryID), zap.Error(err))
	}
}

// buildLog turns one aggregate row into a display row: final status,
// direction, durations and the formatted columns.
func buildLog(row repository.CallAggregateRow) domain.AggregatedCallLog {
	talkSeconds := int(row.HandledByTotalTalk + 0.5)

	totalDuration := 0
	if row.FirstStartedAt != nil && row.LastEndedAt != nil {
		totalDuration = roundSeconds(row.LastEndedAt.Sub(*row.FirstStartedAt))
	}

	// Wait time runs from the first ring to the first human answer; an
	// unanswered call waits its whole lifetime.
	waitTime := totalDuration
	if row.FirstStartedAt != nil {
		if row.AnsweredAt != nil {
			waitTime = roundSeconds(row.AnsweredAt.Sub(*row.FirstStartedAt))
		} else if row.FirstAnswered != nil {
			waitTime = roundSeconds(row.FirstAnswered.Sub(*row.FirstStartedAt))
		}
	}

	lastAnswered := row.LastAnsweredAt != nil
	displayDuration := totalDuration
	if lastAnswered {
		displayDuration = talkSeconds
	}

	status := finalStatus(row)
	direction := determineDirection(row.SourceDnType, row.FirstDestType, row.LastDestType)

	var agents []domain.HandledByAgent
	if row.HandledByAgentsJSON != "" {
		if err := json.Unmarshal([]byte(row.HandledByAgentsJSON), &agents); err != nil {
			agents = nil
		}
	}
	var queues []domain.QueueRef
	if row.CallQueuesJSON != "" {
		if err := json.Unmarshal([]byte(row.CallQueuesJSON), &queues); err != nil {
			queues = nil
		}
	}
	var journey []domain.JourneyStep
	if row.CallJourneyJSON != "" {
		if err := json.Unmarshal([]byte(row.CallJourneyJSON), &journey); err != nil {
			journey = nil
		}
	}
	if agents == nil {
		agents = []domain.HandledByAgent{}
	}
	if queues == nil {
		queues = []domain.QueueRef{}
	}
	if journey == nil {
		journey = []domain.JourneyStep{}
	}

	shortID := "-"
	if row.CallHistoryID != "" {
		id := row.CallHistoryID
		if len(id) > 4 {
			id = id[len(id)-4:]
		}
		shortID = strings.ToUpper(id)
	}

	return domain.AggregatedCallLog{
		CallHistoryID:      row.CallHistoryID,
		CallHistoryIDShort: shortID,
		SegmentCount:       row.SegmentCount,

		StartedAt:            formatTime(row.FirstStartedAt),
		EndedAt:              formatTime(row.LastEndedAt),
		TotalDurationSeconds: displayDuration,
		TotalDurationDisplay: formatDuration(displayDuration),
		WaitTimeSeconds:      waitTime,
		WaitTimeDisplay:      formatDuration(waitTime),
		TalkDurationSeconds:  talkSeconds,
		TalkDurationDisplay:  formatDuration(talkSeconds),

		CallerNumber: displayNumber(row.SourceDnNumber, row.SourceParticipantTel, row.SourcePresentation),
		CallerName:   callerName(row),
		CalleeNumber: displayNumber(row.FirstDestNumber, row.FirstDestParticipantTel, ""),
		CalleeName:   calleeName(row),

		HandledBy:        agents,
		HandledByDisplay: handledByDisplay(agents, row.HandledByCount),

		Direction:      direction,
		FinalStatus:    status,
		WasTransferred: row.SegmentCount > 1,

		Queues:  queues,
		Journey: journey,
	}
}

var systemDestTypes = map[string]bool{
	"queue":               true,
	"ring_group":          true,
	"ring_group_ring_all": true,
	"ivr":                 true,
	"process":             true,
	"parking":             true,
}

var systemEntityTypes = map[string]bool{
	"queue": true,
	"ivr":   true,
}

// finalStatus decides the aggregated outcome of a logical call from its last
// segment: voicemail and busy win outright, then an answered last segment
// counts as answered only when a human (not a queue or IVR) picked up.
func finalStatus(row repository.CallAggregateRow) domain.CallStatus {
	lastDestType := strings.ToLower(row.LastDestType)
	lastEntityType := strings.ToLower(row.LastDestEntityType)
	termDetails := strings.ToLower(row.TerminationDetails)

	if lastDestType == "vmail_console" || lastDestType == "voicemail" || lastEntityType == "voicemail" {
		return domain.StatusVoicemail
	}
	if strings.Contains(termDetails, "busy") {
		return domain.StatusBusy
	}

	lastDuration := 0.0
	if row.LastSegStartedAt != nil && row.LastSegEndedAt != nil {
		lastDuration = row.LastSegEndedAt.Sub(*row.LastSegStartedAt).Seconds()
	}
	if row.LastAnsweredAt != nil && lastDuration > 1 {
		if systemDestTypes[lastDestType] || systemEntityTypes[lastEntityType] {
			// System pickup only counts when an extension answered too.
			if row.AnsweredAt != nil {
				return domain.StatusAnswered
			}
			return domain.StatusAbandoned
		}
		return domain.StatusAnswered
	}
	return domain.StatusAbandoned
}

// determineDirection classifies the call relative to the PBX from the source
// and the first/last destination types.
func determineDirection(sourceType, firstDestType, lastDestType string) domain.CallDirection {
	src := strings.ToLower(sourceType)
	first := strings.ToLower(firstDestType)
	last := strings.ToLower(lastDestType)

	if src == "bridge" || first == "bridge" || last == "bridge" {
		return domain.DirectionBridge
	}
	if src == "extension" && first == "extension" {
		return domain.DirectionInternal
	}
	if src == "extension" && systemDestTypes[first] {
		return domain.DirectionInternal
	}
	if src == "extension" {
		return domain.DirectionOutbound
	}
	return domain.DirectionInbound
}

func callerName(row repository.CallAggregateRow) string {
	if strings.EqualFold(row.SourceDnType, "provider") {
		// Provider trunks abuse source_participant_name for the DID rule
		// label, marked by a trailing colon; only a plain value names the
		// actual caller.
		name := strings.TrimSpace(row.SourceParticipantName)
		if name != "" && !strings.HasSuffix(name, ":") {
			return displayName(row.SourceParticipantName, "")
		}
		return ""
	}
	return displayName(row.SourceParticipantName, row.SourceDnName)
}

func calleeName(row repository.CallAggregateRow) string {
	name := displayName(row.FirstDestParticipantName, row.FirstDestDnName)
	if name == "" && strings.EqualFold(row.SourceDnType, "provider") {
		if label := strings.TrimSpace(row.SourceParticipantName); strings.HasSuffix(label, ":") {
			return displayName(row.SourceParticipantName, "")
		}
	}
	return name
}

// handledByDisplay renders at most five agent names plus an overflow count.
func handledByDisplay(agents []domain.HandledByAgent, totalCount int) string {
	if len(agents) == 0 {
		return "-"
	}
	shown := agents
	if len(shown) > 5 {
		shown = shown[:5]
	}
	names := make([]string, 0, len(shown))
	for _, a := range shown {
		if a.Name != "" {
			names = append(names, a.Name)
		} else {
			names = append(names, a.Number)
		}
	}
	out := strings.Join(names, ", ")
	if totalCount > 5 {
		out += fmt.Sprintf(" (+%d)", totalCount-5)
	}
	return out
}

func displayNumber(dnNumber, participantNumber, presentation string) string {
	if strings.TrimSpace(participantNumber) != "" {
		return participantNumber
	}
	if p := strings.TrimSpace(presentation); p != "" && !strings.Contains(p, ":") {
		return p
	}
	if dnNumber != "" {
		return dnNumber
	}
	return "-"
}

func displayName(participantName, dnName string) string {
	if name := strings.TrimSpace(participantName); name != "" {
		return strings.TrimSpace(strings.TrimSuffix(name, ":"))
	}
	if name := strings.TrimSpace(dnName); name != "" {
		return name
	}
	return ""
}

func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func roundSeconds(d time.Duration) int {
	s := int(d.Round(time.Second).Seconds())
	if s < 0 {
		return 0
	}
	return s
}

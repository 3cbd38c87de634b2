package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/domain"
	"gorm.io/gorm"
)

// GormCDRRepository reads the 3CX cdroutput export. All access is read-only;
// the export pipeline owns writes to that table.
type GormCDRRepository struct {
	db *gorm.DB
}

// NewGormCDRRepository creates a new CDR repository
func NewGormCDRRepository(db *gorm.DB) *GormCDRRepository {
	return &GormCDRRepository{db: db}
}

// GetCallSegments returns every segment of one logical call in chronological order.
func (r *GormCDRRepository) GetCallSegments(ctx context.Context, callHistoryID string) ([]domain.CDRSegment, error) {
	var segments []domain.CDRSegment
	err := r.db.WithContext(ctx).
		Where("call_history_id = ?", callHistoryID).
		Order("cdr_started_at ASC").
		Find(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get call segments: %w", err)
	}
	return segments, nil
}

// CallAggregateRow is one raw aggregated row: a logical call collapsed to its
// first, last and first-answered segments plus JSON side aggregates. The
// service layer turns it into a domain.AggregatedCallLog.
type CallAggregateRow struct {
	CallHistoryID  string     `gorm:"column:call_history_id"`
	SegmentCount   int        `gorm:"column:segment_count"`
	FirstStartedAt *time.Time `gorm:"column:first_started_at"`
	LastEndedAt    *time.Time `gorm:"column:last_ended_at"`
	FirstAnswered  *time.Time `gorm:"column:first_answered_at"`

	SourceDnNumber        string `gorm:"column:source_dn_number"`
	SourceParticipantTel  string `gorm:"column:source_participant_phone_number"`
	SourceParticipantName string `gorm:"column:source_participant_name"`
	SourceDnName          string `gorm:"column:source_dn_name"`
	SourceDnType          string `gorm:"column:source_dn_type"`
	SourcePresentation    string `gorm:"column:source_presentation"`

	FirstDestNumber          string `gorm:"column:first_dest_number"`
	FirstDestParticipantTel  string `gorm:"column:first_dest_participant_phone"`
	FirstDestParticipantName string `gorm:"column:first_dest_participant_name"`
	FirstDestDnName          string `gorm:"column:first_dest_dn_name"`
	FirstDestType            string `gorm:"column:first_dest_type"`

	LastDestType       string     `gorm:"column:last_dest_type"`
	LastDestEntityType string     `gorm:"column:last_dest_entity_type"`
	LastAnsweredAt     *time.Time `gorm:"column:last_answered_at"`
	LastSegStartedAt   *time.Time `gorm:"column:last_segment_started_at"`
	LastSegEndedAt     *time.Time `gorm:"column:last_segment_ended_at"`
	TerminationReason  string     `gorm:"column:termination_reason"`
	TerminationDetails string     `gorm:"column:termination_reason_details"`

	AnsweredAt          *time.Time `gorm:"column:answered_at"`
	TalkDurationSeconds float64    `gorm:"column:talk_duration_seconds"`

	HandledByAgentsJSON string  `gorm:"column:handled_by_agents"`
	HandledByTotalTalk  float64 `gorm:"column:handled_by_total_talk"`
	HandledByCount      int     `gorm:"column:handled_by_count"`
	CallQueuesJSON      string  `gorm:"column:call_queues"`
	QueueCount          int     `gorm:"column:queue_count"`
	CallJourneyJSON     string  `gorm:"column:call_journey"`
}

// searchPattern is a parsed wildcard search: a bare value matches exactly,
// '*' at either end loosens it to a prefix/suffix/contains ILIKE.
type searchPattern struct {
	mode  string // exact, startsWith, endsWith, contains
	value string
}

func parseSearchPattern(input string) searchPattern {
	trimmed := strings.TrimSpace(input)
	starts := strings.HasPrefix(trimmed, "*")
	ends := strings.HasSuffix(trimmed, "*") && len(trimmed) > 1 || (trimmed == "*")
	value := strings.Trim(trimmed, "*")

	switch {
	case starts && ends:
		return searchPattern{mode: "contains", value: value}
	case starts:
		return searchPattern{mode: "endsWith", value: value}
	case ends:
		return searchPattern{mode: "startsWith", value: value}
	default:
		return searchPattern{mode: "exact", value: value}
	}
}

// condition renders the pattern as a parameterized predicate on field.
func (p searchPattern) condition(field string) (string, interface{}) {
	switch p.mode {
	case "startsWith":
		return field + " ILIKE ?", p.value + "%"
	case "endsWith":
		return field + " ILIKE ?", "%" + p.value
	case "contains":
		return field + " ILIKE ?", "%" + p.value + "%"
	default:
		return "LOWER(" + field + ") = LOWER(?)", p.value
	}
}

func (p searchPattern) anyOf(fields ...string) (string, []interface{}) {
	conds := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		c, a := p.condition(f)
		conds = append(conds, c)
		args = append(args, a)
	}
	return "(" + strings.Join(conds, " OR ") + ")", args
}

// Destination types handled by the PBX itself rather than a person. An
// answered_at on these means the system picked up, not a human.
const systemDestTypes = "'queue', 'ring_group', 'ring_group_ring_all', 'ivr', 'process', 'parking'"
const systemEntityTypes = "'queue', 'ivr'"

func directionCondition(directions []domain.CallDirection) string {
	if len(directions) == 0 || len(directions) >= 4 {
		return ""
	}
	var conds []string
	for _, d := range directions {
		switch d {
		case domain.DirectionBridge:
			conds = append(conds, "(fs.source_dn_type = 'bridge' OR fs.destination_dn_type = 'bridge' OR ls.last_dest_type = 'bridge')")
		case domain.DirectionInbound:
			conds = append(conds, "(fs.source_dn_type != 'extension' AND fs.source_dn_type != 'bridge' AND (ls.last_dest_type != 'bridge' OR ls.last_dest_type IS NULL))")
		case domain.DirectionOutbound:
			conds = append(conds, "(fs.source_dn_type = 'extension' AND fs.destination_dn_type NOT IN ('extension', 'bridge', "+systemDestTypes+") AND (ls.last_dest_type != 'bridge' OR ls.last_dest_type IS NULL))")
		case domain.DirectionInternal:
			conds = append(conds, "(fs.source_dn_type = 'extension' AND (fs.destination_dn_type = 'extension' OR fs.destination_dn_type IN ("+systemDestTypes+")))")
		}
	}
	if len(conds) == 0 {
		return ""
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}

func statusCondition(statuses []domain.CallStatus) string {
	if len(statuses) == 0 || len(statuses) >= 4 {
		return ""
	}
	var conds []string
	for _, s := range statuses {
		switch s {
		case domain.StatusVoicemail:
			conds = append(conds, "(ls.last_dest_type IN ('vmail_console', 'voicemail') OR ls.last_dest_entity_type = 'voicemail')")
		case domain.StatusBusy:
			conds = append(conds, "(ls.termination_reason_details ILIKE '%busy%')")
		case domain.StatusAnswered:
			conds = append(conds, `(
				COALESCE(ls.last_dest_entity_type, '') NOT IN ('voicemail')
				AND COALESCE(ls.termination_reason_details, '') NOT ILIKE '%busy%'
				AND COALESCE(ls.last_dest_type, '') NOT IN ('vmail_console', 'voicemail')
				AND (
					(COALESCE(ls.last_dest_type, '') IN (`+systemDestTypes+`) OR COALESCE(ls.last_dest_entity_type, '') IN (`+systemEntityTypes+`))
					AND ans.answered_at IS NOT NULL
					OR
					(COALESCE(ls.last_dest_type, '') NOT IN (`+systemDestTypes+`) AND COALESCE(ls.last_dest_entity_type, '') NOT IN (`+systemEntityTypes+`))
					AND ls.cdr_answered_at IS NOT NULL
					AND EXTRACT(EPOCH FROM (ls.last_segment_ended_at - ls.last_segment_started_at)) > 1
				)
			)`)
		case domain.StatusAbandoned:
			conds = append(conds, `(
				COALESCE(ls.termination_reason_details, '') NOT ILIKE '%busy%'
				AND COALESCE(ls.last_dest_type, '') NOT IN ('vmail_console', 'voicemail')
				AND COALESCE(ls.last_dest_entity_type, '') != 'voicemail'
				AND (
					(COALESCE(ls.last_dest_type, '') IN (`+systemDestTypes+`) OR COALESCE(ls.last_dest_entity_type, '') IN (`+systemEntityTypes+`))
					AND ls.cdr_answered_at IS NOT NULL
					AND ans.answered_at IS NULL
					OR
					(COALESCE(ls.last_dest_type, '') IN (`+systemDestTypes+`) OR COALESCE(ls.last_dest_entity_type, '') IN (`+systemEntityTypes+`))
					AND ls.cdr_answered_at IS NULL
					OR
					(COALESCE(ls.last_dest_type, '') NOT IN (`+systemDestTypes+`) AND COALESCE(ls.last_dest_entity_type, '') NOT IN (`+systemEntityTypes+`))
					AND (ls.cdr_answered_at IS NULL OR EXTRACT(EPOCH FROM (ls.last_segment_ended_at - ls.last_segment_started_at)) <= 1)
				)
			)`)
		}
	}
	if len(conds) == 0 {
		return ""
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}

// GetAggregatedCallLogs collapses cdroutput segments into one row per logical
// call and applies the dashboard's filters. Returns the page of rows and the
// unpaginated total.
func (r *GormCDRRepository) GetAggregatedCallLogs(ctx context.Context, start, end time.Time, filters domain.LogsFilters, page domain.LogsPage) ([]CallAggregateRow, int, error) {
	pageNumber := page.Page
	if pageNumber < 1 {
		pageNumber = 1
	}
	limit := page.PageSize
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	offset := (pageNumber - 1) * limit

	// Segment-level filter, applied while grouping.
	segConds := []string{"cdr_started_at >= ?", "cdr_started_at <= ?"}
	segArgs := []interface{}{start, end}

	if s := strings.TrimSpace(filters.CallerSearch); s != "" {
		cond, args := parseSearchPattern(s).anyOf(
			"source_dn_number",
			"source_participant_phone_number",
			"source_participant_name",
			"source_dn_name",
		)
		segConds = append(segConds, cond)
		segArgs = append(segArgs, args...)
	}
	if filters.DurationMin != nil {
		segConds = append(segConds, "EXTRACT(EPOCH FROM (cdr_ended_at - cdr_answered_at)) >= ?")
		segArgs = append(segArgs, *filters.DurationMin)
	}
	if filters.DurationMax != nil {
		segConds = append(segConds, "EXTRACT(EPOCH FROM (cdr_ended_at - cdr_answered_at)) <= ?")
		segArgs = append(segArgs, *filters.DurationMax)
	}
	if s := strings.TrimSpace(filters.IDSearch); s != "" {
		cond, arg := parseSearchPattern(s).condition("call_history_id::text")
		segConds = append(segConds, cond)
		segArgs = append(segArgs, arg)
	}
	segWhere := strings.Join(segConds, " AND ")

	// Date-only filter for the side CTEs. The answered and handled-by
	// segments may not match the caller/callee search themselves.
	dateWhere := "cdr_started_at >= ? AND cdr_started_at <= ?"
	dateArgs := []interface{}{start, end}

	// Post-aggregation filter.
	var aggConds []string
	var aggArgs []interface{}
	if c := directionCondition(filters.Directions); c != "" {
		aggConds = append(aggConds, c)
	}
	if c := statusCondition(filters.Statuses); c != "" {
		aggConds = append(aggConds, c)
	}
	if s := strings.TrimSpace(filters.HandledBySearch); s != "" {
		aggConds = append(aggConds, "hb.agents::text ILIKE ?")
		aggArgs = append(aggArgs, "%"+strings.Trim(s, "*")+"%")
	}
	if s := strings.TrimSpace(filters.QueueSearch); s != "" {
		aggConds = append(aggConds, "cq.queues::text ILIKE ?")
		aggArgs = append(aggArgs, "%"+strings.Trim(s, "*")+"%")
	}
	if filters.SegmentCountMin != nil {
		aggConds = append(aggConds, "ca.segment_count >= ?")
		aggArgs = append(aggArgs, *filters.SegmentCountMin)
	}
	if filters.SegmentCountMax != nil {
		aggConds = append(aggConds, "ca.segment_count <= ?")
		aggArgs = append(aggArgs, *filters.SegmentCountMax)
	}

	calleeCTE := ""
	calleeJoin := ""
	var calleeArgs []interface{}
	if s := strings.TrimSpace(filters.CalleeSearch); s != "" {
		cond, args := parseSearchPattern(s).anyOf(
			"destination_dn_number",
			"destination_participant_phone_number",
			"destination_participant_name",
			"destination_dn_name",
			"source_participant_name",
		)
		calleeCTE = `,
			callee_filter AS (
				SELECT call_history_id
				FROM (
					SELECT DISTINCT ON (call_history_id)
						call_history_id,
						destination_dn_number,
						destination_participant_phone_number,
						destination_participant_name,
						destination_dn_name,
						source_participant_name
					FROM cdroutput
					WHERE ` + dateWhere + `
					ORDER BY call_history_id, cdr_started_at ASC
				) first_dest
				WHERE ` + cond + `
			)`
		calleeJoin = "JOIN callee_filter cf ON ca.call_history_id = cf.call_history_id"
		calleeArgs = append(calleeArgs, dateArgs...)
		calleeArgs = append(calleeArgs, args...)
	}

	aggWhere := ""
	if len(aggConds) > 0 {
		aggWhere = "WHERE " + strings.Join(aggConds, " AND ")
	}

	body := `WITH call_aggregates AS (
			SELECT
				call_history_id,
				COUNT(*) as segment_count,
				MIN(cdr_started_at) as first_started_at,
				MAX(cdr_ended_at) as last_ended_at,
				MIN(cdr_answered_at) as first_answered_at
			FROM cdroutput
			WHERE ` + segWhere + `
			GROUP BY call_history_id
		),
		first_segments AS (
			SELECT DISTINCT ON (c.call_history_id)
				c.call_history_id,
				c.source_dn_number,
				c.source_participant_phone_number,
				c.source_participant_name,
				c.source_dn_name,
				c.source_dn_type,
				c.source_presentation,
				c.destination_dn_number as first_dest_number,
				c.destination_participant_phone_number as first_dest_participant_phone,
				c.destination_participant_name as first_dest_participant_name,
				c.destination_dn_name as first_dest_dn_name,
				c.destination_dn_type
			FROM cdroutput c
			WHERE ` + dateWhere + `
			  AND c.call_history_id IN (SELECT call_history_id FROM call_aggregates)
			ORDER BY c.call_history_id, c.cdr_started_at ASC
		),
		last_segments AS (
			SELECT DISTINCT ON (call_history_id)
				call_history_id,
				destination_dn_type as last_dest_type,
				destination_entity_type as last_dest_entity_type,
				cdr_answered_at,
				cdr_started_at as last_segment_started_at,
				cdr_ended_at as last_segment_ended_at,
				termination_reason,
				termination_reason_details
			FROM cdroutput
			WHERE ` + segWhere + `
			ORDER BY call_history_id, cdr_ended_at DESC
		),
		answered_segments AS (
			SELECT DISTINCT ON (c.call_history_id)
				c.call_history_id,
				c.cdr_answered_at as answered_at,
				EXTRACT(EPOCH FROM (c.cdr_ended_at - c.cdr_answered_at)) as talk_duration_seconds
			FROM cdroutput c
			WHERE ` + dateWhere + `
			  AND c.cdr_answered_at IS NOT NULL
			  AND c.destination_dn_type = 'extension'
			  AND c.call_history_id IN (SELECT call_history_id FROM call_aggregates)
			ORDER BY c.call_history_id, c.cdr_answered_at ASC
		),
		handled_by AS (
			SELECT
				c.call_history_id,
				JSON_AGG(
					JSON_BUILD_OBJECT(
						'number', c.destination_dn_number,
						'name', COALESCE(c.destination_dn_name, c.destination_participant_name, c.destination_dn_number)
					) ORDER BY c.cdr_answered_at DESC
				) as agents,
				SUM(EXTRACT(EPOCH FROM (c.cdr_ended_at - c.cdr_answered_at))) as total_talk_seconds,
				COUNT(*) as agent_count
			FROM cdroutput c
			WHERE ` + dateWhere + `
			  AND c.cdr_answered_at IS NOT NULL
			  AND c.destination_dn_type = 'extension'
			  AND c.call_history_id IN (SELECT call_history_id FROM call_aggregates)
			GROUP BY c.call_history_id
		),
		call_queues AS (
			SELECT
				dq.call_history_id,
				JSON_AGG(
					JSON_BUILD_OBJECT('number', dq.destination_dn_number, 'name', dq.queue_name)
				) as queues,
				COUNT(*) as queue_count
			FROM (
				SELECT DISTINCT
					c.call_history_id,
					c.destination_dn_number,
					COALESCE(c.destination_dn_name, c.destination_dn_number) as queue_name
				FROM cdroutput c
				WHERE ` + dateWhere + `
				  AND c.destination_dn_type = 'queue'
				  AND c.call_history_id IN (SELECT call_history_id FROM call_aggregates)
			) dq
			GROUP BY dq.call_history_id
		),
		queue_outcome AS (
			SELECT DISTINCT ON (p.originating_cdr_id)
				p.originating_cdr_id,
				p.destination_dn_name as agent_name,
				p.destination_dn_number as agent_number
			FROM cdroutput p
			WHERE ` + dateWhere + `
			  AND p.call_history_id IN (SELECT call_history_id FROM call_aggregates)
			  AND p.creation_forward_reason = 'polling'
			  AND p.cdr_answered_at IS NOT NULL
			ORDER BY p.originating_cdr_id, p.cdr_answered_at ASC
		),
		call_journey AS (
			SELECT
				j.call_history_id,
				JSON_AGG(
					JSON_BUILD_OBJECT(
						'type', j.step_type,
						'label', j.step_label,
						'detail', j.step_detail,
						'result', j.step_result,
						'agent', j.agent_name
					) ORDER BY j.step_order
				) as journey
			FROM (
				SELECT
					c.call_history_id,
					c.cdr_started_at as step_order,
					CASE
						WHEN c.destination_entity_type = 'voicemail' THEN 'voicemail'
						WHEN c.destination_dn_type = 'queue' THEN 'queue'
						ELSE 'direct'
					END as step_type,
					c.destination_dn_number as step_label,
					CASE
						WHEN c.destination_entity_type = 'voicemail' THEN 'Messagerie ' || COALESCE(c.destination_dn_name, c.destination_dn_number)
						ELSE COALESCE(c.destination_dn_name, c.destination_dn_number)
					END as step_detail,
					COALESCE(qo.agent_name, qo.agent_number) as agent_name,
					CASE
						WHEN c.destination_entity_type = 'voicemail' THEN 'voicemail'
						WHEN c.destination_dn_type = 'queue' THEN
							CASE WHEN qo.originating_cdr_id IS NOT NULL THEN 'answered' ELSE 'not_answered' END
						ELSE
							CASE
								WHEN c.cdr_answered_at IS NOT NULL THEN 'answered'
								WHEN c.termination_reason_details = 'busy' THEN 'busy'
								ELSE 'not_answered'
							END
					END as step_result
				FROM cdroutput c
				LEFT JOIN queue_outcome qo ON c.cdr_id = qo.originating_cdr_id
				WHERE ` + dateWhere + `
				  AND c.call_history_id IN (SELECT call_history_id FROM call_aggregates)
				  AND (
					  c.destination_entity_type = 'voicemail'
					  OR c.destination_dn_type = 'queue'
					  OR (
						  c.destination_dn_type = 'extension'
						  AND c.destination_entity_type != 'voicemail'
						  AND c.creation_forward_reason IS DISTINCT FROM 'polling'
						  AND (
							  c.creation_forward_reason = 'by_did'
							  OR NOT (
								  c.cdr_answered_at IS NULL
								  AND EXTRACT(EPOCH FROM (c.cdr_ended_at - c.cdr_started_at)) < 1
							  )
						  )
					  )
				  )
			) j
			GROUP BY j.call_history_id
		)` + calleeCTE + `
		SELECT
			ca.call_history_id,
			ca.segment_count,
			ca.first_started_at,
			ca.last_ended_at,
			ca.first_answered_at,
			fs.source_dn_number,
			fs.source_participant_phone_number,
			fs.source_participant_name,
			fs.source_dn_name,
			fs.source_dn_type,
			fs.source_presentation,
			fs.first_dest_number,
			fs.first_dest_participant_phone,
			fs.first_dest_participant_name,
			fs.first_dest_dn_name,
			fs.destination_dn_type as first_dest_type,
			ls.last_dest_type,
			ls.last_dest_entity_type,
			ls.cdr_answered_at as last_answered_at,
			ls.last_segment_started_at,
			ls.last_segment_ended_at,
			ls.termination_reason,
			ls.termination_reason_details,
			ans.answered_at,
			ans.talk_duration_seconds,
			hb.agents as handled_by_agents,
			hb.total_talk_seconds as handled_by_total_talk,
			hb.agent_count as handled_by_count,
			cq.queues as call_queues,
			cq.queue_count,
			cj.journey as call_journey
		FROM call_aggregates ca
		JOIN first_segments fs ON ca.call_history_id = fs.call_history_id
		JOIN last_segments ls ON ca.call_history_id = ls.call_history_id
		LEFT JOIN answered_segments ans ON ca.call_history_id = ans.call_history_id
		LEFT JOIN handled_by hb ON ca.call_history_id = hb.call_history_id
		LEFT JOIN call_queues cq ON ca.call_history_id = cq.call_history_id
		LEFT JOIN call_journey cj ON ca.call_history_id = cj.call_history_id
		` + calleeJoin + `
		` + aggWhere

	// Argument order must track placeholder order inside body.
	var args []interface{}
	args = append(args, segArgs...)  // call_aggregates
	args = append(args, dateArgs...) // first_segments
	args = append(args, segArgs...)  // last_segments
	args = append(args, dateArgs...) // answered_segments
	args = append(args, dateArgs...) // handled_by
	args = append(args, dateArgs...) // call_queues
	args = append(args, dateArgs...) // queue_outcome
	args = append(args, dateArgs...) // call_journey
	args = append(args, calleeArgs...)
	args = append(args, aggArgs...)

	var total int
	countQuery := "SELECT COUNT(*) FROM (" + body + ") sub"
	if err := r.db.WithContext(ctx).Raw(countQuery, args...).Scan(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count aggregated call logs: %w", err)
	}

	pageQuery := body + " ORDER BY ca.first_started_at DESC LIMIT ? OFFSET ?"
	pageArgs := append(append([]interface{}{}, args...), limit, offset)

	var rows []CallAggregateRow
	if err := r.db.WithContext(ctx).Raw(pageQuery, pageArgs...).Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get aggregated call logs: %w", err)
	}
	return rows, total, nil
}

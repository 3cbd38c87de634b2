package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/domain"
	"gorm.io/gorm"
)

// GormStatsRepository computes queue and agent statistics straight from the
// cdroutput table.
type GormStatsRepository struct {
	db *gorm.DB
}

// NewGormStatsRepository creates a new statistics repository
func NewGormStatsRepository(db *gorm.DB) *GormStatsRepository {
	return &GormStatsRepository{db: db}
}

// ListQueues returns every queue seen in the CDR data with its most recent name.
func (r *GormStatsRepository) ListQueues(ctx context.Context) ([]domain.QueueRef, error) {
	var rows []struct {
		QueueNumber string `gorm:"column:queue_number"`
		QueueName   string `gorm:"column:queue_name"`
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (destination_dn_number)
			destination_dn_number AS queue_number,
			destination_dn_name AS queue_name
		FROM cdroutput
		WHERE destination_dn_type = 'queue'
		ORDER BY destination_dn_number, cdr_started_at DESC`).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}

	queues := make([]domain.QueueRef, 0, len(rows))
	for _, row := range rows {
		queues = append(queues, domain.QueueRef{Number: row.QueueNumber, Name: row.QueueName})
	}
	return queues, nil
}

// queueKPIRow carries the single aggregate row of the passage outcome query.
type queueKPIRow struct {
	TotalPassages       int     `gorm:"column:total_passages"`
	AnsweredPassages    int     `gorm:"column:answered_passages"`
	TransferredPassages int     `gorm:"column:answered_and_transferred_passages"`
	AbandonedPassages   int     `gorm:"column:abandoned_passages"`
	AbandonedBefore10s  int     `gorm:"column:abandoned_before_10s_passages"`
	AbandonedAfter10s   int     `gorm:"column:abandoned_after_10s_passages"`
	OverflowPassages    int     `gorm:"column:overflow_passages"`
	UniqueCalls         int     `gorm:"column:unique_calls"`
	UniqueAnswered      int     `gorm:"column:unique_answered"`
	UniqueAbandoned     int     `gorm:"column:unique_abandoned"`
	UniqueOverflow      int     `gorm:"column:unique_overflow"`
	AvgWaitTime         float64 `gorm:"column:avg_wait_time"`
}

// QueueKPIs computes a queue's performance over a date range.
//
// Outcome ranking per passage: answered by a polled agent wins, then overflow
// to another queue later in the same logical call, else abandoned. Passages
// count every traversal; unique calls count the first passage only, so the
// unique buckets always sum to the unique total.
func (r *GormStatsRepository) QueueKPIs(ctx context.Context, queueNumber string, start, end time.Time) (*domain.QueueKPIs, error) {
	var nameRow struct {
		QueueName string `gorm:"column:queue_name"`
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT destination_dn_name AS queue_name
		FROM cdroutput
		WHERE destination_dn_number = ?
		  AND destination_dn_type = 'queue'
		LIMIT 1`, queueNumber).Scan(&nameRow).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get queue name: %w", err)
	}
	queueName := nameRow.QueueName
	if queueName == "" {
		queueName = queueNumber
	}

	var row queueKPIRow
	err = r.db.WithContext(ctx).Raw(`
		WITH all_queue_passages AS (
			SELECT call_history_id, cdr_id, cdr_started_at, cdr_ended_at
			FROM cdroutput
			WHERE destination_dn_number = ?
			  AND destination_dn_type = 'queue'
			  AND cdr_started_at >= ?
			  AND cdr_started_at <= ?
		),
		outcomes AS (
			SELECT
				aqp.cdr_id,
				aqp.call_history_id,
				aqp.cdr_started_at,
				aqp.cdr_ended_at,
				MAX(CASE
					WHEN ans.originating_cdr_id = aqp.cdr_id
						 AND ans.destination_dn_type = 'extension'
						 AND ans.cdr_answered_at IS NOT NULL
					THEN 1 ELSE 0 END) as answered_here,
				MAX(CASE
					WHEN ans.originating_cdr_id = aqp.cdr_id
						 AND ans.destination_dn_type = 'extension'
						 AND ans.cdr_answered_at IS NOT NULL
						 AND ans.termination_reason = 'continued_in'
					THEN 1 ELSE 0 END) as answered_and_transferred,
				MAX(CASE
					WHEN other_q.destination_dn_type = 'queue'
						 AND other_q.destination_dn_number != ?
						 AND other_q.cdr_started_at > aqp.cdr_started_at
					THEN 1 ELSE 0 END) as forwarded_to_other_queue,
				MIN(CASE
					WHEN ans.originating_cdr_id = aqp.cdr_id
						 AND ans.destination_dn_type = 'extension'
						 AND ans.cdr_answered_at IS NOT NULL
					THEN EXTRACT(EPOCH FROM (ans.cdr_answered_at - aqp.cdr_started_at))
					ELSE NULL END) as wait_time_seconds
			FROM all_queue_passages aqp
			LEFT JOIN cdroutput ans ON ans.originating_cdr_id = aqp.cdr_id
			LEFT JOIN cdroutput other_q ON other_q.call_history_id = aqp.call_history_id
									   AND other_q.cdr_started_at > aqp.cdr_started_at
			GROUP BY aqp.cdr_id, aqp.call_history_id, aqp.cdr_started_at, aqp.cdr_ended_at
		),
		final_outcomes AS (
			SELECT
				cdr_id,
				call_history_id,
				cdr_started_at,
				wait_time_seconds,
				answered_and_transferred,
				CASE
					WHEN answered_here = 1 THEN 'answered'
					WHEN forwarded_to_other_queue = 1 THEN 'overflow'
					ELSE 'abandoned'
				END as outcome,
				EXTRACT(EPOCH FROM (cdr_ended_at - cdr_started_at)) as time_in_queue
			FROM outcomes
		),
		first_passage AS (
			SELECT DISTINCT ON (call_history_id)
				call_history_id,
				outcome as first_outcome
			FROM final_outcomes
			ORDER BY call_history_id, cdr_started_at ASC
		)
		SELECT
			COUNT(*) as total_passages,
			SUM(CASE WHEN outcome = 'answered' THEN 1 ELSE 0 END) as answered_passages,
			SUM(CASE WHEN outcome = 'answered' AND answered_and_transferred = 1 THEN 1 ELSE 0 END) as answered_and_transferred_passages,
			SUM(CASE WHEN outcome = 'abandoned' THEN 1 ELSE 0 END) as abandoned_passages,
			SUM(CASE WHEN outcome = 'abandoned' AND time_in_queue < 10 THEN 1 ELSE 0 END) as abandoned_before_10s_passages,
			SUM(CASE WHEN outcome = 'abandoned' AND time_in_queue >= 10 THEN 1 ELSE 0 END) as abandoned_after_10s_passages,
			SUM(CASE WHEN outcome = 'overflow' THEN 1 ELSE 0 END) as overflow_passages,
			(SELECT COUNT(*) FROM first_passage) as unique_calls,
			(SELECT COUNT(*) FROM first_passage WHERE first_outcome = 'answered') as unique_answered,
			(SELECT COUNT(*) FROM first_passage WHERE first_outcome = 'abandoned') as unique_abandoned,
			(SELECT COUNT(*) FROM first_passage WHERE first_outcome = 'overflow') as unique_overflow,
			COALESCE(AVG(wait_time_seconds), 0) as avg_wait_time
		FROM final_outcomes`,
		queueNumber, start, end, queueNumber).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute queue KPIs: %w", err)
	}

	overflowDests, err := r.overflowDestinations(ctx, queueNumber, start, end)
	if err != nil {
		return nil, err
	}
	transferDests, err := r.transferDestinations(ctx, queueNumber, start, end)
	if err != nil {
		return nil, err
	}

	externalTransfers := 0
	for _, d := range transferDests {
		externalTransfers += d.Count
	}

	return &domain.QueueKPIs{
		QueueNumber: queueNumber,
		QueueName:   queueName,

		CallsReceived: row.TotalPassages,
		UniqueCalls:   row.UniqueCalls,

		CallsAnswered:               row.AnsweredPassages,
		UniqueCallsAnswered:         row.UniqueAnswered,
		CallsAnsweredAndTransferred: externalTransfers,

		CallsAbandoned:       row.AbandonedPassages,
		UniqueCallsAbandoned: row.UniqueAbandoned,
		AbandonedBefore10s:   row.AbandonedBefore10s,
		AbandonedAfter10s:    row.AbandonedAfter10s,

		CallsOverflow:       row.OverflowPassages,
		UniqueCallsOverflow: row.UniqueOverflow,

		AvgWaitTimeSeconds: int(math.Round(row.AvgWaitTime)),

		OverflowDestinations: overflowDests,
		TransferDestinations: transferDests,
	}, nil
}

// overflowDestinations ranks where unanswered first passages went next, one
// destination per unique call.
func (r *GormStatsRepository) overflowDestinations(ctx context.Context, queueNumber string, start, end time.Time) ([]domain.DestinationCount, error) {
	var rows []struct {
		Destination     string `gorm:"column:destination"`
		DestinationName string `gorm:"column:destination_name"`
		Count           int    `gorm:"column:count"`
	}
	err := r.db.WithContext(ctx).Raw(`
		WITH first_queue_passage AS (
			SELECT DISTINCT ON (call_history_id)
				call_history_id, cdr_id, cdr_started_at
			FROM cdroutput
			WHERE destination_dn_number = ?
			  AND destination_dn_type = 'queue'
			  AND cdr_started_at >= ?
			  AND cdr_started_at <= ?
			ORDER BY call_history_id, cdr_started_at ASC
		),
		queue_with_answer_status AS (
			SELECT
				fqp.cdr_id,
				fqp.call_history_id,
				fqp.cdr_started_at,
				MAX(CASE
					WHEN ans.originating_cdr_id = fqp.cdr_id
						 AND ans.destination_dn_type = 'extension'
						 AND ans.cdr_answered_at IS NOT NULL
					THEN 1 ELSE 0 END) as answered_here
			FROM first_queue_passage fqp
			LEFT JOIN cdroutput ans ON ans.originating_cdr_id = fqp.cdr_id
			GROUP BY fqp.cdr_id, fqp.call_history_id, fqp.cdr_started_at
		),
		first_overflow_destination AS (
			SELECT DISTINCT ON (qas.call_history_id)
				qas.call_history_id,
				other_q.destination_dn_number as destination,
				other_q.destination_dn_name as destination_name
			FROM queue_with_answer_status qas
			JOIN cdroutput other_q ON other_q.call_history_id = qas.call_history_id
								  AND other_q.destination_dn_type = 'queue'
								  AND other_q.destination_dn_number != ?
								  AND other_q.cdr_started_at > qas.cdr_started_at
			WHERE qas.answered_here = 0
			ORDER BY qas.call_history_id, other_q.cdr_started_at ASC
		)
		SELECT destination, destination_name, COUNT(*) as count
		FROM first_overflow_destination
		GROUP BY destination, destination_name
		ORDER BY count DESC`,
		queueNumber, start, end, queueNumber).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get overflow destinations: %w", err)
	}

	dests := make([]domain.DestinationCount, 0, len(rows))
	for _, row := range rows {
		name := row.DestinationName
		if name == "" {
			name = row.Destination
		}
		dests = append(dests, domain.DestinationCount{
			Destination:     row.Destination,
			DestinationName: name,
			DestinationType: "queue",
			Count:           row.Count,
		})
	}
	return dests, nil
}

// transferDestinations ranks where agents sent answered calls, excluding the
// queue's own members so intra-queue handoffs don't count as transfers out.
func (r *GormStatsRepository) transferDestinations(ctx context.Context, queueNumber string, start, end time.Time) ([]domain.DestinationCount, error) {
	var rows []struct {
		Destination     string `gorm:"column:destination"`
		DestinationName string `gorm:"column:destination_name"`
		DestinationType string `gorm:"column:destination_type"`
		Count           int    `gorm:"column:count"`
	}
	err := r.db.WithContext(ctx).Raw(`
		WITH first_queue_passage AS (
			SELECT DISTINCT ON (call_history_id)
				call_history_id, cdr_id, cdr_started_at
			FROM cdroutput
			WHERE destination_dn_number = ?
			  AND destination_dn_type = 'queue'
			  AND cdr_started_at >= ?
			  AND cdr_started_at <= ?
			ORDER BY call_history_id, cdr_started_at ASC
		),
		queue_agents AS (
			SELECT DISTINCT c.destination_dn_number as extension
			FROM first_queue_passage fqp
			JOIN cdroutput c ON c.originating_cdr_id = fqp.cdr_id
			WHERE c.destination_dn_type = 'extension'
			  AND c.cdr_answered_at IS NOT NULL
		),
		agent_transferred AS (
			SELECT ans.cdr_id as agent_cdr_id, ans.continued_in_cdr_id
			FROM first_queue_passage fqp
			JOIN cdroutput ans ON ans.originating_cdr_id = fqp.cdr_id
							  AND ans.destination_dn_type = 'extension'
							  AND ans.cdr_answered_at IS NOT NULL
							  AND ans.termination_reason = 'continued_in'
		),
		transfer_destinations AS (
			SELECT
				dest.destination_dn_number as destination,
				dest.destination_dn_name as destination_name,
				dest.destination_dn_type as destination_type
			FROM agent_transferred at_
			JOIN cdroutput dest ON dest.cdr_id = at_.continued_in_cdr_id
			WHERE dest.destination_dn_type IN ('extension', 'queue')
			  AND dest.destination_dn_number NOT IN (SELECT extension FROM queue_agents)
		)
		SELECT destination, destination_name, destination_type, COUNT(*) as count
		FROM transfer_destinations
		GROUP BY destination, destination_name, destination_type
		ORDER BY count DESC`,
		queueNumber, start, end).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer destinations: %w", err)
	}

	dests := make([]domain.DestinationCount, 0, len(rows))
	for _, row := range rows {
		name := row.DestinationName
		if name == "" {
			name = row.Destination
		}
		destType := row.DestinationType
		if destType == "" {
			destType = "unknown"
		}
		dests = append(dests, domain.DestinationCount{
			Destination:     row.Destination,
			DestinationName: name,
			DestinationType: destType,
			Count:           row.Count,
		})
	}
	return dests, nil
}

// AgentPerformance aggregates per-agent handling of a queue's calls over the
// date range. Only agents with at least one answered call appear.
func (r *GormStatsRepository) AgentPerformance(ctx context.Context, queueNumber string, start, end time.Time) ([]domain.AgentPerformance, error) {
	var rows []struct {
		Extension         string  `gorm:"column:extension"`
		Name              string  `gorm:"column:name"`
		Answered          int     `gorm:"column:answered"`
		TotalHandlingTime float64 `gorm:"column:total_handling_time"`
	}
	err := r.db.WithContext(ctx).Raw(`
		WITH all_queue_passages AS (
			SELECT call_history_id, cdr_id, cdr_started_at
			FROM cdroutput
			WHERE destination_dn_number = ?
			  AND destination_dn_type = 'queue'
			  AND cdr_started_at >= ?
			  AND cdr_started_at <= ?
		)
		SELECT
			c.destination_dn_number as extension,
			c.destination_dn_name as name,
			COUNT(CASE WHEN c.cdr_answered_at IS NOT NULL
					   AND c.creation_forward_reason = 'polling'
				  THEN 1 END) as answered,
			SUM(CASE WHEN c.cdr_answered_at IS NOT NULL
				THEN EXTRACT(EPOCH FROM (c.cdr_ended_at - c.cdr_answered_at)) ELSE 0 END) as total_handling_time
		FROM all_queue_passages aqp
		JOIN cdroutput c ON c.originating_cdr_id = aqp.cdr_id
		WHERE c.destination_dn_type = 'extension'
		GROUP BY c.destination_dn_number, c.destination_dn_name
		HAVING COUNT(CASE WHEN c.cdr_answered_at IS NOT NULL
						  AND c.creation_forward_reason = 'polling'
					 THEN 1 END) > 0
		ORDER BY answered DESC`,
		queueNumber, start, end).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get agent performance: %w", err)
	}

	agents := make([]domain.AgentPerformance, 0, len(rows))
	for _, row := range rows {
		name := row.Name
		if name == "" {
			name = row.Extension
		}
		total := int(math.Round(row.TotalHandlingTime))
		avg := 0
		if row.Answered > 0 {
			avg = total / row.Answered
		}
		agents = append(agents, domain.AgentPerformance{
			Number:           row.Extension,
			Name:             name,
			CallsHandled:     row.Answered,
			TotalTalkSeconds: total,
			AvgTalkSeconds:   avg,
		})
	}
	return agents, nil
}

// DailyTrend buckets a queue's unique calls per day.
func (r *GormStatsRepository) DailyTrend(ctx context.Context, queueNumber string, start, end time.Time) ([]domain.TrendPoint, error) {
	var rows []struct {
		Bucket    string `gorm:"column:bucket"`
		Received  int    `gorm:"column:received"`
		Answered  int    `gorm:"column:answered"`
		Abandoned int    `gorm:"column:abandoned"`
	}
	err := r.db.WithContext(ctx).Raw(`
		WITH unique_queue_calls AS (
			SELECT DISTINCT ON (call_history_id)
				call_history_id,
				cdr_id,
				DATE(cdr_started_at) as call_date
			FROM cdroutput
			WHERE destination_dn_number = ?
			  AND destination_dn_type = 'queue'
			  AND cdr_started_at >= ?
			  AND cdr_started_at <= ?
			ORDER BY call_history_id, cdr_started_at ASC
		)
		SELECT
			TO_CHAR(uqc.call_date, 'YYYY-MM-DD') as bucket,
			COUNT(DISTINCT uqc.call_history_id) as received,
			COUNT(DISTINCT CASE WHEN c.cdr_answered_at IS NOT NULL
								AND c.destination_dn_type = 'extension'
						   THEN uqc.call_history_id END) as answered,
			COUNT(DISTINCT CASE WHEN c.termination_reason_details = 'terminated_by_originator'
								AND c.cdr_answered_at IS NULL
						   THEN uqc.call_history_id END) as abandoned
		FROM unique_queue_calls uqc
		LEFT JOIN cdroutput c ON c.originating_cdr_id = uqc.cdr_id
		GROUP BY uqc.call_date
		ORDER BY uqc.call_date`,
		queueNumber, start, end).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get daily trend: %w", err)
	}

	points := make([]domain.TrendPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, domain.TrendPoint{
			Bucket:    row.Bucket,
			Total:     row.Received,
			Answered:  row.Answered,
			Abandoned: row.Abandoned,
		})
	}
	return points, nil
}

// HourlyTrend buckets a queue's unique calls per hour of day, padding the
// missing hours so the chart always shows a full day.
func (r *GormStatsRepository) HourlyTrend(ctx context.Context, queueNumber string, start, end time.Time) ([]domain.TrendPoint, error) {
	var rows []struct {
		Hour      int `gorm:"column:call_hour"`
		Received  int `gorm:"column:received"`
		Answered  int `gorm:"column:answered"`
		Abandoned int `gorm:"column:abandoned"`
	}
	err := r.db.WithContext(ctx).Raw(`
		WITH unique_queue_calls AS (
			SELECT DISTINCT ON (call_history_id)
				call_history_id,
				cdr_id,
				EXTRACT(HOUR FROM cdr_started_at) as call_hour
			FROM cdroutput
			WHERE destination_dn_number = ?
			  AND destination_dn_type = 'queue'
			  AND cdr_started_at >= ?
			  AND cdr_started_at <= ?
			ORDER BY call_history_id, cdr_started_at ASC
		)
		SELECT
			uqc.call_hour,
			COUNT(DISTINCT uqc.call_history_id) as received,
			COUNT(DISTINCT CASE WHEN c.cdr_answered_at IS NOT NULL
								AND c.destination_dn_type = 'extension'
						   THEN uqc.call_history_id END) as answered,
			COUNT(DISTINCT CASE WHEN c.termination_reason_details = 'terminated_by_originator'
								AND c.cdr_answered_at IS NULL
						   THEN uqc.call_history_id END) as abandoned
		FROM unique_queue_calls uqc
		LEFT JOIN cdroutput c ON c.originating_cdr_id = uqc.cdr_id
		GROUP BY uqc.call_hour
		ORDER BY uqc.call_hour`,
		queueNumber, start, end).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get hourly trend: %w", err)
	}

	points := make([]domain.TrendPoint, 24)
	for h := 0; h < 24; h++ {
		points[h] = domain.TrendPoint{Bucket: fmt.Sprintf("%02d:00", h)}
	}
	for _, row := range rows {
		if row.Hour < 0 || row.Hour > 23 {
			continue
		}
		points[row.Hour] = domain.TrendPoint{
			Bucket:    fmt.Sprintf("%02d:00", row.Hour),
			Total:     row.Received,
			Answered:  row.Answered,
			Abandoned: row.Abandoned,
		}
	}
	return points, nil
}

package domain

import (
	"strings"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/chain"
)

// CDRSegment is one raw row of the cdroutput table as delivered by the 3CX
// export. Column names follow the upstream schema; the service never writes
// these rows, it only reads them.
type CDRSegment struct {
	CdrID         string `json:"cdr_id" gorm:"column:cdr_id;primaryKey"`
	CallHistoryID string `json:"call_history_id" gorm:"column:call_history_id;index"`

	StartedAt  time.Time  `json:"cdr_started_at" gorm:"column:cdr_started_at;index"`
	AnsweredAt *time.Time `json:"cdr_answered_at" gorm:"column:cdr_answered_at"`
	EndedAt    *time.Time `json:"cdr_ended_at" gorm:"column:cdr_ended_at"`

	SourceDnNumber               string `json:"source_dn_number" gorm:"column:source_dn_number"`
	SourceDnName                 string `json:"source_dn_name" gorm:"column:source_dn_name"`
	SourceDnType                 string `json:"source_dn_type" gorm:"column:source_dn_type"`
	SourceParticipantPhoneNumber string `json:"source_participant_phone_number" gorm:"column:source_participant_phone_number"`
	SourceParticipantName        string `json:"source_participant_name" gorm:"column:source_participant_name"`
	SourcePresentation           string `json:"source_presentation" gorm:"column:source_presentation"`

	DestinationDnNumber               string `json:"destination_dn_number" gorm:"column:destination_dn_number"`
	DestinationDnName                 string `json:"destination_dn_name" gorm:"column:destination_dn_name"`
	DestinationDnType                 string `json:"destination_dn_type" gorm:"column:destination_dn_type"`
	DestinationEntityType             string `json:"destination_entity_type" gorm:"column:destination_entity_type"`
	DestinationParticipantPhoneNumber string `json:"destination_participant_phone_number" gorm:"column:destination_participant_phone_number"`
	DestinationParticipantName        string `json:"destination_participant_name" gorm:"column:destination_participant_name"`

	CreationMethod           string `json:"creation_method" gorm:"column:creation_method"`
	CreationForwardReason    string `json:"creation_forward_reason" gorm:"column:creation_forward_reason"`
	TerminationReason        string `json:"termination_reason" gorm:"column:termination_reason"`
	TerminationReasonDetails string `json:"termination_reason_details" gorm:"column:termination_reason_details"`

	OriginatingCdrID string `json:"originating_cdr_id" gorm:"column:originating_cdr_id"`
}

func (CDRSegment) TableName() string {
	return "cdroutput"
}

// DurationSeconds is the elapsed time from start to end of the segment.
func (s CDRSegment) DurationSeconds() float64 {
	if s.EndedAt == nil {
		return 0
	}
	d := s.EndedAt.Sub(s.StartedAt).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// SourceDisplayNumber picks the most informative number for the origin
// party: the participant phone when present, otherwise the presentation
// field (unless it carries a SIP URI), otherwise the DN number.
func (s CDRSegment) SourceDisplayNumber() string {
	return displayNumber(s.SourceDnNumber, s.SourceParticipantPhoneNumber, s.SourcePresentation)
}

// DestinationDisplayNumber picks the most informative number for the target.
func (s CDRSegment) DestinationDisplayNumber() string {
	return displayNumber(s.DestinationDnNumber, s.DestinationParticipantPhoneNumber, "")
}

// SourceDisplayName resolves the origin party's name. Provider trunks abuse
// source_participant_name for the DID rule label (trailing colon); a real
// caller name never ends with one.
func (s CDRSegment) SourceDisplayName() string {
	if strings.EqualFold(s.SourceDnType, "provider") {
		name := strings.TrimSpace(s.SourceParticipantName)
		if name != "" && !strings.HasSuffix(name, ":") {
			return displayName(s.SourceParticipantName, "")
		}
		return ""
	}
	return displayName(s.SourceParticipantName, s.SourceDnName)
}

// DestinationDisplayName resolves the target's name, falling back to the
// trunk's DID rule label on inbound provider calls when nothing better is
// recorded.
func (s CDRSegment) DestinationDisplayName() string {
	name := displayName(s.DestinationParticipantName, s.DestinationDnName)
	if name == "" && strings.EqualFold(s.SourceDnType, "provider") {
		if label := strings.TrimSpace(s.SourceParticipantName); strings.HasSuffix(label, ":") {
			return displayName(s.SourceParticipantName, "")
		}
	}
	return name
}

// ToChainSegment converts the raw row into the reconstruction engine's input,
// stamping the semantic category. Missing optional fields map to zero values;
// absence of data is not an error here.
func (s CDRSegment) ToChainSegment() chain.Segment {
	seg := chain.Segment{
		ID:                       s.CdrID,
		StartedAt:                s.StartedAt,
		AnsweredAt:               s.AnsweredAt,
		DurationSeconds:          s.DurationSeconds(),
		SourceNumber:             s.SourceDisplayNumber(),
		SourceName:               s.SourceDisplayName(),
		SourceType:               s.SourceDnType,
		DestinationNumber:        s.DestinationDisplayNumber(),
		DestinationName:          s.DestinationDisplayName(),
		DestinationType:          s.DestinationDnType,
		DestinationEntityType:    s.DestinationEntityType,
		CreationMethod:           s.CreationMethod,
		CreationForwardReason:    s.CreationForwardReason,
		TerminationReason:        s.TerminationReason,
		TerminationReasonDetails: s.TerminationReasonDetails,
	}
	seg.Category = chain.Categorize(seg)
	return seg
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

package chain

import "strings"

// Categorize assigns the semantic bucket for a raw segment. The rules mirror
// how the dashboard interprets 3CX termination codes; order matters, earlier
// checks win.
func Categorize(s Segment) Category {
	term := strings.ToLower(s.TerminationReason)
	details := strings.ToLower(s.TerminationReasonDetails)
	method := strings.ToLower(s.CreationMethod)
	forward := strings.ToLower(s.CreationForwardReason)
	destType := strings.ToLower(s.DestinationType)
	destEntity := strings.ToLower(s.DestinationEntityType)
	srcType := strings.ToLower(s.SourceType)
	answered := s.AnsweredAt != nil

	switch {
	case srcType == "bridge" || destType == "bridge":
		return CategoryBridge
	case destType == "vmail_console" || destType == "voicemail" || destEntity == "voicemail":
		return CategoryVoicemail
	case destType == "script" || destType == "ivr":
		return CategoryIVR
	case destType == "queue":
		return CategoryQueue
	case destType == "unknown":
		// outbound_rule / inbound_routing legs surface as "unknown" targets
		return CategoryRouting
	case term == "redirected" && s.DurationSeconds < 1:
		return CategoryRouting
	}

	// A cancelled polling attempt is only "ringing" when somebody else took
	// the call; terminated_by_originator means the caller gave up waiting.
	if method == "route_to" && forward == "polling" && term == "cancelled" {
		switch details {
		case "completed_elsewhere", "":
			return CategoryRinging
		case "terminated_by_originator":
			return CategoryMissed
		}
	}

	if answered && destType == "extension" && s.DurationSeconds > 1 {
		return CategoryConversation
	}

	if method == "transfer" || method == "divert" {
		if answered && s.DurationSeconds > 1 {
			return CategoryConversation
		}
		if term == "continued_in" {
			return CategoryTransfer
		}
	}

	if strings.Contains(details, "busy") || term == "rejected" {
		return CategoryMissed
	}
	if details == "no_route" {
		return CategoryRouting
	}
	if !answered && (term == "src_participant_terminated" || term == "dst_participant_terminated") {
		return CategoryMissed
	}
	if answered {
		return CategoryConversation
	}
	return CategoryUnknown
}

package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		seg  Segment
		want Category
	}{
		{
			name: "bridge source wins over everything",
			seg:  Segment{SourceType: "Bridge", DestinationType: "extension", AnsweredAt: &now, DurationSeconds: 30},
			want: CategoryBridge,
		},
		{
			name: "voicemail console destination",
			seg:  Segment{DestinationType: "vmail_console"},
			want: CategoryVoicemail,
		},
		{
			name: "voicemail entity type",
			seg:  Segment{DestinationType: "extension", DestinationEntityType: "voicemail"},
			want: CategoryVoicemail,
		},
		{
			name: "ivr script",
			seg:  Segment{DestinationType: "script"},
			want: CategoryIVR,
		},
		{
			name: "queue",
			seg:  Segment{DestinationType: "Queue"},
			want: CategoryQueue,
		},
		{
			name: "unknown target is system routing",
			seg:  Segment{DestinationType: "unknown"},
			want: CategoryRouting,
		},
		{
			name: "sub-second redirect is routing",
			seg:  Segment{DestinationType: "extension", TerminationReason: "redirected", DurationSeconds: 0.4},
			want: CategoryRouting,
		},
		{
			name: "cancelled polling completed elsewhere is ringing",
			seg: Segment{
				DestinationType: "extension", CreationMethod: "route_to",
				CreationForwardReason: "polling", TerminationReason: "cancelled",
				TerminationReasonDetails: "completed_elsewhere",
			},
			want: CategoryRinging,
		},
		{
			name: "cancelled polling with empty details is ringing",
			seg: Segment{
				DestinationType: "extension", CreationMethod: "route_to",
				CreationForwardReason: "polling", TerminationReason: "cancelled",
			},
			want: CategoryRinging,
		},
		{
			name: "cancelled polling by originator means the caller hung up",
			seg: Segment{
				DestinationType: "extension", CreationMethod: "route_to",
				CreationForwardReason: "polling", TerminationReason: "cancelled",
				TerminationReasonDetails: "terminated_by_originator",
			},
			want: CategoryMissed,
		},
		{
			name: "answered extension with real duration",
			seg:  Segment{DestinationType: "Extension", AnsweredAt: &now, DurationSeconds: 12},
			want: CategoryConversation,
		},
		{
			name: "answered transfer is a conversation",
			seg:  Segment{DestinationType: "external", CreationMethod: "transfer", AnsweredAt: &now, DurationSeconds: 8},
			want: CategoryConversation,
		},
		{
			name: "unanswered transfer continued elsewhere",
			seg:  Segment{DestinationType: "extension", CreationMethod: "transfer", TerminationReason: "continued_in"},
			want: CategoryTransfer,
		},
		{
			name: "busy destination",
			seg:  Segment{DestinationType: "extension", TerminationReasonDetails: "busy"},
			want: CategoryMissed,
		},
		{
			name: "rejected destination",
			seg:  Segment{DestinationType: "extension", TerminationReason: "rejected"},
			want: CategoryMissed,
		},
		{
			name: "no route failure",
			seg:  Segment{DestinationType: "extension", TerminationReasonDetails: "no_route"},
			want: CategoryRouting,
		},
		{
			name: "caller hung up before answer",
			seg:  Segment{DestinationType: "extension", TerminationReason: "src_participant_terminated"},
			want: CategoryMissed,
		},
		{
			name: "nothing matched",
			seg:  Segment{DestinationType: "external"},
			want: CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.seg))
		})
	}
}

func TestDescribe_fallsBackToUnknown(t *testing.T) {
	assert.Equal(t, Describe(CategoryUnknown), Describe(Category("nonsense")))
	assert.Equal(t, "Sonnerie", Describe(CategoryRinging).Label)
}

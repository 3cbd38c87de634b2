package repository

import (
	"strings"
	"testing"

	"github.com/callvista/cdr-analytics-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestParseSearchPattern(t *testing.T) {
	tests := []struct {
		input string
		mode  string
		value string
	}{
		{"0612345678", "exact", "0612345678"},
		{"06*", "startsWith", "06"},
		{"*678", "endsWith", "678"},
		{"*234*", "contains", "234"},
		{"  06*  ", "startsWith", "06"},
		{"*", "contains", ""},
		{"", "exact", ""},
	}

	for _, tt := range tests {
		p := parseSearchPattern(tt.input)
		assert.Equal(t, tt.mode, p.mode, "input %q", tt.input)
		assert.Equal(t, tt.value, p.value, "input %q", tt.input)
	}
}

func TestSearchPatternCondition(t *testing.T) {
	cond, arg := parseSearchPattern("06*").condition("source_dn_number")
	assert.Equal(t, "source_dn_number ILIKE ?", cond)
	assert.Equal(t, "06%", arg)

	cond, arg = parseSearchPattern("*678").condition("source_dn_number")
	assert.Equal(t, "source_dn_number ILIKE ?", cond)
	assert.Equal(t, "%678", arg)

	cond, arg = parseSearchPattern("*23*").condition("source_dn_number")
	assert.Equal(t, "source_dn_number ILIKE ?", cond)
	assert.Equal(t, "%23%", arg)

	cond, arg = parseSearchPattern("Alice").condition("source_dn_name")
	assert.Equal(t, "LOWER(source_dn_name) = LOWER(?)", cond)
	assert.Equal(t, "Alice", arg)
}

func TestSearchPatternAnyOf(t *testing.T) {
	cond, args := parseSearchPattern("06*").anyOf("a", "b", "c")
	assert.Equal(t, "(a ILIKE ? OR b ILIKE ? OR c ILIKE ?)", cond)
	assert.Equal(t, []interface{}{"06%", "06%", "06%"}, args)
}

func TestDirectionCondition(t *testing.T) {
	// No selection and a full selection both mean no filter.
	assert.Empty(t, directionCondition(nil))
	assert.Empty(t, directionCondition([]domain.CallDirection{
		domain.DirectionInbound, domain.DirectionOutbound,
		domain.DirectionInternal, domain.DirectionBridge,
	}))

	cond := directionCondition([]domain.CallDirection{domain.DirectionInbound})
	assert.NotEmpty(t, cond)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(cond), "("))

	both := directionCondition([]domain.CallDirection{domain.DirectionInbound, domain.DirectionOutbound})
	assert.Contains(t, both, " OR ")
}

func TestStatusCondition(t *testing.T) {
	assert.Empty(t, statusCondition(nil))
	assert.Empty(t, statusCondition([]domain.CallStatus{
		domain.StatusAnswered, domain.StatusAbandoned,
		domain.StatusVoicemail, domain.StatusBusy,
	}))

	vm := statusCondition([]domain.CallStatus{domain.StatusVoicemail})
	assert.Contains(t, vm, "vmail_console")

	busy := statusCondition([]domain.CallStatus{domain.StatusBusy})
	assert.Contains(t, busy, "busy")

	// Answered on a system destination requires a human pickup.
	answered := statusCondition([]domain.CallStatus{domain.StatusAnswered})
	assert.Contains(t, answered, "ans.answered_at IS NOT NULL")
	assert.Contains(t, answered, "ring_group_ring_all")
}

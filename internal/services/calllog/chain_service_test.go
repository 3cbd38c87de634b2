package calllog

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/chain"
	"github.com/callvista/cdr-analytics-service/internal/domain"
	"github.com/callvista/cdr-analytics-service/internal/repository"
	"github.com/callvista/cdr-analytics-service/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCDRRepo struct {
	segments []domain.CDRSegment
}

func (f *fakeCDRRepo) GetCallSegments(ctx context.Context, callHistoryID string) ([]domain.CDRSegment, error) {
	var out []domain.CDRSegment
	for _, s := range f.segments {
		if s.CallHistoryID == callHistoryID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeCDRRepo) GetAggregatedCallLogs(ctx context.Context, start, end time.Time, filters domain.LogsFilters, page domain.LogsPage) ([]repository.CallAggregateRow, int, error) {
	return nil, 0, nil
}

type fakeRepoManager struct {
	cdr *fakeCDRRepo
}

func (f *fakeRepoManager) CDR() repository.CDRRepository     { return f.cdr }
func (f *fakeRepoManager) User() repository.UserRepository   { return nil }
func (f *fakeRepoManager) Stats() repository.StatsRepository { return nil }
func (f *fakeRepoManager) Ping(ctx context.Context) error    { return nil }
func (f *fakeRepoManager) Close() error                      { return nil }

func segment(id string, startOffsetMs int, answered *time.Time, dest, destType, fwdReason string) domain.CDRSegment {
	start := base.Add(time.Duration(startOffsetMs) * time.Millisecond)
	end := start.Add(30 * time.Second)
	return domain.CDRSegment{
		CdrID:                        id,
		CallHistoryID:                "HIST1",
		StartedAt:                    start,
		AnsweredAt:                   answered,
		EndedAt:                      &end,
		SourceDnNumber:               "10001",
		SourceDnType:                 "provider",
		SourceParticipantPhoneNumber: "+33612345678",
		DestinationDnNumber:          dest,
		DestinationDnType:            destType,
		CreationMethod:               "route_to",
		CreationForwardReason:        fwdReason,
	}
}

// A queue broadcast that rings two extensions inside the grouping window and
// gets answered on the second leg.
func TestGetCallChainGroupsSimultaneousRing(t *testing.T) {
	answeredAt := base.Add(8 * time.Second)

	repo := &fakeRepoManager{cdr: &fakeCDRRepo{segments: []domain.CDRSegment{
		segment("seg-0", 0, nil, "800", "queue", ""),
		segment("seg-1", 500, nil, "101", "extension", "polling"),
		segment("seg-2", 900, &answeredAt, "102", "extension", "polling"),
	}}}

	svc := NewService(repo, nil, time.Hour, nil)

	resp, err := svc.GetCallChain(context.Background(), "HIST1")
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, "HIST1", resp.CallHistoryID)
	assert.Equal(t, 3, resp.SegmentCount)
	// Queue hop, ring group, then the answered leg re-emitted as the
	// resulting conversation.
	require.Len(t, resp.Groups, 3)

	assert.Equal(t, chain.GroupSingle, resp.Groups[0].Type)
	require.Len(t, resp.Groups[0].Segments, 1)
	assert.NotEmpty(t, resp.Groups[0].Descriptor.Label)

	ring := resp.Groups[1]
	assert.Equal(t, chain.GroupRinging, ring.Type)
	require.Len(t, ring.Segments, 2)
	assert.Equal(t, "seg-2", ring.AnsweredSegmentID)
	assert.Empty(t, ring.AnsweredAfter)

	for _, seg := range ring.Segments {
		assert.NotEmpty(t, seg.DurationFormatted)
		assert.NotEmpty(t, seg.Descriptor.Label)
	}

	conv := resp.Groups[2]
	assert.Equal(t, chain.GroupSingle, conv.Type)
	assert.Equal(t, chain.CategoryConversation, conv.Category)
	require.Len(t, conv.Segments, 1)
	assert.Equal(t, "seg-2", conv.Segments[0].ID)
}

// memoryRedis is an in-process stand-in for the Redis JSON cache.
type memoryRedis struct {
	values map[string][]byte
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: make(map[string][]byte)}
}

func (m *memoryRedis) GenerateKey(keyType redis.KeyType, identifier string) string {
	return fmt.Sprintf("%s:%s", keyType, identifier)
}

func (m *memoryRedis) GetValue(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.ErrKeyNotExist
	}
	return string(v), nil
}

func (m *memoryRedis) SetValue(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.values[key] = []byte(value)
	return nil
}

func (m *memoryRedis) DelValue(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func (m *memoryRedis) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	v, ok := m.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(v, dest)
}

func (m *memoryRedis) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = b
	return nil
}

func (m *memoryRedis) DeleteByPattern(ctx context.Context, pattern string) error {
	return nil
}

// Segments often arrive after the dashboard first asks for a call: the CDR
// export lags the PBX. An empty result must not be frozen in the cache.
func TestGetCallChainDoesNotCacheEmptyResult(t *testing.T) {
	cdr := &fakeCDRRepo{}
	repo := &fakeRepoManager{cdr: cdr}
	cache := newMemoryRedis()
	svc := NewService(repo, cache, time.Hour, nil)

	resp, err := svc.GetCallChain(context.Background(), "HIST1")
	require.NoError(t, err)
	assert.Zero(t, resp.SegmentCount)
	assert.Empty(t, cache.values)

	// The export catches up.
	answeredAt := base.Add(5 * time.Second)
	cdr.segments = []domain.CDRSegment{
		segment("seg-0", 0, &answeredAt, "101", "extension", ""),
	}

	resp, err = svc.GetCallChain(context.Background(), "HIST1")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.SegmentCount)
	// Now that the call has segments, the chain is cached.
	assert.Len(t, cache.values, 1)
}

// A cached chain is served without touching the repository again.
func TestGetCallChainServesFromCache(t *testing.T) {
	cdr := &fakeCDRRepo{segments: []domain.CDRSegment{
		segment("seg-0", 0, nil, "101", "extension", ""),
	}}
	repo := &fakeRepoManager{cdr: cdr}
	cache := newMemoryRedis()
	svc := NewService(repo, cache, time.Hour, nil)

	first, err := svc.GetCallChain(context.Background(), "HIST1")
	require.NoError(t, err)
	require.Equal(t, 1, first.SegmentCount)

	// Dropping the repo data proves the second read comes from the cache.
	cdr.segments = nil
	second, err := svc.GetCallChain(context.Background(), "HIST1")
	require.NoError(t, err)
	assert.Equal(t, 1, second.SegmentCount)
	assert.Equal(t, first.Groups, second.Groups)
}

func TestGetCallChainUnknownCall(t *testing.T) {
	repo := &fakeRepoManager{cdr: &fakeCDRRepo{}}
	svc := NewService(repo, nil, time.Hour, nil)

	resp, err := svc.GetCallChain(context.Background(), "NOPE")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Zero(t, resp.SegmentCount)
	assert.Empty(t, resp.Groups)
}

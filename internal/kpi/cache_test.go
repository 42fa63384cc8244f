package kpi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAggregates struct {
	mu           sync.Mutex
	computeCalls int
	businesses   int64
	views        int64
	messages     int64
	inquiries    int64
	replies      int64
	block        bool
}

func (f *fakeAggregates) CountActiveBusinesses(ctx context.Context, _ uuid.UUID) (int64, error) {
	f.mu.Lock()
	f.computeCalls++
	blocked := f.block
	f.mu.Unlock()
	if blocked {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return f.businesses, nil
}

func (f *fakeAggregates) SumLandlordViews(_ context.Context, _ uuid.UUID) (int64, error) {
	return f.views, nil
}

func (f *fakeAggregates) CountMessages(_ context.Context, _ uuid.UUID) (int64, error) {
	return f.messages, nil
}

func (f *fakeAggregates) CountInquiries(_ context.Context, _ uuid.UUID) (int64, error) {
	return f.inquiries, nil
}

func (f *fakeAggregates) CountReplies(_ context.Context, _ uuid.UUID) (int64, error) {
	return f.replies, nil
}

func (f *fakeAggregates) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.computeCalls
}

func newTestCache(aggregates *fakeAggregates) *Cache {
	return NewCache(aggregates, 5*time.Minute, time.Second, zap.NewNop())
}

func TestGetComputesOnceWithinTTL(t *testing.T) {
	aggregates := &fakeAggregates{businesses: 3, views: 120, messages: 14, inquiries: 10, replies: 8}
	cache := newTestCache(aggregates)
	userID := uuid.New()
	ctx := context.Background()

	first, err := cache.Get(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, first.ActiveBusinesses)
	assert.EqualValues(t, 120, first.LandlordViews)
	assert.EqualValues(t, 14, first.MessagesTotal)
	assert.Equal(t, 80.0, first.ResponseRate)
	assert.False(t, first.ComputedAt.IsZero())

	second, err := cache.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, aggregates.calls())
}

func TestInvalidateForcesRecompute(t *testing.T) {
	aggregates := &fakeAggregates{businesses: 1}
	cache := newTestCache(aggregates)
	userID := uuid.New()
	ctx := context.Background()

	_, err := cache.Get(ctx, userID)
	require.NoError(t, err)

	aggregates.businesses = 2
	cache.Invalidate(ctx, userID)

	snapshot, err := cache.Get(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, snapshot.ActiveBusinesses)
	assert.Equal(t, 2, aggregates.calls())
}

func TestRecordMutationInvalidatesAndNotifies(t *testing.T) {
	aggregates := &fakeAggregates{}
	cache := newTestCache(aggregates)
	userID := uuid.New()
	ctx := context.Background()

	var notified []uuid.UUID
	cache.SetListener(ListenerFunc(func(id uuid.UUID) { notified = append(notified, id) }))

	_, err := cache.Get(ctx, userID)
	require.NoError(t, err)

	cache.RecordMutation(ctx, Mutation{UserID: userID, Kind: MutationMessageSent})
	require.Len(t, notified, 1)
	assert.Equal(t, userID, notified[0])

	_, err = cache.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, aggregates.calls(), "mutation must force a recompute on next read")
}

func TestComputeTimeoutSurfaces(t *testing.T) {
	aggregates := &fakeAggregates{block: true}
	cache := NewCache(aggregates, 5*time.Minute, 50*time.Millisecond, zap.NewNop())

	_, err := cache.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultResponseRate(t *testing.T) {
	assert.Equal(t, 0.0, DefaultResponseRate(5, 0))
	assert.Equal(t, 50.0, DefaultResponseRate(5, 10))
	assert.Equal(t, 100.0, DefaultResponseRate(20, 10))
	assert.Equal(t, 33.3, DefaultResponseRate(1, 3))
}

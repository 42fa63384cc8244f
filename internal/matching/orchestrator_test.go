package matching

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/leasematch/leasematch/internal/kpi"
	"github.com/leasematch/leasematch/internal/listing"
	"github.com/leasematch/leasematch/pkg/models"
)

type notification struct {
	userID   uuid.UUID
	demandID uuid.UUID
	top      []models.MatchRecord
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (f *fakeNotifier) MatchesUpdated(userID, demandID uuid.UUID, top []models.MatchRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notification{userID: userID, demandID: demandID, top: top})
}

type fakeRecorder struct {
	mu        sync.Mutex
	mutations []kpi.Mutation
}

func (f *fakeRecorder) RecordMutation(_ context.Context, m kpi.Mutation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, m)
}

func newTestOrchestrator(t *testing.T, db *gorm.DB) (*Orchestrator, *fakeNotifier, *fakeRecorder) {
	notifier := &fakeNotifier{}
	recorder := &fakeRecorder{}
	repo := listing.NewRepository(db, zap.NewNop())
	store := NewStore(db, zap.NewNop())
	scorer := NewScorer(testScoringConfig())
	orch := NewOrchestrator(repo, store, scorer, recorder, notifier, 5, zap.NewNop())
	return orch, notifier, recorder
}

func TestOnDemandListingChangedScoresActiveCandidatesInState(t *testing.T) {
	db := setupTestDB(t)
	orch, notifier, recorder := newTestOrchestrator(t, db)
	ctx := context.Background()

	demand := testDemand()
	require.NoError(t, db.Create(demand).Error)

	inState1 := seedProperty(t, db)
	inState2 := seedProperty(t, db)

	otherState := testProperty()
	otherState.ID = uuid.New()
	otherState.City = "Denver"
	otherState.State = "CO"
	require.NoError(t, db.Create(otherState).Error)

	leased := testProperty()
	leased.ID = uuid.New()
	leased.Status = models.PropertyStatusLeased
	require.NoError(t, db.Create(leased).Error)

	require.NoError(t, orch.OnDemandListingChanged(ctx, demand.ID))

	var records []models.MatchRecord
	require.NoError(t, db.Where("demand_listing_id = ?", demand.ID).Find(&records).Error)
	require.Len(t, records, 2)
	scored := map[uuid.UUID]bool{}
	for _, r := range records {
		scored[r.PropertyListingID] = true
	}
	assert.True(t, scored[inState1.ID])
	assert.True(t, scored[inState2.ID])

	// one notification for the demand's owner, carrying every upserted match
	require.Len(t, notifier.calls, 1)
	call := notifier.calls[0]
	assert.Equal(t, demand.OwnerUserID, call.userID)
	assert.Equal(t, demand.ID, call.demandID)
	assert.Len(t, call.top, 2)

	// new matches raise exactly one KPI mutation for the owner
	require.Len(t, recorder.mutations, 1)
	assert.Equal(t, demand.OwnerUserID, recorder.mutations[0].UserID)
	assert.Equal(t, kpi.MutationMatchCreated, recorder.mutations[0].Kind)
}

func TestOnDemandListingChangedInactiveDemandIsFiltered(t *testing.T) {
	db := setupTestDB(t)
	orch, notifier, _ := newTestOrchestrator(t, db)

	demand := testDemand()
	demand.Status = models.DemandStatusPending
	require.NoError(t, db.Create(demand).Error)
	seedProperty(t, db)

	require.NoError(t, orch.OnDemandListingChanged(context.Background(), demand.ID))

	var count int64
	require.NoError(t, db.Model(&models.MatchRecord{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
	assert.Empty(t, notifier.calls)
}

func TestOnDemandListingChangedMissingDemand(t *testing.T) {
	db := setupTestDB(t)
	orch, _, _ := newTestOrchestrator(t, db)

	err := orch.OnDemandListingChanged(context.Background(), uuid.New())
	assert.ErrorIs(t, err, listing.ErrNotFound)
}

func TestOnPropertyListingChangedNotifiesEachAffectedTenant(t *testing.T) {
	db := setupTestDB(t)
	orch, notifier, _ := newTestOrchestrator(t, db)
	ctx := context.Background()

	demandA := testDemand()
	require.NoError(t, db.Create(demandA).Error)
	demandB := testDemand()
	demandB.ID = uuid.New()
	demandB.OwnerUserID = uuid.New()
	require.NoError(t, db.Create(demandB).Error)
	closed := testDemand()
	closed.ID = uuid.New()
	closed.Status = models.DemandStatusClosed
	require.NoError(t, db.Create(closed).Error)

	property := seedProperty(t, db)
	require.NoError(t, orch.OnPropertyListingChanged(ctx, property.ID))

	var count int64
	require.NoError(t, db.Model(&models.MatchRecord{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	require.Len(t, notifier.calls, 2)
	notified := map[uuid.UUID]uuid.UUID{}
	for _, call := range notifier.calls {
		notified[call.demandID] = call.userID
	}
	assert.Equal(t, demandA.OwnerUserID, notified[demandA.ID])
	assert.Equal(t, demandB.OwnerUserID, notified[demandB.ID])
}

func TestRetiredPropertyKeepsRecordsAndSignalsTenants(t *testing.T) {
	db := setupTestDB(t)
	orch, notifier, _ := newTestOrchestrator(t, db)
	ctx := context.Background()

	demand := testDemand()
	require.NoError(t, db.Create(demand).Error)
	property := seedProperty(t, db)

	require.NoError(t, orch.OnPropertyListingChanged(ctx, property.ID))
	require.Len(t, notifier.calls, 1)

	require.NoError(t, db.Model(&models.PropertyListing{}).
		Where("id = ?", property.ID).
		Update("status", models.PropertyStatusOffMarket).Error)

	require.NoError(t, orch.OnPropertyListingChanged(ctx, property.ID))

	// audit trail intact, tenant re-notified so the dashboard re-pulls
	var count int64
	require.NoError(t, db.Model(&models.MatchRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	require.Len(t, notifier.calls, 2)
	retired := notifier.calls[1]
	assert.Equal(t, demand.OwnerUserID, retired.userID)
	assert.Equal(t, demand.ID, retired.demandID)
	// the retired property's match no longer appears in the active top list
	assert.Empty(t, retired.top)
}

func TestNotificationReflectsAllUpserts(t *testing.T) {
	db := setupTestDB(t)
	orch, notifier, _ := newTestOrchestrator(t, db)
	ctx := context.Background()

	demand := testDemand()
	require.NoError(t, db.Create(demand).Error)
	for i := 0; i < 4; i++ {
		seedProperty(t, db)
	}

	require.NoError(t, orch.OnDemandListingChanged(ctx, demand.ID))
	require.Len(t, notifier.calls, 1)
	// a client pulling right after the notification sees the same set
	assert.Len(t, notifier.calls[0].top, 4)
}

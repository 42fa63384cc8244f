package server

import (
	"context"

	"github.com/google/uuid"

	"github.com/leasematch/leasematch/internal/kpi"
	"github.com/leasematch/leasematch/internal/matching"
	"github.com/leasematch/leasematch/internal/realtime"
	"github.com/leasematch/leasematch/pkg/models"
)

// DemandLister is the slice of the listing repository the dashboard needs.
type DemandLister interface {
	ListActiveDemandsByOwner(ctx context.Context, userID uuid.UUID) ([]models.DemandListing, error)
}

// DashboardService assembles a user's current dashboard state for the
// realtime gateway's request:current-state pull. It re-queries the match
// store and KPI cache synchronously; there is no missed-event log.
type DashboardService struct {
	demands DemandLister
	store   *matching.Store
	kpis    *kpi.Cache
}

// NewDashboardService creates the state provider backing the gateway.
func NewDashboardService(demands DemandLister, store *matching.Store, kpis *kpi.Cache) *DashboardService {
	return &DashboardService{demands: demands, store: store, kpis: kpis}
}

// CurrentState implements realtime.StateProvider.
func (s *DashboardService) CurrentState(ctx context.Context, userID uuid.UUID) (*realtime.CurrentState, error) {
	demands, err := s.demands.ListActiveDemandsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	matches := make(map[string][]models.MatchRecord, len(demands))
	for i := range demands {
		list, err := s.store.ListForDemand(ctx, demands[i].ID, matching.ListOptions{ExcludeDismissed: true})
		if err != nil {
			return nil, err
		}
		matches[demands[i].ID.String()] = list
	}
	snapshot, err := s.kpis.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &realtime.CurrentState{Matches: matches, KPIs: snapshot}, nil
}

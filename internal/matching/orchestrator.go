package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leasematch/leasematch/internal/kpi"
	"github.com/leasematch/leasematch/internal/listing"
	"github.com/leasematch/leasematch/internal/metrics"
	"github.com/leasematch/leasematch/pkg/models"
)

// maxConcurrentScores bounds in-flight scoring upserts within one pipeline
// invocation. Pairs are independent, so ordering inside the batch is free.
const maxConcurrentScores = 8

// Notifier receives pipeline completion events. The realtime gateway
// implements it; delivery is best-effort.
type Notifier interface {
	MatchesUpdated(userID, demandID uuid.UUID, top []models.MatchRecord)
}

// MutationRecorder is where the orchestrator raises KPI-affecting mutations.
// Implemented by the KPI cache.
type MutationRecorder interface {
	RecordMutation(ctx context.Context, m kpi.Mutation)
}

// Orchestrator decides which pairs need rescoring on a listing mutation and
// drives the pipeline: candidate selection, scoring, upsert, KPI
// invalidation, notification. Multiple invocations may run concurrently;
// each pipeline is independent.
type Orchestrator struct {
	repo     listing.Reader
	store    *Store
	scorer   *Scorer
	kpis     MutationRecorder
	notifier Notifier
	topN     int
	logger   *zap.Logger
}

// NewOrchestrator wires the match pipeline. notifier and kpis may be nil in
// tests; both are optional collaborators.
func NewOrchestrator(repo listing.Reader, store *Store, scorer *Scorer, kpis MutationRecorder, notifier Notifier, topN int, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		store:    store,
		scorer:   scorer,
		kpis:     kpis,
		notifier: notifier,
		topN:     topN,
		logger:   logger,
	}
}

// OnDemandListingChanged rescores the demand against all active properties in
// its state. Every upsert completes before the matches-updated notification
// for the demand's owner, so a client pulling immediately after the
// notification sees a consistent result set.
func (o *Orchestrator) OnDemandListingChanged(ctx context.Context, demandID uuid.UUID) error {
	demand, err := o.repo.GetDemandListing(ctx, demandID)
	if err != nil {
		return err
	}
	if demand.Status != models.DemandStatusActive {
		o.logger.Debug("skipping rescore for inactive demand",
			zap.String("demand_id", demandID.String()),
			zap.String("status", string(demand.Status)))
		return nil
	}

	candidates, err := o.repo.ListActivePropertiesByState(ctx, demand.State)
	if err != nil {
		return fmt.Errorf("candidate selection failed for demand %s: %w", demandID, err)
	}

	created, errs := o.scoreBatch(ctx, func(yield func(*models.DemandListing, *models.PropertyListing)) {
		for i := range candidates {
			yield(demand, &candidates[i])
		}
	}, "demand")

	if created > 0 && o.kpis != nil {
		o.kpis.RecordMutation(ctx, kpi.Mutation{UserID: demand.OwnerUserID, Kind: kpi.MutationMatchCreated})
	}
	o.notifyDemand(ctx, demand.OwnerUserID, demandID)
	return errs
}

// OnPropertyListingChanged rescores every active demand in the property's
// state against it, then notifies each affected tenant owner. A property no
// longer in active status is routed to the retirement path instead.
func (o *Orchestrator) OnPropertyListingChanged(ctx context.Context, propertyID uuid.UUID) error {
	property, err := o.repo.GetPropertyListing(ctx, propertyID)
	if err != nil {
		return err
	}
	if property.Status != models.PropertyStatusActive {
		return o.OnPropertyListingRetired(ctx, propertyID)
	}

	demands, err := o.repo.ListActiveDemandsByState(ctx, property.State)
	if err != nil {
		return fmt.Errorf("candidate selection failed for property %s: %w", propertyID, err)
	}

	created, errs := o.scoreBatch(ctx, func(yield func(*models.DemandListing, *models.PropertyListing)) {
		for i := range demands {
			yield(&demands[i], property)
		}
	}, "property")

	for i := range demands {
		if created > 0 && o.kpis != nil {
			o.kpis.RecordMutation(ctx, kpi.Mutation{UserID: demands[i].OwnerUserID, Kind: kpi.MutationMatchCreated})
		}
		o.notifyDemand(ctx, demands[i].OwnerUserID, demands[i].ID)
	}
	return errs
}

// OnPropertyListingRetired handles a property leaving active status. Stored
// matches stay on disk for audit; active listings exclude them at query time.
// Affected tenants get a matches-updated signal so dashboards re-pull.
func (o *Orchestrator) OnPropertyListingRetired(ctx context.Context, propertyID uuid.UUID) error {
	owners, err := o.store.AffectedDemandOwners(ctx, propertyID)
	if err != nil {
		return err
	}
	o.logger.Info("property retired, notifying affected tenants",
		zap.String("property_id", propertyID.String()),
		zap.Int("affected_demands", len(owners)))
	for _, owner := range owners {
		o.notifyDemand(ctx, owner.OwnerUserID, owner.DemandListingID)
	}
	return nil
}

// scoreBatch scores and upserts each yielded pair with bounded concurrency.
// A candidate that fails does not abort its siblings: NotFound candidates are
// logged and skipped, other failures are collected and returned joined.
func (o *Orchestrator) scoreBatch(ctx context.Context, pairs func(yield func(*models.DemandListing, *models.PropertyListing)), trigger string) (created int, err error) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		errs      []error
		createdN  int
		semaphore = make(chan struct{}, maxConcurrentScores)
	)

	pairs(func(demand *models.DemandListing, property *models.PropertyListing) {
		wg.Add(1)
		semaphore <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()

			result := o.scorer.Score(demand, property)
			metrics.MatchesScored.Inc()

			record, upsertErr := o.store.Upsert(ctx, demand.ID, property.ID, result)
			if upsertErr != nil {
				metrics.RescoreErrors.WithLabelValues(trigger).Inc()
				if errors.Is(upsertErr, listing.ErrNotFound) {
					// the listing vanished mid-pipeline; skip this pair only
					o.logger.Warn("candidate disappeared during rescore",
						zap.String("demand_id", demand.ID.String()),
						zap.String("property_id", property.ID.String()))
					return
				}
				mu.Lock()
				errs = append(errs, upsertErr)
				mu.Unlock()
				return
			}
			metrics.MatchUpserts.Inc()
			if record.CreatedAt.Equal(record.UpdatedAt) {
				mu.Lock()
				createdN++
				mu.Unlock()
			}
		}()
	})

	wg.Wait()
	return createdN, errors.Join(errs...)
}

// notifyDemand pushes the demand's current top matches to its owner. Runs
// only after every upsert in the invocation has completed.
func (o *Orchestrator) notifyDemand(ctx context.Context, ownerUserID, demandID uuid.UUID) {
	if o.notifier == nil {
		return
	}
	top, err := o.store.ListForDemand(ctx, demandID, ListOptions{ExcludeDismissed: true, Limit: o.topN})
	if err != nil {
		o.logger.Error("failed to load top matches for notification",
			zap.String("demand_id", demandID.String()), zap.Error(err))
		top = nil // signal the client to re-pull
	}
	o.notifier.MatchesUpdated(ownerUserID, demandID, top)
}

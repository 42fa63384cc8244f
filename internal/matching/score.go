// Package matching implements the demand/property match core: the scoring
// engine, the persisted match store, and the orchestrator that drives
// rescoring on listing mutations.
package matching

import (
	"math"
	"strings"

	"github.com/leasematch/leasematch/internal/config"
	"github.com/leasematch/leasematch/pkg/models"
)

// MatchResult is the outcome of scoring one demand listing against one
// property listing. Composite and every sub-score are in [0, 100].
type MatchResult struct {
	Composite float64
	Location  float64
	Sqft      float64
	Price     float64
	AssetType float64
	Amenities float64
	Details   models.MatchDetails
}

// relatedTypes holds the asset-type pairs that earn partial credit. Entries
// are stored in both directions.
var relatedTypes = map[models.AssetType][]models.AssetType{
	models.AssetTypeRetail:     {models.AssetTypeRestaurant},
	models.AssetTypeRestaurant: {models.AssetTypeRetail},
	models.AssetTypeOffice:     {models.AssetTypeMedical, models.AssetTypeFlex},
	models.AssetTypeMedical:    {models.AssetTypeOffice},
	models.AssetTypeIndustrial: {models.AssetTypeWarehouse, models.AssetTypeFlex},
	models.AssetTypeWarehouse:  {models.AssetTypeIndustrial, models.AssetTypeFlex},
	models.AssetTypeFlex:       {models.AssetTypeOffice, models.AssetTypeIndustrial, models.AssetTypeWarehouse},
}

// Scorer computes match scores. Pure and deterministic: no I/O, identical
// inputs produce identical results.
type Scorer struct {
	weights       config.ScoringWeights
	steepness     float64
	relatedCredit float64
	neutralPrice  float64
}

// NewScorer builds a Scorer from validated scoring configuration.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{
		weights:       cfg.Weights,
		steepness:     cfg.DecaySteepness,
		relatedCredit: cfg.RelatedTypeCredit,
		neutralPrice:  cfg.NeutralPriceScore,
	}
}

// Score computes the five sub-scores and the weighted composite for the given
// pair. Callers filter out non-active properties before invoking.
func (s *Scorer) Score(demand *models.DemandListing, property *models.PropertyListing) MatchResult {
	var details models.MatchDetails

	location := s.locationScore(demand, property, &details)
	sqft := s.sqftScore(demand, property, &details)
	price := s.priceScore(demand, property, &details)
	assetType := s.assetTypeScore(demand, property, &details)
	amenities := s.amenitiesScore(demand, property, &details)

	composite := location*s.weights.Location +
		sqft*s.weights.Sqft +
		price*s.weights.Price +
		assetType*s.weights.AssetType +
		amenities*s.weights.Amenities

	return MatchResult{
		Composite: round2(clamp(composite)),
		Location:  location,
		Sqft:      sqft,
		Price:     price,
		AssetType: assetType,
		Amenities: amenities,
		Details:   details,
	}
}

// locationScore: 100 for a city match against the demand's own city or any
// location of interest, 60 for same state only, 0 otherwise. A city match
// always wins over a state-only match regardless of interest-list order.
func (s *Scorer) locationScore(demand *models.DemandListing, property *models.PropertyListing, details *models.MatchDetails) float64 {
	if placeEqual(property.City, demand.City) {
		details.Location = &models.LocationMatch{SameCity: true, SameState: true, MatchedLocation: demand.City}
		return 100
	}
	for _, loc := range demand.LocationsOfInterest {
		if placeEqual(property.City, loc) {
			details.Location = &models.LocationMatch{SameCity: true, SameState: true, MatchedLocation: loc}
			return 100
		}
	}
	if placeEqual(property.State, demand.State) {
		details.Location = &models.LocationMatch{SameState: true}
		return 60
	}
	details.Location = &models.LocationMatch{}
	return 0
}

func (s *Scorer) sqftScore(demand *models.DemandListing, property *models.PropertyListing, details *models.MatchDetails) float64 {
	score, inRange := s.rangeScore(float64(property.Sqft), floatPtrFromInt(demand.SqftMin), floatPtrFromInt(demand.SqftMax))
	details.Sqft = &models.RangeMatch{InRange: inRange}
	return score
}

func (s *Scorer) priceScore(demand *models.DemandListing, property *models.PropertyListing, details *models.MatchDetails) float64 {
	if property.AskingPrice == nil {
		// unknown, not disqualifying
		return s.neutralPrice
	}
	var min, max *float64
	if demand.BudgetMin != nil {
		v := demand.BudgetMin.InexactFloat64()
		min = &v
	}
	if demand.BudgetMax != nil {
		v := demand.BudgetMax.InexactFloat64()
		max = &v
	}
	score, inRange := s.rangeScore(property.AskingPrice.InexactFloat64(), min, max)
	details.Price = &models.RangeMatch{InRange: inRange}
	return score
}

// rangeScore returns 100 when value is inside [min, max] (nil bounds are
// unbounded), otherwise decays linearly by the fractional distance outside
// the nearest bound, floored at 0.
func (s *Scorer) rangeScore(value float64, min, max *float64) (float64, bool) {
	if (min == nil || value >= *min) && (max == nil || value <= *max) {
		return 100, true
	}
	var distance float64
	if min != nil && value < *min {
		distance = (*min - value) / *min
	} else {
		distance = (value - *max) / *max
	}
	return clamp(100 * (1 - distance/s.steepness)), false
}

func (s *Scorer) assetTypeScore(demand *models.DemandListing, property *models.PropertyListing, details *models.MatchDetails) float64 {
	if demand.AssetType == property.PropertyType {
		details.AssetType = &models.AssetTypeMatch{IsExactMatch: true}
		return 100
	}
	for _, related := range relatedTypes[demand.AssetType] {
		if related == property.PropertyType {
			details.AssetType = &models.AssetTypeMatch{IsRelatedMatch: true}
			return s.relatedCredit
		}
	}
	details.AssetType = &models.AssetTypeMatch{}
	return 0
}

// amenitiesScore is the satisfied proportion of requested amenities scaled to
// 0-100. A demand with no requested amenities scores 100 outright.
func (s *Scorer) amenitiesScore(demand *models.DemandListing, property *models.PropertyListing, details *models.MatchDetails) float64 {
	if len(demand.Amenities) == 0 {
		return 100
	}
	have := make(map[string]struct{}, len(property.Amenities))
	for _, a := range property.Amenities {
		have[normalizePlace(a)] = struct{}{}
	}
	var matched, missing []string
	for _, want := range demand.Amenities {
		if _, ok := have[normalizePlace(want)]; ok {
			matched = append(matched, want)
		} else {
			missing = append(missing, want)
		}
	}
	details.Amenities = &models.AmenityMatch{Matched: matched, Missing: missing}
	return 100 * float64(len(matched)) / float64(len(demand.Amenities))
}

func placeEqual(a, b string) bool {
	return normalizePlace(a) == normalizePlace(b) && normalizePlace(a) != ""
}

func normalizePlace(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func floatPtrFromInt(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func clamp(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Package kpi caches per-user aggregate dashboard metrics with a short TTL.
// Snapshots are derivable values, never a source of truth: a miss or an
// expired entry transparently recomputes from the repository layer.
package kpi

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/leasematch/leasematch/internal/listing"
	"github.com/leasematch/leasematch/internal/metrics"
	"github.com/leasematch/leasematch/pkg/models"
)

// ResponseRateFunc computes the response-rate KPI from reply and inquiry
// counts. The exact formula is a business input, injected rather than
// hard-coded.
type ResponseRateFunc func(replies, inquiries int64) float64

// DefaultResponseRate is replies/inquiries as a percentage, capped at 100,
// one decimal place. Zero inquiries means there was nothing to respond to.
func DefaultResponseRate(replies, inquiries int64) float64 {
	if inquiries == 0 {
		return 0
	}
	rate := float64(replies) / float64(inquiries)
	if rate > 1 {
		rate = 1
	}
	return math.Round(rate*1000) / 10
}

// Cache is a two-tier KPI snapshot cache: an in-process tier plus an optional
// shared Redis tier for multi-instance deployments. Both tiers carry the same
// TTL.
type Cache struct {
	aggregates   listing.AggregateReader
	local        *gocache.Cache
	redis        *redis.Client
	ttl          time.Duration
	timeout      time.Duration
	responseRate ResponseRateFunc
	listener     Listener
	logger       *zap.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithRedis adds the shared Redis tier.
func WithRedis(client *redis.Client) Option {
	return func(c *Cache) { c.redis = client }
}

// WithResponseRate overrides the response-rate formula.
func WithResponseRate(f ResponseRateFunc) Option {
	return func(c *Cache) { c.responseRate = f }
}

// NewCache creates a KPI cache recomputing from the given aggregate reader.
func NewCache(aggregates listing.AggregateReader, ttl, computeTimeout time.Duration, logger *zap.Logger, opts ...Option) *Cache {
	c := &Cache{
		aggregates:   aggregates,
		local:        gocache.New(ttl, 2*ttl),
		ttl:          ttl,
		timeout:      computeTimeout,
		responseRate: DefaultResponseRate,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetListener registers the invalidation listener. Called once during wiring;
// avoids a construction cycle with the realtime gateway.
func (c *Cache) SetListener(l Listener) { c.listener = l }

func cacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("kpi:user:%s", userID)
}

// Get returns the user's snapshot, recomputing on a miss or expired entry.
// Callers never observe an absent snapshot.
func (c *Cache) Get(ctx context.Context, userID uuid.UUID) (*models.KPISnapshot, error) {
	key := cacheKey(userID)

	if cached, ok := c.local.Get(key); ok {
		metrics.KPICacheRequests.WithLabelValues("hit_l1").Inc()
		return cached.(*models.KPISnapshot), nil
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			var snapshot models.KPISnapshot
			if err := json.Unmarshal(data, &snapshot); err == nil {
				metrics.KPICacheRequests.WithLabelValues("hit_l2").Inc()
				c.local.Set(key, &snapshot, c.ttl)
				return &snapshot, nil
			}
		} else if err != redis.Nil {
			// Redis being down degrades to recompute, not failure.
			c.logger.Warn("kpi redis read failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	metrics.KPICacheRequests.WithLabelValues("miss").Inc()
	return c.ComputeAndStore(ctx, userID)
}

// ComputeAndStore recomputes the snapshot from the repository layer and
// stores it in all tiers with a fresh timestamp. The only path producing a
// true snapshot.
func (c *Cache) ComputeAndStore(ctx context.Context, userID uuid.UUID) (*models.KPISnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	businesses, err := c.aggregates.CountActiveBusinesses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute KPIs for user %s: %w", userID, err)
	}
	views, err := c.aggregates.SumLandlordViews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute KPIs for user %s: %w", userID, err)
	}
	messagesTotal, err := c.aggregates.CountMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute KPIs for user %s: %w", userID, err)
	}
	inquiries, err := c.aggregates.CountInquiries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute KPIs for user %s: %w", userID, err)
	}
	replies, err := c.aggregates.CountReplies(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute KPIs for user %s: %w", userID, err)
	}

	snapshot := &models.KPISnapshot{
		UserID:           userID,
		ActiveBusinesses: businesses,
		ResponseRate:     c.responseRate(replies, inquiries),
		LandlordViews:    views,
		MessagesTotal:    messagesTotal,
		ComputedAt:       time.Now().UTC(),
	}

	key := cacheKey(userID)
	c.local.Set(key, snapshot, c.ttl)
	if c.redis != nil {
		if data, err := json.Marshal(snapshot); err == nil {
			if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
				c.logger.Warn("kpi redis write failed", zap.String("user_id", userID.String()), zap.Error(err))
			}
		}
	}
	return snapshot, nil
}

// Invalidate drops any cached snapshot for the user.
func (c *Cache) Invalidate(ctx context.Context, userID uuid.UUID) {
	key := cacheKey(userID)
	c.local.Delete(key)
	if c.redis != nil {
		if err := c.redis.Del(ctx, key).Err(); err != nil {
			c.logger.Warn("kpi redis delete failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	metrics.KPIInvalidations.Inc()
}

// RecordMutation is the central invalidation entry point. Every
// KPI-affecting mutation site raises a Mutation here; the cache invalidates
// synchronously and notifies the listener so connected dashboards learn
// their snapshot went stale.
func (c *Cache) RecordMutation(ctx context.Context, m Mutation) {
	c.Invalidate(ctx, m.UserID)
	c.logger.Debug("kpi mutation recorded",
		zap.String("user_id", m.UserID.String()),
		zap.String("kind", string(m.Kind)))
	if c.listener != nil {
		c.listener.KPIInvalidated(m.UserID)
	}
}

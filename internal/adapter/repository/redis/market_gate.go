package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/iho/clubmarket/internal/infrastructure/metrics"
)

const marketGateKey = "clubmarket:market:open"

// MarketGate implements usecase.MarketGate using a single Redis key.
// A missing key reads as the configured default.
type MarketGate struct {
	client      *redis.Client
	key         string
	defaultOpen bool
	metrics     *metrics.Metrics
}

// NewMarketGate creates a new MarketGate.
func NewMarketGate(client *redis.Client, defaultOpen bool, m *metrics.Metrics) *MarketGate {
	return &MarketGate{
		client:      client,
		key:         marketGateKey,
		defaultOpen: defaultOpen,
		metrics:     m,
	}
}

// IsOpen reports whether the transfer window is open.
func (g *MarketGate) IsOpen(ctx context.Context) (bool, error) {
	val, err := g.client.Get(ctx, g.key).Result()
	if errors.Is(err, redis.Nil) {
		observe(g.metrics, "market_get", nil)
		return g.defaultOpen, nil
	}
	observe(g.metrics, "market_get", err)
	if err != nil {
		return false, err
	}
	return val == "1", nil
}

// SetOpen stores the window flag without expiry.
func (g *MarketGate) SetOpen(ctx context.Context, open bool) error {
	val := "0"
	if open {
		val = "1"
	}
	err := g.client.Set(ctx, g.key, val, 0).Err()
	observe(g.metrics, "market_set", err)
	return err
}

package redis

import (
	"github.com/iho/clubmarket/internal/infrastructure/metrics"
)

// observe counts a Redis operation and its failure. It is a no-op without metrics.
func observe(m *metrics.Metrics, operation string, err error) {
	if m == nil {
		return
	}
	m.RedisOperations.WithLabelValues(operation).Inc()
	if err != nil {
		m.RedisErrors.WithLabelValues(operation).Inc()
	}
}

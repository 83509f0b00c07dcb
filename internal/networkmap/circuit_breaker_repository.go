package networkmap

import (
	"context"
	"fmt"

	"event-director/internal/config"
	"event-director/pkg/circuitbreaker"
	"event-director/pkg/models"
)

// CircuitBreakerRepository stops hitting an unreachable config store so cache
// misses fail fast until the breaker half-opens.
type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Breaker
}

func NewCircuitBreakerRepository(repo Repository, name string, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerRepository{repo: repo}
	}
	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.New(circuitbreaker.FromConfig(name, cfg)),
	}
}

func (r *CircuitBreakerRepository) GetNetworkMap(ctx context.Context) ([][]models.NetworkMap, error) {
	docs, err := circuitbreaker.Execute(ctx, r.cb, r.repo.GetNetworkMap)
	if err != nil && r.cb != nil && r.cb.IsOpen() {
		return nil, fmt.Errorf("circuit breaker is open for %s: %w", r.cb.Name(), err)
	}
	return docs, err
}

// State is "disabled" when no breaker is configured, otherwise the gobreaker
// state name.
func (r *CircuitBreakerRepository) State() string {
	if r.cb == nil {
		return "disabled"
	}
	return r.cb.State().String()
}

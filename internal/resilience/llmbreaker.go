package resilience

import (
	"context"

	"go.uber.org/zap"

	"github.com/leadboost/leadboost/pkg/llm"
)

// breakerClient wraps an llm.Client with a circuit breaker. When the API
// fails repeatedly, calls short-circuit with ErrCircuitOpen and the
// enricher and messenger fall back to their non-LLM strategies.
type breakerClient struct {
	inner   llm.Client
	breaker *CircuitBreaker
}

// WrapLLMClient guards an LLM client with a circuit breaker.
func WrapLLMClient(inner llm.Client, cfg CircuitBreakerConfig) llm.Client {
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(from, to CircuitState) {
			zap.L().Warn("llm circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}
	return &breakerClient{inner: inner, breaker: NewCircuitBreaker(cfg)}
}

func (c *breakerClient) CreateMessage(ctx context.Context, req llm.MessageRequest) (*llm.MessageResponse, error) {
	return ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*llm.MessageResponse, error) {
		return c.inner.CreateMessage(ctx, req)
	})
}

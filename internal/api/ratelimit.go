package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterPool manages per-model and per-provider rate limiters.
// A request waits on its provider limiter (when one is configured) and
// then on its model limiter, so several models sharing one account
// never exceed the account's quota.
type RateLimiterPool struct {
	limiters  map[string]*rate.Limiter
	rates     map[string]int // Track original rates for consistency check
	providers map[string]*rate.Limiter
	mu        sync.RWMutex
}

// NewRateLimiterPool creates a new rate limiter pool
func NewRateLimiterPool() *RateLimiterPool {
	return &RateLimiterPool{
		limiters:  make(map[string]*rate.Limiter),
		rates:     make(map[string]int),
		providers: make(map[string]*rate.Limiter),
	}
}

// GetOrCreate returns an existing rate limiter or creates a new one
// If a limiter exists with a different rate, it logs a warning and keeps the existing one
func (p *RateLimiterPool) GetOrCreate(modelID string, requestsPerMinute int) *rate.Limiter {
	p.mu.RLock()
	limiter, exists := p.limiters[modelID]
	existingRate := p.rates[modelID]
	p.mu.RUnlock()

	if exists {
		if existingRate != requestsPerMinute {
			slog.Warn("Rate limiter already exists with different rate, using existing rate",
				"model_id", modelID,
				"existing_rpm", existingRate,
				"requested_rpm", requestsPerMinute)
		}
		return limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Another goroutine may have won the race
	if limiter, exists := p.limiters[modelID]; exists {
		return limiter
	}

	// Convert requests per minute to requests per second, allow 20% burst
	rps := float64(requestsPerMinute) / 60.0
	burst := max(5, requestsPerMinute/5)
	limiter = rate.NewLimiter(rate.Limit(rps), burst)
	p.limiters[modelID] = limiter
	p.rates[modelID] = requestsPerMinute

	slog.Debug("Created rate limiter",
		"model_id", modelID,
		"rpm", requestsPerMinute,
		"rps", rps,
		"burst", burst)

	return limiter
}

// providerLimiter returns the shared limiter for a provider, creating it on first use.
// burstPercent is the share of the per-minute quota that may be spent at once.
func (p *RateLimiterPool) providerLimiter(provider string, requestsPerMinute, burstPercent int) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, ok := p.providers[provider]; ok {
		return limiter
	}

	rps := float64(requestsPerMinute) / 60.0
	burst := max(1, requestsPerMinute*burstPercent/100)
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	p.providers[provider] = limiter

	slog.Debug("Created provider rate limiter",
		"provider", provider,
		"rpm", requestsPerMinute,
		"burst", burst)

	return limiter
}

// Wait blocks until both the provider limiter (if providerRPM > 0) and the
// model limiter allow the next request
func (p *RateLimiterPool) Wait(
	ctx context.Context,
	modelID string,
	requestsPerMinute int,
	provider string,
	providerRPM int,
	burstPercent int,
) error {
	if providerRPM > 0 {
		if err := p.providerLimiter(provider, providerRPM, burstPercent).Wait(ctx); err != nil {
			return fmt.Errorf("provider %s: %w", provider, err)
		}
	}
	if requestsPerMinute <= 0 {
		return nil
	}
	return p.GetOrCreate(modelID, requestsPerMinute).Wait(ctx)
}

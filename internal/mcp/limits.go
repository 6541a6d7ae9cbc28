package mcp

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ToolLimiters maps tool names to their token bucket limiters.
type ToolLimiters map[string]*rate.Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
// Sweeps are expensive, so they get the tightest bucket.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		toolRun:       rate.NewLimiter(rate.Every(time.Second), 10),   // 60/minute, burst 10
		toolSweep:     rate.NewLimiter(rate.Every(12*time.Second), 2), // 5/minute, burst 2
		toolResults:   rate.NewLimiter(rate.Every(time.Second), 10),   // 60/minute, burst 10
		toolTemplates: rate.NewLimiter(rate.Every(time.Second), 10),   // 60/minute, burst 10
		toolBackup:    rate.NewLimiter(rate.Every(time.Minute), 1),    // 1/minute, burst 1
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error if rate limited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	if !limiter.Allow() {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", toolName)
	}

	return nil
}

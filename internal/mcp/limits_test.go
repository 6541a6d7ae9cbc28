package mcp

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestNewToolLimiters_CoversEveryTool(t *testing.T) {
	limiters := NewToolLimiters()
	for _, tool := range []string{toolRun, toolSweep, toolResults, toolTemplates, toolBackup} {
		if _, ok := limiters[tool]; !ok {
			t.Errorf("missing rate limiter for %s", tool)
		}
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := ToolLimiters{
		"tight": rate.NewLimiter(rate.Every(time.Hour), 2),
	}

	for i := 0; i < 2; i++ {
		if err := CheckLimit(limiters, "tight"); err != nil {
			t.Fatalf("call %d rejected within burst: %v", i+1, err)
		}
	}

	err := CheckLimit(limiters, "tight")
	if err == nil {
		t.Fatal("expected rate limit error after burst is spent")
	}
	if !strings.Contains(err.Error(), "tight") {
		t.Errorf("error %q should name the tool", err)
	}

	if err := CheckLimit(limiters, "unlimited"); err != nil {
		t.Errorf("tool without limiter rejected: %v", err)
	}
}

// Package health computes the service status reported by GET /health from
// the upstream error rate, rate-limit pressure, the shutdown flag and
// store reachability.
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/kjstillabower/weather-lookup/internal/lifecycle"
)

// Status values, in decreasing priority.
const (
	StatusShuttingDown = "shutting-down"
	StatusOverloaded   = "overloaded"
	StatusDegraded     = "degraded"
	StatusHealthy      = "healthy"
)

// Config holds thresholds. A zero window or percentage disables that check.
type Config struct {
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
}

// PingFunc checks a dependency; nil error means reachable.
type PingFunc func(ctx context.Context) error

// Result is one health evaluation.
type Result struct {
	Status     string            `json:"status"`
	StatusCode int               `json:"-"`
	Reason     string            `json:"reason,omitempty"`
	Checks     map[string]string `json:"checks"`
}

// Checker evaluates health. Dependency pings are informational and do not
// change the status.
type Checker struct {
	cfg     Config
	tracker *Tracker
	pings   map[string]PingFunc
}

// NewChecker creates a Checker reading outcomes from tracker.
func NewChecker(cfg Config, tracker *Tracker) *Checker {
	return &Checker{cfg: cfg, tracker: tracker, pings: make(map[string]PingFunc)}
}

// AddPing registers a named dependency check (e.g. "store").
func (c *Checker) AddPing(name string, ping PingFunc) {
	c.pings[name] = ping
}

// Evaluate returns the current status. Order: shutting-down > overloaded >
// degraded > healthy.
func (c *Checker) Evaluate(ctx context.Context) Result {
	res := c.status()
	res.Checks = c.checks(ctx, res.Status == StatusDegraded)
	return res
}

func (c *Checker) status() Result {
	if lifecycle.IsShuttingDown() {
		return Result{Status: StatusShuttingDown, StatusCode: http.StatusServiceUnavailable, Reason: "signal"}
	}
	if c.cfg.OverloadWindow > 0 && c.cfg.OverloadThresholdPct > 0 && c.cfg.RateLimitRPS > 0 {
		threshold := float64(c.cfg.RateLimitRPS) * c.cfg.OverloadWindow.Seconds() * float64(c.cfg.OverloadThresholdPct) / 100
		if float64(c.tracker.DenialCount(c.cfg.OverloadWindow)) > threshold {
			return Result{Status: StatusOverloaded, StatusCode: http.StatusServiceUnavailable, Reason: "overload_threshold"}
		}
	}
	if c.cfg.DegradedWindow > 0 && c.cfg.DegradedErrorPct > 0 {
		errs, total := c.tracker.ErrorRate(c.cfg.DegradedWindow)
		if total > 0 && float64(errs)*100/float64(total) >= float64(c.cfg.DegradedErrorPct) {
			return Result{Status: StatusDegraded, StatusCode: http.StatusServiceUnavailable, Reason: "error_rate_breach"}
		}
	}
	return Result{Status: StatusHealthy, StatusCode: http.StatusOK}
}

func (c *Checker) checks(ctx context.Context, upstreamDegraded bool) map[string]string {
	checks := map[string]string{"openMeteo": "healthy"}
	if upstreamDegraded {
		checks["openMeteo"] = "unhealthy"
	}
	names := make([]string, 0, len(c.pings))
	for name := range c.pings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if c.pings[name](pingCtx) == nil {
			checks[name] = "healthy"
		} else {
			checks[name] = "unhealthy"
		}
		cancel()
	}
	return checks
}

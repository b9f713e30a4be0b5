package fetchr

import (
	"context"
	"time"

	healthuc "github.com/kailas-cloud/fetchr/internal/usecase/health"
)

// HealthStatus represents the aggregated health of the providers and the store.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // "expansion", "database" -> "ok"/"error"
}

// OK reports whether every check passed.
func (h HealthStatus) OK() bool { return h.Status == string(healthuc.Healthy) }

// Health checks the expansion provider and, with WithRedis, the database.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)
	c.obs.observe("health", start, nil, "status", string(report.Status))

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

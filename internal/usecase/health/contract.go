package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ExpansionChecker checks expansion provider availability.
type ExpansionChecker interface {
	HealthCheck(ctx context.Context) error
}

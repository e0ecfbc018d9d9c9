package health

import "context"

// DBPinger checks primary store connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// InferenceChecker checks the inference API is reachable.
type InferenceChecker interface {
	HealthCheck(ctx context.Context) error
}

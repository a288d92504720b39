package health

import "context"

// IndexPinger checks vector index availability.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding backend availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// ModelChecker checks the generation backend has its model available.
type ModelChecker interface {
	CheckModel(ctx context.Context) error
}

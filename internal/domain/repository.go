package domain

import "context"

// GenerationRepository persists generation records. Records are append-only.
type GenerationRepository interface {
	Create(ctx context.Context, record *GenerationRecord) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]GenerationRecord, error)
}

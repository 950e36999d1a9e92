package port

import (
	"context"

	"github.com/garyjia/order-resolution/internal/domain/entity"
)

// FallbackRecord is a notification that exhausted its retries
type FallbackRecord struct {
	Notification *entity.Notification `json:"notification"`
	Error        string               `json:"error"`
	FailedAt     string               `json:"failed_at"`
}

// FallbackStore keeps undeliverable notifications on disk for manual replay
type FallbackStore interface {
	Append(ctx context.Context, rec FallbackRecord) error
	ReadAll(ctx context.Context) ([]FallbackRecord, error)
	Truncate(ctx context.Context) error
}

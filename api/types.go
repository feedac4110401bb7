package api

import (
	"context"

	"bluetask-api/domain"
	"bluetask-api/storage"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	FetchTasks(ctx context.Context, userID string, f domain.Filter) ([]domain.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error)
	InsertTask(ctx context.Context, userID string, t domain.Task) error
	ReplaceTask(ctx context.Context, userID string, t domain.Task) error
	SetTaskStatus(ctx context.Context, userID, taskID, status string) error
	DeleteTask(ctx context.Context, userID, taskID string) error
	GetProfile(ctx context.Context, userID string) (*domain.Profile, string, error)
	GetProfileForUpdate(ctx context.Context, userID string) (*domain.Profile, string, error)
	InsertProfile(ctx context.Context, userID string, p domain.Profile) error
	UpdateProfileLabels(ctx context.Context, userID string, labels []domain.Label, etag string) error
	UpdateProfileTheme(ctx context.Context, userID, theme string) error
	EnqueueSweep(ctx context.Context, cmd domain.SweepCommand) error
}

// SweepSource is the queue side consumed by the background sweeper.
type SweepSource interface {
	DequeueSweep(ctx context.Context) (*domain.SweepCommand, storage.SweepReceipt, error)
	DeleteSweep(ctx context.Context, rcpt storage.SweepReceipt) error
	SweepLabel(ctx context.Context, userID, label string) error
}

// Identity is the caller as established from the bearer token.
type Identity struct {
	UserID string
	Email  string
}

// Authenticator is implemented by types able to extract caller identity from headers.
type Authenticator interface {
	IdentityFromAuthHeader(string) (Identity, error)
}

// Deduper prevents processing of duplicate mutation requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, userID, key string) error
}

package storage

import (
	"context"
	"errors"

	"imgpub/internal/domain/models"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrNotFound is returned when a short link or a config key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotConnected is returned by a store that has no usable backend.
	ErrNotConnected = errors.New("storage is not connected")
	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")
)

//go:generate mockgen -destination=../mocks/mock_storage.go -package=mocks imgpub/internal/storage ConfigStore,LinkStore,LinkTx

// LinkStore keeps short links. The unique index on code lives behind it.
type LinkStore interface {
	// BeginTx starts a transaction for read-check-write sequences.
	BeginTx(ctx context.Context) (LinkTx, error)
	FindLink(ctx context.Context, code string) (models.ShortLink, error)
	// ListLinksByOwner returns one page of links and the owner's total.
	ListLinksByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.ShortLink, int, error)
	// DeleteLink removes a link; an empty ownerID matches any owner.
	DeleteLink(ctx context.Context, code, ownerID string) (bool, error)
	AllLinks(ctx context.Context) ([]models.ShortLink, error)
	DeleteAllLinks(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// LinkTx is a transaction over the link store.
type LinkTx interface {
	CodeExists(ctx context.Context, code string) (bool, error)
	// InsertLink returns false when the code is already taken.
	InsertLink(ctx context.Context, link models.ShortLink) (bool, error)
	// LinksWithTargetContaining locks and returns the links whose target contains
	// substr, ignoring letter case.
	LinksWithTargetContaining(ctx context.Context, substr string) ([]models.ShortLink, error)
	UpdateTarget(ctx context.Context, code, target string) error
	Commit() error
	Rollback() error
}

// ConfigStore keeps the gateway key/value settings.
type ConfigStore interface {
	FindConfig(ctx context.Context, key string) (models.GatewayConfig, error)
	UpsertConfig(ctx context.Context, key, value string) error
}

// Store is implemented by every storage backend.
type Store interface {
	LinkStore
	ConfigStore
	Close() error
}

package store

import (
	"context"
	"errors"

	"salescope/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRecord = errors.New("invalid record")
	ErrWriteFailed   = errors.New("store write failed")
)

// Repository is the durable Record Store plus the identity accounts the auth
// manager needs. Sale records are partitioned by owner id; implementations
// must make ReplaceSaleRecords atomic per owner, so concurrent readers see
// either the prior record set or the complete new one, never a partial mix.
type Repository interface {
	// ReplaceSaleRecords deletes every record owned by ownerID and inserts
	// the given set within one transaction boundary. On failure the prior
	// set must survive intact.
	ReplaceSaleRecords(ctx context.Context, ownerID string, records []domain.SaleRecord) error
	// ListSaleRecords returns all records for the owner ordered by date
	// ascending with insertion order as tie-break, so aggregation over the
	// result is reproducible across runs.
	ListSaleRecords(ctx context.Context, ownerID string) ([]domain.SaleRecord, error)
	DeleteSaleRecords(ctx context.Context, ownerID string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

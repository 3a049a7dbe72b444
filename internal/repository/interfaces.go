package repository

import (
	"context"
	"errors"

	"nftmarket-api/internal/model"
	"nftmarket-api/pkg/derive"
)

// Repository errors shared by all backends. Services wrap these into their
// own taxonomy; handlers never see them directly.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates an insert collided with an existing record.
	ErrDuplicate = errors.New("record already exists")

	// ErrInsufficientFunds indicates a debit larger than the account balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// LedgerRepository is the persistent store for every marketplace record:
// configs, listings, items and account balances.
//
// All state changes go through InTx; the transaction either commits as a
// whole or leaves no trace, which is what makes each public marketplace
// operation indivisible. The top-level getters are read-only conveniences
// for the HTTP layer.
type LedgerRepository interface {
	// InTx runs fn inside a single database transaction. If fn returns an
	// error the transaction is rolled back and the error is returned.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetMarketplace(ctx context.Context, addr derive.Address) (*model.Marketplace, error)
	GetListing(ctx context.Context, addr derive.Address) (*model.Listing, error)
	GetItem(ctx context.Context, addr derive.Address) (*model.Item, error)
	GetAccount(ctx context.Context, addr derive.Address) (*model.Account, error)

	// GetStats returns statistics about the ledger database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}

// Tx exposes every record operation inside one transaction.
type Tx interface {
	GetMarketplace(ctx context.Context, addr derive.Address) (*model.Marketplace, error)
	InsertMarketplace(ctx context.Context, m *model.Marketplace) error

	GetListing(ctx context.Context, addr derive.Address) (*model.Listing, error)
	InsertListing(ctx context.Context, l *model.Listing) error
	DeleteListing(ctx context.Context, addr derive.Address) error

	GetItem(ctx context.Context, addr derive.Address) (*model.Item, error)
	InsertItem(ctx context.Context, i *model.Item) error
	UpdateItem(ctx context.Context, i *model.Item) error
	DeleteItem(ctx context.Context, addr derive.Address) error

	// Balance returns the account balance, zero for unknown addresses.
	// The SQLite and Postgres backends store balances in signed 64-bit
	// columns, so the ledger only represents values below 2^63; callers
	// minting funds must keep every account under that bound.
	Balance(ctx context.Context, addr derive.Address) (uint64, error)
	// Credit adds amount to the account, creating it if absent. The caller
	// is responsible for keeping the resulting balance in the signed range.
	Credit(ctx context.Context, addr derive.Address, amount uint64) error
	// Debit subtracts amount, failing with ErrInsufficientFunds if the
	// balance does not cover it.
	Debit(ctx context.Context, addr derive.Address, amount uint64) error
}

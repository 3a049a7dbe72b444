package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"nftmarket-api/internal/model"
	"nftmarket-api/pkg/derive"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteLedgerRepository {
	t.Helper()
	repo, err := NewSQLiteLedgerRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testMarketplace() *model.Marketplace {
	return &model.Marketplace{
		Address:      derive.Random(),
		Admin:        derive.Random(),
		Name:         "test market",
		FeeBps:       500,
		Bump:         254,
		Treasury:     derive.Random(),
		TreasuryBump: 253,
	}
}

func TestMarketplaceRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	m := testMarketplace()

	err := repo.InTx(ctx, func(tx Tx) error {
		return tx.InsertMarketplace(ctx, m)
	})
	require.NoError(t, err)

	got, err := repo.GetMarketplace(ctx, m.Address)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestMarketplaceDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	m := testMarketplace()

	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		return tx.InsertMarketplace(ctx, m)
	}))

	err := repo.InTx(ctx, func(tx Tx) error {
		return tx.InsertMarketplace(ctx, m)
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMarketplaceNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetMarketplace(context.Background(), derive.Random())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	listing := &model.Listing{
		Address:     derive.Random(),
		Marketplace: derive.Random(),
		Seller:      derive.Random(),
		Item:        derive.Random(),
		Price:       1000,
		TokenID:     7,
		Bump:        255,
		Escrow:      derive.Random(),
		EscrowBump:  252,
		IsActive:    true,
	}

	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		return tx.InsertListing(ctx, listing)
	}))

	got, err := repo.GetListing(ctx, listing.Address)
	require.NoError(t, err)
	assert.Equal(t, listing, got)

	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		return tx.DeleteListing(ctx, listing.Address)
	}))

	_, err = repo.GetListing(ctx, listing.Address)
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.InTx(ctx, func(tx Tx) error {
		return tx.DeleteListing(ctx, listing.Address)
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingUniquePerMarketplaceItem(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	marketplace := derive.Random()
	item := derive.Random()

	first := &model.Listing{
		Address:     derive.Random(),
		Marketplace: marketplace,
		Item:        item,
		Seller:      derive.Random(),
		Escrow:      derive.Random(),
		IsActive:    true,
	}
	second := &model.Listing{
		Address:     derive.Random(),
		Marketplace: marketplace,
		Item:        item,
		Seller:      derive.Random(),
		Escrow:      derive.Random(),
		IsActive:    true,
	}

	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		return tx.InsertListing(ctx, first)
	}))
	err := repo.InTx(ctx, func(tx Tx) error {
		return tx.InsertListing(ctx, second)
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestItemRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	owner := derive.Random()
	delegate := derive.Random()
	item := &model.Item{
		Address:         derive.Random(),
		Owner:           owner,
		UpdateAuthority: owner,
		Collection:      derive.Random(),
		Name:            "sword #1",
		URI:             "https://example.com/1.json",
		Frozen:          true,
		Delegates: map[model.Capability]derive.Address{
			model.CapabilityTransfer: delegate,
		},
	}

	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		return tx.InsertItem(ctx, item)
	}))

	got, err := repo.GetItem(ctx, item.Address)
	require.NoError(t, err)
	assert.Equal(t, item, got)

	// Clearing the ACL and thawing persists as the empty state.
	item.Frozen = false
	item.Delegates = nil
	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		return tx.UpdateItem(ctx, item)
	}))

	got, err = repo.GetItem(ctx, item.Address)
	require.NoError(t, err)
	assert.False(t, got.Frozen)
	assert.Empty(t, got.Delegates)
}

func TestItemWithoutCollection(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	item := &model.Item{
		Address:         derive.Random(),
		Owner:           derive.Random(),
		UpdateAuthority: derive.Random(),
		Name:            "standalone",
		URI:             "https://example.com/s.json",
	}

	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		return tx.InsertItem(ctx, item)
	}))

	got, err := repo.GetItem(ctx, item.Address)
	require.NoError(t, err)
	assert.False(t, got.HasCollection())
}

func TestDeleteItem(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	item := &model.Item{
		Address:         derive.Random(),
		Owner:           derive.Random(),
		UpdateAuthority: derive.Random(),
		Name:            "burnable",
		URI:             "uri",
	}

	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		return tx.InsertItem(ctx, item)
	}))
	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		return tx.DeleteItem(ctx, item.Address)
	}))

	_, err := repo.GetItem(ctx, item.Address)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBalances(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := derive.Random()
	bob := derive.Random()

	// Unknown accounts read as zero.
	account, err := repo.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, account.Balance)

	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		if err := tx.Credit(ctx, alice, 1000); err != nil {
			return err
		}
		return tx.Credit(ctx, alice, 500)
	}))

	account, err = repo.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), account.Balance)

	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		if err := tx.Debit(ctx, alice, 600); err != nil {
			return err
		}
		return tx.Credit(ctx, bob, 600)
	}))

	account, err = repo.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), account.Balance)

	account, err = repo.GetAccount(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), account.Balance)
}

func TestDebitInsufficientFunds(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addr := derive.Random()
	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		return tx.Credit(ctx, addr, 100)
	}))

	err := repo.InTx(ctx, func(tx Tx) error {
		return tx.Debit(ctx, addr, 101)
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Debiting an unknown account also fails, but a zero debit is a no-op.
	err = repo.InTx(ctx, func(tx Tx) error {
		return tx.Debit(ctx, derive.Random(), 1)
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		return tx.Debit(ctx, derive.Random(), 0)
	}))
}

func TestInTxRollback(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addr := derive.Random()
	boom := errors.New("boom")

	err := repo.InTx(ctx, func(tx Tx) error {
		if err := tx.Credit(ctx, addr, 1000); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// The credit must not have survived the rollback.
	account, err := repo.GetAccount(ctx, addr)
	require.NoError(t, err)
	assert.Zero(t, account.Balance)
}

func TestGetStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertMarketplace(ctx, testMarketplace()); err != nil {
			return err
		}
		return tx.Credit(ctx, derive.Random(), 42)
	}))

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["marketplaces"])
	assert.Equal(t, int64(1), stats["accounts"])
	assert.Equal(t, int64(42), stats["total_supply"])
}

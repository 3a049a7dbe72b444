package service

import (
	"context"
	"path/filepath"
	"testing"

	"nftmarket-api/internal/model"
	"nftmarket-api/internal/repository"
	"nftmarket-api/pkg/derive"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItemFixture(t *testing.T) (repository.LedgerRepository, *ItemService) {
	t.Helper()
	repo, err := repository.NewSQLiteLedgerRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, NewItemService(repo)
}

func TestCreateItem(t *testing.T) {
	_, items := newItemFixture(t)
	ctx := context.Background()

	creator := derive.Random()
	item, err := items.CreateItem(ctx, CreateItemParams{
		Creator: creator,
		Name:    "plain item",
		URI:     "https://example.com/plain.json",
	})
	require.NoError(t, err)

	assert.Equal(t, creator, item.Owner)
	assert.Equal(t, creator, item.UpdateAuthority)
	assert.False(t, item.HasCollection())
	assert.False(t, item.Frozen)

	got, err := items.GetItem(ctx, item.Address)
	require.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestCreateItemInCollection(t *testing.T) {
	_, items := newItemFixture(t)
	ctx := context.Background()

	creator := derive.Random()
	collection, err := items.CreateItem(ctx, CreateItemParams{
		Creator:      creator,
		Name:         "my collection",
		URI:          "https://example.com/col.json",
		IsCollection: true,
	})
	require.NoError(t, err)

	item, err := items.CreateItem(ctx, CreateItemParams{
		Creator:    creator,
		Collection: collection.Address,
		Name:       "member",
		URI:        "https://example.com/m.json",
	})
	require.NoError(t, err)
	assert.Equal(t, collection.Address, item.Collection)

	// Only the collection's update authority may mint into it.
	_, err = items.CreateItem(ctx, CreateItemParams{
		Creator:    derive.Random(),
		Collection: collection.Address,
		Name:       "intruder",
		URI:        "uri",
	})
	assert.ErrorIs(t, err, ErrNotUpdateAuthority)

	// A plain item is not a valid collection parent.
	_, err = items.CreateItem(ctx, CreateItemParams{
		Creator:    creator,
		Collection: item.Address,
		Name:       "nested",
		URI:        "uri",
	})
	assert.ErrorIs(t, err, ErrCollectionMismatch)

	_, err = items.CreateItem(ctx, CreateItemParams{
		Creator:    creator,
		Collection: derive.Random(),
		Name:       "orphan",
		URI:        "uri",
	})
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestUpdateItem(t *testing.T) {
	_, items := newItemFixture(t)
	ctx := context.Background()

	creator := derive.Random()
	item, err := items.CreateItem(ctx, CreateItemParams{
		Creator: creator,
		Name:    "before",
		URI:     "https://example.com/before.json",
	})
	require.NoError(t, err)

	name := "after"
	updated, err := items.UpdateItem(ctx, creator, item.Address, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Name)
	assert.Equal(t, item.URI, updated.URI, "nil field stays unchanged")

	_, err = items.UpdateItem(ctx, derive.Random(), item.Address, &name, nil)
	assert.ErrorIs(t, err, ErrNotUpdateAuthority)

	_, err = items.UpdateItem(ctx, creator, derive.Random(), &name, nil)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestTransferClearsDelegates(t *testing.T) {
	repo, items := newItemFixture(t)
	ctx := context.Background()

	owner := derive.Random()
	delegate := derive.Random()
	receiver := derive.Random()

	item, err := items.CreateItem(ctx, CreateItemParams{Creator: owner, Name: "x", URI: "u"})
	require.NoError(t, err)

	err = repo.InTx(ctx, func(tx repository.Tx) error {
		ownerAuth := derive.SignerAuthority(owner)
		if err := items.ApproveDelegate(ctx, tx, item, ownerAuth, model.CapabilityTransfer, delegate); err != nil {
			return err
		}
		// The delegate can now move the item.
		return items.Transfer(ctx, tx, item, derive.SignerAuthority(delegate), receiver)
	})
	require.NoError(t, err)

	got, err := items.GetItem(ctx, item.Address)
	require.NoError(t, err)
	assert.Equal(t, receiver, got.Owner)
	assert.Empty(t, got.Delegates, "delegation does not survive a transfer")
}

func TestTransferUnauthorized(t *testing.T) {
	repo, items := newItemFixture(t)
	ctx := context.Background()

	owner := derive.Random()
	item, err := items.CreateItem(ctx, CreateItemParams{Creator: owner, Name: "x", URI: "u"})
	require.NoError(t, err)

	err = repo.InTx(ctx, func(tx repository.Tx) error {
		return items.Transfer(ctx, tx, item, derive.SignerAuthority(derive.Random()), derive.Random())
	})
	assert.ErrorIs(t, err, ErrNotItemAuthority)
}

func TestRevokeDelegates(t *testing.T) {
	repo, items := newItemFixture(t)
	ctx := context.Background()

	owner := derive.Random()
	delegate := derive.Random()
	item, err := items.CreateItem(ctx, CreateItemParams{Creator: owner, Name: "x", URI: "u"})
	require.NoError(t, err)

	ownerAuth := derive.SignerAuthority(owner)

	require.NoError(t, repo.InTx(ctx, func(tx repository.Tx) error {
		return items.ApproveDelegate(ctx, tx, item, ownerAuth, model.CapabilityBurn, delegate)
	}))

	// Only the owner may revoke.
	err = repo.InTx(ctx, func(tx repository.Tx) error {
		return items.RevokeDelegates(ctx, tx, item, derive.SignerAuthority(delegate))
	})
	assert.ErrorIs(t, err, ErrNotItemAuthority)

	require.NoError(t, repo.InTx(ctx, func(tx repository.Tx) error {
		return items.RevokeDelegates(ctx, tx, item, ownerAuth)
	}))

	got, err := items.GetItem(ctx, item.Address)
	require.NoError(t, err)
	assert.Empty(t, got.Delegates)
	assert.Equal(t, owner, got.DelegateFor(model.CapabilityBurn), "capability falls back to the owner")
}

func TestFreezeBlocksTransferAndBurn(t *testing.T) {
	repo, items := newItemFixture(t)
	ctx := context.Background()

	owner := derive.Random()
	item, err := items.CreateItem(ctx, CreateItemParams{Creator: owner, Name: "x", URI: "u"})
	require.NoError(t, err)

	ownerAuth := derive.SignerAuthority(owner)

	require.NoError(t, repo.InTx(ctx, func(tx repository.Tx) error {
		return items.Freeze(ctx, tx, item, ownerAuth)
	}))

	err = repo.InTx(ctx, func(tx repository.Tx) error {
		return items.Transfer(ctx, tx, item, ownerAuth, derive.Random())
	})
	assert.ErrorIs(t, err, ErrItemFrozen)

	err = repo.InTx(ctx, func(tx repository.Tx) error {
		return items.Burn(ctx, tx, item, ownerAuth)
	})
	assert.ErrorIs(t, err, ErrItemFrozen)

	// Thaw restores both.
	require.NoError(t, repo.InTx(ctx, func(tx repository.Tx) error {
		if err := items.Thaw(ctx, tx, item, ownerAuth); err != nil {
			return err
		}
		return items.Burn(ctx, tx, item, ownerAuth)
	}))

	_, err = items.GetItem(ctx, item.Address)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestDelegatedFreezeExcludesOwner(t *testing.T) {
	repo, items := newItemFixture(t)
	ctx := context.Background()

	owner := derive.Random()
	freezer := derive.Random()
	item, err := items.CreateItem(ctx, CreateItemParams{Creator: owner, Name: "x", URI: "u"})
	require.NoError(t, err)

	ownerAuth := derive.SignerAuthority(owner)

	require.NoError(t, repo.InTx(ctx, func(tx repository.Tx) error {
		return items.ApproveDelegate(ctx, tx, item, ownerAuth, model.CapabilityFreeze, freezer)
	}))

	// Granting the capability re-assigns it away from the owner.
	err = repo.InTx(ctx, func(tx repository.Tx) error {
		return items.Freeze(ctx, tx, item, ownerAuth)
	})
	assert.ErrorIs(t, err, ErrNotItemAuthority)

	require.NoError(t, repo.InTx(ctx, func(tx repository.Tx) error {
		return items.Freeze(ctx, tx, item, derive.SignerAuthority(freezer))
	}))

	got, err := items.GetItem(ctx, item.Address)
	require.NoError(t, err)
	assert.True(t, got.Frozen)
}

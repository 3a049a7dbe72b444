package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"nftmarket-api/internal/model"
	"nftmarket-api/internal/repository"
	"nftmarket-api/pkg/derive"
)

// ItemService is the item-management collaborator: it owns the item schema
// and is the only component that mutates item ownership, authorities, the
// delegate ACL and the frozen flag. The marketplace core calls into it but
// never touches item rows directly.
type ItemService struct {
	repo repository.LedgerRepository
}

// NewItemService creates a new item service.
// Returns nil if repo is nil (required dependency).
func NewItemService(repo repository.LedgerRepository) *ItemService {
	if repo == nil {
		return nil
	}
	return &ItemService{repo: repo}
}

// CreateItemParams are the inputs to CreateItem.
type CreateItemParams struct {
	Creator      derive.Address
	Collection   derive.Address // optional; zero means no collection
	Name         string
	URI          string
	IsCollection bool
}

// CreateItem mints a new item owned by the creator, who also becomes its
// update authority. When a collection is given, the creator must be that
// collection's update authority.
func (s *ItemService) CreateItem(ctx context.Context, params CreateItemParams) (*model.Item, error) {
	item := &model.Item{
		Address:         derive.Random(),
		Owner:           params.Creator,
		UpdateAuthority: params.Creator,
		Collection:      params.Collection,
		Name:            params.Name,
		URI:             params.URI,
		IsCollection:    params.IsCollection,
	}

	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		if item.HasCollection() {
			collection, err := tx.GetItem(ctx, params.Collection)
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("collection %s: %w", params.Collection, ErrItemNotFound)
			}
			if err != nil {
				return err
			}
			if !collection.IsCollection {
				return ErrCollectionMismatch
			}
			if collection.UpdateAuthority != params.Creator {
				return ErrNotUpdateAuthority
			}
		}
		return tx.InsertItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ItemService] Created item %s (owner=%s)", item.Address, item.Owner)
	return item, nil
}

// UpdateItem changes the item's metadata. Only the update authority may call
// it; nil fields are left unchanged.
func (s *ItemService) UpdateItem(ctx context.Context, authority, addr derive.Address, name, uri *string) (*model.Item, error) {
	var updated *model.Item
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		item, err := tx.GetItem(ctx, addr)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		if item.UpdateAuthority != authority {
			return ErrNotUpdateAuthority
		}
		if name != nil {
			item.Name = *name
		}
		if uri != nil {
			item.URI = *uri
		}
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetItem retrieves an item by address.
func (s *ItemService) GetItem(ctx context.Context, addr derive.Address) (*model.Item, error) {
	item, err := s.repo.GetItem(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	return item, err
}

// The methods below are the custody primitives. They run inside the caller's
// transaction so a failed step never leaves a half-moved item behind.

// Transfer moves ownership of the item to newOwner. The authority must be
// the current owner or the transfer delegate. Transfers clear the delegate
// ACL: narrow powers do not survive an ownership change.
func (s *ItemService) Transfer(ctx context.Context, tx repository.Tx, item *model.Item, authority derive.Authority, newOwner derive.Address) error {
	if item.Frozen {
		return ErrItemFrozen
	}
	if authority.Address() != item.DelegateFor(model.CapabilityTransfer) && authority.Address() != item.Owner {
		return fmt.Errorf("transfer of %s: %w", item.Address, ErrNotItemAuthority)
	}
	item.Owner = newOwner
	item.Delegates = nil
	return tx.UpdateItem(ctx, item)
}

// ApproveDelegate grants a capability to the given authority. Only the
// current owner may grant; granting re-assigns the capability away from the
// owner entirely until the ACL is cleared.
func (s *ItemService) ApproveDelegate(ctx context.Context, tx repository.Tx, item *model.Item, owner derive.Authority, cap model.Capability, delegate derive.Address) error {
	if owner.Address() != item.Owner {
		return fmt.Errorf("delegate approval on %s: %w", item.Address, ErrNotItemAuthority)
	}
	if item.Delegates == nil {
		item.Delegates = make(map[model.Capability]derive.Address)
	}
	item.Delegates[cap] = delegate
	return tx.UpdateItem(ctx, item)
}

// RevokeDelegates clears the item's delegate ACL, returning every capability
// to the owner. Only the owner may revoke.
func (s *ItemService) RevokeDelegates(ctx context.Context, tx repository.Tx, item *model.Item, owner derive.Authority) error {
	if owner.Address() != item.Owner {
		return fmt.Errorf("delegate revocation on %s: %w", item.Address, ErrNotItemAuthority)
	}
	item.Delegates = nil
	return tx.UpdateItem(ctx, item)
}

// Freeze blocks transfers and burns of the item until Thaw. The authority
// must hold the freeze capability (the owner, unless delegated away).
func (s *ItemService) Freeze(ctx context.Context, tx repository.Tx, item *model.Item, authority derive.Authority) error {
	if authority.Address() != item.DelegateFor(model.CapabilityFreeze) {
		return fmt.Errorf("freeze of %s: %w", item.Address, ErrNotItemAuthority)
	}
	item.Frozen = true
	return tx.UpdateItem(ctx, item)
}

// Thaw lifts a freeze.
func (s *ItemService) Thaw(ctx context.Context, tx repository.Tx, item *model.Item, authority derive.Authority) error {
	if authority.Address() != item.DelegateFor(model.CapabilityFreeze) {
		return fmt.Errorf("thaw of %s: %w", item.Address, ErrNotItemAuthority)
	}
	item.Frozen = false
	return tx.UpdateItem(ctx, item)
}

// Burn destroys the item record. The authority must be the owner or the burn
// delegate; frozen items must be thawed first.
func (s *ItemService) Burn(ctx context.Context, tx repository.Tx, item *model.Item, authority derive.Authority) error {
	if item.Frozen {
		return ErrItemFrozen
	}
	if authority.Address() != item.DelegateFor(model.CapabilityBurn) && authority.Address() != item.Owner {
		return fmt.Errorf("burn of %s: %w", item.Address, ErrNotItemAuthority)
	}
	return tx.DeleteItem(ctx, item.Address)
}

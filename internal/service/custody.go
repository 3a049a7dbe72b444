package service

import (
	"context"
	"fmt"

	"nftmarket-api/internal/model"
	"nftmarket-api/internal/repository"
	"nftmarket-api/pkg/derive"
)

// CustodyStyle selects how a listed item is escrowed.
type CustodyStyle string

const (
	// CustodyDirect transfers item ownership straight to the escrow address
	// at list time. Release and destruction act under the escrow's derived
	// authority as the owner.
	CustodyDirect CustodyStyle = "direct"

	// CustodyDelegated first approves transfer, burn and freeze delegates to
	// the escrow, then transfers ownership in and freezes the item. The
	// listing doubles as a narrowly-scoped power of attorney; release and
	// destruction thaw before acting. The more defensive of the two styles.
	CustodyDelegated CustodyStyle = "delegated"
)

// ParseCustodyStyle validates a configured custody style string.
func ParseCustodyStyle(s string) (CustodyStyle, error) {
	switch CustodyStyle(s) {
	case CustodyDirect, CustodyDelegated:
		return CustodyStyle(s), nil
	default:
		return "", fmt.Errorf("unknown custody style %q", s)
	}
}

// CustodyService moves items between seller, escrow and buyer as a sequence
// of authority changes on the item service. After a successful Deposit the
// item is recoverable only through the paired escrow authority, which only
// this program can re-derive from the listing.
type CustodyService struct {
	items *ItemService
	style CustodyStyle
}

// NewCustodyService creates a custody service with the given style.
func NewCustodyService(items *ItemService, style CustodyStyle) *CustodyService {
	if items == nil {
		return nil
	}
	return &CustodyService{items: items, style: style}
}

// Style returns the configured custody style.
func (c *CustodyService) Style() CustodyStyle {
	return c.style
}

// escrowAuthority re-derives the escrow authority for a listing from the
// persisted bump. This is the only way an escrow can "sign".
func (c *CustodyService) escrowAuthority(listing *model.Listing) (derive.Authority, error) {
	auth, err := derive.DerivedAuthority(derive.NamespaceEscrow, listing.EscrowBump, listing.Address.Bytes())
	if err != nil {
		return derive.Authority{}, fmt.Errorf("re-deriving escrow for listing %s: %w", listing.Address, err)
	}
	if auth.Address() != listing.Escrow {
		return derive.Authority{}, fmt.Errorf("escrow for listing %s: %w", listing.Address, ErrAssetNotInEscrow)
	}
	return auth, nil
}

// Deposit moves the item into escrow at list time, signed by the seller.
func (c *CustodyService) Deposit(ctx context.Context, tx repository.Tx, listing *model.Listing, item *model.Item, seller derive.Address) error {
	sellerAuth := derive.SignerAuthority(seller)

	if c.style == CustodyDelegated {
		for _, cap := range model.Capabilities {
			if err := c.items.ApproveDelegate(ctx, tx, item, sellerAuth, cap, listing.Escrow); err != nil {
				return err
			}
		}
	}

	if err := c.items.Transfer(ctx, tx, item, sellerAuth, listing.Escrow); err != nil {
		return err
	}

	if c.style == CustodyDelegated {
		// Transfer cleared the ACL; the escrow now re-grants itself the
		// narrow capabilities as the new owner and freezes the item.
		escrow, err := c.escrowAuthority(listing)
		if err != nil {
			return err
		}
		for _, cap := range model.Capabilities {
			if err := c.items.ApproveDelegate(ctx, tx, item, escrow, cap, listing.Escrow); err != nil {
				return err
			}
		}
		if err := c.items.Freeze(ctx, tx, item, escrow); err != nil {
			return err
		}
	}
	return nil
}

// Held reports whether the item is actually in this listing's escrow.
func (c *CustodyService) Held(listing *model.Listing, item *model.Item) bool {
	return item.Owner == listing.Escrow
}

// Release transfers the escrowed item to the buyer under the escrow's
// derived authority.
func (c *CustodyService) Release(ctx context.Context, tx repository.Tx, listing *model.Listing, item *model.Item, buyer derive.Address) error {
	escrow, err := c.escrowAuthority(listing)
	if err != nil {
		return err
	}
	if item.Frozen {
		if err := c.items.Thaw(ctx, tx, item, escrow); err != nil {
			return err
		}
	}
	return c.items.Transfer(ctx, tx, item, escrow, buyer)
}

// Destroy burns the escrowed item under the escrow's derived authority,
// thawing first if the custody style had frozen it.
func (c *CustodyService) Destroy(ctx context.Context, tx repository.Tx, listing *model.Listing, item *model.Item) error {
	escrow, err := c.escrowAuthority(listing)
	if err != nil {
		return err
	}
	if item.Frozen {
		if err := c.items.Thaw(ctx, tx, item, escrow); err != nil {
			return err
		}
	}
	return c.items.Burn(ctx, tx, item, escrow)
}

package service

import "errors"

// Domain errors mirroring the marketplace error taxonomy. Every failure
// aborts the whole enclosing operation; the repository transaction guarantees
// nothing partial is ever persisted.
var (
	// Validation errors, rejected before any state change.
	ErrUndefinedName = errors.New("name cannot be undefined")
	ErrNameTooLong   = errors.New("name cannot be more than 32 characters long")
	ErrInvalidFeeBps = errors.New("fee basis points cannot exceed 10000 (100%)")

	// Authorization errors, rejected before custody or payment changes.
	ErrNotAssetOwner      = errors.New("seller is not the owner of the asset")
	ErrNotUpdateAuthority = errors.New("caller is not the update authority of the asset")
	ErrCollectionMismatch = errors.New("asset does not belong to the specified collection")
	ErrSellerMismatch     = errors.New("caller is not the seller of this listing")
	ErrAssetMismatch      = errors.New("asset does not match the listing")
	ErrUnauthorizedLister = errors.New("caller is not authorized to create listings")
	ErrNotItemAuthority   = errors.New("authority cannot act on this item")

	// State errors, rejected at the start of purchase/redeem.
	ErrAssetNotInEscrow    = errors.New("asset is not held in escrow")
	ErrListingNotActive    = errors.New("asset listing is not active")
	ErrListingExists       = errors.New("an active listing already exists for this asset")
	ErrMarketplaceExists   = errors.New("a marketplace already exists for this admin")
	ErrMarketplaceNotFound = errors.New("marketplace not found")
	ErrListingNotFound     = errors.New("listing not found")
	ErrItemNotFound        = errors.New("item not found")
	ErrItemFrozen          = errors.New("item is frozen")
)

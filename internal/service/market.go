package service

import (
	"context"
	"errors"
	"log"

	"nftmarket-api/internal/model"
	"nftmarket-api/internal/repository"
	"nftmarket-api/pkg/derive"
	"nftmarket-api/pkg/rent"
)

// ListingPolicy selects who may create listings on a marketplace.
type ListingPolicy string

const (
	// PolicySeller lets any item owner list on the marketplace.
	PolicySeller ListingPolicy = "seller"
	// PolicyAdmin restricts listing to the marketplace admin.
	PolicyAdmin ListingPolicy = "admin"
)

// ParseListingPolicy validates a configured listing policy string.
func ParseListingPolicy(s string) (ListingPolicy, error) {
	switch ListingPolicy(s) {
	case PolicySeller, PolicyAdmin:
		return ListingPolicy(s), nil
	default:
		return "", errors.New("unknown listing policy " + s)
	}
}

// MarketService implements the listing/escrow/settlement state machine:
// initialize -> list -> purchase | redeem. Each public operation runs inside
// one repository transaction, so every state change (records, balances, item
// custody) becomes visible together or not at all.
type MarketService struct {
	repo       repository.LedgerRepository
	items      *ItemService
	custody    *CustodyService
	settlement *SettlementEngine
	policy     ListingPolicy
}

// MarketOptions configure the marketplace policies and extension points.
type MarketOptions struct {
	CustodyStyle  CustodyStyle
	ListingPolicy ListingPolicy
	PriceOf       PriceFunc // nil means flat stored price
}

// NewMarketService creates the marketplace service.
// Returns nil if repo or items is nil (required dependencies).
func NewMarketService(repo repository.LedgerRepository, items *ItemService, opts MarketOptions) *MarketService {
	if repo == nil || items == nil {
		return nil
	}
	if opts.CustodyStyle == "" {
		opts.CustodyStyle = CustodyDirect
	}
	if opts.ListingPolicy == "" {
		opts.ListingPolicy = PolicySeller
	}
	return &MarketService{
		repo:       repo,
		items:      items,
		custody:    NewCustodyService(items, opts.CustodyStyle),
		settlement: NewSettlementEngine(opts.PriceOf),
		policy:     opts.ListingPolicy,
	}
}

// InitializeMarketplace creates a marketplace config for the admin and funds
// its treasury with the rent-equivalent minimum. One marketplace per admin:
// the config address is derived from the admin identity alone.
func (s *MarketService) InitializeMarketplace(ctx context.Context, admin derive.Address, name string, feeBps uint16) (*model.Marketplace, error) {
	if len(name) < model.MinMarketplaceNameLen {
		return nil, ErrUndefinedName
	}
	if len(name) > model.MaxMarketplaceNameLen {
		return nil, ErrNameTooLong
	}
	if feeBps > model.MaxFeeBps {
		return nil, ErrInvalidFeeBps
	}

	addr, bump, err := derive.Find(derive.NamespaceMarketplace, admin.Bytes())
	if err != nil {
		return nil, err
	}
	treasury, treasuryBump, err := derive.Find(derive.NamespaceTreasury, addr.Bytes())
	if err != nil {
		return nil, err
	}

	m := &model.Marketplace{
		Address:      addr,
		Admin:        admin,
		Name:         name,
		FeeBps:       feeBps,
		Bump:         bump,
		Treasury:     treasury,
		TreasuryBump: treasuryBump,
	}

	err = s.repo.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.InsertMarketplace(ctx, m); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrMarketplaceExists
			}
			return err
		}
		// The admin pays storage for the config record and minimally funds
		// the treasury, both debited up front so a broke admin cannot
		// initialize.
		if err := transfer(ctx, tx, admin, addr, rent.Minimum(rent.MarketplaceSize)); err != nil {
			return err
		}
		return transfer(ctx, tx, admin, treasury, rent.Minimum(0))
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[MarketService] Initialized marketplace %s (admin=%s fee_bps=%d)", m.Address, admin, feeBps)
	return m, nil
}

// List creates a listing for the item on the marketplace and moves the item
// into escrow. Valid only while no active listing exists for this
// (marketplace, item) pair.
func (s *MarketService) List(ctx context.Context, seller, marketplace, itemAddr derive.Address, price uint64, tokenID uint16) (*model.Listing, error) {
	var listing *model.Listing

	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		m, err := tx.GetMarketplace(ctx, marketplace)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMarketplaceNotFound
		}
		if err != nil {
			return err
		}
		if s.policy == PolicyAdmin && seller != m.Admin {
			return ErrUnauthorizedLister
		}

		item, err := tx.GetItem(ctx, itemAddr)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		if item.Owner != seller {
			return ErrNotAssetOwner
		}
		if item.UpdateAuthority != seller {
			return ErrNotUpdateAuthority
		}
		if item.HasCollection() {
			collection, err := tx.GetItem(ctx, item.Collection)
			if errors.Is(err, repository.ErrNotFound) {
				return ErrCollectionMismatch
			}
			if err != nil {
				return err
			}
			if collection.UpdateAuthority != seller {
				return ErrCollectionMismatch
			}
		}

		addr, bump, err := derive.Find(derive.NamespaceListing, m.Address.Bytes(), itemAddr.Bytes())
		if err != nil {
			return err
		}
		escrow, escrowBump, err := derive.Find(derive.NamespaceEscrow, addr.Bytes())
		if err != nil {
			return err
		}

		listing = &model.Listing{
			Address:     addr,
			Marketplace: m.Address,
			Seller:      seller,
			Item:        itemAddr,
			Price:       price,
			TokenID:     tokenID,
			Bump:        bump,
			Escrow:      escrow,
			EscrowBump:  escrowBump,
			IsActive:    true,
		}
		if err := tx.InsertListing(ctx, listing); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrListingExists
			}
			return err
		}
		// Seller pays storage for the listing record; refunded to whoever
		// closes it.
		if err := transfer(ctx, tx, seller, addr, rent.Minimum(rent.ListingSize)); err != nil {
			return err
		}

		return s.custody.Deposit(ctx, tx, listing, item, seller)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[MarketService] Listed item %s on %s (price=%d)", itemAddr, marketplace, price)
	return listing, nil
}

// PurchaseReceipt reports the settled amounts of a completed purchase.
type PurchaseReceipt struct {
	Listing        derive.Address `json:"listing"`
	Item           derive.Address `json:"item"`
	Buyer          derive.Address `json:"buyer"`
	Seller         derive.Address `json:"seller"`
	Price          uint64         `json:"price"`
	Fee            uint64         `json:"fee"`
	SellerProceeds uint64         `json:"seller_proceeds"`
	RentRefund     uint64         `json:"rent_refund"`
}

// Purchase buys the listed item: pays treasury and seller from the buyer,
// releases the item from escrow to the buyer and closes the listing. The
// listing record's storage balance is refunded to the buyer as the closer.
func (s *MarketService) Purchase(ctx context.Context, buyer, marketplace, itemAddr derive.Address) (*PurchaseReceipt, error) {
	var receipt *PurchaseReceipt

	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		m, err := tx.GetMarketplace(ctx, marketplace)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMarketplaceNotFound
		}
		if err != nil {
			return err
		}

		listing, item, err := s.activeListing(ctx, tx, m, itemAddr)
		if err != nil {
			return err
		}

		fee, sellerAmount, err := s.settlement.PurchaseSettlement(ctx, tx, listing, m, buyer)
		if err != nil {
			return err
		}
		if err := s.custody.Release(ctx, tx, listing, item, buyer); err != nil {
			return err
		}
		refund, err := s.closeListing(ctx, tx, listing, buyer)
		if err != nil {
			return err
		}

		receipt = &PurchaseReceipt{
			Listing:        listing.Address,
			Item:           itemAddr,
			Buyer:          buyer,
			Seller:         listing.Seller,
			Price:          fee + sellerAmount,
			Fee:            fee,
			SellerProceeds: sellerAmount,
			RentRefund:     refund,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[MarketService] Purchased item %s on %s (fee=%d seller=%d)", itemAddr, marketplace, receipt.Fee, receipt.SellerProceeds)
	return receipt, nil
}

// RedeemReceipt reports the settled amounts of a completed redemption.
type RedeemReceipt struct {
	Listing    derive.Address `json:"listing"`
	Item       derive.Address `json:"item"`
	Owner      derive.Address `json:"owner"`
	Fee        uint64         `json:"fee"`
	RentRefund uint64         `json:"rent_refund"`
}

// Redeem lets the original seller destroy their listed item early for half
// the marketplace fee, paid to the treasury. The item is burned and the
// listing closed, with the record's storage balance refunded to the owner.
func (s *MarketService) Redeem(ctx context.Context, owner, marketplace, itemAddr derive.Address) (*RedeemReceipt, error) {
	var receipt *RedeemReceipt

	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		m, err := tx.GetMarketplace(ctx, marketplace)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMarketplaceNotFound
		}
		if err != nil {
			return err
		}

		listing, item, err := s.activeListing(ctx, tx, m, itemAddr)
		if err != nil {
			return err
		}
		if listing.Seller != owner {
			return ErrSellerMismatch
		}

		fee, err := s.settlement.RedeemSettlement(ctx, tx, listing, m, owner)
		if err != nil {
			return err
		}
		if err := s.custody.Destroy(ctx, tx, listing, item); err != nil {
			return err
		}
		refund, err := s.closeListing(ctx, tx, listing, owner)
		if err != nil {
			return err
		}

		receipt = &RedeemReceipt{
			Listing:    listing.Address,
			Item:       itemAddr,
			Owner:      owner,
			Fee:        fee,
			RentRefund: refund,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[MarketService] Redeemed item %s on %s (fee=%d)", itemAddr, marketplace, receipt.Fee)
	return receipt, nil
}

// activeListing loads and checks the listing and item for purchase/redeem:
// the listing must exist and be active, the item must match it and actually
// be held by the paired escrow.
func (s *MarketService) activeListing(ctx context.Context, tx repository.Tx, m *model.Marketplace, itemAddr derive.Address) (*model.Listing, *model.Item, error) {
	addr, _, err := derive.Find(derive.NamespaceListing, m.Address.Bytes(), itemAddr.Bytes())
	if err != nil {
		return nil, nil, err
	}

	listing, err := tx.GetListing(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrListingNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if !listing.IsActive {
		return nil, nil, ErrListingNotActive
	}
	if listing.Item != itemAddr {
		return nil, nil, ErrAssetMismatch
	}

	item, err := tx.GetItem(ctx, itemAddr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrItemNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if !s.custody.Held(listing, item) {
		return nil, nil, ErrAssetNotInEscrow
	}
	return listing, item, nil
}

// closeListing deletes the listing record and refunds its storage balance to
// the closer.
func (s *MarketService) closeListing(ctx context.Context, tx repository.Tx, listing *model.Listing, closer derive.Address) (uint64, error) {
	if err := tx.DeleteListing(ctx, listing.Address); err != nil {
		return 0, err
	}
	refund, err := tx.Balance(ctx, listing.Address)
	if err != nil {
		return 0, err
	}
	if err := transfer(ctx, tx, listing.Address, closer, refund); err != nil {
		return 0, err
	}
	return refund, nil
}

// GetMarketplace retrieves a marketplace config by address.
func (s *MarketService) GetMarketplace(ctx context.Context, addr derive.Address) (*model.Marketplace, error) {
	m, err := s.repo.GetMarketplace(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMarketplaceNotFound
	}
	return m, err
}

// GetListing retrieves the active listing for a (marketplace, item) pair by
// re-deriving the listing address; no directory lookup is needed.
func (s *MarketService) GetListing(ctx context.Context, marketplace, itemAddr derive.Address) (*model.Listing, error) {
	addr, _, err := derive.Find(derive.NamespaceListing, marketplace.Bytes(), itemAddr.Bytes())
	if err != nil {
		return nil, err
	}
	listing, err := s.repo.GetListing(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrListingNotFound
	}
	return listing, err
}

package service

import (
	"context"

	"nftmarket-api/internal/model"
	"nftmarket-api/internal/repository"
	"nftmarket-api/pkg/derive"
	"nftmarket-api/pkg/feesplit"
)

// PriceFunc resolves the effective sale price of a listing. The default
// returns the flat stored price; an oracle-based per-token-type lookup can be
// plugged in here without touching the settlement path.
type PriceFunc func(listing *model.Listing) uint64

// FlatPrice is the default PriceFunc: the seller-set stored price.
func FlatPrice(listing *model.Listing) uint64 {
	return listing.Price
}

// SettlementEngine executes the payment legs of purchase and redemption.
// It only ever runs inside the operation's transaction, so a failed transfer
// (insufficient buyer funds, overflow) rolls back everything including the
// custody change that follows.
type SettlementEngine struct {
	priceOf PriceFunc
}

// NewSettlementEngine creates a settlement engine. priceOf may be nil, in
// which case the flat stored price is used.
func NewSettlementEngine(priceOf PriceFunc) *SettlementEngine {
	if priceOf == nil {
		priceOf = FlatPrice
	}
	return &SettlementEngine{priceOf: priceOf}
}

// transfer moves value between accounts inside the transaction. Zero-amount
// transfers are skipped (a 0% fee marketplace must not fail settlement).
func transfer(ctx context.Context, tx repository.Tx, from, to derive.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := tx.Debit(ctx, from, amount); err != nil {
		return err
	}
	return tx.Credit(ctx, to, amount)
}

// PurchaseSettlement splits the price under the marketplace fee rate and pays
// treasury and seller from the buyer. Returns the fee and seller amounts for
// the receipt.
func (e *SettlementEngine) PurchaseSettlement(ctx context.Context, tx repository.Tx, listing *model.Listing, m *model.Marketplace, buyer derive.Address) (fee, sellerAmount uint64, err error) {
	price := e.priceOf(listing)

	fee, sellerAmount, err = feesplit.Split(price, m.FeeBps)
	if err != nil {
		return 0, 0, err
	}
	if err := transfer(ctx, tx, buyer, m.Treasury, fee); err != nil {
		return 0, 0, err
	}
	if err := transfer(ctx, tx, buyer, listing.Seller, sellerAmount); err != nil {
		return 0, 0, err
	}
	return fee, sellerAmount, nil
}

// RedeemSettlement charges the redeeming owner half the normal marketplace
// fee, paid to the treasury. No seller leg: the seller is the one redeeming.
func (e *SettlementEngine) RedeemSettlement(ctx context.Context, tx repository.Tx, listing *model.Listing, m *model.Marketplace, owner derive.Address) (fee uint64, err error) {
	price := e.priceOf(listing)

	fee, err = feesplit.RedeemFee(price, m.FeeBps)
	if err != nil {
		return 0, err
	}
	if err := transfer(ctx, tx, owner, m.Treasury, fee); err != nil {
		return 0, err
	}
	return fee, nil
}

package model

import "nftmarket-api/pkg/derive"

// Listing is the record of an active sale offer. There is at most one per
// (marketplace, item) pair; the record exists exactly while the listing is
// active and is deleted when the listing closes (sold or redeemed).
//
// Address = derive("listing", marketplace, item);
// Escrow  = derive("escrow", address), the keyless custodian that holds the
// item between list and close. A listing and its escrow are paired 1:1 for
// the whole life of the record.
type Listing struct {
	Address     derive.Address `json:"address"`
	Marketplace derive.Address `json:"marketplace"`
	Seller      derive.Address `json:"seller"`
	Item        derive.Address `json:"item"`
	Price       uint64         `json:"price"`
	TokenID     uint16         `json:"token_id"`
	Bump        uint8          `json:"bump"`
	Escrow      derive.Address `json:"escrow"`
	EscrowBump  uint8          `json:"escrow_bump"`
	IsActive    bool           `json:"is_active"`
}

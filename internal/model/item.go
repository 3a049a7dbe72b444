package model

import "nftmarket-api/pkg/derive"

// Capability is a narrow, revocable delegated authority grantable on an item
// independent of full ownership transfer.
type Capability string

// Delegatable capabilities.
const (
	CapabilityTransfer Capability = "transfer"
	CapabilityBurn     Capability = "burn"
	CapabilityFreeze   Capability = "freeze"
)

// Capabilities lists every delegatable capability.
var Capabilities = []Capability{CapabilityTransfer, CapabilityBurn, CapabilityFreeze}

// Item is a unique digital asset held by the item-management service. The
// marketplace core only reads its authority fields and issues transfer /
// delegate / freeze / burn requests; the schema itself belongs to the item
// service.
//
// Delegates is the access-control list from capability to the authority
// currently allowed to exercise it. An empty map means no delegation.
type Item struct {
	Address         derive.Address                `json:"address"`
	Owner           derive.Address                `json:"owner"`
	UpdateAuthority derive.Address                `json:"update_authority"`
	Collection      derive.Address                `json:"collection,omitempty"`
	Name            string                        `json:"name"`
	URI             string                        `json:"uri"`
	IsCollection    bool                          `json:"is_collection"`
	Frozen          bool                          `json:"frozen"`
	Delegates       map[Capability]derive.Address `json:"delegates,omitempty"`
}

// DelegateFor returns the authority holding the given capability, falling
// back to the owner when the capability was never delegated.
func (i *Item) DelegateFor(cap Capability) derive.Address {
	if addr, ok := i.Delegates[cap]; ok {
		return addr
	}
	return i.Owner
}

// HasCollection reports whether the item declares a parent collection.
func (i *Item) HasCollection() bool {
	return !i.Collection.IsZero()
}

package model

import "nftmarket-api/pkg/derive"

// Name length bounds for a marketplace, enforced at initialization.
const (
	MinMarketplaceNameLen = 1
	MaxMarketplaceNameLen = 32
)

// MaxFeeBps is the highest allowed fee rate (100%).
const MaxFeeBps = 10000

// Marketplace is the per-admin marketplace configuration record. It is
// created once by initialize and never mutated afterwards.
//
// Address = derive("marketplace", admin); Treasury = derive("treasury", address).
// The bumps are persisted so both addresses can be re-derived and verified
// without searching.
type Marketplace struct {
	Address      derive.Address `json:"address"`
	Admin        derive.Address `json:"admin"`
	Name         string         `json:"name"`
	FeeBps       uint16         `json:"fee_bps"`
	Bump         uint8          `json:"bump"`
	Treasury     derive.Address `json:"treasury"`
	TreasuryBump uint8          `json:"treasury_bump"`
}

package model

import (
	"time"

	"nftmarket-api/pkg/derive"
)

// Account is a funded ledger entry: an address and its balance in the
// ledger's native unit. Treasuries, escrows and record addresses are plain
// accounts like any user identity.
type Account struct {
	Address   derive.Address `json:"address"`
	Balance   uint64         `json:"balance"`
	UpdatedAt time.Time      `json:"updated_at"`
}

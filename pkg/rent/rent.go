// Package rent computes the minimum balance a record address must hold for
// its backing storage, mirroring the rent-exemption rule of account-based
// ledgers: creating a record debits its payer by the minimum and credits the
// record's own address; closing the record refunds that balance to the closer.
package rent

// Per-byte cost with the 128-byte account overhead included.
const (
	accountOverhead  = 128
	lamportsPerByte  = 3480
	exemptionPeriods = 2
)

// Minimum returns the balance required to hold dataLen bytes of record state.
// A zero-length account (a treasury) still costs the overhead: 890880.
func Minimum(dataLen int) uint64 {
	return uint64(dataLen+accountOverhead) * lamportsPerByte * exemptionPeriods
}

// Record sizes used when charging rent for marketplace state. Sizes follow
// the persisted layouts (8-byte discriminator + fields).
const (
	MarketplaceSize = 8 + 32 + (4 + 32) + 2 + 1 + 1
	ListingSize     = 8 + 32 + 32 + 8 + 2 + 1 + 1 + 1
)

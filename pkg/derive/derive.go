// Package derive implements deterministic, keyless address derivation.
//
// Every structural account in the marketplace (marketplace config, treasury,
// listing, escrow) is addressed by hashing a fixed namespace tag together with
// the addresses of its parents, plus a bump byte chosen so the result does NOT
// decode as a point on the ed25519 curve. An address off the curve can have no
// corresponding private key, so it is safe to treat as a program-exclusive
// authority: anyone can recompute it from public inputs, nobody can sign for it.
package derive

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// AddressLen is the byte length of an address.
const AddressLen = 32

// Derivation namespaces used by the marketplace program.
const (
	NamespaceMarketplace = "marketplace"
	NamespaceTreasury    = "treasury"
	NamespaceListing     = "listing"
	NamespaceEscrow      = "escrow"
)

// pdaMarker domain-separates derived addresses from everything else hashed
// with sha256 in this codebase.
const pdaMarker = "ProgramDerivedAddress"

var (
	// ErrInvalidAddress indicates a string that does not parse as an address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrOnCurve indicates the candidate for the given bump decodes as a
	// curve point and therefore cannot be used as a keyless authority.
	ErrOnCurve = errors.New("derived address is on the ed25519 curve")

	// ErrNoValidBump indicates no bump in [0,255] produced an off-curve
	// address. Probability ~2^-256; checked anyway so Find never loops forever.
	ErrNoValidBump = errors.New("no valid bump found for seeds")
)

// Address is a 32-byte account identifier on the ledger.
type Address [AddressLen]byte

// String returns the hex encoding of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte {
	return a[:]
}

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler so addresses render as hex in JSON.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Parse decodes a hex-encoded address.
func Parse(s string) (Address, error) {
	var a Address
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != AddressLen {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	copy(a[:], raw)
	return a, nil
}

// Random returns a fresh random address. Used for externally-held identities
// and newly minted items, the moral equivalent of generating a keypair.
func Random() Address {
	var a Address
	if _, err := rand.Read(a[:]); err != nil {
		panic(fmt.Sprintf("derive: reading random bytes: %v", err))
	}
	return a
}

// candidate hashes namespace, seed parts and bump into an address candidate.
func candidate(namespace string, bump uint8, parts ...[]byte) Address {
	h := sha256.New()
	h.Write([]byte(namespace))
	for _, part := range parts {
		h.Write(part)
	}
	h.Write([]byte{bump})
	h.Write([]byte(pdaMarker))

	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// onCurve reports whether the bytes decode as a valid ed25519 point,
// i.e. whether a private key could exist for this address.
func onCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

// Find derives the address for the given namespace and seed parts, returning
// the first off-curve candidate counting the bump down from 255. Identical
// inputs always yield the identical (address, bump) pair.
func Find(namespace string, parts ...[]byte) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr := candidate(namespace, uint8(bump), parts...)
		if !onCurve(addr) {
			return addr, uint8(bump), nil
		}
	}
	return Address{}, 0, ErrNoValidBump
}

// Create re-derives the address for a known bump, failing if the result lies
// on the curve. Verifiers use this to check a stored bump against the seeds.
func Create(namespace string, bump uint8, parts ...[]byte) (Address, error) {
	addr := candidate(namespace, bump, parts...)
	if onCurve(addr) {
		return Address{}, ErrOnCurve
	}
	return addr, nil
}

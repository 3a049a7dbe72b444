package derive

// Authority is the right to act as an address. Two kinds exist:
//
//   - a signer authority wraps an externally-held identity; callers present
//     one for themselves (the HTTP layer has already authenticated them),
//   - a derived authority can only be obtained by re-deriving a keyless
//     address from its namespace, seeds and bump. Holding one proves the
//     program recomputed the escrow/treasury address itself, which is the
//     in-process equivalent of a PDA signature.
type Authority struct {
	addr    Address
	derived bool
}

// Address returns the address this authority acts as.
func (a Authority) Address() Address {
	return a.addr
}

// Derived reports whether the authority was obtained through re-derivation
// rather than wrapped around a caller identity.
func (a Authority) Derived() bool {
	return a.derived
}

// SignerAuthority wraps a caller-held identity as an authority.
func SignerAuthority(addr Address) Authority {
	return Authority{addr: addr}
}

// DerivedAuthority re-derives a keyless address and returns an authority for
// it. The returned authority carries the computed address, so it can only
// ever refer to an account this program controls.
func DerivedAuthority(namespace string, bump uint8, parts ...[]byte) (Authority, error) {
	addr, err := Create(namespace, bump, parts...)
	if err != nil {
		return Authority{}, err
	}
	return Authority{addr: addr, derived: true}, nil
}

// Package feesplit computes the fee/remainder split of a sale price under a
// basis-points fee rate, with overflow-checked arithmetic.
package feesplit

import (
	"errors"
	"math/bits"
)

// BpsDenominator is the basis-points scale: 10000 bps = 100%.
const BpsDenominator = 10000

// ErrMathOverflow indicates the fee computation overflowed uint64. No partial
// result is ever returned; the enclosing operation must abort.
var ErrMathOverflow = errors.New("arithmetic overflow computing fee split")

// Split returns (fee, seller) such that fee+seller == price and
// fee == floor(price*feeBps/10000). feeBps above 10000 still computes (the
// multiply is checked), but marketplace creation rejects such rates up front,
// so within contract fee <= price always holds.
func Split(price uint64, feeBps uint16) (fee uint64, seller uint64, err error) {
	hi, lo := bits.Mul64(price, uint64(feeBps))
	if hi != 0 {
		return 0, 0, ErrMathOverflow
	}
	fee = lo / BpsDenominator

	seller, borrow := bits.Sub64(price, fee, 0)
	if borrow != 0 {
		return 0, 0, ErrMathOverflow
	}
	return fee, seller, nil
}

// RedeemFee is the treasury cut charged when the original owner redeems a
// listed item early: half of the normal marketplace fee.
func RedeemFee(price uint64, feeBps uint16) (uint64, error) {
	fee, _, err := Split(price, feeBps)
	if err != nil {
		return 0, err
	}
	return fee / 2, nil
}

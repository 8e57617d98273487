package types

import "math/big"

const udtAmountSize = 16

// ParseUdtAmount reads the little endian u128 amount at the start of an
// sUDT cell's data. The input slice is left untouched.
func ParseUdtAmount(data []byte) (*big.Int, error) {
	if len(data) < udtAmountSize {
		return nil, ErrInvalidUdtAmount
	}
	b := make([]byte, udtAmountSize)
	for i := 0; i < udtAmountSize; i++ {
		b[i] = data[udtAmountSize-1-i]
	}
	return new(big.Int).SetBytes(b), nil
}

// UdtAmountBytes encodes amount as 16 little endian bytes.
func UdtAmountBytes(amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 || amount.BitLen() > udtAmountSize*8 {
		return nil, ErrInvalidUdtAmount
	}
	be := amount.Bytes()
	b := make([]byte, udtAmountSize)
	for i := range be {
		b[i] = be[len(be)-1-i]
	}
	return b, nil
}

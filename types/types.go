package types

import "math/big"

const (
	MaxInput uint64 = 1000

	// ShannonsPerCkbyte is the number of base units in one CKByte.
	ShannonsPerCkbyte uint64 = 100000000
	// CkbCapacity is the smallest cell holding a secp256k1 lock and no data.
	CkbCapacity uint64 = 6100000000
	// UdtCapacity is the capacity of an sUDT cell under a secp256k1 lock.
	UdtCapacity uint64 = 14200000000
	// MaxFee is the default upper bound for a transaction fee, 1 CKByte.
	MaxFee uint64 = ShannonsPerCkbyte
)

// CkbytesToShannons converts a whole CKByte amount into shannons.
func CkbytesToShannons(ckbytes uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(ckbytes), new(big.Int).SetUint64(ShannonsPerCkbyte))
}

// FormatCapacity renders shannons as a decimal CKByte string, e.g. "61.00000001".
func FormatCapacity(shannons *big.Int) string {
	if shannons == nil {
		return "0"
	}
	unit := new(big.Int).SetUint64(ShannonsPerCkbyte)
	abs := new(big.Int).Abs(shannons)
	whole, frac := new(big.Int).QuoRem(abs, unit, new(big.Int))
	sign := ""
	if shannons.Sign() < 0 {
		sign = "-"
	}
	if frac.Sign() == 0 {
		return sign + whole.String()
	}
	f := frac.String()
	for len(f) < 8 {
		f = "0" + f
	}
	for f[len(f)-1] == '0' {
		f = f[:len(f)-1]
	}
	return sign + whole.String() + "." + f
}

// SumCapacity adds up the capacity of cells. Nil capacities count as zero.
func SumCapacity(cells []*Cell) *big.Int {
	total := big.NewInt(0)
	for _, c := range cells {
		if c != nil && c.Capacity != nil {
			total.Add(total, c.Capacity)
		}
	}
	return total
}

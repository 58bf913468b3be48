package gas

import (
	"fmt"
	"math"
)

// GasCharge is the gas price of one operation, split into its compute and storage parts.
type GasCharge struct { //nolint
	Name  string
	Extra interface{}

	ComputeGas int64
	StorageGas int64
}

// Total is the amount of gas the charge draws from the tracker.
func (g GasCharge) Total() int64 {
	return addSat(g.ComputeGas, g.StorageGas)
}

// WithExtra attaches debugging information to the charge.
func (g GasCharge) WithExtra(extra interface{}) GasCharge {
	out := g
	out.Extra = extra
	return out
}

func (g GasCharge) String() string {
	return fmt.Sprintf("%s (compute=%d, storage=%d)", g.Name, g.ComputeGas, g.StorageGas)
}

// NewGasCharge creates a charge with the given compute and storage gas.
func NewGasCharge(name string, computeGas int64, storageGas int64) GasCharge {
	return GasCharge{
		Name:       name,
		ComputeGas: computeGas,
		StorageGas: storageGas,
	}
}

// mulSat multiplies two non-negative amounts of gas, saturating at math.MaxInt64. A negative
// operand yields math.MaxInt64 so that no input can lower the gas used.
func mulSat(a, b int64) int64 {
	if a < 0 || b < 0 {
		return math.MaxInt64
	}
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

// addSat adds two non-negative amounts of gas, saturating at math.MaxInt64.
func addSat(a, b int64) int64 {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

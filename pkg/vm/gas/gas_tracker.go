package gas

import (
	"fmt"
	"os"

	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/ipfs-force-community/venus-fvm/pkg/vm/runtime"
)

// EnableDetailedTracing, if true, records every charge in the tracker.
var EnableDetailedTracing = os.Getenv("VENUS_VM_ENABLE_TRACING") == "1"

// GasTrace is one recorded charge.
type GasTrace struct {
	Name       string
	Extra      interface{}
	TotalGas   int64
	ComputeGas int64
	StorageGas int64
}

// GasTracker maintains the gas usage of one top-level message. Every frame of the call stack
// draws from the same tracker.
type GasTracker struct { //nolint
	GasAvailable int64
	GasUsed      int64

	exhausted bool
	tracing   bool
	Trace     []GasTrace
}

// NewGasTracker initializes a new empty gas tracker
func NewGasTracker(limit int64) *GasTracker {
	return &GasTracker{
		GasUsed:      0,
		GasAvailable: limit,
		tracing:      EnableDetailedTracing,
	}
}

// EnableTracing records every following charge in Trace.
func (t *GasTracker) EnableTracing() {
	t.tracing = true
}

// Charge will add the gas charge to the current method gas context.
//
// WARNING: this method will panic if there is no sufficient gas left.
func (t *GasTracker) Charge(gas GasCharge, msg string, args ...interface{}) {
	if ok := t.TryCharge(gas); !ok {
		fmsg := fmt.Sprintf(msg, args...)
		runtime.Abortf(exitcode.SysErrOutOfGas, "gas limit %d exceeded with charge of %d: %s", t.GasAvailable, gas.Total(), fmsg)
	}
}

// TryCharge charges `amount` or `RemainingGas()`, whichever is smaller.
//
// Returns `True` if there was enough gas to pay for `amount`. Once a charge fails the tracker
// stays exhausted.
func (t *GasTracker) TryCharge(gasCharge GasCharge) bool {
	toUse := gasCharge.Total()
	if t.tracing {
		t.Trace = append(t.Trace, GasTrace{
			Name:       gasCharge.Name,
			Extra:      gasCharge.Extra,
			TotalGas:   toUse,
			ComputeGas: gasCharge.ComputeGas,
			StorageGas: gasCharge.StorageGas,
		})
	}

	// overflow safe; a negative charge can only come from a broken price and exhausts the tracker
	if toUse < 0 || t.GasUsed > t.GasAvailable-toUse {
		t.GasUsed = t.GasAvailable
		t.exhausted = true
		return false
	}
	t.GasUsed += toUse
	return true
}

// Exhausted reports whether a charge has failed on this tracker.
func (t *GasTracker) Exhausted() bool {
	return t.exhausted
}

// Remaining is the gas left to spend.
func (t *GasTracker) Remaining() int64 {
	return t.GasAvailable - t.GasUsed
}

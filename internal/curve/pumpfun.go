// Package curve implements the pure bonding-curve math (component A):
// constant-product buy/sell quoting, slippage floors, price impact, and
// graduation progress. No I/O, no clock, no global state.
package curve

// Pump.fun program constants (§6).
const (
	ProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

	GraduationThresholdLamports uint64 = 85_000_000_000
	InitialVirtualSOLReserves   uint64 = 30_000_000_000
	InitialVirtualTokenReserves uint64 = 1_073_000_000_000_000
	InitialRealTokenReserves    uint64 = 793_100_000_000_000
	TotalSupply                 uint64 = 1_000_000_000_000_000

	FeeBps uint64 = 100
)

const VenueTypePumpFun = "pumpfun"

package models

// CurveState is the decoded view of a launchpad bonding-curve account.
type CurveState struct {
	Mint                   string
	BondingCurveAddress    string
	AssociatedBondingCurve string
	VirtualSOLReserves     uint64
	VirtualTokenReserves   uint64
	RealSOLReserves        uint64
	RealTokenReserves      uint64
	TokenTotalSupply       uint64
	IsComplete             bool
	Creator                string
	CreatedSlot            uint64
	IsMayhemMode           bool
}

// Price returns virtual_sol / virtual_token, the curve's spot price.
func (c CurveState) Price() float64 {
	if c.VirtualTokenReserves == 0 {
		return 0
	}
	return float64(c.VirtualSOLReserves) / float64(c.VirtualTokenReserves)
}

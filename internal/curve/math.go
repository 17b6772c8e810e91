package curve

import "math/big"

// ReserveState is the subset of CurveState the pure math needs. Kept
// independent of internal/models so this package has zero dependencies
// beyond the standard library.
type ReserveState struct {
	VirtualSOLReserves   uint64
	VirtualTokenReserves uint64
	RealSOLReserves      uint64
	RealTokenReserves    uint64
}

// Quote is the result of simulating a buy or sell against a ReserveState.
type Quote struct {
	AmountIn          uint64
	AmountOut         uint64
	FeeLamports       uint64
	MinOut            uint64
	PriceBefore       float64
	PriceAfter        float64
	PriceImpactPercent float64
}

func price(virtualSOL, virtualToken uint64) float64 {
	if virtualToken == 0 {
		return 0
	}
	return float64(virtualSOL) / float64(virtualToken)
}

// feeLamports returns fee_bps of gross, floored, using 128-bit
// intermediate arithmetic so (gross * fee_bps) never overflows a u64.
func feeLamports(gross, feeBps uint64) uint64 {
	n := new(big.Int).Mul(big.NewInt(0).SetUint64(gross), big.NewInt(0).SetUint64(feeBps))
	n.Div(n, big.NewInt(10_000))
	return n.Uint64()
}

// Buy solves `(virtual_sol + net_in) * (virtual_token - tokens_out) = k`
// for tokens_out, using 128-bit integer arithmetic throughout, then clamps
// to real_token_reserves. solIn is the gross SOL amount including fee.
func Buy(r ReserveState, solIn uint64, feeBps uint64, slippageBps uint64) Quote {
	fee := feeLamports(solIn, feeBps)
	netIn := solIn
	if fee > netIn {
		fee = netIn
	}
	netIn -= fee

	vSol := big.NewInt(0).SetUint64(r.VirtualSOLReserves)
	vTok := big.NewInt(0).SetUint64(r.VirtualTokenReserves)
	k := new(big.Int).Mul(vSol, vTok)

	newVSol := new(big.Int).Add(vSol, big.NewInt(0).SetUint64(netIn))
	if newVSol.Sign() == 0 {
		return Quote{AmountIn: solIn, FeeLamports: fee}
	}
	newVTok := new(big.Int).Div(k, newVSol)
	// round the quotient up on the divisor side so tokensOut never exceeds
	// the true continuous-curve output (protects property 1).
	if rem := new(big.Int).Mod(k, newVSol); rem.Sign() != 0 {
		newVTok.Add(newVTok, big.NewInt(1))
	}

	tokensOutBig := new(big.Int).Sub(vTok, newVTok)
	if tokensOutBig.Sign() < 0 {
		tokensOutBig.SetInt64(0)
	}
	tokensOut := tokensOutBig.Uint64()
	if tokensOut > r.RealTokenReserves {
		tokensOut = r.RealTokenReserves
	}

	priceBefore := price(r.VirtualSOLReserves, r.VirtualTokenReserves)
	afterVTok := r.VirtualTokenReserves - tokensOut
	afterVSol := r.VirtualSOLReserves + netIn
	priceAfter := price(afterVSol, afterVTok)

	return Quote{
		AmountIn:           solIn,
		AmountOut:          tokensOut,
		FeeLamports:        fee,
		MinOut:             MinOut(tokensOut, slippageBps),
		PriceBefore:        priceBefore,
		PriceAfter:         priceAfter,
		PriceImpactPercent: PriceImpactPercent(priceBefore, priceAfter),
	}
}

// Sell mirrors Buy: tokens are added to the virtual token side, the new
// virtual_sol is solved for, and the fee is subtracted from the gross SOL
// out before the slippage floor is applied.
func Sell(r ReserveState, tokensIn uint64, feeBps uint64, slippageBps uint64) Quote {
	vSol := big.NewInt(0).SetUint64(r.VirtualSOLReserves)
	vTok := big.NewInt(0).SetUint64(r.VirtualTokenReserves)
	k := new(big.Int).Mul(vSol, vTok)

	newVTok := new(big.Int).Add(vTok, big.NewInt(0).SetUint64(tokensIn))
	newVSol := new(big.Int).Div(k, newVTok)

	grossOutBig := new(big.Int).Sub(vSol, newVSol)
	if grossOutBig.Sign() < 0 {
		grossOutBig.SetInt64(0)
	}
	grossOut := grossOutBig.Uint64()
	if grossOut > r.RealSOLReserves {
		grossOut = r.RealSOLReserves
	}

	fee := feeLamports(grossOut, feeBps)
	netOut := grossOut
	if fee > netOut {
		fee = netOut
	}
	netOut -= fee

	priceBefore := price(r.VirtualSOLReserves, r.VirtualTokenReserves)
	afterVTok := r.VirtualTokenReserves + tokensIn
	afterVSol := r.VirtualSOLReserves - grossOut
	priceAfter := price(afterVSol, afterVTok)

	return Quote{
		AmountIn:           tokensIn,
		AmountOut:          netOut,
		FeeLamports:        fee,
		MinOut:             MinOut(netOut, slippageBps),
		PriceBefore:        priceBefore,
		PriceAfter:         priceAfter,
		PriceImpactPercent: PriceImpactPercent(priceBefore, priceAfter),
	}
}

// MinOut is the slippage floor: §4.1's `O * (10000 - s_bps) / 10000`,
// integer-floored.
func MinOut(expectedOut uint64, slippageBps uint64) uint64 {
	if slippageBps > 10_000 {
		slippageBps = 10_000
	}
	n := new(big.Int).Mul(big.NewInt(0).SetUint64(expectedOut), big.NewInt(0).SetUint64(10_000-slippageBps))
	n.Div(n, big.NewInt(10_000))
	return n.Uint64()
}

// PriceImpactPercent is used for UI/log only.
func PriceImpactPercent(priceBefore, priceAfter float64) float64 {
	if priceBefore == 0 {
		return 0
	}
	delta := priceAfter - priceBefore
	if delta < 0 {
		delta = -delta
	}
	return delta / priceBefore * 100
}

// GraduationProgress is monotone non-decreasing in realSOLReserves.
func GraduationProgress(realSOLReserves uint64, thresholdLamports uint64) float64 {
	if thresholdLamports == 0 {
		return 100
	}
	progress := float64(realSOLReserves) / float64(thresholdLamports) * 100
	if progress > 100 {
		progress = 100
	}
	return progress
}

package curve

import "testing"

func initialReserves() ReserveState {
	return ReserveState{
		VirtualSOLReserves:   InitialVirtualSOLReserves,
		VirtualTokenReserves: InitialVirtualTokenReserves,
		RealSOLReserves:      0,
		RealTokenReserves:    InitialRealTokenReserves,
	}
}

func TestBuy_ConcreteScenario(t *testing.T) {
	r := initialReserves()
	q := Buy(r, 100_000_000, FeeBps, 100)

	if q.AmountOut == 0 {
		t.Fatalf("expected tokens_out > 0, got 0")
	}
	if q.FeeLamports != 1_000_000 {
		t.Fatalf("expected fee_lamports = 1_000_000, got %d", q.FeeLamports)
	}
	if q.PriceImpactPercent >= 10 {
		t.Fatalf("expected price_impact_percent < 10, got %f", q.PriceImpactPercent)
	}
}

func TestBuy_NeverExceedsRealReserves(t *testing.T) {
	r := initialReserves()
	r.RealTokenReserves = 1_000 // artificially tiny to force the clamp
	q := Buy(r, 50_000_000_000, FeeBps, 0)
	if q.AmountOut > r.RealTokenReserves {
		t.Fatalf("tokens_out %d exceeds real_token_reserves %d", q.AmountOut, r.RealTokenReserves)
	}
}

func TestBuyThenSell_RoundTripLossApproximatelyTwiceFee(t *testing.T) {
	r := initialReserves()
	solIn := uint64(1_000_000_000)

	buy := Buy(r, solIn, FeeBps, 0)
	if buy.AmountOut == 0 {
		t.Fatalf("buy produced zero tokens")
	}

	// Sell immediately against the reserves the buy left behind.
	netIn := solIn - buy.FeeLamports
	after := ReserveState{
		VirtualSOLReserves:   r.VirtualSOLReserves + netIn,
		VirtualTokenReserves: r.VirtualTokenReserves - buy.AmountOut,
		RealSOLReserves:      r.RealSOLReserves + netIn,
		RealTokenReserves:    r.RealTokenReserves - buy.AmountOut,
	}
	sell := Sell(after, buy.AmountOut, FeeBps, 0)

	loss := float64(solIn) - float64(sell.AmountOut)
	lossBps := loss / float64(solIn) * 10_000

	if lossBps < 1.99*float64(FeeBps) || lossBps > 2.01*float64(FeeBps) {
		t.Fatalf("round trip loss %.4f bps outside [%.2f, %.2f]", lossBps, 1.99*float64(FeeBps), 2.01*float64(FeeBps))
	}
}

func TestMinOut(t *testing.T) {
	cases := []struct {
		out, slip, want uint64
	}{
		{1_000_000, 100, 990_000},
		{1_000_000, 0, 1_000_000},
		{1_000_000, 10_000, 0},
		{7, 9999, 0},
	}
	for _, c := range cases {
		got := MinOut(c.out, c.slip)
		if got != c.want {
			t.Errorf("MinOut(%d, %d) = %d, want %d", c.out, c.slip, got, c.want)
		}
		if got > c.out {
			t.Errorf("MinOut(%d, %d) = %d exceeds input %d", c.out, c.slip, got, c.out)
		}
	}
}

func TestGraduationProgress_MonotoneNonDecreasing(t *testing.T) {
	prev := -1.0
	for _, real := range []uint64{0, 1_000_000_000, 10_000_000_000, 85_000_000_000, 200_000_000_000} {
		got := GraduationProgress(real, GraduationThresholdLamports)
		if got < prev {
			t.Fatalf("graduation_progress decreased: %f -> %f at real=%d", prev, got, real)
		}
		prev = got
	}
	if GraduationProgress(200_000_000_000, GraduationThresholdLamports) != 100 {
		t.Fatalf("expected clamp to 100")
	}
}

func TestSell_ClampsToRealSOLReserves(t *testing.T) {
	r := initialReserves()
	r.RealSOLReserves = 10
	q := Sell(r, 900_000_000_000_000, FeeBps, 0)
	if q.FeeLamports+q.AmountOut > r.RealSOLReserves {
		t.Fatalf("sell paid out more than real_sol_reserves: fee=%d out=%d reserves=%d", q.FeeLamports, q.AmountOut, r.RealSOLReserves)
	}
}

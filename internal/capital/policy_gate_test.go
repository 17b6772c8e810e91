package capital

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func TestPolicyGate_DailyVolumeLimit(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)}
	gate := NewPolicyGate(PolicyGateConfig{
		MaxTransactionAmountLamports: 5_000_000_000,
		DailyVolumeLimitLamports:     1_000_000_000,
		MaxTransactionsPerDay:        100,
	}, clock)

	if err := gate.Check(600_000_000, 0); err != nil {
		t.Fatalf("first transaction should pass: %v", err)
	}
	gate.Record(600_000_000)

	if err := gate.Check(600_000_000, 0); err == nil {
		t.Fatalf("second transaction should exceed daily volume limit")
	}
}

func TestPolicyGate_ResetsAtUTCDayBoundary(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 7, 29, 23, 59, 0, 0, time.UTC)}
	gate := NewPolicyGate(PolicyGateConfig{
		DailyVolumeLimitLamports: 1_000_000_000,
		MaxTransactionsPerDay:    100,
	}, clock)

	gate.Record(900_000_000)
	if err := gate.Check(200_000_000, 0); err == nil {
		t.Fatalf("expected daily limit to be hit before the day rolls over")
	}

	clock.t = time.Date(2026, 7, 30, 0, 1, 0, 0, time.UTC)
	if err := gate.Check(200_000_000, 0); err != nil {
		t.Fatalf("expected usage to reset after the UTC day boundary: %v", err)
	}
}

func TestPolicyGate_MinProfitThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	gate := NewPolicyGate(PolicyGateConfig{
		MinProfitThresholdLamports: 1_000_000,
	}, clock)

	if err := gate.Check(100_000, 500_000); err == nil {
		t.Fatalf("expected profit-below-threshold rejection")
	}
	if err := gate.Check(100_000, 2_000_000); err != nil {
		t.Fatalf("expected transaction above the profit threshold to pass: %v", err)
	}
}

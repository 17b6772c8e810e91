package capital

import "testing"

// Matches SPEC_FULL.md's concrete scenario: total_balance = 10 SOL,
// strategy ceiling = 20% (= 2 SOL), max_positions = 2. Two reservations
// of 1 SOL each succeed; a third reservation of 0.1 SOL fails (it would
// exceed both the 2 SOL ceiling and the position cap; Reserve checks the
// ceiling first); a reservation on a different strategy of 1 SOL succeeds.
func TestManager_ConcreteScenario(t *testing.T) {
	m := NewManager()
	m.SetTotalBalance(10_000_000_000)
	m.RegisterStrategy("s1", 20, 2)
	m.RegisterStrategy("s2", 20, 2)

	if err := m.Reserve("s1", "pos1", 1_000_000_000); err != nil {
		t.Fatalf("first reservation should succeed: %v", err)
	}
	if err := m.Reserve("s1", "pos2", 1_000_000_000); err != nil {
		t.Fatalf("second reservation should succeed: %v", err)
	}
	if err := m.Reserve("s1", "pos3", 100_000_000); err == nil {
		t.Fatalf("third reservation should fail on the strategy ceiling and position cap")
	}
	if err := m.Reserve("s2", "pos4", 1_000_000_000); err != nil {
		t.Fatalf("reservation on a different strategy should succeed: %v", err)
	}

	if !m.Invariant() {
		t.Fatalf("reservation invariant violated")
	}
}

func TestManager_DoubleReservationRejected(t *testing.T) {
	m := NewManager()
	m.SetTotalBalance(10_000_000_000)
	m.RegisterStrategy("s1", 100, 10)

	if err := m.Reserve("s1", "pos1", 1_000_000); err != nil {
		t.Fatalf("first reservation should succeed: %v", err)
	}
	if err := m.Reserve("s1", "pos1", 1_000_000); err == nil {
		t.Fatalf("second reservation on the same position should fail")
	}
}

func TestManager_ReleaseIsIdempotent(t *testing.T) {
	m := NewManager()
	m.SetTotalBalance(10_000_000_000)
	m.RegisterStrategy("s1", 100, 10)

	if err := m.Reserve("s1", "pos1", 1_000_000); err != nil {
		t.Fatalf("reservation should succeed: %v", err)
	}
	m.Release("pos1")
	m.Release("pos1") // must not panic or go negative

	if !m.Invariant() {
		t.Fatalf("invariant violated after double release")
	}
	if err := m.Reserve("s1", "pos1", 1_000_000); err != nil {
		t.Fatalf("reservation should be reusable after release: %v", err)
	}
}

func TestManager_GlobalSafetyMargin(t *testing.T) {
	m := NewManager()
	m.SetTotalBalance(20_000_000) // just above the safety margin
	m.RegisterStrategy("s1", 100, 10)

	if err := m.Reserve("s1", "pos1", 19_000_000); err == nil {
		t.Fatalf("reservation eating into the safety margin should fail")
	}
}

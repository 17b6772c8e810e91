package capital

import (
	"sync"

	"ares_api/internal/concurrency"
	"ares_api/internal/models"
	"ares_api/internal/tradingerr"
)

// safetyMarginLamports is held back from global_reserved regardless of any
// single strategy's ceiling, so a cluster of near-ceiling reservations
// across strategies never exhausts the wallet.
const safetyMarginLamports = 10_000_000 // 0.01 SOL

// reservationShards sizes the reservation set's LockFreeMap. The
// reservation set is the busiest of the shared stores (§5's "[FULL] Go
// mapping"), so it gets the sharded map rather than a plain mutex-guarded
// one; the per-strategy/global counters it must move in lockstep with
// still need a single critical section, enforced by mu around each
// Reserve/Release transaction.
const reservationShards = 32

// Manager tracks total wallet balance, the global and per-strategy
// reserved amounts, and the live set of position-keyed reservations
// (§4.5). mu serializes the compound Reserve/Release transaction so the
// three counters and the reservation set move together. The reservation
// set itself is a sharded concurrency.LockFreeMap; every access to it
// (Reserve, Release, Invariant) also happens under mu.
type Manager struct {
	mu sync.Mutex

	totalBalanceLamports uint64
	globalReserved       uint64
	strategies           map[string]*models.StrategyAllocation
	reservations         *concurrency.LockFreeMap[string, models.Reservation] // keyed by position_id
}

func NewManager() *Manager {
	return &Manager{
		strategies:   make(map[string]*models.StrategyAllocation),
		reservations: concurrency.NewLockFreeMap[string, models.Reservation](reservationShards),
	}
}

// SetTotalBalance updates the wallet balance the manager sizes ceilings
// against, typically after a periodic RPC balance sync.
func (m *Manager) SetTotalBalance(lamports uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalBalanceLamports = lamports
}

// RegisterStrategy installs or updates a strategy's allocation ceiling.
// Existing current_reserved/active_positions counters are preserved.
func (m *Manager) RegisterStrategy(strategyID string, maxAllocationPercent float64, maxPositions int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alloc, ok := m.strategies[strategyID]
	if !ok {
		alloc = &models.StrategyAllocation{StrategyID: strategyID}
		m.strategies[strategyID] = alloc
	}
	alloc.MaxAllocationPercent = maxAllocationPercent
	alloc.MaxPositions = maxPositions
}

// Reserve holds amountLamports against strategyID for positionID. All
// four checks in §4.5 run before any counter is mutated, so a refusal
// never leaves partial state.
func (m *Manager) Reserve(strategyID, positionID string, amountLamports uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reservations.Get(positionID); exists {
		return tradingerr.Policy("capital.Manager.Reserve", tradingerr.ViolationAlreadyReserved,
			"position already has a reservation")
	}

	alloc, ok := m.strategies[strategyID]
	if !ok {
		alloc = &models.StrategyAllocation{StrategyID: strategyID}
		m.strategies[strategyID] = alloc
	}

	ceiling := alloc.MaxAllocationPercent / 100 * float64(m.totalBalanceLamports)
	if float64(alloc.CurrentReserved+amountLamports) > ceiling {
		return tradingerr.Policy("capital.Manager.Reserve", tradingerr.ViolationStrategyCeiling,
			"reservation would exceed strategy allocation ceiling")
	}
	if alloc.MaxPositions > 0 && alloc.ActivePositions+1 > alloc.MaxPositions {
		return tradingerr.Policy("capital.Manager.Reserve", tradingerr.ViolationPositionCap,
			"reservation would exceed strategy max_positions")
	}
	if m.totalBalanceLamports < safetyMarginLamports ||
		m.globalReserved+amountLamports > m.totalBalanceLamports-safetyMarginLamports {
		return tradingerr.Policy("capital.Manager.Reserve", tradingerr.ViolationGlobalCeiling,
			"reservation would exceed wallet safety margin")
	}

	alloc.CurrentReserved += amountLamports
	alloc.ActivePositions++
	m.globalReserved += amountLamports
	m.reservations.Put(positionID, models.Reservation{
		ReservationID:  positionID,
		StrategyID:     strategyID,
		AmountLamports: amountLamports,
	})

	return nil
}

// Release frees positionID's reservation. A double release is a no-op,
// not an error — the executor's failure and cleanup paths both call
// Release and must not race each other into a negative counter.
func (m *Manager) Release(positionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations.Get(positionID)
	if !ok {
		return
	}
	m.reservations.Delete(positionID)

	m.globalReserved -= res.AmountLamports
	if alloc, ok := m.strategies[res.StrategyID]; ok {
		alloc.CurrentReserved -= res.AmountLamports
		if alloc.ActivePositions > 0 {
			alloc.ActivePositions--
		}
	}
}

// Invariant reports whether the sum over live reservations equals
// global_reserved and, grouped by strategy, equals each strategy's
// current_reserved. Intended for tests and periodic self-checks.
func (m *Manager) Invariant() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total uint64
	perStrategy := make(map[string]uint64)
	m.reservations.Range(func(_ string, res models.Reservation) bool {
		total += res.AmountLamports
		perStrategy[res.StrategyID] += res.AmountLamports
		return true
	})
	if total != m.globalReserved {
		return false
	}
	for id, alloc := range m.strategies {
		if perStrategy[id] != alloc.CurrentReserved {
			return false
		}
	}
	return true
}

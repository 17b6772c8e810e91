package capital

import (
	"sync"

	"ares_api/internal/tradingerr"
)

// PolicyGateConfig is the single-wallet-scope signing policy (§4.5).
type PolicyGateConfig struct {
	MaxTransactionAmountLamports uint64
	DailyVolumeLimitLamports     uint64
	MaxTransactionsPerDay        int
	MinProfitThresholdLamports   int64
}

// PolicyGate enforces per-transaction and per-day limits before any
// signature is produced. The signer invokes it; a refusal stops the
// attempt before the transaction ever reaches the wallet.
type PolicyGate struct {
	cfg   PolicyGateConfig
	clock Clock

	mu    sync.Mutex
	usage dailyUsage
}

type dailyUsage struct {
	date             string
	totalVolume      uint64
	transactionCount int
}

func NewPolicyGate(cfg PolicyGateConfig, clock Clock) *PolicyGate {
	return &PolicyGate{cfg: cfg, clock: clock}
}

// Check validates a prospective signing request of amountLamports with
// estimatedProfitLamports, rolling the daily counters forward on a UTC
// calendar-day change first.
func (g *PolicyGate) Check(amountLamports uint64, estimatedProfitLamports int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDayLocked()

	if g.cfg.MaxTransactionAmountLamports > 0 && amountLamports > g.cfg.MaxTransactionAmountLamports {
		return tradingerr.Policy("capital.PolicyGate.Check", tradingerr.ViolationAmountExceeded,
			"transaction amount exceeds max_transaction_amount_lamports")
	}
	if g.cfg.DailyVolumeLimitLamports > 0 && g.usage.totalVolume+amountLamports > g.cfg.DailyVolumeLimitLamports {
		return tradingerr.Policy("capital.PolicyGate.Check", tradingerr.ViolationDailyVolumeExceeded,
			"transaction would exceed daily_volume_limit_lamports")
	}
	if g.cfg.MaxTransactionsPerDay > 0 && g.usage.transactionCount+1 > g.cfg.MaxTransactionsPerDay {
		return tradingerr.Policy("capital.PolicyGate.Check", tradingerr.ViolationMaxTransactionsPerDay,
			"transaction would exceed max_transactions_per_day")
	}
	if estimatedProfitLamports < g.cfg.MinProfitThresholdLamports {
		return tradingerr.Policy("capital.PolicyGate.Check", tradingerr.ViolationProfitBelowThreshold,
			"estimated profit below min_profit_threshold_lamports")
	}

	return nil
}

// Record commits amountLamports against the day's usage. The signer calls
// it once a transaction has passed Check and been signed, before the
// executor submits it, so a signed transaction whose submission fails
// still counts.
func (g *PolicyGate) Record(amountLamports uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDayLocked()
	g.usage.totalVolume += amountLamports
	g.usage.transactionCount++
}

// rollDayLocked resets the counters when the UTC calendar date has
// advanced since the last check. Callers must hold g.mu.
func (g *PolicyGate) rollDayLocked() {
	today := g.clock.Now().UTC().Format("2006-01-02")
	if g.usage.date != today {
		g.usage.date = today
		g.usage.totalVolume = 0
		g.usage.transactionCount = 0
	}
}

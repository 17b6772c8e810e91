package monitor

import (
	"context"
	"encoding/binary"
	"log"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"ares_api/internal/eventbus"
	"ares_api/internal/executor"
	"ares_api/internal/models"
	"ares_api/internal/onchain"
	"ares_api/internal/position"
)

// connectionCheckInterval is §4.9's 30s connection-status check cadence.
const connectionCheckInterval = 30 * time.Second

// reserveDataMinLen is the shortest account payload containing both
// reserve fields the monitor reads (virtual_token_reserves at 8:16,
// virtual_sol_reserves at 16:24 — the same layout onchain.DecodeCurveState
// uses for the full account).
const reserveDataMinLen = 24

// PositionUpdater is the subset of position.Manager the monitor needs:
// feed a price and learn any exit signals it produces, check whether a
// mint still has open positions before unsubscribing, and resolve a
// position id back to its mint when a position first opens.
type PositionUpdater interface {
	UpdatePrice(mint string, price float64) []position.ExitSignal
	OpenPositionsForMint(mint string) int
	Get(positionID string) (*models.Position, bool)
}

// ExitExecutor is the executor's (G) side of exit routing.
type ExitExecutor interface {
	ExecuteExit(ctx context.Context, signal executor.ExitSignal) error
}

type pdaEntry struct {
	PositionID string
	Mint       string
}

// Monitor owns the account-update stream subscription lifecycle and the
// per-update price computation that drives position exits (component I).
type Monitor struct {
	stream    AccountStream
	positions PositionUpdater
	executor  ExitExecutor
	bus       *eventbus.EventBus

	mu       sync.Mutex
	byPDA    map[string]pdaEntry // bonding-curve PDA -> {position_id, mint}
}

func New(stream AccountStream, positions PositionUpdater, exec ExitExecutor, bus *eventbus.EventBus) *Monitor {
	return &Monitor{
		stream:    stream,
		positions: positions,
		executor:  exec,
		bus:       bus,
		byPDA:     make(map[string]pdaEntry),
	}
}

// Run starts the monitor's three concurrent loops and blocks until ctx
// is cancelled: subscription lifecycle (edge.executed /
// position.exit_completed), the 30s connection-health check, and the
// per-update price computation.
func (mon *Monitor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		mon.watchLifecycle(ctx)
	}()
	go func() {
		defer wg.Done()
		mon.watchConnection(ctx)
	}()
	go func() {
		defer wg.Done()
		mon.consumeUpdates(ctx)
	}()

	wg.Wait()
}

func (mon *Monitor) watchLifecycle(ctx context.Context) {
	opened := mon.bus.Subscribe(eventbus.TopicEdgeExecuted)
	closed := mon.bus.Subscribe(eventbus.TopicPositionExitCompleted)

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-opened.C:
			if !ok {
				return
			}
			mon.handleEdgeExecuted(ctx, env)
		case env, ok := <-closed.C:
			if !ok {
				return
			}
			mon.handleExitCompleted(ctx, env)
		}
	}
}

func (mon *Monitor) handleEdgeExecuted(ctx context.Context, env eventbus.Envelope) {
	data, ok := env.Data.(eventbus.EdgeExecutedData)
	if !ok {
		return
	}

	pos, ok := mon.positions.Get(data.PositionID)
	if !ok {
		log.Printf("[monitor] edge.executed for unknown position %s", data.PositionID)
		return
	}

	mint, err := solana.PublicKeyFromBase58(pos.TokenMint)
	if err != nil {
		log.Printf("[monitor] invalid mint %s for position %s: %v", pos.TokenMint, data.PositionID, err)
		return
	}
	pda, _, err := onchain.BondingCurveAddress(mint)
	if err != nil {
		log.Printf("[monitor] failed to derive bonding curve PDA for mint %s: %v", pos.TokenMint, err)
		return
	}
	pdaStr := pda.String()

	if err := mon.stream.Subscribe(ctx, []string{pdaStr}); err != nil {
		log.Printf("[monitor] failed to subscribe to PDA %s: %v", pdaStr, err)
		return
	}

	mon.mu.Lock()
	mon.byPDA[pdaStr] = pdaEntry{PositionID: data.PositionID, Mint: pos.TokenMint}
	mon.mu.Unlock()
}

func (mon *Monitor) handleExitCompleted(ctx context.Context, env eventbus.Envelope) {
	data, ok := env.Data.(eventbus.PositionExitCompletedData)
	if !ok {
		return
	}

	mon.mu.Lock()
	var pda string
	var entry pdaEntry
	for p, e := range mon.byPDA {
		if e.PositionID == data.PositionID {
			pda, entry = p, e
			break
		}
	}
	mon.mu.Unlock()
	if pda == "" {
		return
	}

	if mon.positions.OpenPositionsForMint(entry.Mint) > 0 {
		return
	}

	if err := mon.stream.Unsubscribe(ctx, []string{pda}); err != nil {
		log.Printf("[monitor] failed to unsubscribe PDA %s: %v", pda, err)
	}
	mon.mu.Lock()
	delete(mon.byPDA, pda)
	mon.mu.Unlock()
}

// watchConnection implements §4.9's 30s connection-status check: a
// prolonged (>=30s) disconnect is logged and the monitor falls back to
// producing no prices at all rather than guessing.
func (mon *Monitor) watchConnection(ctx context.Context) {
	ticker := time.NewTicker(connectionCheckInterval)
	defer ticker.Stop()

	var disconnectedSince time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if mon.stream.Connected() {
				disconnectedSince = time.Time{}
				continue
			}
			if disconnectedSince.IsZero() {
				disconnectedSince = time.Now()
				continue
			}
			log.Printf("[monitor] account-update stream disconnected for %s, falling back to polling; no prices will be produced until reconnect", time.Since(disconnectedSince).Round(time.Second))
		}
	}
}

func (mon *Monitor) consumeUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-mon.stream.Updates():
			if !ok {
				return
			}
			mon.handleUpdate(ctx, upd)
		}
	}
}

func (mon *Monitor) handleUpdate(ctx context.Context, upd AccountUpdate) {
	mon.mu.Lock()
	entry, ok := mon.byPDA[upd.Pubkey]
	mon.mu.Unlock()
	if !ok || len(upd.Data) < reserveDataMinLen {
		return
	}

	virtualToken := binary.LittleEndian.Uint64(upd.Data[8:16])
	virtualSOL := binary.LittleEndian.Uint64(upd.Data[16:24])
	if virtualToken == 0 {
		return
	}
	price := float64(virtualSOL) / float64(virtualToken)

	signals := mon.positions.UpdatePrice(entry.Mint, price)
	for _, sig := range signals {
		go func(sig position.ExitSignal) {
			if err := mon.executor.ExecuteExit(ctx, executor.ExitSignal(sig)); err != nil {
				log.Printf("[monitor] exit execution failed for position %s: %v", sig.PositionID, err)
			}
		}(sig)
	}
}

package monitor

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"ares_api/internal/eventbus"
	"ares_api/internal/executor"
	"ares_api/internal/models"
	"ares_api/internal/onchain"
	"ares_api/internal/position"
)

type fakeStream struct {
	mu          sync.Mutex
	subscribed  []string
	unsubbed    []string
	updates     chan AccountUpdate
	connected   bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{updates: make(chan AccountUpdate, 8), connected: true}
}

func (s *fakeStream) Subscribe(ctx context.Context, addresses []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = append(s.subscribed, addresses...)
	return nil
}

func (s *fakeStream) Unsubscribe(ctx context.Context, addresses []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubbed = append(s.unsubbed, addresses...)
	return nil
}

func (s *fakeStream) Updates() <-chan AccountUpdate { return s.updates }
func (s *fakeStream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
func (s *fakeStream) Close() error { return nil }

func (s *fakeStream) wasSubscribed(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.subscribed {
		if a == addr {
			return true
		}
	}
	return false
}

func (s *fakeStream) wasUnsubscribed(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.unsubbed {
		if a == addr {
			return true
		}
	}
	return false
}

type fakePositions struct {
	mu          sync.Mutex
	byID        map[string]*models.Position
	openForMint map[string]int
	nextSignals []position.ExitSignal
	lastMint    string
	lastPrice   float64
}

func (f *fakePositions) UpdatePrice(mint string, price float64) []position.ExitSignal {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMint, f.lastPrice = mint, price
	sig := f.nextSignals
	f.nextSignals = nil
	return sig
}

func (f *fakePositions) OpenPositionsForMint(mint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openForMint[mint]
}

func (f *fakePositions) Get(positionID string) (*models.Position, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[positionID]
	return p, ok
}

type fakeExecutor struct {
	mu      sync.Mutex
	exited  []string
}

func (f *fakeExecutor) ExecuteExit(ctx context.Context, signal executor.ExitSignal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exited = append(f.exited, signal.PositionID)
	return nil
}

func (f *fakeExecutor) didExit(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.exited {
		if e == id {
			return true
		}
	}
	return false
}

func testMint() string {
	return solana.NewWallet().PublicKey().String()
}

func TestMonitor_SubscribesOnEdgeExecuted(t *testing.T) {
	mint := testMint()
	stream := newFakeStream()
	positions := &fakePositions{
		byID:        map[string]*models.Position{"pos-1": {PositionID: "pos-1", TokenMint: mint}},
		openForMint: map[string]int{mint: 1},
	}
	bus := eventbus.NewEventBus()
	mon := New(stream, positions, &fakeExecutor{}, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.watchLifecycle(ctx)

	bus.Publish(eventbus.TopicEdgeExecuted, eventbus.EdgeExecutedData{EdgeID: "edge-1", PositionID: "pos-1"})

	pubKey := solana.MustPublicKeyFromBase58(mint)
	pda, _, _ := onchain.BondingCurveAddress(pubKey)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if stream.wasSubscribed(pda.String()) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected monitor to subscribe to PDA %s", pda.String())
}

func TestMonitor_UnsubscribesWhenNoOpenPositionsRemain(t *testing.T) {
	mint := testMint()
	stream := newFakeStream()
	positions := &fakePositions{
		byID:        map[string]*models.Position{"pos-1": {PositionID: "pos-1", TokenMint: mint}},
		openForMint: map[string]int{mint: 1},
	}
	bus := eventbus.NewEventBus()
	mon := New(stream, positions, &fakeExecutor{}, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.watchLifecycle(ctx)

	bus.Publish(eventbus.TopicEdgeExecuted, eventbus.EdgeExecutedData{EdgeID: "edge-1", PositionID: "pos-1"})

	pubKey := solana.MustPublicKeyFromBase58(mint)
	pda, _, _ := onchain.BondingCurveAddress(pubKey)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !stream.wasSubscribed(pda.String()) {
		time.Sleep(10 * time.Millisecond)
	}

	positions.mu.Lock()
	positions.openForMint[mint] = 0
	positions.mu.Unlock()

	bus.Publish(eventbus.TopicPositionExitCompleted, eventbus.PositionExitCompletedData{PositionID: "pos-1"})

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if stream.wasUnsubscribed(pda.String()) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected monitor to unsubscribe PDA %s once no open positions remain", pda.String())
}

func TestMonitor_UpdateRoutesExitSignalToExecutor(t *testing.T) {
	mint := testMint()
	stream := newFakeStream()
	positions := &fakePositions{
		byID:        map[string]*models.Position{"pos-1": {PositionID: "pos-1", TokenMint: mint}},
		openForMint: map[string]int{mint: 1},
		nextSignals: []position.ExitSignal{{PositionID: "pos-1", Reason: "stop_loss", ExitPercent: 100}},
	}
	exec := &fakeExecutor{}
	bus := eventbus.NewEventBus()
	mon := New(stream, positions, exec, bus)

	pubKey := solana.MustPublicKeyFromBase58(mint)
	pda, _, _ := onchain.BondingCurveAddress(pubKey)
	mon.byPDA[pda.String()] = pdaEntry{PositionID: "pos-1", Mint: mint}

	data := make([]byte, 24)
	binary.LittleEndian.PutUint64(data[8:16], 1_000_000)
	binary.LittleEndian.PutUint64(data[16:24], 500_000)

	mon.handleUpdate(context.Background(), AccountUpdate{Pubkey: pda.String(), Data: data})

	if positions.lastMint != mint {
		t.Fatalf("expected UpdatePrice called with mint %s, got %s", mint, positions.lastMint)
	}
	wantPrice := 500_000.0 / 1_000_000.0
	if positions.lastPrice != wantPrice {
		t.Fatalf("expected price %f, got %f", wantPrice, positions.lastPrice)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if exec.didExit("pos-1") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected exit signal routed to executor")
}

func TestMonitor_IgnoresUpdateForUnknownPDA(t *testing.T) {
	stream := newFakeStream()
	positions := &fakePositions{byID: map[string]*models.Position{}, openForMint: map[string]int{}}
	exec := &fakeExecutor{}
	bus := eventbus.NewEventBus()
	mon := New(stream, positions, exec, bus)

	mon.handleUpdate(context.Background(), AccountUpdate{Pubkey: "unknown", Data: make([]byte, 24)})

	if positions.lastMint != "" {
		t.Fatalf("expected no price update for an untracked PDA")
	}
}

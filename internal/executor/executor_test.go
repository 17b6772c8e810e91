package executor

import (
	"context"
	"testing"

	"ares_api/internal/capital"
	"ares_api/internal/eventbus"
	"ares_api/internal/models"
	"ares_api/internal/signer"
	"ares_api/internal/tradingerr"
	"ares_api/internal/txbuilder"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type fakeEdgeRepo struct {
	edges map[string]*models.Edge
}

func newFakeEdgeRepo(edges ...*models.Edge) *fakeEdgeRepo {
	m := make(map[string]*models.Edge)
	for _, e := range edges {
		m[e.EdgeID] = e
	}
	return &fakeEdgeRepo{edges: m}
}

func (r *fakeEdgeRepo) Create(e *models.Edge) error { r.edges[e.EdgeID] = e; return nil }
func (r *fakeEdgeRepo) Update(e *models.Edge) error { r.edges[e.EdgeID] = e; return nil }
func (r *fakeEdgeRepo) GetByEdgeID(edgeID string) (*models.Edge, error) {
	e, ok := r.edges[edgeID]
	if !ok {
		return nil, tradingerr.New("fakeEdgeRepo.GetByEdgeID", tradingerr.NotFound, "edge not found")
	}
	return e, nil
}
func (r *fakeEdgeRepo) ListByStatus(status string) ([]models.Edge, error) { return nil, nil }
func (r *fakeEdgeRepo) ListExpired() ([]models.Edge, error)               { return nil, nil }

type fakeTradeRepo struct {
	created []*models.Trade
}

func (r *fakeTradeRepo) Create(t *models.Trade) error { r.created = append(r.created, t); return nil }
func (r *fakeTradeRepo) Update(t *models.Trade) error { return nil }
func (r *fakeTradeRepo) GetBySignature(signature string) (*models.Trade, error) {
	return nil, nil
}
func (r *fakeTradeRepo) ListByPosition(positionID string) ([]models.Trade, error) { return nil, nil }

type fakeStrategies struct {
	strategies map[string]*models.Strategy
}

func (f *fakeStrategies) Get(strategyID string) (*models.Strategy, bool) {
	s, ok := f.strategies[strategyID]
	return s, ok
}

type fakeFetcher struct {
	state *models.CurveState
	err   error
}

func (f *fakeFetcher) CurveState(ctx context.Context, mint solana.PublicKey) (*models.CurveState, error) {
	return f.state, f.err
}

type fakePositionOpener struct {
	opened []string
	closed []string
	byID   map[string]*models.Position
}

func (f *fakePositionOpener) OpenPosition(positionID string, edge *models.Edge, strat *models.Strategy, entryPrice float64, entryTokens uint64, entryTx string) (*models.Position, error) {
	f.opened = append(f.opened, positionID)
	pos := &models.Position{PositionID: positionID}
	if f.byID == nil {
		f.byID = make(map[string]*models.Position)
	}
	f.byID[positionID] = pos
	return pos, nil
}

func (f *fakePositionOpener) Get(positionID string) (*models.Position, bool) {
	pos, ok := f.byID[positionID]
	return pos, ok
}

func (f *fakePositionOpener) ClosePosition(id string, exitPrice, realizedPnL float64, reason, exitTx string) error {
	f.closed = append(f.closed, id)
	return nil
}

type fakeRPC struct {
	blockhash solana.Hash
	sig       solana.Signature
	sendErr   error
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: f.blockhash}}, nil
}
func (f *fakeRPC) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	return nil, nil
}
func (f *fakeRPC) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	return nil, nil
}
func (f *fakeRPC) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return nil, nil
}
func (f *fakeRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	return f.sig, nil
}
func (f *fakeRPC) SimulateTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts *rpc.SimulateTransactionOpts) (*rpc.SimulateTransactionResponse, error) {
	return nil, nil
}

func testCurveState() *models.CurveState {
	return &models.CurveState{
		Mint:                   "So11111111111111111111111111111111111111112",
		BondingCurveAddress:    "11111111111111111111111111111111111111112",
		AssociatedBondingCurve: "11111111111111111111111111111111111111113",
		VirtualSOLReserves:     30_000_000_000,
		VirtualTokenReserves:   1_073_000_000_000_000,
		RealSOLReserves:        1_000_000_000,
		RealTokenReserves:      700_000_000_000_000,
		Creator:                "11111111111111111111111111111111111111115",
	}
}

func testTxConfig() txbuilder.Config {
	return txbuilder.Config{
		ComputeUnitLimit:         200_000,
		PriorityFeeMicroLamports: 10_000,
		GlobalState:              solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf"),
		FeeRecipient:             solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM"),
		EventAuthority:           solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1"),
		FeeProgram:               solana.MustPublicKeyFromBase58("pfeeUxB6jkeY1Hxd7CsFCAjcbHA9rWtchMGdZ6VojVZ"),
	}
}

func autonomousStrategy() *models.Strategy {
	s := &models.Strategy{
		StrategyID:    "strat-1",
		ExecutionMode: models.ExecutionModeAutonomous,
		IsActive:      true,
	}
	s.RiskParams = models.JSONB{
		"max_position_sol":     0.01,
		"auto_execute_enabled": true,
	}
	return s
}

func buildExecutor(t *testing.T, rpcClient *fakeRPC, signerImpl *signer.Signer, edgeRepo *fakeEdgeRepo, tradeRepo *fakeTradeRepo, positions *fakePositionOpener, strategies *fakeStrategies) *Executor {
	t.Helper()
	bus := eventbus.NewEventBus()
	capMgr := capital.NewManager()
	capMgr.SetTotalBalance(1_000_000_000_000)
	capMgr.RegisterStrategy("strat-1", 100, 10)

	builder := txbuilder.NewBuilder(rpcClient, testTxConfig())
	fetcher := &fakeFetcher{state: testCurveState()}

	return New(bus, strategies, capMgr, fetcher, builder, rpcClient, signerImpl, positions, nil, edgeRepo, tradeRepo, Config{DefaultFeeBps: 100, DefaultSlippageBps: 300})
}

func TestExecutor_SuccessfulAutonomousExecution(t *testing.T) {
	strat := autonomousStrategy()
	edge := &models.Edge{
		EdgeID: "edge-1", StrategyID: strat.StrategyID, ExecutionMode: models.ExecutionModeAutonomous,
		TokenMint: "So11111111111111111111111111111111111111112", Status: models.EdgeStatusDetected,
	}

	wallet := solana.NewWallet()
	gate := capital.NewPolicyGate(capital.PolicyGateConfig{}, capital.RealClock)
	s, err := signer.New(wallet.PrivateKey.String(), gate)
	if err != nil {
		t.Fatalf("signer.New: %v", err)
	}

	edgeRepo := newFakeEdgeRepo(edge)
	tradeRepo := &fakeTradeRepo{}
	positions := &fakePositionOpener{}
	strategies := &fakeStrategies{strategies: map[string]*models.Strategy{strat.StrategyID: strat}}

	var hash solana.Hash
	copy(hash[:], []byte("deterministictestblockhash12345"))
	rpcClient := &fakeRPC{blockhash: hash, sig: solana.Signature{1, 2, 3}}

	ex := buildExecutor(t, rpcClient, s, edgeRepo, tradeRepo, positions, strategies)

	ex.handleEdgeDetected(context.Background(), eventbus.Envelope{
		Topic: eventbus.TopicEdgeDetected,
		Data: eventbus.EdgeDetectedData{
			EdgeID: edge.EdgeID, StrategyID: strat.StrategyID,
			ExecutionMode: models.ExecutionModeAutonomous, TokenMint: edge.TokenMint,
		},
	})

	if len(positions.opened) != 1 {
		t.Fatalf("expected exactly one position opened, got %d", len(positions.opened))
	}
	if len(tradeRepo.created) != 1 {
		t.Fatalf("expected exactly one trade recorded, got %d", len(tradeRepo.created))
	}
	if edge.Status != models.EdgeStatusExecuted {
		t.Fatalf("expected edge status executed, got %s", edge.Status)
	}
}

func TestExecutor_NonAutonomousEdgeIsSkipped(t *testing.T) {
	strat := autonomousStrategy()
	edge := &models.Edge{
		EdgeID: "edge-2", StrategyID: strat.StrategyID, ExecutionMode: models.ExecutionModeManual,
		TokenMint: "So11111111111111111111111111111111111111112", Status: models.EdgeStatusDetected,
	}
	wallet := solana.NewWallet()
	gate := capital.NewPolicyGate(capital.PolicyGateConfig{}, capital.RealClock)
	s, _ := signer.New(wallet.PrivateKey.String(), gate)

	edgeRepo := newFakeEdgeRepo(edge)
	tradeRepo := &fakeTradeRepo{}
	positions := &fakePositionOpener{}
	strategies := &fakeStrategies{strategies: map[string]*models.Strategy{strat.StrategyID: strat}}
	rpcClient := &fakeRPC{}

	ex := buildExecutor(t, rpcClient, s, edgeRepo, tradeRepo, positions, strategies)
	ex.handleEdgeDetected(context.Background(), eventbus.Envelope{
		Data: eventbus.EdgeDetectedData{
			EdgeID: edge.EdgeID, StrategyID: strat.StrategyID,
			ExecutionMode: models.ExecutionModeManual, TokenMint: edge.TokenMint,
		},
	})

	if len(positions.opened) != 0 {
		t.Fatal("expected a manual-mode edge to never reach execution")
	}
	if edge.Status != models.EdgeStatusDetected {
		t.Fatalf("expected edge status unchanged, got %s", edge.Status)
	}
}

func TestExecutor_UnconfiguredSignerSkips(t *testing.T) {
	strat := autonomousStrategy()
	edge := &models.Edge{
		EdgeID: "edge-3", StrategyID: strat.StrategyID, ExecutionMode: models.ExecutionModeAutonomous,
		TokenMint: "So11111111111111111111111111111111111111112", Status: models.EdgeStatusDetected,
	}
	gate := capital.NewPolicyGate(capital.PolicyGateConfig{}, capital.RealClock)
	s, _ := signer.New("", gate) // unconfigured

	edgeRepo := newFakeEdgeRepo(edge)
	tradeRepo := &fakeTradeRepo{}
	positions := &fakePositionOpener{}
	strategies := &fakeStrategies{strategies: map[string]*models.Strategy{strat.StrategyID: strat}}
	rpcClient := &fakeRPC{}

	ex := buildExecutor(t, rpcClient, s, edgeRepo, tradeRepo, positions, strategies)
	ex.handleEdgeDetected(context.Background(), eventbus.Envelope{
		Data: eventbus.EdgeDetectedData{
			EdgeID: edge.EdgeID, StrategyID: strat.StrategyID,
			ExecutionMode: models.ExecutionModeAutonomous, TokenMint: edge.TokenMint,
		},
	})

	if len(positions.opened) != 0 {
		t.Fatal("expected an unconfigured signer to block execution before capital reservation")
	}
}

func TestExecutor_CapitalRefusalFailsEdgeWithoutSigning(t *testing.T) {
	strat := autonomousStrategy()
	strat.RiskParams["max_position_sol"] = 1_000_000.0 // absurdly large, forces a ceiling refusal
	edge := &models.Edge{
		EdgeID: "edge-4", StrategyID: strat.StrategyID, ExecutionMode: models.ExecutionModeAutonomous,
		TokenMint: "So11111111111111111111111111111111111111112", Status: models.EdgeStatusDetected,
	}
	wallet := solana.NewWallet()
	gate := capital.NewPolicyGate(capital.PolicyGateConfig{}, capital.RealClock)
	s, _ := signer.New(wallet.PrivateKey.String(), gate)

	edgeRepo := newFakeEdgeRepo(edge)
	tradeRepo := &fakeTradeRepo{}
	positions := &fakePositionOpener{}
	strategies := &fakeStrategies{strategies: map[string]*models.Strategy{strat.StrategyID: strat}}
	rpcClient := &fakeRPC{}

	ex := buildExecutor(t, rpcClient, s, edgeRepo, tradeRepo, positions, strategies)
	ex.handleEdgeDetected(context.Background(), eventbus.Envelope{
		Data: eventbus.EdgeDetectedData{
			EdgeID: edge.EdgeID, StrategyID: strat.StrategyID,
			ExecutionMode: models.ExecutionModeAutonomous, TokenMint: edge.TokenMint,
		},
	})

	if len(positions.opened) != 0 {
		t.Fatal("expected the capital ceiling refusal to block execution")
	}
	if edge.Status != models.EdgeStatusFailed {
		t.Fatalf("expected edge status failed, got %s", edge.Status)
	}
}

// Package executor implements the autonomous executor (component G):
// Pending → Building → Signing → Submitting → Confirmed/Failed against
// every edge.detected event whose strategy allows unattended execution.
package executor

import (
	"context"
	"encoding/base64"
	"log"
	"strings"
	"time"

	"ares_api/internal/capital"
	"ares_api/internal/eventbus"
	repo "ares_api/internal/interfaces/repository"
	"ares_api/internal/models"
	"ares_api/internal/onchain"
	"ares_api/internal/signer"
	"ares_api/internal/tradingerr"
	"ares_api/internal/txbuilder"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
)

// PositionOpener is the position manager's (H) side of the handoff: the
// executor never writes position rows itself, it only supplies the
// fields H needs to open one. Defined here rather than imported from
// internal/position to avoid a dependency cycle the other direction
// (H references edges/strategies, not the executor).
type PositionOpener interface {
	OpenPosition(positionID string, edge *models.Edge, strat *models.Strategy, entryPrice float64, entryTokens uint64, entryTx string) (*models.Position, error)
	Get(positionID string) (*models.Position, bool)
	ClosePosition(id string, exitPrice, realizedPnL float64, reason, exitTx string) error
}

// ExitSignal is the subset of position.ExitSignal the executor needs to
// build and submit a sell. Defined locally, mirroring PositionOpener's
// decoupling, so this package never imports internal/position.
type ExitSignal struct {
	PositionID  string
	Reason      string
	ExitPercent float64
}

// ConsensusGate is the consensus engine's (K) side of the §4.7 "[FULL]
// Consensus gating" addendum. A nil gate is treated as "consensus
// unavailable" — any strategy requiring it fails closed rather than
// executing ungated.
type ConsensusGate interface {
	Evaluate(ctx context.Context, edge *models.Edge) (approved bool, decisionID string, err error)
}

// Strategies is the subset of strategy.Registry the executor needs.
type Strategies interface {
	Get(strategyID string) (*models.Strategy, bool)
}

// CurveStateFetcher is the subset of onchain.Fetcher the executor needs.
type CurveStateFetcher interface {
	CurveState(ctx context.Context, mint solana.PublicKey) (*models.CurveState, error)
}

// Config carries the default execution parameters §4.3 needs for every
// build and isn't itself part of the edge payload.
type Config struct {
	DefaultFeeBps      uint64
	DefaultSlippageBps uint64
}

// Executor owns the edge.detected consumption loop. One instance runs
// for the process's lifetime.
type Executor struct {
	bus        *eventbus.EventBus
	strategies Strategies
	capital    *capital.Manager
	fetcher    CurveStateFetcher
	builder    *txbuilder.Builder
	rpc        onchain.RPCClient
	signer     *signer.Signer
	positions  PositionOpener
	consensus  ConsensusGate

	edges  repo.EdgeRepository
	trades repo.TradeRepository

	cfg Config
}

func New(
	bus *eventbus.EventBus,
	strategies Strategies,
	capitalMgr *capital.Manager,
	fetcher CurveStateFetcher,
	builder *txbuilder.Builder,
	rpcClient onchain.RPCClient,
	signerImpl *signer.Signer,
	positions PositionOpener,
	consensus ConsensusGate,
	edges repo.EdgeRepository,
	trades repo.TradeRepository,
	cfg Config,
) *Executor {
	return &Executor{
		bus:        bus,
		strategies: strategies,
		capital:    capitalMgr,
		fetcher:    fetcher,
		builder:    builder,
		rpc:        rpcClient,
		signer:     signerImpl,
		positions:  positions,
		consensus:  consensus,
		edges:      edges,
		trades:     trades,
		cfg:        cfg,
	}
}

// Subscribe starts the executor's delivery loop. Runs until the bus is
// closed.
func (ex *Executor) Subscribe(ctx context.Context) {
	sub := ex.bus.Subscribe(eventbus.TopicEdgeDetected)
	go func() {
		for env := range sub.C {
			ex.handleEdgeDetected(ctx, env)
		}
	}()
}

func (ex *Executor) handleEdgeDetected(ctx context.Context, env eventbus.Envelope) {
	data, ok := env.Data.(eventbus.EdgeDetectedData)
	if !ok {
		// Delivered through Redis or re-marshaled: decode defensively.
		var d eventbus.EdgeDetectedData
		if !decodeEnvelopeData(env.Data, &d) {
			return
		}
		data = d
	}

	// Step 1: only autonomous-mode edges are this component's concern.
	if !strings.Contains(data.ExecutionMode, models.ExecutionModeAutonomous) {
		return
	}

	edge, err := ex.edges.GetByEdgeID(data.EdgeID)
	if err != nil {
		log.Printf("[executor] edge %s not found: %v", data.EdgeID, err)
		return
	}

	// Step 2: strategy must be active and allowed to self-execute.
	strat, ok := ex.strategies.Get(data.StrategyID)
	if !ok || !strat.CanAutoExecute() {
		return
	}

	// Step 3: no configured signer means no autonomous execution at all.
	if ex.signer == nil || !ex.signer.IsConfigured() {
		return
	}

	ex.execute(ctx, edge, strat)
}

func (ex *Executor) execute(ctx context.Context, edge *models.Edge, strat *models.Strategy) {
	risk := strat.Risk()
	solAmountLamports := uint64(risk.MaxPositionSOL * 1_000_000_000)
	positionID := uuid.New().String()

	// [FULL] Consensus gating precedes capital reservation entirely.
	if risk.ConsensusRequired {
		approved, decisionID, err := ex.evaluateConsensus(ctx, edge)
		if err != nil || !approved {
			ex.bus.Publish(eventbus.TopicConsensusRejected, eventbus.ConsensusDecidedData{
				EdgeID:     edge.EdgeID,
				DecisionID: decisionID,
			})
			ex.failEdge(edge, "consensus_rejected")
			return
		}
		ex.bus.Publish(eventbus.TopicConsensusApproved, eventbus.ConsensusDecidedData{
			EdgeID:     edge.EdgeID,
			DecisionID: decisionID,
		})
	}

	ex.setEdgeStatus(edge, models.EdgeStatusExecuting)
	ex.bus.Publish(eventbus.TopicEdgeExecuting, eventbus.EdgeDetectedData{
		EdgeID: edge.EdgeID, StrategyID: strat.StrategyID, ExecutionMode: edge.ExecutionMode,
		TokenMint: edge.TokenMint, VenueType: edge.VenueType,
	})

	// Step 5: reserve capital.
	if err := ex.capital.Reserve(strat.StrategyID, positionID, solAmountLamports); err != nil {
		ex.failEdge(edge, err.Error())
		return
	}

	tokensOut, solSpent, entryPrice, signature, err := ex.buildSignSubmit(ctx, edge, strat, solAmountLamports)
	if err != nil {
		// Step 10: failure path — release capital, record, emit.
		ex.capital.Release(positionID)
		ex.failEdge(edge, err.Error())
		return
	}

	if _, err := ex.positions.OpenPosition(positionID, edge, strat, entryPrice, tokensOut, signature); err != nil {
		log.Printf("[executor] failed to open position for edge %s: %v", edge.EdgeID, err)
	}

	if err := ex.trades.Create(&models.Trade{
		TradeID:           uuid.New().String(),
		PositionID:        positionID,
		EdgeID:            edge.EdgeID,
		Mint:              edge.TokenMint,
		VenueType:         edge.VenueType,
		Side:              models.TradeSideBuy,
		SOLAmountLamports: solSpent,
		TokenAmount:       tokensOut,
		Price:             entryPrice,
		Signature:         signature,
		Status:            models.TradeStatusConfirmed,
		SubmittedAt:       time.Now().UTC(),
	}); err != nil {
		log.Printf("[executor] failed to record trade for edge %s: %v", edge.EdgeID, err)
	}

	ex.setEdgeStatus(edge, models.EdgeStatusExecuted)
	ex.bus.Publish(eventbus.TopicEdgeExecuted, eventbus.EdgeExecutedData{
		EdgeID:     edge.EdgeID,
		PositionID: positionID,
		Signature:  signature,
		TokensOut:  tokensOut,
		SOLSpent:   solSpent,
		EntryPrice: entryPrice,
	})
}

// buildSignSubmit runs steps 6-9: fetch curve state, build the buy
// transaction, sign it under policy, and submit it to the RPC endpoint.
func (ex *Executor) buildSignSubmit(ctx context.Context, edge *models.Edge, strat *models.Strategy, solAmountLamports uint64) (tokensOut, solSpent uint64, entryPrice float64, signature string, err error) {
	mint := solana.MustPublicKeyFromBase58(edge.TokenMint)

	state, err := ex.fetcher.CurveState(ctx, mint)
	if err != nil {
		return 0, 0, 0, "", err
	}

	built, err := ex.builder.BuildBuy(ctx, ex.signer.PublicKey(), state, solAmountLamports, ex.cfg.DefaultFeeBps, ex.cfg.DefaultSlippageBps)
	if err != nil {
		return 0, 0, 0, "", err
	}

	signed, err := ex.signer.Sign(built.TransactionBase64, signer.Metadata{
		AmountLamports:          solAmountLamports,
		EstimatedProfitLamports: edge.EstimatedProfitLamports,
	})
	if err != nil {
		return 0, 0, 0, "", err
	}

	raw, err := base64.StdEncoding.DecodeString(signed.SignedTransactionBase64)
	if err != nil {
		return 0, 0, 0, "", tradingerr.Wrap("executor.buildSignSubmit", tradingerr.Internal, "decode signed transaction", err)
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return 0, 0, 0, "", tradingerr.Wrap("executor.buildSignSubmit", tradingerr.Protocol, "decode signed transaction", err)
	}

	sig, err := ex.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{})
	if err != nil {
		return 0, 0, 0, "", tradingerr.Wrap("executor.buildSignSubmit", tradingerr.Transient, "submit transaction", err)
	}

	return built.ExpectedOut, solAmountLamports, state.Price(), sig.String(), nil
}

// ExecuteExit builds, signs, and submits a sell for the full remaining
// token amount of signal.PositionID, then closes the position. This is
// the executor's (G) side of the real-time monitor's (I) exit routing:
// the monitor detects the signal via UpdatePrice, the executor is the
// only component allowed to produce a signed transaction.
func (ex *Executor) ExecuteExit(ctx context.Context, signal ExitSignal) error {
	pos, ok := ex.positions.Get(signal.PositionID)
	if !ok {
		return tradingerr.New("executor.ExecuteExit", tradingerr.NotFound, "position not found")
	}
	if ex.signer == nil || !ex.signer.IsConfigured() {
		return tradingerr.New("executor.ExecuteExit", tradingerr.Validation, "signer is not configured")
	}

	mint := solana.MustPublicKeyFromBase58(pos.TokenMint)
	state, err := ex.fetcher.CurveState(ctx, mint)
	if err != nil {
		return err
	}

	built, err := ex.builder.BuildSell(ctx, ex.signer.PublicKey(), state, pos.RemainingTokenAmount, ex.cfg.DefaultFeeBps, ex.cfg.DefaultSlippageBps)
	if err != nil {
		return err
	}

	signed, err := ex.signer.Sign(built.TransactionBase64, signer.Metadata{
		AmountLamports: built.ExpectedOut,
	})
	if err != nil {
		return err
	}

	raw, err := base64.StdEncoding.DecodeString(signed.SignedTransactionBase64)
	if err != nil {
		return tradingerr.Wrap("executor.ExecuteExit", tradingerr.Internal, "decode signed transaction", err)
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return tradingerr.Wrap("executor.ExecuteExit", tradingerr.Protocol, "decode signed transaction", err)
	}

	sig, err := ex.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{})
	if err != nil {
		return tradingerr.Wrap("executor.ExecuteExit", tradingerr.Transient, "submit transaction", err)
	}

	exitPrice := state.Price()
	realizedPnL := (exitPrice - pos.EntryPrice) * float64(pos.RemainingTokenAmount)

	if err := ex.trades.Create(&models.Trade{
		TradeID:           uuid.New().String(),
		PositionID:        pos.PositionID,
		EdgeID:            pos.EdgeID,
		Mint:              pos.TokenMint,
		VenueType:         pos.VenueType,
		Side:              models.TradeSideSell,
		SOLAmountLamports: built.ExpectedOut,
		TokenAmount:       pos.RemainingTokenAmount,
		Price:             exitPrice,
		Signature:         sig.String(),
		Status:            models.TradeStatusConfirmed,
		SubmittedAt:       time.Now().UTC(),
	}); err != nil {
		log.Printf("[executor] failed to record exit trade for position %s: %v", pos.PositionID, err)
	}

	return ex.positions.ClosePosition(pos.PositionID, exitPrice, realizedPnL, signal.Reason, sig.String())
}

func (ex *Executor) evaluateConsensus(ctx context.Context, edge *models.Edge) (bool, string, error) {
	if ex.consensus == nil {
		return false, "", tradingerr.New("executor.evaluateConsensus", tradingerr.Internal, "consensus required but no consensus engine configured")
	}
	return ex.consensus.Evaluate(ctx, edge)
}

func (ex *Executor) failEdge(edge *models.Edge, reason string) {
	ex.setEdgeStatus(edge, models.EdgeStatusFailed)
	ex.bus.Publish(eventbus.TopicEdgeFailed, eventbus.EdgeFailedData{
		EdgeID: edge.EdgeID,
		Reason: reason,
	})
}

func (ex *Executor) setEdgeStatus(edge *models.Edge, status string) {
	edge.Status = status
	if err := ex.edges.Update(edge); err != nil {
		log.Printf("[executor] failed to persist edge %s status %s: %v", edge.EdgeID, status, err)
	}
}

// decodeEnvelopeData re-marshals an interface{} payload (as produced by
// the Redis adapter's JSON round trip) into dst.
func decodeEnvelopeData(raw interface{}, dst *eventbus.EdgeDetectedData) bool {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return false
	}
	if v, ok := m["edge_id"].(string); ok {
		dst.EdgeID = v
	}
	if v, ok := m["strategy_id"].(string); ok {
		dst.StrategyID = v
	}
	if v, ok := m["execution_mode"].(string); ok {
		dst.ExecutionMode = v
	}
	if v, ok := m["token_mint"].(string); ok {
		dst.TokenMint = v
	}
	if v, ok := m["venue_type"].(string); ok {
		dst.VenueType = v
	}
	return dst.EdgeID != ""
}

// Package txbuilder assembles unsigned buy/sell transactions against the
// bonding-curve program (component C): compute-budget instructions, an
// idempotent associated-token-account creation, and the program-specific
// swap instruction with the exact account ordering and Borsh-encoded
// arguments fixed by §6. Nothing here signs or submits — that is the
// executor's and the signer's job.
package txbuilder

import (
	"context"
	"encoding/base64"
	"encoding/binary"

	"ares_api/internal/curve"
	"ares_api/internal/models"
	"ares_api/internal/onchain"
	"ares_api/internal/tradingerr"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// computeBudgetProgramID and associatedTokenAccountCreateIdempotent are
// wire-level constants for instructions built by hand below rather than
// through generated builders, so the account ordering and argument
// encoding stay as explicit and auditable as the swap instruction itself.
var computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

const (
	computeBudgetInstructionSetComputeUnitLimit = byte(2)
	computeBudgetInstructionSetComputeUnitPrice = byte(3)
	ataInstructionCreateIdempotent              = byte(1)
)

// ErrMayhemModeUnsupported is returned before any account derivation when
// the target curve is in mayhem mode (§4.3's resolved Open Question):
// the builder never guesses an alternate fee-recipient layout.
var ErrMayhemModeUnsupported = tradingerr.New("txbuilder", tradingerr.PolicyViolation, "mayhem-mode curves are not supported")

// Config carries the deployment-tunable pieces of a build: compute
// budget, priority fee, and the launchpad's operator-owned accounts
// (these do not derive from a seed, see onchain.constants.go).
type Config struct {
	ComputeUnitLimit         uint32
	PriorityFeeMicroLamports uint64
	GlobalState              solana.PublicKey
	FeeRecipient             solana.PublicKey
	EventAuthority           solana.PublicKey
	FeeProgram               solana.PublicKey
}

// BuildResult is the builder's output: a base64-encoded unsigned
// transaction plus the simulation metadata a caller needs to decide
// whether to sign it.
type BuildResult struct {
	TransactionBase64   string
	RecentBlockhash     solana.Hash
	ExpectedOut         uint64
	MinOut              uint64
	PriceImpactPercent  float64
	FeeLamports         uint64
}

// Builder assembles buy/sell transactions for one bonding-curve venue.
type Builder struct {
	rpc onchain.RPCClient
	cfg Config
}

func NewBuilder(client onchain.RPCClient, cfg Config) *Builder {
	return &Builder{rpc: client, cfg: cfg}
}

// BuildBuy builds an unsigned buy transaction for solIn gross lamports
// (including fee) against state, floored by slippageBps.
func (b *Builder) BuildBuy(ctx context.Context, owner solana.PublicKey, state *models.CurveState, solIn, feeBps, slippageBps uint64) (*BuildResult, error) {
	if state.IsMayhemMode {
		return nil, ErrMayhemModeUnsupported
	}

	quote := curve.Buy(curve.ReserveState{
		VirtualSOLReserves:   state.VirtualSOLReserves,
		VirtualTokenReserves: state.VirtualTokenReserves,
		RealSOLReserves:      state.RealSOLReserves,
		RealTokenReserves:    state.RealTokenReserves,
	}, solIn, feeBps, slippageBps)

	accounts, err := b.deriveBuyAccounts(owner, state)
	if err != nil {
		return nil, tradingerr.Wrap("txbuilder.BuildBuy", tradingerr.Internal, "derive accounts", err)
	}

	data := make([]byte, 24)
	copy(data[0:8], onchain.BuyDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], quote.MinOut)
	binary.LittleEndian.PutUint64(data[16:24], solIn)

	ix := solana.NewInstruction(onchain.ProgramID, accounts.meta, data)

	instrs, err := b.prelude(owner, accounts.userTokenAccount, accounts.mint, accounts.tokenProgram)
	if err != nil {
		return nil, err
	}
	instrs = append(instrs, ix)

	result, err := b.finalize(ctx, owner, instrs)
	if err != nil {
		return nil, err
	}
	result.ExpectedOut = quote.AmountOut
	result.MinOut = quote.MinOut
	result.PriceImpactPercent = quote.PriceImpactPercent
	result.FeeLamports = quote.FeeLamports
	return result, nil
}

// BuildSell builds an unsigned sell transaction for tokensIn base units
// against state, floored by slippageBps.
func (b *Builder) BuildSell(ctx context.Context, owner solana.PublicKey, state *models.CurveState, tokensIn, feeBps, slippageBps uint64) (*BuildResult, error) {
	if state.IsMayhemMode {
		return nil, ErrMayhemModeUnsupported
	}

	quote := curve.Sell(curve.ReserveState{
		VirtualSOLReserves:   state.VirtualSOLReserves,
		VirtualTokenReserves: state.VirtualTokenReserves,
		RealSOLReserves:      state.RealSOLReserves,
		RealTokenReserves:    state.RealTokenReserves,
	}, tokensIn, feeBps, slippageBps)

	accounts, err := b.deriveSellAccounts(owner, state)
	if err != nil {
		return nil, tradingerr.Wrap("txbuilder.BuildSell", tradingerr.Internal, "derive accounts", err)
	}

	data := make([]byte, 24)
	copy(data[0:8], onchain.SellDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], tokensIn)
	binary.LittleEndian.PutUint64(data[16:24], quote.MinOut)

	ix := solana.NewInstruction(onchain.ProgramID, accounts.meta, data)

	instrs, err := b.prelude(owner, accounts.userTokenAccount, accounts.mint, accounts.tokenProgram)
	if err != nil {
		return nil, err
	}
	instrs = append(instrs, ix)

	result, err := b.finalize(ctx, owner, instrs)
	if err != nil {
		return nil, err
	}
	result.ExpectedOut = quote.AmountOut
	result.MinOut = quote.MinOut
	result.PriceImpactPercent = quote.PriceImpactPercent
	result.FeeLamports = quote.FeeLamports
	return result, nil
}

// prelude is the §4.3 instruction-1/2/3 sequence shared by buy and sell:
// compute unit limit, compute unit price, idempotent ATA creation.
func (b *Builder) prelude(owner, userTokenAccount, mint, tokenProgram solana.PublicKey) ([]solana.Instruction, error) {
	limitData := make([]byte, 5)
	limitData[0] = computeBudgetInstructionSetComputeUnitLimit
	binary.LittleEndian.PutUint32(limitData[1:5], b.cfg.ComputeUnitLimit)
	limitIx := solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, limitData)

	priceData := make([]byte, 9)
	priceData[0] = computeBudgetInstructionSetComputeUnitPrice
	binary.LittleEndian.PutUint64(priceData[1:9], b.cfg.PriorityFeeMicroLamports)
	priceIx := solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, priceData)

	ataIx := solana.NewInstruction(onchain.AssociatedTokenProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(owner, true, true),
		solana.NewAccountMeta(userTokenAccount, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(onchain.SystemProgramID, false, false),
		solana.NewAccountMeta(tokenProgram, false, false),
	}, []byte{ataInstructionCreateIdempotent})

	return []solana.Instruction{limitIx, priceIx, ataIx}, nil
}

// finalize fetches a fresh blockhash, assembles the transaction, and
// base64-encodes it. Signing is the caller's responsibility.
func (b *Builder) finalize(ctx context.Context, payer solana.PublicKey, instrs []solana.Instruction) (*BuildResult, error) {
	latest, err := b.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, tradingerr.Wrap("txbuilder.finalize", tradingerr.Transient, "fetch latest blockhash", err)
	}

	tx, err := solana.NewTransaction(instrs, latest.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, tradingerr.Wrap("txbuilder.finalize", tradingerr.Internal, "assemble transaction", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, tradingerr.Wrap("txbuilder.finalize", tradingerr.Internal, "marshal transaction", err)
	}

	return &BuildResult{
		TransactionBase64: base64.StdEncoding.EncodeToString(raw),
		RecentBlockhash:   latest.Value.Blockhash,
	}, nil
}

package txbuilder

import (
	"context"
	"encoding/base64"
	"testing"

	"ares_api/internal/models"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type fakeRPC struct {
	blockhash solana.Hash
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
	return solana.Signature{}, nil
}
func (f *fakeRPC) SimulateTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts *rpc.SimulateTransactionOpts) (*rpc.SimulateTransactionResponse, error) {
	return nil, nil
}

func testState(mayhem bool) *models.CurveState {
	return &models.CurveState{
		Mint:                   "So11111111111111111111111111111111111111112",
		BondingCurveAddress:    "11111111111111111111111111111112",
		AssociatedBondingCurve: "11111111111111111111111111111113",
		VirtualSOLReserves:     30_000_000_000,
		VirtualTokenReserves:   1_073_000_000_000_000,
		RealSOLReserves:        1_000_000_000,
		RealTokenReserves:      700_000_000_000_000,
		Creator:                "11111111111111111111111111111115",
		IsMayhemMode:           mayhem,
	}
}

func testConfig() Config {
	return Config{
		ComputeUnitLimit:         200_000,
		PriorityFeeMicroLamports: 10_000,
		GlobalState:              solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf"),
		FeeRecipient:             solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM"),
		EventAuthority:           solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1"),
		FeeProgram:               solana.MustPublicKeyFromBase58("pfeeUxB6jkeY1Hxd7CsFCAjcbHA9rWtchMGdZ6VojVZ"),
	}
}

func TestBuildBuy_MayhemModeGated(t *testing.T) {
	b := NewBuilder(&fakeRPC{}, testConfig())
	owner := solana.NewWallet().PublicKey()

	_, err := b.BuildBuy(context.Background(), owner, testState(true), 1_000_000_000, 100, 300)
	if err != ErrMayhemModeUnsupported {
		t.Fatalf("expected ErrMayhemModeUnsupported, got %v", err)
	}
}

func TestBuildSell_MayhemModeGated(t *testing.T) {
	b := NewBuilder(&fakeRPC{}, testConfig())
	owner := solana.NewWallet().PublicKey()

	_, err := b.BuildSell(context.Background(), owner, testState(true), 1_000_000, 100, 300)
	if err != ErrMayhemModeUnsupported {
		t.Fatalf("expected ErrMayhemModeUnsupported, got %v", err)
	}
}

func TestBuildBuy_ProducesTransactionAndMetadata(t *testing.T) {
	var hash solana.Hash
	copy(hash[:], []byte("deterministictestblockhash12345"))
	b := NewBuilder(&fakeRPC{blockhash: hash}, testConfig())
	owner := solana.NewWallet().PublicKey()

	result, err := b.BuildBuy(context.Background(), owner, testState(false), 1_000_000_000, 100, 300)
	if err != nil {
		t.Fatalf("BuildBuy: %v", err)
	}
	if result.TransactionBase64 == "" {
		t.Fatal("expected a non-empty transaction payload")
	}
	if _, err := base64.StdEncoding.DecodeString(result.TransactionBase64); err != nil {
		t.Fatalf("expected valid base64, got error: %v", err)
	}
	if result.ExpectedOut == 0 {
		t.Fatal("expected a non-zero expected output")
	}
	if result.MinOut > result.ExpectedOut {
		t.Fatalf("min_out (%d) must never exceed expected out (%d)", result.MinOut, result.ExpectedOut)
	}
}

func TestDeriveBuyAccounts_OrderAndCount(t *testing.T) {
	b := NewBuilder(&fakeRPC{}, testConfig())
	owner := solana.NewWallet().PublicKey()

	accts, err := b.deriveBuyAccounts(owner, testState(false))
	if err != nil {
		t.Fatalf("deriveBuyAccounts: %v", err)
	}
	if len(accts.meta) != 16 {
		t.Fatalf("expected 16 accounts for buy, got %d", len(accts.meta))
	}
	// user is account #7 (index 6), writable signer.
	if !accts.meta[6].PublicKey.Equals(owner) || !accts.meta[6].IsSigner || !accts.meta[6].IsWritable {
		t.Fatalf("expected index 6 to be the writable signing user, got %+v", accts.meta[6])
	}
}

func TestDeriveSellAccounts_OrderAndCount(t *testing.T) {
	b := NewBuilder(&fakeRPC{}, testConfig())
	owner := solana.NewWallet().PublicKey()

	accts, err := b.deriveSellAccounts(owner, testState(false))
	if err != nil {
		t.Fatalf("deriveSellAccounts: %v", err)
	}
	if len(accts.meta) != 14 {
		t.Fatalf("expected 14 accounts for sell, got %d", len(accts.meta))
	}
	if !accts.meta[6].PublicKey.Equals(owner) || !accts.meta[6].IsSigner || !accts.meta[6].IsWritable {
		t.Fatalf("expected index 6 to be the writable signing user, got %+v", accts.meta[6])
	}
}

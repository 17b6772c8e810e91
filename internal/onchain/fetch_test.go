package onchain

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type fakeRPCClient struct {
	getAccountInfoErrs []error
	getAccountInfoRes  *rpc.GetAccountInfoResult
	balanceErr         error
	balanceRes         *rpc.GetBalanceResult
	calls              int
}

func (f *fakeRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return nil, nil
}

func (f *fakeRPCClient) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.getAccountInfoErrs) {
		return nil, f.getAccountInfoErrs[idx]
	}
	return f.getAccountInfoRes, nil
}

func (f *fakeRPCClient) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	return nil, nil
}

func (f *fakeRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	f.calls++
	return f.balanceRes, f.balanceErr
}

func (f *fakeRPCClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	return solana.Signature{}, nil
}

func (f *fakeRPCClient) SimulateTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts *rpc.SimulateTransactionOpts) (*rpc.SimulateTransactionResponse, error) {
	return nil, nil
}

func TestFetcher_SOLBalance_RetriesTransientThenSucceeds(t *testing.T) {
	client := &fakeRPCClient{
		balanceErr: errors.New("timeout"),
		balanceRes: &rpc.GetBalanceResult{Value: 42},
	}
	// Wrap so the first two calls fail, the third succeeds.
	flaky := &flakyBalance{fakeRPCClient: client, failures: 2}
	f := NewFetcher(flaky)

	bal, err := f.SOLBalance(context.Background(), solana.SystemProgramID)
	if err != nil {
		t.Fatalf("SOLBalance: %v", err)
	}
	if bal != 42 {
		t.Fatalf("expected balance 42, got %d", bal)
	}
	if flaky.attempts != 3 {
		t.Fatalf("expected 3 attempts (2 retries), got %d", flaky.attempts)
	}
}

func TestFetcher_CurveState_NotFoundDoesNotRetry(t *testing.T) {
	client := &fakeRPCClient{getAccountInfoErrs: []error{rpc.ErrNotFound, rpc.ErrNotFound, rpc.ErrNotFound}}
	f := NewFetcher(client)

	_, err := f.CurveState(context.Background(), solana.SystemProgramID)
	if err == nil {
		t.Fatalf("expected a not-found error")
	}
	if client.calls != 1 {
		t.Fatalf("expected exactly one attempt for a NotFound error, got %d", client.calls)
	}
}

// flakyBalance fails GetBalance a fixed number of times before delegating
// to the embedded fake, modeling a Transient RPC hiccup.
type flakyBalance struct {
	*fakeRPCClient
	failures int
	attempts int
}

func (f *flakyBalance) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	f.attempts++
	if f.attempts <= f.failures {
		return nil, errors.New("timeout")
	}
	return f.fakeRPCClient.balanceRes, nil
}

package onchain

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"ares_api/internal/concurrency"
	"ares_api/internal/models"
	"ares_api/internal/tradingerr"
)

// rpcBackoff governs retries against the RPC endpoint itself: Transient
// failures (timeouts, rate limits, dropped connections) get a handful of
// quick retries; NotFound and everything else is returned to the caller
// on the first attempt. This is the "integration edge" §7 designates for
// retrying Transient errors, as opposed to the executor's single-attempt
// submission path.
var rpcBackoff = concurrency.BackoffConfig{
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2.0,
	Jitter:       true,
	MaxRetries:   3,
}

// Fetcher reads bonding-curve and token-account state from an RPC
// endpoint and classifies every failure into the taxonomy (§7) the rest
// of the system branches on.
type Fetcher struct {
	rpc     RPCClient
	breaker *concurrency.CircuitBreaker
}

func NewFetcher(client RPCClient) *Fetcher {
	return &Fetcher{
		rpc: client,
		breaker: concurrency.NewCircuitBreaker(concurrency.CircuitBreakerConfig{
			Name:             "onchain-rpc",
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 2,
		}),
	}
}

// call runs fn through the circuit breaker, retrying Transient failures
// with backoff and returning everything else (NotFound, Validation,
// Internal, or an open breaker) immediately.
func (f *Fetcher) call(ctx context.Context, fn func() error) error {
	return f.breaker.Call(func() error {
		backoff := concurrency.NewExponentialBackoff(rpcBackoff)
		var lastErr error
		for {
			err := fn()
			if err == nil {
				return nil
			}
			lastErr = err
			if kind, _ := tradingerr.KindOf(err); kind != tradingerr.Transient {
				return err
			}
			delay := backoff.NextDelay()
			if delay == 0 {
				return lastErr
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	})
}

// CurveState fetches and decodes the bonding curve account for mint.
func (f *Fetcher) CurveState(ctx context.Context, mint solana.PublicKey) (*models.CurveState, error) {
	bondingCurve, _, err := BondingCurveAddress(mint)
	if err != nil {
		return nil, tradingerr.Wrap("onchain.Fetcher.CurveState", tradingerr.Internal, "derive bonding curve PDA", err)
	}

	var info *rpc.GetAccountInfoResult
	err = f.call(ctx, func() error {
		var rpcErr error
		info, rpcErr = f.rpc.GetAccountInfo(ctx, bondingCurve)
		if rpcErr != nil {
			return classifyRPCError("onchain.Fetcher.CurveState", rpcErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if info == nil || info.Value == nil || info.Value.Data == nil {
		return nil, tradingerr.New("onchain.Fetcher.CurveState", tradingerr.NotFound,
			fmt.Sprintf("bonding curve not found for mint %s", mint))
	}

	return DecodeCurveState(mint, bondingCurve, info.Value.Data.GetBinary())
}

// TokenBalance returns the owner's balance of mint, trying the standard
// SPL token program's associated account first and the Token-2022
// variant second, returning whichever account actually holds tokens.
// Pump.fun mints are standard SPL almost universally, but a handful of
// newer launches use Token-2022, and the on-chain layout gives no way to
// tell without trying both.
func (f *Fetcher) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	programs := []solana.PublicKey{TokenProgramID, Token2022ProgramID}

	var lastErr error
	for _, program := range programs {
		ata, _, err := AssociatedUserAccount(owner, mint, program)
		if err != nil {
			lastErr = err
			continue
		}

		var bal *rpc.GetTokenAccountBalanceResult
		err = f.call(ctx, func() error {
			var rpcErr error
			bal, rpcErr = f.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
			if rpcErr != nil {
				return classifyRPCError("onchain.Fetcher.TokenBalance", rpcErr)
			}
			return nil
		})
		if err != nil {
			lastErr = err
			continue
		}
		if bal == nil || bal.Value == nil {
			continue
		}

		amount, err := strconv.ParseUint(bal.Value.Amount, 10, 64)
		// A parse failure means a malformed response rather than a zero
		// balance, so it still falls through to the next program.
		if err == nil && amount > 0 {
			return amount, nil
		}
	}

	if lastErr != nil {
		return 0, lastErr
	}
	return 0, nil
}

// SOLBalance returns the native lamport balance of account.
func (f *Fetcher) SOLBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var res *rpc.GetBalanceResult
	err := f.call(ctx, func() error {
		var rpcErr error
		res, rpcErr = f.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
		if rpcErr != nil {
			return classifyRPCError("onchain.Fetcher.SOLBalance", rpcErr)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}

// classifyRPCError maps a raw RPC transport/response error onto the
// taxonomy: anything that isn't a recognizable "account not found" is
// treated as transient and left to the caller's retry policy.
func classifyRPCError(op string, err error) error {
	if err == rpc.ErrNotFound {
		return tradingerr.Wrap(op, tradingerr.NotFound, "account not found", err)
	}
	return tradingerr.Wrap(op, tradingerr.Transient, "rpc call failed", err)
}

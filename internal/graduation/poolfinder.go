package graduation

import "context"

// NoopPoolFinder documents the Raydium pool-discovery seam without
// claiming support: no Raydium SDK is wired into this deployment, so a
// mint that completes its bonding curve sits in Graduating until an
// operator supplies a real PoolFinder (an indexer lookup, a
// getProgramAccounts scan filtered to the Raydium AMM program, or a
// third-party pool-discovery API).
type NoopPoolFinder struct{}

func (NoopPoolFinder) FindPool(ctx context.Context, mint string) (string, bool, error) {
	return "", false, nil
}

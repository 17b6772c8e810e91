package onchain

import "strings"

// IsBondingCurveCompleteError reports whether err is the on-chain program
// rejecting a sell because the curve has already graduated and liquidity
// moved to Raydium. The program error only comes back as an anchor error
// string or code, never a typed value, so this is a substring match.
func IsBondingCurveCompleteError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "BondingCurveComplete") ||
		strings.Contains(msg, "0x1775") ||
		strings.Contains(msg, "6005")
}

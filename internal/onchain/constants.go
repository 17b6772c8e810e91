package onchain

import "github.com/gagliardetto/solana-go"

// Fixed program and account addresses (§6). GlobalState, FeeRecipient,
// EventAuthority and FeeProgram are launchpad-operated accounts that do
// not derive from a seed; they are wired through Config so a deployment
// can override them without a code change, but ship with pump.fun's
// well-known mainnet values as defaults.
var (
	ProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	DefaultGlobalState     = solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	DefaultFeeRecipient    = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	DefaultEventAuthority  = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
	DefaultFeeProgram      = solana.MustPublicKeyFromBase58("pfeeUxB6jkeY1Hxd7CsFCAjcbHA9rWtchMGdZ6VojVZ")

	SystemProgramID          = solana.SystemProgramID
	TokenProgramID           = solana.TokenProgramID
	Token2022ProgramID       = solana.Token2022ProgramID
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
)

// Buy/sell instruction discriminators (§6), the first 8 bytes of instruction data.
var (
	BuyDiscriminator  = [8]byte{102, 6, 61, 18, 1, 218, 235, 234}
	SellDiscriminator = [8]byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// Seed prefixes for PDA derivation (§6).
var (
	SeedBondingCurve            = []byte("bonding-curve")
	SeedCreatorVault            = []byte("creator-vault")
	SeedGlobalVolumeAccumulator = []byte("global_volume_accumulator")
	SeedUserVolumeAccumulator   = []byte("user_volume_accumulator")
	SeedFeeConfig               = []byte("fee_config")
)

// ResolveAccount returns override parsed as a public key, or fallback if
// override is empty. Used at wiring time to let a deployment swap out a
// launchpad-operated account without a code change.
func ResolveAccount(override string, fallback solana.PublicKey) solana.PublicKey {
	if override == "" {
		return fallback
	}
	return solana.MustPublicKeyFromBase58(override)
}

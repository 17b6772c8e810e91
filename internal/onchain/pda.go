package onchain

import "github.com/gagliardetto/solana-go"

// BondingCurveAddress derives the bonding curve PDA for a mint: seeds
// [b"bonding-curve", mint], owned by the pump.fun program.
func BondingCurveAddress(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{SeedBondingCurve, mint.Bytes()},
		ProgramID,
	)
}

// AssociatedBondingCurveAddress derives the bonding curve's own token
// vault: an associated-token-account owned by the bonding curve PDA, for
// the given token program (standard SPL or Token-2022).
func AssociatedBondingCurveAddress(bondingCurve, mint, tokenProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{bondingCurve.Bytes(), tokenProgram.Bytes(), mint.Bytes()},
		AssociatedTokenProgramID,
	)
}

// CreatorVaultAddress derives the per-creator fee vault: seeds
// [b"creator-vault", creator].
func CreatorVaultAddress(creator solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{SeedCreatorVault, creator.Bytes()},
		ProgramID,
	)
}

// GlobalVolumeAccumulatorAddress derives the program-wide volume
// accumulator: seeds [b"global_volume_accumulator"].
func GlobalVolumeAccumulatorAddress() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{SeedGlobalVolumeAccumulator},
		ProgramID,
	)
}

// UserVolumeAccumulatorAddress derives the per-user volume accumulator:
// seeds [b"user_volume_accumulator", user].
func UserVolumeAccumulatorAddress(user solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{SeedUserVolumeAccumulator, user.Bytes()},
		ProgramID,
	)
}

// FeeConfigAddress derives the fee-config account owned by feeProgram:
// seeds [b"fee_config", program_id].
func FeeConfigAddress(feeProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{SeedFeeConfig, ProgramID.Bytes()},
		feeProgram,
	)
}

// AssociatedUserAccount derives the user's own associated-token-account
// for mint, under tokenProgram: the buyer/seller wallet ATA.
// AssociatedBondingCurveAddress performs the same derivation for the
// bonding curve's vault.
func AssociatedUserAccount(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{owner.Bytes(), tokenProgram.Bytes(), mint.Bytes()},
		AssociatedTokenProgramID,
	)
}

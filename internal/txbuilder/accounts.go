package txbuilder

import (
	"ares_api/internal/models"
	"ares_api/internal/onchain"

	"github.com/gagliardetto/solana-go"
)

// derivedAccounts carries the two accounts prelude() needs (to build the
// ATA-creation instruction) alongside the full ordered AccountMetaSlice
// the swap instruction itself needs.
type derivedAccounts struct {
	meta             solana.AccountMetaSlice
	mint             solana.PublicKey
	tokenProgram     solana.PublicKey
	userTokenAccount solana.PublicKey
}

// deriveBuyAccounts builds the 16-account buy list in the exact order
// fixed by §6.
func (b *Builder) deriveBuyAccounts(owner solana.PublicKey, state *models.CurveState) (derivedAccounts, error) {
	mint := solana.MustPublicKeyFromBase58(state.Mint)
	bondingCurve := solana.MustPublicKeyFromBase58(state.BondingCurveAddress)
	associatedBondingCurve := solana.MustPublicKeyFromBase58(state.AssociatedBondingCurve)
	creator := solana.MustPublicKeyFromBase58(state.Creator)

	userTokenAccount, _, err := onchain.AssociatedUserAccount(owner, mint, onchain.Token2022ProgramID)
	if err != nil {
		return derivedAccounts{}, err
	}
	creatorVault, _, err := onchain.CreatorVaultAddress(creator)
	if err != nil {
		return derivedAccounts{}, err
	}
	globalVolumeAccumulator, _, err := onchain.GlobalVolumeAccumulatorAddress()
	if err != nil {
		return derivedAccounts{}, err
	}
	userVolumeAccumulator, _, err := onchain.UserVolumeAccumulatorAddress(owner)
	if err != nil {
		return derivedAccounts{}, err
	}
	feeConfig, _, err := onchain.FeeConfigAddress(b.cfg.FeeProgram)
	if err != nil {
		return derivedAccounts{}, err
	}

	meta := solana.AccountMetaSlice{
		solana.NewAccountMeta(b.cfg.GlobalState, false, false),
		solana.NewAccountMeta(b.cfg.FeeRecipient, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(bondingCurve, true, false),
		solana.NewAccountMeta(associatedBondingCurve, true, false),
		solana.NewAccountMeta(userTokenAccount, true, false),
		solana.NewAccountMeta(owner, true, true),
		solana.NewAccountMeta(onchain.SystemProgramID, false, false),
		solana.NewAccountMeta(onchain.Token2022ProgramID, false, false),
		solana.NewAccountMeta(creatorVault, true, false),
		solana.NewAccountMeta(b.cfg.EventAuthority, false, false),
		solana.NewAccountMeta(onchain.ProgramID, false, false),
		solana.NewAccountMeta(globalVolumeAccumulator, true, false),
		solana.NewAccountMeta(userVolumeAccumulator, true, false),
		solana.NewAccountMeta(feeConfig, false, false),
		solana.NewAccountMeta(b.cfg.FeeProgram, false, false),
	}

	return derivedAccounts{
		meta:             meta,
		mint:             mint,
		tokenProgram:     onchain.Token2022ProgramID,
		userTokenAccount: userTokenAccount,
	}, nil
}

// deriveSellAccounts builds the 14-account sell list in the exact order
// fixed by §6.
func (b *Builder) deriveSellAccounts(owner solana.PublicKey, state *models.CurveState) (derivedAccounts, error) {
	mint := solana.MustPublicKeyFromBase58(state.Mint)
	bondingCurve := solana.MustPublicKeyFromBase58(state.BondingCurveAddress)
	associatedBondingCurve := solana.MustPublicKeyFromBase58(state.AssociatedBondingCurve)
	creator := solana.MustPublicKeyFromBase58(state.Creator)

	userTokenAccount, _, err := onchain.AssociatedUserAccount(owner, mint, onchain.Token2022ProgramID)
	if err != nil {
		return derivedAccounts{}, err
	}
	creatorVault, _, err := onchain.CreatorVaultAddress(creator)
	if err != nil {
		return derivedAccounts{}, err
	}
	feeConfig, _, err := onchain.FeeConfigAddress(b.cfg.FeeProgram)
	if err != nil {
		return derivedAccounts{}, err
	}

	meta := solana.AccountMetaSlice{
		solana.NewAccountMeta(b.cfg.GlobalState, false, false),
		solana.NewAccountMeta(b.cfg.FeeRecipient, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(bondingCurve, true, false),
		solana.NewAccountMeta(associatedBondingCurve, true, false),
		solana.NewAccountMeta(userTokenAccount, true, false),
		solana.NewAccountMeta(owner, true, true),
		solana.NewAccountMeta(onchain.SystemProgramID, false, false),
		solana.NewAccountMeta(creatorVault, true, false),
		solana.NewAccountMeta(onchain.Token2022ProgramID, false, false),
		solana.NewAccountMeta(b.cfg.EventAuthority, false, false),
		solana.NewAccountMeta(onchain.ProgramID, false, false),
		solana.NewAccountMeta(feeConfig, false, false),
		solana.NewAccountMeta(b.cfg.FeeProgram, false, false),
	}

	return derivedAccounts{
		meta:             meta,
		mint:             mint,
		tokenProgram:     onchain.Token2022ProgramID,
		userTokenAccount: userTokenAccount,
	}, nil
}

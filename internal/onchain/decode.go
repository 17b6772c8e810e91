package onchain

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"ares_api/internal/models"
	"ares_api/internal/tradingerr"
)

// minCurveStateLen is the shortest bonding-curve account data accepted.
// The fields decoded below end at byte 82 (is_mayhem_mode at offset 81);
// anything shorter than 89 bytes is reported as a protocol error rather
// than silently zero-valued.
const minCurveStateLen = 89

// DecodeCurveState parses a bonding-curve account's raw data per the
// fixed byte layout in §6: 0:8 discriminator, 8:16 virtual_token_reserves,
// 16:24 virtual_sol_reserves, 24:32 real_token_reserves, 32:40
// real_sol_reserves, 40:48 token_total_supply, 48 is_complete, 49:81
// creator pubkey, 81 is_mayhem_mode.
func DecodeCurveState(mint solana.PublicKey, bondingCurve solana.PublicKey, data []byte) (*models.CurveState, error) {
	if len(data) < minCurveStateLen {
		return nil, tradingerr.New("onchain.DecodeCurveState", tradingerr.Protocol,
			"account data too short for a bonding curve")
	}

	// A zero creator is unusual but not fatal; some legacy curves predate
	// the creator-fee program upgrade.
	creator := solana.PublicKeyFromBytes(data[49:81])

	associatedBondingCurve, _, err := AssociatedBondingCurveAddress(bondingCurve, mint, Token2022ProgramID)
	if err != nil {
		return nil, tradingerr.Wrap("onchain.DecodeCurveState", tradingerr.Internal, "derive associated bonding curve", err)
	}

	return &models.CurveState{
		Mint:                   mint.String(),
		BondingCurveAddress:    bondingCurve.String(),
		AssociatedBondingCurve: associatedBondingCurve.String(),
		VirtualTokenReserves:   binary.LittleEndian.Uint64(data[8:16]),
		VirtualSOLReserves:     binary.LittleEndian.Uint64(data[16:24]),
		RealTokenReserves:      binary.LittleEndian.Uint64(data[24:32]),
		RealSOLReserves:        binary.LittleEndian.Uint64(data[32:40]),
		TokenTotalSupply:       binary.LittleEndian.Uint64(data[40:48]),
		IsComplete:             data[48] != 0,
		Creator:                creator.String(),
		IsMayhemMode:           data[81] != 0,
	}, nil
}

package pda

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// ShopAddresses is the fixed address set of one shop instance.
type ShopAddresses struct {
	ProgramID    solana.PublicKey
	Creator      solana.PublicKey
	TreasuryMint solana.PublicKey

	Shop                solana.PublicKey
	ShopBump            uint8
	Authority           solana.PublicKey
	AuthorityBump       uint8
	AuctionHouse        solana.PublicKey
	AuctionHouseBump    uint8
	FeeAccount          solana.PublicKey
	FeeAccountBump      uint8
	Treasury            solana.PublicKey
	TreasuryBump        uint8
	ProgramAsSigner     solana.PublicKey
	ProgramAsSignerBump uint8
}

func (a ShopAddresses) IsNative() bool {
	return IsNative(a.TreasuryMint)
}

type shopKey struct {
	creator, treasuryMint, programID solana.PublicKey
}

var shopCache sync.Map // shopKey -> ShopAddresses

// DeriveShopAddresses derives every shop-level account. Results are memoized
// per (creator, treasuryMint, programID).
func DeriveShopAddresses(creator, treasuryMint, programID solana.PublicKey) (ShopAddresses, error) {
	key := shopKey{creator: creator, treasuryMint: treasuryMint, programID: programID}
	if cached, ok := shopCache.Load(key); ok {
		return cached.(ShopAddresses), nil
	}

	out := ShopAddresses{ProgramID: programID, Creator: creator, TreasuryMint: treasuryMint}
	var err error
	if out.Shop, out.ShopBump, err = DeriveShop(creator, treasuryMint, programID); err != nil {
		return ShopAddresses{}, fmt.Errorf("derive shop PDA: %w", err)
	}
	if out.Authority, out.AuthorityBump, err = DeriveAuthority(creator, treasuryMint, programID); err != nil {
		return ShopAddresses{}, fmt.Errorf("derive authority PDA: %w", err)
	}
	if out.AuctionHouse, out.AuctionHouseBump, err = DeriveAuctionHouse(out.Authority, treasuryMint); err != nil {
		return ShopAddresses{}, fmt.Errorf("derive auction house PDA: %w", err)
	}
	if out.FeeAccount, out.FeeAccountBump, err = DeriveFeeAccount(out.AuctionHouse); err != nil {
		return ShopAddresses{}, fmt.Errorf("derive fee account PDA: %w", err)
	}
	if out.Treasury, out.TreasuryBump, err = DeriveTreasury(out.AuctionHouse); err != nil {
		return ShopAddresses{}, fmt.Errorf("derive treasury PDA: %w", err)
	}
	if out.ProgramAsSigner, out.ProgramAsSignerBump, err = DeriveProgramAsSigner(); err != nil {
		return ShopAddresses{}, fmt.Errorf("derive program-as-signer PDA: %w", err)
	}

	shopCache.Store(key, out)
	return out, nil
}


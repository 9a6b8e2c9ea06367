package txbuilder

import (
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/gagliardetto/solana-go"
)

// CreateShopParams initializes the shop and its auction house.
type CreateShopParams struct {
	SellerFeeBasisPoints uint16
	RequiresSignOff      bool
	CanChangeSalePrice   bool
}

// CreateShop is signed by the shop creator, who also receives treasury and
// fee withdrawals.
func (b *Builder) CreateShop(p CreateShopParams) (Plan, error) {
	s := b.shop
	treasuryDestination, err := pda.PaymentAccount(s.Creator, s.TreasuryMint)
	if err != nil {
		return Plan{}, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(s.Creator, true, true),
		solana.NewAccountMeta(s.TreasuryMint, false, false),
		solana.NewAccountMeta(s.Authority, true, false),
		solana.NewAccountMeta(s.Creator, false, false),
		solana.NewAccountMeta(treasuryDestination, true, false),
		solana.NewAccountMeta(s.Creator, false, false),
		solana.NewAccountMeta(s.AuctionHouse, true, false),
		solana.NewAccountMeta(s.FeeAccount, true, false),
		solana.NewAccountMeta(s.Treasury, true, false),
		solana.NewAccountMeta(s.Shop, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		solana.NewAccountMeta(pda.AuctionHouseProgramID, false, false),
	}
	data := newArgs(createCandyShopDisc).
		u8(s.AuthorityBump).
		u8(s.AuctionHouseBump).
		u8(s.FeeAccountBump).
		u8(s.TreasuryBump).
		u8(s.ShopBump).
		u16(p.SellerFeeBasisPoints).
		boolean(p.RequiresSignOff).
		boolean(p.CanChangeSalePrice)
	return b.single("create_candy_shop", s.Shop, s.ProgramID, accounts, data)
}

// WithdrawFromTreasury moves amount out of the auction-house treasury to
// destination, the treasury withdrawal destination of the auction house.
func (b *Builder) WithdrawFromTreasury(destination solana.PublicKey, amount uint64) (Plan, error) {
	s := b.shop
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(s.Creator, true, true),
		solana.NewAccountMeta(s.TreasuryMint, false, false),
		solana.NewAccountMeta(s.Authority, false, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(s.Treasury, true, false),
		solana.NewAccountMeta(s.AuctionHouse, true, false),
		solana.NewAccountMeta(s.Shop, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(pda.AuctionHouseProgramID, false, false),
	}
	data := newArgs(candyShopWithdrawFromTreasuryDisc).
		u64(amount).
		u8(s.AuthorityBump)
	return b.single("candy_shop_withdraw_from_treasury", s.Treasury, s.ProgramID, accounts, data)
}

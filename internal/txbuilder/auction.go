package txbuilder

import (
	"fmt"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/gagliardetto/solana-go"
)

// AuctionAddresses are the PDAs of one auction. The auction PDA holds the
// NFT in its own ATA and acts as the seller towards the auction house.
type AuctionAddresses struct {
	Auction        solana.PublicKey
	AuctionBump    uint8
	AuctionEscrow  solana.PublicKey
	Metadata       solana.PublicKey
	SellerPayment  solana.PublicKey
	TradeState     solana.PublicKey
	TradeStateBump uint8
	FreeTradeState solana.PublicKey
	FreeTradeBump  uint8
}

func (b *Builder) DeriveAuction(mint, seller solana.PublicKey, price uint64) (AuctionAddresses, error) {
	var (
		out AuctionAddresses
		err error
	)
	s := b.shop
	if out.Auction, out.AuctionBump, err = pda.DeriveAuction(s.Shop, mint, s.ProgramID); err != nil {
		return out, fmt.Errorf("derive auction: %w", err)
	}
	if out.AuctionEscrow, _, err = pda.DeriveATA(out.Auction, mint); err != nil {
		return out, fmt.Errorf("derive auction escrow: %w", err)
	}
	if out.Metadata, _, err = pda.DeriveMetadata(mint); err != nil {
		return out, fmt.Errorf("derive metadata: %w", err)
	}
	if out.SellerPayment, err = pda.PaymentAccount(seller, s.TreasuryMint); err != nil {
		return out, err
	}
	if out.TradeState, out.TradeStateBump, err = pda.DeriveTradeState(s.AuctionHouse, out.Auction, out.AuctionEscrow, s.TreasuryMint, mint, 1, price); err != nil {
		return out, fmt.Errorf("derive auction trade state: %w", err)
	}
	if out.FreeTradeState, out.FreeTradeBump, err = pda.DeriveTradeState(s.AuctionHouse, out.Auction, out.AuctionEscrow, s.TreasuryMint, mint, 1, 0); err != nil {
		return out, fmt.Errorf("derive auction free trade state: %w", err)
	}
	return out, nil
}

// BidderAddresses are the per-bidder PDAs of an auction.
type BidderAddresses struct {
	Bid            solana.PublicKey
	BidBump        uint8
	PaymentAccount solana.PublicKey
	Escrow         solana.PublicKey
	EscrowBump     uint8
	TradeState     solana.PublicKey
	TradeStateBump uint8
	NFTAccount     solana.PublicKey
}

func (b *Builder) DeriveBidder(auction AuctionAddresses, mint, wallet solana.PublicKey, price uint64) (BidderAddresses, error) {
	var (
		out BidderAddresses
		err error
	)
	s := b.shop
	if out.Bid, out.BidBump, err = pda.DeriveBid(auction.Auction, wallet, s.ProgramID); err != nil {
		return out, fmt.Errorf("derive bid: %w", err)
	}
	if out.PaymentAccount, err = pda.PaymentAccount(wallet, s.TreasuryMint); err != nil {
		return out, err
	}
	if out.Escrow, out.EscrowBump, err = pda.DeriveEscrow(s.AuctionHouse, wallet); err != nil {
		return out, fmt.Errorf("derive bidder escrow: %w", err)
	}
	if out.TradeState, out.TradeStateBump, err = pda.DeriveTradeState(s.AuctionHouse, wallet, auction.AuctionEscrow, s.TreasuryMint, mint, 1, price); err != nil {
		return out, fmt.Errorf("derive bidder trade state: %w", err)
	}
	if out.NFTAccount, _, err = pda.DeriveATA(wallet, mint); err != nil {
		return out, fmt.Errorf("derive bidder nft account: %w", err)
	}
	return out, nil
}

// CreateAuctionParams mirrors the on-chain auction arguments. Times are
// unix seconds, durations seconds.
type CreateAuctionParams struct {
	Seller             solana.PublicKey
	Mint               solana.PublicKey
	SellerTokenAccount solana.PublicKey
	StartingBid        uint64
	StartTime          int64
	BiddingPeriod      int64
	TickSize           uint64
	BuyNowPrice        *uint64
	ExtensionPeriod    int64
	ExtensionIncrement int64
}

func (b *Builder) CreateAuction(p CreateAuctionParams) (Plan, error) {
	addrs, err := b.DeriveAuction(p.Mint, p.Seller, 0)
	if err != nil {
		return Plan{}, err
	}
	s := b.shop
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Seller, true, true),
		solana.NewAccountMeta(addrs.Auction, true, false),
		solana.NewAccountMeta(s.Shop, false, false),
		solana.NewAccountMeta(addrs.AuctionEscrow, true, false),
		solana.NewAccountMeta(p.Mint, false, false),
		solana.NewAccountMeta(p.SellerTokenAccount, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}
	data := newArgs(createAuctionDisc).
		u64(p.StartingBid).
		i64(p.StartTime).
		i64(p.BiddingPeriod).
		u64(p.TickSize).
		optionalU64(p.BuyNowPrice).
		i64(p.ExtensionPeriod).
		i64(p.ExtensionIncrement).
		u8(addrs.AuctionBump)
	return b.single("create_auction", addrs.Auction, s.ProgramID, accounts, data)
}

type CancelAuctionParams struct {
	Seller             solana.PublicKey
	Mint               solana.PublicKey
	SellerTokenAccount solana.PublicKey
}

func (b *Builder) CancelAuction(p CancelAuctionParams) (Plan, error) {
	addrs, err := b.DeriveAuction(p.Mint, p.Seller, 0)
	if err != nil {
		return Plan{}, err
	}
	s := b.shop
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Seller, true, true),
		solana.NewAccountMeta(addrs.Auction, true, false),
		solana.NewAccountMeta(s.Shop, false, false),
		solana.NewAccountMeta(addrs.AuctionEscrow, true, false),
		solana.NewAccountMeta(p.Mint, false, false),
		solana.NewAccountMeta(p.SellerTokenAccount, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}
	data := newArgs(cancelAuctionDisc).u8(addrs.AuctionBump)
	return b.single("cancel_auction", addrs.Auction, s.ProgramID, accounts, data)
}

type BidParams struct {
	Wallet solana.PublicKey
	Mint   solana.PublicKey
	Seller solana.PublicKey
	Price  uint64
}

func (b *Builder) MakeBid(p BidParams) (Plan, error) {
	auction, bidder, err := b.deriveBidAccounts(p.Mint, p.Seller, p.Wallet, p.Price)
	if err != nil {
		return Plan{}, err
	}
	accounts := b.bidAccounts(p.Wallet, p.Mint, auction, bidder)
	data := newArgs(makeBidDisc).
		u64(p.Price).
		u8(auction.AuctionBump).
		u8(bidder.BidBump).
		u8(bidder.TradeStateBump).
		u8(bidder.EscrowBump).
		u8(b.shop.AuthorityBump)
	return b.single("make_bid", bidder.Bid, b.shop.ProgramID, accounts, data)
}

// WithdrawBidParams withdraws the bid placed at Price.
type WithdrawBidParams struct {
	Wallet solana.PublicKey
	Mint   solana.PublicKey
	Seller solana.PublicKey
	Price  uint64
}

func (b *Builder) WithdrawBid(p WithdrawBidParams) (Plan, error) {
	auction, bidder, err := b.deriveBidAccounts(p.Mint, p.Seller, p.Wallet, p.Price)
	if err != nil {
		return Plan{}, err
	}
	accounts := append(b.bidAccounts(p.Wallet, p.Mint, auction, bidder),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
	)
	data := newArgs(withdrawBidDisc).
		u8(auction.AuctionBump).
		u8(bidder.EscrowBump).
		u8(b.shop.AuthorityBump)
	return b.single("withdraw_bid", bidder.Bid, b.shop.ProgramID, accounts, data)
}

func (b *Builder) deriveBidAccounts(mint, seller, wallet solana.PublicKey, price uint64) (AuctionAddresses, BidderAddresses, error) {
	auction, err := b.DeriveAuction(mint, seller, 0)
	if err != nil {
		return AuctionAddresses{}, BidderAddresses{}, err
	}
	bidder, err := b.DeriveBidder(auction, mint, wallet, price)
	if err != nil {
		return AuctionAddresses{}, BidderAddresses{}, err
	}
	return auction, bidder, nil
}

func (b *Builder) bidAccounts(wallet, mint solana.PublicKey, auction AuctionAddresses, bidder BidderAddresses) solana.AccountMetaSlice {
	s := b.shop
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(wallet, true, true),
		solana.NewAccountMeta(auction.Auction, true, false),
		solana.NewAccountMeta(s.Shop, false, false),
		solana.NewAccountMeta(bidder.Bid, true, false),
		solana.NewAccountMeta(bidder.PaymentAccount, true, false),
		solana.NewAccountMeta(bidder.Escrow, true, false),
		solana.NewAccountMeta(bidder.TradeState, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(auction.Metadata, false, false),
		solana.NewAccountMeta(auction.AuctionEscrow, false, false),
		solana.NewAccountMeta(s.Authority, false, false),
		solana.NewAccountMeta(s.TreasuryMint, false, false),
		solana.NewAccountMeta(s.AuctionHouse, false, false),
		solana.NewAccountMeta(s.FeeAccount, true, false),
		solana.NewAccountMeta(pda.AuctionHouseProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}
}

// BuyNowParams buys the auctioned NFT at its buy-now price.
type BuyNowParams struct {
	Wallet      solana.PublicKey
	Mint        solana.PublicKey
	Seller      solana.PublicKey
	BuyNowPrice uint64
	Creators    []chain.Creator
}

func (b *Builder) BuyNow(p BuyNowParams) (Plan, error) {
	auction, err := b.DeriveAuction(p.Mint, p.Seller, p.BuyNowPrice)
	if err != nil {
		return Plan{}, err
	}
	bidder, err := b.DeriveBidder(auction, p.Mint, p.Wallet, p.BuyNowPrice)
	if err != nil {
		return Plan{}, err
	}
	accounts, err := b.saleAccounts(p.Wallet, p.Wallet, p.Mint, auction, bidder, p.Creators)
	if err != nil {
		return Plan{}, err
	}
	data := b.saleArgs(buyNowDisc, auction, bidder)
	return b.single("buy_now", auction.Auction, b.shop.ProgramID, accounts, data)
}

// SettleParams settles a closed auction in favour of its highest bid.
type SettleParams struct {
	Settler  solana.PublicKey
	Mint     solana.PublicKey
	Seller   solana.PublicKey
	Winner   chain.HighestBid
	Creators []chain.Creator
}

func (b *Builder) SettleAndDistribute(p SettleParams) (Plan, error) {
	auction, err := b.DeriveAuction(p.Mint, p.Seller, p.Winner.Price)
	if err != nil {
		return Plan{}, err
	}
	bidder, err := b.DeriveBidder(auction, p.Mint, p.Winner.Wallet, p.Winner.Price)
	if err != nil {
		return Plan{}, err
	}
	accounts, err := b.saleAccounts(p.Settler, p.Winner.Wallet, p.Mint, auction, bidder, p.Creators)
	if err != nil {
		return Plan{}, err
	}
	data := b.saleArgs(settleAndDistributeDisc, auction, bidder)
	return b.single("settle_and_distribute_proceeds", auction.Auction, b.shop.ProgramID, accounts, data)
}

// saleAccounts is the account list shared by buy-now and settlement: the
// auction sells its escrowed NFT to buyer through the auction house.
func (b *Builder) saleAccounts(
	payer solana.PublicKey,
	buyer solana.PublicKey,
	mint solana.PublicKey,
	auction AuctionAddresses,
	bidder BidderAddresses,
	creators []chain.Creator,
) (solana.AccountMetaSlice, error) {
	s := b.shop
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(auction.Auction, true, false),
		solana.NewAccountMeta(s.Shop, false, false),
		solana.NewAccountMeta(bidder.Bid, true, false),
		solana.NewAccountMeta(buyer, true, false),
		solana.NewAccountMeta(bidder.PaymentAccount, true, false),
		solana.NewAccountMeta(bidder.NFTAccount, true, false),
		solana.NewAccountMeta(bidder.Escrow, true, false),
		solana.NewAccountMeta(bidder.TradeState, true, false),
		solana.NewAccountMeta(auction.TradeState, true, false),
		solana.NewAccountMeta(auction.FreeTradeState, true, false),
		solana.NewAccountMeta(auction.AuctionEscrow, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(auction.Metadata, false, false),
		solana.NewAccountMeta(s.Authority, false, false),
		solana.NewAccountMeta(s.TreasuryMint, false, false),
		solana.NewAccountMeta(s.AuctionHouse, false, false),
		solana.NewAccountMeta(s.FeeAccount, true, false),
		solana.NewAccountMeta(s.Treasury, true, false),
		solana.NewAccountMeta(auction.SellerPayment, true, false),
		solana.NewAccountMeta(s.ProgramAsSigner, false, false),
		solana.NewAccountMeta(pda.AuctionHouseProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}
	tail, err := creatorAccounts(creators, s.TreasuryMint)
	if err != nil {
		return nil, err
	}
	return append(accounts, tail...), nil
}

func (b *Builder) saleArgs(discriminator [8]byte, auction AuctionAddresses, bidder BidderAddresses) *args {
	return newArgs(discriminator).
		u8(auction.AuctionBump).
		u8(auction.TradeStateBump).
		u8(auction.FreeTradeBump).
		u8(bidder.EscrowBump).
		u8(b.shop.ProgramAsSignerBump).
		u8(b.shop.AuthorityBump)
}

// single wraps one candy-shop instruction into a one-transaction plan.
func (b *Builder) single(label string, fingerprint, programID solana.PublicKey, accounts solana.AccountMetaSlice, data *args) (Plan, error) {
	ix, err := instruction(programID, accounts, data)
	if err != nil {
		return Plan{}, fmt.Errorf("build %s: %w", label, err)
	}
	tx, err := b.tx(label, ix)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Operation: label, Fingerprint: fingerprint, Txs: []Tx{tx}}, nil
}

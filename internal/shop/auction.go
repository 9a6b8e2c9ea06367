package shop

import (
	"context"
	"fmt"
	"time"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/failure"
	"github.com/coldbell/candyshop/internal/market"
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/coldbell/candyshop/internal/txbuilder"
	"github.com/gagliardetto/solana-go"
)

// NewAuction describes an auction of Mint by the wallet. Prices are in
// treasury-mint base units.
type NewAuction struct {
	Mint               solana.PublicKey
	TokenAccount       solana.PublicKey
	StartingBid        uint64
	TickSize           uint64
	BuyNowPrice        *uint64
	StartTime          time.Time
	BiddingPeriod      time.Duration
	ExtensionPeriod    time.Duration
	ExtensionIncrement time.Duration
}

func (c *Client) CreateAuction(ctx context.Context, p NewAuction) (Result, error) {
	const op = "create_auction"
	seller := c.sender.Wallet()
	tokenAccount, err := c.ownedTokenAccount(p.TokenAccount, p.Mint)
	if err != nil {
		return Result{}, err
	}
	addrs, err := c.builder.DeriveAuction(p.Mint, seller, 0)
	if err != nil {
		return Result{}, err
	}

	params := market.CreateParams{
		Seller:             seller,
		StartingBid:        p.StartingBid,
		TickSize:           p.TickSize,
		BuyNowPrice:        p.BuyNowPrice,
		StartTime:          p.StartTime,
		BiddingPeriod:      p.BiddingPeriod,
		ExtensionPeriod:    p.ExtensionPeriod,
		ExtensionIncrement: p.ExtensionIncrement,
	}
	if err := market.ValidateCreate(params, c.cfg.Creator, c.now()); err != nil {
		return Result{}, c.reject(ctx, op, addrs.Auction, err)
	}
	if _, err := c.guard.Metadata(ctx, p.Mint); err != nil {
		return Result{}, c.reject(ctx, op, addrs.Auction, err)
	}
	if err := c.guard.CheckHolding(ctx, tokenAccount, 1); err != nil {
		return Result{}, c.reject(ctx, op, addrs.Auction, err)
	}
	exists, err := c.guard.AccountExists(ctx, addrs.Auction)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{}, c.reject(ctx, op, addrs.Auction,
			fmt.Errorf("%w: auction %s already exists", failure.ErrInvalidAuctionCreationParams, addrs.Auction))
	}

	plan, err := c.builder.CreateAuction(txbuilder.CreateAuctionParams{
		Seller:             seller,
		Mint:               p.Mint,
		SellerTokenAccount: tokenAccount,
		StartingBid:        p.StartingBid,
		StartTime:          p.StartTime.Unix(),
		BiddingPeriod:      seconds(p.BiddingPeriod),
		TickSize:           p.TickSize,
		BuyNowPrice:        p.BuyNowPrice,
		ExtensionPeriod:    seconds(p.ExtensionPeriod),
		ExtensionIncrement: seconds(p.ExtensionIncrement),
	})
	if err != nil {
		return Result{}, err
	}
	return c.submit(ctx, plan)
}

// CancelAuction returns the escrowed NFT to the seller (the wallet). A zero
// tokenAccount means the wallet's ATA.
func (c *Client) CancelAuction(ctx context.Context, mint, tokenAccount solana.PublicKey) (Result, error) {
	const op = "cancel_auction"
	seller := c.sender.Wallet()
	tokenAccount, err := c.ownedTokenAccount(tokenAccount, mint)
	if err != nil {
		return Result{}, err
	}
	addrs, auction, err := c.loadAuction(ctx, op, mint, seller)
	if err != nil {
		return Result{}, err
	}
	if !auction.Seller.Equals(seller) {
		return Result{}, c.reject(ctx, op, addrs.Auction,
			fmt.Errorf("%w: auction belongs to %s", failure.ErrCannotCancel, auction.Seller))
	}
	if err := market.ValidateCancel(*auction, c.now(), c.cfg.CancelPolicy); err != nil {
		return Result{}, c.reject(ctx, op, addrs.Auction, err)
	}

	plan, err := c.builder.CancelAuction(txbuilder.CancelAuctionParams{
		Seller:             seller,
		Mint:               mint,
		SellerTokenAccount: tokenAccount,
	})
	if err != nil {
		return Result{}, err
	}
	return c.submit(ctx, plan)
}

// AuctionRef names an auction by its NFT and seller.
type AuctionRef struct {
	Mint   solana.PublicKey
	Seller solana.PublicKey
}

// Bid places or raises the wallet's bid to price. Only the difference to an
// open earlier bid must be covered by the wallet balance.
func (c *Client) Bid(ctx context.Context, ref AuctionRef, price uint64) (Result, error) {
	const op = "make_bid"
	wallet := c.sender.Wallet()
	addrs, auction, err := c.loadAuction(ctx, op, ref.Mint, ref.Seller)
	if err != nil {
		return Result{}, err
	}
	bidder, err := c.builder.DeriveBidder(addrs, ref.Mint, wallet, price)
	if err != nil {
		return Result{}, err
	}
	projected, err := market.Accept(*auction, chain.HighestBid{Price: price, Bid: bidder.Bid, Wallet: wallet}, c.now())
	if err != nil {
		return Result{}, c.reject(ctx, op, bidder.Bid, err)
	}
	if end := projected.EndTime(); end > auction.EndTime() {
		c.logger.Info("bid extends auction", "auction", addrs.Auction, "end", time.Unix(end, 0).UTC())
	}

	required := price
	previous, err := c.guard.OptionalBid(ctx, bidder.Bid)
	if err != nil {
		return Result{}, err
	}
	if previous != nil && previous.Status == chain.BidOpen && previous.Price <= price {
		required = price - previous.Price
	}
	if err := c.guard.CheckBalance(ctx, wallet, c.shop.TreasuryMint, required); err != nil {
		return Result{}, c.reject(ctx, op, bidder.Bid, err)
	}

	plan, err := c.builder.MakeBid(txbuilder.BidParams{
		Wallet: wallet,
		Mint:   ref.Mint,
		Seller: ref.Seller,
		Price:  price,
	})
	if err != nil {
		return Result{}, err
	}
	return c.submit(ctx, plan)
}

// WithdrawBid returns the wallet's escrowed bid. The standing highest bid
// cannot be withdrawn.
func (c *Client) WithdrawBid(ctx context.Context, ref AuctionRef) (Result, error) {
	const op = "withdraw_bid"
	wallet := c.sender.Wallet()
	addrs, auction, err := c.loadAuction(ctx, op, ref.Mint, ref.Seller)
	if err != nil {
		return Result{}, err
	}
	bidAddress, _, err := pda.DeriveBid(addrs.Auction, wallet, c.shop.ProgramID)
	if err != nil {
		return Result{}, fmt.Errorf("derive bid: %w", err)
	}
	bid, err := c.guard.Bid(ctx, bidAddress)
	if err != nil {
		return Result{}, c.reject(ctx, op, bidAddress, err)
	}
	if err := market.ValidateWithdraw(*auction, bidAddress, *bid); err != nil {
		return Result{}, c.reject(ctx, op, bidAddress, err)
	}

	plan, err := c.builder.WithdrawBid(txbuilder.WithdrawBidParams{
		Wallet: wallet,
		Mint:   ref.Mint,
		Seller: ref.Seller,
		Price:  bid.Price,
	})
	if err != nil {
		return Result{}, err
	}
	return c.submit(ctx, plan)
}

// BuyNow buys the auctioned NFT at its buy-now price, ending the auction.
func (c *Client) BuyNow(ctx context.Context, ref AuctionRef) (Result, error) {
	const op = "buy_now"
	wallet := c.sender.Wallet()
	addrs, auction, err := c.loadAuction(ctx, op, ref.Mint, ref.Seller)
	if err != nil {
		return Result{}, err
	}
	if err := market.ValidateBuyNow(*auction, c.now()); err != nil {
		return Result{}, c.reject(ctx, op, addrs.Auction, err)
	}
	price := *auction.BuyNowPrice

	creators, err := c.guard.Creators(ctx, ref.Mint)
	if err != nil {
		return Result{}, c.reject(ctx, op, addrs.Auction, err)
	}
	if err := c.guard.CheckFeeAccount(ctx, c.shop.FeeAccount); err != nil {
		return Result{}, c.reject(ctx, op, addrs.Auction, err)
	}
	if err := c.guard.CheckBalance(ctx, wallet, c.shop.TreasuryMint, price); err != nil {
		return Result{}, c.reject(ctx, op, addrs.Auction, err)
	}

	requests := append([]txbuilder.ATARequest{{Owner: wallet, Mint: ref.Mint}}, c.paymentATAs(ref.Seller, creators)...)
	prerequisites, err := c.missingATAs(ctx, requests...)
	if err != nil {
		return Result{}, err
	}

	plan, err := c.builder.BuyNow(txbuilder.BuyNowParams{
		Wallet:      wallet,
		Mint:        ref.Mint,
		Seller:      ref.Seller,
		BuyNowPrice: price,
		Creators:    creators,
	})
	if err != nil {
		return Result{}, err
	}
	return c.submit(ctx, plan, prerequisites...)
}

// SettleAndDistribute closes a finished auction: the NFT goes to the
// highest bidder and the proceeds to seller, creators and treasury. Any
// wallet may pay for settlement.
func (c *Client) SettleAndDistribute(ctx context.Context, ref AuctionRef) (Result, error) {
	const op = "settle_and_distribute_proceeds"
	addrs, auction, err := c.loadAuction(ctx, op, ref.Mint, ref.Seller)
	if err != nil {
		return Result{}, err
	}
	if err := market.ValidateSettle(*auction, c.now()); err != nil {
		return Result{}, c.reject(ctx, op, addrs.Auction, err)
	}
	winner := *auction.HighestBid

	creators, err := c.guard.Creators(ctx, ref.Mint)
	if err != nil {
		return Result{}, c.reject(ctx, op, addrs.Auction, err)
	}
	if err := c.guard.CheckFeeAccount(ctx, c.shop.FeeAccount); err != nil {
		return Result{}, c.reject(ctx, op, addrs.Auction, err)
	}

	requests := append([]txbuilder.ATARequest{{Owner: winner.Wallet, Mint: ref.Mint}}, c.paymentATAs(ref.Seller, creators)...)
	prerequisites, err := c.missingATAs(ctx, requests...)
	if err != nil {
		return Result{}, err
	}

	plan, err := c.builder.SettleAndDistribute(txbuilder.SettleParams{
		Settler:  c.sender.Wallet(),
		Mint:     ref.Mint,
		Seller:   ref.Seller,
		Winner:   winner,
		Creators: creators,
	})
	if err != nil {
		return Result{}, err
	}
	return c.submit(ctx, plan, prerequisites...)
}

// AuctionState is an auction snapshot classified at a point in time.
type AuctionState struct {
	Address            solana.PublicKey
	Auction            chain.Auction
	Status             chain.AuctionStatus
	MinimumBid         uint64
	AwaitingSettlement bool
	At                 time.Time
}

// Auction reads and classifies the auction of ref.
func (c *Client) Auction(ctx context.Context, ref AuctionRef) (AuctionState, error) {
	addrs, err := c.builder.DeriveAuction(ref.Mint, ref.Seller, 0)
	if err != nil {
		return AuctionState{}, err
	}
	auction, err := c.guard.Auction(ctx, addrs.Auction)
	if err != nil {
		return AuctionState{}, err
	}
	now := c.now()
	return AuctionState{
		Address:            addrs.Auction,
		Auction:            *auction,
		Status:             market.Classify(*auction, now),
		MinimumBid:         market.MinimumBid(*auction),
		AwaitingSettlement: market.AwaitingSettlement(*auction, now),
		At:                 now,
	}, nil
}

func (c *Client) loadAuction(ctx context.Context, op string, mint, seller solana.PublicKey) (txbuilder.AuctionAddresses, *chain.Auction, error) {
	addrs, err := c.builder.DeriveAuction(mint, seller, 0)
	if err != nil {
		return addrs, nil, err
	}
	auction, err := c.guard.Auction(ctx, addrs.Auction)
	if err != nil {
		return addrs, nil, c.reject(ctx, op, addrs.Auction, err)
	}
	return addrs, auction, nil
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

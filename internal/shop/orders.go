package shop

import (
	"context"
	"fmt"

	"github.com/coldbell/candyshop/internal/failure"
	"github.com/coldbell/candyshop/internal/market"
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/coldbell/candyshop/internal/txbuilder"
	"github.com/gagliardetto/solana-go"
)

// Order names a listing by the fields its trade state is derived from.
// A zero TokenAccount means the owner's ATA, a zero Amount means 1.
type Order struct {
	TokenAccount solana.PublicKey
	Mint         solana.PublicKey
	Price        uint64
	Amount       uint64
}

func (o Order) amount() uint64 {
	if o.Amount == 0 {
		return 1
	}
	return o.Amount
}

// Sell lists an NFT held by the wallet. Listing the same (price, amount)
// twice fails with failure.ErrTradeStateExists.
func (c *Client) Sell(ctx context.Context, order Order) (Result, error) {
	plan, err := c.prepareSell(ctx, order, false)
	if err != nil {
		return Result{}, err
	}
	return c.submit(ctx, plan)
}

// prepareSell guards and builds a listing. metadataChecked skips the
// metadata read when a batch already fetched it.
func (c *Client) prepareSell(ctx context.Context, order Order, metadataChecked bool) (txbuilder.Plan, error) {
	const op = "sell"
	wallet := c.sender.Wallet()
	tokenAccount, err := c.ownedTokenAccount(order.TokenAccount, order.Mint)
	if err != nil {
		return txbuilder.Plan{}, err
	}
	amount := order.amount()

	addrs, err := c.builder.DeriveSellOrder(wallet, tokenAccount, order.Mint, order.Price, amount)
	if err != nil {
		return txbuilder.Plan{}, err
	}
	if !metadataChecked {
		if _, err := c.guard.Metadata(ctx, order.Mint); err != nil {
			return txbuilder.Plan{}, c.reject(ctx, op, addrs.SellerTradeState, err)
		}
	}
	if err := c.guard.CheckHolding(ctx, tokenAccount, amount); err != nil {
		return txbuilder.Plan{}, c.reject(ctx, op, addrs.SellerTradeState, err)
	}
	if err := c.guard.CheckTradeStateAbsent(ctx, addrs.SellerTradeState); err != nil {
		return txbuilder.Plan{}, c.reject(ctx, op, addrs.SellerTradeState, err)
	}

	return c.builder.Sell(txbuilder.SellParams{
		Wallet:       wallet,
		TokenAccount: tokenAccount,
		Mint:         order.Mint,
		Price:        order.Price,
		Amount:       amount,
	})
}

// Cancel withdraws the wallet's listing. The trade state must exist with
// the derived bump, otherwise nothing is sent.
func (c *Client) Cancel(ctx context.Context, order Order) (Result, error) {
	plan, err := c.prepareCancel(ctx, order)
	if err != nil {
		return Result{}, err
	}
	return c.submit(ctx, plan)
}

func (c *Client) prepareCancel(ctx context.Context, order Order) (txbuilder.Plan, error) {
	const op = "cancel"
	wallet := c.sender.Wallet()
	tokenAccount, err := c.ownedTokenAccount(order.TokenAccount, order.Mint)
	if err != nil {
		return txbuilder.Plan{}, err
	}
	amount := order.amount()

	addrs, err := c.builder.DeriveSellOrder(wallet, tokenAccount, order.Mint, order.Price, amount)
	if err != nil {
		return txbuilder.Plan{}, err
	}
	if err := c.guard.CheckTradeStatePresent(ctx, addrs.SellerTradeState, addrs.SellerTradeBump); err != nil {
		return txbuilder.Plan{}, c.reject(ctx, op, addrs.SellerTradeState, err)
	}

	return c.builder.Cancel(txbuilder.CancelParams{
		Wallet:       wallet,
		TokenAccount: tokenAccount,
		Mint:         order.Mint,
		Price:        order.Price,
		Amount:       amount,
	})
}

// Purchase names a listing of Seller. A zero TokenAccount means the
// seller's ATA.
type Purchase struct {
	Seller       solana.PublicKey
	TokenAccount solana.PublicKey
	Mint         solana.PublicKey
	Price        uint64
	Amount       uint64
}

// Buy buys a listing and executes the sale. Missing receiving accounts are
// created by a prerequisite transaction.
func (c *Client) Buy(ctx context.Context, p Purchase) (Result, error) {
	const op = "buy"
	buyer := c.sender.Wallet()
	amount := Order{Amount: p.Amount}.amount()
	tokenAccount := p.TokenAccount
	if tokenAccount.IsZero() {
		ata, _, err := pda.DeriveATA(p.Seller, p.Mint)
		if err != nil {
			return Result{}, fmt.Errorf("derive seller token account: %w", err)
		}
		tokenAccount = ata
	}
	if buyer.Equals(p.Seller) {
		return Result{}, fmt.Errorf("%w: buyer %s is the seller", failure.ErrNFTUnavailable, buyer)
	}

	addrs, err := c.builder.DeriveBuyOrder(buyer, p.Seller, tokenAccount, p.Mint, p.Price, amount)
	if err != nil {
		return Result{}, err
	}
	fingerprint := addrs.SellerTradeState

	creators, err := c.guard.Creators(ctx, p.Mint)
	if err != nil {
		return Result{}, c.reject(ctx, op, fingerprint, err)
	}
	checks := []func() error{
		func() error { return c.guard.CheckFeeAccount(ctx, c.shop.FeeAccount) },
		func() error {
			return c.guard.CheckCustody(ctx, market.Listing{
				TokenAccount:    tokenAccount,
				TradeState:      addrs.SellerTradeState,
				TradeStateBump:  addrs.SellerTradeBump,
				ProgramAsSigner: c.shop.ProgramAsSigner,
				Amount:          amount,
			})
		},
		func() error { return c.guard.CheckSellerReceipt(ctx, addrs.SellerPaymentReceipt, c.shop.TreasuryMint) },
		func() error { return c.guard.CheckBuyerReceipt(ctx, addrs.BuyerReceipt) },
		func() error { return c.guard.CheckBalance(ctx, buyer, c.shop.TreasuryMint, p.Price) },
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return Result{}, c.reject(ctx, op, fingerprint, err)
		}
	}

	requests := append([]txbuilder.ATARequest{{Owner: buyer, Mint: p.Mint}}, c.paymentATAs(p.Seller, creators)...)
	prerequisites, err := c.missingATAs(ctx, requests...)
	if err != nil {
		return Result{}, err
	}

	plan, err := c.builder.Buy(txbuilder.BuyParams{
		Buyer:        buyer,
		Seller:       p.Seller,
		TokenAccount: tokenAccount,
		Mint:         p.Mint,
		Price:        p.Price,
		Amount:       amount,
		Creators:     creators,
	})
	if err != nil {
		return Result{}, err
	}
	return c.submit(ctx, plan, prerequisites...)
}

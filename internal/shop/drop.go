package shop

import (
	"context"
	"fmt"
	"time"

	"github.com/coldbell/candyshop/internal/failure"
	"github.com/coldbell/candyshop/internal/market"
	"github.com/coldbell/candyshop/internal/txbuilder"
	"github.com/gagliardetto/solana-go"
)

// EditionDrop opens sales of prints of a master edition held by the wallet.
type EditionDrop struct {
	MasterMint         solana.PublicKey
	MasterTokenAccount solana.PublicKey
	Price              uint64
	StartTime          time.Time
	SalesPeriod        time.Duration
	// WhitelistTime lets whitelisted wallets mint before StartTime.
	WhitelistTime *time.Time
}

// CommitMasterNFT moves a master edition into the shop vault and opens an
// edition drop for it.
func (c *Client) CommitMasterNFT(ctx context.Context, p EditionDrop) (Result, error) {
	const op = "commit_nft"
	seller := c.sender.Wallet()
	tokenAccount, err := c.ownedTokenAccount(p.MasterTokenAccount, p.MasterMint)
	if err != nil {
		return Result{}, err
	}
	addrs, err := c.builder.DeriveDrop(p.MasterMint)
	if err != nil {
		return Result{}, err
	}

	if p.SalesPeriod <= 0 {
		return Result{}, fmt.Errorf("sales period must be positive, got %s", p.SalesPeriod)
	}
	var whitelist *int64
	if p.WhitelistTime != nil {
		if p.WhitelistTime.After(p.StartTime) {
			return Result{}, fmt.Errorf("whitelist time %s is after start time %s", p.WhitelistTime.UTC().Format(time.RFC3339), p.StartTime.UTC().Format(time.RFC3339))
		}
		unix := p.WhitelistTime.Unix()
		whitelist = &unix
	}

	if _, err := c.guard.Metadata(ctx, p.MasterMint); err != nil {
		return Result{}, c.reject(ctx, op, addrs.DropOrder, err)
	}
	edition, err := c.guard.MasterEdition(ctx, p.MasterMint)
	if err != nil {
		return Result{}, c.reject(ctx, op, addrs.DropOrder, err)
	}
	if remaining, limited := edition.Remaining(); limited && remaining == 0 {
		return Result{}, c.reject(ctx, op, addrs.DropOrder,
			fmt.Errorf("%w: master edition %s has no prints left", failure.ErrEditionSoldOut, p.MasterMint))
	}
	if err := c.guard.CheckHolding(ctx, tokenAccount, 1); err != nil {
		return Result{}, c.reject(ctx, op, addrs.DropOrder, err)
	}
	if err := c.guard.CheckTradeStateAbsent(ctx, addrs.DropOrder); err != nil {
		return Result{}, c.reject(ctx, op, addrs.DropOrder, err)
	}

	plan, err := c.builder.CommitNFT(txbuilder.CommitNFTParams{
		Seller:             seller,
		MasterMint:         p.MasterMint,
		MasterTokenAccount: tokenAccount,
		Price:              p.Price,
		StartTime:          p.StartTime.Unix(),
		SalesPeriod:        seconds(p.SalesPeriod),
		WhitelistTime:      whitelist,
	})
	if err != nil {
		return Result{}, err
	}
	return c.submit(ctx, plan)
}

// Print is a minted edition.
type Print struct {
	Result
	Mint    solana.PublicKey
	Edition uint64
}

// MintPrint buys the next print of an edition drop into a fresh mint owned
// by the wallet.
func (c *Client) MintPrint(ctx context.Context, masterMint solana.PublicKey, whitelisted bool) (Print, error) {
	const op = "mint_print"
	buyer := c.sender.Wallet()
	addrs, err := c.builder.DeriveDrop(masterMint)
	if err != nil {
		return Print{}, err
	}
	drop, err := c.guard.DropOrder(ctx, addrs.DropOrder)
	if err != nil {
		return Print{}, c.reject(ctx, op, addrs.DropOrder, err)
	}
	edition, err := c.guard.MasterEdition(ctx, masterMint)
	if err != nil {
		return Print{}, c.reject(ctx, op, addrs.DropOrder, err)
	}
	if err := market.ValidateMintPrint(*drop, *edition, whitelisted, c.now()); err != nil {
		return Print{}, c.reject(ctx, op, addrs.DropOrder, err)
	}
	if err := c.guard.CheckBalance(ctx, buyer, c.shop.TreasuryMint, drop.Price); err != nil {
		return Print{}, c.reject(ctx, op, addrs.DropOrder, err)
	}

	newMint, err := solana.NewRandomPrivateKey()
	if err != nil {
		return Print{}, fmt.Errorf("generate print mint: %w", err)
	}
	next := edition.Supply + 1
	plan, err := c.builder.MintPrint(txbuilder.MintPrintParams{
		Buyer:      buyer,
		Seller:     drop.Seller,
		MasterMint: masterMint,
		Edition:    next,
		NewMint:    newMint,
	})
	if err != nil {
		return Print{}, err
	}
	result, err := c.submit(ctx, plan)
	if err != nil {
		return Print{}, err
	}
	return Print{Result: result, Mint: newMint.PublicKey(), Edition: next}, nil
}

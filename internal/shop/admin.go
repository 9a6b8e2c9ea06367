package shop

import (
	"context"
	"fmt"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/failure"
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/coldbell/candyshop/internal/txbuilder"
)

const maxSellerFeeBasisPoints = 10_000

// ShopSettings are the auction-house parameters fixed at shop creation.
type ShopSettings struct {
	SellerFeeBasisPoints uint16
	RequiresSignOff      bool
	CanChangeSalePrice   bool
}

// CreateShop creates the shop and its auction house. Only the configured
// creator may sign.
func (c *Client) CreateShop(ctx context.Context, settings ShopSettings) (Result, error) {
	if err := c.requireCreator(); err != nil {
		return Result{}, err
	}
	if settings.SellerFeeBasisPoints > maxSellerFeeBasisPoints {
		return Result{}, fmt.Errorf("seller fee %d bps exceeds %d", settings.SellerFeeBasisPoints, maxSellerFeeBasisPoints)
	}
	exists, err := c.guard.AccountExists(ctx, c.shop.Shop)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{}, fmt.Errorf("shop %s already exists", c.shop.Shop)
	}

	plan, err := c.builder.CreateShop(txbuilder.CreateShopParams{
		SellerFeeBasisPoints: settings.SellerFeeBasisPoints,
		RequiresSignOff:      settings.RequiresSignOff,
		CanChangeSalePrice:   settings.CanChangeSalePrice,
	})
	if err != nil {
		return Result{}, err
	}
	return c.submit(ctx, plan)
}

// WithdrawFromTreasury moves amount of collected fees from the treasury to
// the auction house's treasury withdrawal destination.
func (c *Client) WithdrawFromTreasury(ctx context.Context, amount uint64) (Result, error) {
	const op = "candy_shop_withdraw_from_treasury"
	if err := c.requireCreator(); err != nil {
		return Result{}, err
	}

	account, err := c.reader.Account(ctx, c.shop.AuctionHouse)
	if err != nil {
		return Result{}, fmt.Errorf("read auction house %s: %w", c.shop.AuctionHouse, err)
	}
	if account == nil {
		return Result{}, fmt.Errorf("auction house %s not found", c.shop.AuctionHouse)
	}
	house, err := chain.DecodeAuctionHouse(account.Data)
	if err != nil {
		return Result{}, err
	}

	balance, err := c.treasuryBalance(ctx)
	if err != nil {
		return Result{}, err
	}
	if balance < amount {
		return Result{}, c.reject(ctx, op, c.shop.Treasury,
			fmt.Errorf("%w: treasury %s holds %d, need %d", failure.ErrInsufficientBalance, c.shop.Treasury, balance, amount))
	}

	plan, err := c.builder.WithdrawFromTreasury(house.TreasuryWithdrawalDestination, amount)
	if err != nil {
		return Result{}, err
	}
	return c.submit(ctx, plan)
}

// treasuryBalance reads the treasury in treasury-mint units: lamports for a
// native treasury, the token amount of the treasury token account otherwise.
func (c *Client) treasuryBalance(ctx context.Context) (uint64, error) {
	if pda.IsNative(c.shop.TreasuryMint) {
		return chain.Lamports(ctx, c.reader, c.shop.Treasury)
	}
	account, err := c.reader.Account(ctx, c.shop.Treasury)
	if err != nil {
		return 0, fmt.Errorf("read treasury %s: %w", c.shop.Treasury, err)
	}
	if account == nil {
		return 0, nil
	}
	decoded, err := chain.DecodeTokenAccount(account.Data)
	if err != nil {
		return 0, err
	}
	return decoded.Amount, nil
}

func (c *Client) requireCreator() error {
	if wallet := c.sender.Wallet(); !wallet.Equals(c.cfg.Creator) {
		return fmt.Errorf("wallet %s is not the shop creator %s", wallet, c.cfg.Creator)
	}
	return nil
}

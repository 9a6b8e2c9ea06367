package main

import (
	"context"
	"fmt"

	"github.com/coldbell/candyshop/internal/shop"
	"github.com/spf13/cobra"
)

type orderFlags struct {
	mint         string
	price        string
	tokenAccount string
	amount       uint64
}

func (f *orderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mint, "mint", "", "NFT mint")
	cmd.Flags().StringVar(&f.price, "price", "", "price in treasury-mint units, e.g. 1.5")
	cmd.Flags().StringVar(&f.tokenAccount, "token-account", "", "token account holding the NFT (default: owner's ATA)")
	cmd.Flags().Uint64Var(&f.amount, "amount", 1, "token amount")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("price")
}

func (f *orderFlags) order(rt *runtime) (shop.Order, error) {
	mint, err := parseKey("mint", f.mint)
	if err != nil {
		return shop.Order{}, err
	}
	tokenAccount, err := parseOptionalKey("token-account", f.tokenAccount)
	if err != nil {
		return shop.Order{}, err
	}
	price, err := rt.price(f.price)
	if err != nil {
		return shop.Order{}, err
	}
	return shop.Order{TokenAccount: tokenAccount, Mint: mint, Price: price, Amount: f.amount}, nil
}

func newSellCmd(opts *globalOpts) *cobra.Command {
	var flags orderFlags
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "List an NFT held by the wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(cmd, opts, &flags, (*shop.Client).Sell)
		},
	}
	flags.register(cmd)
	return cmd
}

func newCancelCmd(opts *globalOpts) *cobra.Command {
	var flags orderFlags
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a listing of the wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(cmd, opts, &flags, (*shop.Client).Cancel)
		},
	}
	flags.register(cmd)
	return cmd
}

func runOrder(
	cmd *cobra.Command,
	opts *globalOpts,
	flags *orderFlags,
	run func(*shop.Client, context.Context, shop.Order) (shop.Result, error),
) error {
	rt, err := opts.open(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	order, err := flags.order(rt)
	if err != nil {
		return err
	}
	result, err := run(rt.shop, cmd.Context(), order)
	if err != nil {
		return err
	}
	rt.printResult(cmd, result)
	return nil
}

func newBuyCmd(opts *globalOpts) *cobra.Command {
	var (
		flags  orderFlags
		seller string
	)
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy a listed NFT",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			sellerKey, err := parseKey("seller", seller)
			if err != nil {
				return err
			}
			order, err := flags.order(rt)
			if err != nil {
				return err
			}
			result, err := rt.shop.Buy(cmd.Context(), shop.Purchase{
				Seller:       sellerKey,
				TokenAccount: order.TokenAccount,
				Mint:         order.Mint,
				Price:        order.Price,
				Amount:       order.Amount,
			})
			if err != nil {
				return err
			}
			rt.printResult(cmd, result)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&seller, "seller", "", "seller wallet")
	_ = cmd.MarkFlagRequired("seller")
	return cmd
}

func newSellManyCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "sellMany MINT:PRICE [MINT:PRICE...]",
		Short: "List several NFTs held by the wallet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, args, (*shop.Client).SellMany)
		},
	}
}

func newCancelManyCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "cancelMany MINT:PRICE [MINT:PRICE...]",
		Short: "Cancel several listings of the wallet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, args, (*shop.Client).CancelMany)
		},
	}
}

// runBatch prints one line per order and fails when any order failed.
func runBatch(
	cmd *cobra.Command,
	opts *globalOpts,
	args []string,
	run func(*shop.Client, context.Context, []shop.Order) ([]shop.ItemResult, error),
) error {
	rt, err := opts.open(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	orders := make([]shop.Order, 0, len(args))
	for _, arg := range args {
		mint, rawPrice, err := parseOrderArg(arg)
		if err != nil {
			return err
		}
		price, err := rt.price(rawPrice)
		if err != nil {
			return err
		}
		orders = append(orders, shop.Order{Mint: mint, Price: price})
	}

	results, err := run(rt.shop, cmd.Context(), orders)
	if err != nil {
		return err
	}
	failed := 0
	out := cmd.OutOrStdout()
	for _, item := range results {
		if item.Err != nil {
			failed++
			fmt.Fprintf(out, "%s %s\n", item.Order.Mint, describeError(item.Err))
			continue
		}
		fmt.Fprintf(out, "%s %s\n", item.Order.Mint, item.Result.Signature())
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errBatchFailed, failed, len(results))
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/coldbell/candyshop/internal/market"
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/coldbell/candyshop/internal/shop"
	"github.com/coldbell/candyshop/internal/watch"
	"github.com/spf13/cobra"
)

func newCreateAuctionCmd(opts *globalOpts) *cobra.Command {
	var (
		mint               string
		tokenAccount       string
		startingBid        string
		tickSize           string
		buyNow             string
		start              string
		biddingPeriod      time.Duration
		extensionPeriod    time.Duration
		extensionIncrement time.Duration
	)
	cmd := &cobra.Command{
		Use:   "createAuction",
		Short: "Escrow an NFT and open an auction for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			p := shop.NewAuction{
				BiddingPeriod:      biddingPeriod,
				ExtensionPeriod:    extensionPeriod,
				ExtensionIncrement: extensionIncrement,
			}
			if p.Mint, err = parseKey("mint", mint); err != nil {
				return err
			}
			if p.TokenAccount, err = parseOptionalKey("token-account", tokenAccount); err != nil {
				return err
			}
			if p.StartingBid, err = rt.price(startingBid); err != nil {
				return err
			}
			if p.TickSize, err = rt.price(tickSize); err != nil {
				return err
			}
			if buyNow != "" {
				price, err := rt.price(buyNow)
				if err != nil {
					return err
				}
				p.BuyNowPrice = &price
			}
			if p.StartTime, err = parseTime(start, time.Now()); err != nil {
				return err
			}

			result, err := rt.shop.CreateAuction(cmd.Context(), p)
			if err != nil {
				return err
			}
			rt.printResult(cmd, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "NFT mint")
	cmd.Flags().StringVar(&tokenAccount, "token-account", "", "token account holding the NFT (default: wallet ATA)")
	cmd.Flags().StringVar(&startingBid, "starting-bid", "", "starting bid in treasury-mint units")
	cmd.Flags().StringVar(&tickSize, "tick-size", "", "minimum raise in treasury-mint units")
	cmd.Flags().StringVar(&buyNow, "buy-now", "", "optional buy-now price in treasury-mint units")
	cmd.Flags().StringVar(&start, "start", "now", "start time: now, RFC 3339 or unix seconds")
	cmd.Flags().DurationVar(&biddingPeriod, "bidding-period", 24*time.Hour, "bidding window length")
	cmd.Flags().DurationVar(&extensionPeriod, "extension-period", 0, "late-bid window that extends the auction")
	cmd.Flags().DurationVar(&extensionIncrement, "extension-increment", 0, "extension added by a late bid")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("starting-bid")
	_ = cmd.MarkFlagRequired("tick-size")
	return cmd
}

func newCancelAuctionCmd(opts *globalOpts) *cobra.Command {
	var mint, tokenAccount string
	cmd := &cobra.Command{
		Use:   "cancelAuction",
		Short: "Cancel an auction of the wallet and return the NFT",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			mintKey, err := parseKey("mint", mint)
			if err != nil {
				return err
			}
			account, err := parseOptionalKey("token-account", tokenAccount)
			if err != nil {
				return err
			}
			result, err := rt.shop.CancelAuction(cmd.Context(), mintKey, account)
			if err != nil {
				return err
			}
			rt.printResult(cmd, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "NFT mint")
	cmd.Flags().StringVar(&tokenAccount, "token-account", "", "token account receiving the NFT (default: wallet ATA)")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

type auctionFlags struct {
	mint   string
	seller string
}

func (f *auctionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mint, "mint", "", "auctioned NFT mint")
	cmd.Flags().StringVar(&f.seller, "seller", "", "auction seller (default: shop creator)")
	_ = cmd.MarkFlagRequired("mint")
}

func (f *auctionFlags) ref(rt *runtime) (shop.AuctionRef, error) {
	mint, err := parseKey("mint", f.mint)
	if err != nil {
		return shop.AuctionRef{}, err
	}
	seller, err := rt.seller(f.seller)
	if err != nil {
		return shop.AuctionRef{}, err
	}
	return shop.AuctionRef{Mint: mint, Seller: seller}, nil
}

func newMakeBidCmd(opts *globalOpts) *cobra.Command {
	var (
		flags auctionFlags
		price string
	)
	cmd := &cobra.Command{
		Use:   "makeBid",
		Short: "Place or raise a bid",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			ref, err := flags.ref(rt)
			if err != nil {
				return err
			}
			amount, err := rt.price(price)
			if err != nil {
				return err
			}
			result, err := rt.shop.Bid(cmd.Context(), ref, amount)
			if err != nil {
				return err
			}
			rt.printResult(cmd, result)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&price, "price", "", "bid in treasury-mint units")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newWithdrawBidCmd(opts *globalOpts) *cobra.Command {
	return newAuctionActionCmd(opts, "withdrawBid", "Withdraw a bid that is not winning", (*shop.Client).WithdrawBid)
}

func newBuyNowCmd(opts *globalOpts) *cobra.Command {
	return newAuctionActionCmd(opts, "buyNow", "Buy the auctioned NFT at its buy-now price", (*shop.Client).BuyNow)
}

func newSettleAndDistributeCmd(opts *globalOpts) *cobra.Command {
	return newAuctionActionCmd(opts, "settleAndDistribute", "Settle a finished auction and pay out", (*shop.Client).SettleAndDistribute)
}

func newAuctionActionCmd(
	opts *globalOpts,
	use, short string,
	run func(*shop.Client, context.Context, shop.AuctionRef) (shop.Result, error),
) *cobra.Command {
	var flags auctionFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			ref, err := flags.ref(rt)
			if err != nil {
				return err
			}
			result, err := run(rt.shop, cmd.Context(), ref)
			if err != nil {
				return err
			}
			rt.printResult(cmd, result)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newAuctionCmd(opts *globalOpts) *cobra.Command {
	var flags auctionFlags
	cmd := &cobra.Command{
		Use:   "auction",
		Short: "Show the current state of an auction",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			ref, err := flags.ref(rt)
			if err != nil {
				return err
			}
			state, err := rt.shop.Auction(cmd.Context(), ref)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			a := state.Auction
			fmt.Fprintf(out, "address:     %s\n", state.Address)
			status := state.Status.String()
			if state.AwaitingSettlement {
				status += " (awaiting settlement)"
			}
			fmt.Fprintf(out, "status:      %s\n", status)
			fmt.Fprintf(out, "window:      %s - %s\n", formatUnix(a.StartTime), formatUnix(a.EndTime()))
			fmt.Fprintf(out, "minimum bid: %s\n", rt.formatPrice(state.MinimumBid))
			if a.BuyNowPrice != nil {
				fmt.Fprintf(out, "buy now:     %s\n", rt.formatPrice(*a.BuyNowPrice))
			}
			if a.HighestBid != nil {
				fmt.Fprintf(out, "highest bid: %s by %s\n", rt.formatPrice(a.HighestBid.Price), a.HighestBid.Wallet)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newWatchAuctionCmd(opts *globalOpts) *cobra.Command {
	var flags auctionFlags
	cmd := &cobra.Command{
		Use:   "watchAuction",
		Short: "Stream auction updates until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			ref, err := flags.ref(rt)
			if err != nil {
				return err
			}
			s := rt.shop.Shop()
			address, _, err := pda.DeriveAuction(s.Shop, ref.Mint, s.ProgramID)
			if err != nil {
				return fmt.Errorf("derive auction: %w", err)
			}

			watcher := watch.New(rt.cfg.WSURL, rt.logger,
				watch.WithCommitment(rt.cfg.Commitment),
				watch.WithReconnectFloor(rt.cfg.WatchReconnectFloor),
			)
			out := cmd.OutOrStdout()
			err = watcher.WatchAuction(cmd.Context(), address, func(u watch.Update) {
				if u.Closed() {
					fmt.Fprintf(out, "slot %d: auction account closed\n", u.Slot)
					return
				}
				line := fmt.Sprintf("slot %d: %s, minimum bid %s", u.Slot, u.Status, rt.formatPrice(market.MinimumBid(*u.Auction)))
				if hb := u.Auction.HighestBid; hb != nil {
					line += fmt.Sprintf(", highest %s by %s", rt.formatPrice(hb.Price), hb.Wallet)
				}
				fmt.Fprintln(out, line)
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func (r *runtime) formatPrice(units uint64) string {
	return market.FromBaseUnits(units, r.cfg.TreasuryDecimals)
}

func formatUnix(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coldbell/candyshop/internal/failure"
	"github.com/spf13/cobra"
)

type globalOpts struct {
	env     string
	keypair string
	creator string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&globalOpts{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd(opts *globalOpts) *cobra.Command {
	root := &cobra.Command{
		Use:           "candyshop",
		Short:         "Trade and auction NFTs through a candy shop",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.env, "env", "", "cluster: mainnet-beta|devnet|testnet|localnet (default from CANDYSHOP_ENV, then devnet)")
	root.PersistentFlags().StringVar(&opts.keypair, "keypair", "", "wallet keypair file (default from CANDYSHOP_KEYPAIR_PATH)")
	root.PersistentFlags().StringVar(&opts.creator, "creator", "", "shop creator pubkey (default from CANDYSHOP_CREATOR)")

	root.AddCommand(
		newSellCmd(opts),
		newCancelCmd(opts),
		newBuyCmd(opts),
		newSellManyCmd(opts),
		newCancelManyCmd(opts),
		newCreateAuctionCmd(opts),
		newCancelAuctionCmd(opts),
		newMakeBidCmd(opts),
		newWithdrawBidCmd(opts),
		newBuyNowCmd(opts),
		newSettleAndDistributeCmd(opts),
		newAuctionCmd(opts),
		newWatchAuctionCmd(opts),
		newCommitEditionDropNftCmd(opts),
		newMintPrintCmd(opts),
		newCreateShopCmd(opts),
		newWithdrawTreasuryCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

// describeError prefixes err with its failure kind when it has one and
// marks network failures that are worth resubmitting.
func describeError(err error) string {
	kind := failure.Kind(err)
	if kind == "" {
		return fmt.Sprintf("error: %v", err)
	}
	if failure.Retryable(err) {
		return fmt.Sprintf("%s (retryable): %v", kind, err)
	}
	return fmt.Sprintf("%s: %v", kind, err)
}

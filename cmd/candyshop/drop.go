package main

import (
	"fmt"
	"time"

	"github.com/coldbell/candyshop/internal/shop"
	"github.com/spf13/cobra"
)

func newCommitEditionDropNftCmd(opts *globalOpts) *cobra.Command {
	var (
		mint         string
		tokenAccount string
		price        string
		start        string
		salesPeriod  time.Duration
		whitelist    string
	)
	cmd := &cobra.Command{
		Use:   "commitEditionDropNft",
		Short: "Move a master edition into the shop vault and open an edition drop",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			now := time.Now()
			p := shop.EditionDrop{SalesPeriod: salesPeriod}
			if p.MasterMint, err = parseKey("mint", mint); err != nil {
				return err
			}
			if p.MasterTokenAccount, err = parseOptionalKey("token-account", tokenAccount); err != nil {
				return err
			}
			if p.Price, err = rt.price(price); err != nil {
				return err
			}
			if p.StartTime, err = parseTime(start, now); err != nil {
				return err
			}
			if whitelist != "" {
				at, err := parseTime(whitelist, now)
				if err != nil {
					return err
				}
				p.WhitelistTime = &at
			}

			result, err := rt.shop.CommitMasterNFT(cmd.Context(), p)
			if err != nil {
				return err
			}
			rt.printResult(cmd, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "master edition mint")
	cmd.Flags().StringVar(&tokenAccount, "token-account", "", "token account holding the master edition (default: wallet ATA)")
	cmd.Flags().StringVar(&price, "price", "", "print price in treasury-mint units")
	cmd.Flags().StringVar(&start, "start", "now", "sales start: now, RFC 3339 or unix seconds")
	cmd.Flags().DurationVar(&salesPeriod, "sales-period", 7*24*time.Hour, "sales window length")
	cmd.Flags().StringVar(&whitelist, "whitelist-time", "", "optional early start for whitelisted wallets")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newMintPrintCmd(opts *globalOpts) *cobra.Command {
	var (
		masterMint  string
		whitelisted bool
	)
	cmd := &cobra.Command{
		Use:   "mintPrint",
		Short: "Mint the next print of an edition drop",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			master, err := parseKey("master-mint", masterMint)
			if err != nil {
				return err
			}
			minted, err := rt.shop.MintPrint(cmd.Context(), master, whitelisted)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nedition %d minted to %s\n", minted.Signature(), minted.Edition, minted.Mint)
			return nil
		},
	}
	cmd.Flags().StringVar(&masterMint, "master-mint", "", "master edition mint of the drop")
	cmd.Flags().BoolVar(&whitelisted, "whitelisted", false, "the wallet holds a whitelist token")
	_ = cmd.MarkFlagRequired("master-mint")
	return cmd
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/coldbell/candyshop/internal/journal"
	"github.com/coldbell/candyshop/internal/shop"
	"github.com/spf13/cobra"
)

func newCreateShopCmd(opts *globalOpts) *cobra.Command {
	var settings shop.ShopSettings
	cmd := &cobra.Command{
		Use:   "createShop",
		Short: "Create the shop of the configured creator",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.shop.CreateShop(cmd.Context(), settings)
			if err != nil {
				return err
			}
			rt.printResult(cmd, result)
			return nil
		},
	}
	cmd.Flags().Uint16Var(&settings.SellerFeeBasisPoints, "fee-bps", 100, "shop fee in basis points")
	cmd.Flags().BoolVar(&settings.RequiresSignOff, "requires-sign-off", false, "sales need the shop authority signature")
	cmd.Flags().BoolVar(&settings.CanChangeSalePrice, "can-change-sale-price", false, "the authority may change sale prices")
	return cmd
}

func newWithdrawTreasuryCmd(opts *globalOpts) *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:   "withdrawTreasury",
		Short: "Withdraw collected fees from the shop treasury",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			units, err := rt.price(amount)
			if err != nil {
				return err
			}
			result, err := rt.shop.WithdrawFromTreasury(cmd.Context(), units)
			if err != nil {
				return err
			}
			rt.printResult(cmd, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount in treasury-mint units")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newHistoryCmd(opts *globalOpts) *cobra.Command {
	var (
		limit   int
		address string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled operations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.openJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			var entries []journal.Entry
			if address != "" {
				key, err := parseKey("address", address)
				if err != nil {
					return err
				}
				entry, ok, err := rt.journal.LastForAddress(cmd.Context(), key)
				if err != nil {
					return err
				}
				if ok {
					entries = append(entries, entry)
				}
			} else if entries, err = rt.journal.Recent(cmd.Context(), limit); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintln(out, formatEntry(e))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	cmd.Flags().StringVar(&address, "address", "", "only the last entry for this trade state, auction, bid or drop order")
	return cmd
}

func formatEntry(e journal.Entry) string {
	fields := []string{
		e.CreatedAt.UTC().Format(time.RFC3339),
		string(e.Status),
		e.Operation,
		e.Address.String(),
	}
	if n := len(e.Signatures); n > 0 {
		fields = append(fields, e.Signatures[n-1].String())
	}
	if e.Error != "" {
		kind := e.ErrorKind
		if kind == "" {
			kind = "error"
		}
		fields = append(fields, kind+": "+e.Error)
	}
	return strings.Join(fields, "  ")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/config"
	"github.com/coldbell/candyshop/internal/journal"
	"github.com/coldbell/candyshop/internal/logging"
	"github.com/coldbell/candyshop/internal/market"
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/coldbell/candyshop/internal/shop"
	"github.com/coldbell/candyshop/internal/submit"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
)

// runtime is the wiring shared by every subcommand.
type runtime struct {
	cfg     config.ShopConfig
	logger  *slog.Logger
	journal *journal.Store
	shop    *shop.Client

	closeLogger func() error
}

func (r *runtime) Close() {
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			r.logger.Warn("failed to close journal", "err", err)
		}
	}
	if r.closeLogger != nil {
		_ = r.closeLogger()
	}
}

// loadConfig resolves configuration and applies the persistent flags.
func (o *globalOpts) loadConfig() (config.ShopConfig, error) {
	cfg, err := config.LoadShopConfig(o.env)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if o.keypair != "" {
		cfg.KeypairPath = o.keypair
	}
	if o.creator != "" {
		if cfg.Creator, err = parseKey("creator", o.creator); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// openJournal opens only the journal, for commands that never touch the
// chain.
func (o *globalOpts) openJournal(ctx context.Context) (*runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, closeLogger, err := logging.New("candyshop", cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: logger, closeLogger: closeLogger}

	if cfg.JournalDriver == journal.DriverSQLite && cfg.JournalDSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.JournalDSN), 0o755); err != nil {
			rt.Close()
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	if rt.journal, err = journal.Open(ctx, cfg.JournalDriver, cfg.JournalDSN); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// open wires the full client: RPC reader, signer, submitter, journal and
// shop.
func (o *globalOpts) open(ctx context.Context) (*runtime, error) {
	rt, err := o.openJournal(ctx)
	if err != nil {
		return nil, err
	}
	cfg := rt.cfg
	if source, sourceErr := config.CurrentConfigSource(); sourceErr == nil {
		rt.logger.Debug("configuration loaded", "phase", source.Phase, "path", source.Path, "loaded", source.Loaded, "cluster", cfg.Cluster)
	}

	signer, err := submit.LoadKeypair(cfg.KeypairPath)
	if err != nil {
		rt.Close()
		return nil, err
	}
	client := rpc.New(cfg.RPCURL)
	sender := submit.New(client, signer, rt.logger, submit.Options{
		Commitment:    cfg.Commitment,
		SkipPreflight: cfg.SkipPreflight,
		MaxRetries:    cfg.MaxRetries,
		Timeout:       cfg.TxTimeout,
	})

	rt.shop, err = shop.New(shop.Config{
		ProgramID:        cfg.ProgramID,
		Creator:          cfg.Creator,
		TreasuryMint:     cfg.TreasuryMint,
		CancelPolicy:     market.CancelPolicy{AllowBidlessCancelInWindow: cfg.AllowBidlessCancel},
		BatchSize:        cfg.BatchSize,
		BatchDelay:       cfg.BatchDelay,
		ComputeUnitLimit: cfg.ComputeUnitLimit,
		ComputeUnitPrice: cfg.ComputeUnitPriceMicroLamports,
	}, chain.NewRPCReader(client, cfg.Commitment), sender,
		shop.WithJournal(rt.journal),
		shop.WithLogger(rt.logger),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.logger.Debug("shop client ready", "shop", rt.shop.Shop().Shop, "wallet", rt.shop.Wallet(), "rpc", cfg.RPCURL)
	return rt, nil
}

// price converts a UI amount in treasury-mint units into base units.
func (r *runtime) price(raw string) (uint64, error) {
	return market.ToBaseUnits(raw, r.cfg.TreasuryDecimals)
}

func (r *runtime) printResult(cmd *cobra.Command, result shop.Result) {
	fmt.Fprintln(cmd.OutOrStdout(), result.Signature())
}

func parseKey(name, raw string) (solana.PublicKey, error) {
	key, err := pda.ParseBase58(strings.TrimSpace(raw))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%s: %w", name, err)
	}
	return key, nil
}

// parseOptionalKey treats an empty value as the zero key.
func parseOptionalKey(name, raw string) (solana.PublicKey, error) {
	if strings.TrimSpace(raw) == "" {
		return solana.PublicKey{}, nil
	}
	return parseKey(name, raw)
}

// parseTime accepts "now", RFC 3339 or unix seconds.
func parseTime(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "now") {
		return now, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (expected now, RFC 3339 or unix seconds)", raw)
	}
	return t, nil
}

// parseOrderArg splits a batch argument of the form MINT:PRICE.
func parseOrderArg(raw string) (solana.PublicKey, string, error) {
	mintRaw, price, ok := strings.Cut(raw, ":")
	if !ok || strings.TrimSpace(price) == "" {
		return solana.PublicKey{}, "", fmt.Errorf("invalid order %q (expected MINT:PRICE)", raw)
	}
	mint, err := parseKey("mint", mintRaw)
	if err != nil {
		return solana.PublicKey{}, "", err
	}
	return mint, strings.TrimSpace(price), nil
}

// seller defaults an empty seller flag to the shop creator.
func (r *runtime) seller(raw string) (solana.PublicKey, error) {
	if strings.TrimSpace(raw) == "" {
		return r.cfg.Creator, nil
	}
	return parseKey("seller", raw)
}

var errBatchFailed = errors.New("some orders failed")

package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/failure"
	"github.com/coldbell/candyshop/internal/journal"
	"github.com/coldbell/candyshop/internal/market"
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/coldbell/candyshop/internal/txbuilder"
	"github.com/gagliardetto/solana-go"
)

// Config identifies one shop instance and tunes how the client talks to it.
type Config struct {
	ProgramID    solana.PublicKey
	Creator      solana.PublicKey
	TreasuryMint solana.PublicKey
	CancelPolicy market.CancelPolicy

	BatchSize        int
	BatchDelay       time.Duration
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
}

// Sender submits plans on behalf of one wallet.
type Sender interface {
	Wallet() solana.PublicKey
	Execute(ctx context.Context, plan txbuilder.Plan) ([]solana.Signature, error)
}

// Journal records the outcome of every operation.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) (journal.Entry, error)
}

type Option func(*Client)

func WithJournal(j Journal) Option {
	return func(c *Client) { c.journal = j }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client runs shop operations: derive addresses, check preconditions
// against chain state, build the transactions and submit them in order.
// Precondition failures are returned before anything is sent.
type Client struct {
	cfg     Config
	shop    pda.ShopAddresses
	reader  chain.Reader
	guard   *market.Guard
	builder *txbuilder.Builder
	batcher *chain.MetadataBatcher
	sender  Sender
	journal Journal
	now     func() time.Time
	logger  *slog.Logger
}

func New(cfg Config, reader chain.Reader, sender Sender, opts ...Option) (*Client, error) {
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = pda.CandyShopProgramID
	}
	if cfg.TreasuryMint.IsZero() {
		cfg.TreasuryMint = pda.WrappedSOLMint
	}
	if cfg.Creator.IsZero() {
		return nil, fmt.Errorf("%w: shop creator is required", failure.ErrInvalidKey)
	}
	shop, err := pda.DeriveShopAddresses(cfg.Creator, cfg.TreasuryMint, cfg.ProgramID)
	if err != nil {
		return nil, err
	}

	var builderOpts []txbuilder.Option
	if cfg.ComputeUnitLimit > 0 {
		builderOpts = append(builderOpts, txbuilder.WithComputeUnitLimit(cfg.ComputeUnitLimit))
	}
	if cfg.ComputeUnitPrice > 0 {
		builderOpts = append(builderOpts, txbuilder.WithComputeUnitPrice(cfg.ComputeUnitPrice))
	}

	c := &Client{
		cfg:     cfg,
		shop:    shop,
		reader:  reader,
		guard:   market.NewGuard(reader),
		builder: txbuilder.New(shop, builderOpts...),
		batcher: chain.NewMetadataBatcher(reader, cfg.BatchSize, cfg.BatchDelay),
		sender:  sender,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Shop() pda.ShopAddresses {
	return c.shop
}

func (c *Client) Wallet() solana.PublicKey {
	return c.sender.Wallet()
}

// Result is a completed operation. Address identifies it on chain; the
// last signature is the one that finished the operation.
type Result struct {
	Operation  string
	Address    solana.PublicKey
	Signatures []solana.Signature
}

func (r Result) Signature() solana.Signature {
	if len(r.Signatures) == 0 {
		return solana.Signature{}
	}
	return r.Signatures[len(r.Signatures)-1]
}

// submit sends plan, optionally preceded by prerequisite transactions,
// and journals the outcome.
func (c *Client) submit(ctx context.Context, plan txbuilder.Plan, prerequisites ...txbuilder.Tx) (Result, error) {
	if len(prerequisites) > 0 {
		plan.Txs = append(append([]txbuilder.Tx{}, prerequisites...), plan.Txs...)
	}
	result := Result{Operation: plan.Operation, Address: plan.Fingerprint}

	sigs, err := c.sender.Execute(ctx, plan)
	result.Signatures = sigs
	if err != nil {
		c.record(ctx, result, journal.StatusFailed, err)
		c.logger.Warn("operation failed",
			"operation", plan.Operation,
			"address", plan.Fingerprint,
			"kind", failure.Kind(err),
			"err", err,
		)
		return result, fmt.Errorf("%s %s: %w", plan.Operation, plan.Fingerprint, err)
	}

	c.record(ctx, result, journal.StatusConfirmed, nil)
	c.logger.Info("operation confirmed",
		"operation", plan.Operation,
		"address", plan.Fingerprint,
		"signature", result.Signature(),
		"transactions", len(sigs),
	)
	return result, nil
}

// reject journals a precondition failure and returns it.
func (c *Client) reject(ctx context.Context, operation string, address solana.PublicKey, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	c.record(ctx, Result{Operation: operation, Address: address}, journal.StatusRejected, err)
	c.logger.Debug("operation rejected", "operation", operation, "address", address, "kind", failure.Kind(err), "err", err)
	return err
}

func (c *Client) record(ctx context.Context, result Result, status journal.Status, cause error) {
	if c.journal == nil {
		return
	}
	entry := journal.Entry{
		Operation:  result.Operation,
		Address:    result.Address,
		Wallet:     c.sender.Wallet(),
		Signatures: result.Signatures,
		Status:     status,
		CreatedAt:  c.now(),
	}
	if cause != nil {
		entry.ErrorKind = failure.Kind(cause)
		entry.Error = cause.Error()
	}
	if _, err := c.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		c.logger.Warn("journal write failed", "operation", result.Operation, "err", err)
	}
}

// ownedTokenAccount defaults to the wallet's ATA for mint.
func (c *Client) ownedTokenAccount(tokenAccount, mint solana.PublicKey) (solana.PublicKey, error) {
	if !tokenAccount.IsZero() {
		return tokenAccount, nil
	}
	ata, _, err := pda.DeriveATA(c.sender.Wallet(), mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive token account for %s: %w", mint, err)
	}
	return ata, nil
}

// missingATAs returns the prerequisite transaction creating the requested
// associated token accounts that do not exist yet.
func (c *Client) missingATAs(ctx context.Context, requests ...txbuilder.ATARequest) ([]txbuilder.Tx, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	keys := make([]solana.PublicKey, 0, len(requests))
	for _, req := range requests {
		ata, _, err := pda.DeriveATA(req.Owner, req.Mint)
		if err != nil {
			return nil, fmt.Errorf("derive ata for %s/%s: %w", req.Owner, req.Mint, err)
		}
		keys = append(keys, ata)
	}
	accounts, err := c.reader.Accounts(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read associated token accounts: %w", err)
	}

	seen := make(map[solana.PublicKey]struct{}, len(keys))
	var missing []txbuilder.ATARequest
	for i, account := range accounts {
		if account != nil {
			continue
		}
		if _, dup := seen[keys[i]]; dup {
			continue
		}
		seen[keys[i]] = struct{}{}
		missing = append(missing, requests[i])
	}

	tx, ok, err := c.builder.CreateATAs(c.sender.Wallet(), missing)
	if err != nil || !ok {
		return nil, err
	}
	return []txbuilder.Tx{tx}, nil
}

// paymentATAs lists the treasury-mint ATAs a sale pays into. Native
// treasuries pay wallets directly and need none.
func (c *Client) paymentATAs(seller solana.PublicKey, creators []chain.Creator) []txbuilder.ATARequest {
	if c.shop.IsNative() {
		return nil
	}
	out := make([]txbuilder.ATARequest, 0, len(creators)+1)
	out = append(out, txbuilder.ATARequest{Owner: seller, Mint: c.shop.TreasuryMint})
	for _, creator := range creators {
		out = append(out, txbuilder.ATARequest{Owner: creator.Address, Mint: c.shop.TreasuryMint})
	}
	return out
}

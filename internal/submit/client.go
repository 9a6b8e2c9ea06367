package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coldbell/candyshop/internal/failure"
	"github.com/coldbell/candyshop/internal/txbuilder"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultResendInterval = 500 * time.Millisecond
	DefaultPollInterval   = 2 * time.Second
	// DefaultTimeout is the 30s confirmation window plus a safety buffer.
	DefaultTimeout = 32 * time.Second
)

// RPC is the subset of *rpc.Client used for submission.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

type Options struct {
	Commitment     rpc.CommitmentType
	SkipPreflight  bool
	MaxRetries     *uint
	ResendInterval time.Duration
	PollInterval   time.Duration
	Timeout        time.Duration
}

func (o Options) withDefaults() Options {
	if o.Commitment == "" {
		o.Commitment = rpc.CommitmentConfirmed
	}
	if o.ResendInterval <= 0 {
		o.ResendInterval = DefaultResendInterval
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Client signs, sends and confirms transactions for one wallet.
type Client struct {
	rpc    RPC
	signer Signer
	opts   Options
	logger *slog.Logger
}

func New(client RPC, signer Signer, logger *slog.Logger, opts Options) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{rpc: client, signer: signer, opts: opts.withDefaults(), logger: logger}
}

func (c *Client) Wallet() solana.PublicKey {
	return c.signer.PublicKey()
}

// Execute sends the transactions of plan in order and stops at the first
// failure. It returns the signatures of the confirmed transactions.
func (c *Client) Execute(ctx context.Context, plan txbuilder.Plan) ([]solana.Signature, error) {
	signatures := make([]solana.Signature, 0, len(plan.Txs))
	for _, tx := range plan.Txs {
		sig, err := c.Send(ctx, tx)
		if err != nil {
			return signatures, fmt.Errorf("%s: %w", tx.Label, err)
		}
		signatures = append(signatures, sig)
	}
	return signatures, nil
}

// Send submits tx and waits until it is confirmed. The raw transaction is
// re-sent every ResendInterval while the status is polled every
// PollInterval; after Timeout the call fails with failure.ErrTimeout.
func (c *Client) Send(ctx context.Context, built txbuilder.Tx) (solana.Signature, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	tx, err := c.sign(ctx, built)
	if err != nil {
		return solana.Signature{}, err
	}

	sendOpts := rpc.TransactionOpts{
		SkipPreflight:       c.opts.SkipPreflight,
		PreflightCommitment: c.opts.Commitment,
	}
	if c.opts.MaxRetries != nil {
		retries := *c.opts.MaxRetries
		sendOpts.MaxRetries = &retries
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, sendOpts)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: send %s: %v", failure.ErrTransactionFailed, built.Label, err)
	}
	c.logger.Debug("transaction sent", "label", built.Label, "signature", sig)

	confirmCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(confirmCtx)
	g.Go(func() error {
		c.resend(gctx, tx, sendOpts)
		return nil
	})
	g.Go(func() error {
		defer stop()
		return c.waitForConfirmation(gctx, ctx, sig)
	})
	if err := g.Wait(); err != nil {
		return solana.Signature{}, err
	}

	c.logger.Info("transaction confirmed", "label", built.Label, "signature", sig)
	return sig, nil
}

func (c *Client) sign(ctx context.Context, built txbuilder.Tx) (*solana.Transaction, error) {
	recent, err := c.rpc.GetLatestBlockhash(ctx, c.opts.Commitment)
	if err != nil {
		return nil, fmt.Errorf("%w: get latest blockhash: %v", failure.ErrTransactionFailed, err)
	}

	tx, err := solana.NewTransaction(
		built.Instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(c.signer.PublicKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("build transaction %s: %w", built.Label, err)
	}

	for _, extra := range built.Signers {
		key := extra
		if err := signWith(tx, key.PublicKey(), func(message []byte) (solana.Signature, error) {
			return key.Sign(message)
		}); err != nil {
			return nil, fmt.Errorf("sign transaction %s: %w", built.Label, err)
		}
	}
	if err := c.signer.SignTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("sign transaction %s: %w", built.Label, err)
	}
	return tx, nil
}

// resend fires the signed transaction until ctx ends. Errors are expected
// once the transaction lands and are only logged.
func (c *Client) resend(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) {
	ticker := time.NewTicker(c.opts.ResendInterval)
	defer ticker.Stop()

	opts.SkipPreflight = true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.rpc.SendTransactionWithOpts(ctx, tx, opts); err != nil && ctx.Err() == nil {
				c.logger.Debug("transaction resend failed", "err", err)
			}
		}
	}
}

// waitForConfirmation polls on ctx; deadline is the outer context whose
// expiry means the confirmation window has closed.
func (c *Client) waitForConfirmation(ctx, deadline context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(deadline.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s not confirmed within %s", failure.ErrTimeout, sig, c.opts.Timeout)
			}
			return ctx.Err()
		case <-ticker.C:
			result, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				c.logger.Debug("signature status poll failed", "signature", sig, "err", err)
				continue
			}
			if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
				continue
			}
			status := result.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %s: %v", failure.ErrTransactionFailed, sig, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}

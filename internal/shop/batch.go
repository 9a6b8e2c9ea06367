package shop

import (
	"context"
	"fmt"

	"github.com/coldbell/candyshop/internal/failure"
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/coldbell/candyshop/internal/txbuilder"
	"github.com/gagliardetto/solana-go"
)

// ItemResult is the outcome of one order of a batch.
type ItemResult struct {
	Order  Order
	Result Result
	Err    error
}

// SellMany lists several NFTs. Metadata is fetched up front in rate-limited
// batches; each order is then guarded and submitted on its own, so one
// failing order does not stop the rest. The returned error is reserved for
// failures that abort the whole batch.
func (c *Client) SellMany(ctx context.Context, orders []Order) ([]ItemResult, error) {
	valid, err := c.prefetchMetadata(ctx, orders)
	if err != nil {
		return nil, err
	}
	prepare := func(ctx context.Context, order Order) (txbuilder.Plan, error) {
		return c.prepareSell(ctx, order, true)
	}
	return c.runBatch(ctx, "sell", orders, valid, prepare), nil
}

// CancelMany cancels several listings, following SellMany's rules.
func (c *Client) CancelMany(ctx context.Context, orders []Order) ([]ItemResult, error) {
	valid, err := c.prefetchMetadata(ctx, orders)
	if err != nil {
		return nil, err
	}
	return c.runBatch(ctx, "cancel", orders, valid, c.prepareCancel), nil
}

func (c *Client) runBatch(
	ctx context.Context,
	operation string,
	orders []Order,
	valid []error,
	prepare func(context.Context, Order) (txbuilder.Plan, error),
) []ItemResult {
	out := make([]ItemResult, len(orders))
	for i, order := range orders {
		out[i].Order = order
		if ctx.Err() != nil {
			out[i].Err = ctx.Err()
			continue
		}
		if valid[i] != nil {
			out[i].Err = valid[i]
			continue
		}
		plan, err := prepare(ctx, order)
		if err != nil {
			out[i].Err = err
			continue
		}
		out[i].Result, out[i].Err = c.submit(ctx, plan)
	}

	failed := 0
	for _, item := range out {
		if item.Err != nil {
			failed++
		}
	}
	c.logger.Info("batch finished", "operation", operation, "orders", len(orders), "failed", failed)
	return out
}

// prefetchMetadata returns, per order, failure.ErrInvalidNFTMetadata when
// the mint has no usable metadata and nil otherwise.
func (c *Client) prefetchMetadata(ctx context.Context, orders []Order) ([]error, error) {
	mints := make([]solana.PublicKey, len(orders))
	for i, order := range orders {
		mints[i] = order.Mint
	}
	fetched, err := c.batcher.Fetch(ctx, mints, pda.DeriveMetadata)
	if err != nil {
		return nil, err
	}

	out := make([]error, len(orders))
	for i, nft := range fetched {
		switch {
		case nft.Err != nil:
			out[i] = fmt.Errorf("%w: metadata %s for mint %s: %v", failure.ErrInvalidNFTMetadata, nft.Address, nft.Mint, nft.Err)
		case nft.Metadata == nil:
			out[i] = fmt.Errorf("%w: metadata %s not found for mint %s", failure.ErrInvalidNFTMetadata, nft.Address, nft.Mint)
		case !nft.Metadata.Mint.Equals(nft.Mint):
			out[i] = fmt.Errorf("%w: metadata %s belongs to mint %s", failure.ErrInvalidNFTMetadata, nft.Address, nft.Metadata.Mint)
		}
	}
	return out, nil
}

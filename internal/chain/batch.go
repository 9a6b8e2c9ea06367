package chain

import (
	"context"
	"fmt"
	"time"

	token_metadata "github.com/gagliardetto/metaplex-go/clients/token-metadata"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize  = 20
	DefaultBatchDelay = time.Second
)

// MetadataBatcher fetches NFT metadata in fixed-size batches, waiting at
// least the configured delay between consecutive batches.
type MetadataBatcher struct {
	reader    Reader
	batchSize int
	limiter   *rate.Limiter
}

func NewMetadataBatcher(reader Reader, batchSize int, delay time.Duration) *MetadataBatcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if delay <= 0 {
		delay = DefaultBatchDelay
	}
	return &MetadataBatcher{
		reader:    reader,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
	}
}

// NFTMetadata is the decoded metadata of one mint. Metadata is nil when the
// metadata account does not exist; Err is set when it exists but does not
// decode.
type NFTMetadata struct {
	Mint     solana.PublicKey
	Address  solana.PublicKey
	Metadata *token_metadata.Metadata
	Err      error
}

// Fetch returns metadata for mints in input order. deriveAddress maps a mint
// to its metadata account. Decode failures are reported per item.
func (b *MetadataBatcher) Fetch(
	ctx context.Context,
	mints []solana.PublicKey,
	deriveAddress func(solana.PublicKey) (solana.PublicKey, uint8, error),
) ([]NFTMetadata, error) {
	out := make([]NFTMetadata, 0, len(mints))
	for start := 0; start < len(mints); start += b.batchSize {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for metadata batch: %w", err)
		}

		end := min(start+b.batchSize, len(mints))
		batch := make([]NFTMetadata, 0, end-start)
		keys := make([]solana.PublicKey, 0, end-start)
		for _, mint := range mints[start:end] {
			address, _, err := deriveAddress(mint)
			if err != nil {
				return nil, fmt.Errorf("derive metadata for %s: %w", mint, err)
			}
			batch = append(batch, NFTMetadata{Mint: mint, Address: address})
			keys = append(keys, address)
		}

		accounts, err := b.reader.Accounts(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("fetch metadata batch: %w", err)
		}
		if len(accounts) != len(keys) {
			return nil, fmt.Errorf("fetch metadata batch: got %d accounts for %d keys", len(accounts), len(keys))
		}
		for i, account := range accounts {
			if account == nil {
				continue
			}
			md, err := DecodeMetadata(account.Data)
			if err != nil {
				batch[i].Err = err
				continue
			}
			batch[i].Metadata = md
		}
		out = append(out, batch...)
	}
	return out, nil
}

package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/failure"
	"github.com/coldbell/candyshop/internal/pda"
	token_metadata "github.com/gagliardetto/metaplex-go/clients/token-metadata"
	"github.com/gagliardetto/solana-go"
)

// MinFeeAccountLamports is the rent-exempt minimum the auction-house fee
// account must hold before a sale is attempted.
const MinFeeAccountLamports uint64 = 890_880

// Guard runs read-only precondition checks against chain state. Checks are
// advisory: the on-chain program remains the final arbiter, so a passing
// check can still be followed by an on-chain rejection.
type Guard struct {
	reader chain.Reader
}

func NewGuard(reader chain.Reader) *Guard {
	return &Guard{reader: reader}
}

// CheckBalance verifies wallet can pay required units of treasuryMint:
// wallet lamports for the native mint, the wallet's ATA balance otherwise.
func (g *Guard) CheckBalance(ctx context.Context, wallet, treasuryMint solana.PublicKey, required uint64) error {
	var (
		balance uint64
		source  solana.PublicKey
	)
	if pda.IsNative(treasuryMint) {
		lamports, err := chain.Lamports(ctx, g.reader, wallet)
		if err != nil {
			return fmt.Errorf("read wallet balance: %w", err)
		}
		balance, source = lamports, wallet
	} else {
		ata, _, err := pda.DeriveATA(wallet, treasuryMint)
		if err != nil {
			return fmt.Errorf("derive payment ata: %w", err)
		}
		account, err := g.tokenAccount(ctx, ata)
		if err != nil {
			return err
		}
		if account != nil {
			balance = account.Amount
		}
		source = ata
	}
	if balance < required {
		return fmt.Errorf("%w: %s holds %d, need %d", failure.ErrInsufficientBalance, source, balance, required)
	}
	return nil
}

// CheckTradeStateAbsent fails when an order already exists at tradeState.
func (g *Guard) CheckTradeStateAbsent(ctx context.Context, tradeState solana.PublicKey) error {
	account, err := g.reader.Account(ctx, tradeState)
	if err != nil {
		return fmt.Errorf("read trade state %s: %w", tradeState, err)
	}
	if account != nil {
		return fmt.Errorf("%w: %s", failure.ErrTradeStateExists, tradeState)
	}
	return nil
}

// CheckTradeStatePresent fails unless tradeState exists and stores bump.
func (g *Guard) CheckTradeStatePresent(ctx context.Context, tradeState solana.PublicKey, bump uint8) error {
	account, err := g.reader.Account(ctx, tradeState)
	if err != nil {
		return fmt.Errorf("read trade state %s: %w", tradeState, err)
	}
	stored, ok := chain.TradeStateBump(account)
	if !ok {
		return fmt.Errorf("%w: trade state %s not found", failure.ErrNFTUnavailable, tradeState)
	}
	if stored != bump {
		return fmt.Errorf("%w: trade state %s bump %d, derived %d", failure.ErrNFTUnavailable, tradeState, stored, bump)
	}
	return nil
}

// CheckHolding verifies the seller's token account holds at least amount.
func (g *Guard) CheckHolding(ctx context.Context, tokenAccount solana.PublicKey, amount uint64) error {
	account, err := g.tokenAccount(ctx, tokenAccount)
	if err != nil {
		return err
	}
	if account == nil || account.Amount < amount {
		return fmt.Errorf("%w: token account %s does not hold %d", failure.ErrNFTUnavailable, tokenAccount, amount)
	}
	return nil
}

// Listing identifies an open sell order.
type Listing struct {
	TokenAccount    solana.PublicKey
	TradeState      solana.PublicKey
	TradeStateBump  uint8
	ProgramAsSigner solana.PublicKey
	Amount          uint64
}

// CheckCustody verifies a listed NFT is still escrowed under the listing:
// delegated to the program-as-signer with enough balance, and the trade
// state still carries the derived bump.
func (g *Guard) CheckCustody(ctx context.Context, listing Listing) error {
	account, err := g.tokenAccount(ctx, listing.TokenAccount)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: token account %s not found", failure.ErrNFTUnavailable, listing.TokenAccount)
	}
	if account.Delegate == nil || !account.Delegate.Equals(listing.ProgramAsSigner) {
		return fmt.Errorf("%w: token account %s is not delegated to %s", failure.ErrNFTUnavailable, listing.TokenAccount, listing.ProgramAsSigner)
	}
	if account.Amount < listing.Amount {
		return fmt.Errorf("%w: token account %s holds %d, listing needs %d", failure.ErrNFTUnavailable, listing.TokenAccount, account.Amount, listing.Amount)
	}
	return g.CheckTradeStatePresent(ctx, listing.TradeState, listing.TradeStateBump)
}

// CheckSellerReceipt fails when the seller's payment receipt token account
// has a delegate. Native receipts are wallets and carry none.
func (g *Guard) CheckSellerReceipt(ctx context.Context, receipt, treasuryMint solana.PublicKey) error {
	if pda.IsNative(treasuryMint) {
		return nil
	}
	return g.checkNoDelegate(ctx, receipt, failure.ErrSellerATACannotHaveDelegate)
}

// CheckBuyerReceipt fails when the buyer's NFT receipt account has a delegate.
func (g *Guard) CheckBuyerReceipt(ctx context.Context, receipt solana.PublicKey) error {
	return g.checkNoDelegate(ctx, receipt, failure.ErrBuyerATACannotHaveDelegate)
}

func (g *Guard) checkNoDelegate(ctx context.Context, receipt solana.PublicKey, kind error) error {
	account, err := g.tokenAccount(ctx, receipt)
	if err != nil {
		return err
	}
	if account != nil && account.Delegate != nil {
		return fmt.Errorf("%w: %s delegates to %s", kind, receipt, *account.Delegate)
	}
	return nil
}

func (g *Guard) CheckFeeAccount(ctx context.Context, feeAccount solana.PublicKey) error {
	lamports, err := chain.Lamports(ctx, g.reader, feeAccount)
	if err != nil {
		return fmt.Errorf("read fee account: %w", err)
	}
	if lamports < MinFeeAccountLamports {
		return fmt.Errorf("%w: %s holds %d lamports, need %d", failure.ErrInsufficientFeeAccountBalance, feeAccount, lamports, MinFeeAccountLamports)
	}
	return nil
}

// Metadata loads and decodes the metadata of mint. A missing or undecodable
// account is InvalidNFTMetadata.
func (g *Guard) Metadata(ctx context.Context, mint solana.PublicKey) (*token_metadata.Metadata, error) {
	address, _, err := pda.DeriveMetadata(mint)
	if err != nil {
		return nil, fmt.Errorf("derive metadata: %w", err)
	}
	account, err := g.reader.Account(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", address, err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: metadata %s not found for mint %s", failure.ErrInvalidNFTMetadata, address, mint)
	}
	md, err := chain.DecodeMetadata(account.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrInvalidNFTMetadata, err)
	}
	if !md.Mint.Equals(mint) {
		return nil, fmt.Errorf("%w: metadata %s belongs to mint %s", failure.ErrInvalidNFTMetadata, address, md.Mint)
	}
	return md, nil
}

// Creators loads the creator list of mint, in metadata order.
func (g *Guard) Creators(ctx context.Context, mint solana.PublicKey) ([]chain.Creator, error) {
	md, err := g.Metadata(ctx, mint)
	if err != nil {
		return nil, err
	}
	return chain.MetadataCreators(md), nil
}

func (g *Guard) Auction(ctx context.Context, address solana.PublicKey) (*chain.Auction, error) {
	account, err := g.reader.Account(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("read auction %s: %w", address, err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", failure.ErrAuctionDoesNotExist, address)
	}
	return chain.DecodeAuction(account.Data)
}

func (g *Guard) Bid(ctx context.Context, address solana.PublicKey) (*chain.Bid, error) {
	account, err := g.reader.Account(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("read bid %s: %w", address, err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", failure.ErrBidDoesNotExist, address)
	}
	return chain.DecodeBid(account.Data)
}

// OptionalBid is Bid without the existence requirement.
func (g *Guard) OptionalBid(ctx context.Context, address solana.PublicKey) (*chain.Bid, error) {
	bid, err := g.Bid(ctx, address)
	if errors.Is(err, failure.ErrBidDoesNotExist) {
		return nil, nil
	}
	return bid, err
}

func (g *Guard) DropOrder(ctx context.Context, address solana.PublicKey) (*chain.DropOrder, error) {
	account, err := g.reader.Account(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("read drop order %s: %w", address, err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: no drop order at %s", failure.ErrDropNotActive, address)
	}
	return chain.DecodeDropOrder(account.Data)
}

func (g *Guard) MasterEdition(ctx context.Context, masterMint solana.PublicKey) (*chain.MasterEdition, error) {
	address, _, err := pda.DeriveMasterEdition(masterMint)
	if err != nil {
		return nil, fmt.Errorf("derive master edition: %w", err)
	}
	account, err := g.reader.Account(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("read master edition %s: %w", address, err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: master edition %s not found", failure.ErrInvalidNFTMetadata, address)
	}
	edition, err := chain.DecodeMasterEdition(account.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrInvalidNFTMetadata, err)
	}
	return edition, nil
}

// AccountExists reports whether address holds an account.
func (g *Guard) AccountExists(ctx context.Context, address solana.PublicKey) (bool, error) {
	account, err := g.reader.Account(ctx, address)
	if err != nil {
		return false, fmt.Errorf("read account %s: %w", address, err)
	}
	return account != nil, nil
}

func (g *Guard) tokenAccount(ctx context.Context, address solana.PublicKey) (*tokenAccount, error) {
	account, err := g.reader.Account(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("read token account %s: %w", address, err)
	}
	if account == nil {
		return nil, nil
	}
	decoded, err := chain.DecodeTokenAccount(account.Data)
	if err != nil {
		return nil, err
	}
	return &tokenAccount{Amount: decoded.Amount, Delegate: decoded.Delegate}, nil
}

type tokenAccount struct {
	Amount   uint64
	Delegate *solana.PublicKey
}

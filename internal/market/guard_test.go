package market_test

import (
	"context"
	"testing"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/chain/chaintest"
	"github.com/coldbell/candyshop/internal/failure"
	"github.com/coldbell/candyshop/internal/market"
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckBalanceNative(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewFake()
	guard := market.NewGuard(fake)
	wallet := key(10)

	err := guard.CheckBalance(ctx, wallet, pda.WrappedSOLMint, 1)
	assert.ErrorIs(t, err, failure.ErrInsufficientBalance)

	fake.PutLamports(wallet, 5_000)
	assert.NoError(t, guard.CheckBalance(ctx, wallet, pda.WrappedSOLMint, 5_000))
	assert.ErrorIs(t, guard.CheckBalance(ctx, wallet, pda.WrappedSOLMint, 5_001), failure.ErrInsufficientBalance)
}

func TestCheckBalanceSPLUsesTokenAccount(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewFake()
	guard := market.NewGuard(fake)
	wallet, usdc := key(10), key(20)

	// lamports do not count towards an SPL price
	fake.PutLamports(wallet, 1_000_000_000)
	assert.ErrorIs(t, guard.CheckBalance(ctx, wallet, usdc, 1), failure.ErrInsufficientBalance)

	ata, _, err := pda.DeriveATA(wallet, usdc)
	require.NoError(t, err)
	fake.PutData(ata, solana.TokenProgramID, chaintest.TokenAccountData(usdc, wallet, 300, nil))
	assert.NoError(t, guard.CheckBalance(ctx, wallet, usdc, 300))
	assert.ErrorIs(t, guard.CheckBalance(ctx, wallet, usdc, 301), failure.ErrInsufficientBalance)
}

func TestTradeStateChecks(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewFake()
	guard := market.NewGuard(fake)
	tradeState := key(30)

	assert.NoError(t, guard.CheckTradeStateAbsent(ctx, tradeState))
	assert.ErrorIs(t, guard.CheckTradeStatePresent(ctx, tradeState, 254), failure.ErrNFTUnavailable)

	fake.PutData(tradeState, pda.AuctionHouseProgramID, []byte{254})
	assert.ErrorIs(t, guard.CheckTradeStateAbsent(ctx, tradeState), failure.ErrTradeStateExists)
	assert.NoError(t, guard.CheckTradeStatePresent(ctx, tradeState, 254))
	assert.ErrorIs(t, guard.CheckTradeStatePresent(ctx, tradeState, 253), failure.ErrNFTUnavailable)
}

func TestCheckCustody(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewFake()
	guard := market.NewGuard(fake)
	mint, seller, signer, stranger := key(2), key(10), key(60), key(61)
	listing := market.Listing{
		TokenAccount:    key(31),
		TradeState:      key(30),
		TradeStateBump:  255,
		ProgramAsSigner: signer,
		Amount:          1,
	}

	assert.ErrorIs(t, guard.CheckCustody(ctx, listing), failure.ErrNFTUnavailable)

	fake.PutData(listing.TokenAccount, solana.TokenProgramID, chaintest.TokenAccountData(mint, seller, 1, nil))
	assert.ErrorIs(t, guard.CheckCustody(ctx, listing), failure.ErrNFTUnavailable)

	fake.PutData(listing.TokenAccount, solana.TokenProgramID, chaintest.TokenAccountData(mint, seller, 1, &stranger))
	assert.ErrorIs(t, guard.CheckCustody(ctx, listing), failure.ErrNFTUnavailable)

	fake.PutData(listing.TokenAccount, solana.TokenProgramID, chaintest.TokenAccountData(mint, seller, 0, &signer))
	assert.ErrorIs(t, guard.CheckCustody(ctx, listing), failure.ErrNFTUnavailable)

	fake.PutData(listing.TokenAccount, solana.TokenProgramID, chaintest.TokenAccountData(mint, seller, 1, &signer))
	assert.ErrorIs(t, guard.CheckCustody(ctx, listing), failure.ErrNFTUnavailable, "trade state missing")

	fake.PutData(listing.TradeState, pda.AuctionHouseProgramID, []byte{255})
	assert.NoError(t, guard.CheckCustody(ctx, listing))
}

func TestReceiptDelegates(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewFake()
	guard := market.NewGuard(fake)
	usdc, receipt, stranger := key(20), key(32), key(61)

	assert.NoError(t, guard.CheckSellerReceipt(ctx, receipt, usdc), "missing receipt is created by the program")

	fake.PutData(receipt, solana.TokenProgramID, chaintest.TokenAccountData(usdc, key(10), 0, &stranger))
	assert.ErrorIs(t, guard.CheckSellerReceipt(ctx, receipt, usdc), failure.ErrSellerATACannotHaveDelegate)
	assert.ErrorIs(t, guard.CheckBuyerReceipt(ctx, receipt), failure.ErrBuyerATACannotHaveDelegate)
	assert.NoError(t, guard.CheckSellerReceipt(ctx, receipt, pda.WrappedSOLMint))
}

func TestCheckFeeAccount(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewFake()
	guard := market.NewGuard(fake)
	fee := key(70)

	fake.PutLamports(fee, market.MinFeeAccountLamports-1)
	assert.ErrorIs(t, guard.CheckFeeAccount(ctx, fee), failure.ErrInsufficientFeeAccountBalance)

	fake.PutLamports(fee, market.MinFeeAccountLamports)
	assert.NoError(t, guard.CheckFeeAccount(ctx, fee))
}

func TestMetadataChecks(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewFake()
	guard := market.NewGuard(fake)
	mint := key(2)
	address, _, err := pda.DeriveMetadata(mint)
	require.NoError(t, err)

	_, err = guard.Creators(ctx, mint)
	assert.ErrorIs(t, err, failure.ErrInvalidNFTMetadata)

	fake.PutData(address, pda.TokenMetadataProgramID, []byte{4, 1, 2})
	_, err = guard.Creators(ctx, mint)
	assert.ErrorIs(t, err, failure.ErrInvalidNFTMetadata)

	fake.PutData(address, pda.TokenMetadataProgramID, chaintest.MetadataData(key(3), nil))
	_, err = guard.Creators(ctx, mint)
	assert.ErrorIs(t, err, failure.ErrInvalidNFTMetadata, "metadata of another mint")

	creators := []chain.Creator{{Address: key(80), Verified: true, Share: 100}}
	fake.PutData(address, pda.TokenMetadataProgramID, chaintest.MetadataData(mint, creators))
	got, err := guard.Creators(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, creators, got)
}

func TestAuctionAndBidLookups(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewFake()
	guard := market.NewGuard(fake)

	_, err := guard.Auction(ctx, key(90))
	assert.ErrorIs(t, err, failure.ErrAuctionDoesNotExist)
	_, err = guard.Bid(ctx, key(91))
	assert.ErrorIs(t, err, failure.ErrBidDoesNotExist)
	bid, err := guard.OptionalBid(ctx, key(91))
	assert.NoError(t, err)
	assert.Nil(t, bid)

	auction := chain.Auction{Shop: key(1), Mint: key(2), Seller: key(3), StartingBid: 10, TickSize: 1}
	fake.PutData(key(90), pda.CandyShopProgramID, chaintest.Must(auction.Encode()))
	got, err := guard.Auction(ctx, key(90))
	require.NoError(t, err)
	assert.Equal(t, auction, *got)
}

func TestGuardVerdictsAreStable(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewFake()
	guard := market.NewGuard(fake)
	wallet, tradeState := key(10), key(30)
	fake.PutLamports(wallet, 10)
	fake.PutData(tradeState, pda.AuctionHouseProgramID, []byte{250})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, guard.CheckBalance(ctx, wallet, pda.WrappedSOLMint, 11), failure.ErrInsufficientBalance)
		assert.ErrorIs(t, guard.CheckTradeStateAbsent(ctx, tradeState), failure.ErrTradeStateExists)
		assert.NoError(t, guard.CheckTradeStatePresent(ctx, tradeState, 250))
	}
	assert.True(t, fake.Has(tradeState), "guards never mutate state")
}

package pda_test

import (
	"testing"

	"github.com/coldbell/candyshop/internal/failure"
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqKey(start byte) solana.PublicKey {
	var raw [32]byte
	for i := range raw {
		raw[i] = start + byte(i)
	}
	return solana.PublicKeyFromBytes(raw[:])
}

var (
	creator      = seqKey(1)
	wallet       = seqKey(33)
	mint         = seqKey(65)
	tokenAccount = seqKey(97)
)

func TestSeqKeysMatchBase58(t *testing.T) {
	assert.Equal(t, "4wBqpZM9xaSheZzJSMawUKKwhdpChKbZ5eu5ky4Vigw", creator.String())
	assert.Equal(t, "3ELeRTTg5W5hAYaEFznzFV1jknNFkjHqS8ytwvQEQP1Z", wallet.String())
	assert.Equal(t, "5Pk716N113awdSaUDZEPZVi9Zs6hJmG5KCJtp5qQK3LB", mint.String())
	assert.Equal(t, "7Z9ZajGKvb6C6LaiB7fnsWQZNwq8roEKCFdtgFGaDheo", tokenAccount.String())
}

func requireAddress(t *testing.T, want string, wantBump uint8, got solana.PublicKey, gotBump uint8, err error) {
	t.Helper()
	require.NoError(t, err)
	assert.Equal(t, want, got.String())
	assert.Equal(t, wantBump, gotBump)
}

func TestShopAddressesGolden(t *testing.T) {
	addrs, err := pda.DeriveShopAddresses(creator, pda.WrappedSOLMint, pda.CandyShopProgramID)
	require.NoError(t, err)

	requireAddress(t, "ADBXqm2gicQkVydK94yJbdBRQaJTDRDdtS68r1sbLXK6", 254, addrs.Shop, addrs.ShopBump, nil)
	requireAddress(t, "B2cFbcC8GUwiYqKYBYB94sVJoaKmt324TbDj64qQdNHa", 255, addrs.Authority, addrs.AuthorityBump, nil)
	requireAddress(t, "Bmopt7z3YKeRPK9AevKfeDrr2kgyPLsguyZoc7Rydisb", 254, addrs.AuctionHouse, addrs.AuctionHouseBump, nil)
	requireAddress(t, "ByCPJkdQnwHGFc5kbwVRq2qgcj3epputDwmc91Q2zWJi", 254, addrs.FeeAccount, addrs.FeeAccountBump, nil)
	requireAddress(t, "44NBDJn1hJEyTfXnfQWjBvHZ9SHVjQQw1Pq1Jcd1TEzq", 255, addrs.Treasury, addrs.TreasuryBump, nil)
	requireAddress(t, "HS2eL9WJbh7pA4i4veK3YDwhGLRjY3uKryvG1NbHRprj", 255, addrs.ProgramAsSigner, addrs.ProgramAsSignerBump, nil)
	assert.True(t, addrs.IsNative())

	again, err := pda.DeriveShopAddresses(creator, pda.WrappedSOLMint, pda.CandyShopProgramID)
	require.NoError(t, err)
	assert.Equal(t, addrs, again)
}

func TestPerTradeAddressesGolden(t *testing.T) {
	auctionHouse := solana.MustPublicKeyFromBase58("Bmopt7z3YKeRPK9AevKfeDrr2kgyPLsguyZoc7Rydisb")
	shop := solana.MustPublicKeyFromBase58("ADBXqm2gicQkVydK94yJbdBRQaJTDRDdtS68r1sbLXK6")

	key, bump, err := pda.DeriveEscrow(auctionHouse, wallet)
	requireAddress(t, "4fAWwX5iKUuMnt9tyJfFTkHz2VfroJmiPwBobFMA42WL", 255, key, bump, err)

	key, bump, err = pda.DeriveTradeState(auctionHouse, wallet, tokenAccount, pda.WrappedSOLMint, mint, 1, 1_000_000_000)
	requireAddress(t, "G7QYaDcFmHsc32NRFjoRYZnSQVZSgw9gXZe5gLq1yP7S", 250, key, bump, err)

	key, bump, err = pda.DeriveTradeState(auctionHouse, wallet, tokenAccount, pda.WrappedSOLMint, mint, 1, 0)
	requireAddress(t, "D49TT3gHseS8B45n8zUhuDxSjan5bcvzpkTkKSagyc3f", 254, key, bump, err)

	key, bump, err = pda.DeriveMetadata(mint)
	requireAddress(t, "8EfBYLSSnCQCC8VZCt3RezbbR7yzg3eQA2SEzLxqAsuz", 255, key, bump, err)

	key, bump, err = pda.DeriveMasterEdition(mint)
	requireAddress(t, "9TGcJ1gRWkireQeWbnVRVs1BjrcYRw2rHrmcXd9uaDLF", 255, key, bump, err)

	key, bump, err = pda.DeriveEditionMark(mint, 1000)
	requireAddress(t, "A48bFxCxyFn7sJG3U6Y8se64LRVqz78fiMDSsqUQ8pfy", 254, key, bump, err)

	key, bump, err = pda.DeriveAuction(shop, mint, pda.CandyShopProgramID)
	requireAddress(t, "4ZCZugtF7jQ5o5HYYw2QTFyk951n5RFUZw8K216rvoWB", 255, key, bump, err)

	key, bump, err = pda.DeriveBid(key, wallet, pda.CandyShopProgramID)
	requireAddress(t, "86vtwSjJ8QDyagJ5rnKoPKEVqiifQK1qMN5wzYm8WLvR", 255, key, bump, err)

	key, bump, err = pda.DeriveDropOrder(shop, mint, pda.CandyShopProgramID)
	requireAddress(t, "Cn3DsNygyF47WeKtWXsNRbww2DDX5Rqs4MME8ovvAqgS", 255, key, bump, err)

	key, bump, err = pda.DeriveATA(wallet, mint)
	requireAddress(t, "3RsPRs8xYKvtDCK47ABMg5PnLt7x47Y6oucvzN8yZkCr", 254, key, bump, err)
}

func TestTradeStateSeedsAreOrderSensitive(t *testing.T) {
	auctionHouse := seqKey(129)

	base, _, err := pda.DeriveTradeState(auctionHouse, wallet, tokenAccount, pda.WrappedSOLMint, mint, 1, 5)
	require.NoError(t, err)

	swappedAmountPrice, _, err := pda.DeriveTradeState(auctionHouse, wallet, tokenAccount, pda.WrappedSOLMint, mint, 5, 1)
	require.NoError(t, err)
	assert.NotEqual(t, base, swappedAmountPrice)

	swappedWalletAccount, _, err := pda.DeriveTradeState(auctionHouse, tokenAccount, wallet, pda.WrappedSOLMint, mint, 1, 5)
	require.NoError(t, err)
	assert.NotEqual(t, base, swappedWalletAccount)

	otherPrice, _, err := pda.DeriveTradeState(auctionHouse, wallet, tokenAccount, pda.WrappedSOLMint, mint, 1, 6)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherPrice)
}

func TestEditionMarkGroupsByMarkerSize(t *testing.T) {
	first, _, err := pda.DeriveEditionMark(mint, 1)
	require.NoError(t, err)
	last, _, err := pda.DeriveEditionMark(mint, 247)
	require.NoError(t, err)
	next, _, err := pda.DeriveEditionMark(mint, 248)
	require.NoError(t, err)

	assert.Equal(t, first, last)
	assert.NotEqual(t, last, next)
}

func TestPaymentAccount(t *testing.T) {
	native, err := pda.PaymentAccount(wallet, pda.WrappedSOLMint)
	require.NoError(t, err)
	assert.Equal(t, wallet, native)

	spl, err := pda.PaymentAccount(wallet, mint)
	require.NoError(t, err)
	assert.Equal(t, "3RsPRs8xYKvtDCK47ABMg5PnLt7x47Y6oucvzN8yZkCr", spl.String())
}

func TestParseKey(t *testing.T) {
	key, err := pda.ParseKey(creator.Bytes())
	require.NoError(t, err)
	assert.Equal(t, creator, key)

	for _, n := range []int{0, 31, 33} {
		_, err := pda.ParseKey(make([]byte, n))
		require.Error(t, err)
		assert.ErrorIs(t, err, failure.ErrInvalidKey)
	}

	_, err = pda.ParseBase58("not-a-key")
	assert.ErrorIs(t, err, failure.ErrInvalidKey)
}

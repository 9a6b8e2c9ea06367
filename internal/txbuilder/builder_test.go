package txbuilder_test

import (
	"encoding/binary"
	"testing"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/coldbell/candyshop/internal/txbuilder"
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
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
	buyer        = seqKey(130)
	usdc         = seqKey(160)
)

func shopAddresses(treasuryMint solana.PublicKey) pda.ShopAddresses {
	addrs, err := pda.DeriveShopAddresses(creator, treasuryMint, pda.CandyShopProgramID)
	if err != nil {
		panic(err)
	}
	return addrs
}

func nativeBuilder(opts ...txbuilder.Option) *txbuilder.Builder {
	return txbuilder.New(shopAddresses(pda.WrappedSOLMint), opts...)
}

func splBuilder() *txbuilder.Builder {
	return txbuilder.New(shopAddresses(usdc))
}

func creators(n int) []chain.Creator {
	out := make([]chain.Creator, n)
	for i := range out {
		out[i] = chain.Creator{Address: seqKey(byte(200 + i)), Share: uint8(100 / n)}
	}
	return out
}

func onlyInstruction(t *testing.T, plan txbuilder.Plan) solana.Instruction {
	t.Helper()
	require.Len(t, plan.Txs, 1)
	require.Len(t, plan.Txs[0].Instructions, 1)
	return plan.Txs[0].Instructions[0]
}

func data(t *testing.T, ix solana.Instruction) []byte {
	t.Helper()
	raw, err := ix.Data()
	require.NoError(t, err)
	return raw
}

func TestSellLayout(t *testing.T) {
	plan, err := nativeBuilder().Sell(txbuilder.SellParams{
		Wallet:       wallet,
		TokenAccount: tokenAccount,
		Mint:         mint,
		Price:        1_000_000_000,
		Amount:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, "G7QYaDcFmHsc32NRFjoRYZnSQVZSgw9gXZe5gLq1yP7S", plan.Fingerprint.String())

	ix := onlyInstruction(t, plan)
	assert.Equal(t, pda.CandyShopProgramID, ix.ProgramID())

	accounts := ix.Accounts()
	require.Len(t, accounts, 14)
	assert.Equal(t, wallet, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)
	assert.Equal(t, "8EfBYLSSnCQCC8VZCt3RezbbR7yzg3eQA2SEzLxqAsuz", accounts[2].PublicKey.String())
	assert.Equal(t, "B2cFbcC8GUwiYqKYBYB94sVJoaKmt324TbDj64qQdNHa", accounts[3].PublicKey.String())
	assert.Equal(t, "Bmopt7z3YKeRPK9AevKfeDrr2kgyPLsguyZoc7Rydisb", accounts[4].PublicKey.String())
	assert.Equal(t, "ByCPJkdQnwHGFc5kbwVRq2qgcj3epputDwmc91Q2zWJi", accounts[5].PublicKey.String())
	assert.Equal(t, plan.Fingerprint, accounts[6].PublicKey)
	assert.Equal(t, "D49TT3gHseS8B45n8zUhuDxSjan5bcvzpkTkKSagyc3f", accounts[7].PublicKey.String())
	assert.Equal(t, "ADBXqm2gicQkVydK94yJbdBRQaJTDRDdtS68r1sbLXK6", accounts[8].PublicKey.String())

	want := []byte{15, 142, 137, 113, 44, 147, 221, 170}
	want = binary.LittleEndian.AppendUint64(want, 1_000_000_000)
	want = binary.LittleEndian.AppendUint64(want, 1)
	want = append(want, 250, 254, 255, 255)
	assert.Equal(t, want, data(t, ix))
}

func TestChangingPriceChangesFingerprint(t *testing.T) {
	b := nativeBuilder()
	first, err := b.Sell(txbuilder.SellParams{Wallet: wallet, TokenAccount: tokenAccount, Mint: mint, Price: 5, Amount: 1})
	require.NoError(t, err)
	second, err := b.Sell(txbuilder.SellParams{Wallet: wallet, TokenAccount: tokenAccount, Mint: mint, Price: 6, Amount: 1})
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)

	cancel, err := b.Cancel(txbuilder.CancelParams{Wallet: wallet, TokenAccount: tokenAccount, Mint: mint, Price: 5, Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, cancel.Fingerprint)
	assert.Equal(t, []byte{147, 75, 200, 248, 62, 53, 41, 141}, data(t, onlyInstruction(t, cancel))[:8])
}

func TestBuyNativeRoutesThroughWallet(t *testing.T) {
	plan, err := nativeBuilder().Buy(txbuilder.BuyParams{
		Buyer:        buyer,
		Seller:       wallet,
		TokenAccount: tokenAccount,
		Mint:         mint,
		Price:        10,
		Amount:       1,
		Creators:     creators(3),
	})
	require.NoError(t, err)
	require.Len(t, plan.Txs, 1)
	require.Len(t, plan.Txs[0].Instructions, 2)

	buyIx, saleIx := plan.Txs[0].Instructions[0], plan.Txs[0].Instructions[1]
	assert.Equal(t, []byte{146, 248, 146, 178, 169, 156, 219, 57}, data(t, buyIx)[:8])
	assert.Equal(t, []byte{67, 36, 187, 111, 225, 84, 136, 184}, data(t, saleIx)[:8])
	assert.Equal(t, buyer, buyIx.Accounts()[1].PublicKey, "native payment account is the wallet")

	saleAccounts := saleIx.Accounts()
	assert.Equal(t, wallet, saleAccounts[8].PublicKey, "native seller receipt is the wallet")
	tail := saleAccounts[len(saleAccounts)-3:]
	for i, meta := range tail {
		assert.Equal(t, creators(3)[i].Address, meta.PublicKey)
		assert.True(t, meta.IsWritable)
		assert.False(t, meta.IsSigner)
	}
}

func TestBuySPLUsesAssociatedAccounts(t *testing.T) {
	plan, err := splBuilder().Buy(txbuilder.BuyParams{
		Buyer:        buyer,
		Seller:       wallet,
		TokenAccount: tokenAccount,
		Mint:         mint,
		Price:        10,
		Amount:       1,
		Creators:     creators(2),
	})
	require.NoError(t, err)
	buyIx, saleIx := plan.Txs[0].Instructions[0], plan.Txs[0].Instructions[1]

	buyerATA, _, err := pda.DeriveATA(buyer, usdc)
	require.NoError(t, err)
	assert.Equal(t, buyerATA, buyIx.Accounts()[1].PublicKey)

	saleAccounts := saleIx.Accounts()
	tail := saleAccounts[len(saleAccounts)-4:]
	for i, c := range creators(2) {
		ata, _, err := pda.DeriveATA(c.Address, usdc)
		require.NoError(t, err)
		assert.Equal(t, c.Address, tail[2*i].PublicKey)
		assert.False(t, tail[2*i].IsWritable)
		assert.Equal(t, ata, tail[2*i+1].PublicKey)
		assert.True(t, tail[2*i+1].IsWritable)
	}
}

func TestBuySplitsAboveCreatorThreshold(t *testing.T) {
	params := txbuilder.BuyParams{Buyer: buyer, Seller: wallet, TokenAccount: tokenAccount, Mint: mint, Price: 10, Amount: 1}

	params.Creators = creators(txbuilder.MaxCreatorsSingleTx)
	plan, err := nativeBuilder().Buy(params)
	require.NoError(t, err)
	assert.Len(t, plan.Txs, 1)

	params.Creators = creators(txbuilder.MaxCreatorsSingleTx + 1)
	plan, err = nativeBuilder().Buy(params)
	require.NoError(t, err)
	require.Len(t, plan.Txs, 2)
	assert.Equal(t, "buy_with_proxy", plan.Txs[0].Label)
	assert.Equal(t, "execute_sale_with_proxy", plan.Txs[1].Label)
}

func TestComputeBudgetPrefix(t *testing.T) {
	b := nativeBuilder(txbuilder.WithComputeUnitLimit(400_000), txbuilder.WithComputeUnitPrice(1_000))
	plan, err := b.Cancel(txbuilder.CancelParams{Wallet: wallet, TokenAccount: tokenAccount, Mint: mint, Price: 5, Amount: 1})
	require.NoError(t, err)

	instructions := plan.Txs[0].Instructions
	require.Len(t, instructions, 3)
	assert.Equal(t, computebudget.ProgramID, instructions[0].ProgramID())
	assert.Equal(t, computebudget.ProgramID, instructions[1].ProgramID())
	assert.Equal(t, pda.CandyShopProgramID, instructions[2].ProgramID())
}

func TestCreateATAs(t *testing.T) {
	b := nativeBuilder()
	_, ok, err := b.CreateATAs(buyer, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	tx, ok, err := b.CreateATAs(buyer, []txbuilder.ATARequest{{Owner: buyer, Mint: mint}, {Owner: wallet, Mint: usdc}})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, tx.Instructions, 2)
	for _, ix := range tx.Instructions {
		assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ix.ProgramID())
	}
}

func TestAuctionInstructions(t *testing.T) {
	b := nativeBuilder()
	buyNow := uint64(50)
	plan, err := b.CreateAuction(txbuilder.CreateAuctionParams{
		Seller:             creator,
		Mint:               mint,
		SellerTokenAccount: tokenAccount,
		StartingBid:        10,
		StartTime:          1_700_000_000,
		BiddingPeriod:      3600,
		TickSize:           1,
		BuyNowPrice:        &buyNow,
	})
	require.NoError(t, err)
	assert.Equal(t, "4ZCZugtF7jQ5o5HYYw2QTFyk951n5RFUZw8K216rvoWB", plan.Fingerprint.String())

	raw := data(t, onlyInstruction(t, plan))
	assert.Equal(t, []byte{234, 6, 201, 246, 47, 219, 176, 107}, raw[:8])
	// starting bid, start, period, tick, Some(buy now), extension period, increment, bump
	require.Len(t, raw, 8+8+8+8+8+1+8+8+8+1)
	assert.Equal(t, byte(1), raw[40])
	assert.Equal(t, buyNow, binary.LittleEndian.Uint64(raw[41:49]))
	assert.Equal(t, byte(255), raw[len(raw)-1])

	bid, err := b.MakeBid(txbuilder.BidParams{Wallet: wallet, Mint: mint, Seller: creator, Price: 12})
	require.NoError(t, err)
	assert.Equal(t, "86vtwSjJ8QDyagJ5rnKoPKEVqiifQK1qMN5wzYm8WLvR", bid.Fingerprint.String())
	bidIx := onlyInstruction(t, bid)
	assert.Equal(t, []byte{216, 87, 131, 156, 192, 140, 6, 91}, data(t, bidIx)[:8])
	assert.Equal(t, "4fAWwX5iKUuMnt9tyJfFTkHz2VfroJmiPwBobFMA42WL", bidIx.Accounts()[5].PublicKey.String())

	settle, err := b.SettleAndDistribute(txbuilder.SettleParams{
		Settler:  creator,
		Mint:     mint,
		Seller:   creator,
		Winner:   chain.HighestBid{Price: 12, Bid: bid.Fingerprint, Wallet: wallet},
		Creators: creators(2),
	})
	require.NoError(t, err)
	settleAccounts := onlyInstruction(t, settle).Accounts()
	assert.Equal(t, bid.Fingerprint, settleAccounts[3].PublicKey)
	assert.Equal(t, wallet, settleAccounts[4].PublicKey)
	assert.Len(t, settleAccounts, 26+2)
}

func TestMintPrintCreatesFreshMint(t *testing.T) {
	newMint, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	plan, err := nativeBuilder().MintPrint(txbuilder.MintPrintParams{
		Buyer:      buyer,
		Seller:     creator,
		MasterMint: mint,
		Edition:    1000,
		NewMint:    newMint,
	})
	require.NoError(t, err)
	assert.Equal(t, "Cn3DsNygyF47WeKtWXsNRbww2DDX5Rqs4MME8ovvAqgS", plan.Fingerprint.String())
	require.Len(t, plan.Txs, 1)

	tx := plan.Txs[0]
	require.Len(t, tx.Instructions, 5)
	assert.Equal(t, solana.SystemProgramID, tx.Instructions[0].ProgramID())
	assert.Equal(t, solana.TokenProgramID, tx.Instructions[1].ProgramID())
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, tx.Instructions[2].ProgramID())
	assert.Equal(t, solana.TokenProgramID, tx.Instructions[3].ProgramID())
	assert.Equal(t, pda.CandyShopProgramID, tx.Instructions[4].ProgramID())
	require.Len(t, tx.Signers, 1)
	assert.Equal(t, newMint.PublicKey(), tx.Signers[0].PublicKey())

	printAccounts := tx.Instructions[4].Accounts()
	assert.Equal(t, "A48bFxCxyFn7sJG3U6Y8se64LRVqz78fiMDSsqUQ8pfy", printAccounts[12].PublicKey.String())
}

func TestShopAdministration(t *testing.T) {
	b := nativeBuilder()
	create, err := b.CreateShop(txbuilder.CreateShopParams{SellerFeeBasisPoints: 250})
	require.NoError(t, err)
	raw := data(t, onlyInstruction(t, create))
	assert.Equal(t, []byte{255, 254, 254, 255, 254}, raw[8:13])
	assert.Equal(t, uint16(250), binary.LittleEndian.Uint16(raw[13:15]))

	withdraw, err := b.WithdrawFromTreasury(creator, 42)
	require.NoError(t, err)
	assert.Equal(t, "44NBDJn1hJEyTfXnfQWjBvHZ9SHVjQQw1Pq1Jcd1TEzq", withdraw.Fingerprint.String())
	raw = data(t, onlyInstruction(t, withdraw))
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(raw[8:16]))
}

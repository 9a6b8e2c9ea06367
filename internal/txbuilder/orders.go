package txbuilder

import (
	"fmt"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/pda"
	"github.com/gagliardetto/solana-go"
)

// SellParams lists Amount tokens of Mint held in TokenAccount at Price.
type SellParams struct {
	Wallet       solana.PublicKey
	TokenAccount solana.PublicKey
	Mint         solana.PublicKey
	Price        uint64
	Amount       uint64
}

// OrderAddresses are the per-order PDAs shared by sell, cancel and buy.
type OrderAddresses struct {
	Metadata             solana.PublicKey
	SellerTradeState     solana.PublicKey
	SellerTradeBump      uint8
	FreeTradeState       solana.PublicKey
	FreeTradeBump        uint8
	BuyerTradeState      solana.PublicKey
	BuyerTradeBump       uint8
	Escrow               solana.PublicKey
	EscrowBump           uint8
	BuyerPaymentAccount  solana.PublicKey
	SellerPaymentReceipt solana.PublicKey
	BuyerReceipt         solana.PublicKey
}

// DeriveSellOrder derives the addresses a seller needs to list.
func (b *Builder) DeriveSellOrder(wallet, tokenAccount, mint solana.PublicKey, price, amount uint64) (OrderAddresses, error) {
	var (
		out OrderAddresses
		err error
	)
	ah, treasuryMint := b.shop.AuctionHouse, b.shop.TreasuryMint
	if out.Metadata, _, err = pda.DeriveMetadata(mint); err != nil {
		return out, fmt.Errorf("derive metadata: %w", err)
	}
	if out.SellerTradeState, out.SellerTradeBump, err = pda.DeriveTradeState(ah, wallet, tokenAccount, treasuryMint, mint, amount, price); err != nil {
		return out, fmt.Errorf("derive seller trade state: %w", err)
	}
	if out.FreeTradeState, out.FreeTradeBump, err = pda.DeriveTradeState(ah, wallet, tokenAccount, treasuryMint, mint, amount, 0); err != nil {
		return out, fmt.Errorf("derive free trade state: %w", err)
	}
	return out, nil
}

// DeriveBuyOrder extends the seller's addresses with the buyer side.
func (b *Builder) DeriveBuyOrder(buyer, seller, tokenAccount, mint solana.PublicKey, price, amount uint64) (OrderAddresses, error) {
	out, err := b.DeriveSellOrder(seller, tokenAccount, mint, price, amount)
	if err != nil {
		return out, err
	}
	ah, treasuryMint := b.shop.AuctionHouse, b.shop.TreasuryMint
	if out.BuyerTradeState, out.BuyerTradeBump, err = pda.DeriveTradeState(ah, buyer, tokenAccount, treasuryMint, mint, amount, price); err != nil {
		return out, fmt.Errorf("derive buyer trade state: %w", err)
	}
	if out.Escrow, out.EscrowBump, err = pda.DeriveEscrow(ah, buyer); err != nil {
		return out, fmt.Errorf("derive escrow: %w", err)
	}
	if out.BuyerPaymentAccount, err = pda.PaymentAccount(buyer, treasuryMint); err != nil {
		return out, err
	}
	if out.SellerPaymentReceipt, err = pda.PaymentAccount(seller, treasuryMint); err != nil {
		return out, err
	}
	if out.BuyerReceipt, _, err = pda.DeriveATA(buyer, mint); err != nil {
		return out, fmt.Errorf("derive buyer receipt: %w", err)
	}
	return out, nil
}

func (b *Builder) Sell(p SellParams) (Plan, error) {
	addrs, err := b.DeriveSellOrder(p.Wallet, p.TokenAccount, p.Mint, p.Price, p.Amount)
	if err != nil {
		return Plan{}, err
	}
	ix, err := b.sellWithProxyInstruction(p, addrs)
	if err != nil {
		return Plan{}, err
	}
	tx, err := b.tx("sell_with_proxy", ix)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Operation: "sell", Fingerprint: addrs.SellerTradeState, Txs: []Tx{tx}}, nil
}

func (b *Builder) sellWithProxyInstruction(p SellParams, addrs OrderAddresses) (solana.Instruction, error) {
	s := b.shop
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Wallet, true, true),
		solana.NewAccountMeta(p.TokenAccount, true, false),
		solana.NewAccountMeta(addrs.Metadata, false, false),
		solana.NewAccountMeta(s.Authority, false, false),
		solana.NewAccountMeta(s.AuctionHouse, false, false),
		solana.NewAccountMeta(s.FeeAccount, true, false),
		solana.NewAccountMeta(addrs.SellerTradeState, true, false),
		solana.NewAccountMeta(addrs.FreeTradeState, true, false),
		solana.NewAccountMeta(s.Shop, false, false),
		solana.NewAccountMeta(pda.AuctionHouseProgramID, false, false),
		solana.NewAccountMeta(s.ProgramAsSigner, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}
	data := newArgs(sellWithProxyDisc).
		u64(p.Price).
		u64(p.Amount).
		u8(addrs.SellerTradeBump).
		u8(addrs.FreeTradeBump).
		u8(s.ProgramAsSignerBump).
		u8(s.AuthorityBump)
	return instruction(s.ProgramID, accounts, data)
}

// CancelParams withdraws the listing created with the same fields.
type CancelParams struct {
	Wallet       solana.PublicKey
	TokenAccount solana.PublicKey
	Mint         solana.PublicKey
	Price        uint64
	Amount       uint64
}

func (b *Builder) Cancel(p CancelParams) (Plan, error) {
	addrs, err := b.DeriveSellOrder(p.Wallet, p.TokenAccount, p.Mint, p.Price, p.Amount)
	if err != nil {
		return Plan{}, err
	}
	s := b.shop
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Wallet, true, true),
		solana.NewAccountMeta(p.TokenAccount, true, false),
		solana.NewAccountMeta(p.Mint, false, false),
		solana.NewAccountMeta(s.Authority, false, false),
		solana.NewAccountMeta(s.AuctionHouse, false, false),
		solana.NewAccountMeta(s.FeeAccount, true, false),
		solana.NewAccountMeta(addrs.SellerTradeState, true, false),
		solana.NewAccountMeta(s.Shop, false, false),
		solana.NewAccountMeta(pda.AuctionHouseProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	data := newArgs(cancelWithProxyDisc).
		u64(p.Price).
		u64(p.Amount).
		u8(s.AuthorityBump)
	ix, err := instruction(s.ProgramID, accounts, data)
	if err != nil {
		return Plan{}, err
	}
	tx, err := b.tx("cancel_with_proxy", ix)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Operation: "cancel", Fingerprint: addrs.SellerTradeState, Txs: []Tx{tx}}, nil
}

// BuyParams buys a listing. Creators come from the NFT metadata, in order.
type BuyParams struct {
	Buyer        solana.PublicKey
	Seller       solana.PublicKey
	TokenAccount solana.PublicKey
	Mint         solana.PublicKey
	Price        uint64
	Amount       uint64
	Creators     []chain.Creator
}

// Buy places the buyer order and executes the sale. Both instructions share
// one transaction unless the creator tail makes it too large.
func (b *Builder) Buy(p BuyParams) (Plan, error) {
	addrs, err := b.DeriveBuyOrder(p.Buyer, p.Seller, p.TokenAccount, p.Mint, p.Price, p.Amount)
	if err != nil {
		return Plan{}, err
	}
	buyIx, err := b.buyWithProxyInstruction(p, addrs)
	if err != nil {
		return Plan{}, err
	}
	saleIx, err := b.executeSaleWithProxyInstruction(p, addrs)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Operation: "buy", Fingerprint: addrs.SellerTradeState}
	if len(p.Creators) > MaxCreatorsSingleTx {
		buyTx, err := b.tx("buy_with_proxy", buyIx)
		if err != nil {
			return Plan{}, err
		}
		saleTx, err := b.tx("execute_sale_with_proxy", saleIx)
		if err != nil {
			return Plan{}, err
		}
		plan.Txs = []Tx{buyTx, saleTx}
		return plan, nil
	}
	tx, err := b.tx("buy_and_execute_sale", buyIx, saleIx)
	if err != nil {
		return Plan{}, err
	}
	plan.Txs = []Tx{tx}
	return plan, nil
}

func (b *Builder) buyWithProxyInstruction(p BuyParams, addrs OrderAddresses) (solana.Instruction, error) {
	s := b.shop
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Buyer, true, true),
		solana.NewAccountMeta(addrs.BuyerPaymentAccount, true, false),
		solana.NewAccountMeta(p.Buyer, false, false),
		solana.NewAccountMeta(s.TreasuryMint, false, false),
		solana.NewAccountMeta(p.TokenAccount, false, false),
		solana.NewAccountMeta(addrs.Metadata, false, false),
		solana.NewAccountMeta(addrs.Escrow, true, false),
		solana.NewAccountMeta(s.Authority, false, false),
		solana.NewAccountMeta(s.AuctionHouse, false, false),
		solana.NewAccountMeta(s.FeeAccount, true, false),
		solana.NewAccountMeta(addrs.BuyerTradeState, true, false),
		solana.NewAccountMeta(s.Shop, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(pda.AuctionHouseProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}
	data := newArgs(buyWithProxyDisc).
		u64(p.Price).
		u64(p.Amount).
		u8(addrs.BuyerTradeBump).
		u8(addrs.EscrowBump).
		u8(s.AuthorityBump)
	return instruction(s.ProgramID, accounts, data)
}

func (b *Builder) executeSaleWithProxyInstruction(p BuyParams, addrs OrderAddresses) (solana.Instruction, error) {
	s := b.shop
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Buyer, true, true),
		solana.NewAccountMeta(p.Buyer, true, false),
		solana.NewAccountMeta(p.Seller, true, false),
		solana.NewAccountMeta(p.TokenAccount, true, false),
		solana.NewAccountMeta(p.Mint, false, false),
		solana.NewAccountMeta(addrs.Metadata, false, false),
		solana.NewAccountMeta(s.TreasuryMint, false, false),
		solana.NewAccountMeta(addrs.Escrow, true, false),
		solana.NewAccountMeta(addrs.SellerPaymentReceipt, true, false),
		solana.NewAccountMeta(addrs.BuyerReceipt, true, false),
		solana.NewAccountMeta(s.Authority, false, false),
		solana.NewAccountMeta(s.AuctionHouse, false, false),
		solana.NewAccountMeta(s.FeeAccount, true, false),
		solana.NewAccountMeta(s.Treasury, true, false),
		solana.NewAccountMeta(addrs.BuyerTradeState, true, false),
		solana.NewAccountMeta(addrs.SellerTradeState, true, false),
		solana.NewAccountMeta(addrs.FreeTradeState, true, false),
		solana.NewAccountMeta(s.Shop, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(s.ProgramAsSigner, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		solana.NewAccountMeta(pda.AuctionHouseProgramID, false, false),
	}
	tail, err := creatorAccounts(p.Creators, s.TreasuryMint)
	if err != nil {
		return nil, err
	}
	accounts = append(accounts, tail...)

	data := newArgs(executeSaleWithProxyDisc).
		u64(p.Price).
		u64(p.Amount).
		u8(addrs.EscrowBump).
		u8(addrs.FreeTradeBump).
		u8(s.ProgramAsSignerBump).
		u8(s.AuthorityBump)
	return instruction(s.ProgramID, accounts, data)
}

package txbuilder

import (
	"fmt"

	"github.com/coldbell/candyshop/internal/pda"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

const (
	mintAccountSize = 82
	// mintRentLamports is the rent-exempt balance of a mint account.
	mintRentLamports = 1_461_600
)

type DropAddresses struct {
	DropOrder      solana.PublicKey
	DropOrderBump  uint8
	Vault          solana.PublicKey
	MasterEdition  solana.PublicKey
	MasterMetadata solana.PublicKey
}

func (b *Builder) DeriveDrop(masterMint solana.PublicKey) (DropAddresses, error) {
	var (
		out DropAddresses
		err error
	)
	if out.DropOrder, out.DropOrderBump, err = pda.DeriveDropOrder(b.shop.Shop, masterMint, b.shop.ProgramID); err != nil {
		return out, fmt.Errorf("derive drop order: %w", err)
	}
	if out.Vault, _, err = pda.DeriveATA(out.DropOrder, masterMint); err != nil {
		return out, fmt.Errorf("derive drop vault: %w", err)
	}
	if out.MasterEdition, _, err = pda.DeriveMasterEdition(masterMint); err != nil {
		return out, fmt.Errorf("derive master edition: %w", err)
	}
	if out.MasterMetadata, _, err = pda.DeriveMetadata(masterMint); err != nil {
		return out, fmt.Errorf("derive master metadata: %w", err)
	}
	return out, nil
}

// CommitNFTParams moves a master edition into the shop vault and opens an
// edition drop.
type CommitNFTParams struct {
	Seller             solana.PublicKey
	MasterMint         solana.PublicKey
	MasterTokenAccount solana.PublicKey
	Price              uint64
	StartTime          int64
	SalesPeriod        int64
	WhitelistTime      *int64
}

func (b *Builder) CommitNFT(p CommitNFTParams) (Plan, error) {
	addrs, err := b.DeriveDrop(p.MasterMint)
	if err != nil {
		return Plan{}, err
	}
	s := b.shop
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Seller, true, true),
		solana.NewAccountMeta(s.Shop, false, false),
		solana.NewAccountMeta(addrs.DropOrder, true, false),
		solana.NewAccountMeta(p.MasterMint, false, false),
		solana.NewAccountMeta(p.MasterTokenAccount, true, false),
		solana.NewAccountMeta(addrs.Vault, true, false),
		solana.NewAccountMeta(addrs.MasterEdition, false, false),
		solana.NewAccountMeta(addrs.MasterMetadata, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}
	data := newArgs(commitNftDisc).
		u64(p.Price).
		i64(p.StartTime).
		i64(p.SalesPeriod).
		optionalI64(p.WhitelistTime).
		u8(addrs.DropOrderBump)
	return b.single("commit_nft", addrs.DropOrder, s.ProgramID, accounts, data)
}

// MintPrintParams mints print number Edition of MasterMint into a fresh
// mint owned by Buyer. NewMint is the keypair of that fresh mint.
type MintPrintParams struct {
	Buyer      solana.PublicKey
	Seller     solana.PublicKey
	MasterMint solana.PublicKey
	Edition    uint64
	NewMint    solana.PrivateKey
}

func (b *Builder) MintPrint(p MintPrintParams) (Plan, error) {
	addrs, err := b.DeriveDrop(p.MasterMint)
	if err != nil {
		return Plan{}, err
	}
	s := b.shop
	newMint := p.NewMint.PublicKey()

	newTokenAccount, _, err := pda.DeriveATA(p.Buyer, newMint)
	if err != nil {
		return Plan{}, fmt.Errorf("derive print token account: %w", err)
	}
	newMetadata, _, err := pda.DeriveMetadata(newMint)
	if err != nil {
		return Plan{}, fmt.Errorf("derive print metadata: %w", err)
	}
	newEdition, _, err := pda.DeriveMasterEdition(newMint)
	if err != nil {
		return Plan{}, fmt.Errorf("derive print edition: %w", err)
	}
	editionMark, _, err := pda.DeriveEditionMark(p.MasterMint, p.Edition)
	if err != nil {
		return Plan{}, fmt.Errorf("derive edition marker: %w", err)
	}
	buyerPayment, err := pda.PaymentAccount(p.Buyer, s.TreasuryMint)
	if err != nil {
		return Plan{}, err
	}
	sellerReceipt, err := pda.PaymentAccount(p.Seller, s.TreasuryMint)
	if err != nil {
		return Plan{}, err
	}

	createMintIx, err := system.NewCreateAccountInstruction(
		mintRentLamports,
		mintAccountSize,
		solana.TokenProgramID,
		p.Buyer,
		newMint,
	).ValidateAndBuild()
	if err != nil {
		return Plan{}, fmt.Errorf("build create mint account instruction: %w", err)
	}
	initMintIx, err := token.NewInitializeMintInstruction(0, p.Buyer, p.Buyer, newMint, solana.SysVarRentPubkey).ValidateAndBuild()
	if err != nil {
		return Plan{}, fmt.Errorf("build initialize mint instruction: %w", err)
	}
	createATAIx, err := associatedtokenaccount.NewCreateInstruction(p.Buyer, p.Buyer, newMint).ValidateAndBuild()
	if err != nil {
		return Plan{}, fmt.Errorf("build print token account instruction: %w", err)
	}
	mintToIx, err := token.NewMintToInstruction(1, newMint, newTokenAccount, p.Buyer, nil).ValidateAndBuild()
	if err != nil {
		return Plan{}, fmt.Errorf("build mint to instruction: %w", err)
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Buyer, true, true),
		solana.NewAccountMeta(s.Shop, false, false),
		solana.NewAccountMeta(addrs.DropOrder, true, false),
		solana.NewAccountMeta(addrs.Vault, false, false),
		solana.NewAccountMeta(p.MasterMint, false, false),
		solana.NewAccountMeta(addrs.MasterEdition, true, false),
		solana.NewAccountMeta(addrs.MasterMetadata, false, false),
		solana.NewAccountMeta(buyerPayment, true, false),
		solana.NewAccountMeta(sellerReceipt, true, false),
		solana.NewAccountMeta(newMint, true, false),
		solana.NewAccountMeta(newMetadata, true, false),
		solana.NewAccountMeta(newEdition, true, false),
		solana.NewAccountMeta(editionMark, true, false),
		solana.NewAccountMeta(newTokenAccount, false, false),
		solana.NewAccountMeta(s.Authority, false, false),
		solana.NewAccountMeta(s.AuctionHouse, false, false),
		solana.NewAccountMeta(s.TreasuryMint, false, false),
		solana.NewAccountMeta(pda.TokenMetadataProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}
	printIx, err := instruction(s.ProgramID, accounts, newArgs(mintPrintDisc).u64(p.Edition).u8(addrs.DropOrderBump))
	if err != nil {
		return Plan{}, fmt.Errorf("build mint_print: %w", err)
	}

	tx, err := b.tx("mint_print", createMintIx, initMintIx, createATAIx, mintToIx, printIx)
	if err != nil {
		return Plan{}, err
	}
	tx.Signers = []solana.PrivateKey{p.NewMint}
	return Plan{Operation: "mint_print", Fingerprint: addrs.DropOrder, Txs: []Tx{tx}}, nil
}

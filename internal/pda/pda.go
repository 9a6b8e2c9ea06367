package pda

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/coldbell/candyshop/internal/failure"
	token_metadata "github.com/gagliardetto/metaplex-go/clients/token-metadata"
	"github.com/gagliardetto/solana-go"
)

const (
	seedAuctionHouse = "auction_house"
	seedFeePayer     = "fee_payer"
	seedTreasury     = "treasury"
	seedCandyShop    = "candy_shop"
	seedAuthority    = "authority"
	seedOrder        = "order"
	seedSigner       = "signer"
	seedAuction      = "auction"
	seedBid          = "bid"
	seedMetadata     = "metadata"
	seedEdition      = "edition"

	// editionMarkerBitSize is the number of editions tracked by one edition
	// marker account of the metadata program.
	editionMarkerBitSize = 248
)

var (
	AuctionHouseProgramID  = solana.MustPublicKeyFromBase58("hausS13jsjafwWwGqZTUQRmWyvyxn9EQpqMwV1PBBmk")
	CandyShopProgramID     = solana.MustPublicKeyFromBase58("csa8JpYfKSZajP7JzxnJipUL3qagub1z29hLvp2eHbo")
	TokenMetadataProgramID = token_metadata.ProgramID
	WrappedSOLMint         = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

func DeriveShop(creator, treasuryMint, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedCandyShop), creator.Bytes(), treasuryMint.Bytes()}, programID)
}

func DeriveAuthority(creator, treasuryMint, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(seedCandyShop), creator.Bytes(), treasuryMint.Bytes(), []byte(seedAuthority)},
		programID,
	)
}

func DeriveAuctionHouse(authority, treasuryMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(seedAuctionHouse), authority.Bytes(), treasuryMint.Bytes()},
		AuctionHouseProgramID,
	)
}

func DeriveFeeAccount(auctionHouse solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(seedAuctionHouse), auctionHouse.Bytes(), []byte(seedFeePayer)},
		AuctionHouseProgramID,
	)
}

func DeriveTreasury(auctionHouse solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(seedAuctionHouse), auctionHouse.Bytes(), []byte(seedTreasury)},
		AuctionHouseProgramID,
	)
}

func DeriveProgramAsSigner() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedAuctionHouse), []byte(seedSigner)}, AuctionHouseProgramID)
}

func DeriveEscrow(auctionHouse, wallet solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(seedAuctionHouse), auctionHouse.Bytes(), wallet.Bytes()},
		AuctionHouseProgramID,
	)
}

// DeriveTradeState fingerprints "wallet offers amount of tokenMint held in
// tokenAccount at price". Price precedes amount in the seed list.
func DeriveTradeState(
	auctionHouse solana.PublicKey,
	wallet solana.PublicKey,
	tokenAccount solana.PublicKey,
	treasuryMint solana.PublicKey,
	tokenMint solana.PublicKey,
	amount uint64,
	price uint64,
) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			[]byte(seedAuctionHouse),
			wallet.Bytes(),
			auctionHouse.Bytes(),
			tokenAccount.Bytes(),
			treasuryMint.Bytes(),
			tokenMint.Bytes(),
			u64LE(price),
			u64LE(amount),
		},
		AuctionHouseProgramID,
	)
}

func DeriveMetadata(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(seedMetadata), TokenMetadataProgramID.Bytes(), mint.Bytes()},
		TokenMetadataProgramID,
	)
}

func DeriveMasterEdition(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(seedMetadata), TokenMetadataProgramID.Bytes(), mint.Bytes(), []byte(seedEdition)},
		TokenMetadataProgramID,
	)
}

func DeriveEditionMark(masterMint solana.PublicKey, edition uint64) (solana.PublicKey, uint8, error) {
	marker := strconv.FormatUint(edition/editionMarkerBitSize, 10)
	return solana.FindProgramAddress(
		[][]byte{
			[]byte(seedMetadata),
			TokenMetadataProgramID.Bytes(),
			masterMint.Bytes(),
			[]byte(seedEdition),
			[]byte(marker),
		},
		TokenMetadataProgramID,
	)
}

func DeriveAuction(shop, mint, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedAuction), shop.Bytes(), mint.Bytes()}, programID)
}

func DeriveBid(auction, wallet, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedBid), auction.Bytes(), wallet.Bytes()}, programID)
}

// DeriveDropOrder is the edition-drop order created when a master edition is
// committed to the shop.
func DeriveDropOrder(shop, masterMint, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedOrder), shop.Bytes(), masterMint.Bytes()}, programID)
}

func DeriveATA(owner, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindAssociatedTokenAddress(owner, mint)
}

// IsNative reports whether treasuryMint settles in lamports.
func IsNative(treasuryMint solana.PublicKey) bool {
	return treasuryMint.Equals(WrappedSOLMint)
}

// PaymentAccount is where wallet pays from or receives treasuryMint funds:
// the wallet itself for native SOL, its associated token account otherwise.
func PaymentAccount(wallet, treasuryMint solana.PublicKey) (solana.PublicKey, error) {
	if IsNative(treasuryMint) {
		return wallet, nil
	}
	ata, _, err := DeriveATA(wallet, treasuryMint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive payment ata for %s: %w", wallet, err)
	}
	return ata, nil
}

// ParseKey converts raw bytes into a public key, rejecting anything that is
// not exactly 32 bytes long.
func ParseKey(raw []byte) (solana.PublicKey, error) {
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("%w: expected %d bytes, got %d", failure.ErrInvalidKey, solana.PublicKeyLength, len(raw))
	}
	return solana.PublicKeyFromBytes(raw), nil
}

func ParseBase58(raw string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q: %v", failure.ErrInvalidKey, raw, err)
	}
	return pk, nil
}

func u64LE(value uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	return buf
}

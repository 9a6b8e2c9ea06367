package chain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	auctionHouseDiscriminator = AccountDiscriminator("AuctionHouse")
	auctionDiscriminator      = AccountDiscriminator("Auction")
	bidDiscriminator          = AccountDiscriminator("Bid")
	dropOrderDiscriminator    = AccountDiscriminator("DropOrder")
)

type AuctionHouse struct {
	FeeAccount                    solana.PublicKey
	Treasury                      solana.PublicKey
	TreasuryWithdrawalDestination solana.PublicKey
	FeeWithdrawalDestination      solana.PublicKey
	TreasuryMint                  solana.PublicKey
	Authority                     solana.PublicKey
	Creator                       solana.PublicKey
	Bump                          uint8
	TreasuryBump                  uint8
	FeePayerBump                  uint8
	SellerFeeBasisPoints          uint16
	RequiresSignOff               bool
	CanChangeSalePrice            bool
}

func DecodeAuctionHouse(data []byte) (*AuctionHouse, error) {
	r := newFieldReader(data, auctionHouseDiscriminator)
	out := &AuctionHouse{
		FeeAccount:                    r.key(),
		Treasury:                      r.key(),
		TreasuryWithdrawalDestination: r.key(),
		FeeWithdrawalDestination:      r.key(),
		TreasuryMint:                  r.key(),
		Authority:                     r.key(),
		Creator:                       r.key(),
		Bump:                          r.u8(),
		TreasuryBump:                  r.u8(),
		FeePayerBump:                  r.u8(),
		SellerFeeBasisPoints:          r.u16(),
		RequiresSignOff:               r.boolean(),
		CanChangeSalePrice:            r.boolean(),
	}
	if r.err != nil {
		return nil, fmt.Errorf("decode auction house: %w", r.err)
	}
	return out, nil
}

func (a AuctionHouse) Encode() ([]byte, error) {
	w := newFieldWriter(auctionHouseDiscriminator)
	w.key(a.FeeAccount)
	w.key(a.Treasury)
	w.key(a.TreasuryWithdrawalDestination)
	w.key(a.FeeWithdrawalDestination)
	w.key(a.TreasuryMint)
	w.key(a.Authority)
	w.key(a.Creator)
	w.u8(a.Bump)
	w.u8(a.TreasuryBump)
	w.u8(a.FeePayerBump)
	w.u16(a.SellerFeeBasisPoints)
	w.boolean(a.RequiresSignOff)
	w.boolean(a.CanChangeSalePrice)
	return w.bytes()
}

type AuctionStatus uint8

const (
	AuctionCreated AuctionStatus = iota
	AuctionStarted
	AuctionComplete
	AuctionCancelled
	AuctionExpired
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionCreated:
		return "CREATED"
	case AuctionStarted:
		return "STARTED"
	case AuctionComplete:
		return "COMPLETE"
	case AuctionCancelled:
		return "CANCELLED"
	case AuctionExpired:
		return "EXPIRED"
	default:
		return fmt.Sprintf("AuctionStatus(%d)", uint8(s))
	}
}

type HighestBid struct {
	Price  uint64
	Bid    solana.PublicKey
	Wallet solana.PublicKey
}

// Auction is the candy-shop auction account. Times are unix seconds.
type Auction struct {
	Shop               solana.PublicKey
	Mint               solana.PublicKey
	Seller             solana.PublicKey
	Status             AuctionStatus
	StartingBid        uint64
	StartTime          int64
	BiddingPeriod      int64
	TickSize           uint64
	BuyNowPrice        *uint64
	HighestBid         *HighestBid
	ExtensionPeriod    int64
	ExtensionIncrement int64
	Bump               uint8
}

func (a Auction) EndTime() int64 {
	return a.StartTime + a.BiddingPeriod
}

func DecodeAuction(data []byte) (*Auction, error) {
	r := newFieldReader(data, auctionDiscriminator)
	out := &Auction{
		Shop:        r.key(),
		Mint:        r.key(),
		Seller:      r.key(),
		Status:      AuctionStatus(r.u8()),
		StartingBid: r.u64(),
	}
	out.StartTime = r.i64()
	out.BiddingPeriod = r.i64()
	out.TickSize = r.u64()
	out.BuyNowPrice = r.optionalU64()
	if r.some() {
		out.HighestBid = &HighestBid{Price: r.u64(), Bid: r.key(), Wallet: r.key()}
	}
	out.ExtensionPeriod = r.i64()
	out.ExtensionIncrement = r.i64()
	out.Bump = r.u8()
	if r.err != nil {
		return nil, fmt.Errorf("decode auction: %w", r.err)
	}
	return out, nil
}

func (a Auction) Encode() ([]byte, error) {
	w := newFieldWriter(auctionDiscriminator)
	w.key(a.Shop)
	w.key(a.Mint)
	w.key(a.Seller)
	w.u8(uint8(a.Status))
	w.u64(a.StartingBid)
	w.i64(a.StartTime)
	w.i64(a.BiddingPeriod)
	w.u64(a.TickSize)
	w.optionalU64(a.BuyNowPrice)
	if a.HighestBid == nil {
		w.u8(0)
	} else {
		w.u8(1)
		w.u64(a.HighestBid.Price)
		w.key(a.HighestBid.Bid)
		w.key(a.HighestBid.Wallet)
	}
	w.i64(a.ExtensionPeriod)
	w.i64(a.ExtensionIncrement)
	w.u8(a.Bump)
	return w.bytes()
}

type BidStatus uint8

const (
	BidOpen BidStatus = iota
	BidWon
	BidLost
	BidWithdrawn
)

func (s BidStatus) String() string {
	switch s {
	case BidOpen:
		return "OPEN"
	case BidWon:
		return "WON"
	case BidLost:
		return "LOST"
	case BidWithdrawn:
		return "WITHDRAWN"
	default:
		return fmt.Sprintf("BidStatus(%d)", uint8(s))
	}
}

type Bid struct {
	Auction solana.PublicKey
	Wallet  solana.PublicKey
	Price   uint64
	Status  BidStatus
	Bump    uint8
}

func DecodeBid(data []byte) (*Bid, error) {
	r := newFieldReader(data, bidDiscriminator)
	out := &Bid{
		Auction: r.key(),
		Wallet:  r.key(),
		Price:   r.u64(),
		Status:  BidStatus(r.u8()),
		Bump:    r.u8(),
	}
	if r.err != nil {
		return nil, fmt.Errorf("decode bid: %w", r.err)
	}
	return out, nil
}

func (b Bid) Encode() ([]byte, error) {
	w := newFieldWriter(bidDiscriminator)
	w.key(b.Auction)
	w.key(b.Wallet)
	w.u64(b.Price)
	w.u8(uint8(b.Status))
	w.u8(b.Bump)
	return w.bytes()
}

// DropOrder is an edition drop: prints of MasterMint sold at Price during
// [StartTime, StartTime+SalesPeriod]. Whitelisted wallets may mint from
// WhitelistTime on.
type DropOrder struct {
	Shop          solana.PublicKey
	MasterMint    solana.PublicKey
	Seller        solana.PublicKey
	Price         uint64
	StartTime     int64
	SalesPeriod   int64
	WhitelistTime *int64
	Bump          uint8
}

func (d DropOrder) EndTime() int64 {
	return d.StartTime + d.SalesPeriod
}

func DecodeDropOrder(data []byte) (*DropOrder, error) {
	r := newFieldReader(data, dropOrderDiscriminator)
	out := &DropOrder{
		Shop:       r.key(),
		MasterMint: r.key(),
		Seller:     r.key(),
		Price:      r.u64(),
	}
	out.StartTime = r.i64()
	out.SalesPeriod = r.i64()
	out.WhitelistTime = r.optionalI64()
	out.Bump = r.u8()
	if r.err != nil {
		return nil, fmt.Errorf("decode drop order: %w", r.err)
	}
	return out, nil
}

func (d DropOrder) Encode() ([]byte, error) {
	w := newFieldWriter(dropOrderDiscriminator)
	w.key(d.Shop)
	w.key(d.MasterMint)
	w.key(d.Seller)
	w.u64(d.Price)
	w.i64(d.StartTime)
	w.i64(d.SalesPeriod)
	w.optionalI64(d.WhitelistTime)
	w.u8(d.Bump)
	return w.bytes()
}

// TradeStateBump returns the bump byte stored in a trade-state account.
func TradeStateBump(account *Account) (uint8, bool) {
	if account == nil || len(account.Data) == 0 {
		return 0, false
	}
	return account.Data[0], true
}

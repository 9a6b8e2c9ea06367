package market

import (
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/failure"
	"github.com/gagliardetto/solana-go"
)

// maxStartTimeLag is how far in the past a new auction may start.
const maxStartTimeLag = 60 * time.Second

// Classify derives the lifecycle state of an auction at now. Terminal states
// stored on chain win. CREATED becomes STARTED implicitly at the start time;
// a closed window without bids reads as EXPIRED, one with a pending winner
// stays STARTED until settlement.
func Classify(a chain.Auction, now time.Time) chain.AuctionStatus {
	switch a.Status {
	case chain.AuctionComplete, chain.AuctionCancelled, chain.AuctionExpired:
		return a.Status
	}
	unix := now.Unix()
	switch {
	case unix < a.StartTime:
		return chain.AuctionCreated
	case unix <= a.EndTime():
		return chain.AuctionStarted
	case a.HighestBid == nil:
		return chain.AuctionExpired
	default:
		return chain.AuctionStarted
	}
}

// InBidWindow reports startTime <= now <= startTime + biddingPeriod.
func InBidWindow(a chain.Auction, now time.Time) bool {
	unix := now.Unix()
	return a.StartTime <= unix && unix <= a.EndTime()
}

// AwaitingSettlement reports a closed window with a winning bid.
func AwaitingSettlement(a chain.Auction, now time.Time) bool {
	return now.Unix() >= a.EndTime() && a.HighestBid != nil && !isTerminal(a.Status)
}

func isTerminal(status chain.AuctionStatus) bool {
	return status == chain.AuctionComplete || status == chain.AuctionCancelled || status == chain.AuctionExpired
}

// CreateParams describes a new auction. Prices are in treasury-mint base units.
type CreateParams struct {
	Seller             solana.PublicKey
	StartingBid        uint64
	TickSize           uint64
	BuyNowPrice        *uint64
	StartTime          time.Time
	BiddingPeriod      time.Duration
	ExtensionPeriod    time.Duration
	ExtensionIncrement time.Duration
}

func ValidateCreate(p CreateParams, shopOwner solana.PublicKey, now time.Time) error {
	if !p.Seller.Equals(shopOwner) {
		return fmt.Errorf("%w: only the shop owner %s may create auctions", failure.ErrInvalidAuctionCreationParams, shopOwner)
	}
	if p.TickSize == 0 {
		return fmt.Errorf("%w: tick size must be positive", failure.ErrInvalidAuctionCreationParams)
	}
	if p.BiddingPeriod <= 0 {
		return fmt.Errorf("%w: bidding period must be positive", failure.ErrInvalidAuctionCreationParams)
	}
	if p.StartTime.Before(now.Add(-maxStartTimeLag)) {
		return fmt.Errorf("%w: start time %s is more than %s in the past", failure.ErrInvalidAuctionCreationParams, p.StartTime.UTC().Format(time.RFC3339), maxStartTimeLag)
	}
	firstRaise, ok := addPrice(p.StartingBid, p.TickSize)
	if !ok {
		return fmt.Errorf("%w: starting bid %d plus tick %d overflows", failure.ErrInvalidAuctionCreationParams, p.StartingBid, p.TickSize)
	}
	if p.BuyNowPrice != nil && *p.BuyNowPrice < firstRaise {
		return fmt.Errorf("%w: buy now price %d below starting bid plus tick %d", failure.ErrInvalidAuctionCreationParams, *p.BuyNowPrice, firstRaise)
	}
	if p.ExtensionPeriod < 0 || p.ExtensionIncrement < 0 {
		return fmt.Errorf("%w: extension settings must not be negative", failure.ErrInvalidAuctionCreationParams)
	}
	return nil
}

// CancelPolicy selects how a started auction without bids is treated.
// The zero value follows the on-chain reference check, which refuses any
// cancel inside the bidding window. AllowBidlessCancelInWindow accepts a
// cancel inside the window as long as no bid has been placed.
type CancelPolicy struct {
	AllowBidlessCancelInWindow bool
}

func ValidateCancel(a chain.Auction, now time.Time, policy CancelPolicy) error {
	if isTerminal(a.Status) {
		return fmt.Errorf("%w: auction is %s", failure.ErrCannotCancel, a.Status)
	}
	unix := now.Unix()
	end := a.EndTime()
	if unix > end && a.HighestBid != nil {
		return fmt.Errorf("%w: bidding closed with a winning bid pending settlement", failure.ErrCannotCancel)
	}
	if unix > a.StartTime && unix < end {
		if a.HighestBid != nil || !policy.AllowBidlessCancelInWindow {
			return fmt.Errorf("%w: auction is within its bidding window", failure.ErrCannotCancel)
		}
	}
	return nil
}

// MinimumBid is the lowest acceptable next bid. It saturates at
// math.MaxUint64 when no higher bid is representable.
func MinimumBid(a chain.Auction) uint64 {
	minimum, _ := minimumBid(a)
	return minimum
}

func minimumBid(a chain.Auction) (uint64, bool) {
	if a.HighestBid == nil {
		return a.StartingBid, true
	}
	return addPrice(a.HighestBid.Price, a.TickSize)
}

// addPrice returns a+b, or math.MaxUint64 and false on overflow.
func addPrice(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64, false
	}
	return sum, true
}

func ValidateBid(a chain.Auction, price uint64, now time.Time) error {
	if isTerminal(a.Status) || !InBidWindow(a, now) {
		return fmt.Errorf("%w: window is [%d, %d], now %d", failure.ErrNotWithinBidPeriod, a.StartTime, a.EndTime(), now.Unix())
	}
	if a.BuyNowPrice != nil && price > *a.BuyNowPrice {
		return fmt.Errorf("%w: bid %d exceeds buy now price %d", failure.ErrBidTooHigh, price, *a.BuyNowPrice)
	}
	minimum, ok := minimumBid(a)
	if !ok {
		return fmt.Errorf("%w: highest bid %d plus tick %d overflows", failure.ErrBidTooLow, a.HighestBid.Price, a.TickSize)
	}
	if price < minimum {
		return fmt.Errorf("%w: bid %d below minimum %d", failure.ErrBidTooLow, price, minimum)
	}
	return nil
}

// ValidateWithdraw refuses withdrawing the standing highest bid or a bid
// that is no longer open.
func ValidateWithdraw(a chain.Auction, bidAddress solana.PublicKey, bid chain.Bid) error {
	if a.HighestBid != nil && (a.HighestBid.Bid.Equals(bidAddress) || a.HighestBid.Wallet.Equals(bid.Wallet)) {
		return fmt.Errorf("%w: bid %s is the highest bid", failure.ErrCannotWithdraw, bidAddress)
	}
	if bid.Status != chain.BidOpen && bid.Status != chain.BidLost {
		return fmt.Errorf("%w: bid %s is %s", failure.ErrCannotWithdraw, bidAddress, bid.Status)
	}
	return nil
}

func ValidateBuyNow(a chain.Auction, now time.Time) error {
	if a.BuyNowPrice == nil {
		return fmt.Errorf("%w: auction has no buy now price", failure.ErrBuyNowUnavailable)
	}
	if isTerminal(a.Status) || !InBidWindow(a, now) {
		return fmt.Errorf("%w: window is [%d, %d], now %d", failure.ErrNotWithinBidPeriod, a.StartTime, a.EndTime(), now.Unix())
	}
	return nil
}

func ValidateSettle(a chain.Auction, now time.Time) error {
	if isTerminal(a.Status) {
		return fmt.Errorf("%w: auction is %s", failure.ErrAuctionNotOver, a.Status)
	}
	if now.Unix() < a.EndTime() {
		return fmt.Errorf("%w: ends at %d, now %d", failure.ErrAuctionNotOver, a.EndTime(), now.Unix())
	}
	if a.HighestBid == nil {
		return failure.ErrAuctionHasNoBids
	}
	return nil
}

// Accept applies a validated bid to a snapshot and returns the successor
// snapshot. A bid landing within the extension period before the end pushes
// the end out by the extension increment. The input is never modified.
func Accept(a chain.Auction, bid chain.HighestBid, now time.Time) (chain.Auction, error) {
	if err := ValidateBid(a, bid.Price, now); err != nil {
		return a, err
	}
	next := a
	next.Status = chain.AuctionStarted
	next.HighestBid = &bid
	if a.ExtensionPeriod > 0 && a.EndTime()-now.Unix() <= a.ExtensionPeriod {
		next.BiddingPeriod += a.ExtensionIncrement
	}
	return next, nil
}

// BuyNow returns the snapshot after a buy-now purchase: the buyer becomes
// the winning bid and the auction completes.
func BuyNow(a chain.Auction, buyer chain.HighestBid, now time.Time) (chain.Auction, error) {
	if err := ValidateBuyNow(a, now); err != nil {
		return a, err
	}
	next := a
	buyer.Price = *a.BuyNowPrice
	next.HighestBid = &buyer
	next.Status = chain.AuctionComplete
	return next, nil
}

// ValidateMintPrint checks an edition drop can mint at now. Whitelisted
// wallets may mint from the whitelist time on.
func ValidateMintPrint(d chain.DropOrder, edition chain.MasterEdition, whitelisted bool, now time.Time) error {
	unix := now.Unix()
	opens := d.StartTime
	if whitelisted && d.WhitelistTime != nil && *d.WhitelistTime < opens {
		opens = *d.WhitelistTime
	}
	if unix < opens || unix > d.EndTime() {
		return fmt.Errorf("%w: sales open [%d, %d], now %d", failure.ErrDropNotActive, opens, d.EndTime(), unix)
	}
	if remaining, limited := edition.Remaining(); limited && remaining == 0 {
		return fmt.Errorf("%w: %d of %d printed", failure.ErrEditionSoldOut, edition.Supply, *edition.MaxSupply)
	}
	return nil
}

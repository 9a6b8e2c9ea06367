package market_test

import (
	"math"
	"testing"
	"time"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/failure"
	"github.com/coldbell/candyshop/internal/market"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var epoch = time.Unix(1_700_000_000, 0)

func key(seed byte) solana.PublicKey {
	var raw [32]byte
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	return solana.PublicKeyFromBytes(raw[:])
}

func u64(v uint64) *uint64 { return &v }

func sol(t *testing.T, amount string) uint64 {
	t.Helper()
	units, err := market.ToBaseUnits(amount, 9)
	require.NoError(t, err)
	return units
}

func runningAuction(t *testing.T) chain.Auction {
	return chain.Auction{
		Shop:          key(1),
		Mint:          key(2),
		Seller:        key(3),
		Status:        chain.AuctionStarted,
		StartingBid:   sol(t, "10"),
		StartTime:     epoch.Unix(),
		BiddingPeriod: 3600,
		TickSize:      sol(t, "1"),
	}
}

func TestCreateThenBidBeforeStart(t *testing.T) {
	owner := key(3)
	params := market.CreateParams{
		Seller:        owner,
		StartingBid:   sol(t, "10"),
		TickSize:      sol(t, "1"),
		StartTime:     epoch.Add(60 * time.Second),
		BiddingPeriod: time.Hour,
	}
	require.NoError(t, market.ValidateCreate(params, owner, epoch))

	auction := chain.Auction{
		Seller:        owner,
		StartingBid:   params.StartingBid,
		StartTime:     params.StartTime.Unix(),
		BiddingPeriod: int64(params.BiddingPeriod / time.Second),
		TickSize:      params.TickSize,
	}
	assert.Equal(t, chain.AuctionCreated, market.Classify(auction, epoch))

	err := market.ValidateBid(auction, sol(t, "10"), epoch)
	assert.ErrorIs(t, err, failure.ErrNotWithinBidPeriod)
}

func TestFirstBidMustMeetStartingBid(t *testing.T) {
	auction := runningAuction(t)
	now := epoch.Add(time.Minute)

	err := market.ValidateBid(auction, sol(t, "9"), now)
	assert.ErrorIs(t, err, failure.ErrBidTooLow)

	next, err := market.Accept(auction, chain.HighestBid{Price: sol(t, "10"), Bid: key(40), Wallet: key(41)}, now)
	require.NoError(t, err)
	require.NotNil(t, next.HighestBid)
	assert.Equal(t, sol(t, "10"), next.HighestBid.Price)
	assert.Nil(t, auction.HighestBid, "input snapshot must not change")
}

func TestBidMustClearTick(t *testing.T) {
	auction := runningAuction(t)
	auction.HighestBid = &chain.HighestBid{Price: sol(t, "10"), Bid: key(40), Wallet: key(41)}
	now := epoch.Add(time.Minute)

	err := market.ValidateBid(auction, sol(t, "10.5"), now)
	assert.ErrorIs(t, err, failure.ErrBidTooLow)

	assert.NoError(t, market.ValidateBid(auction, sol(t, "11"), now))
	err = market.ValidateBid(auction, sol(t, "11")-1, now)
	assert.ErrorIs(t, err, failure.ErrBidTooLow)
}

func TestMinimumBidSaturates(t *testing.T) {
	auction := runningAuction(t)
	auction.TickSize = 2
	auction.HighestBid = &chain.HighestBid{Price: math.MaxUint64 - 1, Bid: key(40), Wallet: key(41)}
	now := epoch.Add(time.Minute)

	assert.Equal(t, uint64(math.MaxUint64), market.MinimumBid(auction))
	for _, price := range []uint64{5, math.MaxUint64 - 1, math.MaxUint64} {
		assert.ErrorIs(t, market.ValidateBid(auction, price, now), failure.ErrBidTooLow, price)
	}
}

func TestBidAboveBuyNow(t *testing.T) {
	auction := runningAuction(t)
	auction.BuyNowPrice = u64(sol(t, "50"))
	now := epoch.Add(time.Minute)

	err := market.ValidateBid(auction, sol(t, "51"), now)
	assert.ErrorIs(t, err, failure.ErrBidTooHigh)
	assert.NoError(t, market.ValidateBuyNow(auction, now))

	done, err := market.BuyNow(auction, chain.HighestBid{Bid: key(40), Wallet: key(41)}, now)
	require.NoError(t, err)
	assert.Equal(t, chain.AuctionComplete, done.Status)
	assert.Equal(t, sol(t, "50"), done.HighestBid.Price)
}

func TestBuyNowUnavailable(t *testing.T) {
	err := market.ValidateBuyNow(runningAuction(t), epoch.Add(time.Minute))
	assert.ErrorIs(t, err, failure.ErrBuyNowUnavailable)
}

func TestBidWindowBoundaries(t *testing.T) {
	auction := runningAuction(t)
	price := auction.StartingBid

	assert.NoError(t, market.ValidateBid(auction, price, time.Unix(auction.StartTime, 0)))
	assert.NoError(t, market.ValidateBid(auction, price, time.Unix(auction.EndTime(), 0)))
	assert.ErrorIs(t, market.ValidateBid(auction, price, time.Unix(auction.EndTime()+1, 0)), failure.ErrNotWithinBidPeriod)

	auction.Status = chain.AuctionCancelled
	assert.ErrorIs(t, market.ValidateBid(auction, price, epoch.Add(time.Minute)), failure.ErrNotWithinBidPeriod)
}

func TestValidateCreate(t *testing.T) {
	owner := key(3)
	base := market.CreateParams{
		Seller:        owner,
		StartingBid:   10,
		TickSize:      1,
		StartTime:     epoch,
		BiddingPeriod: time.Hour,
	}

	cases := map[string]func(p *market.CreateParams){
		"zero tick":          func(p *market.CreateParams) { p.TickSize = 0 },
		"start too old":      func(p *market.CreateParams) { p.StartTime = epoch.Add(-61 * time.Second) },
		"buy now too low":    func(p *market.CreateParams) { p.BuyNowPrice = u64(10) },
		"not the shop owner": func(p *market.CreateParams) { p.Seller = key(99) },
		"no bidding period":  func(p *market.CreateParams) { p.BiddingPeriod = 0 },
		"tick overflows":     func(p *market.CreateParams) { p.StartingBid, p.TickSize = math.MaxUint64, 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			params := base
			mutate(&params)
			assert.ErrorIs(t, market.ValidateCreate(params, owner, epoch), failure.ErrInvalidAuctionCreationParams)
		})
	}

	ok := base
	ok.StartTime = epoch.Add(-60 * time.Second)
	ok.BuyNowPrice = u64(11)
	assert.NoError(t, market.ValidateCreate(ok, owner, epoch))
}

func TestValidateCancel(t *testing.T) {
	auction := runningAuction(t)
	before := time.Unix(auction.StartTime-10, 0)
	during := time.Unix(auction.StartTime+10, 0)
	after := time.Unix(auction.EndTime()+10, 0)
	strict := market.CancelPolicy{}
	lenient := market.CancelPolicy{AllowBidlessCancelInWindow: true}

	assert.NoError(t, market.ValidateCancel(auction, before, strict))
	assert.NoError(t, market.ValidateCancel(auction, after, strict), "expired without bids")

	// Started with no bids: the reference check refuses, the lenient
	// reading allows. Which one the deployed program enforces is unconfirmed.
	assert.ErrorIs(t, market.ValidateCancel(auction, during, strict), failure.ErrCannotCancel)
	assert.NoError(t, market.ValidateCancel(auction, during, lenient))

	auction.HighestBid = &chain.HighestBid{Price: auction.StartingBid, Bid: key(40), Wallet: key(41)}
	assert.ErrorIs(t, market.ValidateCancel(auction, during, lenient), failure.ErrCannotCancel)
	assert.ErrorIs(t, market.ValidateCancel(auction, after, lenient), failure.ErrCannotCancel)

	auction.HighestBid = nil
	auction.Status = chain.AuctionComplete
	assert.ErrorIs(t, market.ValidateCancel(auction, before, strict), failure.ErrCannotCancel)
}

func TestValidateWithdraw(t *testing.T) {
	auction := runningAuction(t)
	highest := chain.Bid{Auction: key(1), Wallet: key(41), Price: auction.StartingBid}
	outbid := chain.Bid{Auction: key(1), Wallet: key(51), Price: auction.StartingBid, Status: chain.BidLost}
	auction.HighestBid = &chain.HighestBid{Price: highest.Price, Bid: key(40), Wallet: highest.Wallet}

	assert.ErrorIs(t, market.ValidateWithdraw(auction, key(40), highest), failure.ErrCannotWithdraw)
	assert.NoError(t, market.ValidateWithdraw(auction, key(50), outbid))

	outbid.Status = chain.BidWithdrawn
	assert.ErrorIs(t, market.ValidateWithdraw(auction, key(50), outbid), failure.ErrCannotWithdraw)
}

func TestValidateSettle(t *testing.T) {
	auction := runningAuction(t)
	during := time.Unix(auction.StartTime+10, 0)
	end := time.Unix(auction.EndTime(), 0)

	assert.ErrorIs(t, market.ValidateSettle(auction, during), failure.ErrAuctionNotOver)
	assert.ErrorIs(t, market.ValidateSettle(auction, end), failure.ErrAuctionHasNoBids)
	assert.Equal(t, chain.AuctionExpired, market.Classify(auction, end.Add(time.Second)))

	auction.HighestBid = &chain.HighestBid{Price: auction.StartingBid, Bid: key(40), Wallet: key(41)}
	assert.NoError(t, market.ValidateSettle(auction, end))
	assert.True(t, market.AwaitingSettlement(auction, end))
	assert.Equal(t, chain.AuctionStarted, market.Classify(auction, end.Add(time.Second)))
}

func TestAcceptExtendsLateBids(t *testing.T) {
	auction := runningAuction(t)
	auction.ExtensionPeriod = 300
	auction.ExtensionIncrement = 120

	early, err := market.Accept(auction, chain.HighestBid{Price: auction.StartingBid, Wallet: key(41)}, time.Unix(auction.StartTime+10, 0))
	require.NoError(t, err)
	assert.Equal(t, auction.EndTime(), early.EndTime())

	late, err := market.Accept(early, chain.HighestBid{Price: market.MinimumBid(early), Wallet: key(51)}, time.Unix(auction.EndTime()-60, 0))
	require.NoError(t, err)
	assert.Equal(t, auction.EndTime()+120, late.EndTime())

	assert.NoError(t, market.ValidateBid(late, market.MinimumBid(late), time.Unix(auction.EndTime()+60, 0)))
}

func TestValidateMintPrint(t *testing.T) {
	whitelist := epoch.Unix() - 600
	drop := chain.DropOrder{Price: 1, StartTime: epoch.Unix(), SalesPeriod: 3600, WhitelistTime: &whitelist}
	open := chain.MasterEdition{Supply: 1, MaxSupply: u64(5)}

	early := epoch.Add(-5 * time.Minute)
	assert.ErrorIs(t, market.ValidateMintPrint(drop, open, false, early), failure.ErrDropNotActive)
	assert.NoError(t, market.ValidateMintPrint(drop, open, true, early))
	assert.ErrorIs(t, market.ValidateMintPrint(drop, open, false, epoch.Add(2*time.Hour)), failure.ErrDropNotActive)

	soldOut := chain.MasterEdition{Supply: 5, MaxSupply: u64(5)}
	assert.ErrorIs(t, market.ValidateMintPrint(drop, soldOut, false, epoch), failure.ErrEditionSoldOut)
	assert.NoError(t, market.ValidateMintPrint(drop, chain.MasterEdition{Supply: 1000}, false, epoch))
}

// Every accepted bid clears the previous highest bid by at least one tick,
// and rejected bids leave the snapshot untouched.
func TestAcceptedBidsAreMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tick := rapid.Uint64Range(1, 1_000).Draw(t, "tick").(uint64)
		auction := chain.Auction{
			Status:        chain.AuctionStarted,
			StartingBid:   rapid.Uint64Range(0, 1_000_000).Draw(t, "startingBid").(uint64),
			StartTime:     epoch.Unix(),
			BiddingPeriod: 86_400,
			TickSize:      tick,
		}
		now := epoch.Add(time.Minute)
		steps := rapid.IntRange(1, 40).Draw(t, "steps").(int)

		for i := 0; i < steps; i++ {
			floor := market.MinimumBid(auction)
			price := floor - min(floor, tick) + rapid.Uint64Range(0, 3*tick).Draw(t, "offset").(uint64)
			previous := auction.HighestBid

			next, err := market.Accept(auction, chain.HighestBid{Price: price, Wallet: key(byte(i))}, now)
			if price < floor {
				require.ErrorIs(t, err, failure.ErrBidTooLow)
				require.Equal(t, auction, next)
				continue
			}
			require.NoError(t, err)
			if previous != nil {
				require.GreaterOrEqual(t, next.HighestBid.Price, previous.Price+tick)
			}
			auction = next
		}
	})
}

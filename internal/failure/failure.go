package failure

import "errors"

// Guard and lifecycle failures. Callers match them with errors.Is; the
// returned errors carry extra context wrapped around the sentinel.
var (
	ErrInsufficientBalance           = errors.New("insufficient balance")
	ErrNFTUnavailable                = errors.New("nft unavailable")
	ErrTradeStateExists              = errors.New("trade state exists")
	ErrInvalidNFTMetadata            = errors.New("invalid nft metadata")
	ErrSellerATACannotHaveDelegate   = errors.New("seller ata cannot have delegate")
	ErrBuyerATACannotHaveDelegate    = errors.New("buyer ata cannot have delegate")
	ErrInsufficientFeeAccountBalance = errors.New("insufficient fee account balance")
	ErrInvalidAuctionCreationParams  = errors.New("invalid auction creation params")
	ErrCannotCancel                  = errors.New("cannot cancel")
	ErrNotWithinBidPeriod            = errors.New("not within bid period")
	ErrBidTooHigh                    = errors.New("bid too high")
	ErrBidTooLow                     = errors.New("bid too low")
	ErrCannotWithdraw                = errors.New("cannot withdraw")
	ErrBuyNowUnavailable             = errors.New("buy now unavailable")
	ErrAuctionNotOver                = errors.New("auction not over")
	ErrAuctionHasNoBids              = errors.New("auction has no bids")
	ErrAuctionDoesNotExist           = errors.New("auction does not exist")
	ErrBidDoesNotExist               = errors.New("bid does not exist")
	ErrDropNotActive                 = errors.New("edition drop not active")
	ErrEditionSoldOut                = errors.New("edition sold out")
	ErrInvalidKey                    = errors.New("invalid public key")
)

// Network-layer failures.
var (
	ErrTransactionFailed = errors.New("transaction failed")
	ErrTimeout           = errors.New("transaction confirmation timeout")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInsufficientBalance, "InsufficientBalance"},
	{ErrNFTUnavailable, "NFTUnavailable"},
	{ErrTradeStateExists, "TradeStateExists"},
	{ErrInvalidNFTMetadata, "InvalidNFTMetadata"},
	{ErrSellerATACannotHaveDelegate, "SellerATACannotHaveDelegate"},
	{ErrBuyerATACannotHaveDelegate, "BuyerATACannotHaveDelegate"},
	{ErrInsufficientFeeAccountBalance, "InsufficientFeeAccountBalance"},
	{ErrInvalidAuctionCreationParams, "InvalidAuctionCreationParams"},
	{ErrCannotCancel, "CannotCancel"},
	{ErrNotWithinBidPeriod, "NotWithinBidPeriod"},
	{ErrBidTooHigh, "BidTooHigh"},
	{ErrBidTooLow, "BidTooLow"},
	{ErrCannotWithdraw, "CannotWithdraw"},
	{ErrBuyNowUnavailable, "BuyNowUnavailable"},
	{ErrAuctionNotOver, "AuctionNotOver"},
	{ErrAuctionHasNoBids, "AuctionHasNoBids"},
	{ErrAuctionDoesNotExist, "AuctionDoesNotExist"},
	{ErrBidDoesNotExist, "BidDoesNotExist"},
	{ErrDropNotActive, "DropNotActive"},
	{ErrEditionSoldOut, "EditionSoldOut"},
	{ErrInvalidKey, "InvalidKey"},
	{ErrTransactionFailed, "TransactionFailed"},
	{ErrTimeout, "Timeout"},
}

// Kind returns the taxonomy name of err, or "" when err is not one of the
// known failure kinds.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// Retryable reports whether err came from the network layer rather than a
// client-side guard. Guard failures need fresh chain state before a retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransactionFailed)
}

package txbuilder

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/pda"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// MaxCreatorsSingleTx is the largest creator count for which buy and
// execute-sale still fit in one transaction.
const MaxCreatorsSingleTx = 6

var (
	sellWithProxyDisc                 = anchorInstructionDiscriminator("sell_with_proxy")
	cancelWithProxyDisc               = anchorInstructionDiscriminator("cancel_with_proxy")
	buyWithProxyDisc                  = anchorInstructionDiscriminator("buy_with_proxy")
	executeSaleWithProxyDisc          = anchorInstructionDiscriminator("execute_sale_with_proxy")
	createCandyShopDisc               = anchorInstructionDiscriminator("create_candy_shop")
	candyShopWithdrawFromTreasuryDisc = anchorInstructionDiscriminator("candy_shop_withdraw_from_treasury")
	createAuctionDisc                 = anchorInstructionDiscriminator("create_auction")
	cancelAuctionDisc                 = anchorInstructionDiscriminator("cancel_auction")
	makeBidDisc                       = anchorInstructionDiscriminator("make_bid")
	withdrawBidDisc                   = anchorInstructionDiscriminator("withdraw_bid")
	buyNowDisc                        = anchorInstructionDiscriminator("buy_now")
	settleAndDistributeDisc           = anchorInstructionDiscriminator("settle_and_distribute_proceeds")
	commitNftDisc                     = anchorInstructionDiscriminator("commit_nft")
	mintPrintDisc                     = anchorInstructionDiscriminator("mint_print")
)

func anchorInstructionDiscriminator(ixName string) [8]byte {
	hash := sha256.Sum256([]byte("global:" + ixName))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}

// Tx is one transaction of a plan. Signers are extra local keys that must
// sign besides the wallet, such as a freshly generated mint.
type Tx struct {
	Label        string
	Instructions []solana.Instruction
	Signers      []solana.PrivateKey
}

// Plan is an ordered list of transactions that together perform one
// operation. Fingerprint is the derived address identifying the operation
// (trade state, auction, bid or drop order).
type Plan struct {
	Operation   string
	Fingerprint solana.PublicKey
	Txs         []Tx
}

type Option func(*Builder)

func WithComputeUnitLimit(limit uint32) Option {
	return func(b *Builder) { b.computeUnitLimit = limit }
}

func WithComputeUnitPrice(microLamports uint64) Option {
	return func(b *Builder) { b.computeUnitPrice = microLamports }
}

// Builder assembles instructions for one shop.
type Builder struct {
	shop             pda.ShopAddresses
	computeUnitLimit uint32
	computeUnitPrice uint64
}

func New(shop pda.ShopAddresses, opts ...Option) *Builder {
	b := &Builder{shop: shop}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) Shop() pda.ShopAddresses {
	return b.shop
}

// tx prefixes instructions with the configured compute budget.
func (b *Builder) tx(label string, instructions ...solana.Instruction) (Tx, error) {
	out := make([]solana.Instruction, 0, len(instructions)+2)
	if b.computeUnitLimit > 0 {
		ix, err := computebudget.NewSetComputeUnitLimitInstruction(b.computeUnitLimit).ValidateAndBuild()
		if err != nil {
			return Tx{}, fmt.Errorf("build compute unit limit instruction for %s: %w", label, err)
		}
		out = append(out, ix)
	}
	if b.computeUnitPrice > 0 {
		ix, err := computebudget.NewSetComputeUnitPriceInstruction(b.computeUnitPrice).ValidateAndBuild()
		if err != nil {
			return Tx{}, fmt.Errorf("build compute unit price instruction for %s: %w", label, err)
		}
		out = append(out, ix)
	}
	return Tx{Label: label, Instructions: append(out, instructions...)}, nil
}

// ATARequest names an associated token account that must exist.
type ATARequest struct {
	Owner solana.PublicKey
	Mint  solana.PublicKey
}

// CreateATAs builds the prerequisite transaction creating missing ATAs.
// It returns ok=false when nothing is missing.
func (b *Builder) CreateATAs(payer solana.PublicKey, missing []ATARequest) (Tx, bool, error) {
	if len(missing) == 0 {
		return Tx{}, false, nil
	}
	instructions := make([]solana.Instruction, 0, len(missing))
	for _, req := range missing {
		ix, err := associatedtokenaccount.NewCreateInstruction(payer, req.Owner, req.Mint).ValidateAndBuild()
		if err != nil {
			return Tx{}, false, fmt.Errorf("build create ata instruction for %s/%s: %w", req.Owner, req.Mint, err)
		}
		instructions = append(instructions, ix)
	}
	tx, err := b.tx("create_associated_token_accounts", instructions...)
	if err != nil {
		return Tx{}, false, err
	}
	return tx, true, nil
}

// creatorAccounts expands metadata creators into the remaining-accounts
// tail: the creator wallet for native treasuries, or the creator followed by
// its treasury-mint ATA otherwise.
func creatorAccounts(creators []chain.Creator, treasuryMint solana.PublicKey) (solana.AccountMetaSlice, error) {
	out := make(solana.AccountMetaSlice, 0, 2*len(creators))
	for _, creator := range creators {
		if pda.IsNative(treasuryMint) {
			out = append(out, solana.NewAccountMeta(creator.Address, true, false))
			continue
		}
		ata, _, err := pda.DeriveATA(creator.Address, treasuryMint)
		if err != nil {
			return nil, fmt.Errorf("derive creator ata for %s: %w", creator.Address, err)
		}
		out = append(out,
			solana.NewAccountMeta(creator.Address, false, false),
			solana.NewAccountMeta(ata, true, false),
		)
	}
	return out, nil
}

// args encodes anchor instruction data: discriminator then borsh fields.
type args struct {
	buf bytes.Buffer
	enc *bin.Encoder
	err error
}

func newArgs(discriminator [8]byte) *args {
	a := &args{}
	a.enc = bin.NewBorshEncoder(&a.buf)
	if err := a.enc.WriteBytes(discriminator[:], false); err != nil {
		a.err = err
	}
	return a
}

func (a *args) u8(v uint8) *args {
	if a.err == nil {
		a.err = a.enc.WriteUint8(v)
	}
	return a
}

func (a *args) u16(v uint16) *args {
	if a.err == nil {
		a.err = a.enc.WriteUint16(v, binary.LittleEndian)
	}
	return a
}

func (a *args) u64(v uint64) *args {
	if a.err == nil {
		a.err = a.enc.WriteUint64(v, binary.LittleEndian)
	}
	return a
}

func (a *args) i64(v int64) *args {
	if a.err == nil {
		a.err = a.enc.WriteInt64(v, binary.LittleEndian)
	}
	return a
}

func (a *args) boolean(v bool) *args {
	if v {
		return a.u8(1)
	}
	return a.u8(0)
}

func (a *args) optionalU64(v *uint64) *args {
	if v == nil {
		return a.u8(0)
	}
	return a.u8(1).u64(*v)
}

func (a *args) optionalI64(v *int64) *args {
	if v == nil {
		return a.u8(0)
	}
	return a.u8(1).i64(*v)
}

func (a *args) bytes() ([]byte, error) {
	if a.err != nil {
		return nil, fmt.Errorf("encode instruction args: %w", a.err)
	}
	return a.buf.Bytes(), nil
}

func instruction(programID solana.PublicKey, accounts solana.AccountMetaSlice, data *args) (solana.Instruction, error) {
	raw, err := data.bytes()
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, accounts, raw), nil
}

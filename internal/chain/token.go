package chain

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	token_metadata "github.com/gagliardetto/metaplex-go/clients/token-metadata"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// tokenAccountSize is the length of an SPL token account.
const tokenAccountSize = 165

// DecodeTokenAccount decodes an SPL token account.
func DecodeTokenAccount(data []byte) (*token.Account, error) {
	if len(data) < tokenAccountSize {
		return nil, fmt.Errorf("decode token account: short data (%d bytes)", len(data))
	}
	var out token.Account
	if err := bin.NewBinDecoder(data[:tokenAccountSize]).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode token account: %w", err)
	}
	return &out, nil
}

func DecodeMetadata(data []byte) (*token_metadata.Metadata, error) {
	var out token_metadata.Metadata
	if err := bin.NewBorshDecoder(data).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &out, nil
}

// Creator is one royalty recipient of an NFT in metadata order.
type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// MetadataCreators returns the creators of md in metadata order.
func MetadataCreators(md *token_metadata.Metadata) []Creator {
	if md == nil || md.Data.Creators == nil {
		return nil
	}
	out := make([]Creator, 0, len(*md.Data.Creators))
	for _, c := range *md.Data.Creators {
		out = append(out, Creator{Address: c.Address, Verified: c.Verified, Share: c.Share})
	}
	return out
}

const masterEditionV2Key = 6

type MasterEdition struct {
	Supply    uint64
	MaxSupply *uint64
}

// Remaining reports how many prints can still be minted. ok is false for
// unlimited editions.
func (m MasterEdition) Remaining() (remaining uint64, ok bool) {
	if m.MaxSupply == nil {
		return 0, false
	}
	if m.Supply >= *m.MaxSupply {
		return 0, true
	}
	return *m.MaxSupply - m.Supply, true
}

func DecodeMasterEdition(data []byte) (*MasterEdition, error) {
	r := &fieldReader{dec: bin.NewBorshDecoder(data)}
	key := r.u8()
	if r.err == nil && key != masterEditionV2Key {
		return nil, fmt.Errorf("decode master edition: unexpected key %d", key)
	}
	out := &MasterEdition{Supply: r.u64()}
	out.MaxSupply = r.optionalU64()
	if r.err != nil {
		return nil, fmt.Errorf("decode master edition: %w", r.err)
	}
	return out, nil
}

func (m MasterEdition) Encode() ([]byte, error) {
	w := &fieldWriter{}
	w.enc = bin.NewBorshEncoder(&w.buf)
	w.u8(masterEditionV2Key)
	w.u64(m.Supply)
	w.optionalU64(m.MaxSupply)
	return w.bytes()
}

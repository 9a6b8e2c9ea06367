// Package chaintest provides an in-memory chain.Reader and account fixtures.
package chaintest

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"

	"github.com/coldbell/candyshop/internal/chain"
	bin "github.com/gagliardetto/binary"
	token_metadata "github.com/gagliardetto/metaplex-go/clients/token-metadata"
	"github.com/gagliardetto/solana-go"
)

// Fake is a map-backed chain.Reader safe for concurrent use.
type Fake struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]chain.Account
	reads    int
}

func NewFake() *Fake {
	return &Fake{accounts: make(map[solana.PublicKey]chain.Account)}
}

func (f *Fake) Account(_ context.Context, key solana.PublicKey) (*chain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.lookup(key), nil
}

func (f *Fake) Accounts(_ context.Context, keys []solana.PublicKey) ([]*chain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	out := make([]*chain.Account, len(keys))
	for i, key := range keys {
		out[i] = f.lookup(key)
	}
	return out, nil
}

func (f *Fake) lookup(key solana.PublicKey) *chain.Account {
	account, ok := f.accounts[key]
	if !ok {
		return nil
	}
	account.Data = bytes.Clone(account.Data)
	return &account
}

// Reads counts Account and Accounts calls.
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *Fake) Put(account chain.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[account.Key] = account
}

func (f *Fake) PutData(key, owner solana.PublicKey, data []byte) {
	f.Put(chain.Account{Key: key, Owner: owner, Lamports: 1_000_000, Data: data})
}

func (f *Fake) PutLamports(key solana.PublicKey, lamports uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account := f.accounts[key]
	account.Key = key
	account.Lamports = lamports
	f.accounts[key] = account
}

func (f *Fake) Delete(key solana.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, key)
}

func (f *Fake) Has(key solana.PublicKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.accounts[key]
	return ok
}

// TokenAccountData lays out a 165-byte initialized SPL token account.
func TokenAccountData(mint, owner solana.PublicKey, amount uint64, delegate *solana.PublicKey) []byte {
	var buf bytes.Buffer
	buf.Write(mint.Bytes())
	buf.Write(owner.Bytes())
	buf.Write(binary.LittleEndian.AppendUint64(nil, amount))
	if delegate != nil {
		buf.Write(binary.LittleEndian.AppendUint32(nil, 1))
		buf.Write(delegate.Bytes())
	} else {
		buf.Write(make([]byte, 4+solana.PublicKeyLength))
	}
	buf.WriteByte(1) // initialized
	buf.Write(make([]byte, 4+8))
	if delegate != nil {
		buf.Write(binary.LittleEndian.AppendUint64(nil, amount))
	} else {
		buf.Write(make([]byte, 8))
	}
	buf.Write(make([]byte, 4+solana.PublicKeyLength))
	return buf.Bytes()
}

// MetadataData encodes a metadata account for mint with the given creators.
// A nil creators slice encodes no creators at all.
func MetadataData(mint solana.PublicKey, creators []chain.Creator) []byte {
	md := token_metadata.Metadata{
		Mint: mint,
		Data: token_metadata.Data{
			Name:                 "Fixture",
			Symbol:               "FIX",
			Uri:                  "https://example.invalid/fixture.json",
			SellerFeeBasisPoints: 500,
		},
	}
	if creators != nil {
		list := make([]token_metadata.Creator, 0, len(creators))
		for _, c := range creators {
			list = append(list, token_metadata.Creator{Address: c.Address, Verified: c.Verified, Share: c.Share})
		}
		md.Data.Creators = &list
	}

	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(md); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Must unwraps an Encode result in fixtures.
func Must(data []byte, err error) []byte {
	if err != nil {
		panic(err)
	}
	return data
}

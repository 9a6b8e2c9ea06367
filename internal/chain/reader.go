package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Account is the part of an on-chain account the client reasons about.
type Account struct {
	Key      solana.PublicKey
	Lamports uint64
	Owner    solana.PublicKey
	Data     []byte
}

// Reader fetches raw accounts. A missing account is reported as a nil
// *Account with a nil error.
type Reader interface {
	Account(ctx context.Context, key solana.PublicKey) (*Account, error)
	Accounts(ctx context.Context, keys []solana.PublicKey) ([]*Account, error)
}

// RPC is the subset of *rpc.Client used by RPCReader.
type RPC interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey, opts *rpc.GetMultipleAccountsOpts) (*rpc.GetMultipleAccountsResult, error)
}

// maxMultipleAccounts is the getMultipleAccounts request ceiling.
const maxMultipleAccounts = 100

type RPCReader struct {
	client     RPC
	commitment rpc.CommitmentType
}

func NewRPCReader(client RPC, commitment rpc.CommitmentType) *RPCReader {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &RPCReader{client: client, commitment: commitment}
}

func (r *RPCReader) Account(ctx context.Context, key solana.PublicKey) (*Account, error) {
	resp, err := r.client.GetAccountInfoWithOpts(ctx, key, &rpc.GetAccountInfoOpts{Commitment: r.commitment})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch account %s: %w", key, err)
	}
	if resp == nil || resp.Value == nil {
		return nil, nil
	}
	return fromRPC(key, resp.Value), nil
}

func (r *RPCReader) Accounts(ctx context.Context, keys []solana.PublicKey) ([]*Account, error) {
	out := make([]*Account, 0, len(keys))
	for start := 0; start < len(keys); start += maxMultipleAccounts {
		end := min(start+maxMultipleAccounts, len(keys))
		chunk := keys[start:end]

		resp, err := r.client.GetMultipleAccountsWithOpts(ctx, chunk, &rpc.GetMultipleAccountsOpts{Commitment: r.commitment})
		if err != nil {
			return nil, fmt.Errorf("fetch %d accounts: %w", len(chunk), err)
		}
		if resp == nil || len(resp.Value) != len(chunk) {
			return nil, fmt.Errorf("fetch %d accounts: unexpected response length", len(chunk))
		}
		for i, value := range resp.Value {
			if value == nil {
				out = append(out, nil)
				continue
			}
			out = append(out, fromRPC(chunk[i], value))
		}
	}
	return out, nil
}

func fromRPC(key solana.PublicKey, value *rpc.Account) *Account {
	account := &Account{Key: key, Lamports: value.Lamports, Owner: value.Owner}
	if value.Data != nil {
		account.Data = value.Data.GetBinary()
	}
	return account
}

// Lamports returns the balance of key, zero when the account does not exist.
func Lamports(ctx context.Context, reader Reader, key solana.PublicKey) (uint64, error) {
	account, err := reader.Account(ctx, key)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return account.Lamports, nil
}

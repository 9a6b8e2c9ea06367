package submit

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Signer produces the wallet signature of a transaction. LocalKeypair holds
// the key in memory; ExternalSigner delegates to a wallet that never exposes
// its key.
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

type LocalKeypair struct {
	key solana.PrivateKey
}

func NewLocalKeypair(key solana.PrivateKey) *LocalKeypair {
	return &LocalKeypair{key: key}
}

// LoadKeypair reads a solana-keygen JSON keypair file.
func LoadKeypair(path string) (*LocalKeypair, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %q: %w", path, err)
	}
	return NewLocalKeypair(key), nil
}

func (k *LocalKeypair) PublicKey() solana.PublicKey {
	return k.key.PublicKey()
}

func (k *LocalKeypair) SignTransaction(_ context.Context, tx *solana.Transaction) error {
	return signWith(tx, k.key.PublicKey(), func(message []byte) (solana.Signature, error) {
		return k.key.Sign(message)
	})
}

// SignFunc signs a serialized transaction message.
type SignFunc func(ctx context.Context, message []byte) (solana.Signature, error)

type ExternalSigner struct {
	key  solana.PublicKey
	sign SignFunc
}

func NewExternalSigner(key solana.PublicKey, sign SignFunc) *ExternalSigner {
	return &ExternalSigner{key: key, sign: sign}
}

func (s *ExternalSigner) PublicKey() solana.PublicKey {
	return s.key
}

func (s *ExternalSigner) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	return signWith(tx, s.key, func(message []byte) (solana.Signature, error) {
		return s.sign(ctx, message)
	})
}

// signWith places key's signature over the message into its slot.
func signWith(tx *solana.Transaction, key solana.PublicKey, sign func([]byte) (solana.Signature, error)) error {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != required {
		signatures := make([]solana.Signature, required)
		copy(signatures, tx.Signatures)
		tx.Signatures = signatures
	}
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if !tx.Message.AccountKeys[i].Equals(key) {
			continue
		}
		signature, err := sign(message)
		if err != nil {
			return fmt.Errorf("sign as %s: %w", key, err)
		}
		tx.Signatures[i] = signature
		return nil
	}
	return fmt.Errorf("%s is not a required signer", key)
}

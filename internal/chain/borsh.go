package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var errDiscriminatorMismatch = errors.New("account discriminator mismatch")

// AccountDiscriminator is the 8-byte anchor prefix of an account type.
func AccountDiscriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte("account:" + name))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}

// fieldReader wraps a borsh decoder and keeps the first error, so decoders
// read a whole layout and check once at the end.
type fieldReader struct {
	dec *bin.Decoder
	err error
}

func newFieldReader(data []byte, discriminator [8]byte) *fieldReader {
	r := &fieldReader{dec: bin.NewBorshDecoder(data)}
	prefix, err := r.dec.ReadNBytes(len(discriminator))
	if err != nil {
		r.err = fmt.Errorf("read discriminator: %w", err)
		return r
	}
	if !bytes.Equal(prefix, discriminator[:]) {
		r.err = errDiscriminatorMismatch
	}
	return r
}

func (r *fieldReader) key() solana.PublicKey {
	if r.err != nil {
		return solana.PublicKey{}
	}
	raw, err := r.dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		r.err = err
		return solana.PublicKey{}
	}
	return solana.PublicKeyFromBytes(raw)
}

func (r *fieldReader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	r.err = err
	return v
}

func (r *fieldReader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint16(binary.LittleEndian)
	r.err = err
	return v
}

func (r *fieldReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(binary.LittleEndian)
	r.err = err
	return v
}

func (r *fieldReader) i64() int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt64(binary.LittleEndian)
	r.err = err
	return v
}

func (r *fieldReader) boolean() bool {
	return r.u8() != 0
}

// some reads a borsh Option tag.
func (r *fieldReader) some() bool {
	tag := r.u8()
	if r.err == nil && tag > 1 {
		r.err = fmt.Errorf("invalid option tag %d", tag)
	}
	return tag == 1
}

func (r *fieldReader) optionalU64() *uint64 {
	if !r.some() {
		return nil
	}
	v := r.u64()
	return &v
}

func (r *fieldReader) optionalI64() *int64 {
	if !r.some() {
		return nil
	}
	v := r.i64()
	return &v
}

// fieldWriter is the encoding counterpart of fieldReader.
type fieldWriter struct {
	buf bytes.Buffer
	enc *bin.Encoder
	err error
}

func newFieldWriter(discriminator [8]byte) *fieldWriter {
	w := &fieldWriter{}
	w.enc = bin.NewBorshEncoder(&w.buf)
	w.raw(discriminator[:])
	return w
}

func (w *fieldWriter) raw(b []byte) {
	if w.err == nil {
		w.err = w.enc.WriteBytes(b, false)
	}
}

func (w *fieldWriter) key(k solana.PublicKey) { w.raw(k.Bytes()) }

func (w *fieldWriter) u8(v uint8) {
	if w.err == nil {
		w.err = w.enc.WriteUint8(v)
	}
}

func (w *fieldWriter) u16(v uint16) {
	if w.err == nil {
		w.err = w.enc.WriteUint16(v, binary.LittleEndian)
	}
}

func (w *fieldWriter) u64(v uint64) {
	if w.err == nil {
		w.err = w.enc.WriteUint64(v, binary.LittleEndian)
	}
}

func (w *fieldWriter) i64(v int64) {
	if w.err == nil {
		w.err = w.enc.WriteInt64(v, binary.LittleEndian)
	}
}

func (w *fieldWriter) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *fieldWriter) optionalU64(v *uint64) {
	if v == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.u64(*v)
}

func (w *fieldWriter) optionalI64(v *int64) {
	if v == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.i64(*v)
}

func (w *fieldWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

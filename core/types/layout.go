package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"ledgerprograms/crypto"
)

// DiscriminatorLength is the size of the record type tag that prefixes every
// program record.
const DiscriminatorLength = 8

// Discriminator returns the type tag for the named record.
func Discriminator(name string) [DiscriminatorLength]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var out [DiscriminatorLength]byte
	copy(out[:], sum[:DiscriminatorLength])
	return out
}

// HasDiscriminator reports whether data is tagged as the named record.
func HasDiscriminator(data []byte, name string) bool {
	tag := Discriminator(name)
	return len(data) >= DiscriminatorLength && bytes.Equal(data[:DiscriminatorLength], tag[:])
}

// LayoutWriter serialises a fixed-width little-endian record.
type LayoutWriter struct {
	buf []byte
}

// NewLayoutWriter starts a record of the given name. size is the full record
// length including the discriminator and is only used to preallocate.
func NewLayoutWriter(name string, size int) *LayoutWriter {
	tag := Discriminator(name)
	buf := make([]byte, 0, size)
	buf = append(buf, tag[:]...)
	return &LayoutWriter{buf: buf}
}

func (w *LayoutWriter) U8(v uint8) *LayoutWriter {
	w.buf = append(w.buf, v)
	return w
}

func (w *LayoutWriter) Bool(v bool) *LayoutWriter {
	if v {
		return w.U8(1)
	}
	return w.U8(0)
}

func (w *LayoutWriter) U16(v uint16) *LayoutWriter {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

func (w *LayoutWriter) U64(v uint64) *LayoutWriter {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

func (w *LayoutWriter) I64(v int64) *LayoutWriter {
	return w.U64(uint64(v))
}

func (w *LayoutWriter) Address(a crypto.Address) *LayoutWriter {
	w.buf = append(w.buf, a[:]...)
	return w
}

// Fixed writes b zero-padded to width bytes. b must not exceed width.
func (w *LayoutWriter) Fixed(b []byte, width int) *LayoutWriter {
	padded := make([]byte, width)
	copy(padded, b)
	w.buf = append(w.buf, padded...)
	return w
}

// Bytes returns the encoded record.
func (w *LayoutWriter) Bytes() []byte {
	return w.buf
}

// LayoutReader decodes a record written by LayoutWriter. Reads past the end
// record an error that is reported by Err; subsequent reads return zero
// values.
type LayoutReader struct {
	buf []byte
	off int
	err error
}

// NewLayoutReader validates the discriminator and exact size of data.
func NewLayoutReader(name string, data []byte, size int) (*LayoutReader, error) {
	if len(data) != size {
		return nil, fmt.Errorf("%s: record is %d bytes, want %d", name, len(data), size)
	}
	if !HasDiscriminator(data, name) {
		return nil, fmt.Errorf("%s: discriminator mismatch", name)
	}
	return &LayoutReader{buf: data, off: DiscriminatorLength}, nil
}

func (r *LayoutReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("layout: read of %d bytes at offset %d overruns %d byte record", n, r.off, len(r.buf))
		return nil
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *LayoutReader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *LayoutReader) Bool() bool {
	return r.U8() != 0
}

func (r *LayoutReader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *LayoutReader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *LayoutReader) I64() int64 {
	return int64(r.U64())
}

func (r *LayoutReader) Address() crypto.Address {
	var a crypto.Address
	copy(a[:], r.take(crypto.AddressLength))
	return a
}

// Fixed returns a copy of the next width bytes.
func (r *LayoutReader) Fixed(width int) []byte {
	b := r.take(width)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Err reports the first overrun encountered.
func (r *LayoutReader) Err() error {
	return r.err
}

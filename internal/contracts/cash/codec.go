package cash

import (
	"encoding/binary"
	"errors"

	"Verity/internal/contracts"
	"Verity/internal/crypto"
)

// errShortBuffer is returned when a record ends before all fields are read.
var errShortBuffer = errors.New("cash: short buffer")

// Records use Borsh-style little-endian encoding:
//
//	u64             amount, nonce
//	u32 len + bytes strings, key bytes
//	u8              key scheme
//	key             = u8 scheme + u32 len + bytes
//	party           = string name + key

type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) u64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *encoder) bytes(b []byte) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) key(k crypto.PublicKey) {
	e.u8(uint8(k.Scheme))
	e.bytes(k.Bytes())
}

func (e *encoder) party(p contracts.Party) {
	e.bytes([]byte(p.Name))
	e.key(p.Key)
}

func (e *encoder) issued(i Issued) {
	e.party(i.Issuer)
	e.bytes([]byte(i.Currency))
}

// decoder reads fields in order; after the first failure every read returns
// zero values and err stays set.
type decoder struct {
	data []byte
	err  error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.data) < n {
		d.err = errShortBuffer
		return nil
	}

	out := d.data[:n]
	d.data = d.data[n:]

	return out
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) bytes() []byte {
	b := d.take(4)
	if b == nil {
		return nil
	}
	return append([]byte(nil), d.take(int(binary.LittleEndian.Uint32(b)))...)
}

func (d *decoder) key() crypto.PublicKey {
	scheme := crypto.Scheme(d.u8())
	return crypto.NewPublicKey(scheme, d.bytes())
}

func (d *decoder) party() contracts.Party {
	name := string(d.bytes())
	return contracts.Party{Name: name, Key: d.key()}
}

func (d *decoder) issued() Issued {
	issuer := d.party()
	return Issued{Issuer: issuer, Currency: string(d.bytes())}
}

// finish reports a decoding failure or trailing bytes.
func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if len(d.data) != 0 {
		return errors.New("cash: trailing bytes")
	}
	return nil
}

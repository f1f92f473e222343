package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxStringLen caps length-prefixed strings read off the wire, in UTF-16
// code units. The byte length may be at most three times that.
const MaxStringLen = 32767

var ErrShortPacket = errors.New("packet: unexpected end of payload")

// Reader reads protocol fields from one decoded frame. The packet id VarInt
// is consumed by NewReader. Reads past the end return zero values and set a
// sticky error reported by Err.
type Reader struct {
	data []byte
	off  int
	id   int32
	err  error
}

func NewReader(data []byte) *Reader {
	r := &Reader{data: data}
	r.id = r.ReadVarInt()
	return r
}

// ID returns the packet id at the head of the frame.
func (r *Reader) ID() int32 { return r.id }

// Err returns the first decode error, if any.
func (r *Reader) Err() error { return r.err }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
	r.off = len(r.data)
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.fail(ErrShortPacket)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) ReadBool() bool {
	b := r.take(1)
	return b != nil && b[0] != 0
}

func (r *Reader) ReadU8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadU16 reads 2 bytes big-endian.
func (r *Reader) ReadU16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *Reader) ReadI32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *Reader) ReadI64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *Reader) ReadF32() float32 {
	return math.Float32frombits(uint32(r.ReadI32()))
}

func (r *Reader) ReadF64() float64 {
	return math.Float64frombits(uint64(r.ReadI64()))
}

// ReadVarInt reads a LEB128-style 32-bit integer (at most 5 bytes).
func (r *Reader) ReadVarInt() int32 {
	var v uint32
	for i := 0; i < 5; i++ {
		b := r.take(1)
		if b == nil {
			return 0
		}
		v |= uint32(b[0]&0x7F) << (7 * i)
		if b[0]&0x80 == 0 {
			return int32(v)
		}
	}
	r.fail(fmt.Errorf("packet: varint longer than 5 bytes"))
	return 0
}

// ReadString reads a VarInt byte length followed by UTF-8 bytes. Invalid
// UTF-8 and strings over MaxStringLen UTF-16 units fail the reader.
func (r *Reader) ReadString() string {
	n := r.ReadVarInt()
	if r.err != nil {
		return ""
	}
	if n < 0 || n > MaxStringLen*3 {
		r.fail(fmt.Errorf("packet: string length %d out of range", n))
		return ""
	}
	b := r.take(int(n))
	if r.err != nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.fail(fmt.Errorf("packet: string is not valid UTF-8"))
		return ""
	}
	units := 0
	for _, c := range string(b) {
		units++
		if c >= 0x10000 {
			units++ // surrogate pair
		}
	}
	if units > MaxStringLen {
		r.fail(fmt.Errorf("packet: string has %d UTF-16 units, max %d", units, MaxStringLen))
		return ""
	}
	return string(b)
}

// ReadUUID reads a 128-bit UUID as two big-endian longs.
func (r *Reader) ReadUUID() uuid.UUID {
	var id uuid.UUID
	if b := r.take(16); b != nil {
		copy(id[:], b)
	}
	return id
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

package packet

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// Writer builds one outgoing packet: packet id VarInt, then fields. Numbers
// are big-endian; strings are VarInt length-prefixed UTF-8.
type Writer struct {
	buf []byte
}

func NewWriter(id int32) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.WriteVarInt(id)
	return w
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteU16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteI32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) WriteI64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) WriteF32(v float32) {
	w.WriteI32(int32(math.Float32bits(v)))
}

func (w *Writer) WriteF64(v float64) {
	w.WriteI64(int64(math.Float64bits(v)))
}

func (w *Writer) WriteVarInt(v int32) {
	w.buf = AppendVarInt(w.buf, v)
}

func (w *Writer) WriteString(s string) {
	w.WriteVarInt(int32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) WriteUUID(id uuid.UUID) {
	w.buf = append(w.buf, id[:]...)
}

func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the packet body (id + fields), without the frame length.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

// AppendVarInt appends v in VarInt encoding. Negative values always take 5 bytes.
func AppendVarInt(b []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		b = append(b, byte(u)|0x80)
		u >>= 7
	}
	return append(b, byte(u))
}

// VarIntLen returns the encoded size of v.
func VarIntLen(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

package net

import (
	"errors"
	"fmt"
	"io"

	"github.com/ferrumgo/server/internal/net/packet"
)

// MaxFrameLen is the largest frame body accepted (a 3-byte VarInt length).
const MaxFrameLen = 2097151

var errVarIntTooLong = errors.New("frame length varint longer than 3 bytes")

// ReadFrame reads one frame from r.
// Wire format: [VarInt: body length][body], body = [VarInt packet id][fields].
func ReadFrame(r io.ByteReader) ([]byte, error) {
	var n uint32
	for i := 0; ; i++ {
		if i == 3 {
			return nil, errVarIntTooLong
		}
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read frame header: %w", err)
		}
		n |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			break
		}
	}
	if n == 0 || n > MaxFrameLen {
		return nil, fmt.Errorf("invalid frame length: %d", n)
	}

	body := make([]byte, n)
	if rr, ok := r.(io.Reader); ok {
		if _, err := io.ReadFull(rr, body); err != nil {
			return nil, fmt.Errorf("read frame body (%d bytes): %w", n, err)
		}
		return body, nil
	}
	for i := range body {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read frame body (%d bytes): %w", n, err)
		}
		body[i] = b
	}
	return body, nil
}

// WriteFrame writes one frame to w.
// Wire format: [VarInt: len(data)][data].
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFrameLen {
		return fmt.Errorf("frame too large: %d bytes", len(data))
	}
	buf := make([]byte, 0, packet.VarIntLen(int32(len(data)))+len(data))
	buf = packet.AppendVarInt(buf, int32(len(data)))
	buf = append(buf, data...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

package net

import (
	"bufio"
	"bytes"
	"context"
	gonet "net"
	"testing"
	"time"

	"github.com/ferrumgo/server/internal/core/ecs"
	"github.com/ferrumgo/server/internal/net/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := bytes.Repeat([]byte{0xab}, 300)
	require.NoError(t, WriteFrame(&buf, body))
	assert.Equal(t, []byte{0xac, 0x02}, buf.Bytes()[:2])

	got, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestReadFrameRejectsBadLength(t *testing.T) {
	_, err := ReadFrame(bufio.NewReader(bytes.NewReader([]byte{0x00})))
	assert.Error(t, err)

	_, err = ReadFrame(bufio.NewReader(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x01})))
	assert.Error(t, err)

	_, err = ReadFrame(bufio.NewReader(bytes.NewReader([]byte{0x05, 0x01})))
	assert.Error(t, err)
}

func testSessionConfig() SessionConfig {
	return SessionConfig{InQueueSize: 8, OutQueueSize: 8, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}
}

func TestServerAcceptRegistersStreamWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	world := ecs.NewWorld(zap.NewNop())
	srv, err := NewServer("127.0.0.1:0", world, testSessionConfig(), zap.NewNop())
	require.NoError(t, err)
	go srv.AcceptLoop()
	defer srv.Shutdown()

	client, err := gonet.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var sess *Session
	select {
	case sess = <-srv.NewSessions():
	case <-ctx.Done():
		t.Fatal("no session accepted")
	}
	defer sess.Close()
	assert.Equal(t, packet.StateHandshake, sess.State())

	// Client -> server frames land in InQueue.
	out := packet.NewWriter(0x00)
	out.WriteString("hello")
	require.NoError(t, WriteFrame(client, out.Bytes()))
	select {
	case data := <-sess.InQueue:
		r := packet.NewReader(data)
		assert.Equal(t, "hello", r.ReadString())
	case <-ctx.Done():
		t.Fatal("frame never reached InQueue")
	}

	// Server -> client through the StreamWriter component.
	w, ok := ecs.GetMut[StreamWriter](ctx, world.Storage(), sess.Entity())
	require.True(t, ok)
	reply := packet.NewWriter(0x01)
	reply.WriteI64(7)
	require.NoError(t, w.Get().SendPacket(reply))
	assert.Equal(t, uint64(1), w.Get().Sent())
	w.Release()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := ReadFrame(bufio.NewReader(client))
	require.NoError(t, err)
	r := packet.NewReader(frame)
	assert.Equal(t, int32(0x01), r.ID())
	assert.Equal(t, int64(7), r.ReadI64())
}

func TestStreamWriterFailsAfterClose(t *testing.T) {
	server, client := gonet.Pipe()
	defer client.Close()

	sess := NewSession(server, 1, testSessionConfig(), zap.NewNop())
	w := NewStreamWriter(sess)
	sess.Close()

	assert.ErrorIs(t, w.SendPacket(packet.NewWriter(0)), ErrSessionClosed)
	assert.True(t, sess.IsClosed())
	assert.Equal(t, packet.StateDisconnecting, sess.State())

	var empty StreamWriter
	assert.ErrorIs(t, empty.SendPacket(packet.NewWriter(0)), ErrSessionClosed)
}

func TestCloseAfterFlushDeliversQueued(t *testing.T) {
	server, client := gonet.Pipe()
	defer client.Close()

	sess := NewSession(server, 2, testSessionConfig(), zap.NewNop())
	sess.Start()

	w := NewStreamWriter(sess)
	bye := packet.NewWriter(0x00)
	bye.WriteString("bye")
	require.NoError(t, w.SendPacket(bye))
	w.Disconnect()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := ReadFrame(bufio.NewReader(client))
	require.NoError(t, err)
	assert.Equal(t, "bye", packet.NewReader(frame).ReadString())

	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close after flush")
	}
}

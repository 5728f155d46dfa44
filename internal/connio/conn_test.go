package connio

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLoopParsesLines(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	c := New(server, WithIdleTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.ReadLoop(ctx)

	go func() {
		client.Write([]byte("NICK alice\r\n"))
	}()

	select {
	case msg := <-c.Inbound:
		assert.Equal(t, "NICK", msg.Command)
		assert.Equal(t, []string{"alice"}, msg.Params)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for parsed message")
	}
}

func TestSendWritesFramedLine(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	c := New(server)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.WriteLoop(ctx)

	require.True(t, c.Send("PING :x"))

	reader := bufio.NewReader(client)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "PING :x\r\n", line)
}

func TestSendAfterCloseReturnsFalse(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	c := New(server)
	require.NoError(t, c.Close())

	assert.False(t, c.Send("PING :x"))
}

func TestDetectProxyHeader(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := New(server)

	done := make(chan struct{})
	var addr string
	var ok bool
	go func() {
		addr, ok = c.DetectProxyHeader(time.Second)
		close(done)
	}()

	client.Write([]byte("PROXY TCP4 203.0.113.5 10.0.0.1 51234 6667\r\n"))
	<-done

	require.True(t, ok)
	assert.Equal(t, "203.0.113.5:51234", addr)
	client.Close()
}

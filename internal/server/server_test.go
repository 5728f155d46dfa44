package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircd/internal/config"
	"github.com/presbrey/ircd/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Name: "hub.test", Network: "TestNet"},
		Classes: map[string]config.ClassConfig{
			"default": {
				MaxClients:               10,
				PingFrequencySeconds:     90,
				ConnectionTimeoutSeconds: 240,
			},
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(testWriter{t})
	return New(config.WrapManager(testConfig()), nil, log)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestHandleClientRegistersAndWelcomes(t *testing.T) {
	s := newTestServer(t)
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.handleClient(ctx, serverConn, config.ListenerConfig{Class: "default"})
		close(done)
	}()

	_, err := clientConn.Write([]byte("NICK alice\r\nUSER a 0 * :Alice Example\r\n"))
	require.NoError(t, err)

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	scanner := bufio.NewScanner(clientConn)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if strings.Contains(line, "376") { // RPL_ENDOFMOTD
			break
		}
	}
	require.NoError(t, scanner.Err())

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "001")
	assert.Contains(t, joined, "alice")
	for _, numeric := range []string{"251", "252", "253", "254", "255"} { // RPL_LUSER* burst
		assert.Contains(t, joined, " "+numeric+" ", "missing LUSERS numeric %s between MYINFO and MOTD", numeric)
	}
	assert.True(t, strings.Index(joined, "251") < strings.Index(joined, "375"), "LUSERS burst must precede MOTDSTART")

	u, ok := s.Store.GetUserByNick("alice")
	require.True(t, ok)
	assert.Equal(t, "hub.test", u.Server)

	_, err = clientConn.Write([]byte("QUIT :bye\r\n"))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleClient did not exit after QUIT")
	}

	_, stillThere := s.Store.GetUserByNick("alice")
	assert.False(t, stillThere)
}

func TestHandleClientRejectsBannedHost(t *testing.T) {
	s := newTestServer(t)
	s.Bans.Add(store.BanDNS, "", "no entry", "root", 0)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.handleClient(ctx, serverConn, config.ListenerConfig{Class: "default"})
		close(done)
	}()

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	scanner := bufio.NewScanner(clientConn)
	require.True(t, scanner.Scan())
	assert.Contains(t, scanner.Text(), "ERROR")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleClient did not exit after rejecting banned host")
	}
}

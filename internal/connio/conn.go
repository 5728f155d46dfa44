// Package connio owns one TCP/TLS client connection: framed line
// reading/writing, outbound backpressure, idle/ping timers, and PROXY
// protocol unwrapping ahead of the wire codec (spec.md §4.2).
package connio

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/presbrey/ircd/internal/wire"
)

// Limits, grounded on spec.md §4.2/§5: a connection that can't keep up
// with its own outbound queue is disconnected rather than allowed to
// back-pressure the whole server; inbound lines past its token bucket are
// dropped (see ReadLoop).
const (
	DefaultOutboundQueueSize = 256
	DefaultIdleTimeout       = 4 * time.Minute
	DefaultPingInterval      = 90 * time.Second
)

// Conn wraps a single accepted connection. It is the line between raw
// bytes and internal/wire.Message: callers receive parsed messages off
// Inbound and post raw lines (or messages, via SendMessage) to be
// written.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	RemoteAddr string // may be overridden by PROXY protocol

	limiter *rate.Limiter

	Inbound  chan *wire.Message
	outbound chan string

	idleTimeout  time.Duration
	pingInterval time.Duration

	closed chan struct{}
}

// Option configures a Conn at construction time.
type Option func(*Conn)

// WithRateLimit overrides the inbound token-bucket rate (lines/sec, burst).
func WithRateLimit(linesPerSecond float64, burst int) Option {
	return func(c *Conn) { c.limiter = rate.NewLimiter(rate.Limit(linesPerSecond), burst) }
}

// WithIdleTimeout overrides how long a connection may go without a
// complete line before it's dropped as dead.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Conn) { c.idleTimeout = d }
}

// WithPingInterval overrides how often PingTicker fires, set per
// connection class (spec.md §6 ping-frequency).
func WithPingInterval(d time.Duration) Option {
	return func(c *Conn) { c.pingInterval = d }
}

// New wraps an accepted net.Conn. It does not start any goroutines; call
// Run to begin the read/write/control loops.
func New(raw net.Conn, opts ...Option) *Conn {
	c := &Conn{
		raw:          raw,
		reader:       bufio.NewReader(raw),
		writer:       bufio.NewWriter(raw),
		RemoteAddr:   raw.RemoteAddr().String(),
		limiter:      rate.NewLimiter(rate.Limit(10), 20),
		Inbound:      make(chan *wire.Message, 32),
		outbound:     make(chan string, DefaultOutboundQueueSize),
		idleTimeout:  DefaultIdleTimeout,
		pingInterval: DefaultPingInterval,
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DetectProxyHeader peeks for a PROXY protocol v1 header and, if present,
// consumes it and returns the real client address it declares. Grounded
// on handleProxyProtocol in _examples/presbrey-pkg/irc/server.go, adapted
// to operate on the Conn's own buffered reader instead of allocating a
// second one, and to return the parsed address rather than mutating
// server-global state.
func (c *Conn) DetectProxyHeader(timeout time.Duration) (string, bool) {
	c.raw.SetReadDeadline(time.Now().Add(timeout))
	defer c.raw.SetReadDeadline(time.Time{})

	header, err := c.reader.Peek(5)
	if err != nil || string(header) != "PROXY" {
		return "", false
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		logrus.WithField("remote", c.RemoteAddr).WithError(err).Warn("incomplete PROXY header")
		return "", false
	}

	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) < 6 || parts[0] != "PROXY" {
		logrus.WithField("remote", c.RemoteAddr).Warn("malformed PROXY header")
		return "", false
	}

	clientAddr := fmt.Sprintf("%s:%s", parts[2], parts[4])
	return clientAddr, true
}

// ReadLoop reads complete lines, parses them via internal/wire, and
// pushes them onto Inbound. It exits on read error, idle timeout, or
// ctx cancellation. Malformed/overlong lines are dropped and rate-limited
// rather than killing the connection outright, per spec.md §4.1/§9.
func (c *Conn) ReadLoop(ctx context.Context) error {
	defer close(c.Inbound)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return nil
		default:
		}

		c.raw.SetReadDeadline(time.Now().Add(c.idleTimeout))
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		if !c.limiter.Allow() {
			logrus.WithField("remote", c.RemoteAddr).Warn("dropping line: flood limit exceeded")
			continue
		}

		msg, err := wire.ParseLine(line)
		if err != nil {
			logrus.WithField("remote", c.RemoteAddr).WithError(err).Debug("dropping malformed line")
			continue
		}

		select {
		case c.Inbound <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WriteLoop drains the outbound queue to the socket until it's closed.
func (c *Conn) WriteLoop(ctx context.Context) error {
	for {
		select {
		case line := <-c.outbound:
			if _, err := c.writer.WriteString(wire.Frame(line)); err != nil {
				return err
			}
			if len(c.outbound) == 0 {
				if err := c.writer.Flush(); err != nil {
					return err
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return c.writer.Flush()
		}
	}
}

// Send queues a raw line (without CRLF) for writing. Returns false
// without blocking if the connection is closed or the outbound queue is
// full — the caller should treat a full queue as grounds to disconnect a
// client that isn't draining its buffer (spec.md §5 backpressure policy).
func (c *Conn) Send(line string) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.outbound <- line:
		return true
	case <-c.closed:
		return false
	default:
		return false
	}
}

// SendMessage serializes and queues a wire.Message.
func (c *Conn) SendMessage(msg *wire.Message) bool {
	return c.Send(msg.Serialize())
}

// Close shuts down the connection and stops all loops. The outbound
// channel is deliberately never closed: WriteLoop exits via ctx
// cancellation or the underlying socket erroring out, which avoids a
// send-on-closed-channel panic racing against a concurrent Send.
func (c *Conn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return c.raw.Close()
}

// PingTicker returns a ticker firing at the configured ping interval; the
// caller is responsible for sending PING and tracking the corresponding
// PONG to detect a dead peer.
func (c *Conn) PingTicker() *time.Ticker {
	return time.NewTicker(c.pingInterval)
}

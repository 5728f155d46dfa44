package peer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/presbrey/ircd/internal/connio"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// Connect dials an outgoing peer link and drives it for the life of the
// connection: handshake, burst, steady-state propagation, keepalive.
// Blocks until the link drops; callers run it in a goroutine, retrying on
// error per their own backoff policy. Grounded on the teacher's
// connectToPeers dial loop (irc/peering.go), generalized from grpc.Dial to
// a plain TCP dial feeding connio.
func (m *Manager) Connect(ctx context.Context, link LinkConfig) error {
	raw, err := net.DialTimeout("tcp", link.Address, 10*time.Second)
	if err != nil {
		return fmt.Errorf("peer: dial %s: %w", link.Address, err)
	}
	conn := connio.New(raw, connio.WithIdleTimeout(m.PingTimeout))
	return m.serve(ctx, conn, link, true)
}

// Accept drives an inbound peer connection. The remote's identity isn't
// known until its SERVER line arrives, at which point it's matched against
// a configured LinkConfig by name.
func (m *Manager) Accept(ctx context.Context, raw net.Conn) error {
	conn := connio.New(raw, connio.WithIdleTimeout(m.PingTimeout))
	return m.serve(ctx, conn, LinkConfig{}, false)
}

func sendLine(conn *connio.Conn, msg *wire.Message) {
	conn.SendMessage(msg)
}

func sendPass(conn *connio.Conn, password string) {
	sendLine(conn, &wire.Message{
		Command: "PASS",
		Params:  []string{password, "TS", strconv.FormatInt(time.Now().Unix(), 10)},
	})
}

func sendServer(conn *connio.Conn, name string, hop int, desc string) {
	sendLine(conn, &wire.Message{Command: "SERVER", Params: []string{name, strconv.Itoa(hop), desc}})
}

// serve runs the handshake to completion, then the burst, then the
// steady-state read loop, for exactly one connection. It owns the
// connection's ReadLoop/WriteLoop goroutines.
func (m *Manager) serve(ctx context.Context, conn *connio.Conn, link LinkConfig, outgoing bool) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go conn.ReadLoop(loopCtx)
	go conn.WriteLoop(loopCtx)
	defer conn.Close()

	p := &Peer{Outgoing: outgoing, conn: conn, state: Connecting, lastPong: time.Now()}

	if outgoing {
		p.Name = link.Name
		p.Services = link.Services
		sendPass(conn, link.Password)
		sendServer(conn, m.ServerName, 1, "kestrel-ircd")
		p.setState(PassSent)
	}

	var pendingPassword string
	var passSeen, serverSeen bool

	for p.state != Registered {
		msg, ok := <-conn.Inbound
		if !ok {
			return fmt.Errorf("peer: link closed during handshake")
		}

		switch msg.Command {
		case "PASS":
			if len(msg.Params) < 1 {
				return fmt.Errorf("peer: malformed PASS")
			}
			pendingPassword = msg.Params[0]
			passSeen = true
			if len(msg.Params) >= 3 && msg.Params[1] == "TS" {
				if ts, err := strconv.ParseInt(msg.Params[2], 10, 64); err == nil {
					p.remoteTS = ts
				}
			}

		case "SERVER":
			if len(msg.Params) < 1 {
				return fmt.Errorf("peer: malformed SERVER")
			}
			name := msg.Params[0]
			hop := 1
			if len(msg.Params) > 1 {
				if n, err := strconv.Atoi(msg.Params[1]); err == nil {
					hop = n
				}
			}
			desc := ""
			if len(msg.Params) > 2 {
				desc = msg.Params[len(msg.Params)-1]
			}

			cfg := link
			known := outgoing
			if !outgoing {
				cfg, known = m.linkFor(name)
			}
			if !known || cfg.Name == "" {
				return fmt.Errorf("peer: unconfigured server %q", name)
			}
			if !passSeen || pendingPassword != cfg.Password {
				logrus.WithField("server", name).Warn("peer link rejected: bad password")
				return fmt.Errorf("peer: link auth failed for %q", name)
			}

			p.Name = name
			p.Hops = hop
			p.Description = desc
			p.Services = cfg.Services
			serverSeen = true

			if !outgoing {
				sendPass(conn, cfg.Password)
				sendServer(conn, m.ServerName, 1, "kestrel-ircd")
			}

		default:
			// Ignore anything else until the handshake completes; a
			// conforming peer sends nothing else first.
		}

		if passSeen && serverSeen {
			p.setState(Registered)
		}
	}

	m.register(p)
	m.Store.AddServer(&store.PeerServer{
		Name:        p.Name,
		Description: p.Description,
		Hops:        p.Hops,
		Via:         p.Name,
		LinkedAt:    time.Now(),
	})
	logrus.WithField("peer", p.Name).Info("peer link registered")

	defer func() {
		reason := p.getQuitReason()
		if reason == "" {
			reason = "connection lost"
		}
		m.cascadeSquit(p, reason)
	}()

	p.setState(Bursting)
	m.sendBurst(p)
	p.setState(BurstComplete)
	sendLine(conn, &wire.Message{Command: "EOB"})

	go m.keepalive(loopCtx, p)

	for msg := range conn.Inbound {
		m.handlePeerMessage(p, msg)
	}
	return nil
}

// keepalive emits PING every PingInterval and watches for a stale PONG,
// squitting the peer on timeout (spec.md §4.8 keepalive policy).
func (m *Manager) keepalive(ctx context.Context, p *Peer) {
	ticker := time.NewTicker(m.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.idleSince() > m.PingTimeout {
				m.Squit(p.Name, "Ping timeout")
				return
			}
			sendLine(p.conn, &wire.Message{Prefix: m.ServerName, Command: "PING", Params: []string{m.ServerName}})
		}
	}
}

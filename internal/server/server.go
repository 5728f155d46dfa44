// Package server wires every internal/ package into one running daemon:
// it owns the store, the command dispatcher, the broadcast engine's
// delivery sink, the peer link manager, and the listener accept loops,
// grounded on _examples/presbrey-pkg/irc/server/server.go's Server type
// (NewServer/Start/Stop/acceptConnections/handleConnection), adapted from
// that file's sync.Map-keyed client/channel registries to this core's
// internal/store.Store and from its single irc.Message dispatch to
// internal/dispatch.Dispatcher.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/presbrey/ircd/internal/auth"
	"github.com/presbrey/ircd/internal/ban"
	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/channel"
	"github.com/presbrey/ircd/internal/config"
	"github.com/presbrey/ircd/internal/connio"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/handlers"
	"github.com/presbrey/ircd/internal/metrics"
	"github.com/presbrey/ircd/internal/peer"
	"github.com/presbrey/ircd/internal/reply"
	"github.com/presbrey/ircd/internal/store"
)

// Server is the assembled daemon: every internal/ collaborator plus the
// listener sockets and live session table needed to drive them.
type Server struct {
	Store      *store.Store
	Bans       *ban.Enforcer
	Channels   *channel.Policy
	Broadcast  *broadcast.Engine
	Replies    *reply.Store
	Auth       *auth.Chain
	Peers      *peer.Manager
	Metrics    *metrics.Collectors
	Dispatcher *dispatch.Dispatcher
	Deps       *handlers.Deps

	log *logrus.Logger
	mgr *config.Manager

	mu       sync.Mutex
	sessions map[store.UserID]*connio.Conn

	listeners    []net.Listener
	peerListener net.Listener
}

// New assembles a Server from a config.Manager. It registers every handler
// against the dispatcher and wires the broadcast engine's sink to the live
// session table, but opens no sockets yet — call Start for that. The
// Manager (rather than a static Config) is threaded through so a REHASH
// is visible to the next accepted connection's class lookup without
// rebuilding the Server.
func New(mgr *config.Manager, motd []string, log *logrus.Logger) *Server {
	cfg := mgr.Get()
	s := &Server{
		log:      log,
		mgr:      mgr,
		sessions: make(map[store.UserID]*connio.Conn),
	}

	s.Store = store.New()
	s.Bans = ban.New(s.Store)
	s.Channels = channel.New(s.Store, s.Bans)
	s.Replies = reply.NewStore()
	s.Broadcast = broadcast.New(s.Store, s.deliver)
	s.Dispatcher = dispatch.New()
	s.Peers = peer.New(cfg.Server.Name, s.Store, s.Broadcast, s.Dispatcher)
	s.Metrics = metrics.New(metrics.Registry)

	var operators []auth.Operator
	for _, op := range cfg.Operators {
		operators = append(operators, auth.Operator{Username: op.Username, Password: op.Password, Mask: op.Mask})
	}
	s.Auth = auth.NewChain(auth.NewLocalProvider(operators))

	for _, l := range cfg.Links {
		s.Peers.AddLink(peer.LinkConfig{Name: l.Name, Password: l.Password, Address: l.Address, Services: l.Services})
	}

	deps := handlers.NewDeps()
	deps.Store = s.Store
	deps.Bans = s.Bans
	deps.Channels = s.Channels
	deps.Broadcast = s.Broadcast
	deps.Replies = s.Replies
	deps.Auth = s.Auth
	deps.Peers = s.Peers
	deps.ServerName = cfg.Server.Name
	deps.NetworkName = cfg.Server.Network
	deps.Version = "kestrel-ircd"
	deps.ConnPassword = cfg.Server.Password
	deps.MOTD = motd
	handlers.Register(s.Dispatcher, deps)
	s.Deps = deps

	// Every dispatched command may have enqueued broadcasts; draining
	// after each one keeps delivery latency bounded without a separate
	// ticker goroutine racing the session loops over the queue.
	s.Dispatcher.RegisterPostHook(func(ctx *dispatch.Context) error {
		s.Metrics.MessagesReceived.Inc()
		s.Broadcast.Drain()
		return nil
	})

	// REHASH (handleRehash calls Deps.Reload, wired by cmd/ircd to
	// mgr.Reload) re-reads the document; this keeps the fields handlers
	// read directly, and the configured link table, in step with it.
	// Listener sockets themselves are intentionally not replumbed by a
	// REHASH, matching most production ircds' "edit listeners means
	// restart" convention.
	mgr.OnReload(func(nc *config.Config) {
		s.Deps.ServerName = nc.Server.Name
		s.Deps.NetworkName = nc.Server.Network
		s.Deps.ConnPassword = nc.Server.Password
		for _, l := range nc.Links {
			s.Peers.AddLink(peer.LinkConfig{Name: l.Name, Password: l.Password, Address: l.Address, Services: l.Services})
		}
	})

	return s
}

// deliver is the broadcast engine's Sink: it looks up the recipient's
// live connection, if any is still open, and queues the line on it.
// Remote users (no local session) are silently skipped here; internal/peer
// handles them via its own PeerSink registration.
func (s *Server) deliver(uid store.UserID, line string) {
	s.mu.Lock()
	conn := s.sessions[uid]
	s.mu.Unlock()
	if conn != nil {
		conn.Send(line)
	}
}

func (s *Server) addSession(uid store.UserID, conn *connio.Conn) {
	s.mu.Lock()
	s.sessions[uid] = conn
	s.mu.Unlock()
}

func (s *Server) removeSession(uid store.UserID) {
	s.mu.Lock()
	delete(s.sessions, uid)
	s.mu.Unlock()
}

// Start opens every configured client listener (and the inbound peer
// listener, if configured) and begins accepting connections. It returns
// once every listener is bound; accept loops run in background
// goroutines, mirroring the teacher's Start/acceptConnections split.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.mgr.Get()
	if len(cfg.Listeners) == 0 {
		return fmt.Errorf("server: no client listeners configured")
	}

	for _, lc := range cfg.Listeners {
		ln, err := s.listen(lc)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("server: listen %s: %w", lc.Address, err)
		}
		s.listeners = append(s.listeners, ln)
		go s.acceptClients(ctx, ln, lc)
	}

	if addr := cfg.Server.PeerAddress; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("server: peer listen %s: %w", addr, err)
		}
		s.peerListener = ln
		go s.acceptPeers(ctx, ln)
	}

	for _, l := range cfg.Links {
		if l.AutoConnect {
			go s.maintainLink(ctx, peer.LinkConfig{Name: l.Name, Password: l.Password, Address: l.Address, Services: l.Services})
		}
	}

	return nil
}

// Stop closes every listener socket. In-flight sessions unwind on their
// own as their reads fail, the same "close listeners, let accept loops
// exit on net.ErrClosed" shutdown the teacher uses in Server.Stop.
func (s *Server) Stop() error {
	s.closeListeners()
	return nil
}

func (s *Server) closeListeners() {
	for _, ln := range s.listeners {
		ln.Close()
	}
	if s.peerListener != nil {
		s.peerListener.Close()
	}
}

func (s *Server) listen(lc config.ListenerConfig) (net.Listener, error) {
	if !lc.TLS {
		return net.Listen("tcp", lc.Address)
	}
	tlsSrc := s.mgr.Get().TLS
	if !tlsSrc.Enabled || tlsSrc.Cert == "" || tlsSrc.Key == "" {
		return nil, fmt.Errorf("listener %s requests tls but tls is not configured", lc.Address)
	}
	cert, err := tls.LoadX509KeyPair(tlsSrc.Cert, tlsSrc.Key)
	if err != nil {
		return nil, fmt.Errorf("load tls certificate: %w", err)
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, Certificates: []tls.Certificate{cert}}
	return tls.Listen("tcp", lc.Address, tlsCfg)
}

func (s *Server) acceptClients(ctx context.Context, ln net.Listener, lc config.ListenerConfig) {
	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.log.WithError(err).WithField("listener", lc.Address).Warn("accept failed")
			time.Sleep(100 * time.Millisecond)
			continue
		}
		s.Metrics.ConnectionsTotal.Inc()
		go s.handleClient(ctx, raw, lc)
	}
}

func (s *Server) acceptPeers(ctx context.Context, ln net.Listener) {
	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.log.WithError(err).Warn("peer accept failed")
			time.Sleep(100 * time.Millisecond)
			continue
		}
		go func() {
			if err := s.Peers.Accept(ctx, raw); err != nil {
				s.log.WithError(err).Warn("peer link ended")
			}
		}()
	}
}

// maintainLink dials an auto-connect peer, retrying with a fixed backoff
// on failure or disconnect, grounded on the teacher's connectToPeers retry
// loop (irc/peering.go).
func (s *Server) maintainLink(ctx context.Context, link peer.LinkConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.Peers.Connect(ctx, link); err != nil {
			s.log.WithError(err).WithField("peer", link.Name).Warn("peer link failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(30 * time.Second):
		}
	}
}

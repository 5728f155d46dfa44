// Package peer implements server-to-server links (spec.md §4.8): the
// PASS/SERVER handshake, burst producer/absorber, post-burst propagation of
// local state mutations, keepalive, and SQUIT cascade cleanup. It also
// carries the "services" peer subtype (spec.md §4.10): a peer marked
// services is otherwise an ordinary Peer, distinguished only by a flag, per
// the specification's note that services is a peer subtype rather than a
// separate subsystem.
//
// The teacher (_examples/presbrey-pkg/irc/peering.go and irc/peering/) links
// servers over gRPC with a full-state SyncState RPC. That transport doesn't
// exist in this specification — §4.8 mandates a line-oriented PASS/SERVER/
// UID/SJOIN protocol — so this package is grounded on the teacher's peer
// bookkeeping (a name-keyed table of links, ForEachPeer-style fan-out,
// BuildSyncRequest's walk of channels-then-clients) reimplemented against
// internal/connio's line codec instead of grpc.ClientConn. The teacher's
// gRPC stack is kept and repurposed for internal/adminapi instead (see
// DESIGN.md).
package peer

import (
	"strings"
	"sync"
	"time"

	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/connio"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/hooks"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// State names a point in a peer link's lifecycle (spec.md §4.8 state
// machine summary).
type State int

const (
	Connecting State = iota
	PassSent
	ServerSent
	Registered
	Bursting
	BurstComplete
	Live
	Squit
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case PassSent:
		return "pass_sent"
	case ServerSent:
		return "server_sent"
	case Registered:
		return "registered"
	case Bursting:
		return "bursting"
	case BurstComplete:
		return "burst_complete"
	case Live:
		return "live"
	case Squit:
		return "squit"
	default:
		return "unknown"
	}
}

// LinkConfig is one configured peer-server entry, supplied by
// internal/config. Name must match the remote's SERVER name exactly.
type LinkConfig struct {
	Name     string
	Password string
	Address  string // dial target for outgoing links; empty for inbound-only
	Services bool
}

// Peer is one server-to-server link, live for the duration of its
// connection. It is the network-level analogue of store.PeerServer, which
// holds the durable, store-visible half of the same information.
type Peer struct {
	Name        string
	Description string
	Hops        int
	Services    bool
	Outgoing    bool

	conn *connio.Conn

	mu         sync.Mutex
	state      State
	lastPong   time.Time
	remoteTS   int64
	quitReason string
}

func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Peer) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Peer) touchPong() {
	p.mu.Lock()
	p.lastPong = time.Now()
	p.mu.Unlock()
}

func (p *Peer) idleSince() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.lastPong)
}

func (p *Peer) setQuitReason(reason string) {
	p.mu.Lock()
	p.quitReason = reason
	p.mu.Unlock()
}

func (p *Peer) getQuitReason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quitReason
}

// BurstContext is handed to every registered burst producer in turn, the
// generalized form of spec.md §9's "burst extension registry": a single
// ordered vector of burst producers, each declaring which burst type it
// handles, invoked in order by the peer connector.
type BurstContext struct {
	Peer *Peer
	Send func(*wire.Message)
}

// Manager owns every live peer link and the configured link table. It is
// the server-linking analogue of internal/dispatch.Dispatcher: one shared
// collaborator that internal/handlers reaches into for OPER-gated SQUIT and
// that internal/server drives from its accept loops.
type Manager struct {
	ServerName string
	Store      *store.Store
	Broadcast  *broadcast.Engine
	Dispatcher *dispatch.Dispatcher

	PingInterval time.Duration
	PingTimeout  time.Duration

	mu    sync.RWMutex
	links map[string]LinkConfig
	peers map[string]*Peer

	burstProducers *hooks.Registry[*BurstContext]
}

// New creates a Manager and wires it as the broadcast engine's peer sink, so
// every TargetAllPeers/TargetPeers item enqueued by internal/handlers is
// mirrored onto every registered link.
func New(serverName string, s *store.Store, b *broadcast.Engine, d *dispatch.Dispatcher) *Manager {
	m := &Manager{
		ServerName:   serverName,
		Store:        s,
		Broadcast:    b,
		Dispatcher:   d,
		PingInterval: 90 * time.Second,
		PingTimeout:  4 * time.Minute,
		links:        make(map[string]LinkConfig),
		peers:        make(map[string]*Peer),

		burstProducers: hooks.NewRegistry[*BurstContext](),
	}
	m.burstProducers.Register(m.burstUsers)
	m.burstProducers.RegisterWithPriority(m.burstChannels, 10)
	b.SetPeerSink(m.onPeerTargetedBroadcast)
	return m
}

// AddLink registers (or replaces) a configured peer-link entry, keyed by
// server name.
func (m *Manager) AddLink(l LinkConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[strings.ToLower(l.Name)] = l
}

func (m *Manager) linkFor(name string) (LinkConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.links[strings.ToLower(name)]
	return l, ok
}

func (m *Manager) register(p *Peer) {
	m.mu.Lock()
	m.peers[strings.ToLower(p.Name)] = p
	m.mu.Unlock()
}

func (m *Manager) unregister(name string) {
	m.mu.Lock()
	delete(m.peers, strings.ToLower(name))
	m.mu.Unlock()
}

// Peers returns a snapshot of every live link.
func (m *Manager) Peers() []*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, p)
	}
	return out
}

// GetPeer looks up a live link by server name.
func (m *Manager) GetPeer(name string) (*Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[strings.ToLower(name)]
	return p, ok
}

package peer

import (
	"strings"

	"github.com/presbrey/ircd/internal/wire"
)

// Squit tears down a live peer link by name, used both by the operator
// SQUIT command (internal/handlers) and by keepalive on ping timeout. The
// actual store cleanup happens once the link's serve loop observes the
// closed connection and runs cascadeSquit.
func (m *Manager) Squit(name, reason string) bool {
	p, ok := m.GetPeer(name)
	if !ok {
		return false
	}
	p.setQuitReason(reason)
	p.conn.Close()
	return true
}

// handleRemoteSquit processes an inbound SQUIT line. If it names the peer
// it arrived on, that link is torn down. Otherwise it names a server
// reachable only through that link (a downstream hop), so the cleanup runs
// without touching any local connection, and the line is relayed onward.
func (m *Manager) handleRemoteSquit(p *Peer, msg *wire.Message) {
	if len(msg.Params) < 1 {
		return
	}
	name := msg.Params[0]
	reason := "Remote SQUIT"
	if len(msg.Params) > 1 {
		reason = msg.Params[len(msg.Params)-1]
	}

	if strings.EqualFold(name, p.Name) {
		p.setQuitReason(reason)
		p.conn.Close()
		return
	}

	m.cleanupByName(name, reason)
	m.relayExcept(p, msg)
}

// cascadeSquit runs once a peer's connection has dropped for any reason:
// it removes the PeerServer, synthesizes a QUIT for every user sourced from
// it (spec.md §8 invariant 5: "after SQUIT(p), no User with origin-server =
// p exists"), and informs the rest of the mesh.
func (m *Manager) cascadeSquit(p *Peer, reason string) {
	p.setState(Squit)
	m.unregister(p.Name)
	m.cleanupByName(p.Name, reason)

	squitMsg := &wire.Message{Prefix: m.ServerName, Command: "SQUIT", Params: []string{p.Name, reason}}
	for _, other := range m.Peers() {
		sendLine(other.conn, squitMsg)
	}
}

// cleanupByName removes the named server and cascades QUIT for every user
// it sourced, regardless of whether that server was a direct link or a
// downstream hop reachable only through one.
func (m *Manager) cleanupByName(name, reason string) {
	m.Store.RemoveServer(name)
	removed := m.Store.RemoveUsersFromServer(name)
	for _, u := range removed {
		channels := make([]string, 0, len(u.ChannelNames))
		for chName := range u.ChannelNames {
			channels = append(channels, chName)
		}
		m.announceQuit(u.Nick, u.User, u.Host, channels, reason+" ("+name+")")
	}
}

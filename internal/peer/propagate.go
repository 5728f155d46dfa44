package peer

import (
	"context"
	"strings"

	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/wire"
)

// relayed is the set of commands mirrored onward to every other Registered
// peer. The ban commands (KLINE through UNXLINE) have no case in
// handlePeerMessage: they are relayed but not applied to this server's
// store. The rest are absorbed locally first, per spec.md §4.8's
// propagation rule: "local
// state mutations ... are mirrored as messages to every Registered peer,
// with the origin peer excluded. Peers receiving a message propagate
// further, excluding the link it arrived on."
var relayed = map[string]bool{
	"NICK": true, "QUIT": true, "JOIN": true, "PART": true,
	"MODE": true, "PRIVMSG": true, "NOTICE": true, "KILL": true,
	"KLINE": true, "UNKLINE": true, "GLINE": true, "UNGLINE": true,
	"DLINE": true, "UNDLINE": true, "XLINE": true, "UNXLINE": true,
}

// handlePeerMessage processes one line received over a registered peer
// link and, for commands in the propagation set, relays it onward.
func (m *Manager) handlePeerMessage(p *Peer, msg *wire.Message) {
	switch msg.Command {
	case "UID":
		m.absorbUID(p, msg)
	case "SJOIN":
		m.absorbSJOIN(msg)
	case "EOB":
		p.setState(Live)
	case "PING":
		sendLine(p.conn, &wire.Message{Prefix: m.ServerName, Command: "PONG", Params: msg.Params})
	case "PONG":
		p.touchPong()
	case "SQUIT":
		m.handleRemoteSquit(p, msg)
	case "NICK":
		m.absorbNick(msg)
	case "QUIT":
		m.absorbQuit(msg)
	case "JOIN":
		m.absorbJoin(msg)
	case "PART":
		m.absorbPart(msg)
	case "MODE":
		m.absorbMode(msg)
	case "PRIVMSG", "NOTICE":
		m.absorbMessage(msg)
	case "KILL":
		m.absorbKill(msg)
	case "SVSNICK", "SVSMODE", "SVS2MODE", "SVSJOIN", "SVSPART", "SETHOST":
		if p.Services {
			m.Dispatcher.Dispatch(&dispatch.Context{
				Ctx:              context.Background(),
				Message:          msg,
				Store:            m.Store,
				Reply:            func(string) {},
				FromServicesLink: true,
			})
		}
	default:
		// Unknown server-to-server command: ignore rather than disconnect,
		// so a newer peer sending an extension command doesn't SQUIT.
	}

	if relayed[msg.Command] {
		m.relayExcept(p, msg)
	}
}

// relayExcept mirrors msg to every other Registered-or-later peer.
func (m *Manager) relayExcept(origin *Peer, msg *wire.Message) {
	for _, p := range m.Peers() {
		if p == origin || p.State() < Registered {
			continue
		}
		sendLine(p.conn, msg)
	}
}

// onPeerTargetedBroadcast is the broadcast engine's peer sink: it fires for
// every Item enqueued with TargetAllPeers/TargetPeers, so local handlers in
// internal/handlers don't need to know about the link table at all.
func (m *Manager) onPeerTargetedBroadcast(item broadcast.Item) {
	for _, p := range m.Peers() {
		if p.State() < Registered {
			continue
		}
		if item.Target.Kind == broadcast.TargetPeers && !containsFold(item.Target.Servers, p.Name) {
			continue
		}
		sendLine(p.conn, item.Message)
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func (m *Manager) absorbNick(msg *wire.Message) {
	if len(msg.Params) < 1 {
		return
	}
	oldNick, _, _, _ := wire.SplitPrefix(msg.Prefix)
	u, ok := m.Store.GetUserByNick(oldNick)
	if !ok {
		return
	}
	_ = m.Store.RenameUser(u.ID, msg.Params[0])
}

func (m *Manager) absorbQuit(msg *wire.Message) {
	nick, user, host, _ := wire.SplitPrefix(msg.Prefix)
	u, ok := m.Store.GetUserByNick(nick)
	if !ok {
		return
	}
	reason := "Remote quit"
	if len(msg.Params) > 0 {
		reason = msg.Params[0]
	}
	left := m.Store.RemoveUser(u.ID)
	m.announceQuit(nick, user, host, left, reason)
}

func (m *Manager) absorbJoin(msg *wire.Message) {
	if len(msg.Params) < 1 {
		return
	}
	nick, _, _, _ := wire.SplitPrefix(msg.Prefix)
	u, ok := m.Store.GetUserByNick(nick)
	if !ok {
		return
	}
	channelName := msg.Params[0]
	m.Store.AddMember(u.ID, channelName, nil)
	m.Broadcast.SendNow(broadcast.Item{
		Message:  &wire.Message{Prefix: msg.Prefix, Command: "JOIN", Params: []string{channelName}},
		Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: channelName},
		Priority: broadcast.Normal,
	})
}

func (m *Manager) absorbPart(msg *wire.Message) {
	if len(msg.Params) < 1 {
		return
	}
	nick, _, _, _ := wire.SplitPrefix(msg.Prefix)
	u, ok := m.Store.GetUserByNick(nick)
	if !ok {
		return
	}
	channelName := msg.Params[0]
	m.Broadcast.SendNow(broadcast.Item{
		Message:  msg,
		Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: channelName},
		Priority: broadcast.Normal,
	})
	m.Store.RemoveMember(u.ID, channelName)
}

func (m *Manager) absorbMode(msg *wire.Message) {
	if len(msg.Params) < 2 {
		return
	}
	target := msg.Params[0]
	modeStr := msg.Params[1]

	if strings.HasPrefix(target, "#") || strings.HasPrefix(target, "&") {
		adding := true
		for _, r := range modeStr {
			switch r {
			case '+':
				adding = true
			case '-':
				adding = false
			default:
				m.Store.SetChannelMode(target, byte(r), adding)
			}
		}
	} else if u, ok := m.Store.GetUserByNick(target); ok {
		adding := true
		for _, r := range modeStr {
			switch r {
			case '+':
				adding = true
			case '-':
				adding = false
			default:
				if adding {
					u.Modes[byte(r)] = true
				} else {
					delete(u.Modes, byte(r))
				}
			}
		}
	}

	m.Broadcast.SendNow(broadcast.Item{Message: msg, Target: targetFor(target), Priority: broadcast.Normal})
}

func (m *Manager) absorbMessage(msg *wire.Message) {
	if len(msg.Params) < 1 {
		return
	}
	m.Broadcast.SendNow(broadcast.Item{Message: msg, Target: targetFor(msg.Params[0]), Priority: broadcast.Normal})
}

func (m *Manager) absorbKill(msg *wire.Message) {
	if len(msg.Params) < 1 {
		return
	}
	nick := msg.Params[0]
	reason := "Killed"
	if len(msg.Params) > 1 {
		reason = msg.Params[1]
	}
	u, ok := m.Store.GetUserByNick(nick)
	if !ok {
		return
	}
	user, host := u.User, u.Host
	left := m.Store.RemoveUser(u.ID)
	m.announceQuit(nick, user, host, left, reason)
}

func targetFor(name string) broadcast.Target {
	if strings.HasPrefix(name, "#") || strings.HasPrefix(name, "&") {
		return broadcast.Target{Kind: broadcast.TargetChannel, Channel: name}
	}
	return broadcast.Target{Kind: broadcast.TargetExplicitNicks, Nicks: []string{name}}
}

// announceQuit broadcasts a QUIT to every channel a now-departed user
// occupied, used for both remote QUIT absorption and collision/kill cleanup.
func (m *Manager) announceQuit(nick, user, host string, channels []string, reason string) {
	prefix := wire.JoinPrefix(nick, user, host)
	for _, ch := range channels {
		m.Broadcast.SendNow(broadcast.Item{
			Message:  &wire.Message{Prefix: prefix, Command: "QUIT", Params: []string{reason}},
			Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: ch},
			Priority: broadcast.High,
		})
	}
}

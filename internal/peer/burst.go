package peer

import (
	"strconv"
	"strings"
	"time"

	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// sendBurst runs every registered burst producer in order against one
// newly-registered peer: users first, then channels, per spec.md §4.8's
// "its own users (UID/UserBurst), then channels ... (SJOIN/ChannelBurst),
// then a final sentinel" — the sentinel (EOB) is sent by the caller once
// every producer has run.
func (m *Manager) sendBurst(p *Peer) {
	bc := &BurstContext{
		Peer: p,
		Send: func(msg *wire.Message) { sendLine(p.conn, msg) },
	}
	m.burstProducers.RunAll(bc)
}

func userModeString(u *store.User) string {
	var b strings.Builder
	b.WriteByte('+')
	for mode := range u.Modes {
		b.WriteByte(mode)
	}
	return b.String()
}

func channelModeString(ch *store.Channel) string {
	var b strings.Builder
	b.WriteByte('+')
	for mode := range ch.Modes {
		b.WriteByte(mode)
	}
	return b.String()
}

func parseModeString(s string) map[byte]bool {
	out := make(map[byte]bool)
	for _, r := range s {
		if r == '+' || r == '-' {
			continue
		}
		out[byte(r)] = true
	}
	return out
}

// burstUsers is a burst producer: one UID line per locally-connected user.
func (m *Manager) burstUsers(bc *BurstContext) error {
	for _, u := range m.Store.AllUsers() {
		if !u.Local {
			continue
		}
		bc.Send(&wire.Message{
			Command: "UID",
			Params: []string{
				u.Nick, u.User, u.Host,
				strconv.FormatInt(u.RegisteredAt.Unix(), 10),
				userModeString(u),
				u.RealName,
			},
		})
	}
	return nil
}

// burstChannels is a burst producer: one SJOIN line per channel, listing
// every member with its channel-prefix (@ for op, + for voice).
func (m *Manager) burstChannels(bc *BurstContext) error {
	for _, ch := range m.Store.AllChannels() {
		members := make([]string, 0, len(ch.Members))
		for uid, mem := range ch.Members {
			u, ok := m.Store.GetUser(uid)
			if !ok {
				continue
			}
			prefix := ""
			switch {
			case mem.Modes['o']:
				prefix = "@"
			case mem.Modes['v']:
				prefix = "+"
			}
			members = append(members, prefix+u.Nick)
		}
		bc.Send(&wire.Message{
			Command: "SJOIN",
			Params: []string{
				strconv.FormatInt(ch.CreatedAt.Unix(), 10),
				ch.Name,
				channelModeString(ch),
				strings.Join(members, " "),
			},
		})
	}
	return nil
}

// absorbUID introduces a remote user into the store. A nick already taken
// locally is a burst collision: per spec.md §4.8, "conflicting nicks during
// burst collision are killed on both sides (ERR_NICKCOLLISION) per RFC 2813
// conventions" — the existing local holder is killed and the incoming UID
// is rejected back to its origin rather than absorbed.
func (m *Manager) absorbUID(p *Peer, msg *wire.Message) {
	if len(msg.Params) < 5 {
		return
	}
	nick, user, host, tsStr, modes := msg.Params[0], msg.Params[1], msg.Params[2], msg.Params[3], msg.Params[4]
	realName := ""
	if len(msg.Params) > 5 {
		realName = msg.Params[len(msg.Params)-1]
	}

	if existing, ok := m.Store.GetUserByNick(nick); ok {
		m.killCollision(existing, "Nickname collision")
		sendLine(p.conn, &wire.Message{Prefix: m.ServerName, Command: "KILL", Params: []string{nick, "Nickname collision"}})
		return
	}

	ts, _ := strconv.ParseInt(tsStr, 10, 64)
	u := &store.User{
		ID:           store.NewUserID(),
		Nick:         nick,
		User:         user,
		Host:         host,
		RealName:     realName,
		Modes:        parseModeString(modes),
		Server:       p.Name,
		Local:        false,
		RegisteredAt: time.Unix(ts, 0),
		LastActivity: time.Now(),
		ChannelNames: make(map[string]bool),
	}
	_ = m.Store.AddUser(u)
}

// absorbSJOIN merges a remote channel burst into the store. Channel
// timestamp resolution follows the conventional SJOIN rule: the lower of
// the two timestamps wins and its side's modes are kept; ties keep the
// existing modes. Memberships are additive regardless of which side's
// timestamp wins, since burst nicks are already known not to collide.
func (m *Manager) absorbSJOIN(msg *wire.Message) {
	if len(msg.Params) < 4 {
		return
	}
	tsStr, name, modes, memberList := msg.Params[0], msg.Params[1], msg.Params[2], msg.Params[len(msg.Params)-1]
	remoteTS, _ := strconv.ParseInt(tsStr, 10, 64)
	remoteCreated := time.Unix(remoteTS, 0)

	ch, created := m.Store.GetOrCreateChannel(name)
	if created || remoteCreated.Before(ch.CreatedAt) {
		m.Store.SetChannelCreatedAt(name, remoteCreated)
		if !created {
			var stale []byte
			for mode := range ch.Modes {
				stale = append(stale, mode)
			}
			for _, mode := range stale {
				m.Store.SetChannelMode(name, mode, false)
			}
		}
		for mode := range parseModeString(modes) {
			m.Store.SetChannelMode(name, mode, true)
		}
	}

	if memberList == "" {
		return
	}
	for _, token := range strings.Fields(memberList) {
		prefixModes := map[byte]bool{}
		for len(token) > 0 && (token[0] == '@' || token[0] == '+') {
			if token[0] == '@' {
				prefixModes['o'] = true
			} else {
				prefixModes['v'] = true
			}
			token = token[1:]
		}
		nick := token
		u, ok := m.Store.GetUserByNick(nick)
		if !ok {
			continue
		}
		m.Store.AddMember(u.ID, name, prefixModes)
	}
}

// killCollision removes the losing side of a nick collision locally and
// announces its departure to every channel it occupied.
func (m *Manager) killCollision(u *store.User, reason string) {
	left := m.Store.RemoveUser(u.ID)
	m.announceQuit(u.Nick, u.User, u.Host, left, reason)
}

package store

import (
	"strings"
	"sync"
	"time"
)

// historyRingSize bounds per-target replay history (spec.md §4.4).
const historyRingSize = 50

// Store is the authoritative state container. Each top-level map has its
// own RWMutex rather than one global lock, so a WHOIS lookup and a PART on
// an unrelated channel never contend. Cross-map mutations (e.g. removing a
// user touches usersByID, nickToID, and every joined channel's Members)
// always acquire locks in this fixed order to prevent deadlock:
//
//	usersMu -> nicksMu -> channelsMu -> serversMu -> bansMu -> historyMu
//
// No method below acquires a lock out of that order; callers that need to
// compose operations should call the exported methods rather than reaching
// into the maps directly.
type Store struct {
	usersMu sync.RWMutex
	usersByID map[UserID]*User

	nicksMu sync.RWMutex
	nickToID map[string]UserID // case-folded nick -> id

	channelsMu sync.RWMutex
	channelsByName map[string]*Channel // case-folded name -> channel

	serversMu sync.RWMutex
	serversByName map[string]*PeerServer

	bansMu sync.RWMutex
	bans map[BanKind][]*Ban

	historyMu sync.RWMutex
	history map[string][]HistoryEntry // case-folded target -> ring
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		usersByID:      make(map[UserID]*User),
		nickToID:       make(map[string]UserID),
		channelsByName: make(map[string]*Channel),
		serversByName:  make(map[string]*PeerServer),
		bans:           make(map[BanKind][]*Ban),
		history:        make(map[string][]HistoryEntry),
	}
}

// FoldNick/FoldName perform the casemapping the spec treats as canonical
// for nick and channel-name comparison (ASCII-lowercase; IRC's rfc1459
// casemapping of {}|^ is deliberately not applied, matching the teacher's
// plain strings.ToLower use throughout irc/server/handlers.go).
func FoldNick(nick string) string { return strings.ToLower(nick) }
func FoldName(name string) string { return strings.ToLower(name) }

// --- users -----------------------------------------------------------

// ErrNickInUse is returned by AddUser/RenameUser when the target nick is
// already claimed by a different user.
var ErrNickInUse = errNickInUse{}

type errNickInUse struct{}

func (errNickInUse) Error() string { return "store: nickname already in use" }

// AddUser registers a brand-new user under the given nick. Invariant
// (spec.md §8 invariant 1): nickToID and usersByID agree on every live
// nick at the instant this call returns.
func (s *Store) AddUser(u *User) error {
	folded := FoldNick(u.Nick)

	s.nicksMu.Lock()
	if _, exists := s.nickToID[folded]; exists {
		s.nicksMu.Unlock()
		return ErrNickInUse
	}
	s.nickToID[folded] = u.ID
	s.nicksMu.Unlock()

	if u.ChannelNames == nil {
		u.ChannelNames = make(map[string]bool)
	}
	if u.Modes == nil {
		u.Modes = make(map[byte]bool)
	}

	s.usersMu.Lock()
	s.usersByID[u.ID] = u
	s.usersMu.Unlock()

	return nil
}

// RemoveUser deletes a user and removes them from every channel they were
// a member of, returning the list of channels they left so the caller can
// broadcast QUIT/part notices.
func (s *Store) RemoveUser(id UserID) (left []string) {
	s.usersMu.Lock()
	u, ok := s.usersByID[id]
	if !ok {
		s.usersMu.Unlock()
		return nil
	}
	delete(s.usersByID, id)
	s.usersMu.Unlock()

	s.nicksMu.Lock()
	if existing, ok := s.nickToID[FoldNick(u.Nick)]; ok && existing == id {
		delete(s.nickToID, FoldNick(u.Nick))
	}
	s.nicksMu.Unlock()

	s.channelsMu.Lock()
	for name := range u.ChannelNames {
		if ch, ok := s.channelsByName[FoldName(name)]; ok {
			delete(ch.Members, id)
			left = append(left, ch.Name)
			if len(ch.Members) == 0 {
				delete(s.channelsByName, FoldName(name))
			}
		}
	}
	s.channelsMu.Unlock()

	return left
}

// RenameUser atomically moves a nick's registration. The caller is
// responsible for broadcasting the NICK change after this succeeds.
func (s *Store) RenameUser(id UserID, newNick string) error {
	folded := FoldNick(newNick)

	s.usersMu.RLock()
	u, ok := s.usersByID[id]
	s.usersMu.RUnlock()

	s.nicksMu.Lock()
	if existing, exists := s.nickToID[folded]; exists && existing != id {
		s.nicksMu.Unlock()
		return ErrNickInUse
	}
	if !ok {
		s.nicksMu.Unlock()
		return nil
	}
	delete(s.nickToID, FoldNick(u.Nick))
	s.nickToID[folded] = id
	s.nicksMu.Unlock()

	s.usersMu.Lock()
	u.Nick = newNick
	s.usersMu.Unlock()

	return nil
}

// GetUser returns the user by ID.
func (s *Store) GetUser(id UserID) (*User, bool) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.usersByID[id]
	return u, ok
}

// GetUserByNick resolves a nick to its current user record.
func (s *Store) GetUserByNick(nick string) (*User, bool) {
	s.nicksMu.RLock()
	id, ok := s.nickToID[FoldNick(nick)]
	s.nicksMu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.GetUser(id)
}

// SearchUsers returns every user whose nick, user, host, or realname
// contains the (case-insensitive) substring query — used by WHO/LIST glob
// matching callers after they've already applied mask logic, and directly
// for simple substring search.
func (s *Store) SearchUsers(query string) []*User {
	q := strings.ToLower(query)

	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	var out []*User
	for _, u := range s.usersByID {
		if strings.Contains(strings.ToLower(u.Nick), q) ||
			strings.Contains(strings.ToLower(u.User), q) ||
			strings.Contains(strings.ToLower(u.Host), q) ||
			strings.Contains(strings.ToLower(u.RealName), q) {
			out = append(out, u)
		}
	}
	return out
}

// AllUsers returns a snapshot of every connected user.
func (s *Store) AllUsers() []*User {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	out := make([]*User, 0, len(s.usersByID))
	for _, u := range s.usersByID {
		out = append(out, u)
	}
	return out
}

// --- channels ----------------------------------------------------------

// GetOrCreateChannel returns the named channel, creating it if absent.
// The second return reports whether it was newly created (the caller uses
// this to decide whether the joiner gets +o).
func (s *Store) GetOrCreateChannel(name string) (*Channel, bool) {
	folded := FoldName(name)

	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()

	if ch, ok := s.channelsByName[folded]; ok {
		return ch, false
	}
	ch := &Channel{
		Name:      name,
		Modes:     make(map[byte]bool),
		Members:   make(map[UserID]*Member),
		CreatedAt: time.Now(),
	}
	s.channelsByName[folded] = ch
	return ch, true
}

// GetChannel looks up a channel without creating it.
func (s *Store) GetChannel(name string) (*Channel, bool) {
	s.channelsMu.RLock()
	defer s.channelsMu.RUnlock()
	ch, ok := s.channelsByName[FoldName(name)]
	return ch, ok
}

// AddMember joins a user to a channel, creating the channel if necessary.
// Invariant (spec.md §8 invariant 2): after this returns, ch.Members[id]
// is set and user.ChannelNames[ch.Name] is set, or neither is.
func (s *Store) AddMember(userID UserID, channelName string, initialModes map[byte]bool) *Channel {
	ch, _ := s.GetOrCreateChannel(channelName)

	s.channelsMu.Lock()
	modes := make(map[byte]bool, len(initialModes))
	for k, v := range initialModes {
		modes[k] = v
	}
	ch.Members[userID] = &Member{UserID: userID, Modes: modes}
	s.channelsMu.Unlock()

	s.usersMu.Lock()
	if u, ok := s.usersByID[userID]; ok {
		u.ChannelNames[ch.Name] = true
	}
	s.usersMu.Unlock()

	return ch
}

// RemoveMember removes a user from a channel, deleting the channel if it
// becomes empty (spec.md §4.6: channels are not persisted once unoccupied).
func (s *Store) RemoveMember(userID UserID, channelName string) {
	folded := FoldName(channelName)

	s.channelsMu.Lock()
	ch, ok := s.channelsByName[folded]
	if ok {
		delete(ch.Members, userID)
		if len(ch.Members) == 0 {
			delete(s.channelsByName, folded)
		}
	}
	s.channelsMu.Unlock()

	if !ok {
		return
	}

	s.usersMu.Lock()
	if u, exists := s.usersByID[userID]; exists {
		delete(u.ChannelNames, ch.Name)
	}
	s.usersMu.Unlock()
}

// SetChannelMode flips a channel-level mode flag.
func (s *Store) SetChannelMode(channelName string, mode byte, enabled bool) {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	if ch, ok := s.channelsByName[FoldName(channelName)]; ok {
		if enabled {
			ch.Modes[mode] = true
		} else {
			delete(ch.Modes, mode)
		}
	}
}

// SetChannelCreatedAt overrides a channel's creation timestamp, used by
// internal/peer when absorbing a remote SJOIN whose timestamp predates the
// local channel's (the earlier side wins per conventional TS rules).
func (s *Store) SetChannelCreatedAt(channelName string, t time.Time) {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	if ch, ok := s.channelsByName[FoldName(channelName)]; ok {
		ch.CreatedAt = t
	}
}

// SetMemberMode flips a member's channel-scoped prefix mode (+o/+v/etc).
func (s *Store) SetMemberMode(channelName string, userID UserID, mode byte, enabled bool) {
	s.channelsMu.Lock()
	defer s.channelsMu.Unlock()
	ch, ok := s.channelsByName[FoldName(channelName)]
	if !ok {
		return
	}
	m, ok := ch.Members[userID]
	if !ok {
		return
	}
	if enabled {
		m.Modes[mode] = true
	} else {
		delete(m.Modes, mode)
	}
}

// AllChannels returns a snapshot of every channel.
func (s *Store) AllChannels() []*Channel {
	s.channelsMu.RLock()
	defer s.channelsMu.RUnlock()
	out := make([]*Channel, 0, len(s.channelsByName))
	for _, ch := range s.channelsByName {
		out = append(out, ch)
	}
	return out
}

// --- servers -------------------------------------------------------------

// AddServer registers a linked server (directly connected or relayed via
// burst).
func (s *Store) AddServer(srv *PeerServer) {
	s.serversMu.Lock()
	defer s.serversMu.Unlock()
	s.serversByName[strings.ToLower(srv.Name)] = srv
}

// RemoveServer unregisters a server, used on SQUIT.
func (s *Store) RemoveServer(name string) {
	s.serversMu.Lock()
	defer s.serversMu.Unlock()
	delete(s.serversByName, strings.ToLower(name))
}

// GetServer looks up a linked server by name.
func (s *Store) GetServer(name string) (*PeerServer, bool) {
	s.serversMu.RLock()
	defer s.serversMu.RUnlock()
	srv, ok := s.serversByName[strings.ToLower(name)]
	return srv, ok
}

// AllServers returns a snapshot of every linked server.
func (s *Store) AllServers() []*PeerServer {
	s.serversMu.RLock()
	defer s.serversMu.RUnlock()
	out := make([]*PeerServer, 0, len(s.serversByName))
	for _, srv := range s.serversByName {
		out = append(out, srv)
	}
	return out
}

// RemoveUsersFromServer deletes every user whose Server is the given name,
// for SQUIT/netsplit cascade. Users on servers linked behind it are not
// removed.
// Returns the removed users so the caller can announce QUIT for each.
func (s *Store) RemoveUsersFromServer(serverName string) []*User {
	s.usersMu.Lock()
	var removed []*User
	for id, u := range s.usersByID {
		if strings.EqualFold(u.Server, serverName) {
			removed = append(removed, u)
			delete(s.usersByID, id)
		}
	}
	s.usersMu.Unlock()

	for _, u := range removed {
		s.nicksMu.Lock()
		if existing, ok := s.nickToID[FoldNick(u.Nick)]; ok && existing == u.ID {
			delete(s.nickToID, FoldNick(u.Nick))
		}
		s.nicksMu.Unlock()

		s.channelsMu.Lock()
		for name := range u.ChannelNames {
			if ch, ok := s.channelsByName[FoldName(name)]; ok {
				delete(ch.Members, u.ID)
				if len(ch.Members) == 0 {
					delete(s.channelsByName, FoldName(name))
				}
			}
		}
		s.channelsMu.Unlock()
	}

	return removed
}

// --- bans ----------------------------------------------------------------

// AddBan records a new ban of the given kind.
func (s *Store) AddBan(b *Ban) {
	s.bansMu.Lock()
	defer s.bansMu.Unlock()
	s.bans[b.Kind] = append(s.bans[b.Kind], b)
}

// RemoveBan removes a ban matching kind and mask exactly.
func (s *Store) RemoveBan(kind BanKind, mask string) bool {
	s.bansMu.Lock()
	defer s.bansMu.Unlock()
	list := s.bans[kind]
	for i, b := range list {
		if b.Mask == mask {
			s.bans[kind] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Bans returns a snapshot of every ban of the given kind.
func (s *Store) Bans(kind BanKind) []*Ban {
	s.bansMu.RLock()
	defer s.bansMu.RUnlock()
	out := make([]*Ban, len(s.bans[kind]))
	copy(out, s.bans[kind])
	return out
}

// AllBans returns a snapshot of every ban of every kind.
func (s *Store) AllBans() []*Ban {
	s.bansMu.RLock()
	defer s.bansMu.RUnlock()
	var out []*Ban
	for _, list := range s.bans {
		out = append(out, list...)
	}
	return out
}

// SweepExpiredBans removes every ban whose expiry has passed as of now,
// returning the removed entries. Called periodically by the ban enforcer.
func (s *Store) SweepExpiredBans(now time.Time) []*Ban {
	s.bansMu.Lock()
	defer s.bansMu.Unlock()

	var expired []*Ban
	for kind, list := range s.bans {
		kept := list[:0]
		for _, b := range list {
			if b.Expired(now) {
				expired = append(expired, b)
			} else {
				kept = append(kept, b)
			}
		}
		s.bans[kind] = kept
	}
	return expired
}

// --- history ---------------------------------------------------------

// RecordHistory appends an entry to a target's bounded replay ring,
// evicting the oldest entry once historyRingSize is exceeded.
func (s *Store) RecordHistory(e HistoryEntry) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	key := FoldName(e.Target)
	ring := append(s.history[key], e)
	if len(ring) > historyRingSize {
		ring = ring[len(ring)-historyRingSize:]
	}
	s.history[key] = ring
}

// GetHistory returns the replay ring for a target, oldest first.
func (s *Store) GetHistory(target string) []HistoryEntry {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	ring := s.history[FoldName(target)]
	out := make([]HistoryEntry, len(ring))
	copy(out, ring)
	return out
}

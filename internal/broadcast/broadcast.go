// Package broadcast implements the priority-queued message fan-out engine
// (spec.md §4.7): target resolution against the store, four priority
// queues drained high-to-low, and per-send statistics.
package broadcast

import (
	"sync"

	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// Priority orders queued broadcasts; queues are drained Critical first.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	Critical
)

const numPriorities = int(Critical) + 1

// TargetKind selects how Resolve interprets a Target's fields.
type TargetKind int

const (
	TargetAllClients TargetKind = iota
	TargetChannel
	TargetAllExcept
	TargetExplicitNicks
	TargetAllPeers
	TargetPeers
	TargetOperators
	TargetPattern
)

// Target names the recipients of a broadcast, grounded on rustircd's
// BroadcastTarget enum (original_source/core/src/broadcast.rs).
type Target struct {
	Kind    TargetKind
	Channel string
	Nicks   []string
	Servers []string
	Pattern string
	Exclude store.UserID // used by TargetAllExcept and applied for any kind
}

// Sink delivers a single rendered line to one recipient. connio provides
// the concrete implementation (a per-connection outbound queue); tests can
// substitute a recording fake.
type Sink func(userID store.UserID, line string)

// Item is a single queued broadcast.
type Item struct {
	Message  *wire.Message
	Target   Target
	Sender   store.UserID
	Priority Priority
}

// Stats mirrors rustircd's BroadcastStats for observability.
type Stats struct {
	MessagesSent       uint64
	UsersReached       uint64
	ChannelsBroadcast  uint64
	Errors             uint64
}

// PeerSink receives every Item enqueued against TargetAllPeers/TargetPeers,
// so internal/peer can mirror it onto registered server links without the
// broadcast engine knowing anything about the link table. nil (the zero
// value) means peer-directed broadcasts are simply not forwarded anywhere,
// which is correct for any build that doesn't wire up internal/peer.
type PeerSink func(Item)

// Engine owns the priority queues and drains them against a Store.
type Engine struct {
	store *store.Store
	sink  Sink

	mu     sync.Mutex
	queues [numPriorities][]Item

	peerSink PeerSink

	statsMu sync.Mutex
	stats   Stats
}

// New creates a broadcast Engine. sink is called once per resolved
// recipient for every drained item.
func New(s *store.Store, sink Sink) *Engine {
	return &Engine{store: s, sink: sink}
}

// SetPeerSink wires the callback internal/peer uses to fan a broadcast out
// to every registered server link. Called once at startup.
func (e *Engine) SetPeerSink(fn PeerSink) {
	e.peerSink = fn
}

// Enqueue appends a broadcast to its priority's queue.
func (e *Engine) Enqueue(item Item) {
	e.mu.Lock()
	e.queues[item.Priority] = append(e.queues[item.Priority], item)
	e.mu.Unlock()
}

// Drain processes every queued item, Critical first, returning the count
// of items processed. Sender exclusion is applied at resolution time, not
// enqueue time, so a sender who parts a channel between enqueue and drain
// is still correctly excluded or included based on current membership.
func (e *Engine) Drain() int {
	e.mu.Lock()
	pending := e.queues
	e.queues = [numPriorities][]Item{}
	e.mu.Unlock()

	count := 0
	for p := numPriorities - 1; p >= 0; p-- {
		for _, item := range pending[p] {
			e.deliver(item)
			count++
		}
	}
	return count
}

// SendNow resolves and delivers a single broadcast immediately, bypassing
// the queue — used for latency-sensitive replies (PONG, numeric errors)
// that shouldn't wait behind a Low-priority backlog.
func (e *Engine) SendNow(item Item) {
	e.deliver(item)
}

func (e *Engine) deliver(item Item) {
	recipients := e.Resolve(item.Target)
	line := item.Message.Serialize()

	reached := 0
	for _, uid := range recipients {
		if uid == item.Target.Exclude {
			continue
		}
		e.sink(uid, line)
		reached++
	}

	if (item.Target.Kind == TargetAllPeers || item.Target.Kind == TargetPeers) && e.peerSink != nil {
		e.peerSink(item)
	}

	e.statsMu.Lock()
	e.stats.MessagesSent++
	e.stats.UsersReached += uint64(reached)
	if item.Target.Kind == TargetChannel {
		e.stats.ChannelsBroadcast++
	}
	e.statsMu.Unlock()
}

// Resolve expands a Target into the concrete set of user IDs to deliver
// to. Channel and ExplicitNicks targets may include remote users, which
// the per-user Sink skips. Server-directed kinds (AllPeers/Peers) resolve
// to no user IDs; deliver hands those items to the PeerSink instead
// (spec.md §4.8 keeps S2S fan-out separate from client fan-out).
func (e *Engine) Resolve(t Target) []store.UserID {
	switch t.Kind {
	case TargetAllClients, TargetAllExcept:
		var out []store.UserID
		for _, u := range e.store.AllUsers() {
			if u.Local {
				out = append(out, u.ID)
			}
		}
		return out

	case TargetChannel:
		ch, ok := e.store.GetChannel(t.Channel)
		if !ok {
			return nil
		}
		out := make([]store.UserID, 0, len(ch.Members))
		for uid := range ch.Members {
			out = append(out, uid)
		}
		return out

	case TargetExplicitNicks:
		var out []store.UserID
		for _, nick := range t.Nicks {
			if u, ok := e.store.GetUserByNick(nick); ok {
				out = append(out, u.ID)
			}
		}
		return out

	case TargetOperators:
		var out []store.UserID
		for _, u := range e.store.AllUsers() {
			if u.Local && u.Modes['o'] {
				out = append(out, u.ID)
			}
		}
		return out

	case TargetPattern:
		var out []store.UserID
		for _, u := range e.store.SearchUsers(t.Pattern) {
			if u.Local {
				out = append(out, u.ID)
			}
		}
		return out

	case TargetAllPeers, TargetPeers:
		return nil

	default:
		return nil
	}
}

// StatsSnapshot returns a copy of the current broadcast statistics.
func (e *Engine) StatsSnapshot() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

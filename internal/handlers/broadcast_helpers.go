package handlers

import (
	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

func broadcastNickChange(oldPrefix, newNick, channelName string) broadcast.Item {
	return broadcast.Item{
		Message:  &wire.Message{Prefix: oldPrefix, Command: "NICK", Params: []string{newNick}},
		Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: channelName},
		Priority: broadcast.Normal,
	}
}

func broadcastToChannel(prefix, command, channelName string, extraParams []string, sender store.UserID, excludeSender bool) broadcast.Item {
	params := append([]string{channelName}, extraParams...)
	target := broadcast.Target{Kind: broadcast.TargetChannel, Channel: channelName}
	if excludeSender {
		target.Exclude = sender
	}
	return broadcast.Item{
		Message:  &wire.Message{Prefix: prefix, Command: command, Params: params},
		Target:   target,
		Sender:   sender,
		Priority: broadcast.Normal,
	}
}

func broadcastToUser(prefix, command, targetNick string, params []string, priority broadcast.Priority) broadcast.Item {
	return broadcast.Item{
		Message:  &wire.Message{Prefix: prefix, Command: command, Params: params},
		Target:   broadcast.Target{Kind: broadcast.TargetExplicitNicks, Nicks: []string{targetNick}},
		Priority: priority,
	}
}

// peerRelay wraps a locally-originated NICK/JOIN/PART/PRIVMSG/NOTICE/
// QUIT/MODE in a broadcast.Item targeting every registered peer link, per
// spec.md §4.8's steady-state propagation rule: "local state mutations
// are mirrored as messages to every Registered peer". The engine's
// PeerSink (wired by internal/peer.Manager.SetPeerSink) is the only
// consumer; with no peer manager configured the item is simply drained
// to no one, the same as any other TargetAllPeers item.
func peerRelay(msg *wire.Message) broadcast.Item {
	return broadcast.Item{
		Message:  msg,
		Target:   broadcast.Target{Kind: broadcast.TargetAllPeers},
		Priority: broadcast.Normal,
	}
}

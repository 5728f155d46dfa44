package handlers

import (
	"strings"

	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/channel"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/reply"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// handlePrivmsg implements PRIVMSG, grounded on handlePrivmsg in
// irc/server/handlers.go: channel targets route through +n/+m checks,
// nick targets look up the recipient directly. Away users still receive
// the message; the sender gets an RPL_AWAY notice back.
func (d *Deps) handlePrivmsg(ctx *dispatch.Context) error {
	return d.sendMessage(ctx, "PRIVMSG")
}

// handleNotice implements NOTICE identically to PRIVMSG except that per
// RFC 1459 a NOTICE must never generate an automatic reply, including
// error numerics — silent failure is the correct behavior here.
func (d *Deps) handleNotice(ctx *dispatch.Context) error {
	return d.sendMessage(ctx, "NOTICE")
}

func (d *Deps) sendMessage(ctx *dispatch.Context, command string) error {
	silent := command == "NOTICE"

	if len(ctx.Message.Params) < 2 {
		if !silent {
			return needMoreParams(d, ctx, command)
		}
		return nil
	}
	target, text := ctx.Message.Params[0], ctx.Message.Params[1]

	sender, ok := d.currentUser(ctx)
	if !ok {
		if !silent {
			d.numeric(ctx, reply.ERR_NOTREGISTERED, nil)
		}
		return nil
	}
	prefix := d.userPrefix(sender)

	if strings.HasPrefix(target, "#") {
		ch, ok := d.Store.GetChannel(target)
		if !ok {
			if !silent {
				d.numeric(ctx, reply.ERR_NOSUCHNICK, map[string]string{"nick": target})
			}
			return nil
		}
		member, isMember := ch.Members[sender.ID]
		if !channel.CanSpeak(ch, member, isMember) {
			if !silent {
				d.numeric(ctx, reply.ERR_CANNOTSENDTOCHAN, map[string]string{"channel": target})
			}
			return nil
		}

		msg := &wire.Message{Prefix: prefix, Command: command, Params: []string{target, text}}
		d.Broadcast.Enqueue(broadcast.Item{
			Message:  msg,
			Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: target, Exclude: sender.ID},
			Sender:   sender.ID,
			Priority: broadcast.Normal,
		})
		d.Broadcast.Enqueue(peerRelay(msg))
		d.Store.RecordHistory(store.HistoryEntry{Target: target, From: sender.Nick, Text: text})
		return nil
	}

	recipient, ok := d.Store.GetUserByNick(target)
	if !ok {
		if !silent {
			d.numeric(ctx, reply.ERR_NOSUCHNICK, map[string]string{"nick": target})
		}
		return nil
	}

	msg := &wire.Message{Prefix: prefix, Command: command, Params: []string{target, text}}
	d.Broadcast.Enqueue(broadcast.Item{
		Message:  msg,
		Target:   broadcast.Target{Kind: broadcast.TargetExplicitNicks, Nicks: []string{target}},
		Priority: broadcast.Normal,
	})
	d.Broadcast.Enqueue(peerRelay(msg))
	d.Store.RecordHistory(store.HistoryEntry{Target: target, From: sender.Nick, Text: text})

	if recipient.Away && !silent {
		d.numeric(ctx, reply.RPL_AWAY, map[string]string{"nick": recipient.Nick, "reason": recipient.AwayReason})
	}
	return nil
}

// handleAway implements AWAY: an empty parameter clears away status.
func (d *Deps) handleAway(ctx *dispatch.Context) error {
	u, ok := d.currentUser(ctx)
	if !ok {
		d.numeric(ctx, reply.ERR_NOTREGISTERED, nil)
		return nil
	}

	if len(ctx.Message.Params) == 0 || ctx.Message.Params[0] == "" {
		u.Away = false
		u.AwayReason = ""
		d.numeric(ctx, reply.RPL_UNAWAY, nil)
		return nil
	}

	u.Away = true
	u.AwayReason = ctx.Message.Params[0]
	d.numeric(ctx, reply.RPL_NOWAWAY, nil)
	return nil
}

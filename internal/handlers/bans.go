package handlers

import (
	"time"

	"github.com/presbrey/ircd/internal/ban"
	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/ircerr"
	"github.com/presbrey/ircd/internal/wire"
)

// handleKline/handleGline/handleDline/handleXline share the same shape —
// operator-only, <mask> [duration] [:reason] — differing only in which
// ban.Kind they record, per spec.md §4.9's per-type module split and the
// G/K/D/X family supplemented from rustircd's dline/xline modules.
func (d *Deps) handleKline(ctx *dispatch.Context) error {
	return d.addBan(ctx, "KLINE", ban.LocalKill)
}

func (d *Deps) handleGline(ctx *dispatch.Context) error {
	return d.addBan(ctx, "GLINE", ban.Global)
}

func (d *Deps) handleDline(ctx *dispatch.Context) error {
	return d.addBan(ctx, "DLINE", ban.DNS)
}

func (d *Deps) handleXline(ctx *dispatch.Context) error {
	return d.addBan(ctx, "XLINE", ban.Extended)
}

func (d *Deps) handleUnkline(ctx *dispatch.Context) error {
	return d.removeBan(ctx, "UNKLINE", ban.LocalKill)
}

func (d *Deps) handleUngline(ctx *dispatch.Context) error {
	return d.removeBan(ctx, "UNGLINE", ban.Global)
}

func (d *Deps) handleUndline(ctx *dispatch.Context) error {
	return d.removeBan(ctx, "UNDLINE", ban.DNS)
}

func (d *Deps) handleUnxline(ctx *dispatch.Context) error {
	return d.removeBan(ctx, "UNXLINE", ban.Extended)
}

func (d *Deps) addBan(ctx *dispatch.Context, command string, kind ban.Kind) error {
	if len(ctx.Message.Params) < 1 {
		return needMoreParams(d, ctx, command)
	}
	u, ok := d.currentUser(ctx)
	if !ok || !u.Modes['o'] {
		return ircerr.New(ircerr.PermissionDenied, command, nil)
	}

	mask := ctx.Message.Params[0]
	var dur time.Duration
	reason := "No reason given"
	argIdx := 1
	if argIdx < len(ctx.Message.Params) {
		if parsed, err := parseDuration(ctx.Message.Params[argIdx]); err == nil {
			dur = parsed
			argIdx++
		}
	}
	if argIdx < len(ctx.Message.Params) {
		reason = ctx.Message.Params[argIdx]
	}

	b := d.Bans.Add(kind, mask, reason, u.Nick, dur)

	for _, hit := range d.Bans.RetroDisconnect(kind, mask) {
		d.Broadcast.Enqueue(broadcast.Item{
			Message:  &wire.Message{Prefix: d.ServerName, Command: "KILL", Params: []string{hit.Nick, reason}},
			Target:   broadcast.Target{Kind: broadcast.TargetExplicitNicks, Nicks: []string{hit.Nick}},
			Priority: broadcast.Critical,
		})
		d.Store.RemoveUser(hit.ID)
		d.Monitors.Clear(hit.ID)
		d.NotifyMonitors(hit.Nick, d.userPrefix(hit), false)
	}

	if ban.Propagates(kind) {
		d.Broadcast.Enqueue(broadcast.Item{
			Message:  &wire.Message{Prefix: d.ServerName, Command: command, Params: []string{mask, reason}},
			Target:   broadcast.Target{Kind: broadcast.TargetAllPeers},
			Priority: broadcast.High,
		})
	}

	ctx.Reply(":" + d.ServerName + " NOTICE " + u.Nick + " :" + command + " added for " + b.Mask)
	return nil
}

func (d *Deps) removeBan(ctx *dispatch.Context, command string, kind ban.Kind) error {
	if len(ctx.Message.Params) < 1 {
		return needMoreParams(d, ctx, command)
	}
	u, ok := d.currentUser(ctx)
	if !ok || !u.Modes['o'] {
		return ircerr.New(ircerr.PermissionDenied, command, nil)
	}

	mask := ctx.Message.Params[0]
	removed := d.Bans.Remove(kind, mask)

	if removed && ban.Propagates(kind) {
		d.Broadcast.Enqueue(broadcast.Item{
			Message:  &wire.Message{Prefix: d.ServerName, Command: command, Params: []string{mask}},
			Target:   broadcast.Target{Kind: broadcast.TargetAllPeers},
			Priority: broadcast.High,
		})
	}

	verb := "not found"
	if removed {
		verb = "removed"
	}
	ctx.Reply(":" + d.ServerName + " NOTICE " + u.Nick + " :" + command + " " + mask + " " + verb)
	return nil
}

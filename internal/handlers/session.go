package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/reply"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

var timeNow = time.Now

// handlePing replies with PONG, grounded on handlePing in
// irc/server/handlers.go.
func (d *Deps) handlePing(ctx *dispatch.Context) error {
	token := d.ServerName
	if len(ctx.Message.Params) > 0 {
		token = ctx.Message.Params[0]
	}
	ctx.Reply(fmt.Sprintf(":%s PONG %s :%s", d.ServerName, d.ServerName, token))
	return nil
}

// handlePong records liveness; the actual idle/dead-connection decision
// lives in connio's ping ticker, so there's nothing to do here beyond
// acknowledging the message reached the dispatcher.
func (d *Deps) handlePong(ctx *dispatch.Context) error {
	if u, ok := d.currentUser(ctx); ok {
		u.LastActivity = timeNow()
	}
	return nil
}

// handleQuit implements QUIT: removes the user from every channel they
// were in and broadcasts QUIT to each, grounded on handleQuit in
// irc/server/handlers.go.
func (d *Deps) handleQuit(ctx *dispatch.Context) error {
	reason := "Client Quit"
	if len(ctx.Message.Params) > 0 {
		reason = ctx.Message.Params[0]
	}

	u, ok := d.currentUser(ctx)
	if !ok {
		return nil
	}
	prefix := d.userPrefix(u)

	quitMsg := &wire.Message{Prefix: prefix, Command: "QUIT", Params: []string{reason}}
	channels := d.Store.RemoveUser(ctx.UserID)
	for _, name := range channels {
		d.Broadcast.Enqueue(broadcast.Item{
			Message:  quitMsg,
			Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: name},
			Priority: broadcast.High,
		})
	}
	d.Broadcast.Enqueue(peerRelay(quitMsg))
	d.Monitors.Clear(ctx.UserID)
	d.NotifyMonitors(u.Nick, prefix, false)
	return nil
}

// handleLusers implements LUSERS: a snapshot summary of connected
// clients, operators, and channels (spec.md supplemented ambient
// feature, grounded on RPL_LUSER* in irc/client.go completeRegistration
// and the teacher's ServerStats type).
func (d *Deps) handleLusers(ctx *dispatch.Context) error {
	d.sendLusers(ctx)
	return nil
}

// sendLusers emits the RPL_LUSER* block, shared by the standalone LUSERS
// command and the post-MYINFO welcome burst (spec.md §4.3 scenario S1).
func (d *Deps) sendLusers(ctx *dispatch.Context) {
	users := d.Store.AllUsers()
	var ops int
	for _, u := range users {
		if u.Modes['o'] {
			ops++
		}
	}
	vars := map[string]string{
		"user_count":    strconv.Itoa(len(users)),
		"op_count":      strconv.Itoa(ops),
		"unknown_count": "0",
		"channel_count": strconv.Itoa(len(d.Store.AllChannels())),
		"server_name":   d.ServerName,
	}
	d.numeric(ctx, reply.RPL_LUSERCLIENT, vars)
	d.numeric(ctx, reply.RPL_LUSEROP, vars)
	d.numeric(ctx, reply.RPL_LUSERUNKNOWN, vars)
	d.numeric(ctx, reply.RPL_LUSERCHANNELS, vars)
	d.numeric(ctx, reply.RPL_LUSERME, vars)
}

// handleMotd implements MOTD, serving the lines internal/config loaded
// from the configured MOTD file (spec.md §4.11 supplemented feature) or a
// one-line fallback when none was configured.
func (d *Deps) handleMotd(ctx *dispatch.Context) error {
	vars := map[string]string{"server_name": d.ServerName}
	d.numeric(ctx, reply.RPL_MOTDSTART, vars)
	lines := d.MOTD
	if len(lines) == 0 {
		lines = []string{"Welcome to " + d.NetworkName}
	}
	for _, line := range lines {
		d.numeric(ctx, reply.RPL_MOTD, map[string]string{"reason": line})
	}
	d.numeric(ctx, reply.RPL_ENDOFMOTD, nil)
	return nil
}

// handleVersion implements VERSION.
func (d *Deps) handleVersion(ctx *dispatch.Context) error {
	ctx.Reply(fmt.Sprintf(":%s 351 %s %s.%s :%s", d.ServerName, nickOrStar(d, ctx), d.Version, d.ServerName, d.NetworkName))
	return nil
}

// handleTime implements TIME.
func (d *Deps) handleTime(ctx *dispatch.Context) error {
	ctx.Reply(fmt.Sprintf(":%s 391 %s %s :%s", d.ServerName, nickOrStar(d, ctx), d.ServerName, timeNow().Format("Mon Jan 2 2006 15:04:05 MST")))
	return nil
}

func nickOrStar(d *Deps, ctx *dispatch.Context) string {
	if u, ok := d.currentUser(ctx); ok {
		return u.Nick
	}
	return "*"
}

package handlers

import (
	"strconv"
	"strings"

	"github.com/presbrey/ircd/internal/channel"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/reply"
	"github.com/presbrey/ircd/internal/store"
)

// handleWho implements WHO, grounded on handleWho in
// irc/server/handlers.go: a channel mask lists every member, a nick mask
// looks up that one client.
func (d *Deps) handleWho(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		return needMoreParams(d, ctx, "WHO")
	}
	mask := ctx.Message.Params[0]

	if strings.HasPrefix(mask, "#") {
		ch, ok := d.Store.GetChannel(mask)
		if ok {
			for uid := range ch.Members {
				u, ok := d.Store.GetUser(uid)
				if !ok {
					continue
				}
				d.sendWhoReply(ctx, mask, u)
			}
		}
	} else if u, ok := d.Store.GetUserByNick(mask); ok {
		d.sendWhoReply(ctx, "*", u)
	}

	d.numeric(ctx, reply.RPL_ENDOFWHO, map[string]string{"channel": mask})
	return nil
}

func (d *Deps) sendWhoReply(ctx *dispatch.Context, mask string, u *store.User) {
	d.numeric(ctx, reply.RPL_WHOREPLY, map[string]string{
		"channel": mask,
		"user":    u.User,
		"host":    u.Host,
		"nick":    u.Nick,
		"reason":  u.RealName,
	})
}

// handleWhois implements WHOIS, grounded on handleWhois in
// irc/server/handlers.go.
func (d *Deps) handleWhois(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		return needMoreParams(d, ctx, "WHOIS")
	}
	target := ctx.Message.Params[0]
	u, ok := d.Store.GetUserByNick(target)
	if !ok {
		d.numeric(ctx, reply.ERR_NOSUCHNICK, map[string]string{"nick": target})
		return nil
	}

	d.numeric(ctx, reply.RPL_WHOISUSER, map[string]string{
		"nick": u.Nick, "user": u.User, "host": u.Host, "reason": u.RealName,
	})
	d.numeric(ctx, reply.RPL_WHOISSERVER, map[string]string{
		"nick": u.Nick, "server_name": u.Server, "reason": d.NetworkName + " Server",
	})

	var channels []string
	for name := range u.ChannelNames {
		channels = append(channels, name)
	}
	if len(channels) > 0 {
		d.numeric(ctx, reply.RPL_WHOISCHANNELS, map[string]string{
			"nick": u.Nick, "channel": strings.Join(channels, " "),
		})
	}

	if u.Modes['o'] {
		d.numeric(ctx, reply.RPL_WHOISOPERATOR, map[string]string{"nick": u.Nick})
	}

	idle := 0
	if !u.LastActivity.IsZero() {
		idle = int(timeNow().Sub(u.LastActivity).Seconds())
	}
	d.numeric(ctx, reply.RPL_WHOISIDLE, map[string]string{
		"nick": u.Nick, "time": strconv.Itoa(idle),
	})
	d.numeric(ctx, reply.RPL_ENDOFWHOIS, map[string]string{"nick": u.Nick})
	return nil
}

// handleList implements LIST, grounded on handleList in
// irc/server/handlers.go.
func (d *Deps) handleList(ctx *dispatch.Context) error {
	d.numeric(ctx, reply.RPL_LISTSTART, nil)

	var channels []*store.Channel
	if len(ctx.Message.Params) > 0 {
		for _, name := range splitCSV(ctx.Message.Params[0]) {
			if ch, ok := d.Store.GetChannel(name); ok {
				channels = append(channels, ch)
			}
		}
	} else {
		channels = d.Store.AllChannels()
	}

	for _, ch := range channels {
		if ch.Modes[channel.ModeSecret] {
			continue
		}
		d.numeric(ctx, reply.RPL_LIST, map[string]string{
			"channel": ch.Name, "user_count": strconv.Itoa(len(ch.Members)), "topic": ch.Topic,
		})
	}

	d.numeric(ctx, reply.RPL_LISTEND, nil)
	return nil
}

// handleNames implements the standalone NAMES command; JOIN-triggered
// names bursts reuse sendNames directly.
func (d *Deps) handleNames(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		for _, ch := range d.Store.AllChannels() {
			d.sendNames(ctx, ch)
		}
		return nil
	}
	for _, name := range splitCSV(ctx.Message.Params[0]) {
		if ch, ok := d.Store.GetChannel(name); ok {
			d.sendNames(ctx, ch)
		}
	}
	return nil
}
